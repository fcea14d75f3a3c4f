package feature

import (
	"fmt"
	"math"
	"sort"

	"github.com/opensource-health/heron/internal/domain"
)

// deriveFunc computes one feature column from a claim batch. Functions
// depend only on the batch, never on other columns, which keeps the
// derivation order-independent.
type deriveFunc func(claims []*domain.Claim) []float64

type deriver struct {
	name string
	fn   deriveFunc
}

// Engineer derives feature columns from claim batches. Every column is
// a pure function keyed by its name; deriving a column that already
// exists in the frame is a no-op.
type Engineer struct {
	derivers []deriver
	byName   map[string]deriveFunc
}

// NewEngineer builds the standard deriver registry.
func NewEngineer() *Engineer {
	e := &Engineer{byName: make(map[string]deriveFunc)}

	e.register("claim_amount", func(cs []*domain.Claim) []float64 {
		return mapClaims(cs, func(c *domain.Claim) float64 { return c.Amount })
	})
	e.register("patient_age", func(cs []*domain.Claim) []float64 {
		return mapClaims(cs, func(c *domain.Claim) float64 { return float64(c.PatientAge) })
	})

	// Temporal
	e.register("claim_hour", func(cs []*domain.Claim) []float64 {
		return mapClaims(cs, func(c *domain.Claim) float64 { return float64(c.ClaimDate.Hour()) })
	})
	e.register("claim_day_of_week", func(cs []*domain.Claim) []float64 {
		return mapClaims(cs, func(c *domain.Claim) float64 { return float64(c.ClaimDate.Weekday()) })
	})
	e.register("claim_month", func(cs []*domain.Claim) []float64 {
		return mapClaims(cs, func(c *domain.Claim) float64 { return float64(c.ClaimDate.Month()) })
	})
	e.register("is_weekend", func(cs []*domain.Claim) []float64 {
		return mapClaims(cs, func(c *domain.Claim) float64 {
			wd := c.ClaimDate.Weekday()
			return boolF(wd == 0 || wd == 6)
		})
	})
	e.register("is_night_claim", func(cs []*domain.Claim) []float64 {
		return mapClaims(cs, func(c *domain.Claim) float64 {
			h := c.ClaimDate.Hour()
			return boolF(h >= 22 || h <= 6)
		})
	})

	// Amount
	e.register("claim_amount_log", func(cs []*domain.Claim) []float64 {
		return mapClaims(cs, func(c *domain.Claim) float64 { return math.Log1p(c.Amount) })
	})
	e.register("is_high_amount", func(cs []*domain.Claim) []float64 {
		amounts := mapClaims(cs, func(c *domain.Claim) float64 { return c.Amount })
		p95 := Percentile(amounts, 95)
		return mapClaims(cs, func(c *domain.Claim) float64 { return boolF(c.Amount >= p95) })
	})

	// Provider aggregates
	e.register("provider_claim_count", func(cs []*domain.Claim) []float64 {
		counts := groupCount(cs, providerKey)
		return mapClaims(cs, func(c *domain.Claim) float64 { return counts[c.ProviderID] })
	})
	e.register("provider_avg_amount", func(cs []*domain.Claim) []float64 {
		means := groupMean(cs, providerKey)
		return mapClaims(cs, func(c *domain.Claim) float64 { return means[c.ProviderID] })
	})
	e.register("provider_amount_std", func(cs []*domain.Claim) []float64 {
		stds := groupStd(cs, providerKey)
		return mapClaims(cs, func(c *domain.Claim) float64 { return stds[c.ProviderID] })
	})
	e.register("provider_total_amount", func(cs []*domain.Claim) []float64 {
		sums := groupSum(cs, providerKey)
		return mapClaims(cs, func(c *domain.Claim) float64 { return sums[c.ProviderID] })
	})
	e.register("provider_unique_patients", func(cs []*domain.Claim) []float64 {
		uniq := groupUnique(cs, providerKey, func(c *domain.Claim) string { return c.PatientID })
		return mapClaims(cs, func(c *domain.Claim) float64 { return uniq[c.ProviderID] })
	})
	e.register("provider_claims_per_patient", func(cs []*domain.Claim) []float64 {
		counts := groupCount(cs, providerKey)
		uniq := groupUnique(cs, providerKey, func(c *domain.Claim) string { return c.PatientID })
		return mapClaims(cs, func(c *domain.Claim) float64 {
			return counts[c.ProviderID] / (uniq[c.ProviderID] + epsilon)
		})
	})
	e.register("provider_amount_cv", func(cs []*domain.Claim) []float64 {
		means := groupMean(cs, providerKey)
		stds := groupStd(cs, providerKey)
		return mapClaims(cs, func(c *domain.Claim) float64 {
			return stds[c.ProviderID] / (means[c.ProviderID] + epsilon)
		})
	})

	// Patient aggregates
	e.register("patient_claim_count", func(cs []*domain.Claim) []float64 {
		counts := groupCount(cs, patientKey)
		return mapClaims(cs, func(c *domain.Claim) float64 { return counts[c.PatientID] })
	})
	e.register("patient_avg_amount", func(cs []*domain.Claim) []float64 {
		means := groupMean(cs, patientKey)
		return mapClaims(cs, func(c *domain.Claim) float64 { return means[c.PatientID] })
	})
	e.register("patient_total_amount", func(cs []*domain.Claim) []float64 {
		sums := groupSum(cs, patientKey)
		return mapClaims(cs, func(c *domain.Claim) float64 { return sums[c.PatientID] })
	})
	e.register("patient_unique_providers", func(cs []*domain.Claim) []float64 {
		uniq := groupUnique(cs, patientKey, func(c *domain.Claim) string { return c.ProviderID })
		return mapClaims(cs, func(c *domain.Claim) float64 { return uniq[c.PatientID] })
	})

	// Code frequency and rarity
	e.register("diagnosis_freq", func(cs []*domain.Claim) []float64 {
		freq := codeFrequency(cs, diagnosisKey)
		return mapClaims(cs, func(c *domain.Claim) float64 { return freq[c.DiagnosisCode] })
	})
	e.register("is_rare_diagnosis", func(cs []*domain.Claim) []float64 {
		freq := codeFrequency(cs, diagnosisKey)
		cutoff := frequencyCutoff(freq, 10)
		return mapClaims(cs, func(c *domain.Claim) float64 { return boolF(freq[c.DiagnosisCode] <= cutoff) })
	})
	e.register("procedure_freq", func(cs []*domain.Claim) []float64 {
		freq := codeFrequency(cs, procedureKey)
		return mapClaims(cs, func(c *domain.Claim) float64 { return freq[c.ProcedureCode] })
	})
	e.register("is_rare_procedure", func(cs []*domain.Claim) []float64 {
		freq := codeFrequency(cs, procedureKey)
		cutoff := frequencyCutoff(freq, 10)
		return mapClaims(cs, func(c *domain.Claim) float64 { return boolF(freq[c.ProcedureCode] <= cutoff) })
	})

	// Procedure cost norms
	e.register("procedure_avg_cost", func(cs []*domain.Claim) []float64 {
		means := groupMean(cs, procedureKey)
		return mapClaims(cs, func(c *domain.Claim) float64 { return means[c.ProcedureCode] })
	})
	e.register("amount_vs_procedure_avg", func(cs []*domain.Claim) []float64 {
		means := groupMean(cs, procedureKey)
		return mapClaims(cs, func(c *domain.Claim) float64 {
			return c.Amount / (means[c.ProcedureCode] + epsilon)
		})
	})

	// Geography
	e.register("location_mismatch", func(cs []*domain.Claim) []float64 {
		return mapClaims(cs, func(c *domain.Claim) float64 {
			return boolF(c.PatientLocation != "" && c.ProviderLocation != "" && c.PatientLocation != c.ProviderLocation)
		})
	})

	// Duplicate billing: same patient, provider, procedure, and day
	e.register("is_duplicate_claim", func(cs []*domain.Claim) []float64 {
		counts := make(map[string]int, len(cs))
		for _, c := range cs {
			counts[duplicateKey(c)]++
		}
		return mapClaims(cs, func(c *domain.Claim) float64 { return boolF(counts[duplicateKey(c)] > 1) })
	})

	// Outliers
	e.register("amount_zscore", func(cs []*domain.Claim) []float64 {
		amounts := mapClaims(cs, func(c *domain.Claim) float64 { return c.Amount })
		mean, std := meanStd(amounts)
		out := make([]float64, len(amounts))
		for i, v := range amounts {
			out[i] = (v - mean) / (std + epsilon)
		}
		return out
	})
	e.register("is_amount_outlier", func(cs []*domain.Claim) []float64 {
		amounts := mapClaims(cs, func(c *domain.Claim) float64 { return c.Amount })
		mean, std := meanStd(amounts)
		out := make([]float64, len(amounts))
		for i, v := range amounts {
			out[i] = boolF(math.Abs((v-mean)/(std+epsilon)) > 3)
		}
		return out
	})

	return e
}

func (e *Engineer) register(name string, fn deriveFunc) {
	e.derivers = append(e.derivers, deriver{name: name, fn: fn})
	e.byName[name] = fn
}

// Names returns every derivable column name in registry order.
func (e *Engineer) Names() []string {
	out := make([]string, len(e.derivers))
	for i, d := range e.derivers {
		out[i] = d.name
	}
	return out
}

// CanDerive reports whether the engineer owns a column name.
func (e *Engineer) CanDerive(name string) bool {
	_, ok := e.byName[name]
	return ok
}

// Derive fills the frame with every registered column. Columns already
// present are skipped, so repeated calls leave the frame unchanged.
func (e *Engineer) Derive(f *Frame, claims []*domain.Claim) error {
	for _, d := range e.derivers {
		if f.Has(d.name) {
			continue
		}
		if err := f.AddColumn(d.name, d.fn(claims)); err != nil {
			return err
		}
	}
	return nil
}

// Align produces a row-major matrix with exactly the training columns,
// in training order. In training mode a missing column is a schema
// error. In inference mode a missing but derivable column is
// zero-filled; anything else is a schema error.
func (e *Engineer) Align(f *Frame, trainNames []string, inference bool) ([][]float64, error) {
	for _, name := range trainNames {
		if f.Has(name) {
			continue
		}
		if inference && e.CanDerive(name) {
			if err := f.AddColumn(name, make([]float64, f.Rows())); err != nil {
				return nil, err
			}
			continue
		}
		return nil, fmt.Errorf("%w: column %q was seen at training but is absent", ErrSchemaMismatch, name)
	}
	return f.Matrix(trainNames...)
}

// Percentile returns the value at percentile p (0..100) using linear
// interpolation over a sorted copy.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func mapClaims(cs []*domain.Claim, fn func(*domain.Claim) float64) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = fn(c)
	}
	return out
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func providerKey(c *domain.Claim) string  { return c.ProviderID }
func patientKey(c *domain.Claim) string   { return c.PatientID }
func diagnosisKey(c *domain.Claim) string { return c.DiagnosisCode }
func procedureKey(c *domain.Claim) string { return c.ProcedureCode }

func duplicateKey(c *domain.Claim) string {
	return c.PatientID + "|" + c.ProviderID + "|" + c.ProcedureCode + "|" + c.ClaimDate.Format("2006-01-02")
}

func groupCount(cs []*domain.Claim, key func(*domain.Claim) string) map[string]float64 {
	out := make(map[string]float64)
	for _, c := range cs {
		out[key(c)]++
	}
	return out
}

func groupSum(cs []*domain.Claim, key func(*domain.Claim) string) map[string]float64 {
	out := make(map[string]float64)
	for _, c := range cs {
		out[key(c)] += c.Amount
	}
	return out
}

func groupMean(cs []*domain.Claim, key func(*domain.Claim) string) map[string]float64 {
	sums := groupSum(cs, key)
	counts := groupCount(cs, key)
	out := make(map[string]float64, len(sums))
	for k, s := range sums {
		out[k] = s / counts[k]
	}
	return out
}

func groupStd(cs []*domain.Claim, key func(*domain.Claim) string) map[string]float64 {
	means := groupMean(cs, key)
	counts := groupCount(cs, key)
	sq := make(map[string]float64, len(means))
	for _, c := range cs {
		k := key(c)
		d := c.Amount - means[k]
		sq[k] += d * d
	}
	out := make(map[string]float64, len(sq))
	for k, v := range sq {
		out[k] = math.Sqrt(v / counts[k])
	}
	return out
}

func groupUnique(cs []*domain.Claim, key func(*domain.Claim) string, member func(*domain.Claim) string) map[string]float64 {
	seen := make(map[string]map[string]struct{})
	for _, c := range cs {
		k := key(c)
		if seen[k] == nil {
			seen[k] = make(map[string]struct{})
		}
		seen[k][member(c)] = struct{}{}
	}
	out := make(map[string]float64, len(seen))
	for k, members := range seen {
		out[k] = float64(len(members))
	}
	return out
}

// codeFrequency returns the share of the batch carrying each code.
func codeFrequency(cs []*domain.Claim, key func(*domain.Claim) string) map[string]float64 {
	counts := groupCount(cs, key)
	n := float64(len(cs))
	out := make(map[string]float64, len(counts))
	for k, v := range counts {
		out[k] = v / n
	}
	return out
}

// frequencyCutoff returns the value at percentile p of the distinct
// frequency values.
func frequencyCutoff(freq map[string]float64, p float64) float64 {
	values := make([]float64, 0, len(freq))
	for _, v := range freq {
		values = append(values, v)
	}
	return Percentile(values, p)
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
