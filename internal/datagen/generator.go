// Package datagen produces seeded synthetic claim batches for demos,
// benchmarks, and training runs without real data.
package datagen

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

var diagnosisCodes = []string{
	"E11.9", // type 2 diabetes
	"I10",   // essential hypertension
	"J18.9", // pneumonia
	"A09",   // gastroenteritis
	"B50.9", // malaria
	"O80",   // normal delivery
	"K29.7", // gastritis
	"N39.0", // urinary tract infection
	"J06.9", // upper respiratory infection
	"R50.9", // fever
	"M54.5", // low back pain
	"E78.5", // hyperlipidemia
	"F32.9", // depressive episode
	"H52.4", // presbyopia
	"L03.9", // cellulitis
}

// procedure code to typical billed amount
var procedureBaseAmounts = map[string]float64{
	"99213": 150,  // office visit, established
	"99214": 200,  // office visit, moderate
	"99215": 300,  // office visit, high complexity
	"90834": 120,  // psychotherapy 45 min
	"80053": 80,   // metabolic panel
	"85025": 45,   // complete blood count
	"71020": 180,  // chest x-ray
	"93000": 95,   // electrocardiogram
	"36415": 25,   // venipuncture
	"99281": 250,  // emergency visit, minor
	"99285": 850,  // emergency visit, severe
	"59400": 2500, // obstetric care
	"47562": 4200, // laparoscopic cholecystectomy
	"29881": 3800, // knee arthroscopy
	"66984": 3200, // cataract surgery
}

var locations = []string{
	"Nairobi", "Mombasa", "Kisumu", "Nakuru", "Eldoret",
	"Thika", "Malindi", "Kitale", "Garissa", "Nyeri",
}

var hospitals = []string{
	"Kenyatta National Hospital",
	"Aga Khan University Hospital",
	"Nairobi Hospital",
	"Moi Teaching and Referral Hospital",
	"Coast General Hospital",
	"Gertrude's Children's Hospital",
	"Karen Hospital",
	"MP Shah Hospital",
}

// fraud patterns and their share of fraudulent claims
type fraudPattern string

const (
	billingInflation fraudPattern = "billing_inflation"
	duplicateBilling fraudPattern = "duplicate_billing"
	phantomBilling   fraudPattern = "phantom_billing"
	upcoding         fraudPattern = "upcoding"
	unbundling       fraudPattern = "unbundling"
)

var patternShares = []struct {
	pattern fraudPattern
	share   float64
}{
	{billingInflation, 0.30},
	{duplicateBilling, 0.25},
	{phantomBilling, 0.20},
	{upcoding, 0.15},
	{unbundling, 0.10},
}

// Generator produces deterministic synthetic claim batches.
type Generator struct {
	seed int64
}

// New creates a generator. Identical seeds produce identical batches.
func New(seed int64) *Generator {
	return &Generator{seed: seed}
}

// Generate returns n claims with roughly fraudRate of them fraudulent,
// plus the ground-truth labels aligned with the batch.
func (g *Generator) Generate(n int, fraudRate float64) ([]*domain.Claim, []int) {
	rng := rand.New(rand.NewSource(g.seed))

	nPatients := n / 3
	if nPatients < 1 {
		nPatients = 1
	}
	if nPatients > 1000 {
		nPatients = 1000
	}
	nProviders := n / 20
	if nProviders < 1 {
		nProviders = 1
	}
	if nProviders > 100 {
		nProviders = 100
	}

	procedures := make([]string, 0, len(procedureBaseAmounts))
	for code := range procedureBaseAmounts {
		procedures = append(procedures, code)
	}
	// map iteration order is random; sort for a reproducible pool
	sort.Strings(procedures)

	// fixed anchor keeps generated batches byte-stable across runs
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// provider home locations
	providerLoc := make([]string, nProviders)
	for i := range providerLoc {
		providerLoc[i] = locations[rng.Intn(len(locations))]
	}
	patientLoc := make([]string, nPatients)
	for i := range patientLoc {
		patientLoc[i] = locations[rng.Intn(len(locations))]
	}
	patientAge := make([]int, nPatients)
	patientGender := make([]string, nPatients)
	for i := range patientAge {
		patientAge[i] = 18 + rng.Intn(68)
		if rng.Float64() < 0.5 {
			patientGender[i] = "F"
		} else {
			patientGender[i] = "M"
		}
	}

	claims := make([]*domain.Claim, 0, n)
	labels := make([]int, 0, n)

	for i := 0; i < n; i++ {
		pat := rng.Intn(nPatients)
		prov := rng.Intn(nProviders)
		proc := procedures[rng.Intn(len(procedures))]
		base := procedureBaseAmounts[proc]
		amount := base * (0.7 + rng.Float64()*0.6) // +-30% around base

		day := rng.Intn(365)
		hour := 8 + rng.Intn(10) // business hours by default
		claimDate := anchor.AddDate(0, 0, -day).Add(time.Duration(hour) * time.Hour)

		pLoc := patientLoc[pat]
		if rng.Float64() < 0.10 {
			pLoc = locations[rng.Intn(len(locations))]
		}

		claim := &domain.Claim{
			ID:               fmt.Sprintf("CLM_%08d", i+1),
			PatientID:        fmt.Sprintf("PAT_%06d", pat+1),
			ProviderID:       fmt.Sprintf("PROV_%04d", prov+1),
			InsuranceID:      fmt.Sprintf("NHIF-%07d", pat+1),
			DiagnosisCode:    diagnosisCodes[rng.Intn(len(diagnosisCodes))],
			ProcedureCode:    proc,
			PatientAge:       patientAge[pat],
			PatientGender:    patientGender[pat],
			PatientLocation:  pLoc,
			ProviderLocation: providerLoc[prov],
			HospitalName:     hospitals[rng.Intn(len(hospitals))],
			Amount:           amount,
			ClaimDate:        claimDate,
			CreatedAt:        claimDate,
		}

		label := 0
		if rng.Float64() < fraudRate {
			label = 1
			g.applyFraud(rng, claim, claims)
		}

		claims = append(claims, claim)
		labels = append(labels, label)
	}
	return claims, labels
}

// applyFraud mutates a claim to carry one of the known fraud patterns.
func (g *Generator) applyFraud(rng *rand.Rand, claim *domain.Claim, prior []*domain.Claim) {
	p := rng.Float64()
	var cumulative float64
	pattern := billingInflation
	for _, ps := range patternShares {
		cumulative += ps.share
		if p < cumulative {
			pattern = ps.pattern
			break
		}
	}

	switch pattern {
	case billingInflation:
		claim.Amount *= 2 + rng.Float64()*3
	case duplicateBilling:
		// re-bill an earlier claim of the same provider when possible
		for i := len(prior) - 1; i >= 0 && i >= len(prior)-50; i-- {
			if prior[i].ProviderID == claim.ProviderID {
				claim.PatientID = prior[i].PatientID
				claim.ProcedureCode = prior[i].ProcedureCode
				claim.Amount = prior[i].Amount
				claim.ClaimDate = prior[i].ClaimDate
				return
			}
		}
		claim.Amount *= 2
	case phantomBilling:
		// service billed at an implausible hour with an inflated amount
		claim.ClaimDate = claim.ClaimDate.Add(time.Duration(18-claim.ClaimDate.Hour()) * time.Hour)
		claim.ClaimDate = claim.ClaimDate.Add(time.Duration(rng.Intn(5)+5) * time.Hour) // 23:00..03:00
		claim.Amount *= 1.5 + rng.Float64()*2
	case upcoding:
		claim.ProcedureCode = "99215"
		claim.Amount = procedureBaseAmounts["99215"] * (2 + rng.Float64()*2)
	case unbundling:
		// split billing shows up as an off-norm low amount with repeats
		claim.Amount = claim.Amount*0.4 + procedureBaseAmounts["36415"]
	}
}
