package feature

import (
	"fmt"

	"github.com/opensource-health/heron/internal/domain"
)

// categorical columns encoded on top of the derived numeric columns.
var categoricals = []struct {
	name    string
	extract func(*domain.Claim) string
}{
	{"diagnosis_code_encoded", func(c *domain.Claim) string { return c.DiagnosisCode }},
	{"procedure_code_encoded", func(c *domain.Claim) string { return c.ProcedureCode }},
	{"provider_location_encoded", func(c *domain.Claim) string { return c.ProviderLocation }},
	{"patient_gender_encoded", func(c *domain.Claim) string { return c.PatientGender }},
}

// Pipeline is the fitted claims-to-features transformation: derived
// columns, categorical encoders, and a standard scaler, bound to the
// column schema seen at fit time. Exported fields are gob-serialized.
type Pipeline struct {
	Scaler   *StandardScaler
	Encoders map[string]*Encoder
	Columns  []string
	Fitted   bool

	engineer *Engineer
}

// NewPipeline creates an unfitted pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Scaler:   &StandardScaler{},
		Encoders: make(map[string]*Encoder),
		engineer: NewEngineer(),
	}
}

// Fit derives and encodes features from the claims, fits the scaler,
// and locks the column schema.
func (p *Pipeline) Fit(claims []*domain.Claim) ([][]float64, error) {
	if len(claims) == 0 {
		return nil, fmt.Errorf("pipeline: no claims to fit on")
	}
	p.ensureEngineer()
	frame := NewFrame(len(claims))
	if err := p.engineer.Derive(frame, claims); err != nil {
		return nil, err
	}
	for _, cat := range categoricals {
		values := make([]string, len(claims))
		for i, c := range claims {
			values[i] = cat.extract(c)
		}
		enc := &Encoder{}
		enc.Fit(values)
		p.Encoders[cat.name] = enc
		if err := frame.AddColumn(cat.name, enc.Transform(values)); err != nil {
			return nil, err
		}
	}
	p.Columns = frame.Names()
	raw, err := frame.Matrix(p.Columns...)
	if err != nil {
		return nil, err
	}
	scaled, err := p.Scaler.FitTransform(raw)
	if err != nil {
		return nil, err
	}
	p.Fitted = true
	return scaled, nil
}

// Transform applies the fitted transformation to a new claim batch.
// Columns from the fit-time schema that cannot be produced are a
// schema error; derivable-but-absent columns are zero-filled.
func (p *Pipeline) Transform(claims []*domain.Claim) ([][]float64, error) {
	if !p.Fitted {
		return nil, fmt.Errorf("pipeline: not fitted")
	}
	if len(claims) == 0 {
		return nil, fmt.Errorf("pipeline: no claims to transform")
	}
	p.ensureEngineer()
	frame := NewFrame(len(claims))
	if err := p.engineer.Derive(frame, claims); err != nil {
		return nil, err
	}
	for _, cat := range categoricals {
		enc, ok := p.Encoders[cat.name]
		if !ok {
			return nil, fmt.Errorf("%w: no encoder for column %q", ErrSchemaMismatch, cat.name)
		}
		values := make([]string, len(claims))
		for i, c := range claims {
			values[i] = cat.extract(c)
		}
		if err := frame.AddColumn(cat.name, enc.Transform(values)); err != nil {
			return nil, err
		}
	}
	raw, err := p.engineer.Align(frame, p.Columns, true)
	if err != nil {
		return nil, err
	}
	return p.Scaler.Transform(raw)
}

func (p *Pipeline) ensureEngineer() {
	if p.engineer == nil {
		p.engineer = NewEngineer()
	}
}
