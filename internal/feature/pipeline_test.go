package feature

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

func makeClaims(n int) []*domain.Claim {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	diagnoses := []string{"E11.9", "I10", "J18.9", "K35.80"}
	procedures := []string{"99213", "99214", "47562", "70450"}
	locations := []string{"IL", "TX", "CA"}
	genders := []string{"F", "M"}

	claims := make([]*domain.Claim, n)
	for i := 0; i < n; i++ {
		claims[i] = &domain.Claim{
			ID:               fmt.Sprintf("CLM_%04d", i),
			PatientID:        fmt.Sprintf("PAT_%04d", i%7),
			ProviderID:       fmt.Sprintf("PROV_%04d", i%3),
			DiagnosisCode:    diagnoses[i%len(diagnoses)],
			ProcedureCode:    procedures[i%len(procedures)],
			PatientAge:       20 + i%60,
			PatientGender:    genders[i%len(genders)],
			PatientLocation:  locations[i%len(locations)],
			ProviderLocation: locations[(i+1)%len(locations)],
			Amount:           100 + float64(i)*37.5,
			ClaimDate:        base.Add(time.Duration(i) * 3 * time.Hour),
		}
	}
	return claims
}

func TestPipelineFitTransform(t *testing.T) {
	claims := makeClaims(40)

	t.Run("FitProducesMatrix", func(t *testing.T) {
		p := NewPipeline()
		x, err := p.Fit(claims)
		if err != nil {
			t.Fatalf("fit failed: %v", err)
		}
		if !p.Fitted {
			t.Error("expected pipeline fitted after Fit")
		}
		if len(x) != len(claims) {
			t.Errorf("expected %d rows, got %d", len(claims), len(x))
		}
		if len(p.Columns) == 0 {
			t.Fatal("expected columns in schema")
		}
		for i, row := range x {
			if len(row) != len(p.Columns) {
				t.Fatalf("row %d has %d columns, schema has %d", i, len(row), len(p.Columns))
			}
		}
	})

	t.Run("TransformMatchesSchema", func(t *testing.T) {
		p := NewPipeline()
		if _, err := p.Fit(claims); err != nil {
			t.Fatalf("fit failed: %v", err)
		}

		x, err := p.Transform(claims[:10])
		if err != nil {
			t.Fatalf("transform failed: %v", err)
		}
		if len(x) != 10 {
			t.Errorf("expected 10 rows, got %d", len(x))
		}
		if len(x[0]) != len(p.Columns) {
			t.Errorf("expected %d columns, got %d", len(p.Columns), len(x[0]))
		}
	})

	t.Run("TransformBeforeFitFails", func(t *testing.T) {
		p := NewPipeline()
		if _, err := p.Transform(claims); err == nil {
			t.Error("expected error transforming with unfitted pipeline")
		}
	})

	t.Run("EmptyBatchRejected", func(t *testing.T) {
		p := NewPipeline()
		if _, err := p.Fit(nil); err == nil {
			t.Error("expected error fitting on empty batch")
		}
		if _, err := p.Fit(claims); err != nil {
			t.Fatalf("fit failed: %v", err)
		}
		if _, err := p.Transform(nil); err == nil {
			t.Error("expected error transforming empty batch")
		}
	})

	t.Run("UnseenCategoryDoesNotFail", func(t *testing.T) {
		p := NewPipeline()
		if _, err := p.Fit(claims); err != nil {
			t.Fatalf("fit failed: %v", err)
		}

		unseen := makeClaims(5)
		for _, c := range unseen {
			c.DiagnosisCode = "Z99.89"
			c.ProcedureCode = "00000"
		}
		if _, err := p.Transform(unseen); err != nil {
			t.Errorf("expected unseen categories to encode, got %v", err)
		}
	})

	t.Run("DeterministicAcrossPipelines", func(t *testing.T) {
		p1 := NewPipeline()
		p2 := NewPipeline()
		x1, err := p1.Fit(claims)
		if err != nil {
			t.Fatalf("fit failed: %v", err)
		}
		x2, err := p2.Fit(claims)
		if err != nil {
			t.Fatalf("fit failed: %v", err)
		}

		if len(p1.Columns) != len(p2.Columns) {
			t.Fatalf("schema lengths differ: %d vs %d", len(p1.Columns), len(p2.Columns))
		}
		for i := range p1.Columns {
			if p1.Columns[i] != p2.Columns[i] {
				t.Fatalf("column %d differs: %s vs %s", i, p1.Columns[i], p2.Columns[i])
			}
		}
		for i := range x1 {
			for j := range x1[i] {
				if x1[i][j] != x2[i][j] {
					t.Fatalf("value (%d,%d) differs: %v vs %v", i, j, x1[i][j], x2[i][j])
				}
			}
		}
	})
}

func TestFrame(t *testing.T) {
	t.Run("DuplicateColumnIsNoOp", func(t *testing.T) {
		f := NewFrame(3)
		if err := f.AddColumn("a", []float64{1, 2, 3}); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if err := f.AddColumn("a", []float64{9, 9, 9}); err != nil {
			t.Fatalf("duplicate add failed: %v", err)
		}
		col, _ := f.Column("a")
		if col[0] != 1 {
			t.Errorf("expected original values preserved, got %v", col)
		}
		if len(f.Names()) != 1 {
			t.Errorf("expected 1 column, got %d", len(f.Names()))
		}
	})

	t.Run("WrongLengthRejected", func(t *testing.T) {
		f := NewFrame(3)
		if err := f.AddColumn("a", []float64{1, 2}); err == nil {
			t.Error("expected error for short column")
		}
	})

	t.Run("MatrixMissingColumn", func(t *testing.T) {
		f := NewFrame(2)
		f.AddColumn("a", []float64{1, 2})
		if _, err := f.Matrix("a", "b"); !errors.Is(err, ErrSchemaMismatch) {
			t.Errorf("expected schema mismatch, got %v", err)
		}
	})

	t.Run("MatrixRowMajor", func(t *testing.T) {
		f := NewFrame(2)
		f.AddColumn("a", []float64{1, 2})
		f.AddColumn("b", []float64{3, 4})
		x, err := f.Matrix()
		if err != nil {
			t.Fatalf("matrix failed: %v", err)
		}
		if x[0][0] != 1 || x[0][1] != 3 || x[1][0] != 2 || x[1][1] != 4 {
			t.Errorf("unexpected layout: %v", x)
		}
	})
}

func TestEngineer(t *testing.T) {
	claims := makeClaims(30)

	t.Run("DeriveIsIdempotent", func(t *testing.T) {
		e := NewEngineer()
		f := NewFrame(len(claims))
		if err := e.Derive(f, claims); err != nil {
			t.Fatalf("derive failed: %v", err)
		}
		first, err := f.Matrix()
		if err != nil {
			t.Fatalf("matrix failed: %v", err)
		}

		if err := e.Derive(f, claims); err != nil {
			t.Fatalf("second derive failed: %v", err)
		}
		second, err := f.Matrix()
		if err != nil {
			t.Fatalf("matrix failed: %v", err)
		}

		if len(first) != len(second) || len(first[0]) != len(second[0]) {
			t.Fatalf("dimensions changed: %dx%d vs %dx%d", len(first), len(first[0]), len(second), len(second[0]))
		}
		for i := range first {
			for j := range first[i] {
				if first[i][j] != second[i][j] {
					t.Fatalf("value (%d,%d) changed after re-derive", i, j)
				}
			}
		}
	})

	t.Run("AlignZeroFillsInInference", func(t *testing.T) {
		e := NewEngineer()
		f := NewFrame(3)
		x, err := e.Align(f, []string{"claim_amount"}, true)
		if err != nil {
			t.Fatalf("align failed: %v", err)
		}
		for i, row := range x {
			if row[0] != 0 {
				t.Errorf("row %d: expected zero fill, got %v", i, row[0])
			}
		}
	})

	t.Run("AlignFailsInTraining", func(t *testing.T) {
		e := NewEngineer()
		f := NewFrame(3)
		if _, err := e.Align(f, []string{"claim_amount"}, false); !errors.Is(err, ErrSchemaMismatch) {
			t.Errorf("expected schema mismatch, got %v", err)
		}
	})

	t.Run("AlignFailsOnUnknownColumn", func(t *testing.T) {
		e := NewEngineer()
		f := NewFrame(3)
		if _, err := e.Align(f, []string{"no_such_column"}, true); !errors.Is(err, ErrSchemaMismatch) {
			t.Errorf("expected schema mismatch, got %v", err)
		}
	})

	t.Run("DuplicateClaimFlag", func(t *testing.T) {
		day := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
		dup := []*domain.Claim{
			{ID: "1", PatientID: "P1", ProviderID: "V1", ProcedureCode: "99213", Amount: 100, ClaimDate: day},
			{ID: "2", PatientID: "P1", ProviderID: "V1", ProcedureCode: "99213", Amount: 120, ClaimDate: day.Add(2 * time.Hour)},
			{ID: "3", PatientID: "P2", ProviderID: "V1", ProcedureCode: "99213", Amount: 110, ClaimDate: day},
		}
		e := NewEngineer()
		f := NewFrame(len(dup))
		if err := e.Derive(f, dup); err != nil {
			t.Fatalf("derive failed: %v", err)
		}
		col, ok := f.Column("is_duplicate_claim")
		if !ok {
			t.Fatal("expected is_duplicate_claim column")
		}
		if col[0] != 1 || col[1] != 1 || col[2] != 0 {
			t.Errorf("expected [1 1 0], got %v", col)
		}
	})
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	cases := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 3},
		{100, 5},
		{25, 2},
	}
	for _, tc := range cases {
		if got := Percentile(values, tc.p); got != tc.want {
			t.Errorf("percentile %.0f: expected %v, got %v", tc.p, tc.want, got)
		}
	}

	if got := Percentile(nil, 50); got != 0 {
		t.Errorf("expected 0 for empty input, got %v", got)
	}
}
