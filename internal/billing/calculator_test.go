package billing

import (
	"errors"
	"math"
	"testing"

	"github.com/ems-hq/attendance/internal/models"
)

func ptr(v float64) *float64 { return &v }

func TestCalculateHourlyIsRateTimesHours(t *testing.T) {
	rates := []float64{0, 0.01, 1, 12.5, 37.25, 1000}
	hours := []float64{0, 0.25, 1, 7.5, 160}
	for _, r := range rates {
		for _, h := range hours {
			res := Calculate(ProjectBilling{Method: models.BillingMethodHourly, Rate: ptr(r)}, Quantities{HoursWorked: h})
			if res.Warning != nil {
				t.Fatalf("rate=%v hours=%v: unexpected warning %v", r, h, res.Warning)
			}
			if res.Amount != r*h {
				t.Fatalf("rate=%v hours=%v: expected %v, got %v", r, h, r*h, res.Amount)
			}
		}
	}
}

func TestCalculateCountMethodsUseTheirQuantity(t *testing.T) {
	q := Quantities{HoursWorked: 8, RecordCount: 300, CharacterCount: 5000, TasksCompleted: 4}
	cases := []struct {
		method models.BillingMethod
		want   float64
	}{
		{models.BillingMethodRecordCount, 300 * 0.5},
		{models.BillingMethodCharacterCount, 5000 * 0.5},
		{models.BillingMethodTaskCompletion, 4 * 0.5},
	}
	for _, tc := range cases {
		t.Run(string(tc.method), func(t *testing.T) {
			res := Calculate(ProjectBilling{Method: tc.method, Rate: ptr(0.5)}, q)
			if res.Warning != nil {
				t.Fatalf("unexpected warning: %v", res.Warning)
			}
			if res.Amount != tc.want || res.Basis != BasisRate {
				t.Fatalf("expected %v via rate, got %v via %s", tc.want, res.Amount, res.Basis)
			}
		})
	}
}

func TestCalculateDivisorMultiplier(t *testing.T) {
	cases := []struct {
		name       string
		divisor    float64
		multiplier float64
		quantity   float64
		want       float64
		wantErr    error
	}{
		{name: "per thousand", divisor: 1000, multiplier: 4.85, quantity: 2000, want: (2000.0 / 1000) * 4.85},
		{name: "fractional", divisor: 3, multiplier: 2, quantity: 10, want: (10.0 / 3) * 2},
		{name: "zero divisor", divisor: 0, multiplier: 4.85, quantity: 2000, want: 0, wantErr: ErrArithmeticDegenerate},
		{name: "zero quantity", divisor: 1000, multiplier: 4.85, quantity: 0, want: 0},
		{name: "negative quantity", divisor: 1000, multiplier: 4.85, quantity: -5, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := ProjectBilling{
				Method:           models.BillingMethodRecordCount,
				MetricDivisor:    ptr(tc.divisor),
				MetricMultiplier: ptr(tc.multiplier),
			}
			res := Calculate(cfg, Quantities{RecordCount: tc.quantity})
			if math.Abs(res.Amount-tc.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.want, res.Amount)
			}
			if tc.wantErr == nil && res.Warning != nil {
				t.Fatalf("unexpected warning: %v", res.Warning)
			}
			if tc.wantErr != nil && !errors.Is(res.Warning, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, res.Warning)
			}
		})
	}
}

func TestCalculateFormula(t *testing.T) {
	formula := "(record_count/1000)*4.85"
	res := Calculate(ProjectBilling{Method: models.BillingMethodCustomFormula, Formula: formula}, Quantities{RecordCount: 2000})
	if res.Warning != nil {
		t.Fatalf("unexpected warning: %v", res.Warning)
	}
	if math.Abs(res.Amount-9.70) > 1e-9 || res.Basis != BasisFormula {
		t.Fatalf("expected 9.70 via formula, got %v via %s", res.Amount, res.Basis)
	}
}

func TestCalculateFormulaOverridesAnyMethod(t *testing.T) {
	cfg := ProjectBilling{Method: models.BillingMethodHourly, Rate: ptr(10), Formula: "hours_worked * 12 + tasks_completed"}
	res := Calculate(cfg, Quantities{HoursWorked: 2, TasksCompleted: 1})
	if res.Amount != 25 || res.Basis != BasisFormula {
		t.Fatalf("expected 25 via formula, got %v via %s", res.Amount, res.Basis)
	}
}

func TestCalculateRejectedFormulaFallsBackToRate(t *testing.T) {
	cfg := ProjectBilling{Method: models.BillingMethodRecordCount, Rate: ptr(0.5), Formula: "__import__('os')"}
	res := Calculate(cfg, Quantities{RecordCount: 2000})
	if !errors.Is(res.Warning, ErrInvalidFormula) {
		t.Fatalf("expected ErrInvalidFormula, got %v", res.Warning)
	}
	if res.Amount != 1000 || res.Basis != BasisFallback {
		t.Fatalf("expected fallback 1000, got %v via %s", res.Amount, res.Basis)
	}
}

func TestCalculateFailingFormulaWithoutRate(t *testing.T) {
	cfg := ProjectBilling{Method: models.BillingMethodCustomFormula, Formula: "record_count / 0"}
	res := Calculate(cfg, Quantities{RecordCount: 10})
	if res.Amount != 0 {
		t.Fatalf("expected 0, got %v", res.Amount)
	}
	if !errors.Is(res.Warning, ErrInvalidFormula) || !errors.Is(res.Warning, ErrInvalidConfiguration) {
		t.Fatalf("expected both formula and configuration warnings, got %v", res.Warning)
	}
}

func TestCalculateDegenerateInputsNeverFail(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ProjectBilling
		q       Quantities
		wantErr error
	}{
		{name: "missing rate", cfg: ProjectBilling{Method: models.BillingMethodHourly}, q: Quantities{HoursWorked: 8}, wantErr: ErrInvalidConfiguration},
		{name: "negative rate", cfg: ProjectBilling{Method: models.BillingMethodHourly, Rate: ptr(-3)}, q: Quantities{HoursWorked: 8}, wantErr: ErrInvalidConfiguration},
		{name: "negative quantity", cfg: ProjectBilling{Method: models.BillingMethodHourly, Rate: ptr(3)}, q: Quantities{HoursWorked: -8}},
		{name: "nan quantity", cfg: ProjectBilling{Method: models.BillingMethodHourly, Rate: ptr(3)}, q: Quantities{HoursWorked: math.NaN()}},
		{name: "unknown method", cfg: ProjectBilling{Method: "count_based", Rate: ptr(3)}, q: Quantities{RecordCount: 8}, wantErr: ErrInvalidConfiguration},
		{name: "custom formula without formula", cfg: ProjectBilling{Method: models.BillingMethodCustomFormula}, q: Quantities{RecordCount: 8}, wantErr: ErrInvalidConfiguration},
		{name: "negative formula result", cfg: ProjectBilling{Method: models.BillingMethodHourly, Formula: "hours_worked - 10"}, q: Quantities{HoursWorked: 2}},
		{name: "missing multiplier", cfg: ProjectBilling{Method: models.BillingMethodTaskCompletion, MetricDivisor: ptr(2)}, q: Quantities{TasksCompleted: 8}, wantErr: ErrInvalidConfiguration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Calculate(tc.cfg, tc.q)
			if res.Amount != 0 {
				t.Fatalf("expected 0, got %v", res.Amount)
			}
			if tc.wantErr != nil && !errors.Is(res.Warning, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, res.Warning)
			}
			if tc.wantErr == nil && res.Warning != nil {
				t.Fatalf("unexpected warning: %v", res.Warning)
			}
		})
	}
}

func TestQuantitiesFromReport(t *testing.T) {
	report := &models.WorkReport{Quantity: 120, TasksCompleted: ptr(3)}

	got := QuantitiesFromReport(models.BillingMethodRecordCount, report)
	want := Quantities{RecordCount: 120, TasksCompleted: 3}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	got = QuantitiesFromReport(models.BillingMethodHourly, &models.WorkReport{Quantity: 6, HoursWorked: ptr(7)})
	if got.HoursWorked != 7 {
		t.Fatalf("explicit hours should override quantity, got %+v", got)
	}
}
