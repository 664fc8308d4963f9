package billing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ems-hq/attendance/internal/models"
)

// Quantities holds the measured work for one pricing call. Every field may be zero.
type Quantities struct {
	HoursWorked    float64 `json:"hours_worked"`
	RecordCount    float64 `json:"record_count"`
	CharacterCount float64 `json:"character_count"`
	TasksCompleted float64 `json:"tasks_completed"`
}

// Add returns the field-wise sum of q and other.
func (q Quantities) Add(other Quantities) Quantities {
	return Quantities{
		HoursWorked:    q.HoursWorked + other.HoursWorked,
		RecordCount:    q.RecordCount + other.RecordCount,
		CharacterCount: q.CharacterCount + other.CharacterCount,
		TasksCompleted: q.TasksCompleted + other.TasksCompleted,
	}
}

// ForMethod returns the quantity a billing method prices. Custom formula projects fall back to
// the record count, which is what their report quantity carries.
func (q Quantities) ForMethod(method models.BillingMethod) float64 {
	switch method {
	case models.BillingMethodHourly:
		return q.HoursWorked
	case models.BillingMethodCharacterCount:
		return q.CharacterCount
	case models.BillingMethodTaskCompletion:
		return q.TasksCompleted
	default:
		return q.RecordCount
	}
}

// Variables binds q to the formula variable names.
func (q Quantities) Variables() map[string]float64 {
	return map[string]float64{
		VarHoursWorked:    q.HoursWorked,
		VarRecordCount:    q.RecordCount,
		VarCharacterCount: q.CharacterCount,
		VarTasksCompleted: q.TasksCompleted,
	}
}

// QuantitiesFromReport maps a work report onto Quantities. The report quantity lands on the
// measure of the project's method; explicitly reported per-kind metrics override it.
func QuantitiesFromReport(method models.BillingMethod, report *models.WorkReport) Quantities {
	var q Quantities
	if report == nil {
		return q
	}
	switch method {
	case models.BillingMethodHourly:
		q.HoursWorked = report.Quantity
	case models.BillingMethodCharacterCount:
		q.CharacterCount = report.Quantity
	case models.BillingMethodTaskCompletion:
		q.TasksCompleted = report.Quantity
	default:
		q.RecordCount = report.Quantity
	}
	if report.HoursWorked != nil {
		q.HoursWorked = *report.HoursWorked
	}
	if report.RecordCount != nil {
		q.RecordCount = *report.RecordCount
	}
	if report.CharacterCount != nil {
		q.CharacterCount = *report.CharacterCount
	}
	if report.TasksCompleted != nil {
		q.TasksCompleted = *report.TasksCompleted
	}
	return q
}

// ProjectBilling is the billing configuration of one project.
type ProjectBilling struct {
	Method           models.BillingMethod
	Rate             *float64
	Formula          string
	MetricDivisor    *float64
	MetricMultiplier *float64

	// FormulaMaxLength overrides DefaultFormulaMaxLength when positive.
	FormulaMaxLength int
}

// ProjectBillingFrom extracts the billing configuration of p.
func ProjectBillingFrom(p *models.Project) ProjectBilling {
	if p == nil {
		return ProjectBilling{}
	}
	cfg := ProjectBilling{
		Method:           p.BillingMethod,
		Rate:             p.BillingRate,
		MetricDivisor:    p.MetricDivisor,
		MetricMultiplier: p.MetricMultiplier,
	}
	if p.BillingFormula != nil {
		cfg.Formula = *p.BillingFormula
	}
	return cfg
}

// usesMetric reports whether the divisor/multiplier variant prices the work.
func (cfg ProjectBilling) usesMetric() bool {
	return cfg.Method.IsCountBased() && (cfg.MetricDivisor != nil || cfg.MetricMultiplier != nil)
}

// Basis names the rule that produced an amount.
type Basis string

// Basis constants.
const (
	BasisRate     Basis = "rate"
	BasisFormula  Basis = "formula"
	BasisMetric   Basis = "metric"
	BasisFallback Basis = "fallback"
	BasisNone     Basis = "none"
)

// Result is the outcome of pricing one quantity set.
type Result struct {
	Amount  float64 // Never negative, never NaN.
	Basis   Basis   // Rule that produced Amount.
	Warning error   // Recoverable diagnostic; Amount is still usable when set.
}

// Calculate prices q under cfg. It never fails: malformed formulas fall back to quantity × rate,
// missing or negative configuration yields 0, and each degradation is reported in Warning.
func Calculate(cfg ProjectBilling, q Quantities) Result {
	if !cfg.Method.Valid() {
		return Result{
			Basis:   BasisNone,
			Warning: fmt.Errorf("%w: unknown billing method %q", ErrInvalidConfiguration, cfg.Method),
		}
	}

	quantity := q.ForMethod(cfg.Method)
	formula := strings.TrimSpace(cfg.Formula)
	if formula != "" {
		maxLen := cfg.FormulaMaxLength
		if maxLen <= 0 {
			maxLen = DefaultFormulaMaxLength
		}
		amount, errEval := evaluate(formula, maxLen, q)
		if errEval == nil {
			return Result{Amount: nonNegative(amount), Basis: BasisFormula}
		}
		fallback := rateAmount(cfg.Rate, quantity)
		return Result{
			Amount:  fallback.Amount,
			Basis:   BasisFallback,
			Warning: errors.Join(errEval, fallback.Warning),
		}
	}

	if cfg.Method == models.BillingMethodCustomFormula {
		fallback := rateAmount(cfg.Rate, quantity)
		return Result{
			Amount:  fallback.Amount,
			Basis:   BasisFallback,
			Warning: errors.Join(fmt.Errorf("%w: custom_formula project has no formula", ErrInvalidConfiguration), fallback.Warning),
		}
	}

	if cfg.usesMetric() {
		return metricAmount(cfg.MetricDivisor, cfg.MetricMultiplier, quantity)
	}
	return rateAmount(cfg.Rate, quantity)
}

func evaluate(src string, maxLen int, q Quantities) (float64, error) {
	f, errParse := ParseFormulaLimit(src, maxLen)
	if errParse != nil {
		return 0, errParse
	}
	return f.Eval(q.Variables())
}

// rateAmount returns quantity × rate, or 0 when either side is missing or not positive.
func rateAmount(rate *float64, quantity float64) Result {
	if rate == nil {
		return Result{Basis: BasisNone, Warning: fmt.Errorf("%w: billing rate is not set", ErrInvalidConfiguration)}
	}
	if !isFinite(*rate) || *rate < 0 {
		return Result{Basis: BasisNone, Warning: fmt.Errorf("%w: billing rate %v is negative", ErrInvalidConfiguration, *rate)}
	}
	if !isFinite(quantity) || quantity <= 0 || *rate == 0 {
		return Result{Basis: BasisRate}
	}
	return Result{Amount: quantity * *rate, Basis: BasisRate}
}

// metricAmount returns (quantity / divisor) × multiplier with a zero divisor degrading to 0.
func metricAmount(divisor, multiplier *float64, quantity float64) Result {
	if multiplier == nil || !isFinite(*multiplier) || *multiplier < 0 {
		return Result{Basis: BasisNone, Warning: fmt.Errorf("%w: metric multiplier is not set", ErrInvalidConfiguration)}
	}
	if divisor == nil || *divisor == 0 {
		return Result{Basis: BasisMetric, Warning: fmt.Errorf("%w: metric divisor is zero", ErrArithmeticDegenerate)}
	}
	if !isFinite(*divisor) || *divisor < 0 {
		return Result{Basis: BasisNone, Warning: fmt.Errorf("%w: metric divisor %v is negative", ErrInvalidConfiguration, *divisor)}
	}
	if !isFinite(quantity) || quantity <= 0 {
		return Result{Basis: BasisMetric}
	}
	return Result{Amount: nonNegative((quantity / *divisor) * *multiplier), Basis: BasisMetric}
}

func nonNegative(v float64) float64 {
	if !isFinite(v) || v < 0 {
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
