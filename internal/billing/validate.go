package billing

import (
	"fmt"
	"strings"

	"github.com/ems-hq/attendance/internal/models"
)

// legacyCountBased is the pre-split name of the record count method.
const legacyCountBased = "count_based"

// NormalizeMethod lowercases raw and maps the legacy "count_based" name onto record_count.
func NormalizeMethod(raw string) models.BillingMethod {
	method := strings.ToLower(strings.TrimSpace(raw))
	if method == legacyCountBased {
		return models.BillingMethodRecordCount
	}
	return models.BillingMethod(method)
}

// NormalizeProjectBilling checks cfg before it is saved on a project and clears the fields the
// method does not use:
//
//   - hourly needs a rate; formula and divisor/multiplier are dropped.
//   - count methods need a rate or a complete divisor/multiplier pair; the formula is dropped, and
//     so is the rate when the pair is set.
//   - custom_formula needs a formula that parses; the rate stays as fallback, the pair is dropped.
//
// Rates and multipliers must be finite and non-negative, divisors finite and positive.
func NormalizeProjectBilling(cfg ProjectBilling) (ProjectBilling, error) {
	out := cfg
	out.Method = NormalizeMethod(string(cfg.Method))
	out.Formula = strings.TrimSpace(cfg.Formula)
	if !out.Method.Valid() {
		return ProjectBilling{}, fmt.Errorf("%w: unknown billing method %q", ErrInvalidConfiguration, cfg.Method)
	}
	if out.Rate != nil && (!isFinite(*out.Rate) || *out.Rate < 0) {
		return ProjectBilling{}, fmt.Errorf("%w: billing rate must be a non-negative number", ErrInvalidConfiguration)
	}
	if out.MetricDivisor != nil && (!isFinite(*out.MetricDivisor) || *out.MetricDivisor <= 0) {
		return ProjectBilling{}, fmt.Errorf("%w: metric divisor must be greater than zero", ErrInvalidConfiguration)
	}
	if out.MetricMultiplier != nil && (!isFinite(*out.MetricMultiplier) || *out.MetricMultiplier < 0) {
		return ProjectBilling{}, fmt.Errorf("%w: metric multiplier must be a non-negative number", ErrInvalidConfiguration)
	}

	switch {
	case out.Method == models.BillingMethodHourly:
		out.Formula = ""
		out.MetricDivisor, out.MetricMultiplier = nil, nil
		if out.Rate == nil {
			return ProjectBilling{}, fmt.Errorf("%w: hourly projects need a billing rate", ErrInvalidConfiguration)
		}
	case out.Method.IsCountBased():
		out.Formula = ""
		if (out.MetricDivisor == nil) != (out.MetricMultiplier == nil) {
			return ProjectBilling{}, fmt.Errorf("%w: metric divisor and multiplier must be set together", ErrInvalidConfiguration)
		}
		if out.Rate == nil && out.MetricDivisor == nil {
			return ProjectBilling{}, fmt.Errorf("%w: %s projects need a billing rate or a divisor and multiplier", ErrInvalidConfiguration, out.Method)
		}
		if out.MetricDivisor != nil {
			out.Rate = nil
		}
	case out.Method == models.BillingMethodCustomFormula:
		out.MetricDivisor, out.MetricMultiplier = nil, nil
		if out.Formula == "" {
			return ProjectBilling{}, fmt.Errorf("%w: custom_formula projects need a formula", ErrInvalidConfiguration)
		}
		maxLen := out.FormulaMaxLength
		if maxLen <= 0 {
			maxLen = DefaultFormulaMaxLength
		}
		parsed, errParse := ParseFormulaLimit(out.Formula, maxLen)
		if errParse != nil {
			return ProjectBilling{}, errParse
		}
		out.Formula = parsed.String()
	}
	return out, nil
}

// ApplyTo writes cfg onto the billing columns of p.
func (cfg ProjectBilling) ApplyTo(p *models.Project) {
	p.BillingMethod = cfg.Method
	p.BillingRate = cfg.Rate
	p.MetricDivisor = cfg.MetricDivisor
	p.MetricMultiplier = cfg.MetricMultiplier
	if cfg.Formula == "" {
		p.BillingFormula = nil
	} else {
		formula := cfg.Formula
		p.BillingFormula = &formula
	}
	if !cfg.Method.IsCountBased() {
		p.MetricLabel = nil
	}
}
