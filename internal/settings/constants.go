package settings

// DB config keys and defaults for settings.
const (
	// CompanyNameKey is the display name of the company.
	CompanyNameKey = "COMPANY_NAME"
	// DefaultCompanyName is the fallback company name.
	DefaultCompanyName = "Company"
	// BillingCurrencyKey overrides the currency stamped on new billing records.
	BillingCurrencyKey = "BILLING_CURRENCY"
	// AttendanceAutoCloseHoursKey closes attendance records left open longer than this many
	// hours. Zero disables auto-closing.
	AttendanceAutoCloseHoursKey = "ATTENDANCE_AUTO_CLOSE_HOURS"
	// DefaultAttendanceAutoCloseHours is the fallback auto-close threshold.
	DefaultAttendanceAutoCloseHours = 16
)

// valueKind is the JSON type a known setting must hold.
type valueKind int

const (
	kindString valueKind = iota
	kindNonNegativeInt
	kindCurrency
)

// knownKeys lists every setting the API accepts.
var knownKeys = map[string]valueKind{
	CompanyNameKey:              kindString,
	BillingCurrencyKey:          kindCurrency,
	AttendanceAutoCloseHoursKey: kindNonNegativeInt,
}
