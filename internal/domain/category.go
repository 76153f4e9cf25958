// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of the architecture: it depends on nothing
// but the money and ID value types.
package domain

import "fmt"

// ─── Direction ──────────────────────────────────────────────────────────────

// Direction indicates whether cash moves into or out of the business.
type Direction int

const (
	Inflow Direction = iota
	Outflow
)

// String returns the canonical direction label.
func (d Direction) String() string {
	switch d {
	case Inflow:
		return "inflow"
	case Outflow:
		return "outflow"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "inflow":
		*d = Inflow
	case "outflow":
		*d = Outflow
	default:
		return fmt.Errorf("%w: direction %q", ErrUnknownCategory, text)
	}
	return nil
}

// ─── Category ───────────────────────────────────────────────────────────────

// Category is one of the closed set of cash-flow categories: 4 inflow kinds
// and 12 outflow kinds. The enumeration is closed; adjustment matching and
// confidence aggregation iterate over exactly these sixteen values.
type Category int

const (
	// Inflows
	Revenue Category = iota
	ARCollections
	InvestmentIncome
	OtherIncome

	// Outflows
	COGS
	Payroll
	Rent
	Marketing
	Technology
	APPayments
	Insurance
	Utilities
	ProfessionalServices
	Travel
	OfficeSupplies
	OtherExpenses
)

// categoryNames maps each category to its canonical snake_case name.
var categoryNames = map[Category]string{
	Revenue:              "revenue",
	ARCollections:        "ar_collections",
	InvestmentIncome:     "investment_income",
	OtherIncome:          "other_income",
	COGS:                 "cogs",
	Payroll:              "payroll",
	Rent:                 "rent",
	Marketing:            "marketing",
	Technology:           "technology",
	APPayments:           "ap_payments",
	Insurance:            "insurance",
	Utilities:            "utilities",
	ProfessionalServices: "professional_services",
	Travel:               "travel",
	OfficeSupplies:       "office_supplies",
	OtherExpenses:        "other_expenses",
}

// categoryKeys maps each category to its enum key, accepted as an alias
// when matching manual adjustments.
var categoryKeys = map[Category]string{
	Revenue:              "REVENUE",
	ARCollections:        "AR_COLLECTIONS",
	InvestmentIncome:     "INVESTMENT_INCOME",
	OtherIncome:          "OTHER_INCOME",
	COGS:                 "COGS",
	Payroll:              "PAYROLL",
	Rent:                 "RENT",
	Marketing:            "MARKETING",
	Technology:           "TECHNOLOGY",
	APPayments:           "AP_PAYMENTS",
	Insurance:            "INSURANCE",
	Utilities:            "UTILITIES",
	ProfessionalServices: "PROFESSIONAL_SERVICES",
	Travel:               "TRAVEL",
	OfficeSupplies:       "OFFICE_SUPPLIES",
	OtherExpenses:        "OTHER_EXPENSES",
}

// String returns the canonical snake_case name.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// Key returns the SCREAMING_SNAKE enum key.
func (c Category) Key() string {
	if key, ok := categoryKeys[c]; ok {
		return key
	}
	return "UNKNOWN"
}

// Direction returns which side of the cash flow this category sits on.
func (c Category) Direction() Direction {
	if c <= OtherIncome {
		return Inflow
	}
	return Outflow
}

// IsFixedCost reports whether the category typically bills a constant
// amount per period (rent-like, insurance-like).
func (c Category) IsFixedCost() bool {
	return c == Rent || c == Insurance
}

// Valid reports whether c is one of the sixteen canonical categories.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// MarshalText implements encoding.TextMarshaler, so categories serialize
// to their canonical names both as JSON values and as JSON map keys.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: category %d", ErrUnknownCategory, int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Both the canonical
// name and the enum key are accepted.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, ok := ParseCategory(string(text))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, text)
	}
	*c = parsed
	return nil
}

// ParseCategory resolves a canonical name ("ar_collections") or an enum
// key ("AR_COLLECTIONS") to its Category.
func ParseCategory(s string) (Category, bool) {
	for c, name := range categoryNames {
		if s == name || s == categoryKeys[c] {
			return c, true
		}
	}
	return Category(-1), false
}

// Categories returns all sixteen categories in declaration order.
func Categories() []Category {
	return []Category{
		Revenue, ARCollections, InvestmentIncome, OtherIncome,
		COGS, Payroll, Rent, Marketing, Technology, APPayments,
		Insurance, Utilities, ProfessionalServices, Travel,
		OfficeSupplies, OtherExpenses,
	}
}

// InflowCategories returns the four inflow categories in order.
func InflowCategories() []Category {
	return []Category{Revenue, ARCollections, InvestmentIncome, OtherIncome}
}

// OutflowCategories returns the twelve outflow categories in order.
func OutflowCategories() []Category {
	return []Category{
		COGS, Payroll, Rent, Marketing, Technology, APPayments,
		Insurance, Utilities, ProfessionalServices, Travel,
		OfficeSupplies, OtherExpenses,
	}
}
