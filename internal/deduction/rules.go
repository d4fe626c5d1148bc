// Package deduction computes the Swedish mileage deduction (reseavdrag /
// milersättning) for one tax year from a set of trips and the user's
// financial settings. Everything here is pure: no I/O, no clock, no globals
// that change after start-up.
package deduction

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pkordes/korjournal/internal/domain"
)

// YearRule holds the figures that change with the tax year.
// A rule applies from FromYear until the next rule in the table.
type YearRule struct {
	FromYear   int
	Threshold  decimal.Decimal // deduction only counts above this amount
	Skiktgrans decimal.Decimal // state income tax threshold
}

// Rules is the full parameter table for the calculator. The numbers are
// simplifications of the tax rules and change yearly, so they are data.
type Rules struct {
	// KmPerMil converts kilometres to Swedish mil.
	KmPerMil decimal.Decimal

	// RatePerMil is the schablon reimbursement per vehicle type.
	RatePerMil map[domain.VehicleType]decimal.Decimal

	// StateTaxMargin is added to the skiktgräns before state tax is assumed.
	// It stands in for the phase-out of the basic deduction.
	StateTaxMargin decimal.Decimal

	// StateTaxRate is added to the municipal rate for state-tax payers.
	StateTaxRate decimal.Decimal

	// Years must contain at least one entry; order does not matter.
	Years []YearRule
}

// DefaultRules returns the defaults table.
func DefaultRules() Rules {
	return Rules{
		KmPerMil: decimal.NewFromInt(10),
		RatePerMil: map[domain.VehicleType]decimal.Decimal{
			domain.VehicleOwnCar:             decimal.NewFromInt(25),
			domain.VehicleCompanyCarElectric: decimal.RequireFromString("9.5"),
			domain.VehicleCompanyCarFossil:   decimal.NewFromInt(12),
		},
		StateTaxMargin: decimal.NewFromInt(100000),
		StateTaxRate:   decimal.RequireFromString("0.20"),
		Years: []YearRule{
			{FromYear: 0, Threshold: decimal.NewFromInt(11000), Skiktgrans: decimal.NewFromInt(625800)},
			{FromYear: 2026, Threshold: decimal.NewFromInt(15000), Skiktgrans: decimal.NewFromInt(643000)},
		},
	}
}

// WithKmPerMil returns a copy of r using the given conversion factor.
// Non-positive values are ignored.
func (r Rules) WithKmPerMil(km float64) Rules {
	if km > 0 {
		r.KmPerMil = decimal.NewFromFloat(km)
	}
	return r
}

// forYear returns the rule with the highest FromYear not after year.
func (r Rules) forYear(year int) YearRule {
	years := make([]YearRule, len(r.Years))
	copy(years, r.Years)
	sort.Slice(years, func(i, j int) bool { return years[i].FromYear < years[j].FromYear })

	var rule YearRule
	for i, y := range years {
		if i == 0 || y.FromYear <= year {
			rule = y
		}
	}
	return rule
}

// rateFor looks up the schablon rate. Unknown types fall back to ownCar;
// settings are validated when they are written, not here.
func (r Rules) rateFor(v domain.VehicleType) decimal.Decimal {
	if rate, ok := r.RatePerMil[v]; ok {
		return rate
	}
	return r.RatePerMil[domain.VehicleOwnCar]
}
