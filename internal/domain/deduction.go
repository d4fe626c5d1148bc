package domain

import "github.com/shopspring/decimal"

// VehicleType decides which statutory rate per mil applies and whether the
// running cost is computed from fuel or electricity.
type VehicleType string

const (
	VehicleOwnCar             VehicleType = "ownCar"
	VehicleCompanyCarElectric VehicleType = "companyCarElectric"
	VehicleCompanyCarFossil   VehicleType = "companyCarFossil"
)

// Valid reports whether v is one of the known vehicle types.
func (v VehicleType) Valid() bool {
	switch v {
	case VehicleOwnCar, VehicleCompanyCarElectric, VehicleCompanyCarFossil:
		return true
	}
	return false
}

// DeductionSettings are the user-supplied financial parameters for the
// mileage deduction calculation.
type DeductionSettings struct {
	VehicleType            VehicleType
	MonthlySalary          decimal.Decimal
	MunicipalTaxRate       decimal.Decimal // percent, e.g. 32.4
	EVKwhPerMil            decimal.Decimal
	ElectricityPricePerKwh decimal.Decimal
	FuelLPerMil            decimal.Decimal
	FuelPricePerL          decimal.Decimal

	// PurposeFilter selects trips by purpose substring (case-insensitive).
	// Empty means "all business trips".
	PurposeFilter string
}

// DefaultDeductionSettings is used when nothing has been saved yet.
func DefaultDeductionSettings() DeductionSettings {
	return DeductionSettings{VehicleType: VehicleOwnCar}
}

// DeductionReport is the computed mileage deduction for one tax year.
// Amounts are unrounded; presentation layers round for display.
// The per-mil figures are nil when no distance was driven.
type DeductionReport struct {
	Year      int
	TripCount int
	Days      int
	TotalKm   decimal.Decimal
	TotalMil  decimal.Decimal

	FirstOdometerKm *float64
	LastOdometerKm  *float64

	RatePerMil         decimal.Decimal
	ReimbursementTotal decimal.Decimal
	Threshold          decimal.Decimal
	DeductibleAmount   decimal.Decimal

	AnnualSalary decimal.Decimal
	StateTax     bool
	MarginalRate decimal.Decimal
	TaxSaving    decimal.Decimal

	RunningCost decimal.Decimal
	NetEffect   decimal.Decimal

	RunningCostPerMil *decimal.Decimal
	NetEffectPerMil   *decimal.Decimal
}
