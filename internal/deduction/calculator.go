package deduction

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pkordes/korjournal/internal/domain"
)

// Calculator turns a year of trips into a domain.DeductionReport.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	rules Rules
	loc   *time.Location
}

// NewCalculator builds a Calculator. Calendar years and days are evaluated
// in loc; a nil loc means UTC.
func NewCalculator(rules Rules, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{rules: rules, loc: loc}
}

// Calculate computes the report for year. It never fails: an empty or
// zero-distance year yields a report with zero amounts and nil per-mil figures.
func (c *Calculator) Calculate(trips []domain.Trip, s domain.DeductionSettings, year int) domain.DeductionReport {
	selected := c.filter(trips, s.PurposeFilter, year)

	rep := domain.DeductionReport{
		Year:      year,
		TripCount: len(selected),
	}

	// Aggregate.
	totalKm := decimal.Zero
	days := make(map[string]struct{}, len(selected))
	for _, t := range selected {
		totalKm = totalKm.Add(decimal.NewFromFloat(*t.DistanceKm))
		days[t.StartedAt.In(c.loc).Format("2006-01-02")] = struct{}{}
	}
	rep.TotalKm = totalKm
	rep.TotalMil = decimal.Zero
	if c.rules.KmPerMil.IsPositive() {
		rep.TotalMil = totalKm.Div(c.rules.KmPerMil)
	}
	rep.Days = len(days)
	rep.FirstOdometerKm, rep.LastOdometerKm = odometerRange(selected)

	// Reimbursement and deduction above the threshold.
	yr := c.rules.forYear(year)
	rep.RatePerMil = c.rules.rateFor(s.VehicleType)
	rep.ReimbursementTotal = rep.TotalMil.Mul(rep.RatePerMil)
	rep.Threshold = yr.Threshold
	rep.DeductibleAmount = decimal.Max(decimal.Zero, rep.ReimbursementTotal.Sub(yr.Threshold))

	// Marginal tax.
	rep.AnnualSalary = s.MonthlySalary.Mul(decimal.NewFromInt(12))
	rep.StateTax = rep.AnnualSalary.GreaterThan(yr.Skiktgrans.Add(c.rules.StateTaxMargin))
	rep.MarginalRate = s.MunicipalTaxRate.Div(decimal.NewFromInt(100))
	if rep.StateTax {
		rep.MarginalRate = rep.MarginalRate.Add(c.rules.StateTaxRate)
	}
	rep.TaxSaving = rep.DeductibleAmount.Mul(rep.MarginalRate)

	// Running cost of the vehicle.
	if s.VehicleType == domain.VehicleCompanyCarFossil {
		rep.RunningCost = rep.TotalMil.Mul(s.FuelLPerMil).Mul(s.FuelPricePerL)
	} else {
		rep.RunningCost = rep.TotalMil.Mul(s.EVKwhPerMil).Mul(s.ElectricityPricePerKwh)
	}
	rep.NetEffect = rep.TaxSaving.Sub(rep.RunningCost)

	if !rep.TotalMil.IsZero() {
		costPerMil := rep.RunningCost.Div(rep.TotalMil)
		netPerMil := rep.NetEffect.Div(rep.TotalMil)
		rep.RunningCostPerMil = &costPerMil
		rep.NetEffectPerMil = &netPerMil
	}

	return rep
}

// filter keeps closed trips with a distance that started in year and match
// either the purpose filter or, when it is empty, the business flag.
func (c *Calculator) filter(trips []domain.Trip, purposeFilter string, year int) []domain.Trip {
	needle := strings.ToLower(strings.TrimSpace(purposeFilter))

	out := make([]domain.Trip, 0, len(trips))
	for _, t := range trips {
		if t.EndedAt == nil || t.DistanceKm == nil {
			continue
		}
		if t.StartedAt.In(c.loc).Year() != year {
			continue
		}
		if needle == "" {
			if !t.Business {
				continue
			}
		} else if !strings.Contains(strings.ToLower(t.Purpose), needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// odometerRange returns the start reading of the earliest and the end reading
// of the latest trip that carries any odometer reading. Either may be nil.
func odometerRange(trips []domain.Trip) (first, last *float64) {
	withOdo := make([]domain.Trip, 0, len(trips))
	for _, t := range trips {
		if t.HasOdometer() {
			withOdo = append(withOdo, t)
		}
	}
	if len(withOdo) == 0 {
		return nil, nil
	}
	sort.SliceStable(withOdo, func(i, j int) bool {
		return withOdo[i].StartedAt.Before(withOdo[j].StartedAt)
	})
	return withOdo[0].StartOdometerKm, withOdo[len(withOdo)-1].EndOdometerKm
}
