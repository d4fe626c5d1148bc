package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pkordes/korjournal/internal/domain"
)

// DeductionReport is the body of GET /reports/deduction. Amounts are
// rounded for display: kronor to whole numbers, per-mil figures to öre.
type DeductionReport struct {
	Year      int     `json:"year"`
	TripCount int     `json:"trip_count"`
	Days      int     `json:"days"`
	TotalKm   float64 `json:"total_km"`
	TotalMil  float64 `json:"total_mil"`

	FirstOdometerKm *float64 `json:"first_odometer_km"`
	LastOdometerKm  *float64 `json:"last_odometer_km"`

	RatePerMil         float64 `json:"rate_per_mil"`
	ReimbursementTotal float64 `json:"reimbursement_total"`
	Threshold          float64 `json:"threshold"`
	DeductibleAmount   float64 `json:"deductible_amount"`

	AnnualSalary float64 `json:"annual_salary"`
	StateTax     bool    `json:"state_tax"`
	MarginalRate float64 `json:"marginal_rate"`
	TaxSaving    float64 `json:"tax_saving"`

	RunningCost float64 `json:"running_cost"`
	NetEffect   float64 `json:"net_effect"`

	RunningCostPerMil *float64 `json:"running_cost_per_mil"`
	NetEffectPerMil   *float64 `json:"net_effect_per_mil"`
}

// GetDeductionReport handles GET /reports/deduction?year=.
// The year defaults to the current one in the report time zone.
func (s *Server) GetDeductionReport(w http.ResponseWriter, r *http.Request) {
	var year *int
	if err := queryParam(r, "year", &year); err != nil {
		writeRequestError(w, err)
		return
	}
	y := s.now().In(s.loc).Year()
	if year != nil {
		y = *year
	}

	rep, err := s.reports.Report(r.Context(), y)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, reportToResponse(rep))
}

func reportToResponse(rep domain.DeductionReport) DeductionReport {
	return DeductionReport{
		Year:               rep.Year,
		TripCount:          rep.TripCount,
		Days:               rep.Days,
		TotalKm:            rounded(rep.TotalKm, 1),
		TotalMil:           rounded(rep.TotalMil, 2),
		FirstOdometerKm:    rep.FirstOdometerKm,
		LastOdometerKm:     rep.LastOdometerKm,
		RatePerMil:         rounded(rep.RatePerMil, 2),
		ReimbursementTotal: rounded(rep.ReimbursementTotal, 0),
		Threshold:          rounded(rep.Threshold, 0),
		DeductibleAmount:   rounded(rep.DeductibleAmount, 0),
		AnnualSalary:       rounded(rep.AnnualSalary, 0),
		StateTax:           rep.StateTax,
		MarginalRate:       rounded(rep.MarginalRate, 4),
		TaxSaving:          rounded(rep.TaxSaving, 0),
		RunningCost:        rounded(rep.RunningCost, 0),
		NetEffect:          rounded(rep.NetEffect, 0),
		RunningCostPerMil:  roundedPtr(rep.RunningCostPerMil, 2),
		NetEffectPerMil:    roundedPtr(rep.NetEffectPerMil, 2),
	}
}

func rounded(d decimal.Decimal, places int32) float64 {
	return d.Round(places).InexactFloat64()
}

func roundedPtr(d *decimal.Decimal, places int32) *float64 {
	if d == nil {
		return nil
	}
	v := rounded(*d, places)
	return &v
}
