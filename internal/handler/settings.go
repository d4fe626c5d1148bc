package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pkordes/korjournal/internal/domain"
)

// DeductionSettingsRequest is the body of PUT /settings/deduction. Numbers
// may be sent as JSON numbers or strings; they are kept as exact decimals.
type DeductionSettingsRequest struct {
	VehicleType            string          `json:"vehicle_type"`
	MonthlySalary          decimal.Decimal `json:"monthly_salary"`
	MunicipalTaxRate       decimal.Decimal `json:"municipal_tax_rate"`
	EVKwhPerMil            decimal.Decimal `json:"ev_kwh_per_mil"`
	ElectricityPricePerKwh decimal.Decimal `json:"electricity_price_per_kwh"`
	FuelLPerMil            decimal.Decimal `json:"fuel_l_per_mil"`
	FuelPricePerL          decimal.Decimal `json:"fuel_price_per_l"`
	PurposeFilter          string          `json:"purpose_filter"`
}

// DeductionSettings is the body of GET /settings/deduction.
type DeductionSettings struct {
	VehicleType            string  `json:"vehicle_type"`
	MonthlySalary          float64 `json:"monthly_salary"`
	MunicipalTaxRate       float64 `json:"municipal_tax_rate"`
	EVKwhPerMil            float64 `json:"ev_kwh_per_mil"`
	ElectricityPricePerKwh float64 `json:"electricity_price_per_kwh"`
	FuelLPerMil            float64 `json:"fuel_l_per_mil"`
	FuelPricePerL          float64 `json:"fuel_price_per_l"`
	PurposeFilter          string  `json:"purpose_filter"`
}

// HomeAssistantSettings is the body of GET /settings/home-assistant.
// The token itself is never returned.
type HomeAssistantSettings struct {
	BaseURL        string         `json:"base_url"`
	OdometerEntity string         `json:"odometer_entity"`
	ForceDomain    string         `json:"force_domain"`
	ForceService   string         `json:"force_service"`
	ForceData      map[string]any `json:"force_data,omitempty"`
	TokenSet       bool           `json:"token_set"`
	Configured     bool           `json:"configured"`
}

// HomeAssistantSettingsRequest is the body of PUT /settings/home-assistant.
// Omitting token keeps the stored one; an empty token removes it.
type HomeAssistantSettingsRequest struct {
	BaseURL        string         `json:"base_url"`
	Token          *string        `json:"token"`
	OdometerEntity string         `json:"odometer_entity"`
	ForceDomain    string         `json:"force_domain"`
	ForceService   string         `json:"force_service"`
	ForceData      map[string]any `json:"force_data"`
}

// GetDeductionSettings handles GET /settings/deduction.
func (s *Server) GetDeductionSettings(w http.ResponseWriter, r *http.Request) {
	set, err := s.settings.Deduction(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, deductionSettingsToResponse(set))
}

// PutDeductionSettings handles PUT /settings/deduction. An omitted
// vehicle_type means ownCar.
func (s *Server) PutDeductionSettings(w http.ResponseWriter, r *http.Request) {
	var body DeductionSettingsRequest
	if err := decodeJSON(r, &body); err != nil {
		writeRequestError(w, err)
		return
	}
	vt := domain.VehicleType(body.VehicleType)
	if vt == "" {
		vt = domain.VehicleOwnCar
	}

	saved, err := s.settings.SaveDeduction(r.Context(), domain.DeductionSettings{
		VehicleType:            vt,
		MonthlySalary:          body.MonthlySalary,
		MunicipalTaxRate:       body.MunicipalTaxRate,
		EVKwhPerMil:            body.EVKwhPerMil,
		ElectricityPricePerKwh: body.ElectricityPricePerKwh,
		FuelLPerMil:            body.FuelLPerMil,
		FuelPricePerL:          body.FuelPricePerL,
		PurposeFilter:          body.PurposeFilter,
	})
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, deductionSettingsToResponse(saved))
}

// GetHomeAssistantSettings handles GET /settings/home-assistant.
func (s *Server) GetHomeAssistantSettings(w http.ResponseWriter, r *http.Request) {
	set, err := s.settings.HomeAssistant(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, haSettingsToResponse(set))
}

// PutHomeAssistantSettings handles PUT /settings/home-assistant.
func (s *Server) PutHomeAssistantSettings(w http.ResponseWriter, r *http.Request) {
	var body HomeAssistantSettingsRequest
	if err := decodeJSON(r, &body); err != nil {
		writeRequestError(w, err)
		return
	}

	saved, err := s.settings.SaveHomeAssistant(r.Context(), domain.HomeAssistantUpdate{
		BaseURL:        body.BaseURL,
		Token:          body.Token,
		OdometerEntity: body.OdometerEntity,
		ForceDomain:    body.ForceDomain,
		ForceService:   body.ForceService,
		ForceData:      body.ForceData,
	})
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, haSettingsToResponse(saved))
}

func deductionSettingsToResponse(s domain.DeductionSettings) DeductionSettings {
	return DeductionSettings{
		VehicleType:            string(s.VehicleType),
		MonthlySalary:          s.MonthlySalary.InexactFloat64(),
		MunicipalTaxRate:       s.MunicipalTaxRate.InexactFloat64(),
		EVKwhPerMil:            s.EVKwhPerMil.InexactFloat64(),
		ElectricityPricePerKwh: s.ElectricityPricePerKwh.InexactFloat64(),
		FuelLPerMil:            s.FuelLPerMil.InexactFloat64(),
		FuelPricePerL:          s.FuelPricePerL.InexactFloat64(),
		PurposeFilter:          s.PurposeFilter,
	}
}

func haSettingsToResponse(s domain.HomeAssistantSettings) HomeAssistantSettings {
	return HomeAssistantSettings{
		BaseURL:        s.BaseURL,
		OdometerEntity: s.OdometerEntity,
		ForceDomain:    s.ForceDomain,
		ForceService:   s.ForceService,
		ForceData:      s.ForceData,
		TokenSet:       s.Token != "",
		Configured:     s.Configured(),
	}
}
