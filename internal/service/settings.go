package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pkordes/korjournal/internal/domain"
	"github.com/pkordes/korjournal/internal/repo"
)

// Settings keys. Values are stored as strings; decimals use their canonical
// string form so no precision is lost.
const (
	keyVehicleType      = "deduction.vehicle_type"
	keyMonthlySalary    = "deduction.monthly_salary"
	keyMunicipalTaxRate = "deduction.municipal_tax_rate"
	keyEVKwhPerMil      = "deduction.ev_kwh_per_mil"
	keyElectricityPrice = "deduction.electricity_price_per_kwh"
	keyFuelLPerMil      = "deduction.fuel_l_per_mil"
	keyFuelPricePerL    = "deduction.fuel_price_per_l"
	keyPurposeFilter    = "deduction.purpose_filter"

	keyHABaseURL      = "ha.base_url"
	keyHAToken        = "ha.token"
	keyHAEntity       = "ha.odometer_entity"
	keyHAForceDomain  = "ha.force_domain"
	keyHAForceService = "ha.force_service"
	keyHAForceData    = "ha.force_data"
)

var deductionKeys = []string{
	keyVehicleType, keyMonthlySalary, keyMunicipalTaxRate, keyEVKwhPerMil,
	keyElectricityPrice, keyFuelLPerMil, keyFuelPricePerL, keyPurposeFilter,
}

var haKeys = []string{
	keyHABaseURL, keyHAToken, keyHAEntity, keyHAForceDomain, keyHAForceService, keyHAForceData,
}

// SettingsService reads and writes the typed settings on top of the
// key/value store. All validation happens on write, so reads of values this
// service wrote cannot fail to parse.
type SettingsService struct {
	repo       repo.SettingsRepo
	haDefaults domain.HomeAssistantSettings
}

// NewSettingsService constructs a SettingsService. haDefaults come from the
// environment and fill every Home Assistant field that has not been saved.
func NewSettingsService(r repo.SettingsRepo, haDefaults domain.HomeAssistantSettings) *SettingsService {
	return &SettingsService{repo: r, haDefaults: haDefaults}
}

// Deduction returns the saved deduction settings, or the defaults for
// anything that was never saved.
func (s *SettingsService) Deduction(ctx context.Context) (domain.DeductionSettings, error) {
	values, err := s.repo.GetMany(ctx, deductionKeys)
	if err != nil {
		return domain.DeductionSettings{}, fmt.Errorf("service.SettingsService.Deduction: %w", err)
	}

	out := domain.DefaultDeductionSettings()
	if v, ok := values[keyVehicleType]; ok {
		out.VehicleType = domain.VehicleType(v)
	}
	out.PurposeFilter = values[keyPurposeFilter]

	fields := []struct {
		key string
		dst *decimal.Decimal
	}{
		{keyMonthlySalary, &out.MonthlySalary},
		{keyMunicipalTaxRate, &out.MunicipalTaxRate},
		{keyEVKwhPerMil, &out.EVKwhPerMil},
		{keyElectricityPrice, &out.ElectricityPricePerKwh},
		{keyFuelLPerMil, &out.FuelLPerMil},
		{keyFuelPricePerL, &out.FuelPricePerL},
	}
	for _, f := range fields {
		v, ok := values[f.key]
		if !ok {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return domain.DeductionSettings{}, fmt.Errorf("service.SettingsService.Deduction: stored %s: %w", f.key, err)
		}
		*f.dst = d
	}
	return out, nil
}

// SaveDeduction validates and stores the deduction settings.
// Returns domain.ErrValidation for an unknown vehicle type or negative numbers.
func (s *SettingsService) SaveDeduction(ctx context.Context, in domain.DeductionSettings) (domain.DeductionSettings, error) {
	in.PurposeFilter = strings.TrimSpace(in.PurposeFilter)
	if err := validateDeductionSettings(in); err != nil {
		return domain.DeductionSettings{}, err
	}

	err := s.repo.PutMany(ctx, map[string]string{
		keyVehicleType:      string(in.VehicleType),
		keyMonthlySalary:    in.MonthlySalary.String(),
		keyMunicipalTaxRate: in.MunicipalTaxRate.String(),
		keyEVKwhPerMil:      in.EVKwhPerMil.String(),
		keyElectricityPrice: in.ElectricityPricePerKwh.String(),
		keyFuelLPerMil:      in.FuelLPerMil.String(),
		keyFuelPricePerL:    in.FuelPricePerL.String(),
		keyPurposeFilter:    in.PurposeFilter,
	})
	if err != nil {
		return domain.DeductionSettings{}, fmt.Errorf("service.SettingsService.SaveDeduction: %w", err)
	}
	return in, nil
}

func validateDeductionSettings(in domain.DeductionSettings) error {
	if !in.VehicleType.Valid() {
		return fmt.Errorf("%w: unknown vehicle_type %q", domain.ErrValidation, in.VehicleType)
	}
	numbers := map[string]decimal.Decimal{
		"monthly_salary":            in.MonthlySalary,
		"municipal_tax_rate":        in.MunicipalTaxRate,
		"ev_kwh_per_mil":            in.EVKwhPerMil,
		"electricity_price_per_kwh": in.ElectricityPricePerKwh,
		"fuel_l_per_mil":            in.FuelLPerMil,
		"fuel_price_per_l":          in.FuelPricePerL,
	}
	for name, v := range numbers {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", domain.ErrValidation, name)
		}
	}
	if in.MunicipalTaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: municipal_tax_rate is a percentage and must not exceed 100", domain.ErrValidation)
	}
	return nil
}

// HomeAssistant returns the effective Home Assistant settings: saved values
// first, environment defaults for the rest.
func (s *SettingsService) HomeAssistant(ctx context.Context) (domain.HomeAssistantSettings, error) {
	values, err := s.repo.GetMany(ctx, haKeys)
	if err != nil {
		return domain.HomeAssistantSettings{}, fmt.Errorf("service.SettingsService.HomeAssistant: %w", err)
	}

	out := s.haDefaults
	pick := func(key string, dst *string) {
		if v, ok := values[key]; ok {
			*dst = v
		}
	}
	pick(keyHABaseURL, &out.BaseURL)
	pick(keyHAToken, &out.Token)
	pick(keyHAEntity, &out.OdometerEntity)
	pick(keyHAForceDomain, &out.ForceDomain)
	pick(keyHAForceService, &out.ForceService)

	if raw, ok := values[keyHAForceData]; ok {
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return domain.HomeAssistantSettings{}, fmt.Errorf("service.SettingsService.HomeAssistant: stored force data: %w", err)
		}
		out.ForceData = data
	}
	return out, nil
}

// SaveHomeAssistant validates and stores a Home Assistant settings update
// and returns the resulting effective settings.
func (s *SettingsService) SaveHomeAssistant(ctx context.Context, in domain.HomeAssistantUpdate) (domain.HomeAssistantSettings, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(in.BaseURL), "/")
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return domain.HomeAssistantSettings{}, fmt.Errorf("%w: base_url must be an http(s) URL", domain.ErrValidation)
		}
	}

	values := map[string]string{
		keyHABaseURL:      baseURL,
		keyHAEntity:       strings.TrimSpace(in.OdometerEntity),
		keyHAForceDomain:  strings.TrimSpace(in.ForceDomain),
		keyHAForceService: strings.TrimSpace(in.ForceService),
		keyHAForceData:    "",
	}
	if in.Token != nil {
		values[keyHAToken] = strings.TrimSpace(*in.Token)
	}
	if len(in.ForceData) > 0 {
		raw, err := json.Marshal(in.ForceData)
		if err != nil {
			return domain.HomeAssistantSettings{}, fmt.Errorf("%w: force_data: %v", domain.ErrValidation, err)
		}
		values[keyHAForceData] = string(raw)
	}

	if err := s.repo.PutMany(ctx, values); err != nil {
		return domain.HomeAssistantSettings{}, fmt.Errorf("service.SettingsService.SaveHomeAssistant: %w", err)
	}
	return s.HomeAssistant(ctx)
}
