package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkordes/korjournal/internal/deduction"
	"github.com/pkordes/korjournal/internal/domain"
	"github.com/pkordes/korjournal/internal/repo"
)

// DeductionService loads a tax year of trips and the saved settings and
// hands them to the pure deduction calculator.
type DeductionService struct {
	trips    repo.TripRepo
	settings *SettingsService
	calc     *deduction.Calculator
	loc      *time.Location
}

// NewDeductionService constructs a DeductionService. Years are calendar
// years in loc; a nil loc means UTC.
func NewDeductionService(trips repo.TripRepo, settings *SettingsService, calc *deduction.Calculator, loc *time.Location) *DeductionService {
	if loc == nil {
		loc = time.UTC
	}
	return &DeductionService{trips: trips, settings: settings, calc: calc, loc: loc}
}

// Report computes the deduction report for year with the current settings.
// Returns domain.ErrValidation for a year outside 1900..9999.
func (s *DeductionService) Report(ctx context.Context, year int) (domain.DeductionReport, error) {
	if year < 1900 || year > 9999 {
		return domain.DeductionReport{}, fmt.Errorf("%w: year %d is out of range", domain.ErrValidation, year)
	}

	settings, err := s.settings.Deduction(ctx)
	if err != nil {
		return domain.DeductionReport{}, fmt.Errorf("service.DeductionService.Report: %w", err)
	}

	from, to := yearRange(year, s.loc)
	trips, err := s.trips.ListStartedBetween(ctx, "", from, to)
	if err != nil {
		return domain.DeductionReport{}, fmt.Errorf("service.DeductionService.Report: %w", err)
	}

	return s.calc.Calculate(trips, settings, year), nil
}

// yearRange returns [1 Jan year, 1 Jan year+1) in loc.
func yearRange(year int, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(1, 0, 0)
}
