package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/korjournal/internal/domain"
	"github.com/pkordes/korjournal/internal/repo"
)

// TemplateService manages trip templates and turns them into trips.
// Trips are always created through TripService so templates get the same
// distance and plausibility rules as manual entry.
type TemplateService struct {
	templates repo.TemplateRepo
	trips     *TripService
}

// NewTemplateService constructs a TemplateService.
func NewTemplateService(templates repo.TemplateRepo, trips *TripService) *TemplateService {
	return &TemplateService{templates: templates, trips: trips}
}

// Create validates and persists a template.
// Returns domain.ErrConflict if the name is taken.
func (s *TemplateService) Create(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error) {
	tpl, err := normalizeTemplate(tpl)
	if err != nil {
		return domain.TripTemplate{}, err
	}
	created, err := s.templates.Create(ctx, tpl)
	if err != nil {
		return domain.TripTemplate{}, fmt.Errorf("service.TemplateService.Create: %w", err)
	}
	return created, nil
}

// List returns every template ordered by name.
func (s *TemplateService) List(ctx context.Context) ([]domain.TripTemplate, error) {
	tpls, err := s.templates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.TemplateService.List: %w", err)
	}
	if tpls == nil {
		return []domain.TripTemplate{}, nil
	}
	return tpls, nil
}

// Update replaces a template.
// Returns domain.ErrNotFound if it does not exist and domain.ErrConflict if
// the new name belongs to another template.
func (s *TemplateService) Update(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error) {
	tpl, err := normalizeTemplate(tpl)
	if err != nil {
		return domain.TripTemplate{}, err
	}
	updated, err := s.templates.Update(ctx, tpl)
	if err != nil {
		return domain.TripTemplate{}, fmt.Errorf("service.TemplateService.Update: %w", err)
	}
	return updated, nil
}

// Delete removes a template. Trips created from it are not touched.
func (s *TemplateService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.templates.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.TemplateService.Delete: %w", err)
	}
	return nil
}

// CreateTrip creates a closed trip from a template. Values in `in` win over
// the template defaults. The template's default distance is only used when
// neither a distance nor a full pair of odometer readings is given.
func (s *TemplateService) CreateTrip(ctx context.Context, id uuid.UUID, in domain.TemplateTrip) (domain.Trip, error) {
	if in.StartedAt.IsZero() || in.EndedAt.IsZero() {
		return domain.Trip{}, fmt.Errorf("%w: started_at and ended_at are required", domain.ErrValidation)
	}
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TemplateService.CreateTrip: %w", err)
	}

	ended := in.EndedAt
	trip := domain.Trip{
		VehicleReg:      firstNonEmpty(in.VehicleReg, tpl.DefaultVehicleReg),
		StartedAt:       in.StartedAt,
		EndedAt:         &ended,
		StartOdometerKm: in.StartOdometerKm,
		EndOdometerKm:   in.EndOdometerKm,
		DistanceKm:      in.DistanceKm,
		Purpose:         tpl.DefaultPurpose,
		Business:        tpl.Business,
		DriverName:      firstNonEmpty(in.DriverName, tpl.DefaultDriverName),
		StartAddress:    tpl.DefaultStartAddress,
		EndAddress:      tpl.DefaultEndAddress,
	}
	if trip.DistanceKm == nil && (in.StartOdometerKm == nil || in.EndOdometerKm == nil) {
		trip.DistanceKm = tpl.DefaultDistanceKm
	}

	created, err := s.trips.CreateDirect(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TemplateService.CreateTrip: %w", err)
	}
	return created, nil
}

func normalizeTemplate(tpl domain.TripTemplate) (domain.TripTemplate, error) {
	tpl.Name = strings.TrimSpace(tpl.Name)
	tpl.DefaultPurpose = strings.TrimSpace(tpl.DefaultPurpose)
	tpl.DefaultVehicleReg = strings.TrimSpace(tpl.DefaultVehicleReg)
	tpl.DefaultDriverName = strings.TrimSpace(tpl.DefaultDriverName)
	tpl.DefaultStartAddress = strings.TrimSpace(tpl.DefaultStartAddress)
	tpl.DefaultEndAddress = strings.TrimSpace(tpl.DefaultEndAddress)

	if tpl.Name == "" {
		return domain.TripTemplate{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if tpl.DefaultDistanceKm != nil && *tpl.DefaultDistanceKm < 0 {
		return domain.TripTemplate{}, fmt.Errorf("%w: default_distance_km must not be negative", domain.ErrValidation)
	}
	return tpl, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
