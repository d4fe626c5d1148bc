// Package service contains the business logic for the mileage journal.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here: services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/korjournal/internal/domain"
	"github.com/pkordes/korjournal/internal/repo"
)

// DefaultMaxTripDistanceKm is the plausibility bound used when none is configured.
const DefaultMaxTripDistanceKm = 2000

// TripService is the trip lifecycle manager. It is the only place that
// derives distance from odometer readings, and every entry point (start/finish,
// manual form, templates) goes through it.
type TripService struct {
	repo          repo.TripRepo
	maxDistanceKm float64
	now           func() time.Time
	log           *slog.Logger
}

// NewTripService constructs a TripService. A non-positive maxDistanceKm falls
// back to DefaultMaxTripDistanceKm; a nil logger uses slog.Default().
func NewTripService(r repo.TripRepo, maxDistanceKm float64, logger *slog.Logger) *TripService {
	if maxDistanceKm <= 0 {
		maxDistanceKm = DefaultMaxTripDistanceKm
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TripService{
		repo:          r,
		maxDistanceKm: maxDistanceKm,
		now:           func() time.Time { return time.Now().UTC() },
		log:           logger,
	}
}

// WithClock replaces the time source used for defaulted timestamps.
func (s *TripService) WithClock(now func() time.Time) *TripService {
	s.now = now
	return s
}

// Start opens a trip for a vehicle. A nil StartOdometerKm is allowed; the
// reading can be added later with Update.
// Returns domain.ErrOpenTripExists if the vehicle already has an open trip.
func (s *TripService) Start(ctx context.Context, in domain.StartTrip) (domain.Trip, error) {
	reg := strings.TrimSpace(in.VehicleReg)
	if reg == "" {
		return domain.Trip{}, fmt.Errorf("%w: vehicle_reg is required", domain.ErrValidation)
	}
	if err := checkOdometer(in.StartOdometerKm); err != nil {
		return domain.Trip{}, err
	}

	if _, err := s.repo.FindOpen(ctx, reg); err == nil {
		return domain.Trip{}, domain.ErrOpenTripExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Trip{}, fmt.Errorf("service.TripService.Start: %w", err)
	}

	trip := domain.Trip{
		VehicleReg:      reg,
		StartedAt:       s.now(),
		StartOdometerKm: in.StartOdometerKm,
		Purpose:         strings.TrimSpace(in.Purpose),
		Business:        true,
		DriverName:      strings.TrimSpace(in.DriverName),
		StartAddress:    strings.TrimSpace(in.StartAddress),
		EndAddress:      strings.TrimSpace(in.EndAddress),
	}
	if in.StartedAt != nil {
		trip.StartedAt = *in.StartedAt
	}
	if in.Business != nil {
		trip.Business = *in.Business
	}

	if err := s.ensureNoOverlap(ctx, trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Start: %w", err)
	}

	// The unique index still rejects a concurrent start that slipped past FindOpen.
	created, err := s.repo.Create(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Start: %w", err)
	}
	s.log.InfoContext(ctx, "trip started",
		"trip_id", created.ID,
		"vehicle_reg", created.VehicleReg,
		"start_odometer_known", created.StartOdometerKm != nil,
	)
	return created, nil
}

// Finish closes the open trip with the given ID.
// Returns domain.ErrNotFound if the trip does not exist or is already closed,
// and domain.ErrValidation if the resulting distance is negative or implausible.
func (s *TripService) Finish(ctx context.Context, id uuid.UUID, in domain.FinishTrip) (domain.Trip, error) {
	trip, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Finish: %w", err)
	}
	if !trip.IsOpen() {
		return domain.Trip{}, fmt.Errorf("service.TripService.Finish: trip already finished: %w", domain.ErrNotFound)
	}
	return s.finish(ctx, trip, in)
}

// FinishOpenTrip closes the open trip of a vehicle.
// Returns domain.ErrNotFound if the vehicle has no open trip.
func (s *TripService) FinishOpenTrip(ctx context.Context, vehicleReg string, in domain.FinishTrip) (domain.Trip, error) {
	reg := strings.TrimSpace(vehicleReg)
	if reg == "" {
		return domain.Trip{}, fmt.Errorf("%w: vehicle_reg or trip_id is required", domain.ErrValidation)
	}
	trip, err := s.repo.FindOpen(ctx, reg)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.FinishOpenTrip: %w", err)
	}
	return s.finish(ctx, trip, in)
}

func (s *TripService) finish(ctx context.Context, trip domain.Trip, in domain.FinishTrip) (domain.Trip, error) {
	if err := checkOdometer(in.EndOdometerKm); err != nil {
		return domain.Trip{}, err
	}

	ended := s.now()
	if in.EndedAt != nil {
		ended = *in.EndedAt
	}
	trip.EndedAt = &ended

	if in.EndOdometerKm != nil {
		trip.EndOdometerKm = in.EndOdometerKm
	}
	if in.EndAddress != nil {
		trip.EndAddress = strings.TrimSpace(*in.EndAddress)
	}
	if in.Purpose != nil {
		trip.Purpose = strings.TrimSpace(*in.Purpose)
	}
	if in.Business != nil {
		trip.Business = *in.Business
	}
	// The driver recorded at start wins; finish only fills a blank.
	if in.DriverName != nil && trip.DriverName == "" {
		trip.DriverName = strings.TrimSpace(*in.DriverName)
	}

	if err := validateInterval(trip); err != nil {
		return domain.Trip{}, err
	}
	distance, err := s.odometerDistance(trip.StartOdometerKm, trip.EndOdometerKm)
	if err != nil {
		return domain.Trip{}, err
	}
	if distance != nil {
		trip.DistanceKm = distance
	}

	if err := s.ensureNoOverlap(ctx, trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Finish: %w", err)
	}

	closed, err := s.repo.Close(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Finish: %w", err)
	}
	s.log.InfoContext(ctx, "trip finished",
		"trip_id", closed.ID,
		"vehicle_reg", closed.VehicleReg,
		"distance_km", closed.DistanceKm,
	)
	return closed, nil
}

// CreateDirect stores an already-closed trip in one call, as used by manual
// entry and templates. A supplied DistanceKm is kept; otherwise it is derived
// from the odometer readings when both are present.
func (s *TripService) CreateDirect(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	if trip.EndedAt == nil {
		return domain.Trip{}, fmt.Errorf("%w: ended_at is required", domain.ErrValidation)
	}
	trip, err := s.prepare(trip, nil)
	if err != nil {
		return domain.Trip{}, err
	}
	if err := s.ensureNoOverlap(ctx, trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.CreateDirect: %w", err)
	}

	created, err := s.repo.Create(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.CreateDirect: %w", err)
	}
	s.log.InfoContext(ctx, "trip created", "trip_id", created.ID, "vehicle_reg", created.VehicleReg)
	return created, nil
}

// GetByID returns a single trip by ID.
// Returns domain.ErrNotFound if no trip with that ID exists.
func (s *TripService) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	trip, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.GetByID: %w", err)
	}
	return trip, nil
}

// OpenTrip returns the open trip of a vehicle.
// Returns domain.ErrNotFound if the vehicle has no open trip.
func (s *TripService) OpenTrip(ctx context.Context, vehicleReg string) (domain.Trip, error) {
	reg := strings.TrimSpace(vehicleReg)
	if reg == "" {
		return domain.Trip{}, fmt.Errorf("%w: vehicle_reg is required", domain.ErrValidation)
	}
	trip, err := s.repo.FindOpen(ctx, reg)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.OpenTrip: %w", err)
	}
	return trip, nil
}

// List returns a page of trips, most recent first, and the total count.
// Always returns a non-nil slice so callers can safely range over it.
func (s *TripService) List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	f.VehicleReg = strings.TrimSpace(f.VehicleReg)
	trips, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TripService.List: %w", err)
	}
	if trips == nil {
		trips = []domain.Trip{}
	}
	return trips, total, nil
}

// Update replaces every editable field of a trip. A non-nil DistanceKm is a
// manual override and wins over the odometer delta; without it the distance
// is recomputed when both readings are present, and kept otherwise.
// Returns domain.ErrNotFound if the trip does not exist.
func (s *TripService) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	existing, err := s.repo.GetByID(ctx, trip.ID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}

	trip, err = s.prepare(trip, existing.DistanceKm)
	if err != nil {
		return domain.Trip{}, err
	}
	if err := s.ensureNoOverlap(ctx, trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}

	updated, err := s.repo.Update(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	s.log.InfoContext(ctx, "trip updated", "trip_id", updated.ID)
	return updated, nil
}

// Delete removes a trip by ID.
// Returns domain.ErrNotFound if the trip does not exist.
func (s *TripService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	s.log.InfoContext(ctx, "trip deleted", "trip_id", id)
	return nil
}

// prepare normalises and validates a full trip record and settles its
// distance. fallback is the distance to keep when neither an override nor
// both odometer readings are available.
func (s *TripService) prepare(trip domain.Trip, fallback *float64) (domain.Trip, error) {
	trip.VehicleReg = strings.TrimSpace(trip.VehicleReg)
	trip.Purpose = strings.TrimSpace(trip.Purpose)
	trip.DriverName = strings.TrimSpace(trip.DriverName)
	trip.StartAddress = strings.TrimSpace(trip.StartAddress)
	trip.EndAddress = strings.TrimSpace(trip.EndAddress)

	if trip.VehicleReg == "" {
		return domain.Trip{}, fmt.Errorf("%w: vehicle_reg is required", domain.ErrValidation)
	}
	if trip.StartedAt.IsZero() {
		return domain.Trip{}, fmt.Errorf("%w: started_at is required", domain.ErrValidation)
	}
	if err := validateInterval(trip); err != nil {
		return domain.Trip{}, err
	}
	if err := checkOdometer(trip.StartOdometerKm); err != nil {
		return domain.Trip{}, err
	}
	if err := checkOdometer(trip.EndOdometerKm); err != nil {
		return domain.Trip{}, err
	}

	if trip.DistanceKm != nil {
		d := round1(*trip.DistanceKm)
		if err := s.checkDistance(d); err != nil {
			return domain.Trip{}, err
		}
		trip.DistanceKm = &d
		return trip, nil
	}

	// Without an end time the trip is open and has no distance yet.
	if trip.EndedAt == nil {
		return trip, nil
	}
	distance, err := s.odometerDistance(trip.StartOdometerKm, trip.EndOdometerKm)
	if err != nil {
		return domain.Trip{}, err
	}
	if distance == nil {
		distance = fallback
	}
	trip.DistanceKm = distance
	return trip, nil
}

// odometerDistance returns round1(end - start), or nil when either reading
// is missing. A negative delta is an error: rollover is not interpreted.
func (s *TripService) odometerDistance(start, end *float64) (*float64, error) {
	if start == nil || end == nil {
		return nil, nil
	}
	if *end < *start {
		return nil, fmt.Errorf("%w: end odometer %.1f is below start odometer %.1f",
			domain.ErrValidation, *end, *start)
	}
	d := round1(*end - *start)
	if err := s.checkDistance(d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *TripService) checkDistance(d float64) error {
	if d < 0 {
		return fmt.Errorf("%w: distance_km must not be negative", domain.ErrValidation)
	}
	if d > s.maxDistanceKm {
		return fmt.Errorf("%w: distance %.1f km exceeds the maximum of %.0f km per trip",
			domain.ErrValidation, d, s.maxDistanceKm)
	}
	return nil
}

// ensureNoOverlap rejects a trip whose interval touches another trip of the
// same vehicle. An open trip counts as extending indefinitely.
func (s *TripService) ensureNoOverlap(ctx context.Context, trip domain.Trip) error {
	overlap, err := s.repo.HasOverlap(ctx, trip.VehicleReg, trip.StartedAt, trip.EndedAt, trip.ID)
	if err != nil {
		return err
	}
	if overlap {
		return fmt.Errorf("%w: trip overlaps another trip or an open trip for %s", domain.ErrValidation, trip.VehicleReg)
	}
	return nil
}

func validateInterval(trip domain.Trip) error {
	if trip.EndedAt != nil && !trip.EndedAt.After(trip.StartedAt) {
		return fmt.Errorf("%w: ended_at must be after started_at", domain.ErrValidation)
	}
	return nil
}

func checkOdometer(km *float64) error {
	if km != nil && (*km < 0 || math.IsNaN(*km) || math.IsInf(*km, 0)) {
		return fmt.Errorf("%w: odometer reading must be a non-negative number", domain.ErrValidation)
	}
	return nil
}

// round1 rounds to one decimal place, half away from zero.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
