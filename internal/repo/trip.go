// Package repo contains all database access logic for the mileage journal.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/korjournal/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TripRepo defines the persistence operations for Trips.
// The service layer depends on this interface, not the concrete Postgres implementation,
// which allows the service to be unit-tested with a mock.
type TripRepo interface {
	// Create inserts a new trip and returns the persisted record.
	// Returns domain.ErrOpenTripExists if the trip is open and the vehicle
	// already has an open trip; the check is a unique index, so it holds
	// under concurrent inserts.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID retrieves a single trip by its UUID primary key.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// FindOpen returns the open trip of a vehicle.
	// Returns domain.ErrNotFound if the vehicle has no open trip.
	FindOpen(ctx context.Context, vehicleReg string) (domain.Trip, error)

	// List returns one page of trips ordered by started_at descending and
	// the total number of trips matching the filter.
	List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error)

	// ListStartedBetween returns trips with from <= started_at < to ordered by
	// started_at ascending. An empty vehicleReg matches every vehicle.
	ListStartedBetween(ctx context.Context, vehicleReg string, from, to time.Time) ([]domain.Trip, error)

	// Update overwrites the mutable fields of an existing trip and returns the
	// updated record. Returns domain.ErrNotFound if no trip with that ID exists.
	Update(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// Close writes the finishing fields of a trip that is still open.
	// Returns domain.ErrNotFound if the trip does not exist or is already closed,
	// so two concurrent finishes cannot both succeed.
	Close(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// Delete removes a trip by ID. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// HasOverlap reports whether another trip of the same vehicle overlaps the
	// interval [start, end). A nil end means the interval is still open.
	// The trip with excludeID is ignored (pass uuid.Nil for new trips).
	HasOverlap(ctx context.Context, vehicleReg string, start time.Time, end *time.Time, excludeID uuid.UUID) (bool, error)
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, vehicle_reg, started_at, ended_at, start_odometer_km, end_odometer_km,
		distance_km, purpose, business, driver_name, start_address, end_address,
		created_at, updated_at`

// tripArgs maps the writable fields of a trip to named query arguments.
// Nil pointers become NULL.
func tripArgs(t domain.Trip) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":                t.ID,
		"vehicle_reg":       t.VehicleReg,
		"started_at":        t.StartedAt,
		"ended_at":          t.EndedAt,
		"start_odometer_km": t.StartOdometerKm,
		"end_odometer_km":   t.EndOdometerKm,
		"distance_km":       t.DistanceKm,
		"purpose":           t.Purpose,
		"business":          t.Business,
		"driver_name":       t.DriverName,
		"start_address":     t.StartAddress,
		"end_address":       t.EndAddress,
	}
}

// Create inserts a new trip row and returns the full persisted record.
func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		INSERT INTO trips (vehicle_reg, started_at, ended_at, start_odometer_km, end_odometer_km,
		                   distance_km, purpose, business, driver_name, start_address, end_address)
		VALUES (@vehicle_reg, @started_at, @ended_at, @start_odometer_km, @end_odometer_km,
		        @distance_km, @purpose, @business, @driver_name, @start_address, @end_address)
		RETURNING ` + tripColumns

	row := r.db.QueryRow(ctx, q, tripArgs(trip))
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", mapPgError(err))
	}
	return result, nil
}

// GetByID retrieves a trip by primary key.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

// FindOpen returns the single open trip of a vehicle.
func (r *pgTripRepo) FindOpen(ctx context.Context, vehicleReg string) (domain.Trip, error) {
	const q = `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE vehicle_reg = @vehicle_reg AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"vehicle_reg": vehicleReg})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.FindOpen: %w", err)
	}
	return result, nil
}

// List returns one page of trips, most recent first, plus the total count.
func (r *pgTripRepo) List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	const where = `
		WHERE (@vehicle_reg = '' OR vehicle_reg = @vehicle_reg)
		  AND (@include_open OR ended_at IS NOT NULL)`

	args := pgx.NamedArgs{
		"vehicle_reg":  f.VehicleReg,
		"include_open": f.IncludeOpen,
		"limit":        p.Limit,
		"offset":       p.Offset(),
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM trips`+where, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.List: count: %w", err)
	}

	q := `SELECT ` + tripColumns + ` FROM trips` + where + `
		ORDER BY started_at DESC
		LIMIT @limit OFFSET @offset`

	trips, err := r.queryTrips(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.List: %w", err)
	}
	return trips, total, nil
}

// ListStartedBetween returns trips started in [from, to), oldest first.
func (r *pgTripRepo) ListStartedBetween(ctx context.Context, vehicleReg string, from, to time.Time) ([]domain.Trip, error) {
	const q = `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE started_at >= @from AND started_at < @to
		  AND (@vehicle_reg = '' OR vehicle_reg = @vehicle_reg)
		ORDER BY started_at ASC`

	trips, err := r.queryTrips(ctx, q, pgx.NamedArgs{"from": from, "to": to, "vehicle_reg": vehicleReg})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListStartedBetween: %w", err)
	}
	return trips, nil
}

// Update overwrites the mutable fields of a trip and returns the updated record.
func (r *pgTripRepo) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		UPDATE trips
		SET vehicle_reg       = @vehicle_reg,
		    started_at        = @started_at,
		    ended_at          = @ended_at,
		    start_odometer_km = @start_odometer_km,
		    end_odometer_km   = @end_odometer_km,
		    distance_km       = @distance_km,
		    purpose           = @purpose,
		    business          = @business,
		    driver_name       = @driver_name,
		    start_address     = @start_address,
		    end_address       = @end_address,
		    updated_at        = now()
		WHERE id = @id
		RETURNING ` + tripColumns

	row := r.db.QueryRow(ctx, q, tripArgs(trip))
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: %w", mapPgError(err))
	}
	return result, nil
}

// Close finishes an open trip. The ended_at IS NULL guard makes the
// open -> closed transition happen at most once.
func (r *pgTripRepo) Close(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		UPDATE trips
		SET ended_at        = @ended_at,
		    end_odometer_km = @end_odometer_km,
		    distance_km     = @distance_km,
		    purpose         = @purpose,
		    business        = @business,
		    driver_name     = @driver_name,
		    end_address     = @end_address,
		    updated_at      = now()
		WHERE id = @id AND ended_at IS NULL
		RETURNING ` + tripColumns

	row := r.db.QueryRow(ctx, q, tripArgs(trip))
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Close: %w", mapPgError(err))
	}
	return result, nil
}

// Delete removes a trip by primary key.
func (r *pgTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM trips WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// HasOverlap checks the same vehicle's trips against [start, end).
// An open trip (ended_at NULL) is treated as extending indefinitely.
func (r *pgTripRepo) HasOverlap(ctx context.Context, vehicleReg string, start time.Time, end *time.Time, excludeID uuid.UUID) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM trips
			WHERE vehicle_reg = @vehicle_reg
			  AND id <> @exclude_id
			  AND (
			        (started_at <= @start AND ended_at > @start)
			     OR (@end::timestamptz IS NULL AND ended_at IS NULL)
			     OR (@end::timestamptz IS NOT NULL AND (
			            (started_at < @end AND ended_at >= @end)
			         OR (started_at >= @start AND ended_at <= @end)
			         OR (ended_at IS NULL AND started_at <= @end)))
			  )
		)`

	var exists bool
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"vehicle_reg": vehicleReg,
		"exclude_id":  excludeID,
		"start":       start,
		"end":         end,
	}).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repo.TripRepo.HasOverlap: %w", err)
	}
	return exists, nil
}

// queryTrips runs q and scans every row.
func (r *pgTripRepo) queryTrips(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Trip, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []domain.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return trips, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanTrip to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrip maps a single database row into a domain.Trip.
// It handles the UUID and the nullable timestamp and odometer conversions.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t        domain.Trip
		id       pgtype.UUID
		endedAt  pgtype.Timestamptz
		startOdo pgtype.Float8
		endOdo   pgtype.Float8
		distance pgtype.Float8
	)

	err := s.Scan(&id, &t.VehicleReg, &t.StartedAt, &endedAt, &startOdo, &endOdo,
		&distance, &t.Purpose, &t.Business, &t.DriverName, &t.StartAddress, &t.EndAddress,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	if endedAt.Valid {
		ea := endedAt.Time
		t.EndedAt = &ea
	}
	t.StartOdometerKm = floatPtr(startOdo)
	t.EndOdometerKm = floatPtr(endOdo)
	t.DistanceKm = floatPtr(distance)

	return t, nil
}

// floatPtr converts a nullable float8 column to *float64.
func floatPtr(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
