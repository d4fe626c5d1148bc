package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/korjournal/internal/domain"
)

// TemplateRepo defines the persistence operations for trip templates.
type TemplateRepo interface {
	// Create inserts a template. Returns domain.ErrConflict if the name is taken.
	Create(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error)

	// GetByID returns domain.ErrNotFound if no template with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.TripTemplate, error)

	// List returns all templates ordered by name.
	List(ctx context.Context) ([]domain.TripTemplate, error)

	// Update overwrites a template. Returns domain.ErrNotFound or domain.ErrConflict.
	Update(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error)

	// Delete removes a template. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// pgTemplateRepo is the Postgres implementation of TemplateRepo.
type pgTemplateRepo struct {
	db db
}

// NewTemplateRepo constructs a TemplateRepo backed by the provided db connection.
func NewTemplateRepo(db db) TemplateRepo {
	return &pgTemplateRepo{db: db}
}

const templateColumns = `id, name, default_purpose, business, default_distance_km,
		default_vehicle_reg, default_driver_name, default_start_address, default_end_address,
		created_at, updated_at`

func templateArgs(t domain.TripTemplate) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":                    t.ID,
		"name":                  t.Name,
		"default_purpose":       t.DefaultPurpose,
		"business":              t.Business,
		"default_distance_km":   t.DefaultDistanceKm,
		"default_vehicle_reg":   t.DefaultVehicleReg,
		"default_driver_name":   t.DefaultDriverName,
		"default_start_address": t.DefaultStartAddress,
		"default_end_address":   t.DefaultEndAddress,
	}
}

func (r *pgTemplateRepo) Create(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error) {
	const q = `
		INSERT INTO trip_templates (name, default_purpose, business, default_distance_km,
		                            default_vehicle_reg, default_driver_name,
		                            default_start_address, default_end_address)
		VALUES (@name, @default_purpose, @business, @default_distance_km,
		        @default_vehicle_reg, @default_driver_name,
		        @default_start_address, @default_end_address)
		RETURNING ` + templateColumns

	result, err := scanTemplate(r.db.QueryRow(ctx, q, templateArgs(tpl)))
	if err != nil {
		return domain.TripTemplate{}, fmt.Errorf("repo.TemplateRepo.Create: %w", mapPgError(err))
	}
	return result, nil
}

func (r *pgTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.TripTemplate, error) {
	const q = `SELECT ` + templateColumns + ` FROM trip_templates WHERE id = @id`

	result, err := scanTemplate(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.TripTemplate{}, fmt.Errorf("repo.TemplateRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgTemplateRepo) List(ctx context.Context) ([]domain.TripTemplate, error) {
	const q = `SELECT ` + templateColumns + ` FROM trip_templates ORDER BY name`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.TemplateRepo.List: %w", err)
	}
	defer rows.Close()

	tpls := []domain.TripTemplate{}
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.TemplateRepo.List: scan: %w", err)
		}
		tpls = append(tpls, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TemplateRepo.List: rows: %w", err)
	}
	return tpls, nil
}

func (r *pgTemplateRepo) Update(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error) {
	const q = `
		UPDATE trip_templates
		SET name                  = @name,
		    default_purpose       = @default_purpose,
		    business              = @business,
		    default_distance_km   = @default_distance_km,
		    default_vehicle_reg   = @default_vehicle_reg,
		    default_driver_name   = @default_driver_name,
		    default_start_address = @default_start_address,
		    default_end_address   = @default_end_address,
		    updated_at            = now()
		WHERE id = @id
		RETURNING ` + templateColumns

	result, err := scanTemplate(r.db.QueryRow(ctx, q, templateArgs(tpl)))
	if err != nil {
		return domain.TripTemplate{}, fmt.Errorf("repo.TemplateRepo.Update: %w", mapPgError(err))
	}
	return result, nil
}

func (r *pgTemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM trip_templates WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TemplateRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TemplateRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// scanTemplate maps a single database row into a domain.TripTemplate.
func scanTemplate(s scanner) (domain.TripTemplate, error) {
	var (
		t        domain.TripTemplate
		id       pgtype.UUID
		distance pgtype.Float8
	)
	err := s.Scan(&id, &t.Name, &t.DefaultPurpose, &t.Business, &distance,
		&t.DefaultVehicleReg, &t.DefaultDriverName, &t.DefaultStartAddress, &t.DefaultEndAddress,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TripTemplate{}, domain.ErrNotFound
		}
		return domain.TripTemplate{}, err
	}
	t.ID = uuid.UUID(id.Bytes)
	t.DefaultDistanceKm = floatPtr(distance)
	return t, nil
}
