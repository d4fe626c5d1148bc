package repo

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/korjournal/internal/domain"
)

// Postgres SQLSTATE codes we translate into domain errors.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// mapPgError turns constraint violations into domain sentinel errors.
// Anything else is returned unchanged.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == "trips_one_open_per_vehicle" {
			return domain.ErrOpenTripExists
		}
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
	case pgCheckViolation:
		return fmt.Errorf("%w: violates %s", domain.ErrValidation, pgErr.ConstraintName)
	}
	return err
}
