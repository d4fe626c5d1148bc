package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripTemplate stores defaults for a recurring trip (e.g. "Office round trip").
// Names are unique.
type TripTemplate struct {
	ID                  uuid.UUID
	Name                string
	DefaultPurpose      string
	Business            bool
	DefaultDistanceKm   *float64
	DefaultVehicleReg   string
	DefaultDriverName   string
	DefaultStartAddress string
	DefaultEndAddress   string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TemplateTrip carries the per-use values when a trip is created from a
// template. Empty fields fall back to the template's defaults.
type TemplateTrip struct {
	StartedAt       time.Time
	EndedAt         time.Time
	VehicleReg      string
	StartOdometerKm *float64
	EndOdometerKm   *float64
	DistanceKm      *float64
	DriverName      string
}
