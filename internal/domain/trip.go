// Package domain contains the core data types for the mileage journal.
// This package depends only on small value libraries (uuid, decimal) and is
// imported by every other internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trip is a single vehicle movement. EndedAt is nil while the trip is open,
// i.e. started through the two-step flow but not yet finished.
// Odometer readings and distance are kilometres; nil means unknown.
type Trip struct {
	ID              uuid.UUID
	VehicleReg      string
	StartedAt       time.Time
	EndedAt         *time.Time
	StartOdometerKm *float64
	EndOdometerKm   *float64
	DistanceKm      *float64
	Purpose         string
	Business        bool
	DriverName      string
	StartAddress    string
	EndAddress      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOpen reports whether the trip has been started but not finished.
func (t Trip) IsOpen() bool {
	return t.EndedAt == nil
}

// HasOdometer reports whether the trip carries at least one odometer reading.
func (t Trip) HasOdometer() bool {
	return t.StartOdometerKm != nil || t.EndOdometerKm != nil
}

// StartTrip is the input to the first step of the two-step trip flow.
// Business is a pointer so that "not supplied" can default to true.
type StartTrip struct {
	VehicleReg      string
	StartedAt       *time.Time
	StartOdometerKm *float64
	Purpose         string
	Business        *bool
	DriverName      string
	StartAddress    string
	EndAddress      string
}

// FinishTrip is the input to the second step. Nil fields leave the open
// trip's value untouched.
type FinishTrip struct {
	EndedAt       *time.Time
	EndOdometerKm *float64
	EndAddress    *string
	Purpose       *string
	Business      *bool
	DriverName    *string
}

// TripFilter narrows a trip listing.
type TripFilter struct {
	// VehicleReg limits the result to one vehicle when non-empty.
	VehicleReg string
	// IncludeOpen keeps trips that have not been finished yet.
	IncludeOpen bool
}
