package domain

import "time"

// JournalRow is a single line in the mileage journal export.
// Only closed trips are exported; optional numbers are nil when unknown.
type JournalRow struct {
	Year            int
	VehicleReg      string
	Date            string // "2006-01-02" in the report time zone
	StartAddress    string
	EndAddress      string
	StartOdometerKm *float64
	EndOdometerKm   *float64
	DistanceKm      *float64
	Purpose         string
	DriverName      string
	Business        bool
	StartedAt       time.Time
	EndedAt         time.Time
}

// JournalFilter selects which trips go into an export.
// Zero values mean "no restriction".
type JournalFilter struct {
	Year       int
	VehicleReg string
}
