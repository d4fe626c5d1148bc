package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkordes/korjournal/internal/domain"
	"github.com/pkordes/korjournal/internal/repo"
)

// ExportService assembles the flat mileage journal used by the CSV export.
type ExportService struct {
	trips repo.TripRepo
	loc   *time.Location
}

// NewExportService constructs an ExportService. Dates and years are rendered
// in loc; a nil loc means UTC.
func NewExportService(trips repo.TripRepo, loc *time.Location) *ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{trips: trips, loc: loc}
}

// journalFrom and journalTo bound an export without a year filter.
var (
	journalFrom = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	journalTo   = time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Journal returns one row per closed trip matching f, oldest first.
// Open trips are left out: they have no end and no distance yet.
func (s *ExportService) Journal(ctx context.Context, f domain.JournalFilter) ([]domain.JournalRow, error) {
	from, to := journalFrom, journalTo
	if f.Year != 0 {
		if f.Year < 1900 || f.Year > 9999 {
			return nil, fmt.Errorf("%w: year %d is out of range", domain.ErrValidation, f.Year)
		}
		from, to = yearRange(f.Year, s.loc)
	}

	trips, err := s.trips.ListStartedBetween(ctx, strings.TrimSpace(f.VehicleReg), from, to)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Journal: %w", err)
	}

	rows := make([]domain.JournalRow, 0, len(trips))
	for _, t := range trips {
		if t.IsOpen() {
			continue
		}
		started := t.StartedAt.In(s.loc)
		rows = append(rows, domain.JournalRow{
			Year:            started.Year(),
			VehicleReg:      t.VehicleReg,
			Date:            started.Format("2006-01-02"),
			StartAddress:    t.StartAddress,
			EndAddress:      t.EndAddress,
			StartOdometerKm: t.StartOdometerKm,
			EndOdometerKm:   t.EndOdometerKm,
			DistanceKm:      t.DistanceKm,
			Purpose:         t.Purpose,
			DriverName:      t.DriverName,
			Business:        t.Business,
			StartedAt:       started,
			EndedAt:         t.EndedAt.In(s.loc),
		})
	}
	return rows, nil
}
