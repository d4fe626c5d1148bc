package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/pkordes/korjournal/internal/domain"
)

// journalHeaders are the column names written as the first row of the
// journal export, in the layout Skatteverket expects.
var journalHeaders = []string{
	"År", "Regnr", "Datum", "Startadress", "Slutadress",
	"Start mätarställning", "Slut mätarställning", "Antal km",
	"Ärende/Syfte", "Förare", "Tjänst/Privat",
}

// utf8BOM makes spreadsheet programs detect the encoding of the export.
const utf8BOM = "\ufeff"

// GetJournalCSV handles GET /exports/journal.csv.
// Supports ?year= and ?vehicle=. Only closed trips are exported, oldest first.
func (s *Server) GetJournalCSV(w http.ResponseWriter, r *http.Request) {
	var (
		year    *int
		vehicle *string
	)
	if err := queryParam(r, "year", &year); err != nil {
		writeRequestError(w, err)
		return
	}
	if err := queryParam(r, "vehicle", &vehicle); err != nil {
		writeRequestError(w, err)
		return
	}
	var f domain.JournalFilter
	if year != nil {
		f.Year = *year
	}
	if vehicle != nil {
		f.VehicleReg = *vehicle
	}

	rows, err := s.export.Journal(r.Context(), f)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	body := buildJournalCSV(rows)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="korjournal.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = body.WriteTo(w)
}

// buildJournalCSV encodes rows as semicolon-separated CSV behind a UTF-8 BOM.
func buildJournalCSV(rows []domain.JournalRow) *bytes.Buffer {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	cw := csv.NewWriter(&buf)
	cw.Comma = ';'

	// bytes.Buffer writes never fail; csv.Writer.Error would report otherwise.
	_ = cw.Write(journalHeaders)
	for _, r := range rows {
		_ = cw.Write(journalRowToRecord(r))
	}
	cw.Flush()
	return &buf
}

// journalRowToRecord encodes a row as a flat string slice. Unknown numbers
// are written as empty cells.
func journalRowToRecord(r domain.JournalRow) []string {
	kind := "Privat"
	if r.Business {
		kind = "Tjänst"
	}
	return []string{
		strconv.Itoa(r.Year),
		r.VehicleReg,
		r.Date,
		r.StartAddress,
		r.EndAddress,
		formatOptionalKm(r.StartOdometerKm),
		formatOptionalKm(r.EndOdometerKm),
		formatOptionalKm(r.DistanceKm),
		r.Purpose,
		r.DriverName,
		kind,
	}
}

// formatOptionalKm returns the shortest decimal form of km, or "" if km is nil.
func formatOptionalKm(km *float64) string {
	if km == nil {
		return ""
	}
	return strconv.FormatFloat(*km, 'f', -1, 64)
}
