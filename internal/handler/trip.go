package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/korjournal/internal/domain"
	"github.com/pkordes/korjournal/internal/odometer"
)

// Trip is the JSON representation of a domain.Trip.
type Trip struct {
	Id              openapi_types.UUID `json:"id"`
	VehicleReg      string             `json:"vehicle_reg"`
	StartedAt       time.Time          `json:"started_at"`
	EndedAt         *time.Time         `json:"ended_at,omitempty"`
	StartOdometerKm *float64           `json:"start_odometer_km,omitempty"`
	EndOdometerKm   *float64           `json:"end_odometer_km,omitempty"`
	DistanceKm      *float64           `json:"distance_km,omitempty"`
	Purpose         string             `json:"purpose"`
	Business        bool               `json:"business"`
	DriverName      string             `json:"driver_name"`
	StartAddress    string             `json:"start_address"`
	EndAddress      string             `json:"end_address"`
	Active          bool               `json:"active"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// TripWithSource is returned by start and finish. OdometerSource tells the
// client where the odometer reading came from: manual, poll, force or none.
type TripWithSource struct {
	Trip
	OdometerSource string `json:"odometer_source"`
}

// Pagination describes the page returned by a list endpoint.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// TripPage is the body of GET /trips.
type TripPage struct {
	Data       []Trip     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// TripRequest is the body of POST /trips and PUT /trips/{id}.
// EndedAt is required when creating; an update may leave a trip open.
type TripRequest struct {
	VehicleReg      string     `json:"vehicle_reg"`
	StartedAt       *time.Time `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	StartOdometerKm *float64   `json:"start_odometer_km"`
	EndOdometerKm   *float64   `json:"end_odometer_km"`
	DistanceKm      *float64   `json:"distance_km"`
	Purpose         string     `json:"purpose"`
	Business        *bool      `json:"business"`
	DriverName      string     `json:"driver_name"`
	StartAddress    string     `json:"start_address"`
	EndAddress      string     `json:"end_address"`
}

// StartTripRequest is the body of POST /trips/start.
type StartTripRequest struct {
	VehicleReg      string     `json:"vehicle_reg"`
	StartedAt       *time.Time `json:"started_at"`
	StartOdometerKm *float64   `json:"start_odometer_km"`
	Purpose         string     `json:"purpose"`
	Business        *bool      `json:"business"`
	DriverName      string     `json:"driver_name"`
	StartAddress    string     `json:"start_address"`
	EndAddress      string     `json:"end_address"`
}

// FinishTripRequest is the body of POST /trips/finish. TripId wins over
// VehicleReg when both are given.
type FinishTripRequest struct {
	TripId        *openapi_types.UUID `json:"trip_id"`
	VehicleReg    string              `json:"vehicle_reg"`
	EndedAt       *time.Time          `json:"ended_at"`
	EndOdometerKm *float64            `json:"end_odometer_km"`
	EndAddress    *string             `json:"end_address"`
	Purpose       *string             `json:"purpose"`
	Business      *bool               `json:"business"`
	DriverName    *string             `json:"driver_name"`
}

// ListTrips handles GET /trips.
// Supports ?vehicle=, ?include_active= (default true), ?page= and ?limit=
// (defaults: page=1, limit=20, max=100).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	var (
		vehicle       *string
		includeActive *bool
		page, limit   *int
	)
	for name, dst := range map[string]any{
		"vehicle": &vehicle, "include_active": &includeActive, "page": &page, "limit": &limit,
	} {
		if err := queryParam(r, name, dst); err != nil {
			writeRequestError(w, err)
			return
		}
	}

	f := domain.TripFilter{IncludeOpen: includeActive == nil || *includeActive}
	if vehicle != nil {
		f.VehicleReg = *vehicle
	}
	params := domain.NewPaginationParams(page, limit)

	trips, total, err := s.trips.List(r.Context(), f, params)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	data := make([]Trip, len(trips))
	for i, t := range trips {
		data[i] = tripToResponse(t)
	}
	writeJSON(w, http.StatusOK, TripPage{
		Data: data,
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: int(total),
		},
	})
}

// CreateTrip handles POST /trips: a finished trip entered in one step.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var body TripRequest
	if err := decodeJSON(r, &body); err != nil {
		writeRequestError(w, err)
		return
	}
	trip, err := requestToTrip(body)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if trip.EndedAt == nil {
		writeRequestError(w, errors.New("ended_at is required"))
		return
	}

	created, err := s.trips.CreateDirect(r.Context(), trip)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(created))
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	trip, err := s.trips.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// UpdateTrip handles PUT /trips/{id}. The distance is recomputed from the
// odometer readings unless distance_km is given.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	var body TripRequest
	if err := decodeJSON(r, &body); err != nil {
		writeRequestError(w, err)
		return
	}
	trip, err := requestToTrip(body)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	trip.ID = id

	updated, err := s.trips.Update(r.Context(), trip)
	if err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(updated))
}

// DeleteTrip handles DELETE /trips/{id}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	if err := s.trips.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, "trip not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartTrip handles POST /trips/start. When start_odometer_km is omitted the
// odometer is read through the configured provider chain.
func (s *Server) StartTrip(w http.ResponseWriter, r *http.Request) {
	var body StartTripRequest
	if err := decodeJSON(r, &body); err != nil {
		writeRequestError(w, err)
		return
	}

	in := domain.StartTrip{
		VehicleReg:      body.VehicleReg,
		StartedAt:       body.StartedAt,
		StartOdometerKm: body.StartOdometerKm,
		Purpose:         body.Purpose,
		Business:        body.Business,
		DriverName:      body.DriverName,
		StartAddress:    body.StartAddress,
		EndAddress:      body.EndAddress,
	}
	if s.readsProvider(in.VehicleReg, in.StartOdometerKm) {
		// Reject a duplicate start before the provider is asked.
		_, err := s.trips.OpenTrip(r.Context(), in.VehicleReg)
		if err == nil {
			err = domain.ErrOpenTripExists
		}
		if !errors.Is(err, domain.ErrNotFound) {
			writeError(w, r, err, "")
			return
		}
	}
	reading := s.resolveOdometer(r, in.VehicleReg, in.StartOdometerKm)
	in.StartOdometerKm = reading.Km

	trip, err := s.trips.Start(r.Context(), in)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, TripWithSource{Trip: tripToResponse(trip), OdometerSource: reading.Source})
}

// FinishTrip handles POST /trips/finish. The trip is picked by trip_id, or
// else by the open trip of vehicle_reg. When end_odometer_km is omitted the
// odometer is read through the configured provider chain.
func (s *Server) FinishTrip(w http.ResponseWriter, r *http.Request) {
	var body FinishTripRequest
	if err := decodeJSON(r, &body); err != nil {
		writeRequestError(w, err)
		return
	}
	in := domain.FinishTrip{
		EndedAt:       body.EndedAt,
		EndOdometerKm: body.EndOdometerKm,
		EndAddress:    body.EndAddress,
		Purpose:       body.Purpose,
		Business:      body.Business,
		DriverName:    body.DriverName,
	}

	reg := strings.TrimSpace(body.VehicleReg)
	if body.TripId != nil && in.EndOdometerKm == nil {
		// The provider chain is keyed by vehicle.
		open, err := s.trips.GetByID(r.Context(), *body.TripId)
		if err != nil {
			writeError(w, r, err, "trip not found")
			return
		}
		if !open.IsOpen() {
			writeError(w, r, domain.ErrNotFound, "no open trip found")
			return
		}
		reg = open.VehicleReg
	} else if body.TripId == nil && s.readsProvider(reg, in.EndOdometerKm) {
		if _, err := s.trips.OpenTrip(r.Context(), reg); err != nil {
			writeError(w, r, err, "no open trip found")
			return
		}
	}
	reading := s.resolveOdometer(r, reg, in.EndOdometerKm)
	in.EndOdometerKm = reading.Km

	var (
		trip domain.Trip
		err  error
	)
	if body.TripId != nil {
		trip, err = s.trips.Finish(r.Context(), *body.TripId, in)
	} else {
		trip, err = s.trips.FinishOpenTrip(r.Context(), reg, in)
	}
	if err != nil {
		writeError(w, r, err, "no open trip found")
		return
	}
	writeJSON(w, http.StatusOK, TripWithSource{Trip: tripToResponse(trip), OdometerSource: reading.Source})
}

// readsProvider reports whether resolveOdometer would go past the manual value.
func (s *Server) readsProvider(vehicleReg string, manual *float64) bool {
	return s.odometer != nil && manual == nil && strings.TrimSpace(vehicleReg) != ""
}

// resolveOdometer runs the provider chain. Without a resolver or a vehicle
// only the manual value is considered.
func (s *Server) resolveOdometer(r *http.Request, vehicleReg string, manual *float64) odometer.Reading {
	if s.odometer == nil || strings.TrimSpace(vehicleReg) == "" {
		if manual != nil {
			return odometer.Reading{Km: manual, Source: odometer.SourceManual}
		}
		return odometer.Reading{Source: odometer.SourceNone}
	}
	return s.odometer.Resolve(r.Context(), strings.TrimSpace(vehicleReg), manual)
}

// --- mapping helpers --------------------------------------------------------

// requestToTrip converts a TripRequest body into a domain.Trip.
// Business defaults to true, as for trips started in two steps.
func requestToTrip(body TripRequest) (domain.Trip, error) {
	if body.StartedAt == nil {
		return domain.Trip{}, errors.New("started_at is required")
	}
	t := domain.Trip{
		VehicleReg:      body.VehicleReg,
		StartedAt:       *body.StartedAt,
		EndedAt:         body.EndedAt,
		StartOdometerKm: body.StartOdometerKm,
		EndOdometerKm:   body.EndOdometerKm,
		DistanceKm:      body.DistanceKm,
		Purpose:         body.Purpose,
		Business:        true,
		DriverName:      body.DriverName,
		StartAddress:    body.StartAddress,
		EndAddress:      body.EndAddress,
	}
	if body.Business != nil {
		t.Business = *body.Business
	}
	return t, nil
}

// tripToResponse converts a domain.Trip into its JSON representation.
func tripToResponse(t domain.Trip) Trip {
	return Trip{
		Id:              t.ID,
		VehicleReg:      t.VehicleReg,
		StartedAt:       t.StartedAt,
		EndedAt:         t.EndedAt,
		StartOdometerKm: t.StartOdometerKm,
		EndOdometerKm:   t.EndOdometerKm,
		DistanceKm:      t.DistanceKm,
		Purpose:         t.Purpose,
		Business:        t.Business,
		DriverName:      t.DriverName,
		StartAddress:    t.StartAddress,
		EndAddress:      t.EndAddress,
		Active:          t.IsOpen(),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}
