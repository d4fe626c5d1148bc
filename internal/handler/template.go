package handler

import (
	"net/http"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/korjournal/internal/domain"
)

// Template is the JSON representation of a domain.TripTemplate.
type Template struct {
	Id                  openapi_types.UUID `json:"id"`
	Name                string             `json:"name"`
	DefaultPurpose      string             `json:"default_purpose"`
	Business            bool               `json:"business"`
	DefaultDistanceKm   *float64           `json:"default_distance_km,omitempty"`
	DefaultVehicleReg   string             `json:"default_vehicle_reg"`
	DefaultDriverName   string             `json:"default_driver_name"`
	DefaultStartAddress string             `json:"default_start_address"`
	DefaultEndAddress   string             `json:"default_end_address"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// TemplateRequest is the body of POST /templates and PUT /templates/{id}.
type TemplateRequest struct {
	Name                string   `json:"name"`
	DefaultPurpose      string   `json:"default_purpose"`
	Business            *bool    `json:"business"`
	DefaultDistanceKm   *float64 `json:"default_distance_km"`
	DefaultVehicleReg   string   `json:"default_vehicle_reg"`
	DefaultDriverName   string   `json:"default_driver_name"`
	DefaultStartAddress string   `json:"default_start_address"`
	DefaultEndAddress   string   `json:"default_end_address"`
}

// TemplateTripRequest is the body of POST /templates/{id}/trips.
type TemplateTripRequest struct {
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	VehicleReg      string    `json:"vehicle_reg"`
	StartOdometerKm *float64  `json:"start_odometer_km"`
	EndOdometerKm   *float64  `json:"end_odometer_km"`
	DistanceKm      *float64  `json:"distance_km"`
	DriverName      string    `json:"driver_name"`
}

// ListTemplates handles GET /templates.
func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := s.templates.List(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	out := make([]Template, len(tpls))
	for i, t := range tpls {
		out[i] = templateToResponse(t)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateTemplate handles POST /templates.
func (s *Server) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body TemplateRequest
	if err := decodeJSON(r, &body); err != nil {
		writeRequestError(w, err)
		return
	}

	created, err := s.templates.Create(r.Context(), requestToTemplate(body))
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, templateToResponse(created))
}

// UpdateTemplate handles PUT /templates/{id}.
func (s *Server) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	var body TemplateRequest
	if err := decodeJSON(r, &body); err != nil {
		writeRequestError(w, err)
		return
	}
	tpl := requestToTemplate(body)
	tpl.ID = id

	updated, err := s.templates.Update(r.Context(), tpl)
	if err != nil {
		writeError(w, r, err, "template not found")
		return
	}
	writeJSON(w, http.StatusOK, templateToResponse(updated))
}

// DeleteTemplate handles DELETE /templates/{id}.
func (s *Server) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if err := s.templates.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, "template not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateTripFromTemplate handles POST /templates/{id}/trips.
func (s *Server) CreateTripFromTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	var body TemplateTripRequest
	if err := decodeJSON(r, &body); err != nil {
		writeRequestError(w, err)
		return
	}

	trip, err := s.templates.CreateTrip(r.Context(), id, domain.TemplateTrip{
		StartedAt:       body.StartedAt,
		EndedAt:         body.EndedAt,
		VehicleReg:      body.VehicleReg,
		StartOdometerKm: body.StartOdometerKm,
		EndOdometerKm:   body.EndOdometerKm,
		DistanceKm:      body.DistanceKm,
		DriverName:      body.DriverName,
	})
	if err != nil {
		writeError(w, r, err, "template not found")
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(trip))
}

func requestToTemplate(body TemplateRequest) domain.TripTemplate {
	t := domain.TripTemplate{
		Name:                body.Name,
		DefaultPurpose:      body.DefaultPurpose,
		Business:            true,
		DefaultDistanceKm:   body.DefaultDistanceKm,
		DefaultVehicleReg:   body.DefaultVehicleReg,
		DefaultDriverName:   body.DefaultDriverName,
		DefaultStartAddress: body.DefaultStartAddress,
		DefaultEndAddress:   body.DefaultEndAddress,
	}
	if body.Business != nil {
		t.Business = *body.Business
	}
	return t
}

func templateToResponse(t domain.TripTemplate) Template {
	return Template{
		Id:                  t.ID,
		Name:                t.Name,
		DefaultPurpose:      t.DefaultPurpose,
		Business:            t.Business,
		DefaultDistanceKm:   t.DefaultDistanceKm,
		DefaultVehicleReg:   t.DefaultVehicleReg,
		DefaultDriverName:   t.DefaultDriverName,
		DefaultStartAddress: t.DefaultStartAddress,
		DefaultEndAddress:   t.DefaultEndAddress,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}
