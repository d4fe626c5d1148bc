// Package handler implements the HTTP handlers for the mileage journal API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, etc.) but share the same Server struct so they can
// access its dependencies.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/korjournal/internal/domain"
	"github.com/pkordes/korjournal/internal/odometer"
)

// TripServicer defines the business operations the trip handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type TripServicer interface {
	Start(ctx context.Context, in domain.StartTrip) (domain.Trip, error)
	Finish(ctx context.Context, id uuid.UUID, in domain.FinishTrip) (domain.Trip, error)
	FinishOpenTrip(ctx context.Context, vehicleReg string, in domain.FinishTrip) (domain.Trip, error)
	CreateDirect(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	OpenTrip(ctx context.Context, vehicleReg string) (domain.Trip, error)
	List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error)
	Update(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TemplateServicer defines the trip template operations.
type TemplateServicer interface {
	Create(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error)
	List(ctx context.Context) ([]domain.TripTemplate, error)
	Update(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CreateTrip(ctx context.Context, id uuid.UUID, in domain.TemplateTrip) (domain.Trip, error)
}

// SettingsServicer reads and writes the per-installation settings.
type SettingsServicer interface {
	Deduction(ctx context.Context) (domain.DeductionSettings, error)
	SaveDeduction(ctx context.Context, in domain.DeductionSettings) (domain.DeductionSettings, error)
	HomeAssistant(ctx context.Context) (domain.HomeAssistantSettings, error)
	SaveHomeAssistant(ctx context.Context, in domain.HomeAssistantUpdate) (domain.HomeAssistantSettings, error)
}

// ReportServicer computes the yearly mileage deduction.
type ReportServicer interface {
	Report(ctx context.Context, year int) (domain.DeductionReport, error)
}

// ExportServicer produces journal rows for the CSV export.
type ExportServicer interface {
	Journal(ctx context.Context, f domain.JournalFilter) ([]domain.JournalRow, error)
}

// OdometerResolver fills in an odometer reading that the client left out.
type OdometerResolver interface {
	Resolve(ctx context.Context, vehicleReg string, manual *float64) odometer.Reading
}

// HomeAssistantClient backs the explicit integration endpoints.
type HomeAssistantClient interface {
	Poll(ctx context.Context, entity string) (odometer.HAReading, error)
	ForceAndPoll(ctx context.Context, entity string) (odometer.HAReading, error)
}

// Deps groups the Server's collaborators. Tests may leave services they do
// not exercise nil.
type Deps struct {
	Trips         TripServicer
	Templates     TemplateServicer
	Settings      SettingsServicer
	Reports       ReportServicer
	Export        ExportServicer
	Odometer      OdometerResolver
	HomeAssistant HomeAssistantClient

	// OpenAPI is served verbatim at /openapi.yaml when non-empty.
	OpenAPI []byte
	// Location decides the default report year. Defaults to UTC.
	Location *time.Location
}

// Server serves every API endpoint.
type Server struct {
	trips     TripServicer
	templates TemplateServicer
	settings  SettingsServicer
	reports   ReportServicer
	export    ExportServicer
	odometer  OdometerResolver
	ha        HomeAssistantClient
	openAPI   []byte
	loc       *time.Location
	now       func() time.Time
}

// NewServer constructs the Server with all its dependencies.
func NewServer(d Deps) *Server {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Server{
		trips:     d.Trips,
		templates: d.Templates,
		settings:  d.Settings,
		reports:   d.Reports,
		export:    d.Export,
		odometer:  d.Odometer,
		ha:        d.HomeAssistant,
		openAPI:   d.OpenAPI,
		loc:       loc,
		now:       time.Now,
	}
}

// Routes registers every endpoint on a fresh chi router. main.go mounts the
// result behind the global middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/trips", func(r chi.Router) {
		r.Get("/", s.ListTrips)
		r.Post("/", s.CreateTrip)
		r.Post("/start", s.StartTrip)
		r.Post("/finish", s.FinishTrip)
		r.Get("/{id}", s.GetTrip)
		r.Put("/{id}", s.UpdateTrip)
		r.Delete("/{id}", s.DeleteTrip)
	})

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.ListTemplates)
		r.Post("/", s.CreateTemplate)
		r.Put("/{id}", s.UpdateTemplate)
		r.Delete("/{id}", s.DeleteTemplate)
		r.Post("/{id}/trips", s.CreateTripFromTemplate)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Get("/deduction", s.GetDeductionSettings)
		r.Put("/deduction", s.PutDeductionSettings)
		r.Get("/home-assistant", s.GetHomeAssistantSettings)
		r.Put("/home-assistant", s.PutHomeAssistantSettings)
	})

	r.Post("/integrations/home-assistant/poll", s.PollHomeAssistant)
	r.Post("/integrations/home-assistant/force-update-and-poll", s.ForceUpdateAndPollHomeAssistant)

	r.Get("/reports/deduction", s.GetDeductionReport)
	r.Get("/exports/journal.csv", s.GetJournalCSV)

	return r
}
