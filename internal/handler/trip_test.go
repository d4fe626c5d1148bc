package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/korjournal/internal/domain"
	"github.com/pkordes/korjournal/internal/handler"
	"github.com/pkordes/korjournal/internal/odometer"
)

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs.
type mockTripServicer struct {
	start          func(ctx context.Context, in domain.StartTrip) (domain.Trip, error)
	finish         func(ctx context.Context, id uuid.UUID, in domain.FinishTrip) (domain.Trip, error)
	finishOpenTrip func(ctx context.Context, reg string, in domain.FinishTrip) (domain.Trip, error)
	createDirect   func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	getByID        func(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	openTrip       func(ctx context.Context, reg string) (domain.Trip, error)
	list           func(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error)
	update         func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	delete         func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTripServicer) Start(ctx context.Context, in domain.StartTrip) (domain.Trip, error) {
	return m.start(ctx, in)
}
func (m *mockTripServicer) Finish(ctx context.Context, id uuid.UUID, in domain.FinishTrip) (domain.Trip, error) {
	return m.finish(ctx, id, in)
}
func (m *mockTripServicer) FinishOpenTrip(ctx context.Context, reg string, in domain.FinishTrip) (domain.Trip, error) {
	return m.finishOpenTrip(ctx, reg, in)
}
func (m *mockTripServicer) CreateDirect(ctx context.Context, t domain.Trip) (domain.Trip, error) {
	return m.createDirect(ctx, t)
}
func (m *mockTripServicer) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTripServicer) OpenTrip(ctx context.Context, reg string) (domain.Trip, error) {
	return m.openTrip(ctx, reg)
}
func (m *mockTripServicer) List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	return m.list(ctx, f, p)
}
func (m *mockTripServicer) Update(ctx context.Context, t domain.Trip) (domain.Trip, error) {
	return m.update(ctx, t)
}
func (m *mockTripServicer) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

// compile-time check: mockTripServicer must satisfy handler.TripServicer.
var _ handler.TripServicer = (*mockTripServicer)(nil)

// fakeResolver records what the handler asked for and answers with reading.
type fakeResolver struct {
	reading odometer.Reading
	calls   int
	reg     string
	manual  *float64
}

func (f *fakeResolver) Resolve(_ context.Context, reg string, manual *float64) odometer.Reading {
	f.calls++
	f.reg, f.manual = reg, manual
	if manual != nil {
		return odometer.Reading{Km: manual, Source: odometer.SourceManual}
	}
	return f.reading
}

var _ handler.OdometerResolver = (*fakeResolver)(nil)

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler wires a Server with the given mock into the chi router.
// This mirrors how main.go wires it in production.
func newHTTPHandler(svc handler.TripServicer) http.Handler {
	return handler.NewServer(handler.Deps{Trips: svc}).Routes()
}

func newHTTPHandlerWithResolver(svc handler.TripServicer, res handler.OdometerResolver) http.Handler {
	return handler.NewServer(handler.Deps{Trips: svc, Odometer: res}).Routes()
}

func ptr[T any](v T) *T { return &v }

func tripFixture() domain.Trip {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 1, 8, 45, 0, 0, time.UTC)
	return domain.Trip{
		ID:              uuid.New(),
		VehicleReg:      "ABC123",
		StartedAt:       start,
		EndedAt:         &end,
		StartOdometerKm: ptr(12345.6),
		EndOdometerKm:   ptr(12358.1),
		DistanceKm:      ptr(12.5),
		Purpose:         "Kundmöte",
		Business:        true,
		DriverName:      "Kim",
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
}

func openTripFixture() domain.Trip {
	t := tripFixture()
	t.EndedAt, t.EndOdometerKm, t.DistanceKm = nil, nil, nil
	return t
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func serve(h http.Handler, method, target string, body *bytes.Buffer) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// ---- POST /trips -----------------------------------------------------------

func TestCreateTrip_201(t *testing.T) {
	fixture := tripFixture()
	var got domain.Trip
	svc := &mockTripServicer{
		createDirect: func(_ context.Context, trip domain.Trip) (domain.Trip, error) {
			got = trip
			return fixture, nil
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodPost, "/trips", jsonBody(t, map[string]any{
		"vehicle_reg":       "ABC123",
		"started_at":        fixture.StartedAt,
		"ended_at":          fixture.EndedAt,
		"start_odometer_km": 12345.6,
		"end_odometer_km":   12358.1,
		"purpose":           "Kundmöte",
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, got.Business, "business defaults to true")
	assert.Equal(t, "ABC123", got.VehicleReg)
	assert.Nil(t, got.DistanceKm)

	var resp handler.Trip
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, fixture.ID, resp.Id)
	assert.Equal(t, 12.5, *resp.DistanceKm)
	assert.False(t, resp.Active)
}

func TestCreateTrip_422_MissingEndedAt(t *testing.T) {
	svc := &mockTripServicer{}

	rec := serve(newHTTPHandler(svc), http.MethodPost, "/trips", jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
		"started_at":  "2025-06-01T08:00:00Z",
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ended_at is required", decodeError(t, rec).Error.Message)
}

func TestCreateTrip_422_UnknownField(t *testing.T) {
	rec := serve(newHTTPHandler(&mockTripServicer{}), http.MethodPost, "/trips", jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
		"distance":    12,
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateTrip_422_ValidationError(t *testing.T) {
	svc := &mockTripServicer{
		createDirect: func(_ context.Context, _ domain.Trip) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("%w: distance 2500.0 km exceeds the maximum of 2000 km", domain.ErrValidation)
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodPost, "/trips", jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
		"started_at":  "2025-06-01T08:00:00Z",
		"ended_at":    "2025-06-01T18:00:00Z",
		"distance_km": 2500,
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "validation_error", resp.Error.Code)
	assert.Equal(t, "distance 2500.0 km exceeds the maximum of 2000 km", resp.Error.Message)
}

// ---- GET /trips ------------------------------------------------------------

func TestListTrips_200(t *testing.T) {
	var gotFilter domain.TripFilter
	var gotPage domain.PaginationParams
	svc := &mockTripServicer{
		list: func(_ context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
			gotFilter, gotPage = f, p
			return []domain.Trip{tripFixture(), openTripFixture()}, 42, nil
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodGet, "/trips?vehicle=ABC123&page=2&limit=10", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.TripFilter{VehicleReg: "ABC123", IncludeOpen: true}, gotFilter)
	assert.Equal(t, domain.PaginationParams{Page: 2, Limit: 10}, gotPage)

	var resp handler.TripPage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.Data[1].Active)
	assert.Equal(t, handler.Pagination{Page: 2, Limit: 10, Total: 42}, resp.Pagination)
}

func TestListTrips_ExcludeActive(t *testing.T) {
	var gotFilter domain.TripFilter
	svc := &mockTripServicer{
		list: func(_ context.Context, f domain.TripFilter, _ domain.PaginationParams) ([]domain.Trip, int64, error) {
			gotFilter = f
			return []domain.Trip{}, 0, nil
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodGet, "/trips?include_active=false", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, gotFilter.IncludeOpen)
	// Must be a JSON array, not null.
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestListTrips_422_BadParam(t *testing.T) {
	rec := serve(newHTTPHandler(&mockTripServicer{}), http.MethodGet, "/trips?page=first", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ---- GET /trips/{id} -------------------------------------------------------

func TestGetTrip_200(t *testing.T) {
	fixture := tripFixture()
	svc := &mockTripServicer{
		getByID: func(_ context.Context, id uuid.UUID) (domain.Trip, error) {
			assert.Equal(t, fixture.ID, id)
			return fixture, nil
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodGet, "/trips/"+fixture.ID.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.Trip
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, fixture.ID, resp.Id)
	assert.Equal(t, "ABC123", resp.VehicleReg)
}

func TestGetTrip_404(t *testing.T) {
	svc := &mockTripServicer{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", domain.ErrNotFound)
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodGet, "/trips/"+uuid.New().String(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "not_found", resp.Error.Code)
	assert.Equal(t, "trip not found", resp.Error.Message)
}

func TestGetTrip_422_BadID(t *testing.T) {
	rec := serve(newHTTPHandler(&mockTripServicer{}), http.MethodGet, "/trips/not-a-uuid", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ---- PUT /trips/{id} -------------------------------------------------------

func TestUpdateTrip_200(t *testing.T) {
	fixture := tripFixture()
	var got domain.Trip
	svc := &mockTripServicer{
		update: func(_ context.Context, trip domain.Trip) (domain.Trip, error) {
			got = trip
			return fixture, nil
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodPut, "/trips/"+fixture.ID.String(), jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
		"started_at":  fixture.StartedAt,
		"ended_at":    fixture.EndedAt,
		"distance_km": 13,
		"business":    false,
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fixture.ID, got.ID, "the path id is used")
	assert.Equal(t, 13.0, *got.DistanceKm)
	assert.False(t, got.Business)
}

func TestUpdateTrip_404(t *testing.T) {
	svc := &mockTripServicer{
		update: func(_ context.Context, _ domain.Trip) (domain.Trip, error) {
			return domain.Trip{}, domain.ErrNotFound
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodPut, "/trips/"+uuid.New().String(), jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
		"started_at":  "2025-06-01T08:00:00Z",
	}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTrip_422_MissingStartedAt(t *testing.T) {
	rec := serve(newHTTPHandler(&mockTripServicer{}), http.MethodPut, "/trips/"+uuid.New().String(), jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "started_at is required", decodeError(t, rec).Error.Message)
}

// ---- DELETE /trips/{id} ----------------------------------------------------

func TestDeleteTrip_204(t *testing.T) {
	svc := &mockTripServicer{
		delete: func(_ context.Context, _ uuid.UUID) error { return nil },
	}

	rec := serve(newHTTPHandler(svc), http.MethodDelete, "/trips/"+uuid.New().String(), nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestDeleteTrip_404(t *testing.T) {
	svc := &mockTripServicer{
		delete: func(_ context.Context, _ uuid.UUID) error { return domain.ErrNotFound },
	}

	rec := serve(newHTTPHandler(svc), http.MethodDelete, "/trips/"+uuid.New().String(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ---- POST /trips/start -----------------------------------------------------

func TestStartTrip_201_ResolvesOdometer(t *testing.T) {
	res := &fakeResolver{reading: odometer.Reading{Km: ptr(12345.6), Source: odometer.SourcePoll}}
	var got domain.StartTrip
	svc := &mockTripServicer{
		openTrip: func(_ context.Context, _ string) (domain.Trip, error) {
			return domain.Trip{}, domain.ErrNotFound
		},
		start: func(_ context.Context, in domain.StartTrip) (domain.Trip, error) {
			got = in
			trip := openTripFixture()
			trip.StartOdometerKm = in.StartOdometerKm
			return trip, nil
		},
	}

	rec := serve(newHTTPHandlerWithResolver(svc, res), http.MethodPost, "/trips/start", jsonBody(t, map[string]any{
		"vehicle_reg": " ABC123 ",
		"purpose":     "Kundmöte",
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, res.calls)
	assert.Equal(t, "ABC123", res.reg)
	require.NotNil(t, got.StartOdometerKm)
	assert.Equal(t, 12345.6, *got.StartOdometerKm)

	var resp handler.TripWithSource
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "poll", resp.OdometerSource)
	assert.True(t, resp.Active)
}

func TestStartTrip_201_ManualOdometer(t *testing.T) {
	res := &fakeResolver{reading: odometer.Reading{Km: ptr(1.0), Source: odometer.SourcePoll}}
	svc := &mockTripServicer{
		start: func(_ context.Context, in domain.StartTrip) (domain.Trip, error) {
			trip := openTripFixture()
			trip.StartOdometerKm = in.StartOdometerKm
			return trip, nil
		},
	}

	rec := serve(newHTTPHandlerWithResolver(svc, res), http.MethodPost, "/trips/start", jsonBody(t, map[string]any{
		"vehicle_reg":       "ABC123",
		"start_odometer_km": 500.5,
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp handler.TripWithSource
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "manual", resp.OdometerSource)
	assert.Equal(t, 500.5, *resp.StartOdometerKm)
}

func TestStartTrip_201_NoResolver(t *testing.T) {
	svc := &mockTripServicer{
		start: func(_ context.Context, in domain.StartTrip) (domain.Trip, error) {
			assert.Nil(t, in.StartOdometerKm)
			return openTripFixture(), nil
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodPost, "/trips/start", jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"odometer_source":"none"`)
}

func TestStartTrip_422_OpenTripExists(t *testing.T) {
	svc := &mockTripServicer{
		start: func(_ context.Context, _ domain.StartTrip) (domain.Trip, error) {
			return domain.Trip{}, domain.ErrOpenTripExists
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodPost, "/trips/start", jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "vehicle already has an open trip", decodeError(t, rec).Error.Message)
}

func TestStartTrip_422_OpenTripExistsSkipsOdometer(t *testing.T) {
	res := &fakeResolver{reading: odometer.Reading{Km: ptr(12345.6), Source: odometer.SourceForce}}
	svc := &mockTripServicer{
		openTrip: func(_ context.Context, reg string) (domain.Trip, error) {
			assert.Equal(t, "ABC123", reg)
			return openTripFixture(), nil
		},
	}

	rec := serve(newHTTPHandlerWithResolver(svc, res), http.MethodPost, "/trips/start", jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "vehicle already has an open trip", decodeError(t, rec).Error.Message)
	assert.Zero(t, res.calls, "no odometer read for a duplicate start")
}

func TestStartTrip_500_OpenTripLookupFails(t *testing.T) {
	res := &fakeResolver{}
	svc := &mockTripServicer{
		openTrip: func(_ context.Context, _ string) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("connection reset")
		},
	}

	rec := serve(newHTTPHandlerWithResolver(svc, res), http.MethodPost, "/trips/start", jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, res.calls)
}

func TestStartTrip_422_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/trips/start", nil)
	rec := httptest.NewRecorder()
	newHTTPHandler(&mockTripServicer{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "request body is required", decodeError(t, rec).Error.Message)
}

// ---- POST /trips/finish ----------------------------------------------------

func TestFinishTrip_200_ByVehicle(t *testing.T) {
	res := &fakeResolver{reading: odometer.Reading{Km: ptr(12358.1), Source: odometer.SourceForce}}
	var gotReg string
	var got domain.FinishTrip
	svc := &mockTripServicer{
		openTrip: func(_ context.Context, _ string) (domain.Trip, error) { return openTripFixture(), nil },
		finishOpenTrip: func(_ context.Context, reg string, in domain.FinishTrip) (domain.Trip, error) {
			gotReg, got = reg, in
			return tripFixture(), nil
		},
	}

	rec := serve(newHTTPHandlerWithResolver(svc, res), http.MethodPost, "/trips/finish", jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
		"end_address": "Kundvägen 7",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ABC123", gotReg)
	assert.Equal(t, 12358.1, *got.EndOdometerKm)
	assert.Equal(t, "Kundvägen 7", *got.EndAddress)
	assert.Nil(t, got.Purpose, "omitted fields stay nil")

	var resp handler.TripWithSource
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "force", resp.OdometerSource)
	assert.Equal(t, 12.5, *resp.DistanceKm)
}

func TestFinishTrip_200_ByIDLooksUpVehicle(t *testing.T) {
	open := openTripFixture()
	res := &fakeResolver{reading: odometer.Reading{Source: odometer.SourceNone}}
	svc := &mockTripServicer{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.Trip, error) { return open, nil },
		finish: func(_ context.Context, id uuid.UUID, in domain.FinishTrip) (domain.Trip, error) {
			assert.Equal(t, open.ID, id)
			assert.Nil(t, in.EndOdometerKm)
			closed := open
			closed.EndedAt = ptr(open.StartedAt.Add(time.Hour))
			return closed, nil
		},
	}

	rec := serve(newHTTPHandlerWithResolver(svc, res), http.MethodPost, "/trips/finish", jsonBody(t, map[string]any{
		"trip_id": open.ID,
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ABC123", res.reg)
	assert.Contains(t, rec.Body.String(), `"odometer_source":"none"`)
}

func TestFinishTrip_200_ByIDWithManualOdometerSkipsLookup(t *testing.T) {
	id := uuid.New()
	svc := &mockTripServicer{
		finish: func(_ context.Context, gotID uuid.UUID, in domain.FinishTrip) (domain.Trip, error) {
			assert.Equal(t, id, gotID)
			assert.Equal(t, 12358.1, *in.EndOdometerKm)
			return tripFixture(), nil
		},
	}

	rec := serve(newHTTPHandlerWithResolver(svc, &fakeResolver{}), http.MethodPost, "/trips/finish", jsonBody(t, map[string]any{
		"trip_id":         id,
		"end_odometer_km": 12358.1,
	}))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFinishTrip_404_AlreadyFinished(t *testing.T) {
	svc := &mockTripServicer{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.Trip, error) { return tripFixture(), nil },
	}
	res := &fakeResolver{}

	rec := serve(newHTTPHandlerWithResolver(svc, res), http.MethodPost, "/trips/finish", jsonBody(t, map[string]any{
		"trip_id": uuid.New(),
	}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, res.calls, "no odometer read for a closed trip")
}

func TestFinishTrip_404_NoOpenTrip(t *testing.T) {
	svc := &mockTripServicer{
		finishOpenTrip: func(_ context.Context, _ string, _ domain.FinishTrip) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("service.TripService.FinishOpenTrip: %w", domain.ErrNotFound)
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodPost, "/trips/finish", jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
	}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no open trip found", decodeError(t, rec).Error.Message)
}

func TestFinishTrip_404_NoOpenTripSkipsOdometer(t *testing.T) {
	res := &fakeResolver{reading: odometer.Reading{Km: ptr(12358.1), Source: odometer.SourceForce}}
	svc := &mockTripServicer{
		openTrip: func(_ context.Context, _ string) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("service.TripService.OpenTrip: %w", domain.ErrNotFound)
		},
	}

	rec := serve(newHTTPHandlerWithResolver(svc, res), http.MethodPost, "/trips/finish", jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
	}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no open trip found", decodeError(t, rec).Error.Message)
	assert.Zero(t, res.calls, "no odometer read without an open trip")
}

func TestFinishTrip_422_NegativeDistance(t *testing.T) {
	svc := &mockTripServicer{
		finishOpenTrip: func(_ context.Context, _ string, _ domain.FinishTrip) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("service.TripService.FinishOpenTrip: %w: end odometer is below start odometer", domain.ErrValidation)
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodPost, "/trips/finish", jsonBody(t, map[string]any{
		"vehicle_reg":     "ABC123",
		"end_odometer_km": 100,
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "end odometer is below start odometer", decodeError(t, rec).Error.Message)
}

func TestFinishTrip_500_Unexpected(t *testing.T) {
	svc := &mockTripServicer{
		finishOpenTrip: func(_ context.Context, _ string, _ domain.FinishTrip) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("connection reset")
		},
	}

	rec := serve(newHTTPHandler(svc), http.MethodPost, "/trips/finish", jsonBody(t, map[string]any{
		"vehicle_reg": "ABC123",
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeError(t, rec).Error.Code)
}
