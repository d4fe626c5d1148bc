package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/korjournal/internal/domain"
	"github.com/pkordes/korjournal/internal/repo"
	"github.com/pkordes/korjournal/internal/service"
)

// mockTemplateRepo is a hand-written test double for repo.TemplateRepo.
type mockTemplateRepo struct {
	create  func(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error)
	getByID func(ctx context.Context, id uuid.UUID) (domain.TripTemplate, error)
	list    func(ctx context.Context) ([]domain.TripTemplate, error)
	update  func(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error)
	delete  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTemplateRepo) Create(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error) {
	return m.create(ctx, tpl)
}
func (m *mockTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.TripTemplate, error) {
	return m.getByID(ctx, id)
}
func (m *mockTemplateRepo) List(ctx context.Context) ([]domain.TripTemplate, error) {
	return m.list(ctx)
}
func (m *mockTemplateRepo) Update(ctx context.Context, tpl domain.TripTemplate) (domain.TripTemplate, error) {
	return m.update(ctx, tpl)
}
func (m *mockTemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

// compile-time check: mockTemplateRepo must satisfy repo.TemplateRepo.
var _ repo.TemplateRepo = (*mockTemplateRepo)(nil)

// ---- helpers ---------------------------------------------------------------

func officeTemplate() domain.TripTemplate {
	return domain.TripTemplate{
		ID:                  uuid.New(),
		Name:                "Kontoret",
		DefaultPurpose:      "Pendling till kund",
		Business:            true,
		DefaultDistanceKm:   ptr(18.0),
		DefaultVehicleReg:   "ABC123",
		DefaultDriverName:   "Kim",
		DefaultStartAddress: "Hemma",
		DefaultEndAddress:   "Kontoret",
	}
}

func templateRepoWith(tpl domain.TripTemplate) *mockTemplateRepo {
	return &mockTemplateRepo{
		create: func(_ context.Context, t domain.TripTemplate) (domain.TripTemplate, error) { return t, nil },
		update: func(_ context.Context, t domain.TripTemplate) (domain.TripTemplate, error) { return t, nil },
		getByID: func(_ context.Context, id uuid.UUID) (domain.TripTemplate, error) {
			if id != tpl.ID {
				return domain.TripTemplate{}, domain.ErrNotFound
			}
			return tpl, nil
		},
	}
}

func newTemplateService(tpls repo.TemplateRepo, trips repo.TripRepo) *service.TemplateService {
	return service.NewTemplateService(tpls, newTripService(trips))
}

func tripWindow() (time.Time, time.Time) {
	start := time.Date(2025, 9, 2, 7, 30, 0, 0, time.UTC)
	return start, start.Add(25 * time.Minute)
}

// ---- CRUD ------------------------------------------------------------------

func TestTemplateService_Create_TrimsAndValidates(t *testing.T) {
	svc := newTemplateService(templateRepoWith(officeTemplate()), echoRepo())

	tpl := officeTemplate()
	tpl.Name = "  Kontoret  "

	got, err := svc.Create(context.Background(), tpl)

	require.NoError(t, err)
	assert.Equal(t, "Kontoret", got.Name)
}

func TestTemplateService_Create_MissingName(t *testing.T) {
	svc := newTemplateService(templateRepoWith(officeTemplate()), echoRepo())

	tpl := officeTemplate()
	tpl.Name = " "

	_, err := svc.Create(context.Background(), tpl)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTemplateService_Create_NegativeDistance(t *testing.T) {
	svc := newTemplateService(templateRepoWith(officeTemplate()), echoRepo())

	tpl := officeTemplate()
	tpl.DefaultDistanceKm = ptr(-1.0)

	_, err := svc.Create(context.Background(), tpl)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTemplateService_Create_DuplicateName(t *testing.T) {
	r := templateRepoWith(officeTemplate())
	r.create = func(_ context.Context, _ domain.TripTemplate) (domain.TripTemplate, error) {
		return domain.TripTemplate{}, domain.ErrConflict
	}
	svc := newTemplateService(r, echoRepo())

	_, err := svc.Create(context.Background(), officeTemplate())

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTemplateService_List_Empty(t *testing.T) {
	r := &mockTemplateRepo{
		list: func(_ context.Context) ([]domain.TripTemplate, error) { return nil, nil },
	}
	svc := newTemplateService(r, echoRepo())

	got, err := svc.List(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestTemplateService_Update_NotFound(t *testing.T) {
	r := templateRepoWith(officeTemplate())
	r.update = func(_ context.Context, _ domain.TripTemplate) (domain.TripTemplate, error) {
		return domain.TripTemplate{}, domain.ErrNotFound
	}
	svc := newTemplateService(r, echoRepo())

	_, err := svc.Update(context.Background(), officeTemplate())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTemplateService_Delete(t *testing.T) {
	var deleted uuid.UUID
	r := &mockTemplateRepo{
		delete: func(_ context.Context, id uuid.UUID) error { deleted = id; return nil },
	}
	svc := newTemplateService(r, echoRepo())
	id := uuid.New()

	require.NoError(t, svc.Delete(context.Background(), id))
	assert.Equal(t, id, deleted)
}

// ---- CreateTrip ------------------------------------------------------------

func TestTemplateService_CreateTrip_UsesDefaults(t *testing.T) {
	tpl := officeTemplate()
	svc := newTemplateService(templateRepoWith(tpl), echoRepo())
	start, end := tripWindow()

	got, err := svc.CreateTrip(context.Background(), tpl.ID, domain.TemplateTrip{StartedAt: start, EndedAt: end})

	require.NoError(t, err)
	assert.Equal(t, "ABC123", got.VehicleReg)
	assert.Equal(t, "Pendling till kund", got.Purpose)
	assert.Equal(t, "Kim", got.DriverName)
	assert.Equal(t, "Hemma", got.StartAddress)
	assert.Equal(t, "Kontoret", got.EndAddress)
	assert.True(t, got.Business)
	require.NotNil(t, got.DistanceKm)
	assert.Equal(t, 18.0, *got.DistanceKm)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, end, *got.EndedAt)
}

func TestTemplateService_CreateTrip_OdometerBeatsDefaultDistance(t *testing.T) {
	tpl := officeTemplate()
	svc := newTemplateService(templateRepoWith(tpl), echoRepo())
	start, end := tripWindow()

	got, err := svc.CreateTrip(context.Background(), tpl.ID, domain.TemplateTrip{
		StartedAt:       start,
		EndedAt:         end,
		VehicleReg:      "XYZ789",
		StartOdometerKm: ptr(5000.0),
		EndOdometerKm:   ptr(5019.3),
	})

	require.NoError(t, err)
	assert.Equal(t, "XYZ789", got.VehicleReg)
	assert.Equal(t, 19.3, *got.DistanceKm)
}

func TestTemplateService_CreateTrip_ExplicitDistanceWins(t *testing.T) {
	tpl := officeTemplate()
	svc := newTemplateService(templateRepoWith(tpl), echoRepo())
	start, end := tripWindow()

	got, err := svc.CreateTrip(context.Background(), tpl.ID, domain.TemplateTrip{
		StartedAt:  start,
		EndedAt:    end,
		DistanceKm: ptr(21.0),
	})

	require.NoError(t, err)
	assert.Equal(t, 21.0, *got.DistanceKm)
}

func TestTemplateService_CreateTrip_NoVehicleAnywhere(t *testing.T) {
	tpl := officeTemplate()
	tpl.DefaultVehicleReg = ""
	svc := newTemplateService(templateRepoWith(tpl), echoRepo())
	start, end := tripWindow()

	_, err := svc.CreateTrip(context.Background(), tpl.ID, domain.TemplateTrip{StartedAt: start, EndedAt: end})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTemplateService_CreateTrip_MissingTimes(t *testing.T) {
	tpl := officeTemplate()
	svc := newTemplateService(templateRepoWith(tpl), echoRepo())

	_, err := svc.CreateTrip(context.Background(), tpl.ID, domain.TemplateTrip{})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTemplateService_CreateTrip_UnknownTemplate(t *testing.T) {
	svc := newTemplateService(templateRepoWith(officeTemplate()), echoRepo())
	start, end := tripWindow()

	_, err := svc.CreateTrip(context.Background(), uuid.New(), domain.TemplateTrip{StartedAt: start, EndedAt: end})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
