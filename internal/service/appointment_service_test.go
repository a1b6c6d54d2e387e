package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunrise-clinic/booking-api/internal/models"
	"github.com/sunrise-clinic/booking-api/internal/repository"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
)

type mockApptRepo struct {
	appointments map[string]models.Appointment
	created      *models.Appointment
	capacityFull bool
	deleted      []string
}

func (m *mockApptRepo) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	if appt, ok := m.appointments[id]; ok {
		return &appt, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApptRepo) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	return nil, 0, nil
}

func (m *mockApptRepo) ListByManager(ctx context.Context, userID string, upcomingOnly bool) ([]models.Appointment, error) {
	return nil, nil
}

func (m *mockApptRepo) CreateScheduled(ctx context.Context, appt *models.Appointment, concurrencyLevel int) error {
	if m.capacityFull {
		return repository.ErrCapacityExhausted
	}
	if m.appointments == nil {
		m.appointments = make(map[string]models.Appointment)
	}
	if appt.ID == "" {
		appt.ID = "appt-new"
	}
	appt.Status = models.AppointmentScheduled
	m.appointments[appt.ID] = *appt
	m.created = appt
	return nil
}

func (m *mockApptRepo) Reschedule(ctx context.Context, appt *models.Appointment, concurrencyLevel int) error {
	if m.capacityFull {
		return repository.ErrCapacityExhausted
	}
	m.appointments[appt.ID] = *appt
	return nil
}

func (m *mockApptRepo) Update(ctx context.Context, appt *models.Appointment) error {
	m.appointments[appt.ID] = *appt
	return nil
}

func (m *mockApptRepo) Delete(ctx context.Context, id string) error {
	delete(m.appointments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockPatientStore struct {
	patients map[string]*models.Patient
}

func (m *mockPatientStore) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	if patient, ok := m.patients[id]; ok {
		return patient, nil
	}
	return nil, sql.ErrNoRows
}

type mockLocationPrefWriter struct {
	userID     string
	locationID string
}

func (m *mockLocationPrefWriter) UpdateDefaultLocation(ctx context.Context, userID, locationID string) error {
	m.userID = userID
	m.locationID = locationID
	return nil
}

func customerUser() *models.User {
	return &models.User{ID: "user-1", Email: "mei@example.com", Role: models.RoleCustomer, Active: true}
}

func adminUser() *models.User {
	return &models.User{ID: "admin-1", Email: "ops@example.com", Role: models.RoleAdmin, Active: true}
}

type bookingFixture struct {
	svc      *AppointmentService
	repo     *mockApptRepo
	users    *mockLocationPrefWriter
	engine   *AvailabilityService
	offering *models.OfferingDetail
}

func newBookingFixture(t *testing.T, rule *models.BusinessHourRule, existing []models.Appointment, technician *models.Technician) *bookingFixture {
	t.Helper()
	offering := testOffering(1)
	engine, _ := newAvailabilityFixture(offering, rule, existing, technician)
	repo := &mockApptRepo{}
	users := &mockLocationPrefWriter{}
	patients := &mockPatientStore{patients: map[string]*models.Patient{
		"pat-1": {ID: "pat-1", ManagedByUserID: "user-1", FullName: "Li Wei"},
		"pat-2": {ID: "pat-2", ManagedByUserID: "user-2", FullName: "Zhang Min"},
	}}
	svc := NewAppointmentService(repo, patients, &mockOfferingReader{detail: offering}, users, engine, nil, nil)
	return &bookingFixture{svc: svc, repo: repo, users: users, engine: engine, offering: offering}
}

func bookingRequest(start time.Time) BookAppointmentRequest {
	return BookAppointmentRequest{
		PatientID:    "pat-1",
		TechnicianID: "tech-1",
		ServiceID:    "svc-1",
		LocationID:   "loc-1",
		StartTime:    start,
	}
}

func futureMorning() time.Time {
	return time.Date(2030, 6, 3, 9, 0, 0, 0, time.UTC)
}

func TestBookCommitsExactSlot(t *testing.T) {
	rule := morningRule(models.NewLocalTime(9, 0), models.NewLocalTime(12, 0))
	f := newBookingFixture(t, &rule, nil, plainTechnician())

	appt, err := f.svc.Book(context.Background(), customerUser(), bookingRequest(futureMorning()))
	require.NoError(t, err)
	require.NotNil(t, f.repo.created)
	assert.Equal(t, models.RoleCustomer, appt.BookedByRole)
	assert.Equal(t, futureMorning(), appt.StartTime)
	assert.Equal(t, futureMorning().Add(time.Hour), appt.EndTime)
	assert.Equal(t, f.offering.Price, appt.PriceAtBooking)
	assert.Equal(t, "user-1", f.users.userID)
	assert.Equal(t, "loc-1", f.users.locationID)
}

func TestBookRejectsOffGridStart(t *testing.T) {
	rule := morningRule(models.NewLocalTime(9, 0), models.NewLocalTime(12, 0))
	f := newBookingFixture(t, &rule, nil, plainTechnician())

	_, err := f.svc.Book(context.Background(), customerUser(), bookingRequest(futureMorning().Add(30*time.Minute)))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, appErrors.FromError(err).Code)
	assert.Nil(t, f.repo.created)
}

func TestBookRejectsSaturatedSlot(t *testing.T) {
	rule := morningRule(models.NewLocalTime(9, 0), models.NewLocalTime(12, 0))
	start := futureMorning()
	existing := []models.Appointment{scheduledAppointment(start, start.Add(time.Hour))}
	f := newBookingFixture(t, &rule, existing, plainTechnician())

	_, err := f.svc.Book(context.Background(), customerUser(), bookingRequest(start))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotSaturated.Code, appErrors.FromError(err).Code)
}

func TestBookRejectsQuotaExhaustedHalf(t *testing.T) {
	rule := morningRule(models.NewLocalTime(9, 0), models.NewLocalTime(12, 0))
	start := futureMorning()
	existing := []models.Appointment{scheduledAppointment(start.Add(time.Hour), start.Add(2*time.Hour))}
	one := 1
	technician := plainTechnician()
	technician.RestrictedByQuota = true
	technician.MorningQuotaLimit = &one
	f := newBookingFixture(t, &rule, existing, technician)

	_, err := f.svc.Book(context.Background(), customerUser(), bookingRequest(start))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, appErrors.FromError(err).Code)
}

func TestBookRejectsForeignPatient(t *testing.T) {
	rule := morningRule(models.NewLocalTime(9, 0), models.NewLocalTime(12, 0))
	f := newBookingFixture(t, &rule, nil, plainTechnician())

	req := bookingRequest(futureMorning())
	req.PatientID = "pat-2"
	_, err := f.svc.Book(context.Background(), customerUser(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestBookSurfacesRacingInsertAsSaturated(t *testing.T) {
	rule := morningRule(models.NewLocalTime(9, 0), models.NewLocalTime(12, 0))
	f := newBookingFixture(t, &rule, nil, plainTechnician())
	f.repo.capacityFull = true

	_, err := f.svc.Book(context.Background(), customerUser(), bookingRequest(futureMorning()))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotSaturated.Code, appErrors.FromError(err).Code)
}

func TestAdminCreateBypassesGridAndQuota(t *testing.T) {
	one := 1
	technician := plainTechnician()
	technician.RestrictedByQuota = true
	technician.MorningQuotaLimit = &one
	f := newBookingFixture(t, nil, nil, technician)

	price := 88.0
	duration := 45
	start := futureMorning().Add(30 * time.Minute)
	appt, err := f.svc.AdminCreate(context.Background(), adminUser(), AdminCreateAppointmentRequest{
		PatientID:               "pat-2",
		TechnicianID:            "tech-1",
		ServiceID:               "svc-1",
		LocationID:              "loc-1",
		StartTime:               start,
		PriceOverride:           &price,
		DurationOverrideMinutes: &duration,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, appt.BookedByRole)
	assert.Equal(t, 88.0, appt.PriceAtBooking)
	assert.Equal(t, start.Add(45*time.Minute), appt.EndTime)
}

func TestAdminUpdateStatusRequiresElapsedStart(t *testing.T) {
	f := newBookingFixture(t, nil, nil, plainTechnician())
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	f.repo.appointments = map[string]models.Appointment{
		"appt-1": {ID: "appt-1", PatientID: "pat-1", TechnicianID: "tech-1", OfferingID: "off-1", StartTime: start, EndTime: start.Add(time.Hour), Status: models.AppointmentScheduled},
	}

	completed := models.AppointmentCompleted
	f.svc.now = func() time.Time { return start.Add(-time.Hour) }
	_, err := f.svc.AdminUpdate(context.Background(), "appt-1", AdminUpdateAppointmentRequest{Status: &completed})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	f.svc.now = func() time.Time { return start.Add(2 * time.Hour) }
	appt, err := f.svc.AdminUpdate(context.Background(), "appt-1", AdminUpdateAppointmentRequest{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCompleted, appt.Status)
}

func TestAdminUpdateCannotReopenClosedAppointment(t *testing.T) {
	f := newBookingFixture(t, nil, nil, plainTechnician())
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	f.repo.appointments = map[string]models.Appointment{
		"appt-1": {ID: "appt-1", PatientID: "pat-1", TechnicianID: "tech-1", OfferingID: "off-1", StartTime: start, EndTime: start.Add(time.Hour), Status: models.AppointmentCompleted},
	}

	scheduled := models.AppointmentScheduled
	_, err := f.svc.AdminUpdate(context.Background(), "appt-1", AdminUpdateAppointmentRequest{Status: &scheduled})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAdminUpdateMoveChecksCapacity(t *testing.T) {
	f := newBookingFixture(t, nil, nil, plainTechnician())
	start := futureMorning()
	f.repo.appointments = map[string]models.Appointment{
		"appt-1": {ID: "appt-1", PatientID: "pat-1", TechnicianID: "tech-1", OfferingID: "off-1", StartTime: start, EndTime: start.Add(time.Hour), Status: models.AppointmentScheduled},
	}
	f.repo.capacityFull = true

	newStart := start.Add(2 * time.Hour)
	_, err := f.svc.AdminUpdate(context.Background(), "appt-1", AdminUpdateAppointmentRequest{StartTime: &newStart})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotSaturated.Code, appErrors.FromError(err).Code)
}

func TestCancelOnlyBeforeStart(t *testing.T) {
	f := newBookingFixture(t, nil, nil, plainTechnician())
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	f.repo.appointments = map[string]models.Appointment{
		"appt-1": {ID: "appt-1", PatientID: "pat-1", TechnicianID: "tech-1", OfferingID: "off-1", StartTime: start, EndTime: start.Add(time.Hour), Status: models.AppointmentScheduled},
	}

	f.svc.now = func() time.Time { return start.Add(time.Minute) }
	err := f.svc.Cancel(context.Background(), customerUser(), "appt-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	f.svc.now = func() time.Time { return start.Add(-time.Hour) }
	err = f.svc.Cancel(context.Background(), customerUser(), "appt-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"appt-1"}, f.repo.deleted)
}

func TestCancelRejectsForeignOwner(t *testing.T) {
	f := newBookingFixture(t, nil, nil, plainTechnician())
	start := futureMorning()
	f.repo.appointments = map[string]models.Appointment{
		"appt-1": {ID: "appt-1", PatientID: "pat-2", TechnicianID: "tech-1", OfferingID: "off-1", StartTime: start, EndTime: start.Add(time.Hour), Status: models.AppointmentScheduled},
	}

	err := f.svc.Cancel(context.Background(), customerUser(), "appt-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAdminDeleteAnyTime(t *testing.T) {
	f := newBookingFixture(t, nil, nil, plainTechnician())
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	f.repo.appointments = map[string]models.Appointment{
		"appt-1": {ID: "appt-1", PatientID: "pat-1", TechnicianID: "tech-1", OfferingID: "off-1", StartTime: start, EndTime: start.Add(time.Hour), Status: models.AppointmentCompleted},
	}

	err := f.svc.AdminDelete(context.Background(), "appt-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"appt-1"}, f.repo.deleted)
}
