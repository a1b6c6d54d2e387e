package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunrise-clinic/booking-api/internal/models"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
)

type mockPatientRepo struct {
	patients  map[string]models.Patient
	scheduled map[string]int
	deleted   []string
}

func (m *mockPatientRepo) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	if patient, ok := m.patients[id]; ok {
		return &patient, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPatientRepo) ListByManager(ctx context.Context, userID string) ([]models.Patient, error) {
	var out []models.Patient
	for _, patient := range m.patients {
		if patient.ManagedByUserID == userID {
			out = append(out, patient)
		}
	}
	return out, nil
}

func (m *mockPatientRepo) Create(ctx context.Context, patient *models.Patient) error {
	if m.patients == nil {
		m.patients = make(map[string]models.Patient)
	}
	m.patients[patient.ID] = *patient
	return nil
}

func (m *mockPatientRepo) Update(ctx context.Context, patient *models.Patient) error {
	m.patients[patient.ID] = *patient
	return nil
}

func (m *mockPatientRepo) Delete(ctx context.Context, id string) error {
	delete(m.patients, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockPatientRepo) CountScheduledAppointments(ctx context.Context, patientID string) (int, error) {
	return m.scheduled[patientID], nil
}

func newPatientFixture() (*PatientService, *mockPatientRepo) {
	repo := &mockPatientRepo{
		patients: map[string]models.Patient{
			"pat-1": {ID: "pat-1", ManagedByUserID: "user-1", FullName: "Li Wei"},
			"pat-2": {ID: "pat-2", ManagedByUserID: "user-2", FullName: "Zhang Min"},
		},
		scheduled: map[string]int{},
	}
	return NewPatientService(repo, nil, nil), repo
}

func TestPatientCreateAssignsManager(t *testing.T) {
	svc, repo := newPatientFixture()

	patient, err := svc.Create(context.Background(), "user-1", PatientRequest{FullName: "Wang Fang"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", patient.ManagedByUserID)
	assert.NotEmpty(t, patient.ID)
	assert.Contains(t, repo.patients, patient.ID)
}

func TestPatientCreateRejectsInvalidBirthDate(t *testing.T) {
	svc, _ := newPatientFixture()

	_, err := svc.Create(context.Background(), "user-1", PatientRequest{FullName: "Wang Fang", BirthDate: strPtr("02-06-1990")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPatientUpdateRejectsForeignOwner(t *testing.T) {
	svc, _ := newPatientFixture()

	_, err := svc.Update(context.Background(), "user-1", "pat-2", PatientRequest{FullName: "Someone Else"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPatientListMineFiltersByManager(t *testing.T) {
	svc, _ := newPatientFixture()

	patients, err := svc.ListMine(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "pat-1", patients[0].ID)
}

func TestPatientDeleteBlockedByUpcomingAppointments(t *testing.T) {
	svc, repo := newPatientFixture()
	repo.scheduled["pat-1"] = 2

	err := svc.Delete(context.Background(), "user-1", "pat-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestPatientDeleteWithoutUpcoming(t *testing.T) {
	svc, repo := newPatientFixture()

	err := svc.Delete(context.Background(), "user-1", "pat-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pat-1"}, repo.deleted)
}
