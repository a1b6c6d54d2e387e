package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sunrise-clinic/booking-api/internal/models"
)

func newBusinessHourRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func businessHourRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "technician_id", "location_id", "rule_date", "day_of_week", "morning_start", "morning_end", "afternoon_start", "afternoon_end", "created_at", "updated_at"})
}

func TestBusinessHourRepositoryFindForDateSpecificWins(t *testing.T) {
	db, mock, cleanup := newBusinessHourRepoMock(t)
	defer cleanup()
	repo := NewBusinessHourRepository(db)

	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rows := businessHourRows().
		AddRow("rule-1", "tech-1", "loc-1", date, "monday", "09:00:00", "12:00:00", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("rule_date = $3")).
		WithArgs("tech-1", "loc-1", "2025-06-02").
		WillReturnRows(rows)

	rule, err := repo.FindForDate(context.Background(), "tech-1", "loc-1", date)
	require.NoError(t, err)
	require.Equal(t, "rule-1", rule.ID)
	require.True(t, rule.Morning.Present)
	require.Equal(t, models.NewLocalTime(9, 0), rule.Morning.Start)
	require.False(t, rule.Afternoon.Present)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBusinessHourRepositoryFindForDateFallsBackToRecurring(t *testing.T) {
	db, mock, cleanup := newBusinessHourRepoMock(t)
	defer cleanup()
	repo := NewBusinessHourRepository(db)

	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("rule_date = $3")).
		WithArgs("tech-1", "loc-1", "2025-06-02").
		WillReturnError(sql.ErrNoRows)

	rows := businessHourRows().
		AddRow("rule-2", "tech-1", "loc-1", nil, "monday", "09:00:00", "12:00:00", "13:00:00", "18:00:00", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("rule_date IS NULL AND day_of_week = $3")).
		WithArgs("tech-1", "loc-1", "monday").
		WillReturnRows(rows)

	rule, err := repo.FindForDate(context.Background(), "tech-1", "loc-1", date)
	require.NoError(t, err)
	require.Equal(t, "rule-2", rule.ID)
	require.True(t, rule.Recurring())
	require.True(t, rule.Morning.Present)
	require.True(t, rule.Afternoon.Present)
	require.Equal(t, models.NewLocalTime(18, 0), rule.Afternoon.End)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBusinessHourRepositoryFindForDateNoRule(t *testing.T) {
	db, mock, cleanup := newBusinessHourRepoMock(t)
	defer cleanup()
	repo := NewBusinessHourRepository(db)

	date := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("rule_date = $3")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("rule_date IS NULL")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindForDate(context.Background(), "tech-1", "loc-1", date)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBusinessHourRepositoryHalfBoundWindowRejected(t *testing.T) {
	db, mock, cleanup := newBusinessHourRepoMock(t)
	defer cleanup()
	repo := NewBusinessHourRepository(db)

	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rows := businessHourRows().
		AddRow("rule-3", "tech-1", "loc-1", nil, "monday", "09:00:00", nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("rule_date = $3")).
		WillReturnRows(rows)

	_, err := repo.FindForDate(context.Background(), "tech-1", "loc-1", date)
	require.Error(t, err)
	require.Contains(t, err.Error(), "only one bound")
}

func TestBusinessHourRepositoryListEffectivePrefersSpecific(t *testing.T) {
	db, mock, cleanup := newBusinessHourRepoMock(t)
	defer cleanup()
	repo := NewBusinessHourRepository(db)

	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rows := businessHourRows().
		AddRow("rule-r", "tech-1", "loc-1", nil, "monday", "09:00:00", "12:00:00", nil, nil, time.Now(), time.Now()).
		AddRow("rule-s", "tech-1", "loc-1", date, "monday", "10:00:00", "12:00:00", nil, nil, time.Now(), time.Now()).
		AddRow("rule-o", "tech-1", "loc-2", nil, "monday", nil, nil, "13:00:00", "18:00:00", time.Now(), time.Now())
	mock.ExpectQuery("FROM business_hours WHERE technician_id").
		WillReturnRows(rows)

	rules, err := repo.ListEffectiveForTechnicianDate(context.Background(), "tech-1", date)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	byLocation := map[string]models.BusinessHourRule{}
	for _, rule := range rules {
		byLocation[rule.LocationID] = rule
	}
	require.Equal(t, "rule-s", byLocation["loc-1"].ID)
	require.Equal(t, "rule-o", byLocation["loc-2"].ID)
}
