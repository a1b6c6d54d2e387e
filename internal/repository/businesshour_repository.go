package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sunrise-clinic/booking-api/internal/models"
)

// BusinessHourRepository provides persistence for business hour rules.
type BusinessHourRepository struct {
	db *sqlx.DB
}

// NewBusinessHourRepository creates a new business hour repository.
func NewBusinessHourRepository(db *sqlx.DB) *BusinessHourRepository {
	return &BusinessHourRepository{db: db}
}

// businessHourRow maps the nullable TIME column pairs before they are folded
// into half-day intervals.
type businessHourRow struct {
	ID             string         `db:"id"`
	TechnicianID   string         `db:"technician_id"`
	LocationID     string         `db:"location_id"`
	RuleDate       *time.Time     `db:"rule_date"`
	DayOfWeek      string         `db:"day_of_week"`
	MorningStart   sql.NullString `db:"morning_start"`
	MorningEnd     sql.NullString `db:"morning_end"`
	AfternoonStart sql.NullString `db:"afternoon_start"`
	AfternoonEnd   sql.NullString `db:"afternoon_end"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

const businessHourColumns = `id, technician_id, location_id, rule_date, day_of_week, morning_start, morning_end, afternoon_start, afternoon_end, created_at, updated_at`

func intervalFromColumns(start, end sql.NullString) (models.HalfDayInterval, error) {
	if !start.Valid && !end.Valid {
		return models.HalfDayInterval{}, nil
	}
	if !start.Valid || !end.Valid {
		return models.HalfDayInterval{}, fmt.Errorf("half-day window has only one bound")
	}
	from, err := models.ParseLocalTime(start.String)
	if err != nil {
		return models.HalfDayInterval{}, err
	}
	to, err := models.ParseLocalTime(end.String)
	if err != nil {
		return models.HalfDayInterval{}, err
	}
	return models.PresentInterval(from, to), nil
}

func intervalColumns(interval models.HalfDayInterval) (start, end interface{}) {
	if !interval.Present {
		return nil, nil
	}
	return interval.Start.String(), interval.End.String()
}

func (row *businessHourRow) toModel() (*models.BusinessHourRule, error) {
	morning, err := intervalFromColumns(row.MorningStart, row.MorningEnd)
	if err != nil {
		return nil, fmt.Errorf("rule %s morning: %w", row.ID, err)
	}
	afternoon, err := intervalFromColumns(row.AfternoonStart, row.AfternoonEnd)
	if err != nil {
		return nil, fmt.Errorf("rule %s afternoon: %w", row.ID, err)
	}
	return &models.BusinessHourRule{
		ID:           row.ID,
		TechnicianID: row.TechnicianID,
		LocationID:   row.LocationID,
		RuleDate:     row.RuleDate,
		DayOfWeek:    row.DayOfWeek,
		Morning:      morning,
		Afternoon:    afternoon,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func rowsToModels(rows []businessHourRow) ([]models.BusinessHourRule, error) {
	rules := make([]models.BusinessHourRule, 0, len(rows))
	for i := range rows {
		rule, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

// FindByID loads a rule by id.
func (r *BusinessHourRepository) FindByID(ctx context.Context, id string) (*models.BusinessHourRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM business_hours WHERE id = $1`, businessHourColumns)
	var row businessHourRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.toModel()
}

// FindForDate resolves the effective rule for a (technician, location, date)
// triple. A rule pinned to the exact date wins; otherwise the recurring rule
// for the date's weekday applies. No match returns sql.ErrNoRows.
func (r *BusinessHourRepository) FindForDate(ctx context.Context, technicianID, locationID string, date time.Time) (*models.BusinessHourRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM business_hours WHERE technician_id = $1 AND location_id = $2 AND rule_date = $3`, businessHourColumns)
	var row businessHourRow
	err := r.db.GetContext(ctx, &row, query, technicianID, locationID, date.Format("2006-01-02"))
	if err == nil {
		return row.toModel()
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	query = fmt.Sprintf(`SELECT %s FROM business_hours WHERE technician_id = $1 AND location_id = $2 AND rule_date IS NULL AND day_of_week = $3`, businessHourColumns)
	if err := r.db.GetContext(ctx, &row, query, technicianID, locationID, models.WeekdayLabel(date)); err != nil {
		return nil, err
	}
	return row.toModel()
}

// ListByTechnician returns every rule for a technician, specific dates first.
func (r *BusinessHourRepository) ListByTechnician(ctx context.Context, technicianID string) ([]models.BusinessHourRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM business_hours WHERE technician_id = $1 ORDER BY rule_date ASC NULLS LAST, day_of_week ASC`, businessHourColumns)
	var rows []businessHourRow
	if err := r.db.SelectContext(ctx, &rows, query, technicianID); err != nil {
		return nil, fmt.Errorf("list business hours: %w", err)
	}
	return rowsToModels(rows)
}

// ListEffectiveForTechnicianDate returns the effective rule per location for a
// technician on a date, applying the same specific-over-recurring precedence
// as FindForDate. Used for cross-location conflict checks.
func (r *BusinessHourRepository) ListEffectiveForTechnicianDate(ctx context.Context, technicianID string, date time.Time) ([]models.BusinessHourRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM business_hours WHERE technician_id = $1 AND (rule_date = $2 OR (rule_date IS NULL AND day_of_week = $3))`, businessHourColumns)
	var rows []businessHourRow
	if err := r.db.SelectContext(ctx, &rows, query, technicianID, date.Format("2006-01-02"), models.WeekdayLabel(date)); err != nil {
		return nil, fmt.Errorf("list effective business hours: %w", err)
	}
	rules, err := rowsToModels(rows)
	if err != nil {
		return nil, err
	}

	effective := make(map[string]models.BusinessHourRule, len(rules))
	for _, rule := range rules {
		current, ok := effective[rule.LocationID]
		if !ok || (current.Recurring() && !rule.Recurring()) {
			effective[rule.LocationID] = rule
		}
	}
	result := make([]models.BusinessHourRule, 0, len(effective))
	for _, rule := range effective {
		result = append(result, rule)
	}
	return result, nil
}

// FindConflictingRule returns an existing rule that would collide with the
// candidate: same technician and scope (same pinned date or same recurring
// weekday) at the same location, excluding excludeID.
func (r *BusinessHourRepository) FindConflictingRule(ctx context.Context, rule *models.BusinessHourRule, excludeID string) (*models.BusinessHourRule, error) {
	var (
		query string
		args  []interface{}
	)
	if rule.Recurring() {
		query = fmt.Sprintf(`SELECT %s FROM business_hours WHERE technician_id = $1 AND location_id = $2 AND rule_date IS NULL AND day_of_week = $3 AND id <> $4`, businessHourColumns)
		args = []interface{}{rule.TechnicianID, rule.LocationID, rule.DayOfWeek, excludeID}
	} else {
		query = fmt.Sprintf(`SELECT %s FROM business_hours WHERE technician_id = $1 AND location_id = $2 AND rule_date = $3 AND id <> $4`, businessHourColumns)
		args = []interface{}{rule.TechnicianID, rule.LocationID, rule.RuleDate.Format("2006-01-02"), excludeID}
	}
	var row businessHourRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, err
	}
	return row.toModel()
}

// Create stores a new rule.
func (r *BusinessHourRepository) Create(ctx context.Context, rule *models.BusinessHourRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	morningStart, morningEnd := intervalColumns(rule.Morning)
	afternoonStart, afternoonEnd := intervalColumns(rule.Afternoon)
	const query = `INSERT INTO business_hours (id, technician_id, location_id, rule_date, day_of_week, morning_start, morning_end, afternoon_start, afternoon_end, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query, rule.ID, rule.TechnicianID, rule.LocationID, rule.RuleDate, rule.DayOfWeek, morningStart, morningEnd, afternoonStart, afternoonEnd, rule.CreatedAt, rule.UpdatedAt); err != nil {
		return fmt.Errorf("create business hour rule: %w", err)
	}
	return nil
}

// Update replaces the windows and scope of an existing rule.
func (r *BusinessHourRepository) Update(ctx context.Context, rule *models.BusinessHourRule) error {
	rule.UpdatedAt = time.Now().UTC()
	morningStart, morningEnd := intervalColumns(rule.Morning)
	afternoonStart, afternoonEnd := intervalColumns(rule.Afternoon)
	const query = `UPDATE business_hours SET rule_date = $2, day_of_week = $3, morning_start = $4, morning_end = $5, afternoon_start = $6, afternoon_end = $7, updated_at = $8 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, rule.ID, rule.RuleDate, rule.DayOfWeek, morningStart, morningEnd, afternoonStart, afternoonEnd, rule.UpdatedAt); err != nil {
		return fmt.Errorf("update business hour rule: %w", err)
	}
	return nil
}

// Delete removes a rule row.
func (r *BusinessHourRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM business_hours WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete business hour rule: %w", err)
	}
	return nil
}
