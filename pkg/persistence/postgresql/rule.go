package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/google/uuid"
)

const ruleColumns = `
	id, process_id, name, description, template, schedule, start_date, end_date, is_active,
	execution_count, max_executions, last_execution_date, next_execution_date,
	claim_token, claimed_until, created_by, created_at, updated_at
`

// RuleRepository handles recurring rule storage and execution leases.
type RuleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db *sql.DB, logger *slog.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

func (r *RuleRepository) List(ctx context.Context) ([]*models.RecurringRule, error) {
	return r.query(ctx, `SELECT `+ruleColumns+` FROM recurring_rules ORDER BY created_at, id`)
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.RecurringRule, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, persistence.NewRuleError("GetByID", id, persistence.ErrRuleNotFound)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM recurring_rules WHERE id = $1`, id)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRuleError("GetByID", id, persistence.ErrRuleNotFound)
		}

		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	return rule, nil
}

// Save upserts the operator-editable columns of a rule.
func (r *RuleRepository) Save(ctx context.Context, rule *models.RecurringRule) error {
	now := time.Now().UTC()

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	rule.UpdatedAt = now

	if rule.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate rule ID: %w", err)
		}

		rule.ID = id.String()
	}

	templateJSON, err := json.Marshal(rule.Template)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	scheduleJSON, err := json.Marshal(rule.Schedule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules (
			id, process_id, name, description, template, schedule, start_date, end_date, is_active,
			execution_count, max_executions, next_execution_date, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			process_id = EXCLUDED.process_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			template = EXCLUDED.template,
			schedule = EXCLUDED.schedule,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			is_active = EXCLUDED.is_active,
			max_executions = EXCLUDED.max_executions,
			next_execution_date = EXCLUDED.next_execution_date,
			updated_at = EXCLUDED.updated_at
	`, rule.ID, rule.ProcessID, rule.Name, rule.Description, templateJSON, scheduleJSON, rule.StartDate,
		rule.EndDate, rule.IsActive, rule.ExecutionCount, rule.MaxExecutions, rule.NextExecutionDate,
		rule.CreatedBy, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	return nil
}

func (r *RuleRepository) Due(ctx context.Context, now time.Time) ([]*models.RecurringRule, error) {
	return r.query(ctx, `
		SELECT `+ruleColumns+`
		FROM recurring_rules
		WHERE is_active
		  AND next_execution_date IS NOT NULL
		  AND next_execution_date <= $1
		  AND (end_date IS NULL OR end_date >= $1)
		  AND (max_executions IS NULL OR execution_count < max_executions)
		  AND (claimed_until IS NULL OR claimed_until <= $1)
		ORDER BY next_execution_date, id
	`, now)
}

// Claim is a conditional update: it succeeds only while no live lease exists.
func (r *RuleRepository) Claim(ctx context.Context, id, token string, now, until time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules
		SET claim_token = $2, claimed_until = $3
		WHERE id = $1 AND (claimed_until IS NULL OR claimed_until <= $4)
	`, id, token, until, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 1 {
		return true, nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}

	return false, nil
}

func (r *RuleRepository) Release(ctx context.Context, id, token string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules
		SET claim_token = NULL, claimed_until = NULL
		WHERE id = $1 AND claim_token = $2
	`, id, token)
	if err != nil {
		return fmt.Errorf("failed to release rule: %w", err)
	}

	return nil
}

func (r *RuleRepository) Complete(ctx context.Context, rule *models.RecurringRule, expectedCount int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules SET
			execution_count = $2,
			last_execution_date = $3,
			next_execution_date = $4,
			claim_token = NULL,
			claimed_until = NULL,
			updated_at = $5
		WHERE id = $1 AND execution_count = $6
	`, rule.ID, rule.ExecutionCount, rule.LastExecutionDate, rule.NextExecutionDate, time.Now().UTC(), expectedCount)
	if err != nil {
		return fmt.Errorf("failed to complete rule execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		if _, err := r.GetByID(ctx, rule.ID); err != nil {
			return err
		}

		return persistence.NewRuleError("Complete", rule.ID, persistence.ErrConcurrentUpdate)
	}

	return nil
}

func (r *RuleRepository) query(ctx context.Context, query string, args ...any) ([]*models.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	rules := make([]*models.RecurringRule, 0)

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

func scanRule(row scanner) (*models.RecurringRule, error) {
	var (
		rule          models.RecurringRule
		templateJSON  []byte
		scheduleJSON  []byte
		endDate       sql.NullTime
		maxExecutions sql.NullInt64
		lastExecution sql.NullTime
		nextExecution sql.NullTime
		claimToken    sql.NullString
		claimedUntil  sql.NullTime
	)

	err := row.Scan(&rule.ID, &rule.ProcessID, &rule.Name, &rule.Description, &templateJSON, &scheduleJSON,
		&rule.StartDate, &endDate, &rule.IsActive, &rule.ExecutionCount, &maxExecutions, &lastExecution,
		&nextExecution, &claimToken, &claimedUntil, &rule.CreatedBy, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(templateJSON, &rule.Template); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template: %w", err)
	}

	if err := json.Unmarshal(scheduleJSON, &rule.Schedule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}

	if endDate.Valid {
		rule.EndDate = &endDate.Time
	}

	if maxExecutions.Valid {
		limit := int(maxExecutions.Int64)
		rule.MaxExecutions = &limit
	}

	if lastExecution.Valid {
		rule.LastExecutionDate = &lastExecution.Time
	}

	if nextExecution.Valid {
		rule.NextExecutionDate = &nextExecution.Time
	}

	if claimToken.Valid {
		rule.ClaimToken = &claimToken.String
	}

	if claimedUntil.Valid {
		rule.ClaimedUntil = &claimedUntil.Time
	}

	return &rule, nil
}
