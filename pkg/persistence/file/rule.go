package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/google/uuid"
)

const rulesDir = "rules"

// RuleRepository stores recurring rules one per file.
type RuleRepository struct {
	fp *Persistence
}

func (r *RuleRepository) List(_ context.Context) ([]*models.RecurringRule, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	return r.all()
}

func (r *RuleRepository) all() ([]*models.RecurringRule, error) {
	ids, err := r.fp.ids(rulesDir)
	if err != nil {
		return nil, err
	}

	rules := make([]*models.RecurringRule, 0, len(ids))

	for _, id := range ids {
		rule, err := r.get("List", id)
		if err != nil {
			return nil, err
		}

		rules = append(rules, rule)
	}

	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}

		return rules[i].ID < rules[j].ID
	})

	return rules, nil
}

func (r *RuleRepository) GetByID(_ context.Context, id string) (*models.RecurringRule, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	return r.get("GetByID", id)
}

// ruleRecord is the on-disk form; the claim token is not part of the JSON API
// representation and needs its own field.
type ruleRecord struct {
	models.RecurringRule

	ClaimToken *string `json:"claim_token,omitempty"`
}

func (r *RuleRepository) get(op, id string) (*models.RecurringRule, error) {
	var record ruleRecord
	if err := r.fp.read(rulesDir, id, &record); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewRuleError(op, id, persistence.ErrRuleNotFound)
		}

		return nil, err
	}

	rule := record.RecurringRule
	rule.ClaimToken = record.ClaimToken

	return &rule, nil
}

func (r *RuleRepository) put(rule *models.RecurringRule) error {
	return r.fp.write(rulesDir, rule.ID, ruleRecord{RecurringRule: *rule, ClaimToken: rule.ClaimToken})
}

func (r *RuleRepository) Save(_ context.Context, rule *models.RecurringRule) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	now := time.Now().UTC()

	if rule.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate rule ID: %w", err)
		}

		rule.ID = id.String()
	}

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	rule.UpdatedAt = now

	stored, err := r.get("Save", rule.ID)

	switch {
	case errors.Is(err, persistence.ErrRuleNotFound):
		return r.put(rule)
	case err != nil:
		return err
	}

	// execution state is owned by the scheduler
	rule.ExecutionCount = stored.ExecutionCount
	rule.LastExecutionDate = stored.LastExecutionDate
	rule.ClaimToken = stored.ClaimToken
	rule.ClaimedUntil = stored.ClaimedUntil
	rule.CreatedAt = stored.CreatedAt

	return r.put(rule)
}

func (r *RuleRepository) Due(_ context.Context, now time.Time) ([]*models.RecurringRule, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	rules, err := r.all()
	if err != nil {
		return nil, err
	}

	due := make([]*models.RecurringRule, 0)

	for _, rule := range rules {
		if rule.IsDue(now) && !rule.Claimed(now) {
			due = append(due, rule)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextExecutionDate.Before(*due[j].NextExecutionDate)
	})

	return due, nil
}

func (r *RuleRepository) Claim(_ context.Context, id, token string, now, until time.Time) (bool, error) {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	claimed := false

	err := r.fp.exclusive(func() error {
		rule, err := r.get("Claim", id)
		if err != nil {
			return err
		}

		if rule.Claimed(now) {
			return nil
		}

		rule.ClaimToken = &token
		rule.ClaimedUntil = &until

		if err := r.put(rule); err != nil {
			return err
		}

		claimed = true

		return nil
	})

	return claimed, err
}

func (r *RuleRepository) Release(_ context.Context, id, token string) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	return r.fp.exclusive(func() error {
		rule, err := r.get("Release", id)
		if err != nil {
			return err
		}

		if rule.ClaimToken == nil || *rule.ClaimToken != token {
			return nil
		}

		rule.ClaimToken = nil
		rule.ClaimedUntil = nil

		return r.put(rule)
	})
}

func (r *RuleRepository) Complete(_ context.Context, rule *models.RecurringRule, expectedCount int) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	return r.fp.exclusive(func() error {
		stored, err := r.get("Complete", rule.ID)
		if err != nil {
			return err
		}

		if stored.ExecutionCount != expectedCount {
			return persistence.NewRuleError("Complete", rule.ID, persistence.ErrConcurrentUpdate)
		}

		stored.ExecutionCount = rule.ExecutionCount
		stored.LastExecutionDate = rule.LastExecutionDate
		stored.NextExecutionDate = rule.NextExecutionDate
		stored.ClaimToken = nil
		stored.ClaimedUntil = nil
		stored.UpdatedAt = time.Now().UTC()

		return r.put(stored)
	})
}
