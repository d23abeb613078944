package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Locker grants exclusive, time-bounded execution leases on rules. Acquire
// returns ErrAlreadyExecuting while another lease is live.
type Locker interface {
	Acquire(ctx context.Context, ruleID string, ttl time.Duration) (string, error)
	Release(ctx context.Context, ruleID, token string) error
}

// RepositoryLocker keeps the lease on the rule row itself through a
// conditional update.
type RepositoryLocker struct {
	rules persistence.RuleRepository
	clock clockwork.Clock
}

func NewRepositoryLocker(rules persistence.RuleRepository, clock clockwork.Clock) *RepositoryLocker {
	return &RepositoryLocker{rules: rules, clock: clock}
}

func (l *RepositoryLocker) Acquire(ctx context.Context, ruleID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	now := l.clock.Now().UTC()

	claimed, err := l.rules.Claim(ctx, ruleID, token, now, now.Add(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to claim rule %s: %w", ruleID, err)
	}

	if !claimed {
		return "", ErrAlreadyExecuting
	}

	return token, nil
}

func (l *RepositoryLocker) Release(ctx context.Context, ruleID, token string) error {
	return l.rules.Release(ctx, ruleID, token)
}
