package cmd

import (
	"context"
	"log/slog"

	"github.com/coderAhmedHamood/pipefy/pkg/lock/redislock"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/coderAhmedHamood/pipefy/pkg/scheduler"
	"github.com/jonboulle/clockwork"
)

// NewLocker returns the Redis rule lock when redisURL is set and the
// repository claim otherwise. The returned close function is never nil.
//
//nolint:ireturn // the scheduler consumes the interface
func NewLocker(
	ctx context.Context,
	logger *slog.Logger,
	redisURL string,
	rules persistence.RuleRepository,
	clock clockwork.Clock,
) (scheduler.Locker, func() error, error) {
	if redisURL == "" {
		logger.InfoContext(ctx, "Using repository claims for rule locking")

		return scheduler.NewRepositoryLocker(rules, clock), func() error { return nil }, nil
	}

	locker, err := redislock.NewFromURL(ctx, redisURL)
	if err != nil {
		return nil, nil, err
	}

	logger.InfoContext(ctx, "Using Redis for rule locking")

	return locker, locker.Close, nil
}
