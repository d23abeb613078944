package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coderAhmedHamood/pipefy/pkg/metrics"
)

// Notifier publishes ticket events in the background. Publishing failures are
// logged and counted; they never fail the operation that raised the event.
type Notifier struct {
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Collector
	wg        sync.WaitGroup
}

func NewNotifier(publisher EventPublisher, logger *slog.Logger, collector *metrics.Collector) *Notifier {
	return &Notifier{
		publisher: publisher,
		logger:    logger.With("module", "notifier"),
		metrics:   collector,
	}
}

// Notify publishes event keyed by key without waiting for the broker.
func (n *Notifier) Notify(ctx context.Context, key string, event Event) {
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)

	go func() {
		defer n.wg.Done()

		if err := n.publisher.Publish(ctx, key, event); err != nil {
			n.metrics.RecordNotifyFailure()
			n.logger.ErrorContext(ctx, "Failed to publish ticket event",
				"event_type", event.GetType(), "key", key, "error", err)

			return
		}

		n.logger.DebugContext(ctx, "Published ticket event", "event_type", event.GetType(), "key", key)
	}()
}

// Wait blocks until every pending notification has been handed to the publisher.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
