package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/service"
)

// NotificationWorker moves publication off the request path. Batches are
// handed to the downstream notifier in commit order.
type NotificationWorker struct {
	next   service.Notifier
	queue  chan []domain.AuditEntry
	logger *zap.Logger
}

// NewNotificationWorker buffers up to size committed batches.
func NewNotificationWorker(next service.Notifier, size int, logger *zap.Logger) *NotificationWorker {
	if size <= 0 {
		size = 1
	}
	return &NotificationWorker{
		next:   next,
		queue:  make(chan []domain.AuditEntry, size),
		logger: logger,
	}
}

// Dispatch enqueues a batch. A full queue drops the batch: the audit trail
// already holds the entries.
func (w *NotificationWorker) Dispatch(_ context.Context, entries []domain.AuditEntry) {
	if len(entries) == 0 {
		return
	}
	select {
	case w.queue <- entries:
	default:
		w.logger.Warn("notification queue full; batch dropped",
			zap.Int64("ticket_id", entries[0].TicketID),
			zap.Int("entries", len(entries)))
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (w *NotificationWorker) Run(ctx context.Context) error {
	for {
		select {
		case batch := <-w.queue:
			w.next.Dispatch(ctx, batch)
		case <-ctx.Done():
			w.flush()
			return nil
		}
	}
}

func (w *NotificationWorker) flush() {
	ctx := context.Background()
	for {
		select {
		case batch := <-w.queue:
			w.next.Dispatch(ctx, batch)
		default:
			return
		}
	}
}
