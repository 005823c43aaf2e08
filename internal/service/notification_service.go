package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/config"
	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/events"
)

// Notifier receives audit entries after their transaction commits.
type Notifier interface {
	Dispatch(ctx context.Context, entries []domain.AuditEntry)
}

// NotificationService hands committed audit entries to downstream consumers.
// Delivery problems are logged and never reach the caller: the lifecycle
// change has already committed.
type NotificationService struct {
	publisher events.Publisher
	logger    *zap.Logger
	cfg       config.NotificationConfig
}

// NewNotificationService creates the service. A nil publisher disables publication.
func NewNotificationService(publisher events.Publisher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
	}
}

// Dispatch publishes one notification per audit entry, in commit order.
func (n *NotificationService) Dispatch(ctx context.Context, entries []domain.AuditEntry) {
	if n == nil || n.publisher == nil {
		return
	}
	for _, entry := range entries {
		notification := events.Notification{
			ID:        uuid.NewString(),
			TicketID:  entry.TicketID,
			ActorID:   entry.ActorID,
			Message:   entry.Description,
			Timestamp: entry.CreatedAt,
		}
		if notification.Timestamp.IsZero() {
			notification.Timestamp = time.Now().UTC()
		}
		if err := n.publisher.Publish(ctx, notification); err != nil {
			n.logger.Warn("notification publish failed",
				zap.String("stream", n.cfg.Stream),
				zap.Int64("ticket_id", entry.TicketID),
				zap.Error(err))
			continue
		}
		n.logger.Debug("notification published",
			zap.String("id", notification.ID),
			zap.Int64("ticket_id", entry.TicketID))
	}
}
