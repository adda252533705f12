package consumer

import (
	"context"
	"encoding/json"

	"go-bioattend/internal/events"
	"go-bioattend/internal/identity"
	"go-bioattend/internal/notify"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ConsumeAttendanceMarked dispatches notifications for session transitions.
// It subscribes to the marked-event stream instead of the core pushing into
// a process-wide broadcaster, so the core stays free of notification
// concerns.
func ConsumeAttendanceMarked(
	ctx context.Context,
	reader *kafkago.Reader,
	identityRepo identity.Repository,
	links *notify.LinkBuilder,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.attendance_marked")
	log.Info("attendance marked consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("attendance marked consumer stopped")
				return
			}
			log.Error("fetch attendance marked message failed", zap.Error(err))
			continue
		}

		var event events.AttendanceMarkedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode attendance marked event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if err := dispatchMarkNotification(ctx, identityRepo, links, event, log); err != nil {
			log.Error("dispatch mark notification failed",
				zap.String("entry_id", event.EntryID),
				zap.String("identity_id", event.IdentityID),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit attendance marked message failed", zap.Error(err))
			continue
		}
	}
}

func dispatchMarkNotification(
	ctx context.Context,
	identityRepo identity.Repository,
	links *notify.LinkBuilder,
	event events.AttendanceMarkedEvent,
	log *zap.Logger,
) error {
	ident, err := identityRepo.FindByID(ctx, event.IdentityID)
	if err != nil {
		return err
	}

	if ident.Phone == nil || *ident.Phone == "" {
		log.Debug("identity has no contact number, skipping notification",
			zap.String("identity_id", event.IdentityID),
		)
		return nil
	}

	// Delivery itself is out of scope; the shareable link is the contract.
	log.Info("mark notification ready",
		zap.String("identity_id", event.IdentityID),
		zap.String("transition", event.EventType),
		zap.String("link", links.MarkLink(*ident.Phone, ident.FullName, event.EventType, event.OccurredAt)),
	)
	return nil
}
