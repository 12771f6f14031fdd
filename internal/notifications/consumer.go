package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/communahq/communa-backend/internal/houses"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
	"github.com/communahq/communa-backend/pkg/logger"
	"github.com/communahq/communa-backend/pkg/metrics"
	"github.com/communahq/communa-backend/pkg/money"
	"github.com/communahq/communa-backend/pkg/outbox"
	"github.com/communahq/communa-backend/pkg/outbox/payloads"
)

// realtimePublisher is the slice of the redis client the consumer needs to
// push realtime hints alongside the stored rows.
type realtimePublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
	UserChannel(userID string) string
}

// InboundEvent is one domain event as delivered off the event bus: the
// routing attributes plus the envelope bytes written by the outbox.
type InboundEvent struct {
	EventType   enums.OutboxEventType
	AggregateID uuid.UUID
	Payload     []byte
}

// Consumer turns domain events into per-user notification rows. Handle is not
// idempotent on its own; the worker dedupes redeliveries with an
// IdempotencyGuard before calling it.
type Consumer struct {
	repo     Repository
	houses   houses.Repository
	realtime realtimePublisher
	logg     *logger.Logger
}

func NewConsumer(repo Repository, housesRepo houses.Repository, realtime realtimePublisher, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if housesRepo == nil {
		return nil, fmt.Errorf("houses repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{repo: repo, houses: housesRepo, realtime: realtime, logg: logg}, nil
}

// Handle fans one event out to its recipients. Unknown event types are
// acknowledged and skipped so a newer producer cannot wedge the worker.
func (c *Consumer) Handle(ctx context.Context, event InboundEvent) error {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return fmt.Errorf("decoding event envelope: %w", err)
	}

	switch event.EventType {
	case enums.EventSettlementUpdated:
		return c.handleSettlementUpdated(ctx, envelope)
	case enums.EventItemCreated:
		return c.handleItemCreated(ctx, envelope)
	case enums.EventItemDeleted:
		return c.handleItemDeleted(ctx, envelope)
	case enums.EventOrderPlaced:
		return c.handleOrderPlaced(ctx, envelope)
	case enums.EventWalletDeposited:
		return c.handleWalletDeposited(ctx, envelope)
	default:
		logCtx := c.logg.WithFields(ctx, map[string]any{"event_type": event.EventType})
		c.logg.Warn(logCtx, "skipping unknown event type")
		return nil
	}
}

func (c *Consumer) handleSettlementUpdated(ctx context.Context, envelope outbox.PayloadEnvelope) error {
	var data payloads.SettlementUpdatedEvent
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return fmt.Errorf("decoding settlement event: %w", err)
	}

	verb := "left"
	if data.Joined {
		verb = "joined"
	}
	message := fmt.Sprintf("A participant %s %q; your share is now %s.",
		verb, data.ItemName, money.FormatCents(data.ShareCents))

	// Everyone still splitting the item hears about the new share, plus the
	// seller. The user who was toggled gets their own wording; on a removal
	// they are no longer in Participants but still must hear about the refund.
	recipients := append([]uuid.UUID{}, data.Participants...)
	recipients = append(recipients, data.SellerUserID)
	if !data.Joined {
		recipients = append(recipients, data.TargetUserID)
	}

	var errs error
	for _, userID := range dedupeRecipients(recipients, actorID(envelope)) {
		body := message
		if userID == data.TargetUserID {
			if data.Joined {
				body = fmt.Sprintf("You joined %q; your share is %s.",
					data.ItemName, money.FormatCents(data.ShareCents))
			} else {
				body = fmt.Sprintf("You left %q; your share was refunded.", data.ItemName)
			}
		}
		errs = multierr.Append(errs, c.create(ctx, &models.Notification{
			ID:      uuid.New(),
			UserID:  userID,
			Type:    enums.NotificationTypeSettlement,
			Title:   "Shared item updated",
			Message: body,
		}))
	}
	return errs
}

func (c *Consumer) handleItemCreated(ctx context.Context, envelope outbox.PayloadEnvelope) error {
	var data payloads.ItemCreatedEvent
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return fmt.Errorf("decoding item created event: %w", err)
	}
	members, err := c.houses.ListMemberIDs(ctx, data.HouseID)
	if err != nil {
		return fmt.Errorf("listing house members: %w", err)
	}
	message := fmt.Sprintf("%q (%s) is now open for participation.",
		data.ItemName, money.FormatCents(data.TotalCents))

	var errs error
	for _, userID := range dedupeRecipients(members, data.CreatedBy) {
		errs = multierr.Append(errs, c.create(ctx, &models.Notification{
			ID:      uuid.New(),
			UserID:  userID,
			Type:    enums.NotificationTypeSettlement,
			Title:   "New shared item",
			Message: message,
		}))
	}
	return errs
}

func (c *Consumer) handleItemDeleted(ctx context.Context, envelope outbox.PayloadEnvelope) error {
	var data payloads.ItemDeletedEvent
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return fmt.Errorf("decoding item deleted event: %w", err)
	}
	members, err := c.houses.ListMemberIDs(ctx, data.HouseID)
	if err != nil {
		return fmt.Errorf("listing house members: %w", err)
	}
	message := fmt.Sprintf("%q was removed; outstanding shares were refunded.", data.ItemName)

	var errs error
	for _, userID := range dedupeRecipients(members, actorID(envelope)) {
		errs = multierr.Append(errs, c.create(ctx, &models.Notification{
			ID:      uuid.New(),
			UserID:  userID,
			Type:    enums.NotificationTypeSettlement,
			Title:   "Shared item removed",
			Message: message,
		}))
	}
	return errs
}

func (c *Consumer) handleOrderPlaced(ctx context.Context, envelope outbox.PayloadEnvelope) error {
	var data payloads.OrderPlacedEvent
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return fmt.Errorf("decoding order event: %w", err)
	}
	// The buyer acted; only the seller needs a notification.
	return c.create(ctx, &models.Notification{
		ID:     uuid.New(),
		UserID: data.SellerID,
		Type:   enums.NotificationTypePurchase,
		Title:  "Product sold",
		Message: fmt.Sprintf("%q x%d sold for %s.",
			data.ProductTitle, data.Quantity, money.FormatCents(data.AmountCents)),
	})
}

func (c *Consumer) handleWalletDeposited(ctx context.Context, envelope outbox.PayloadEnvelope) error {
	var data payloads.WalletDepositedEvent
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return fmt.Errorf("decoding deposit event: %w", err)
	}
	return c.create(ctx, &models.Notification{
		ID:      uuid.New(),
		UserID:  data.UserID,
		Type:    enums.NotificationTypeDeposit,
		Title:   "Wallet topped up",
		Message: fmt.Sprintf("%s was added to your wallet.", money.FormatCents(data.AmountCents)),
	})
}

func (c *Consumer) create(ctx context.Context, notification *models.Notification) error {
	if err := c.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("creating notification for %s: %w", notification.UserID, err)
	}
	metrics.NotificationsCreatedTotal.WithLabelValues(string(notification.Type)).Inc()

	if c.realtime != nil {
		channel := c.realtime.UserChannel(notification.UserID.String())
		hint, err := json.Marshal(map[string]string{
			"id":    notification.ID.String(),
			"type":  string(notification.Type),
			"title": notification.Title,
		})
		if err == nil {
			err = c.realtime.Publish(ctx, channel, hint)
		}
		if err != nil {
			// Realtime delivery is best effort; the stored row is the
			// source of truth.
			logCtx := c.logg.WithFields(ctx, map[string]any{
				"user_id": notification.UserID.String(),
			})
			c.logg.Warn(logCtx, "realtime notification publish failed")
		}
	}
	return nil
}

func actorID(envelope outbox.PayloadEnvelope) uuid.UUID {
	if envelope.Actor == nil {
		return uuid.Nil
	}
	return envelope.Actor.UserID
}

func dedupeRecipients(ids []uuid.UUID, exclude uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
