package main

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/communahq/communa-backend/internal/notifications"
	"github.com/communahq/communa-backend/pkg/config"
	"github.com/communahq/communa-backend/pkg/db"
	"github.com/communahq/communa-backend/pkg/enums"
	"github.com/communahq/communa-backend/pkg/logger"
	"github.com/communahq/communa-backend/pkg/pubsub"
	"github.com/communahq/communa-backend/pkg/redis"
)

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	PubSub   *pubsub.Client
	Consumer *notifications.Consumer
	Guard    *notifications.IdempotencyGuard
}

// Service pulls domain events off the bus and hands them to the
// notifications consumer. Decode failures ack (redelivery cannot fix a bad
// payload); handler failures nack so the event is retried.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	db       *db.Client
	redis    *redis.Client
	pubsub   *pubsub.Client
	consumer *notifications.Consumer
	guard    *notifications.IdempotencyGuard
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("notifications consumer is required")
	}
	if params.Guard == nil {
		return nil, errors.New("idempotency guard is required")
	}
	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		db:       params.DB,
		redis:    params.Redis,
		pubsub:   params.PubSub,
		consumer: params.Consumer,
		guard:    params.Guard,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all notifier dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	subscription := s.pubsub.DomainSubscription()
	if subscription == nil {
		return errors.New("domain subscription not configured")
	}

	return subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.handle(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// handle reports whether the message should be acked.
func (s *Service) handle(ctx context.Context, msg *gcppubsub.Message) bool {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	})

	eventType, err := enums.ParseOutboxEventType(msg.Attributes["event_type"])
	if err != nil {
		s.logg.Warn(logCtx, "skipping message with unknown event type")
		return true
	}
	aggregateID, err := uuid.Parse(msg.Attributes["aggregate_id"])
	if err != nil {
		s.logg.Warn(logCtx, "skipping message with invalid aggregate id")
		return true
	}

	eventID := msg.Attributes["event_id"]
	if eventID == "" {
		eventID = msg.ID
	}
	duplicate, err := s.guard.CheckAndMark(ctx, eventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if duplicate {
		s.logg.Debug(logCtx, "skipping already handled event")
		return true
	}

	event := notifications.InboundEvent{
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     msg.Data,
	}
	if err := s.consumer.Handle(ctx, event); err != nil {
		s.logg.Error(logCtx, "failed to handle domain event", err)
		if relErr := s.guard.Release(ctx, eventID); relErr != nil {
			s.logg.Error(logCtx, "failed to release idempotency mark", relErr)
		}
		return false
	}
	return true
}
