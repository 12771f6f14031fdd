package notifications

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/communahq/communa-backend/internal/houses"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
	"github.com/communahq/communa-backend/pkg/logger"
	"github.com/communahq/communa-backend/pkg/outbox"
	"github.com/communahq/communa-backend/pkg/outbox/payloads"
)

type fakeRealtime struct {
	mu       sync.Mutex
	channels []string
}

func (f *fakeRealtime) Publish(_ context.Context, channel string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	return nil
}

func (f *fakeRealtime) UserChannel(userID string) string {
	return "cm:events:user:" + userID
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.HouseMembership{}, &models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func newConsumer(t *testing.T, gdb *gorm.DB, realtime *fakeRealtime) *Consumer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "notifications-test", Level: zerolog.Disabled, Output: io.Discard})
	consumer, err := NewConsumer(NewRepository(gdb), houses.NewRepository(gdb), realtime, logg)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return consumer
}

func envelope(t *testing.T, actor uuid.UUID, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Actor:      &outbox.ActorRef{UserID: actor},
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

func userNotifications(t *testing.T, gdb *gorm.DB, userID uuid.UUID) []models.Notification {
	t.Helper()
	var rows []models.Notification
	if err := gdb.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	return rows
}

func TestHandleSettlementUpdatedNotifiesParticipantsAndSeller(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	realtime := &fakeRealtime{}
	consumer := newConsumer(t, gdb, realtime)

	actor := uuid.New()
	target := uuid.New()
	other := uuid.New()
	seller := uuid.New()

	event := InboundEvent{
		EventType:   enums.EventSettlementUpdated,
		AggregateID: uuid.New(),
		Payload: envelope(t, actor, payloads.SettlementUpdatedEvent{
			ItemID:       uuid.New(),
			ItemName:     "rice cooker",
			HouseID:      uuid.New(),
			TargetUserID: target,
			Joined:       true,
			ShareCents:   1500,
			Participants: []uuid.UUID{target, other},
			TotalCents:   3000,
			SellerUserID: seller,
		}),
	}
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	targetRows := userNotifications(t, gdb, target)
	if len(targetRows) != 1 {
		t.Fatalf("target rows = %d", len(targetRows))
	}
	if targetRows[0].Type != enums.NotificationTypeSettlement {
		t.Errorf("type = %s", targetRows[0].Type)
	}
	if targetRows[0].Message != `You joined "rice cooker"; your share is $15.00.` {
		t.Errorf("target message = %q", targetRows[0].Message)
	}
	if len(userNotifications(t, gdb, other)) != 1 {
		t.Errorf("other participant not notified")
	}
	if len(userNotifications(t, gdb, seller)) != 1 {
		t.Errorf("seller not notified")
	}
	if len(userNotifications(t, gdb, actor)) != 0 {
		t.Errorf("actor notified about own action")
	}
	if len(realtime.channels) != 3 {
		t.Errorf("realtime publishes = %d, want 3", len(realtime.channels))
	}
}

func TestHandleSettlementUpdatedNotifiesRemovedMember(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	consumer := newConsumer(t, gdb, &fakeRealtime{})

	owner := uuid.New()
	removed := uuid.New()
	remaining := uuid.New()
	seller := uuid.New()

	event := InboundEvent{
		EventType:   enums.EventSettlementUpdated,
		AggregateID: uuid.New(),
		Payload: envelope(t, owner, payloads.SettlementUpdatedEvent{
			ItemID:       uuid.New(),
			ItemName:     "rice cooker",
			HouseID:      uuid.New(),
			TargetUserID: removed,
			Joined:       false,
			ShareCents:   3000,
			Participants: []uuid.UUID{remaining},
			TotalCents:   3000,
			SellerUserID: seller,
		}),
	}
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	removedRows := userNotifications(t, gdb, removed)
	if len(removedRows) != 1 {
		t.Fatalf("removed member rows = %d, want 1", len(removedRows))
	}
	if removedRows[0].Message != `You left "rice cooker"; your share was refunded.` {
		t.Errorf("removed message = %q", removedRows[0].Message)
	}
	if len(userNotifications(t, gdb, remaining)) != 1 {
		t.Errorf("remaining participant not notified")
	}
	if len(userNotifications(t, gdb, seller)) != 1 {
		t.Errorf("seller not notified")
	}
	if len(userNotifications(t, gdb, owner)) != 0 {
		t.Errorf("acting owner notified about own action")
	}
}

func TestHandleItemCreatedNotifiesHouseMembers(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	consumer := newConsumer(t, gdb, &fakeRealtime{})

	houseID := uuid.New()
	creator := uuid.New()
	member := uuid.New()
	memberships := []models.HouseMembership{
		{HouseID: houseID, UserID: creator, Role: enums.MemberRoleOwner},
		{HouseID: houseID, UserID: member, Role: enums.MemberRoleMember},
	}
	if err := gdb.Create(&memberships).Error; err != nil {
		t.Fatalf("seed memberships: %v", err)
	}

	event := InboundEvent{
		EventType:   enums.EventItemCreated,
		AggregateID: uuid.New(),
		Payload: envelope(t, creator, payloads.ItemCreatedEvent{
			ItemID:     uuid.New(),
			ItemName:   "blender",
			HouseID:    houseID,
			TotalCents: 4200,
			CreatedBy:  creator,
		}),
	}
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(userNotifications(t, gdb, member)) != 1 {
		t.Errorf("member not notified")
	}
	if len(userNotifications(t, gdb, creator)) != 0 {
		t.Errorf("creator notified about own item")
	}
}

func TestHandleOrderPlacedNotifiesSellerOnly(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	consumer := newConsumer(t, gdb, &fakeRealtime{})

	buyer := uuid.New()
	seller := uuid.New()
	event := InboundEvent{
		EventType:   enums.EventOrderPlaced,
		AggregateID: uuid.New(),
		Payload: envelope(t, buyer, payloads.OrderPlacedEvent{
			OrderID:      uuid.New(),
			BuyerID:      buyer,
			SellerID:     seller,
			ProductID:    uuid.New(),
			ProductTitle: "kettle",
			Quantity:     2,
			AmountCents:  2400,
		}),
	}
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	rows := userNotifications(t, gdb, seller)
	if len(rows) != 1 || rows[0].Type != enums.NotificationTypePurchase {
		t.Fatalf("seller rows = %+v", rows)
	}
	if len(userNotifications(t, gdb, buyer)) != 0 {
		t.Errorf("buyer notified about own purchase")
	}
}

func TestHandleUnknownEventTypeIsSkipped(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	consumer := newConsumer(t, gdb, &fakeRealtime{})

	event := InboundEvent{
		EventType:   enums.OutboxEventType("price_changed"),
		AggregateID: uuid.New(),
		Payload:     envelope(t, uuid.New(), map[string]string{"x": "y"}),
	}
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle should ack unknown types: %v", err)
	}
}

func TestListMarkReadAndMarkAllRead(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc, err := NewService(NewRepository(gdb))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	owner := uuid.New()
	stranger := uuid.New()
	base := time.Now().Add(-time.Hour)
	rows := make([]models.Notification, 0, 3)
	for i := 0; i < 3; i++ {
		rows = append(rows, models.Notification{
			ID:        uuid.New(),
			UserID:    owner,
			Type:      enums.NotificationTypeDeposit,
			Title:     "Wallet topped up",
			Message:   "funds added",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	if err := gdb.Create(&rows).Error; err != nil {
		t.Fatalf("seed notifications: %v", err)
	}

	page1, next, err := svc.ListByUser(ctx, owner, "", 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1) != 2 || next == "" {
		t.Fatalf("page 1 = %d rows, next %q", len(page1), next)
	}
	page2, next2, err := svc.ListByUser(ctx, owner, next, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2) != 1 || next2 != "" {
		t.Fatalf("page 2 = %d rows, next %q", len(page2), next2)
	}

	if err := svc.MarkRead(ctx, stranger, rows[0].ID); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("other user's ack: %v", err)
	}
	if err := svc.MarkRead(ctx, owner, rows[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, err := svc.UnreadCount(ctx, owner)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 2 {
		t.Errorf("unread = %d, want 2", count)
	}

	if err := svc.MarkAllRead(ctx, owner); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	count, err = svc.UnreadCount(ctx, owner)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 0 {
		t.Errorf("unread after mark all = %d", count)
	}
}
