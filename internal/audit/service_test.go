package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/communahq/communa-backend/internal/authz"
	"github.com/communahq/communa-backend/internal/houses"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:audit_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.HouseMembership{}, &models.ActionLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func newTestService(t *testing.T, gdb *gorm.DB) Service {
	t.Helper()
	checker, err := authz.NewChecker(houses.NewRepository(gdb))
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}
	svc, err := NewService(NewRepository(gdb), checker)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRecordAppendsRowWithDetails(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	houseID := uuid.New()
	actorID := uuid.New()
	targetID := uuid.New()

	err := gdb.Transaction(func(tx *gorm.DB) error {
		return svc.Record(ctx, tx, RecordInput{
			HouseID:      houseID,
			ActorID:      actorID,
			Action:       enums.AuditActionParticipationToggled,
			ItemName:     "groceries week 34",
			TargetUserID: &targetID,
			ShareCents:   1250,
			Details:      map[string]any{"joined": true, "participants": 4},
		})
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	var row models.ActionLog
	if err := gdb.First(&row, "house_id = ?", houseID).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.Action != enums.AuditActionParticipationToggled || row.ShareCents != 1250 {
		t.Errorf("row = %+v", row)
	}
	if row.TargetUserID == nil || *row.TargetUserID != targetID {
		t.Errorf("target = %v", row.TargetUserID)
	}
	var details map[string]any
	if err := json.Unmarshal(row.Details, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details["joined"] != true {
		t.Errorf("details = %v", details)
	}
}

func TestRecordRejectsInvalidAction(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		return svc.Record(context.Background(), tx, RecordInput{
			HouseID: uuid.New(),
			ActorID: uuid.New(),
			Action:  enums.AuditAction("made_coffee"),
		})
	})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListByHouseRequiresMembership(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	houseID := uuid.New()
	member := uuid.New()
	outsider := uuid.New()
	membership := models.HouseMembership{HouseID: houseID, UserID: member, Role: enums.MemberRoleMember}
	if err := gdb.Create(&membership).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}

	for i := 0; i < 3; i++ {
		err := gdb.Transaction(func(tx *gorm.DB) error {
			return svc.Record(ctx, tx, RecordInput{
				HouseID:  houseID,
				ActorID:  member,
				Action:   enums.AuditActionItemCreated,
				ItemName: "item",
			})
		})
		if err != nil {
			t.Fatalf("seed row: %v", err)
		}
	}

	rows, _, err := svc.ListByHouse(ctx, authz.Actor{UserID: member, Role: enums.MemberRoleMember}, houseID, "", 10)
	if err != nil {
		t.Fatalf("member list: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}

	_, _, err = svc.ListByHouse(ctx, authz.Actor{UserID: outsider, Role: enums.MemberRoleMember}, houseID, "", 10)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("outsider list: %v", err)
	}
}
