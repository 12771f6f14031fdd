package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/communahq/communa-backend/internal/houses"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:authz_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.HouseMembership{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedMembership(t *testing.T, gdb *gorm.DB, houseID, userID uuid.UUID, role enums.MemberRole) {
	t.Helper()
	row := models.HouseMembership{HouseID: houseID, UserID: userID, Role: role}
	if err := gdb.Create(&row).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}
}

func TestCanToggleParticipation(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	checker, err := NewChecker(houses.NewRepository(gdb))
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}

	houseID := uuid.New()
	member := uuid.New()
	otherMember := uuid.New()
	owner := uuid.New()
	outsider := uuid.New()
	seedMembership(t, gdb, houseID, member, enums.MemberRoleMember)
	seedMembership(t, gdb, houseID, otherMember, enums.MemberRoleMember)
	seedMembership(t, gdb, houseID, owner, enums.MemberRoleOwner)

	ctx := context.Background()

	cases := []struct {
		name     string
		actor    Actor
		target   uuid.UUID
		wantCode apperrors.Code
	}{
		{"member toggles self", Actor{UserID: member, Role: enums.MemberRoleMember}, member, ""},
		{"member toggles other", Actor{UserID: member, Role: enums.MemberRoleMember}, otherMember, apperrors.CodeForbidden},
		{"owner toggles member", Actor{UserID: owner, Role: enums.MemberRoleMember}, member, ""},
		{"outsider toggles self", Actor{UserID: outsider, Role: enums.MemberRoleMember}, outsider, apperrors.CodeForbidden},
		{"global admin toggles anyone", Actor{UserID: outsider, Role: enums.MemberRoleAdmin}, member, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checker.CanToggleParticipation(ctx, tc.actor, houseID, tc.target)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("expected allow, got %v", err)
				}
				return
			}
			if !apperrors.IsCode(err, tc.wantCode) {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
		})
	}
}

func TestCanManageItemsAndViewAudit(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	checker, err := NewChecker(houses.NewRepository(gdb))
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}

	houseID := uuid.New()
	member := uuid.New()
	admin := uuid.New()
	outsider := uuid.New()
	seedMembership(t, gdb, houseID, member, enums.MemberRoleMember)
	seedMembership(t, gdb, houseID, admin, enums.MemberRoleAdmin)

	ctx := context.Background()

	if err := checker.CanManageItems(ctx, Actor{UserID: member, Role: enums.MemberRoleMember}, houseID); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("plain member should not manage items, got %v", err)
	}
	if err := checker.CanManageItems(ctx, Actor{UserID: admin, Role: enums.MemberRoleMember}, houseID); err != nil {
		t.Fatalf("house admin should manage items, got %v", err)
	}
	if err := checker.CanViewAudit(ctx, Actor{UserID: member, Role: enums.MemberRoleMember}, houseID); err != nil {
		t.Fatalf("member should view audit, got %v", err)
	}
	if err := checker.CanViewAudit(ctx, Actor{UserID: outsider, Role: enums.MemberRoleMember}, houseID); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("outsider should not view audit, got %v", err)
	}
}

func TestCanDeposit(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	checker, err := NewChecker(houses.NewRepository(gdb))
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}

	ctx := context.Background()
	if err := checker.CanDeposit(ctx, Actor{UserID: uuid.New(), Role: enums.MemberRoleAdmin}); err != nil {
		t.Fatalf("admin deposit blocked: %v", err)
	}
	if err := checker.CanDeposit(ctx, Actor{UserID: uuid.New(), Role: enums.MemberRoleOwner}); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("non-admin deposit allowed: %v", err)
	}
}
