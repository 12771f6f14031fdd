package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/communahq/communa-backend/pkg/db/models"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.UserInventory{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func newTracker(t *testing.T, gdb *gorm.DB) Tracker {
	t.Helper()
	tracker, err := NewTracker(NewRepository(gdb))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return tracker
}

func quantityOf(t *testing.T, gdb *gorm.DB, userID, productID uuid.UUID) (int, bool) {
	t.Helper()
	var row models.UserInventory
	err := gdb.First(&row, "user_id = ? AND product_id = ?", userID, productID).Error
	if err == gorm.ErrRecordNotFound {
		return 0, false
	}
	if err != nil {
		t.Fatalf("load row: %v", err)
	}
	return row.Quantity, true
}

func TestIncrementCreatesRowOnFirstAcquisition(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	tracker := newTracker(t, gdb)
	ctx := context.Background()

	userID := uuid.New()
	productID := uuid.New()

	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tracker.Increment(ctx, tx, userID, productID, 2); err != nil {
			return err
		}
		return tracker.Increment(ctx, tx, userID, productID, 3)
	})
	if err != nil {
		t.Fatalf("increment: %v", err)
	}

	got, ok := quantityOf(t, gdb, userID, productID)
	if !ok || got != 5 {
		t.Fatalf("quantity = %d (exists=%v), want 5", got, ok)
	}
}

func TestDecrementDeletesRowAtZero(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	tracker := newTracker(t, gdb)
	ctx := context.Background()

	userID := uuid.New()
	productID := uuid.New()

	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tracker.Increment(ctx, tx, userID, productID, 2); err != nil {
			return err
		}
		if err := tracker.Decrement(ctx, tx, userID, productID, 1); err != nil {
			return err
		}
		return tracker.Decrement(ctx, tx, userID, productID, 1)
	})
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}

	if _, ok := quantityOf(t, gdb, userID, productID); ok {
		t.Fatal("row survived draining to zero")
	}
}

func TestDecrementPastZeroIsInvariantViolation(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	tracker := newTracker(t, gdb)
	ctx := context.Background()

	userID := uuid.New()
	productID := uuid.New()

	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tracker.Increment(ctx, tx, userID, productID, 1); err != nil {
			return err
		}
		return tracker.Decrement(ctx, tx, userID, productID, 2)
	})
	if !apperrors.IsCode(err, apperrors.CodeInternal) {
		t.Fatalf("expected internal invariant error, got %v", err)
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		return tracker.Decrement(ctx, tx, uuid.New(), productID, 1)
	})
	if !apperrors.IsCode(err, apperrors.CodeInternal) {
		t.Fatalf("expected internal invariant error for missing row, got %v", err)
	}
}

func TestAdjustValidation(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	tracker := newTracker(t, gdb)
	ctx := context.Background()

	err := gdb.Transaction(func(tx *gorm.DB) error {
		return tracker.Increment(ctx, tx, uuid.New(), uuid.New(), 0)
	})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("zero delta: %v", err)
	}

	if err := tracker.Increment(ctx, nil, uuid.New(), uuid.New(), 1); !apperrors.IsCode(err, apperrors.CodeInternal) {
		t.Fatalf("nil tx: %v", err)
	}
}
