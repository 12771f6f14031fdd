package models

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/communahq/communa-backend/pkg/enums"
)

// The test suite runs every repository against in-memory SQLite, so each
// model must AutoMigrate there: column defaults stay literal (Postgres
// function defaults live in the SQL migration only) and rows carry their ids
// from code.
func TestAllModelsMigrateOnSQLite(t *testing.T) {
	t.Parallel()

	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = gdb.AutoMigrate(
		&User{}, &House{}, &HouseMembership{},
		&Wallet{}, &WalletTransaction{},
		&Product{}, &UserInventory{},
		&SharedItem{}, &Participation{},
		&ActionLog{}, &CartItem{}, &Order{},
		&OutboxEvent{}, &Notification{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	row := WalletTransaction{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		AmountCents: 100,
		Type:        enums.TransactionTypeDeposit,
		Description: "seed",
	}
	if err := gdb.Create(&row).Error; err != nil {
		t.Fatalf("insert transaction: %v", err)
	}

	var loaded WalletTransaction
	if err := gdb.First(&loaded, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if loaded.CreatedAt.IsZero() {
		t.Errorf("created_at not populated on insert")
	}

	entry := ActionLog{
		ID:       uuid.New(),
		HouseID:  uuid.New(),
		UserID:   uuid.New(),
		Action:   enums.AuditActionItemCreated,
		ItemName: "seed",
	}
	if err := gdb.Create(&entry).Error; err != nil {
		t.Fatalf("insert action log: %v", err)
	}
}
