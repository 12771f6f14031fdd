package wallet

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/communahq/communa-backend/internal/authz"
	"github.com/communahq/communa-backend/internal/houses"
	"github.com/communahq/communa-backend/internal/users"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
	"github.com/communahq/communa-backend/pkg/logger"
	"github.com/communahq/communa-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = gdb.AutoMigrate(
		&models.User{},
		&models.HouseMembership{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func newTestService(t *testing.T, gdb *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "wallet-test", Level: zerolog.Disabled, Output: io.Discard})
	checker, err := authz.NewChecker(houses.NewRepository(gdb))
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}
	svc, err := NewService(
		NewRepository(gdb),
		users.NewRepository(gdb),
		checker,
		outbox.NewService(outbox.NewRepository(gdb), nil),
		gormTxRunner{db: gdb},
		logg,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, gdb *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{ID: uuid.New(), Email: email, Name: "Test User", Role: enums.MemberRoleMember}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func seedWallet(t *testing.T, gdb *gorm.DB, userID uuid.UUID, balanceCents int) {
	t.Helper()
	wallet := models.Wallet{UserID: userID, BalanceCents: balanceCents}
	if err := gdb.Create(&wallet).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
}

func TestCreditAndDebitPairTransactionRows(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	userID := uuid.New()
	seedWallet(t, gdb, userID, 1000)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := svc.Credit(ctx, tx, EntryInput{
			UserID:      userID,
			AmountCents: 500,
			Type:        enums.TransactionTypeRefund,
			Description: "share refund",
		}); err != nil {
			return err
		}
		return svc.Debit(ctx, tx, EntryInput{
			UserID:      userID,
			AmountCents: 300,
			Type:        enums.TransactionTypePayment,
			Description: "share payment",
		})
	})
	if err != nil {
		t.Fatalf("ledger ops: %v", err)
	}

	var wallet models.Wallet
	if err := gdb.First(&wallet, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("reload wallet: %v", err)
	}
	if wallet.BalanceCents != 1200 {
		t.Errorf("balance = %d, want 1200", wallet.BalanceCents)
	}

	var rows []models.WalletTransaction
	if err := gdb.Where("user_id = ?", userID).Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 transaction rows, got %d", len(rows))
	}
	if rows[0].AmountCents != 500 || rows[0].Type != enums.TransactionTypeRefund {
		t.Errorf("credit row = %+v", rows[0])
	}
	if rows[1].AmountCents != -300 || rows[1].Type != enums.TransactionTypePayment {
		t.Errorf("debit row = %+v", rows[1])
	}
}

func TestDebitRefusesNegativeBalance(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	userID := uuid.New()
	seedWallet(t, gdb, userID, 200)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		return svc.Debit(ctx, tx, EntryInput{
			UserID:      userID,
			AmountCents: 201,
			Type:        enums.TransactionTypePayment,
			Description: "too much",
		})
	})
	if !apperrors.IsCode(err, apperrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	appErr := apperrors.As(err)
	details, ok := appErr.Details().(InsufficientFundsDetails)
	if !ok {
		t.Fatalf("details = %#v", appErr.Details())
	}
	if details.UserID != userID || details.RequiredCents != 201 || details.BalanceCents != 200 {
		t.Errorf("details = %+v", details)
	}

	var wallet models.Wallet
	if err := gdb.First(&wallet, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("reload wallet: %v", err)
	}
	if wallet.BalanceCents != 200 {
		t.Errorf("balance mutated to %d on failed debit", wallet.BalanceCents)
	}
	var count int64
	if err := gdb.Model(&models.WalletTransaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("failed debit left %d transaction rows", count)
	}
}

func TestLockWalletsCreatesMissingRows(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	seedWallet(t, gdb, a, 700)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		wallets, err := svc.LockWallets(ctx, tx, []uuid.UUID{b, a, b})
		if err != nil {
			return err
		}
		if len(wallets) != 2 {
			t.Errorf("locked %d wallets, want 2", len(wallets))
		}
		if got := wallets[a]; got == nil || got.BalanceCents != 700 {
			t.Errorf("wallet a = %+v", got)
		}
		if got := wallets[b]; got == nil || got.BalanceCents != 0 {
			t.Errorf("wallet b = %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("lock wallets: %v", err)
	}

	var count int64
	if err := gdb.Model(&models.Wallet{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("wallet rows = %d, want 2 (lazy create)", count)
	}
}

func TestDepositRequiresAdminAndKnownEmail(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	target := seedUser(t, gdb, "resident@example.com")
	admin := authz.Actor{UserID: uuid.New(), Role: enums.MemberRoleAdmin}
	member := authz.Actor{UserID: uuid.New(), Role: enums.MemberRoleMember}

	err := svc.Deposit(ctx, member, DepositInput{TargetEmail: target.Email, AmountCents: 1000})
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("member deposit: %v", err)
	}

	err = svc.Deposit(ctx, admin, DepositInput{TargetEmail: "ghost@example.com", AmountCents: 1000})
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("unknown email: %v", err)
	}

	err = svc.Deposit(ctx, admin, DepositInput{TargetEmail: target.Email, AmountCents: 0})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("zero amount: %v", err)
	}

	if err := svc.Deposit(ctx, admin, DepositInput{TargetEmail: target.Email, AmountCents: 2500}); err != nil {
		t.Fatalf("admin deposit: %v", err)
	}

	wallet, err := svc.Balance(ctx, target.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if wallet.BalanceCents != 2500 {
		t.Errorf("balance = %d, want 2500", wallet.BalanceCents)
	}

	var row models.WalletTransaction
	if err := gdb.First(&row, "user_id = ?", target.ID).Error; err != nil {
		t.Fatalf("load deposit row: %v", err)
	}
	if row.Type != enums.TransactionTypeDeposit || row.AmountCents != 2500 {
		t.Errorf("deposit row = %+v", row)
	}

	var eventCount int64
	if err := gdb.Model(&models.OutboxEvent{}).Count(&eventCount).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if eventCount != 1 {
		t.Errorf("outbox events = %d, want 1", eventCount)
	}
}

func TestBalanceForMissingWalletIsZero(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)

	wallet, err := svc.Balance(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if wallet.BalanceCents != 0 {
		t.Errorf("balance = %d, want 0", wallet.BalanceCents)
	}
}

func TestTransactionsPaginates(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	userID := uuid.New()
	seedWallet(t, gdb, userID, 0)
	for i := 0; i < 5; i++ {
		row := models.WalletTransaction{
			ID:          uuid.New(),
			UserID:      userID,
			AmountCents: 100 + i,
			Type:        enums.TransactionTypeDeposit,
			Description: "seed",
		}
		if err := gdb.Create(&row).Error; err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
	}

	page1, next, err := svc.Transactions(ctx, userID, "", 3)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1) != 3 || next == "" {
		t.Fatalf("page 1 = %d rows, next %q", len(page1), next)
	}

	page2, next2, err := svc.Transactions(ctx, userID, next, 3)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2) != 2 || next2 != "" {
		t.Fatalf("page 2 = %d rows, next %q", len(page2), next2)
	}

	seen := map[uuid.UUID]bool{}
	for _, row := range append(page1, page2...) {
		if seen[row.ID] {
			t.Fatalf("duplicate row %s across pages", row.ID)
		}
		seen[row.ID] = true
	}
}
