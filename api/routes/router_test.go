package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	auditsvc "github.com/communahq/communa-backend/internal/audit"
	"github.com/communahq/communa-backend/internal/authz"
	"github.com/communahq/communa-backend/internal/houses"
	"github.com/communahq/communa-backend/internal/inventory"
	"github.com/communahq/communa-backend/internal/notifications"
	"github.com/communahq/communa-backend/internal/purchase"
	"github.com/communahq/communa-backend/internal/settlement"
	"github.com/communahq/communa-backend/internal/users"
	"github.com/communahq/communa-backend/internal/wallet"
	pkgAuth "github.com/communahq/communa-backend/pkg/auth"
	"github.com/communahq/communa-backend/pkg/config"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
	"github.com/communahq/communa-backend/pkg/logger"
	"github.com/communahq/communa-backend/pkg/outbox"
	"github.com/communahq/communa-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: config.AppEnvDev, Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "communa-test",
			ExpirationMinutes: 5,
		},
		Settlement: config.SettlementConfig{LockTimeout: 3 * time.Second},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = gdb.AutoMigrate(
		&models.User{},
		&models.House{},
		&models.HouseMembership{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Product{},
		&models.UserInventory{},
		&models.SharedItem{},
		&models.Participation{},
		&models.ActionLog{},
		&models.CartItem{},
		&models.Order{},
		&models.OutboxEvent{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := newTestConfig()
	logg := logger.New(logger.Options{ServiceName: "routes-test", Level: zerolog.Disabled, Output: io.Discard})
	runner := gormTxRunner{db: gdb}

	housesRepo := houses.NewRepository(gdb)
	checker, err := authz.NewChecker(housesRepo)
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}
	events := outbox.NewService(outbox.NewRepository(gdb), nil)

	walletService, err := wallet.NewService(wallet.NewRepository(gdb), users.NewRepository(gdb), checker, events, runner, logg)
	if err != nil {
		t.Fatalf("new wallet service: %v", err)
	}
	tracker, err := inventory.NewTracker(inventory.NewRepository(gdb))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	auditService, err := auditsvc.NewService(auditsvc.NewRepository(gdb), checker)
	if err != nil {
		t.Fatalf("new audit service: %v", err)
	}
	settlementService, err := settlement.NewService(
		settlement.NewRepository(gdb), walletService, tracker, auditService,
		housesRepo, checker, events, runner, logg, cfg.Settlement,
	)
	if err != nil {
		t.Fatalf("new settlement service: %v", err)
	}
	purchaseService, err := purchase.NewService(
		purchase.NewRepository(gdb), walletService, tracker, events, runner, logg, cfg.Settlement,
	)
	if err != nil {
		t.Fatalf("new purchase service: %v", err)
	}
	notificationsService, err := notifications.NewService(notifications.NewRepository(gdb))
	if err != nil {
		t.Fatalf("new notifications service: %v", err)
	}

	return NewRouter(
		cfg, logg, stubPinger{}, &redis.Client{},
		settlementService, purchaseService, walletService, auditService, notificationsService,
	)
}

func mintToken(t *testing.T, role enums.MemberRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(newTestConfig().JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("X-Communa-Env"); got != config.AppEnvDev {
		t.Errorf("env header = %q", got)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/wallet/", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestWalletBalanceWithToken(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.MemberRoleMember))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestAdminRoutesRejectMembers(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/deposits", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.MemberRoleMember))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}
