package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/communahq/communa-backend/api/routes"
	auditsvc "github.com/communahq/communa-backend/internal/audit"
	"github.com/communahq/communa-backend/internal/authz"
	"github.com/communahq/communa-backend/internal/houses"
	"github.com/communahq/communa-backend/internal/inventory"
	"github.com/communahq/communa-backend/internal/notifications"
	"github.com/communahq/communa-backend/internal/purchase"
	"github.com/communahq/communa-backend/internal/settlement"
	"github.com/communahq/communa-backend/internal/users"
	"github.com/communahq/communa-backend/internal/wallet"
	"github.com/communahq/communa-backend/pkg/config"
	"github.com/communahq/communa-backend/pkg/db"
	"github.com/communahq/communa-backend/pkg/logger"
	"github.com/communahq/communa-backend/pkg/migrate"
	"github.com/communahq/communa-backend/pkg/outbox"
	"github.com/communahq/communa-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gdb := dbClient.DB()
	housesRepo := houses.NewRepository(gdb)
	checker, err := authz.NewChecker(housesRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create authorizer", err)
		os.Exit(1)
	}
	events := outbox.NewService(outbox.NewRepository(gdb), logg)

	walletService, err := wallet.NewService(wallet.NewRepository(gdb), users.NewRepository(gdb), checker, events, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}
	tracker, err := inventory.NewTracker(inventory.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory tracker", err)
		os.Exit(1)
	}
	auditService, err := auditsvc.NewService(auditsvc.NewRepository(gdb), checker)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}
	settlementService, err := settlement.NewService(
		settlement.NewRepository(gdb), walletService, tracker, auditService,
		housesRepo, checker, events, dbClient, logg, cfg.Settlement,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}
	purchaseService, err := purchase.NewService(
		purchase.NewRepository(gdb), walletService, tracker, events, dbClient, logg, cfg.Settlement,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase service", err)
		os.Exit(1)
	}
	notificationsService, err := notifications.NewService(notifications.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient,
			settlementService, purchaseService, walletService, auditService, notificationsService,
		),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "error draining api server", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
