// Command server runs the ExtraShifty API: the wallet ledger, shift
// marketplace, settlement pipeline, dispute/penalty engine, payouts, and
// the background scheduler that drives their time-based transitions.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pentedigital/extrashifty/internal/auth"
	"github.com/pentedigital/extrashifty/internal/clock"
	"github.com/pentedigital/extrashifty/internal/config"
	"github.com/pentedigital/extrashifty/internal/db"
	"github.com/pentedigital/extrashifty/internal/dispute"
	"github.com/pentedigital/extrashifty/internal/health"
	"github.com/pentedigital/extrashifty/internal/httpapi"
	"github.com/pentedigital/extrashifty/internal/idempotency"
	"github.com/pentedigital/extrashifty/internal/logging"
	"github.com/pentedigital/extrashifty/internal/notify"
	"github.com/pentedigital/extrashifty/internal/payout"
	"github.com/pentedigital/extrashifty/internal/penalty"
	"github.com/pentedigital/extrashifty/internal/processor"
	"github.com/pentedigital/extrashifty/internal/reservation"
	"github.com/pentedigital/extrashifty/internal/scheduler"
	"github.com/pentedigital/extrashifty/internal/shift"
	"github.com/pentedigital/extrashifty/internal/traces"
	"github.com/pentedigital/extrashifty/internal/verification"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

// Build info, set by ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewWithRotatingFile(cfg.LogLevel, "json", cfg.LogFilePath)
	logger.Info("starting extrashifty", "version", Version, "commit", Commit, "build_time", BuildTime, "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTraces(context.Background()); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	database, err := db.Open(ctx, cfg)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	idemCache, err := idempotency.New(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to init idempotency cache", "error", err)
		os.Exit(1)
	}
	defer idemCache.Close()

	clk := clock.Real{}

	authStore := auth.NewPostgresStore(database)
	authManager := auth.NewManager(authStore)

	walletStore := wallet.NewPostgresStore(database)
	shiftStore := shift.NewPostgresStore(database)
	reservationStore := reservation.NewPostgresStore(database)
	disputeStore := dispute.NewPostgresStore(database)
	penaltyStore := penalty.NewPostgresStore(database)
	payoutStore := payout.NewPostgresStore(database)
	webhookStore := processor.NewPostgresStore(database)

	stripe := processor.NewStripeProcessor(cfg.ProcessorAPIKey, logger)
	notifier := notify.NewLoggingSink(logger)

	gracePeriod := time.Duration(cfg.WalletGracePeriodHours) * time.Hour
	walletSvc := wallet.NewService(walletStore, processor.NewWalletAdapter(stripe), clk, gracePeriod, logger)
	walletSvc.WithNotifier(notifier)

	disputeSvc := dispute.NewService(disputeStore, shiftStore, walletSvc, clk, logger)
	penaltySvc := penalty.NewService(penaltyStore, shiftStore, walletSvc, clk, logger)
	penaltySvc.WithUsers(authManager)
	penaltySvc.WithNotifier(notifier)
	walletSvc.WithNegativeBalanceOffsetter(penaltySvc)

	reservationSvc := reservation.NewService(reservationStore, shiftStore, walletSvc, clk, logger)
	verificationSvc := verification.NewService(shiftStore, reservationSvc, disputeSvc, clk, logger)

	payoutSvc := payout.NewService(payoutStore, walletSvc, processor.NewPayoutAdapter(stripe), clk, logger)
	payoutSvc.WithNegativeBalanceOffsetter(penaltySvc)

	dispatcher := processor.NewDispatcher(webhookStore, logger)

	tasks := scheduler.DefaultTasks(scheduler.Services{
		Wallet:       walletSvc,
		Reservation:  reservationSvc,
		Dispute:      disputeSvc,
		Penalty:      penaltySvc,
		Payout:       payoutSvc,
		Verification: verificationSvc,
	})
	sched := scheduler.New(tasks, clk, logger)
	sched.Start(ctx)

	healthReg := health.NewRegistry()
	healthReg.Register("database", func(ctx context.Context) health.Status {
		if err := database.PingContext(ctx); err != nil {
			return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
		}
		return health.Status{Name: "database", Healthy: true}
	})

	router := httpapi.NewRouter(httpapi.Dependencies{
		Config:       cfg,
		Logger:       logger,
		DB:           database,
		AuthManager:  authManager,
		Wallets:      walletSvc,
		Shifts:       shiftStore,
		Reservations: reservationSvc,
		Disputes:     disputeSvc,
		Penalties:    penaltySvc,
		Payouts:      payoutSvc,
		Verification: verificationSvc,
		Health:       healthReg,
		Webhooks:     dispatcher,
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErrs := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "port", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrs:
		logger.Error("http server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sched.Stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("extrashifty stopped cleanly")
}
