package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/app"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/clock"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/config"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/inbox"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/notify"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/storage/postgres"
	transporthttp "github.com/jessebugclark-dot/Jesselovesmovies/internal/transport/http"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/venmo"
	"github.com/jessebugclark-dot/Jesselovesmovies/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	zlog, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	logger := zlog.Sugar()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("load config", "error", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("connect to db", "error", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatalw("db ping", "error", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatalw("apply migrations", "error", err)
	}

	svcCfg := app.OrderServiceConfig{
		TicketPrice:    cfg.TicketPrice,
		CodePrefix:     cfg.CodePrefix,
		ReservationTTL: cfg.ReservationTTL,
		ShowTimes:      cfg.ShowTimes,
		SeatsPerShow:   cfg.SeatsPerShow,
		VenmoHandle:    cfg.VenmoHandle,
	}

	repo := postgres.NewOrderRepository(pool)
	clk := clock.NewSystem()
	parser := venmo.NewParser(cfg.CodePrefix)
	mailer := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		AppURL:   cfg.AppURL,
	})
	mailbox := inbox.NewIMAPInbox(inbox.IMAPConfig{
		Host:     cfg.IMAPHost,
		Port:     cfg.IMAPPort,
		Username: cfg.IMAPUsername,
		Password: cfg.IMAPPassword,
		Sender:   cfg.VenmoSender,
	})

	orderSvc := app.NewOrderService(repo, clk, svcCfg)
	adminSvc := app.NewAdminService(repo, clk, mailer, svcCfg)
	reconcileSvc := app.NewReconcileService(repo, mailbox, mailer, parser, clk, logger, cfg.PassBudget)

	handler := transporthttp.NewRouter(transporthttp.RouterConfig{
		Orders:         orderSvc,
		Reconciler:     reconcileSvc,
		Admin:          adminSvc,
		Parser:         parser,
		Logger:         logger,
		AllowedOrigins: cfg.CORSOrigins,
		WebhookSecret:  cfg.WebhookSecret,
		CronSecret:     cfg.CronSecret,
		AdminToken:     cfg.AdminToken,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	logger.Infow("api listening", "port", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("server error", "error", err)
		}
	case <-stopCtx.Done():
		logger.Infow("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorw("server shutdown error", "error", err)
	}
	logger.Infow("server stopped")
}
