package main

import (
	"context"
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
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/venmo"
	"github.com/jessebugclark-dot/Jesselovesmovies/migrations"
)

const (
	maxConsecutiveFailures = 5
	backoffStep            = 30 * time.Second
)

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
	if err := cfg.ValidateListener(); err != nil {
		logger.Fatalw("listener config", "error", err)
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

	repo := postgres.NewOrderRepository(pool)
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

	svc := app.NewReconcileService(
		repo,
		mailbox,
		mailer,
		venmo.NewParser(cfg.CodePrefix),
		clock.NewSystem(),
		logger,
		cfg.PassBudget,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infow("listener started", "interval", cfg.PollInterval, "sender", cfg.VenmoSender)
	if err := run(ctx, svc, cfg.PollInterval, logger); err != nil {
		logger.Errorw("listener stopped", "error", err)
		os.Exit(1)
	}
	logger.Infow("listener stopped")
}

// run polls the inbox until the context is cancelled. Consecutive failures
// stretch the delay linearly; maxConsecutiveFailures in a row exits with the
// last error.
func run(ctx context.Context, svc *app.ReconcileService, interval time.Duration, logger *zap.SugaredLogger) error {
	failures := 0
	delay := time.Duration(0)

	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		summary, err := svc.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			logger.Errorw("reconciliation pass failed",
				"error", err,
				"consecutive_failures", failures,
			)
			if failures >= maxConsecutiveFailures {
				return err
			}
			delay = interval + time.Duration(failures)*backoffStep
			continue
		}

		failures = 0
		delay = interval
		if summary.Settled > 0 || summary.Errors > 0 || summary.Expired > 0 {
			logger.Infow("reconciliation pass complete",
				"settled", summary.Settled,
				"errors", summary.Errors,
				"expired", summary.Expired,
			)
		}
	}
}
