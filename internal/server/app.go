// Package server initializes and runs the verification server: database and
// migrations, the service layer, background jobs, and the HTTP API, with
// graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/voicegate/internal/logging"
	"github.com/dmitrijs2005/voicegate/internal/server/config"
	"github.com/dmitrijs2005/voicegate/internal/server/httpapi"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/voicegate/internal/server/scheduler"
	"github.com/dmitrijs2005/voicegate/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(c *config.Config) (*App, error) {
	if c == nil {
		return nil, fmt.Errorf("config is required")
	}
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return &App{config: c, logger: logging.NewSlogLogger(slogger)}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := (&repomanager.PostgresRepositoryManager{}).RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}
	return db, nil
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")
	app.initSignalHandler(cancelFunc)

	db, err := app.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return fmt.Errorf("repository init error: %w", err)
	}

	audit := services.NewAuditTrail(db, m, app.logger)
	rules := services.NewRuleEngine(db, m, audit)
	challenges := services.NewChallengeService(db, m, rules)
	ledger := services.NewAttemptLedger(db, m)
	scorer := services.NewHTTPScorer(app.config.ScorerBaseURL, app.config.ScorerTimeout)
	audio := services.NewAudioStore(app.config)
	verification := services.NewVerificationService(db, m, rules, challenges, ledger,
		scorer, audio, audit, app.logger, app.config)
	voiceprints := services.NewVoiceprintService(db, m, audit, app.config)
	phrases := services.NewPhraseService(db, m, audit)
	policies := services.NewPolicyService(db, m, audit)
	purge := services.NewPurgeService(db, m, rules, audio, verification.Sessions(), app.logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		audit.Run(ctx)
	}()

	sched := scheduler.New(app.logger)
	if err := sched.Register("purge", app.config.PurgeSchedule, func(ctx context.Context) error {
		purge.Run(ctx)
		return nil
	}); err != nil {
		return err
	}
	if err := sched.Register("reconcile", app.config.ReconcileSchedule, func(ctx context.Context) error {
		purge.Reconcile(ctx, ledger)
		return nil
	}); err != nil {
		return err
	}
	sched.Start()

	httpServer := httpapi.NewServer(app.config.EndpointAddrHTTP, []byte(app.config.SecretKey),
		app.config.RequestsPerSecond, app.logger, db,
		verification, voiceprints, rules, phrases, policies, ledger, audit)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server error", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	sched.Stop(stopCtx)
	stopCancel()

	wg.Wait()
	app.logger.Info(context.Background(), "app stopped")
	return nil
}
