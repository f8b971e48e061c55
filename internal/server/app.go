// Package server wires the taxvoice HTTP API: it opens the database, runs
// migrations, builds the services and serves until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/dbx"
	"github.com/dmitrijs2005/taxvoice/internal/logging"
	"github.com/dmitrijs2005/taxvoice/internal/server/config"
	"github.com/dmitrijs2005/taxvoice/internal/server/httpapi"
	"github.com/dmitrijs2005/taxvoice/internal/server/metrics"
	"github.com/dmitrijs2005/taxvoice/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taxvoice/internal/server/services"
	"github.com/dmitrijs2005/taxvoice/internal/server/share"
	"github.com/dmitrijs2005/taxvoice/internal/server/summarizer"
)

const ledgerPruneInterval = time.Hour

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler http.Handler
	bridge  *services.TokenBridge
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := dbx.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	var mt *metrics.Metrics
	if c.MetricsEnabled {
		mt = metrics.New("taxvoice")
	}

	var publisher services.Publisher
	if c.S3Bucket != "" {
		store, err := share.NewS3Store(ctx, share.Config{
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			LinkTTL:      c.ShareLinkTTL,
		})
		if err != nil {
			logger.Warn(ctx, "transcript sharing disabled", "error", err)
		} else {
			publisher = store
		}
	}

	var sum summarizer.Summarizer
	if c.OpenAIAPIKey != "" {
		sum = summarizer.NewOpenAISummarizer(summarizer.Config{
			APIKey:  c.OpenAIAPIKey,
			BaseURL: c.OpenAIBaseURL,
			Model:   c.OpenAIModel,
			Timeout: c.SummarizerTimeout,
		})
	} else {
		logger.Warn(ctx, "no OpenAI API key, summaries fall back to the placeholder")
	}

	us := services.NewUserService(db, rm, c)
	tb := services.NewTokenBridge(db, rm, us, c, mt)
	qs := services.NewQuotaService(db, rm, c, mt)
	cs := services.NewConversationService(db, rm, publisher, c, mt)

	h := httpapi.NewRouter(httpapi.Services{
		Users:         us,
		Tokens:        tb,
		Quota:         qs,
		Conversations: cs,
		Summarizer:    sum,
	}, httpapi.OptionsFromConfig(c), logger, mt)

	return &App{config: c, logger: logger, db: db, handler: h, bridge: tb}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.handler, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// pruneLedger drops expired single-use token records until ctx is done.
func (app *App) pruneLedger(ctx context.Context) {
	if !app.config.SingleUseLoginTokens {
		return
	}
	t := time.NewTicker(ledgerPruneInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := app.bridge.PruneLedger(ctx)
			if err != nil {
				app.logger.Warn(ctx, "prune login token ledger", "error", err)
				continue
			}
			app.logger.Debug(ctx, "pruned login token ledger", "rows", n)
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.pruneLedger(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "close db", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
