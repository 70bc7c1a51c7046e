package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/catalog"
	"outreach_backend/internal/discovery"
	"outreach_backend/internal/inbox"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/outreach"
	"outreach_backend/internal/pipeline"
	"outreach_backend/internal/preview"
	"outreach_backend/internal/qualify"
	"outreach_backend/internal/replies"
	"outreach_backend/internal/scheduler"
	"outreach_backend/internal/sequencing"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	orchestrator, err := newOrchestrator(cfg, repository.New(pool), log)
	if err != nil {
		log.Error("failed to initialize pipeline", "error", err)
		panic("failed to initialize pipeline: " + err.Error())
	}

	worker, err := scheduler.NewWorker(cfg, orchestrator, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return periodic.Run(gctx) })
	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}

// newOrchestrator wires the pipeline stages. The scheduler never sends:
// approval and delivery stay with the operator.
func newOrchestrator(cfg *config.Config, store repository.Store, log *logger.Logger) (*pipeline.Orchestrator, error) {
	cat := catalog.Default()
	if path := cfg.GetCategoryCatalogPath(); path != "" {
		loaded, err := catalog.Load(path)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}

	renderer, err := preview.NewRenderer(cfg.GetPreviewDir(), cfg.GetPreviewHost(), cfg.GetFromName(), cat, nil, log)
	if err != nil {
		return nil, err
	}
	composer, err := outreach.NewComposer(cfg.GetFromName(), cfg.GetCalendarLink())
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Store:      store,
		Qualifier:  qualify.NewEngine(cat, qualify.NewHTTPChecker(cfg.GetWebsiteCheckTimeout()), log),
		Builder:    renderer,
		Drafter:    sequencing.NewController(store, composer),
		Reconciler: replies.NewEngine(store, log),
	}
	if cfg.RequirePlaces() == nil {
		deps.Discoverer = discovery.NewService(discovery.NewPlacesClient(cfg, log), store, cat, validator.New(),
			cfg.GetPhoneDefaultRegion(), cfg.GetProspectBatchSize(), log)
	} else {
		log.Warn("discovery disabled: GOOGLE_PLACES_API_KEY is not set")
	}
	if cfg.RequireIMAP() == nil {
		deps.Poller = inbox.NewIMAPPoller(cfg, log)
	} else {
		log.Warn("reply polling disabled: IMAP credentials are not set")
	}
	return pipeline.New(deps, log), nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
