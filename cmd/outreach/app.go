package main

import (
	"context"
	"errors"
	"time"

	"outreach_backend/internal/adapters/storage"
	"outreach_backend/internal/catalog"
	"outreach_backend/internal/dashboard"
	"outreach_backend/internal/discovery"
	"outreach_backend/internal/email"
	"outreach_backend/internal/inbox"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/outreach"
	"outreach_backend/internal/pipeline"
	"outreach_backend/internal/preview"
	"outreach_backend/internal/qualify"
	"outreach_backend/internal/replies"
	"outreach_backend/internal/sequencing"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// app holds the wiring shared by every command.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	pool    *pgxpool.Pool
	store   repository.Store
	catalog *catalog.Catalog
	val     *validator.Validator
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 3, time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		pool:    pool,
		store:   repository.New(pool),
		catalog: cat,
		val:     validator.New(),
	}, nil
}

func loadCatalog(cfg config.PipelineConfig) (*catalog.Catalog, error) {
	if path := cfg.GetCategoryCatalogPath(); path != "" {
		return catalog.Load(path)
	}
	return catalog.Default(), nil
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *app) renderer(ctx context.Context) (*preview.Renderer, error) {
	var publisher preview.Publisher
	if a.cfg.IsMinIOEnabled() {
		svc, err := storage.NewMinIOService(a.cfg)
		if err != nil {
			return nil, err
		}
		if err := withRetry(ctx, a.log, "ensure previews bucket", 3, time.Second, func() error {
			return svc.EnsureBucketExists(ctx)
		}); err != nil {
			return nil, err
		}
		publisher = svc
	}
	return preview.NewRenderer(a.cfg.GetPreviewDir(), a.cfg.GetPreviewHost(), a.cfg.GetFromName(), a.catalog, publisher, a.log)
}

func (a *app) sequencer() (*sequencing.Controller, error) {
	composer, err := outreach.NewComposer(a.cfg.GetFromName(), a.cfg.GetCalendarLink())
	if err != nil {
		return nil, err
	}
	return sequencing.NewController(a.store, composer), nil
}

// orchestrator wires every stage. Discovery and reply polling are left out
// when their credentials are missing, so those stages report a config error
// and the rest still run.
func (a *app) orchestrator(ctx context.Context) (*pipeline.Orchestrator, error) {
	renderer, err := a.renderer(ctx)
	if err != nil {
		return nil, err
	}
	seq, err := a.sequencer()
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Store:      a.store,
		Qualifier:  qualify.NewEngine(a.catalog, qualify.NewHTTPChecker(a.cfg.GetWebsiteCheckTimeout()), a.log),
		Builder:    renderer,
		Drafter:    seq,
		Reconciler: replies.NewEngine(a.store, a.log),
	}
	if a.cfg.RequirePlaces() == nil {
		places := discovery.NewPlacesClient(a.cfg, a.log)
		deps.Discoverer = discovery.NewService(places, a.store, a.catalog, a.val, a.cfg.GetPhoneDefaultRegion(), a.cfg.GetProspectBatchSize(), a.log)
	}
	if a.cfg.RequireIMAP() == nil {
		deps.Poller = inbox.NewIMAPPoller(a.cfg, a.log)
	}
	return pipeline.New(deps, a.log), nil
}

func (a *app) outreach() (*outreach.Service, error) {
	seq, err := a.sequencer()
	if err != nil {
		return nil, err
	}
	opts := outreach.Options{
		DailyLimit:   a.cfg.GetOutreachDailyLimit(),
		SendInterval: a.cfg.GetSendInterval(),
		Ready:        a.cfg.RequireSMTP,
	}
	return outreach.NewService(a.store, email.NewSMTPSender(a.cfg), seq, opts, a.log), nil
}

func (a *app) dashboard() *dashboard.Service {
	return dashboard.NewService(a.store, a.val)
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
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

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
