package cli

import (
	"context"
	"fmt"
	"time"

	"newsarchive/archive"
	"newsarchive/connector"
	"newsarchive/ocr"
	"newsarchive/pgxdb"
	"newsarchive/pipeline"
	"newsarchive/queue"
	"newsarchive/repo"
	"newsarchive/search"

	"github.com/redis/go-redis/v9"
)

// app bundles every component a subcommand might need, opened lazily
// from the resolved configuration. Subcommands call openApp and defer
// app.Close().
type app struct {
	db        *pgxdb.DB
	mainDB    *pgxdb.DB
	store     *repo.Store
	q         *queue.Queue
	idx       *search.Index
	connector *connector.Connector
	archive   *archive.Client
	cache     *archive.Cache
	events    *pipeline.EventBus
}

func openApp(ctx context.Context, withMain bool) (*app, error) {
	if cfg == nil {
		return nil, fmt.Errorf("newsarchive: configuration not loaded")
	}

	db, err := pgxdb.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open repository database: %w", err)
	}

	store := repo.New(db, cfg.RepositoryPath, log)
	q := queue.New(db, log)
	idx := search.New(db, log)

	cache, err := archive.OpenCache(cfg.RepositoryPath + "/.archive-cache.bolt")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive cache: %w", err)
	}
	archiveClient := archive.New(cfg.Downloader, cache, log)

	eventBus := pipeline.NewEventBus(newRedisClient(), log)

	a := &app{
		db:      db,
		store:   store,
		q:       q,
		idx:     idx,
		archive: archiveClient,
		cache:   cache,
		events:  eventBus,
	}

	if withMain {
		mainDB, err := pgxdb.Open(ctx, cfg.MainDatabasePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open main database: %w", err)
		}
		a.mainDB = mainDB
		a.connector = connector.New(store, mainDB, 0, log)
	}

	return a, nil
}

func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.mainDB != nil {
		a.mainDB.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func newRedisClient() *redis.Client {
	// Redis is an optional progress-event transport; its absence never
	// blocks a command from running, so a parse failure just disables
	// events rather than failing command startup.
	if cfg == nil || cfg.EventsRedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.EventsRedisURL)
	if err != nil {
		log.WithError(err).Warn("invalid events_redis_url, disabling pipeline events")
		return nil
	}
	return redis.NewClient(opts)
}

func newOCREngine() ocr.Engine {
	if cfg.OCR.Engine == "fake" {
		return &ocr.FakeEngine{}
	}
	return ocr.NewShellEngine(cfg.OCR.Engine, 10*time.Minute)
}
