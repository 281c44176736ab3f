package main

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/peek4c/peek4c/app_config"
	"github.com/peek4c/peek4c/collector"
	"github.com/peek4c/peek4c/collector/clients"
	"github.com/peek4c/peek4c/collector/file_store"
	"github.com/peek4c/peek4c/collector/media"
	"github.com/peek4c/peek4c/events"
	"github.com/peek4c/peek4c/feed"
	"github.com/peek4c/peek4c/ledger"
	"github.com/peek4c/peek4c/moderation"
	"github.com/peek4c/peek4c/store"
	"github.com/peek4c/peek4c/utils"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/peek4c/peek4c/utils/metrics"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// app holds every long lived component of a process.
type app struct {
	cfg    *app_config.AppConfig
	db     *gorm.DB
	stats  statsd.ClientInterface
	http   *clients.HttpClient
	store  *store.Store
	api    *collector.API
	feed   *feed.Engine
	hub    *events.FollowHub
	ledger *ledger.Ledger
	media  *media.Scheduler
}

// newApp opens the store and builds the components on top of it. publisher
// may be nil when nothing consumes refresh events.
func newApp(cfg *app_config.AppConfig, publisher message.Publisher) (*app, error) {
	db, err := utils.GetDBConnection(cfg.DB)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	s, err := store.New(db)
	if err != nil {
		return nil, err
	}

	stats := metrics.NewStatsdClient(cfg.Metrics.StatsdAddr)
	httpClient := clients.NewHttpClient(cfg.API.Timeout, cfg.API.UserAgent, stats)
	api := collector.NewAPI(collector.NewJSONCache(httpClient, s, stats), cfg.API.BaseURL, collector.TTLs{
		Boards:  cfg.Cache.BoardsTTL,
		Catalog: cfg.Cache.CatalogTTL,
		Thread:  cfg.Cache.ThreadTTL,
	})

	files, err := file_store.NewLocalFileStore(httpClient, cfg.Media.Dir)
	if err != nil {
		return nil, err
	}
	scheduler, err := media.NewScheduler(files, s, cfg.Media.MaxConcurrentImages, cfg.Media.MemoSize, stats)
	if err != nil {
		return nil, err
	}

	hub := events.NewFollowHub()
	engine := feed.NewEngine(s, api, moderation.NewFilter(s), collector.NewThrottle(cfg.Feed.ThreadFetchInterval), publisher, feed.Config{
		PageSize:         cfg.Feed.PageSize,
		FollowStaleAfter: cfg.Feed.FollowStaleAfter,
	})
	engine.ReplyLoader().ListenTo(hub)

	return &app{
		cfg:    cfg,
		db:     db,
		stats:  stats,
		http:   httpClient,
		store:  s,
		api:    api,
		feed:   engine,
		hub:    hub,
		ledger: ledger.New(s, hub),
		media:  scheduler,
	}, nil
}

// Close waits for a running followed-thread refresh to stop before closing
// the database under it.
func (a *app) Close() {
	a.feed.Shutdown()
	a.http.Close()
	if err := a.stats.Close(); err != nil {
		Logger.Log.WithError(err).Debug("cannot close statsd client")
	}
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if err != nil {
		Logger.Log.WithError(err).Warn("cannot close database")
	}
}
