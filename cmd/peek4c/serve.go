package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/peek4c/peek4c/server"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/peek4c/peek4c/worker"
	"github.com/peek4c/peek4c/worker/modules"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and the background workers",
	Long: `Run the HTTP server together with the background workers: the lazy
reply loader, the scheduled followed-thread refresh and the metrics reporter.

SIGINT or SIGTERM shuts everything down gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func buildModules(a *app, bus message.Subscriber) ([]worker.Module, error) {
	ms := []worker.Module{
		a.feed.ReplyLoader(),
		modules.NewReporter(modules.ReporterConfig{Name: "reporter"}, a.stats, bus),
	}
	if a.cfg.Feed.RefreshCron != "" {
		refresher, err := modules.NewFollowRefresher(modules.FollowRefresherConfig{
			Name:       "follow_refresher",
			Spec:       a.cfg.Feed.RefreshCron,
			RunAtStart: true,
		}, a.feed)
		if err != nil {
			return nil, err
		}
		ms = append(ms, refresher)
	}
	return ms, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := worker.NewEventBus()
	a, err := newApp(AppConfig, bus)
	if err != nil {
		return err
	}
	defer a.Close()

	ms, err := buildModules(a, bus)
	if err != nil {
		return err
	}
	engine := worker.NewEngine(ctx, ms, bus)

	router := server.NewRouter(server.Deps{
		Store:          a.store,
		Feed:           a.feed,
		Ledger:         a.ledger,
		Media:          a.media,
		Boards:         a.api,
		Hub:            a.hub,
		Statsd:         a.stats,
		RequireConsent: a.cfg.Server.RequireConsent,
		MediaDir:       a.cfg.Media.Dir,
	})
	srv := &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: router,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Run()
	}()

	serveErr := make(chan error, 1)
	go func() {
		Logger.Log.Infof("api server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		err = nil
	case err = <-serveErr:
		err = errors.Wrap(err, "api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		Logger.Log.WithError(shutdownErr).Warn("api server did not shut down cleanly")
	}
	engine.Shutdown()
	wg.Wait()
	Logger.Log.Info("api server shutdown")
	return err
}
