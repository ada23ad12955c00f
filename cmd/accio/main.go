package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/accio/accio/internal/api"
	"github.com/accio/accio/internal/api/ratelimit"
	"github.com/accio/accio/internal/backend"
	"github.com/accio/accio/internal/config"
	"github.com/accio/accio/internal/database"
	"github.com/accio/accio/internal/history"
	"github.com/accio/accio/internal/logger"
	"github.com/accio/accio/internal/notify"
	"github.com/accio/accio/internal/poller"
	"github.com/accio/accio/internal/reconcile"
	"github.com/accio/accio/internal/scheduler"
	"github.com/accio/accio/internal/scheduler/tasks"
	"github.com/accio/accio/internal/session"
	"github.com/accio/accio/internal/submitter"
	"github.com/accio/accio/internal/watcher"
	"github.com/accio/accio/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	dumpConfig := flag.Bool("dump-config", false, "Print the effective configuration as YAML and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *dumpConfig {
		out, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to render config: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	log := logger.New(logger.Config{
		Level:           cfg.Logging.Level,
		Format:          cfg.Logging.Format,
		Path:            cfg.Logging.Path,
		MaxSizeMB:       cfg.Logging.MaxSizeMB,
		MaxBackups:      cfg.Logging.MaxBackups,
		MaxAgeDays:      cfg.Logging.MaxAgeDays,
		Compress:        cfg.Logging.Compress,
		EnableStreaming: true,
		BufferSize:      1000,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("backend", cfg.Backend.APIURL).
		Dur("pollInterval", cfg.Poll.Interval).
		Msg("starting accio")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(log.WithComponent("websocket"))
	go hub.Run(ctx)

	// Enable log streaming via WebSocket now that hub is available
	log.SetBroadcastHub(hub)

	client := backend.NewClient(backend.Config{
		APIURL:    cfg.Backend.APIURL,
		StaticURL: cfg.Backend.StaticURL,
		Timeout:   cfg.Backend.RequestTimeout,
	}, log.Logger)

	sink := notify.NewSink(log.Logger)
	sink.SetBroadcaster(hub)

	store := reconcile.NewStore(log.Logger)

	poll := poller.New(client, store, sink, poller.Config{
		Interval:       cfg.Poll.Interval,
		RequestTimeout: cfg.Poll.RequestTimeout,
		BackoffEnabled: cfg.Poll.BackoffEnabled,
		MaxBackoff:     cfg.Poll.MaxBackoff,
	}, log.Logger)

	sub := submitter.New(client, poll, cfg.Backend.RequestTimeout, log.Logger)

	sess := session.New(session.Deps{
		Submitter:  sub,
		Store:      store,
		Poller:     poll,
		Sink:       sink,
		StaticRoot: client.StaticURL(),
	}, log.Logger)
	sess.SetBroadcaster(hub)

	hub.SetRefreshHandler(sess.Refresh)
	hub.SetSnapshotProvider(func() interface{} { return sess.View() })

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}

	if err := tasks.RegisterCookieStatusTask(sched, client, sess, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("failed to register cookie status task")
	}

	limiter := ratelimit.NewLimiter(ratelimit.DefaultRequestsPerMinute, ratelimit.DefaultWindowDuration)
	if err := tasks.RegisterRateLimitCleanupTask(sched, limiter); err != nil {
		log.Fatal().Err(err).Msg("failed to register rate limit cleanup task")
	}

	var historyService *history.Service
	if cfg.History.Enabled {
		db, err := database.New(ctx, cfg.Database.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
		}
		defer db.Close()

		log.Info().Msg("running database migrations")
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}

		historyService = history.NewService(db.Conn(), history.RetentionSettings{
			Enabled:       true,
			RetentionDays: cfg.History.RetentionDays,
		}, log.Logger)
		store.OnCommit(historyService.RecordCommit)

		if err := tasks.RegisterHistoryCleanupTask(sched, historyService); err != nil {
			log.Fatal().Err(err).Msg("failed to register history cleanup task")
		}
	}

	var inbox *watcher.Service
	if cfg.Watcher.Enabled {
		inbox, err = watcher.NewService(watcher.ServiceConfig{
			Inbox:            cfg.Watcher.Inbox,
			SupportedDomains: cfg.Watcher.SupportedDomains,
			Watcher:          watcher.Config{DebounceDelay: cfg.Watcher.Debounce},
			RetryInterval:    cfg.Watcher.RetryInterval,
		}, sess, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create inbox watcher")
		}
	}

	server := api.NewServer(api.Deps{
		Session:   sess,
		Hub:       hub,
		History:   historyService,
		Scheduler: sched,
		Logs:      log,
		Limiter:   limiter,
	}, cfg, log.Logger)

	poll.Start()

	if err := sched.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start scheduler")
	}

	if inbox != nil {
		if err := inbox.Start(); err != nil {
			log.Warn().Err(err).Str("inbox", cfg.Watcher.Inbox).Msg("failed to start inbox watcher")
			inbox = nil
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if inbox != nil {
		if err := inbox.Stop(); err != nil {
			log.Warn().Err(err).Msg("failed to stop inbox watcher")
		}
	}
	poll.Stop()
	// The journal closes on return; let a late commit finish first.
	if err := poll.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("poll cycle still running at shutdown")
	}
	if err := sched.Stop(); err != nil {
		log.Warn().Err(err).Msg("failed to stop scheduler")
	}

	log.Info().Msg("accio stopped")
}
