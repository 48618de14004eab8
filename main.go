package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/clubledger/internal/booking"
	"github.com/mauv0809/clubledger/internal/catalog"
	"github.com/mauv0809/clubledger/internal/challenge"
	"github.com/mauv0809/clubledger/internal/config"
	"github.com/mauv0809/clubledger/internal/database"
	"github.com/mauv0809/clubledger/internal/events"
	server "github.com/mauv0809/clubledger/internal/http"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/mauv0809/clubledger/internal/notifier"
	"github.com/mauv0809/clubledger/internal/notifier/inbox"
	"github.com/mauv0809/clubledger/internal/notifier/slack"
	"github.com/mauv0809/clubledger/internal/notifier/ws"
	"github.com/mauv0809/clubledger/internal/pubsub"
	"github.com/mauv0809/clubledger/internal/sweeper"
	"github.com/mauv0809/clubledger/internal/tournament"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Start profiling timer
	startTime := time.Now()
	log.SetFormatter(log.JSONFormatter)
	cfg := config.Load()
	db, dbTeardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken, cfg.MigrationsDir)
	dbInitDuration := time.Since(startTime)
	log.Info("Database initialization time recorded", "duration_ms", dbInitDuration.Milliseconds())
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer func() {
		log.Info("Closing database connection")
		dbTeardown()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSvc := metrics.NewService()
	metricsHandler := metrics.NewMetricsHandler()
	ledgerSvc := ledger.New(db, metricsSvc)
	courts := catalog.New(db)

	hub := ws.NewHub(metricsSvc)
	memberInbox := inbox.New(db)
	channels := notifier.Multi{memberInbox, hub}
	if cfg.Slack.Enabled() {
		channels = append(channels, slack.NewNotifier(cfg.Slack.Token, cfg.Slack.ChannelID, ledgerSvc, metricsSvc, cfg.Slack.DryRun))
	} else {
		log.Warn("SLACK_BOT_TOKEN not set, Slack notifications disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	// With a GCP project, events take a round trip through Pub/Sub and come
	// back on /pubsub/push; otherwise they are delivered in process.
	var publisher events.Publisher
	var pubsubClient pubsub.PubSubClient
	if cfg.ProjectID != "" {
		pubsubClient, err = pubsub.New(ctx, cfg.ProjectID)
		if err != nil {
			log.Fatalf("Failed to initialize pubsub: %s", err)
		}
		defer pubsubClient.Close()
		publisher = events.NewPubSubPublisher(pubsubClient, pubsub.TopicNotifications)
	} else {
		dispatcher := events.NewDispatcher(channels, cfg.EventBuffer)
		g.Go(func() error { return dispatcher.Run(gctx) })
		publisher = dispatcher
	}

	bookings := booking.New(db, ledgerSvc, courts, publisher, metricsSvc, booking.WithHoldWindow(cfg.Booking.HoldWindow))
	challenges := challenge.New(db, ledgerSvc, publisher, metricsSvc)
	tournaments := tournament.New(db, ledgerSvc, publisher, metricsSvc)

	sw := sweeper.New(bookings, tournaments, ledgerSvc, publisher, metricsSvc, metrics.New(db), sweeper.Config{
		HoldExpiryInterval:       cfg.Sweeper.HoldExpiry,
		TournamentStatusInterval: cfg.Sweeper.TournamentStatus,
		RemindersInterval:        cfg.Sweeper.Reminders,
		ReconcileInterval:        cfg.Sweeper.Reconcile,
		ReminderLead:             cfg.Sweeper.ReminderLead,
	})
	if err := sw.Start(gctx); err != nil {
		log.Fatalf("Failed to start sweeper: %s", err)
	}

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	s := server.NewServer(server.Services{
		Ledger:      ledgerSvc,
		Catalog:     courts,
		Bookings:    bookings,
		Challenges:  challenges,
		Tournaments: tournaments,
		Inbox:       memberInbox,
		Notifier:    channels,
		Publisher:   publisher,
		PubSub:      pubsubClient,
		Sockets:     hub,
		Sweeper:     sw,
	}, metricsSvc, metricsHandler, cfg)

	// --- Record startup time ---
	startupDuration := time.Since(startTime)
	metricsSvc.SetStartupTime(startupDuration.Seconds())
	log.Info("Startup time recorded", "duration_ms", startupDuration.Milliseconds())

	// --- Graceful shutdown setup ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("Server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown signal received")

		// Create a context with a timeout for the shutdown.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := sw.Shutdown(); err != nil {
			log.Error("Sweeper shutdown failed", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
			return err
		}
		log.Info("Server gracefully stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server error", "error", err)
	}
	log.Info("Server process shutting down")
}
