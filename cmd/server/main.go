package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"

	"github.com/tidyhost/engage/internal/alert"
	"github.com/tidyhost/engage/internal/backend"
	"github.com/tidyhost/engage/internal/capability"
	"github.com/tidyhost/engage/internal/clock"
	"github.com/tidyhost/engage/internal/config"
	"github.com/tidyhost/engage/internal/detector"
	"github.com/tidyhost/engage/internal/display"
	"github.com/tidyhost/engage/internal/events"
	"github.com/tidyhost/engage/internal/httpapi"
	"github.com/tidyhost/engage/internal/logger"
	"github.com/tidyhost/engage/internal/notification"
	"github.com/tidyhost/engage/internal/onboarding"
	"github.com/tidyhost/engage/internal/reminders"
	"github.com/tidyhost/engage/internal/store"
	"github.com/tidyhost/engage/internal/store/pg"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))
	log.Info("starting engagement server",
		slog.String("instance_id", logger.GetInstanceID()),
		slog.String("port", cfg.Port))

	gin.SetMode(cfg.GinMode)

	ctx := context.Background()
	sched := clock.NewReal()

	// State store: flat file by default, postgres when configured.
	st, cleanup, err := openStore(cfg, log)
	if err != nil {
		log.Error("failed to open state store",
			slog.String("driver", cfg.StoreDriver),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	client := backend.NewClient(cfg.BackendBaseURL, cfg.BackendAPIToken, sched, log)

	hub := display.NewHub(log)
	center := notification.NewCenter(sched, log)
	center.AddListener(func(event notification.Event) {
		hub.Broadcast(string(event.Type), event)
	})

	// Local alert channels run on-site; browser-held capabilities are
	// routed to the connected session over the display feed.
	audio := capability.NewCommandPlayer(cfg.AudioPlayCommand, cfg.AlertSoundFile, cfg.AudioEnabled, log)
	speaker := capability.NewCommandSpeaker(cfg.SpeechCommand, cfg.SpeechEnabled, log)
	session := capability.NewSessionCapabilities(hub)

	sequencer := alert.NewSequencer(center, audio, speaker, sched, cfg.AlertProfile, log)

	// Optional cross-instance fanout over NATS.
	var fanout *events.Fanout
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second))
		if err != nil {
			log.Error("failed to connect to nats",
				slog.String("url", cfg.NatsURL),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		fanout = events.NewFanout(nc, log, logger.GetInstanceID())
		defer fanout.Close()

		if err := fanout.SubscribeOrderDetected(func(order backend.Order) {
			sequencer.HandleOrder(ctx, order)
		}); err != nil {
			log.Error("failed to subscribe to order events",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	det := detector.New(client, cfg.PollInterval, func(ctx context.Context, order backend.Order) {
		sequencer.HandleOrder(ctx, order)
		if fanout != nil {
			fanout.PublishOrderDetected(order)
		}
	}, log)
	det.Start(ctx)
	defer det.Stop()

	install, err := onboarding.NewInstallMachine(ctx, st, session, log)
	if err != nil {
		log.Error("failed to load install state", slog.String("error", err.Error()))
		os.Exit(1)
	}
	install.SetOnBanner(func() {
		hub.Broadcast("install_banner", nil)
	})

	push, err := onboarding.NewPushMachine(ctx, st, sched, session, session,
		client, client, cfg.PushDefaultPublicKey, log)
	if err != nil {
		log.Error("failed to load push state", slog.String("error", err.Error()))
		os.Exit(1)
	}
	push.SetOnPrompt(func() {
		hub.Broadcast("push_prompt", nil)
	})
	defer push.Stop()

	reminderService, err := reminders.New(center, cfg.ReminderCron, cfg.ReminderTitle, cfg.ReminderBody, log)
	if err != nil {
		log.Error("invalid reminder schedule",
			slog.String("cron", cfg.ReminderCron),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	reminderService.Start()
	defer reminderService.Stop()

	handler := httpapi.NewHandler(center, det, sequencer, install, push, hub, log)
	router := httpapi.NewRouter(handler, cfg.CORSAllowedOrigins, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()
	log.Info("engagement server listening", slog.String("addr", srv.Addr))

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", slog.String("error", err.Error()))
	}
	log.Info("server exited")
}

func openStore(cfg *config.Config, log *logger.Logger) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		pgStore, err := pg.Open(cfg.DatabaseURL, pg.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Minute,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Minute,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("state store ready", slog.String("driver", "postgres"))
		return pgStore, func() { pgStore.Close() }, nil
	default:
		fileStore, err := store.NewFileStore(cfg.StateFilePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("state store ready",
			slog.String("driver", "file"),
			slog.String("path", cfg.StateFilePath))
		return fileStore, func() {}, nil
	}
}
