// assystbot is the command-dispatch core described in spec.md: it wires
// the registry, parser, dispatcher, BadTranslator pipeline, reminder
// scheduler, healthcheck aggregator, metrics registry, logger façade,
// gateway bridge and webserver together and runs them until signaled to
// stop. The actual gateway websocket connection and the relational store's
// schema internals are external collaborators (spec.md §1 OUT OF SCOPE);
// this process exposes the Bridge for an external gateway consumer to
// drive and otherwise runs its own timers and HTTP surface standalone.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jacherr/assystbot/internal/badtranslator"
	"github.com/jacherr/assystbot/internal/cacherpc"
	"github.com/jacherr/assystbot/internal/cdn"
	"github.com/jacherr/assystbot/internal/command"
	"github.com/jacherr/assystbot/internal/commands"
	"github.com/jacherr/assystbot/internal/config"
	"github.com/jacherr/assystbot/internal/dispatch"
	"github.com/jacherr/assystbot/internal/gateway"
	"github.com/jacherr/assystbot/internal/healthcheck"
	"github.com/jacherr/assystbot/internal/logger"
	"github.com/jacherr/assystbot/internal/media"
	"github.com/jacherr/assystbot/internal/metrics"
	"github.com/jacherr/assystbot/internal/parser"
	"github.com/jacherr/assystbot/internal/platform"
	"github.com/jacherr/assystbot/internal/ratelimit"
	"github.com/jacherr/assystbot/internal/reminder"
	"github.com/jacherr/assystbot/internal/replycache"
	"github.com/jacherr/assystbot/internal/scrollback"
	"github.com/jacherr/assystbot/internal/store"
	"github.com/jacherr/assystbot/internal/translate"
	"github.com/jacherr/assystbot/internal/webserver"
	"github.com/jacherr/assystbot/internal/workerrpc"
)

func main() {
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(slogLogger)

	configPath := flag.String("config", "assystbot.toml", "path to the TOML configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("starting assystbot", "webserver_port", cfg.Webserver.Port)

	st, err := store.NewSQLite(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("failed to close store", "error", closeErr)
		}
	}()
	if err := st.Ping(context.Background()); err != nil {
		slog.Error("store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("store connected")

	platformClient := platform.NewHTTPClient(cfg.Tokens.Platform)
	translator := translate.NewHTTPService(cfg.URLs.TranslationBase, cfg.Tokens.Translation)

	cdnUploader, err := cdn.New(cdn.Config{
		Endpoint:  cfg.URLs.CDNEndpoint,
		Region:    cfg.CDN.Region,
		Bucket:    cfg.CDN.Bucket,
		AccessKey: cfg.Tokens.S3AccessKey,
		SecretKey: cfg.Tokens.S3SecretKey,
	}, slogLogger)
	if err != nil {
		slog.Error("failed to initialize cdn uploader", "error", err)
		os.Exit(1)
	}

	worker := workerrpc.New(cfg.URLs.WorkerSocket, slogLogger)
	cache := cacherpc.New(cfg.URLs.CacheSocket, slogLogger)

	fetcher := media.NewFetcher(cfg.URLs.ContentProxy)
	tenor := media.NewTenorResolver()
	stickers := media.NewConverter(fetcher, worker, slogLogger)
	scroll := scrollback.New(0)

	p := &parser.Parser{
		Content:    fetcher,
		Tenor:      tenor,
		Stickers:   stickers,
		CDN:        cdnUploader,
		Scrollback: scroll,
		Whitelist:  parser.Whitelist{"cdn.chatplatform.example": true},
	}

	// commandDeps is shared by reference with the descriptors built below: its
	// Registry and Healthcheck fields are filled in once those components
	// exist, and the closures in internal/commands read them at call time.
	commandDeps := &commands.Deps{
		Store:     st,
		Platform:  platformClient,
		Worker:    worker,
		StartedAt: time.Now(),
	}
	registry, err := command.Build(commands.Build(commandDeps))
	if err != nil {
		slog.Error("failed to build command registry", "error", err)
		os.Exit(1)
	}
	commandDeps.Registry = registry

	replies := replycache.New(slogLogger)
	rateLimits := ratelimit.NewTable()

	dispatcher := &dispatch.Dispatcher{
		Registry:   registry,
		Replies:    replies,
		RateLimits: rateLimits,
		Parser:     p,
		Store:      st,
		Platform:   platformClient,
		Config:     cfg,
		Logger:     slogLogger,
	}

	btPipeline := badtranslator.New(st, platformClient, translator, slogLogger)

	logFacade := logger.New(map[logger.Category]string{
		logger.Fatal:    cfg.Logging.FatalWebhook,
		logger.Info:     cfg.Logging.InfoWebhook,
		logger.GuildAdd: cfg.Logging.GuildAddWebhook,
		logger.Vote:     cfg.Logging.VoteWebhook,
	}, cfg.Logging.NotifyRoleID, slogLogger)

	bridge := &gateway.Bridge{
		Dispatcher:    dispatcher,
		BadTranslator: btPipeline,
		Cache:         cache,
		Replies:       replies,
		Platform:      platformClient,
		Notifier:      logFacade,
		Logger:        slogLogger,
	}
	_ = bridge // driven by the external gateway decoder (spec.md §1 OUT OF SCOPE).

	metricsRegistry := metrics.New()

	aggregator := &healthcheck.Aggregator{
		Probers: []healthcheck.Prober{
			healthcheck.Func{ServiceName: "store", ProbeFunc: st.Ping},
			healthcheck.Func{ServiceName: "worker", ProbeFunc: func(ctx context.Context) error {
				_, err := worker.Stats(ctx)
				return err
			}},
			healthcheck.Func{ServiceName: "cache", ProbeFunc: func(ctx context.Context) error {
				_, err := cache.GetTotalGuilds(ctx)
				return err
			}},
			healthcheck.Func{ServiceName: "translation", ProbeFunc: httpEchoProbe(cfg.URLs.TranslationBase)},
			healthcheck.Func{ServiceName: "content_proxy", ProbeFunc: httpEchoProbe(cfg.URLs.ContentProxy)},
		},
		Notifier: logFacade,
		Logger:   slogLogger,
		Interval: cfg.HealthcheckInterval,
	}
	commandDeps.Healthcheck = aggregator
	commandDeps.Metrics = metricsRegistry

	reminderScheduler := &reminder.Scheduler{
		Store:    st,
		Platform: platformClient,
		Logger:   slogLogger,
		Interval: cfg.ReminderScanInterval,
	}

	webServer := &webserver.Server{
		DBLSecret:   cfg.Tokens.DBLSecret,
		TopGGSecret: cfg.Tokens.TopGGSecret,
		LandingPage: cfg.URLs.LandingPage,
		Metrics:     metricsRegistry,
		Logger:      logFacade,
		AccessLog:   slogLogger,
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Webserver.Port,
		Handler:      webServer.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go worker.Run(ctx)
	go cache.Run(ctx)
	if !cfg.Disable.ReminderCheck {
		go reminderScheduler.Run(ctx)
	}
	go aggregator.Run(ctx)
	replies.StartGC(ctx)

	go func() {
		slog.Info("webserver listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webserver failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()
	slog.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("webserver forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

// httpEchoProbe builds a healthcheck.Func probe that simply confirms an
// HTTP endpoint responds, the "HTTP echo endpoints" case spec.md §4.J
// names alongside the typed probes.
func httpEchoProbe(url string) func(ctx context.Context) error {
	client := &http.Client{Timeout: 5 * time.Second}
	return func(ctx context.Context) error {
		if url == "" {
			return nil
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			return errors.New("probe received a server error status")
		}
		return nil
	}
}
