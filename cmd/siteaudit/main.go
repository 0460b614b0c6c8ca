// Package main wires together the siteaudit service binary.
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

	"go.uber.org/zap"

	"github.com/seoscope/siteaudit/internal/analyzer"
	"github.com/seoscope/siteaudit/internal/api"
	"github.com/seoscope/siteaudit/internal/audit"
	"github.com/seoscope/siteaudit/internal/clock/system"
	"github.com/seoscope/siteaudit/internal/config"
	"github.com/seoscope/siteaudit/internal/crawl"
	collyfetcher "github.com/seoscope/siteaudit/internal/fetcher/colly"
	"github.com/seoscope/siteaudit/internal/id/uuid"
	"github.com/seoscope/siteaudit/internal/logging"
	"github.com/seoscope/siteaudit/internal/metrics"
	"github.com/seoscope/siteaudit/internal/monitor"
	memorynotifier "github.com/seoscope/siteaudit/internal/notifier/memory"
	pubsubnotifier "github.com/seoscope/siteaudit/internal/notifier/pubsub"
	memorystorage "github.com/seoscope/siteaudit/internal/storage/memory"
	"github.com/seoscope/siteaudit/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	mode := flag.String("mode", "audit", "audit runs one crawl, monitor re-checks the latest run")
	serve := flag.Bool("serve", false, "Keep the HTTP listener running after the run finishes")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	notifier, err := buildNotifier(ctx, cfg, logger.Named("notifier"))
	if err != nil {
		logger.Fatal("notifier init failed", zap.Error(err))
	}

	clk := system.New()
	ids := uuid.NewGenerator()
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   time.Duration(cfg.Crawler.TimeoutSeconds) * time.Second,
	})
	pageAnalyzer := analyzer.New(clk, logger.Named("analyzer"))
	scheduler := crawl.NewScheduler(fetcher, pageAnalyzer, clk, ids, logger.Named("crawl"))
	auditService := audit.NewService(scheduler, store, notifier, logger.Named("audit"))
	monitorService := monitor.NewService(
		store,
		fetcher,
		pageAnalyzer,
		clk,
		logger.Named("monitor"),
		cfg.Monitoring.Pages,
		cfg.MonitoringTimeout(),
	)

	apiServer := api.NewServer(store, monitorService, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	go func() {
		switch *mode {
		case "audit":
			runAudit(ctx, auditService, cfg, logger)
		case "monitor":
			runMonitor(ctx, monitorService, cfg, logger)
		default:
			logger.Error("unknown mode", zap.String("mode", *mode))
		}
		if !*serve {
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func runAudit(ctx context.Context, svc *audit.Service, cfg config.Config, logger *zap.Logger) {
	if cfg.Crawler.SeedURL == "" {
		logger.Error("crawler.seed_url must be set for audit mode")
		return
	}
	run, summary, _, err := svc.RunAudit(ctx, cfg.CrawlSettings())
	if err != nil {
		logger.Error("audit run failed", zap.Error(err))
		return
	}
	logger.Info("audit run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("site_score", summary.SiteScore),
		zap.Int("crawled_pages", summary.CrawledPages),
		zap.Int("indexable_pages", summary.IndexablePages),
	)
}

func runMonitor(ctx context.Context, svc *monitor.Service, cfg config.Config, logger *zap.Logger) {
	if cfg.Crawler.SeedURL == "" {
		logger.Error("crawler.seed_url must be set for monitor mode")
		return
	}
	report, err := svc.Check(ctx, cfg.Crawler.SeedURL)
	if err != nil {
		logger.Error("monitoring check failed", zap.Error(err))
		return
	}
	logger.Info("monitoring check finished",
		zap.String("run_id", report.RunID),
		zap.String("status", string(report.Status)),
		zap.Int("pages", len(report.Pages)),
	)
}

func buildStore(ctx context.Context, cfg config.Config) (audit.PageStore, func(), error) {
	switch cfg.Storage.Provider {
	case "postgres":
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:      cfg.Storage.DSN,
			MaxConns: cfg.Storage.MaxConns,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "memory":
		return memorystorage.NewStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func buildNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (audit.Notifier, error) {
	switch cfg.Notifier.Provider {
	case "pubsub":
		return pubsubnotifier.New(ctx, cfg.Notifier.ProjectID, cfg.Notifier.TopicID, logger)
	case "memory":
		return memorynotifier.New(), nil
	default:
		return nil, fmt.Errorf("unknown notifier provider %q", cfg.Notifier.Provider)
	}
}
