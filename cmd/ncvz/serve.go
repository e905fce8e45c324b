package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/ncprobe/internal/config"
	"github.com/hamed0406/ncprobe/internal/domain"
	"github.com/hamed0406/ncprobe/internal/httpapi"
	apimw "github.com/hamed0406/ncprobe/internal/httpapi/middleware"
	"github.com/hamed0406/ncprobe/internal/logging"
	"github.com/hamed0406/ncprobe/internal/notify"
	"github.com/hamed0406/ncprobe/internal/probe"
	"github.com/hamed0406/ncprobe/internal/repo"
	"github.com/hamed0406/ncprobe/internal/repo/memory"
	"github.com/hamed0406/ncprobe/internal/repo/postgres"
	"github.com/hamed0406/ncprobe/internal/scheduler"
)

func newServeCmd(d deps) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring service: HTTP API, periodic rechecks and alerts",
		Long: `serve reads its settings from the environment (API_ADDR, DATABASE_URL,
CHECK_INTERVAL_MS, PROXY_MODE, SLACK_WEBHOOK_URL, ...). Targets and results
live in Postgres when DATABASE_URL is set, in memory otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := serve(ctx, d, cfg); err != nil {
				return &exitError{code: exitUnreachable, err: err}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides API_ADDR)")
	return cmd
}

type stores struct {
	targets repo.TargetStore
	results repo.ResultStore
	alerts  repo.AlertStore
	close   func()
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		m := memory.New()
		logger.Info("store_memory")
		return stores{targets: m, results: m, alerts: m, close: func() {}}, nil
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return stores{}, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return stores{}, err
	}
	return stores{targets: pg, results: pg, alerts: pg, close: pg.Close}, nil
}

func serve(ctx context.Context, d deps, cfg config.Config) error {
	logger, err := logging.NewLogger(cfg.LogDir, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("store_open_error", zap.Error(err))
		return err
	}
	defer st.close()

	runner := &probe.Retrier{
		Inner:    probe.NewProber(d.env, cfg.InternalDomains),
		Attempts: cfg.RetryAttempts,
		Backoff:  cfg.RetryBackoff,
	}

	notifiers := notify.Multi{notify.Log(func(title, text string) {
		logger.Warn("alert", zap.String("title", title), zap.String("text", text))
	})}
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		notifiers = append(notifiers, s)
	}

	rechecker := scheduler.NewRechecker(logger, st.targets, st.results, runner,
		cfg.CheckInterval, cfg.CheckTimeout, cfg.MaxConcurrentChecks)
	rechecker.Proxy = domain.ProxyDefaults{Mode: cfg.ProxyMode, URL: cfg.ProxyURL}
	alerter := scheduler.NewAlerter(logger, st.results, st.alerts, notifiers, scheduler.AlerterConfig{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
	})

	api := httpapi.NewServer(logger, st.targets, st.results, runner, httpapi.Defaults{
		Timeout:   cfg.CheckTimeout,
		ProxyMode: cfg.ProxyMode,
		ProxyURL:  cfg.ProxyURL,
	})
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(httpapi.RouterOptions{
			Keys:           apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
			AllowedOrigins: cfg.AllowedOrigins,
			RatePerMin:     cfg.RateLimitPerMin,
			RateBurst:      cfg.RateLimitBurst,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go rechecker.Run(ctx)
	go func() { _ = alerter.Run(ctx) }()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_listen_error", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting_down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
