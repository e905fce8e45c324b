package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/ncprobe/internal/notify"
	"github.com/hamed0406/ncprobe/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

type Alerter struct {
	logger   *zap.Logger
	results  repo.ResultStore
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig
}

func NewAlerter(
	logger *zap.Logger,
	results repo.ResultStore,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	cfg AlerterConfig,
) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Alerter{
		logger:   logger,
		results:  results,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	a.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			a.scan(ctx)
		}
	}
}

func (a *Alerter) scan(ctx context.Context) {
	if err := a.scanOnce(ctx); err != nil {
		a.logger.Warn("alerter_scan_error", zap.Error(err))
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	rows, err := a.results.Latest(ctx)
	if err != nil {
		return err
	}

	now := time.Now()

	for _, r := range rows {
		rec, err := a.alertDB.Get(ctx, r.TargetID)
		if err != nil {
			a.logger.Warn("alerter_get_error", zap.String("target_id", r.TargetID), zap.Error(err))
			continue
		}

		stateChanged := rec == nil || rec.LastState != r.Up

		// Cooldown only matters for DOWN alerts (suppresses flapping).
		cooled := true
		if rec != nil && rec.LastSentAt != nil {
			cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
		}

		downAlert := stateChanged && !r.Up && cooled
		recoveryAlert := stateChanged && r.Up && rec != nil && a.cfg.AlertOnRecovery

		if downAlert || recoveryAlert {
			title, text := alertMessage(r)
			if err := a.notifier.Send(ctx, title, text); err != nil {
				a.logger.Warn("alert_send_error", zap.String("target_id", r.TargetID), zap.Error(err))
			} else {
				a.logger.Info("alert_sent", zap.String("target_id", r.TargetID), zap.Bool("up", r.Up))
			}
			_ = a.alertDB.Set(ctx, r.TargetID, r.Up, now)
			continue
		}

		// A DOWN held back by the cooldown stays unrecorded so it fires once
		// the cooldown expires.
		if stateChanged && !r.Up && !cooled {
			continue
		}
		if stateChanged {
			var prev time.Time
			if rec != nil && rec.LastSentAt != nil {
				prev = *rec.LastSentAt
			}
			_ = a.alertDB.Set(ctx, r.TargetID, r.Up, prev)
		}
	}

	return nil
}

func alertMessage(r repo.LatestRow) (string, string) {
	title := "🔴 Target UNREACHABLE"
	if r.Up {
		title = "🟢 Target REACHABLE again"
	}

	httpTxt := "n/a"
	if r.HTTPStatus != nil {
		httpTxt = fmt.Sprintf("%d", *r.HTTPStatus)
	}
	latencyTxt := "n/a"
	if r.LatencyMS != nil {
		latencyTxt = fmt.Sprintf("%.0f ms", *r.LatencyMS)
	}
	route := "direct"
	if r.ViaProxy {
		route = "proxy"
	}

	text := fmt.Sprintf(
		"Destination: %s\nOutcome: %s\nRoute: %s\nProxy HTTP: %s\nLatency: %s\nDetail: %s\nChecked: %s",
		r.Destination, r.Outcome, route, httpTxt, latencyTxt, r.Reason, r.CheckedAt.Format(time.RFC3339),
	)
	return title, text
}
