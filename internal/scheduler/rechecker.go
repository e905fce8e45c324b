package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/ncprobe/internal/domain"
	"github.com/hamed0406/ncprobe/internal/probe"
	"github.com/hamed0406/ncprobe/internal/repo"
)

type Rechecker struct {
	Logger      *zap.Logger
	Targets     repo.TargetStore
	Results     repo.ResultStore
	Runner      probe.Runner
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int

	// Proxy applies to targets that set no routing of their own.
	Proxy domain.ProxyDefaults
}

func NewRechecker(
	logger *zap.Logger,
	ts repo.TargetStore,
	rs repo.ResultStore,
	runner probe.Runner,
	interval time.Duration,
	timeout time.Duration,
	concurrency int,
) *Rechecker {
	if concurrency < 1 {
		concurrency = 1
	}
	if interval < 0 {
		interval = 0
	}
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}
	return &Rechecker{
		Logger:      logger,
		Targets:     ts,
		Results:     rs,
		Runner:      runner,
		Interval:    interval,
		Timeout:     timeout,
		Concurrency: concurrency,
	}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
func (r *Rechecker) Run(ctx context.Context) {
	if r.Interval == 0 {
		r.Logger.Info("rechecker_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("rechecker_stopped")
			return
		case <-t.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Rechecker) runOnce(ctx context.Context) {
	ts, err := r.Targets.List(ctx)
	if err != nil {
		r.Logger.Warn("rechecker_list_error", zap.Error(err))
		return
	}
	if len(ts) == 0 {
		return
	}

	sem := make(chan struct{}, r.Concurrency)
	var wg sync.WaitGroup

	for _, tgt := range ts {
		t := tgt
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			r.checkOne(ctx, t)
		}()
	}

	wg.Wait()
}

func (r *Rechecker) checkOne(ctx context.Context, t *domain.Target) {
	req := t.Request(r.Timeout, r.Proxy)
	req.Logger = probe.NopLogger
	out := r.Runner.Run(ctx, req)

	cr := domain.NewCheckResult(t.ID, out, time.Now().UTC())
	if err := r.Results.Append(ctx, cr); err != nil {
		r.Logger.Warn("rechecker_append_error",
			zap.String("target_id", string(t.ID)),
			zap.String("destination", t.Destination),
			zap.Error(err),
		)
		return
	}
	r.Logger.Debug("rechecker_checked",
		zap.String("target_id", string(t.ID)),
		zap.String("destination", t.Destination),
		zap.String("outcome", out.Kind.String()),
		zap.Bool("up", cr.Up),
		zap.Bool("via_proxy", out.ViaProxy),
		zap.Int("status", out.Status),
		zap.Float64("latency_ms", cr.LatencyMS),
		zap.String("reason", out.Reason),
	)
}
