package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/ncprobe/internal/domain"
	"github.com/hamed0406/ncprobe/internal/probe"
	"github.com/hamed0406/ncprobe/internal/repo"
)

// --- fakes ---

type fakeTargets struct {
	t []*domain.Target
}

func (f *fakeTargets) Add(ctx context.Context, t *domain.Target) error { return nil }
func (f *fakeTargets) List(ctx context.Context) ([]*domain.Target, error) {
	return f.t, nil
}
func (f *fakeTargets) Delete(ctx context.Context, id domain.TargetID) error { return nil }

type fakeResults struct {
	mu   sync.Mutex
	n    int
	all  []*domain.CheckResult
	rows []repo.LatestRow // for alerter tests
}

func (f *fakeResults) Append(ctx context.Context, cr *domain.CheckResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	cp := *cr
	f.all = append(f.all, &cp)
	return nil
}

func (f *fakeResults) Latest(ctx context.Context) ([]repo.LatestRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, nil
}

func (f *fakeResults) snapshot() []*domain.CheckResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.CheckResult(nil), f.all...)
}

// scriptedRunner answers from a destination -> kind table and records the
// requests it saw.
type scriptedRunner struct {
	mu   sync.Mutex
	kind map[string]probe.Kind
	seen []probe.Request
}

func (s *scriptedRunner) Run(ctx context.Context, req probe.Request) probe.Outcome {
	s.mu.Lock()
	s.seen = append(s.seen, req)
	k := s.kind[req.Destination]
	s.mu.Unlock()
	return probe.Outcome{
		Kind:    k,
		Target:  probe.Destination{Host: req.Destination, Port: req.Port},
		Latency: time.Millisecond,
	}
}

func port(p int) *int { return &p }

// --- tests ---

func TestRechecker_RunOnce_AppendsOneResultPerTarget(t *testing.T) {
	tstore := &fakeTargets{t: []*domain.Target{
		{ID: "T1", Destination: "db.internal", Port: port(5432)},
		{ID: "T2", Destination: "https://example.com", ProxyMode: "env_external"},
	}}
	rstore := &fakeResults{}
	runner := &scriptedRunner{kind: map[string]probe.Kind{
		"db.internal":         probe.ConnectionRefused,
		"https://example.com": probe.Success,
	}}

	rc := NewRechecker(zap.NewNop(), tstore, rstore, runner, time.Minute, 250*time.Millisecond, 2)
	rc.runOnce(context.Background())

	got := rstore.snapshot()
	if len(got) != 2 {
		t.Fatalf("want 2 results, got %d", len(got))
	}
	byID := map[domain.TargetID]*domain.CheckResult{}
	for _, r := range got {
		byID[r.TargetID] = r
	}
	if r := byID["T1"]; r == nil || r.Up || r.Outcome != "connection_refused" {
		t.Fatalf("T1: unexpected result %+v", r)
	}
	if r := byID["T2"]; r == nil || !r.Up || r.Outcome != "success" {
		t.Fatalf("T2: unexpected result %+v", r)
	}

	for _, req := range runner.seen {
		if req.Timeout != 250*time.Millisecond {
			t.Fatalf("timeout not propagated: %v", req.Timeout)
		}
		if req.Destination == "db.internal" && req.Port != 5432 {
			t.Fatalf("port not propagated: %d", req.Port)
		}
		if req.Destination == "https://example.com" && (req.Port != probe.NoPort || req.Mode != probe.ModeEnvExternal) {
			t.Fatalf("url target request: %+v", req)
		}
	}
}

func TestRechecker_RunImmediatePass(t *testing.T) {
	tstore := &fakeTargets{t: []*domain.Target{{ID: "T1", Destination: "https://example.com"}}}
	rstore := &fakeResults{}
	runner := &scriptedRunner{kind: map[string]probe.Kind{"https://example.com": probe.Success}}

	rc := NewRechecker(zap.NewNop(), tstore, rstore, runner, time.Hour, time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rc.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(rstore.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no result from the immediate pass")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestRechecker_ZeroIntervalDisables(t *testing.T) {
	rstore := &fakeResults{}
	rc := NewRechecker(zap.NewNop(), &fakeTargets{t: []*domain.Target{{ID: "T1", Destination: "x"}}},
		rstore, &scriptedRunner{}, 0, time.Second, 1)
	rc.Run(context.Background()) // returns immediately
	if n := len(rstore.snapshot()); n != 0 {
		t.Fatalf("disabled rechecker appended %d results", n)
	}
}

func TestNewRechecker_ClampsSettings(t *testing.T) {
	rc := NewRechecker(zap.NewNop(), &fakeTargets{}, &fakeResults{}, &scriptedRunner{}, -time.Second, 0, 0)
	if rc.Concurrency != 1 || rc.Interval != 0 || rc.Timeout != probe.DefaultTimeout {
		t.Fatalf("unexpected clamped settings: %+v", rc)
	}
}

func TestRechecker_AppliesProxyDefaults(t *testing.T) {
	tstore := &fakeTargets{t: []*domain.Target{
		{ID: "T1", Destination: "https://example.com"},
		{ID: "T2", Destination: "https://edge.example", Proxy: "http://edge:8080"},
	}}
	runner := &scriptedRunner{}
	rc := NewRechecker(zap.NewNop(), tstore, &fakeResults{}, runner, time.Minute, time.Second, 1)
	rc.Proxy = domain.ProxyDefaults{Mode: "env_external"}
	rc.runOnce(context.Background())

	if len(runner.seen) != 2 {
		t.Fatalf("want 2 checks, got %d", len(runner.seen))
	}
	for _, req := range runner.seen {
		switch req.Destination {
		case "https://example.com":
			if req.Mode != probe.ModeEnvExternal || req.Proxy != "" {
				t.Fatalf("defaults not applied: %+v", req)
			}
		case "https://edge.example":
			if req.Mode != probe.ModeManual || req.Proxy != "http://edge:8080" {
				t.Fatalf("target's own proxy should win: %+v", req)
			}
		}
	}
}
