package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/ncprobe/internal/domain"
	"github.com/hamed0406/ncprobe/internal/repo"
)

type Store struct {
	mu      sync.RWMutex
	targets map[domain.TargetID]*domain.Target
	results []*domain.CheckResult
	alerts  map[string]repo.AlertRecord
}

func New() *Store {
	return &Store{
		targets: make(map[domain.TargetID]*domain.Target),
		results: make([]*domain.CheckResult, 0, 128),
		alerts:  make(map[string]repo.AlertRecord),
	}
}

func (m *Store) Add(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.targets {
		if repo.SameTarget(cur, t) {
			return repo.ErrDuplicate
		}
	}
	if t.ID == "" {
		t.ID = repo.NewID(time.Now())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

// List returns copies, newest first.
func (m *Store) List(ctx context.Context) ([]*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Store) Delete(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.targets, id)
	delete(m.alerts, string(id))
	kept := m.results[:0]
	for _, r := range m.results {
		if r.TargetID != id {
			kept = append(kept, r)
		}
	}
	m.results = kept
	return nil
}

func (m *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	cp := *r
	m.results = append(m.results, &cp)
	return nil
}

func (m *Store) Latest(ctx context.Context) ([]repo.LatestRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[domain.TargetID]*domain.CheckResult)
	for _, r := range m.results {
		cur := latest[r.TargetID]
		if cur == nil || !r.CheckedAt.Before(cur.CheckedAt) {
			latest[r.TargetID] = r
		}
	}

	out := make([]repo.LatestRow, 0, len(latest))
	for tid, r := range latest {
		t := m.targets[tid]
		if t == nil {
			continue
		}
		var hs *int
		if r.HTTPStatus != 0 {
			v := r.HTTPStatus
			hs = &v
		}
		lat := r.LatencyMS
		out = append(out, repo.LatestRow{
			TargetID:    string(tid),
			Destination: t.Destination,
			Up:          r.Up,
			Outcome:     r.Outcome,
			HTTPStatus:  hs,
			LatencyMS:   &lat,
			Reason:      r.Reason,
			ViaProxy:    r.ViaProxy,
			CheckedAt:   r.CheckedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out, nil
}

// ---- AlertStore ----

func (m *Store) Get(ctx context.Context, targetID string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.alerts[targetID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) Set(ctx context.Context, targetID string, lastState bool, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	m.alerts[targetID] = repo.AlertRecord{TargetID: targetID, LastState: lastState, LastSentAt: ts}
	return nil
}
