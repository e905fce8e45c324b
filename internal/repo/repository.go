package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/ncprobe/internal/domain"
)

var (
	ErrDuplicate = errors.New("target already exists")
	ErrNotFound  = errors.New("target not found")
)

// Ports (interfaces) — memory and postgres adapters implement them.
type TargetStore interface {
	// Add assigns ID/CreatedAt when empty; ErrDuplicate if the same
	// destination, port and proxy are already monitored.
	Add(ctx context.Context, t *domain.Target) error
	List(ctx context.Context) ([]*domain.Target, error)
	Delete(ctx context.Context, id domain.TargetID) error
}

type ResultStore interface {
	Append(ctx context.Context, r *domain.CheckResult) error
	// Latest returns the newest result per target.
	Latest(ctx context.Context) ([]LatestRow, error)
}

// LatestRow joins a target with its newest result.
type LatestRow struct {
	TargetID    string    `json:"target_id"`
	Destination string    `json:"destination"`
	Up          bool      `json:"up"`
	Outcome     string    `json:"outcome"`
	HTTPStatus  *int      `json:"http_status,omitempty"`
	LatencyMS   *float64  `json:"latency_ms,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ViaProxy    bool      `json:"via_proxy"`
	CheckedAt   time.Time `json:"checked_at"`
}

// SameTarget is the duplicate rule both stores apply.
func SameTarget(a, b *domain.Target) bool {
	if a.Destination != b.Destination || a.Proxy != b.Proxy || a.ProxyMode != b.ProxyMode {
		return false
	}
	if a.Port == nil || b.Port == nil {
		return a.Port == nil && b.Port == nil
	}
	return *a.Port == *b.Port
}

// NewID formats like 20060102T150405.000000000.
func NewID(now time.Time) domain.TargetID {
	return domain.TargetID(now.UTC().Format("20060102T150405.000000000"))
}
