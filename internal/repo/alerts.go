package repo

import (
	"context"
	"time"
)

// AlertRecord is the last up/down state seen for a target and when we last
// notified about it (used for cooldown).
type AlertRecord struct {
	TargetID   string
	LastState  bool
	LastSentAt *time.Time
}

type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, targetID string) (*AlertRecord, error)
	// Set upserts the record. A zero sentAt is stored as NULL.
	Set(ctx context.Context, targetID string, lastState bool, sentAt time.Time) error
}
