package probe

import (
	"context"
	"fmt"
	"time"
)

// Retrier re-runs transient failures (timeouts, refusals, unreachable
// networks). Invalid input, DNS and proxy answers are returned as-is.
type Retrier struct {
	Inner    Runner
	Attempts int
	Backoff  time.Duration
}

func (r *Retrier) Run(ctx context.Context, req Request) Outcome {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last Outcome
	for i := 0; i < attempts; i++ {
		last = r.Inner.Run(ctx, req)
		if last.OK() || !last.Kind.Transient() {
			return last
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			last.Reason = annotate(last.Reason, i+1)
			return last
		case <-time.After(r.Backoff):
		}
	}
	if attempts > 1 {
		last.Reason = annotate(last.Reason, attempts)
	}
	return last
}

func annotate(reason string, n int) string {
	return fmt.Sprintf("%s (after %d attempts)", reason, n)
}
