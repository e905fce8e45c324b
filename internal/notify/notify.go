package notify

import (
	"context"

	"go.uber.org/multierr"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans a message out to every notifier and returns all failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// Log is a Notifier that only writes to a callback, used when no webhook
// is configured so alerts still show up in the service log.
type Log func(title, text string)

func (l Log) Send(_ context.Context, title, text string) error {
	l(title, text)
	return nil
}
