package notify

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/multierr"
)

type stubNotifier struct {
	n   int
	err error
}

func (s *stubNotifier) Send(ctx context.Context, title, text string) error {
	s.n++
	return s.err
}

func TestMulti_SendsToAllAndCollectsErrors(t *testing.T) {
	a := &stubNotifier{err: errors.New("a down")}
	b := &stubNotifier{}
	c := &stubNotifier{err: errors.New("c down")}

	err := Multi{a, nil, b, c}.Send(context.Background(), "T", "X")
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Fatalf("every notifier should be called once: %d %d %d", a.n, b.n, c.n)
	}
	if errs := multierr.Errors(err); len(errs) != 2 {
		t.Fatalf("want 2 errors, got %v", err)
	}
}

func TestMulti_NilWhenAllSucceed(t *testing.T) {
	if err := (Multi{&stubNotifier{}}).Send(context.Background(), "T", "X"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLog_CallsBack(t *testing.T) {
	var got string
	n := Log(func(title, text string) { got = title + "|" + text })
	if err := n.Send(context.Background(), "T", "X"); err != nil || got != "T|X" {
		t.Fatalf("got %q err=%v", got, err)
	}
}
