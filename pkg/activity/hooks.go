package activity

import (
	"context"

	"go.uber.org/multierr"
)

// Hook receives normalized profile events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks is an ordered set of hooks notified one after the other.
type Hooks []Hook

// Compact returns a copy without nil entries, or nil when nothing is left.
func (h Hooks) Compact() Hooks {
	var out Hooks
	for _, hook := range h {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}

// Notify normalizes event and delivers it to every hook. A failing hook does
// not stop delivery; all failures are combined.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 || !event.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	normalized := event.Normalize()

	var err error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		err = multierr.Append(err, hook.Notify(ctx, normalized))
	}
	return err
}
