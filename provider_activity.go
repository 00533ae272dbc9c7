package aspen

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-aspen/pkg/activity"
)

// WithActivityHooks attaches activity hooks notified after profile
// operations. Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Compact()
	return func(cfg *providerConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel sets the channel stamped on profile events. The
// default is activity.DefaultChannel.
func WithActivityChannel(channel string) Option {
	return func(cfg *providerConfig) {
		cfg.activityChannel = channel
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (p *Provider) ActivityHooks() activity.Hooks {
	if p == nil {
		return nil
	}
	return p.cfg.activityHooks.Compact()
}

// record logs a finished operation and notifies the activity hooks. Hook
// failures are logged and never change the operation result.
func (p *Provider) record(ctx context.Context, event OperationEvent) {
	p.logger().LogOperation(event)
	if len(p.cfg.activityHooks) == 0 {
		return
	}
	input := activity.ProfileEventInput{
		OperationID: uuid.NewString(),
		Profile:     event.Profile,
		Path:        event.Path,
		Operation:   string(event.Op),
		Properties:  event.Properties,
		Duration:    event.Duration,
		Err:         event.Err,
		OccurredAt:  time.Now().UTC(),
	}
	var e activity.Event
	switch {
	case event.Err != nil:
		e = activity.BuildProfileFailedEvent(input)
	case event.Op == OpCompose:
		e = activity.BuildProfileComposedEvent(input)
	case event.Op == OpLoad:
		e = activity.BuildProfileLoadedEvent(input)
	default:
		e = activity.BuildProfileSavedEvent(input)
	}
	emitter := activity.NewEmitter(p.cfg.activityHooks, activity.WithChannel(p.cfg.activityChannel))
	if err := emitter.Emit(ctx, e); err != nil {
		p.logger().LogOperation(OperationEvent{
			Op:      event.Op,
			Profile: event.Profile,
			Path:    event.Path,
			Err:     err,
		})
	}
}
