// Package usersink forwards profile activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-aspen/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts profile activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// Actor is recorded when an event carries no actor, which is the case
	// for profiles loaded by the process itself.
	Actor uuid.UUID
}

var _ activity.Hook = Hook{}

// Notify converts event into an ActivityRecord and logs it. Incomplete
// events are ignored.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || !event.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, h.record(event.Normalize()))
}

func (h Hook) record(e activity.Event) usertypes.ActivityRecord {
	actor := parseUUID(e.ActorID)
	if actor == uuid.Nil {
		actor = h.Actor
	}
	return usertypes.ActivityRecord{
		ActorID:    actor,
		UserID:     parseUUID(e.UserID),
		TenantID:   parseUUID(e.TenantID),
		Verb:       e.Verb,
		ObjectType: e.ObjectType,
		ObjectID:   e.ObjectID,
		Channel:    e.Channel,
		Data:       e.Metadata,
		OccurredAt: e.OccurredAt,
	}
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
