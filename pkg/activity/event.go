package activity

import (
	"strings"
	"time"
)

// Event describes a profile operation fanned out to hooks. IDs are strings so
// call sites are not tied to a UUID type.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	ObjectType string
	ObjectID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Normalize returns a trimmed copy of e with its own metadata map and a
// timestamp.
func (e Event) Normalize() Event {
	out := Event{
		Verb:       strings.TrimSpace(e.Verb),
		ActorID:    strings.TrimSpace(e.ActorID),
		UserID:     strings.TrimSpace(e.UserID),
		TenantID:   strings.TrimSpace(e.TenantID),
		ObjectType: strings.TrimSpace(e.ObjectType),
		ObjectID:   strings.TrimSpace(e.ObjectID),
		Channel:    strings.TrimSpace(e.Channel),
		Metadata:   cloneMap(e.Metadata),
		OccurredAt: e.OccurredAt,
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

// Complete reports whether e names a verb and an object. Incomplete events
// are never delivered.
func (e Event) Complete() bool {
	return strings.TrimSpace(e.Verb) != "" &&
		strings.TrimSpace(e.ObjectType) != "" &&
		strings.TrimSpace(e.ObjectID) != ""
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
