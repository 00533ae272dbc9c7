package activity

import (
	"strings"
	"time"
)

// Profile event verbs.
const (
	VerbProfileComposed = "profile.composed"
	VerbProfileLoaded   = "profile.loaded"
	VerbProfileSaved    = "profile.saved"
	VerbProfileFailed   = "profile.failed"
)

// ObjectTypeProfile is the object type of every profile event.
const ObjectTypeProfile = "profile"

// ProfileEventInput describes a finished profile operation.
type ProfileEventInput struct {
	OperationID string
	ActorID     string
	UserID      string
	TenantID    string
	Profile     string
	Path        string
	Operation   string
	Properties  int
	Duration    time.Duration
	Err         error
	Channel     string
	Metadata    map[string]any
	OccurredAt  time.Time
}

// BuildProfileComposedEvent reports a composed schema.
func BuildProfileComposedEvent(input ProfileEventInput) Event {
	return buildProfileEvent(VerbProfileComposed, input)
}

// BuildProfileLoadedEvent reports a document applied to a profile.
func BuildProfileLoadedEvent(input ProfileEventInput) Event {
	return buildProfileEvent(VerbProfileLoaded, input)
}

// BuildProfileSavedEvent reports a profile written to storage.
func BuildProfileSavedEvent(input ProfileEventInput) Event {
	return buildProfileEvent(VerbProfileSaved, input)
}

// BuildProfileFailedEvent reports a failed operation; input.Operation names it.
func BuildProfileFailedEvent(input ProfileEventInput) Event {
	return buildProfileEvent(VerbProfileFailed, input)
}

func buildProfileEvent(verb string, input ProfileEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	if path := strings.TrimSpace(input.Path); path != "" {
		set("path", path)
	}
	if op := strings.TrimSpace(input.Operation); op != "" {
		set("operation", op)
	}
	if input.OperationID != "" {
		set("operation_id", input.OperationID)
	}
	if input.Properties > 0 {
		set("properties", input.Properties)
	}
	if input.Duration > 0 {
		set("duration_ms", input.Duration.Milliseconds())
	}
	if input.Err != nil {
		set("error", input.Err.Error())
	}

	objectID := strings.TrimSpace(input.Profile)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Path)
	}
	if objectID == "" {
		objectID = ObjectTypeProfile
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeProfile,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
