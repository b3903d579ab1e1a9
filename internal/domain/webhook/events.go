// Package webhook defines the inbound webhook event set, payload validation,
// signature verification and per-subscriber projections.
package webhook

import "slices"

// EventType is a remote webhook event name, for example "taskCreated".
type EventType = string

// SupportedEvents is the single list of event types the connector registers
// for and accepts. Registration and the ingestion gate both derive from it.
var SupportedEvents = []EventType{
	"taskCreated",
	"taskUpdated",
	"taskDeleted",
	"taskCommentPosted",
	"taskCommentUpdated",
	"taskTimeTrackedUpdated",
	"listCreated",
	"listUpdated",
	"listDeleted",
	"folderCreated",
	"folderUpdated",
	"folderDeleted",
	"spaceCreated",
	"spaceUpdated",
	"spaceDeleted",
	"goalCreated",
	"goalUpdated",
	"goalDeleted",
	"taskPriorityUpdated",
	"taskStatusUpdated",
	"taskAssigneeUpdated",
	"taskDueDateUpdated",
	"taskTagUpdated",
	"taskMoved",
	"taskTimeEstimateUpdated",
	"keyResultCreated",
	"keyResultUpdated",
	"keyResultDeleted",
}

var supported = func() map[EventType]struct{} {
	m := make(map[EventType]struct{}, len(SupportedEvents))
	for _, e := range SupportedEvents {
		m[e] = struct{}{}
	}
	return m
}()

// IsSupported reports whether the event type is one the connector handles.
func IsSupported(e EventType) bool {
	_, ok := supported[e]
	return ok
}

// Events returns a copy of SupportedEvents, safe to hand to a request body.
func Events() []EventType {
	return slices.Clone(SupportedEvents)
}

// Resource is the object family an event is about.
type Resource string

const (
	ResourceTask      Resource = "task"
	ResourceList      Resource = "list"
	ResourceFolder    Resource = "folder"
	ResourceSpace     Resource = "space"
	ResourceGoal      Resource = "goal"
	ResourceKeyResult Resource = "keyResult"
)

// ResourceOf returns the family of a supported event, or "" if unknown.
func ResourceOf(e EventType) Resource {
	if !IsSupported(e) {
		return ""
	}
	// keyResult must be checked before the shorter prefixes.
	for _, r := range []Resource{ResourceKeyResult, ResourceTask, ResourceList, ResourceFolder, ResourceSpace, ResourceGoal} {
		if len(e) > len(r) && e[:len(r)] == string(r) {
			return r
		}
	}
	return ""
}
