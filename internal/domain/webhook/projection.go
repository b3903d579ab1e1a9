package webhook

import "encoding/json"

// Projection is the event a subscriber block emits for one payload.
type Projection struct {
	Event        string          `json:"event"`
	WebhookID    string          `json:"webhookId"`
	TaskID       string          `json:"taskId,omitempty"`
	ListID       string          `json:"listId,omitempty"`
	FolderID     string          `json:"folderId,omitempty"`
	SpaceID      string          `json:"spaceId,omitempty"`
	GoalID       string          `json:"goalId,omitempty"`
	KeyResultID  string          `json:"keyResultId,omitempty"`
	HistoryItems json.RawMessage `json:"historyItems,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Project builds the emission of a block declared for expected. It returns
// false when the payload is for a different event, in which case the block
// stays silent.
func Project(expected EventType, p *Payload) (Projection, bool) {
	if p == nil || p.Event != expected {
		return Projection{}, false
	}

	out := Projection{Event: p.Event, WebhookID: p.WebhookID}
	switch ResourceOf(expected) {
	case ResourceTask:
		out.TaskID = p.TaskID
		out.HistoryItems = p.HistoryItems
		out.Data = p.Data
	case ResourceList:
		out.ListID = p.ListID
		out.HistoryItems = p.HistoryItems
	case ResourceFolder:
		out.FolderID = p.FolderID
	case ResourceSpace:
		out.SpaceID = p.SpaceID
	case ResourceGoal:
		out.GoalID = p.GoalID
	case ResourceKeyResult:
		out.GoalID = p.GoalID
		out.KeyResultID = p.KeyResultID
	default:
		return Projection{}, false
	}
	return out, true
}
