package webhook

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrInvalidPayload is returned when the body is not a JSON object carrying
// both "event" and "webhook_id".
var ErrInvalidPayload = errors.New("invalid webhook payload structure")

// Payload is one parsed inbound event. Body keeps the original bytes so
// subscribers receive exactly what the remote system sent.
type Payload struct {
	Event        string
	WebhookID    string
	TaskID       string
	ListID       string
	SpaceID      string
	FolderID     string
	TeamID       string
	UserID       string
	GoalID       string
	KeyResultID  string
	Data         json.RawMessage
	HistoryItems json.RawMessage
	Body         json.RawMessage
}

// ParsePayload validates the structure of body and extracts known fields.
// Only presence of "event" and "webhook_id" is required; the event value is
// checked separately by IsSupported.
func ParsePayload(body []byte) (*Payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, ErrInvalidPayload
	}
	if _, ok := fields["event"]; !ok {
		return nil, ErrInvalidPayload
	}
	if _, ok := fields["webhook_id"]; !ok {
		return nil, ErrInvalidPayload
	}

	p := &Payload{
		Event:       scalar(fields["event"]),
		WebhookID:   scalar(fields["webhook_id"]),
		TaskID:      scalar(fields["task_id"]),
		ListID:      scalar(fields["list_id"]),
		SpaceID:     scalar(fields["space_id"]),
		FolderID:    scalar(fields["folder_id"]),
		TeamID:      scalar(fields["team_id"]),
		UserID:      scalar(fields["user_id"]),
		GoalID:      scalar(fields["goal_id"]),
		KeyResultID: scalar(fields["key_result_id"]),
		Body:        json.RawMessage(body),
	}
	if present(fields["data"]) {
		p.Data = fields["data"]
	}
	if present(fields["history_items"]) {
		p.HistoryItems = fields["history_items"]
	}
	return p, nil
}

// scalar renders a JSON string or number as a Go string. Identifiers arrive
// as either depending on the resource.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func present(raw json.RawMessage) bool {
	v := strings.TrimSpace(string(raw))
	return v != "" && v != "null" && v != "false" && v != `""` && v != "0"
}

// Delivery is what a subscriber receives for one event.
type Delivery struct {
	Headers map[string]string `json:"headers"`
	Payload json.RawMessage   `json:"payload"`
}
