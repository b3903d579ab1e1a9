package messagequeue

import "encoding/json"

// DeliveryBatchPayload is the schema for {prefix}.{eventType} messages: one
// inbound webhook event addressed to every interested block.
type DeliveryBatchPayload struct {
	InstallationID string            `json:"installation_id"`
	EventType      string            `json:"event_type"`
	BlockIDs       []string          `json:"block_ids"`
	Headers        map[string]string `json:"headers"`
	Payload        json.RawMessage   `json:"payload"`
}

// BlockEventPayload is the schema for blocks.{id}.events messages.
type BlockEventPayload struct {
	InstallationID string          `json:"installation_id"`
	BlockID        string          `json:"block_id"`
	Event          json.RawMessage `json:"event"`
}
