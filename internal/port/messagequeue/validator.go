package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with subject. Subjects outside the known roots pass.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch {
	case strings.HasPrefix(subject, SubjectBlocks+"."):
		var p BlockEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.BlockID == "" {
			return fmt.Errorf("schema validation failed for %s: block_id is required", subject)
		}
		return nil
	default:
		return nil
	}
}

// ValidateDelivery checks a delivery batch before it is published or consumed.
func ValidateDelivery(data []byte) (*DeliveryBatchPayload, error) {
	var p DeliveryBatchPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode delivery batch: %w", err)
	}
	if p.EventType == "" {
		return nil, errors.New("delivery batch: event_type is required")
	}
	if len(p.BlockIDs) == 0 {
		return nil, errors.New("delivery batch: block_ids is empty")
	}
	if len(p.Payload) == 0 {
		return nil, errors.New("delivery batch: payload is required")
	}
	return &p, nil
}
