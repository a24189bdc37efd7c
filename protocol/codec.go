// Package protocol implements the wire format spoken between the HTTP
// ingress and the TCP relay server: exactly one JSON-encoded submission
// per connection, no length prefix, no acknowledgment. The sender closes
// its end once the payload is written; the reader owns reassembly of
// payloads split across reads.
package protocol

import (
	"encoding/json"
	"fmt"

	"msgboard/domain"
	"msgboard/errors"
)

// Encode serializes a submission for a one-shot relay connection.
func Encode(sub domain.Submission) ([]byte, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encoding submission: %w", err)
	}
	return payload, nil
}

// Decode parses a full received buffer as a single submission.
// Both fields must be present in the payload; empty values are fine,
// absent keys are not. Unknown keys are ignored.
func Decode(payload []byte) (domain.Submission, error) {
	if len(payload) == 0 {
		return domain.Submission{}, errors.ErrEmptyPayload
	}

	// Pointers distinguish an absent key from an empty value.
	var raw struct {
		Username *string `json:"username"`
		Message  *string `json:"message"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.Submission{}, fmt.Errorf("decoding submission: %w", err)
	}
	if raw.Username == nil {
		return domain.Submission{}, fmt.Errorf("%w: username", errors.ErrMissingField)
	}
	if raw.Message == nil {
		return domain.Submission{}, fmt.Errorf("%w: message", errors.ErrMissingField)
	}

	return domain.Submission{Username: *raw.Username, Message: *raw.Message}, nil
}
