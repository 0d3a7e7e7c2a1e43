package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind selects the remote operation a queued mutation replays.
type Kind string

const (
	KindCreatePost         Kind = "create_post"
	KindCreateComment      Kind = "create_comment"
	KindSubmitReaction     Kind = "submit_reaction"
	KindReportAvailability Kind = "report_availability"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindCreatePost, KindCreateComment, KindSubmitReaction, KindReportAvailability:
		return true
	}
	return false
}

// Payload is the kind-specific body of a mutation. Each kind has exactly one
// concrete payload type.
type Payload interface {
	Kind() Kind
	Validate() error
}

// QueuedMutation is one pending remote write. Records are appended and
// removed, never edited.
type QueuedMutation struct {
	ID         string
	Kind       Kind
	Payload    Payload
	EnqueuedAt time.Time

	// raw holds the persisted payload bytes when they could not be decoded
	// into Payload, so the record survives a re-persist unchanged.
	raw json.RawMessage
}

type wireMutation struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// Validate checks that the record can be sent at all. A non-nil result is
// always permanent: resending the same record cannot fix it.
func (m QueuedMutation) Validate() error {
	if !m.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	if m.Payload == nil {
		return fmt.Errorf("%w: %s payload is missing or undecodable", ErrInvalidPayload, m.Kind)
	}
	if m.Payload.Kind() != m.Kind {
		return fmt.Errorf("%w: %s payload attached to %s record", ErrInvalidPayload, m.Payload.Kind(), m.Kind)
	}
	return m.Payload.Validate()
}

func (m QueuedMutation) MarshalJSON() ([]byte, error) {
	payload := m.raw
	if m.Payload != nil {
		b, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", m.Kind, err)
		}
		payload = b
	}
	if payload == nil {
		payload = json.RawMessage("null")
	}
	return json.Marshal(wireMutation{
		ID:         m.ID,
		Kind:       m.Kind,
		Payload:    payload,
		EnqueuedAt: m.EnqueuedAt,
	})
}

// UnmarshalJSON never fails on a bad payload: the record is kept with a nil
// Payload so the drain path can drop it as permanent instead of the whole
// queue failing to load.
func (m *QueuedMutation) UnmarshalJSON(data []byte) error {
	var w wireMutation
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.ID = w.ID
	m.Kind = w.Kind
	m.EnqueuedAt = w.EnqueuedAt
	m.Payload = nil
	m.raw = nil

	p, err := DecodePayload(w.Kind, w.Payload)
	if err != nil {
		m.raw = w.Payload
		return nil
	}
	m.Payload = p
	return nil
}

// DecodePayload parses raw JSON into the concrete payload type for kind.
// It does not validate field values; call Validate for that.
func DecodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	var (
		p   Payload
		err error
	)
	switch kind {
	case KindCreatePost:
		var v CreatePost
		err = json.Unmarshal(raw, &v)
		p = v
	case KindCreateComment:
		var v CreateComment
		err = json.Unmarshal(raw, &v)
		p = v
	case KindSubmitReaction:
		var v SubmitReaction
		err = json.Unmarshal(raw, &v)
		p = v
	case KindReportAvailability:
		var v ReportAvailability
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidPayload, kind, err)
	}
	return p, nil
}

// SubmitRequest is the inbound body for a mutation from an interactive feature.
type SubmitRequest struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitResult tells the caller whether the mutation reached the remote API
// or was parked in the offline queue.
type SubmitResult struct {
	Sent     bool            `json:"sent"`
	Queued   bool            `json:"queued"`
	Mutation *QueuedMutation `json:"mutation,omitempty"`
}
