package models

// InboundEvent is the raw payload posted by the messaging gateway. It is
// parsed once at the webhook boundary and never mutated afterwards.
type InboundEvent struct {
	Event     string  `json:"event"`
	ID        string  `json:"id,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
	Message   Message `json:"message"`
}

type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Body      string `json:"body"`
	FromMe    bool   `json:"fromMe"`
	Direction string `json:"direction,omitempty"`
	ContactID string `json:"contactId,omitempty"`
	Number    string `json:"number,omitempty"`
}

// Recipient derives the outbound destination for a reply. Empty means the
// message carries no usable address and must not be answered.
func (m Message) Recipient() string {
	if m.ContactID != "" {
		return m.ContactID
	}
	if m.From != "" {
		return m.From
	}
	return m.Number
}

// EnrichedItem is the unit stored in the queue. Attempt counts delivery
// retries; it starts at 0 and increments each time the item is re-enqueued.
// The JSON shape is the wire format shared by all queue backends.
type EnrichedItem struct {
	Payload   InboundEvent `json:"payload"`
	Attempt   int          `json:"attempt"`
	Tenant    string       `json:"tenant"`
	EventType string       `json:"event_type"`
}

// Classification is the classifier output. Derived per message, never
// persisted.
type Classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}
