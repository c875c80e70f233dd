// Package bus implements the typed publish/subscribe event bus (spec C7).
package bus

import "time"

// Kind tags an Event's payload type. The bus dispatches by kind only.
type Kind string

const (
	KindMessageIncoming  Kind = "message.incoming"
	KindMessageOutgoing  Kind = "message.outgoing"
	KindSchedulerTrigger Kind = "scheduler.trigger"
	KindWebhookReceived  Kind = "webhook.received"
)

// Event is a tagged record with a kind-specific payload. ID is a random
// UUID assigned by Publish: unique per event, but IDs carry no ordering.
type Event struct {
	Kind      Kind
	ID        string
	CreatedAt time.Time
	Payload   any
}

// Attachment describes an incoming message attachment.
type Attachment struct {
	Filename string
	URL      string
	Size     int64
}

// IncomingMessage is the payload of a KindMessageIncoming event.
type IncomingMessage struct {
	Transport       string
	Channel         string
	UserID          string
	UserDisplayName string
	Content         string
	MessageID       string
	GroupID         string
	Attachments     []Attachment
}

// Embed is an optional rich-content block attached to an outgoing message.
type Embed struct {
	Title       string
	Description string
	URL         string
}

// OutgoingMessage is the payload of a KindMessageOutgoing event.
type OutgoingMessage struct {
	Transport string
	Channel   string
	Content   string
	ReplyToID string
	Embed     *Embed
	Files     []string
}

// SchedulerTrigger is the payload of a KindSchedulerTrigger event.
type SchedulerTrigger struct {
	JobID      string
	JobName    string
	Expression string
	Action     string
}

// WebhookReceived is the payload of a KindWebhookReceived event.
type WebhookReceived struct {
	Source        string
	EventType     string
	Summary       string
	Payload       map[string]any
	TargetChannel string
}
