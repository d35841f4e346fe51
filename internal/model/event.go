package model

import "time"

const (
	DeliveriesTopic      = "crm.deliveries"
	PipelineChangedTopic = "crm.pipeline"
)

// DeliveryEvent is the payload relayed to Kafka for every terminal delivery
// outcome (sent or failed) of a scheduled message.
type DeliveryEvent struct {
	ScheduleID string    `json:"schedule_id"`
	ContactID  int64     `json:"contact_id"`
	Channel    Channel   `json:"channel"`
	Outcome    string    `json:"outcome"` // sent|failed
	Reason     string    `json:"reason,omitempty"`
	Attempt    int       `json:"attempt"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PipelineChangedEvent is relayed whenever a contact's pipeline fields or
// rating are rewritten.
type PipelineChangedEvent struct {
	ContactID  int64     `json:"contact_id"`
	Pipeline   Pipeline  `json:"pipeline"`
	OccurredAt time.Time `json:"occurred_at"`
}
