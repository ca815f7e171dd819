package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxFailed  OutboxStatus = "failed"
	OutboxSent    OutboxStatus = "sent"
)

// OutboxMessage is an event persisted in the same transaction as the state
// change it describes, then handed to the bus.
type OutboxMessage struct {
	ID            int64
	AggregateID   string
	Topic         string
	Payload       []byte
	Headers       map[string]string
	Status        OutboxStatus
	RetryCount    int
	LastError     *string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	SentAt        *time.Time
}

// NewOutboxMessage serialises event. The row is not eligible for the relay
// until notBefore, leaving the in-request announcement the first try.
func NewOutboxMessage(topic, aggregateID string, event any, notBefore time.Time) (*OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", topic, err)
	}

	return &OutboxMessage{
		AggregateID:   aggregateID,
		Topic:         topic,
		Payload:       payload,
		Headers:       map[string]string{},
		Status:        OutboxPending,
		NextAttemptAt: notBefore,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
