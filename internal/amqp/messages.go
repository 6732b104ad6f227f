package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/mail"
)

// LedgerEventMessage carries one ledger mutation to the audit worker.
type LedgerEventMessage struct {
	ID        string           `json:"id"`
	Event     core.LedgerEvent `json:"event"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewLedgerEventMessage(ev core.LedgerEvent) *LedgerEventMessage {
	return &LedgerEventMessage{
		ID:        uuid.NewString(),
		Event:     ev,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EmailMessage is a queued outbound email for the delivery worker.
type EmailMessage struct {
	ID        string       `json:"id"`
	Mail      mail.Message `json:"mail"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewEmailMessage(msg mail.Message) *EmailMessage {
	return &EmailMessage{
		ID:        uuid.NewString(),
		Mail:      msg,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EmailMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EmailMessageFromJSON(data []byte) (*EmailMessage, error) {
	var msg EmailMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Mail.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
