package amqp

import (
	"encoding/json"
	"time"

	"finanzas/internal/core"
)

// InvoiceReceivedMessage carries an invoice to the attribution worker.
type InvoiceReceivedMessage struct {
	Invoice   core.InvoiceRecord `json:"invoice"`
	UserID    string             `json:"userId,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func NewInvoiceReceivedMessage(inv core.InvoiceRecord, userID string) *InvoiceReceivedMessage {
	return &InvoiceReceivedMessage{
		Invoice:   inv,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *InvoiceReceivedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func InvoiceReceivedMessageFromJSON(data []byte) (*InvoiceReceivedMessage, error) {
	var msg InvoiceReceivedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// InvoiceUnmatchedMessage announces an invoice parked in the unmatched queue.
type InvoiceUnmatchedMessage struct {
	QueueID   string             `json:"queueId"`
	Invoice   core.InvoiceRecord `json:"invoice"`
	Attempts  int                `json:"attempts"`
	Timestamp time.Time          `json:"timestamp"`
}

func NewInvoiceUnmatchedMessage(item core.UnmatchedInvoice) *InvoiceUnmatchedMessage {
	return &InvoiceUnmatchedMessage{
		QueueID:   item.ID,
		Invoice:   item.Invoice,
		Attempts:  item.Attempts,
		Timestamp: time.Now(),
	}
}

func (m *InvoiceUnmatchedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func InvoiceUnmatchedMessageFromJSON(data []byte) (*InvoiceUnmatchedMessage, error) {
	var msg InvoiceUnmatchedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
