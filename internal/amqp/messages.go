package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"fintrack/internal/ports"
)

// TransactionChangedMessage tells subscribers that a user's transaction set
// changed. It carries ids only; consumers re-read the snapshot from the store.
type TransactionChangedMessage struct {
	UserID    string    `json:"user_id"`
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

var errEmptyUser = errors.New("message has no user_id")

// NewTransactionChangedMessage builds a message from a store change.
func NewTransactionChangedMessage(c ports.Change) *TransactionChangedMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &TransactionChangedMessage{
		UserID:    c.UserID,
		ID:        c.ID,
		Op:        string(c.Op),
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Change converts the message back into a store change.
func (m *TransactionChangedMessage) Change() ports.Change {
	return ports.Change{
		UserID: m.UserID,
		ID:     m.ID,
		Op:     ports.ChangeOp(m.Op),
		At:     m.Timestamp,
	}
}

// TransactionChangedMessageFromJSON decodes and checks a message body.
func TransactionChangedMessageFromJSON(data []byte) (*TransactionChangedMessage, error) {
	var msg TransactionChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errEmptyUser
	}
	return &msg, nil
}
