package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entities named in a LedgerChangedMessage
const (
	EntityPayments = "payments"
	EntityStudents = "students"
)

// LedgerChangedMessage tells the worker that payments or students changed
// and the dashboard has to be recomputed. It carries no records; the worker
// re-reads the backend.
type LedgerChangedMessage struct {
	BatchID   string    `json:"batch_id"`
	Entity    string    `json:"entity"`
	Inserted  int       `json:"inserted"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(entity string, inserted int) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		BatchID:   uuid.NewString(),
		Entity:    entity,
		Inserted:  inserted,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
