package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecordCreatedMessage announces a newly stored budget record. Consumers
// fetch the full record from the store by ID.
type RecordCreatedMessage struct {
	ID        int64     `json:"id"`
	Year      int       `json:"year"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordCreatedMessage(id int64, year int) *RecordCreatedMessage {
	return &RecordCreatedMessage{
		ID:        id,
		Year:      year,
		Timestamp: time.Now(),
	}
}

func (m *RecordCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordCreatedMessageFromJSON decodes a message and rejects bodies without an id.
func RecordCreatedMessageFromJSON(data []byte) (*RecordCreatedMessage, error) {
	var msg RecordCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("record created message: missing id")
	}
	return &msg, nil
}
