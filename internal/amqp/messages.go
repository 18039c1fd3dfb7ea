package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntriesReplacedMessage announces that the ledger was rewritten. It carries
// no entries: consumers read the current ledger from the store.
type EntriesReplacedMessage struct {
	Count      int       `json:"count"`
	ReplacedBy string    `json:"replacedBy"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewEntriesReplacedMessage(count int, replacedBy string) *EntriesReplacedMessage {
	return &EntriesReplacedMessage{
		Count:      count,
		ReplacedBy: replacedBy,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *EntriesReplacedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntriesReplacedMessageFromJSON(data []byte) (*EntriesReplacedMessage, error) {
	var msg EntriesReplacedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode entries replaced message: %w", err)
	}
	if msg.Count < 0 {
		return nil, fmt.Errorf("decode entries replaced message: negative count %d", msg.Count)
	}
	return &msg, nil
}
