package amqp

import (
	"encoding/json"
	"strings"
	"time"
)

// DatasetRefreshMessage asks the dashboard to drop and reload a cached
// dataset. An empty File means every dataset.
type DatasetRefreshMessage struct {
	File      string    `json:"file,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDatasetRefreshMessage(file, reason string) *DatasetRefreshMessage {
	return &DatasetRefreshMessage{
		File:      strings.TrimSpace(file),
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// All reports whether the message targets every dataset.
func (m *DatasetRefreshMessage) All() bool { return m.File == "" }

func (m *DatasetRefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DatasetRefreshMessageFromJSON(data []byte) (*DatasetRefreshMessage, error) {
	var msg DatasetRefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	msg.File = strings.TrimSpace(msg.File)
	return &msg, nil
}
