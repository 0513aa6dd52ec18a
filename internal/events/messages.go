package events

import (
	"encoding/json"
	"time"
)

// ImportCompletedMessage announces the outcome of an ingestion run so
// downstream consumers can refresh dashboards or kick off notifications.
type ImportCompletedMessage struct {
	CycleID   string    `json:"cycle_id"`
	Source    string    `json:"source"`
	Added     int       `json:"added"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

// CycleFinalizedMessage announces that a billing cycle was closed and its
// bill is now stable.
type CycleFinalizedMessage struct {
	CycleID   string    `json:"cycle_id"`
	MonthKey  string    `json:"month_key"`
	Total     string    `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

func NewImportCompletedMessage(cycleID, source string, added, skipped, errs int) *ImportCompletedMessage {
	return &ImportCompletedMessage{
		CycleID:   cycleID,
		Source:    source,
		Added:     added,
		Skipped:   skipped,
		Errors:    errs,
		Timestamp: time.Now(),
	}
}

func NewCycleFinalizedMessage(cycleID, monthKey, total string) *CycleFinalizedMessage {
	return &CycleFinalizedMessage{
		CycleID:   cycleID,
		MonthKey:  monthKey,
		Total:     total,
		Timestamp: time.Now(),
	}
}

func (m *ImportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportCompletedMessageFromJSON(data []byte) (*ImportCompletedMessage, error) {
	var msg ImportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *CycleFinalizedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CycleFinalizedMessageFromJSON(data []byte) (*CycleFinalizedMessage, error) {
	var msg CycleFinalizedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
