package amqp

import (
	"encoding/json"
	"time"

	"sitebook/internal/core"
)

// Event kinds carried on the day-events queue.
const (
	KindDaySaved  = "day_saved"
	KindDayCopied = "day_copied"
)

// DayEventMessage tells consumers that one (site, date) sheet changed.
// It carries only the key; the worker re-reads the rows from storage.
type DayEventMessage struct {
	Kind      string    `json:"kind"`
	SiteID    int64     `json:"site_id"`
	Date      core.Date `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDayEventMessage(kind string, siteID int64, date core.Date) *DayEventMessage {
	return &DayEventMessage{
		Kind:      kind,
		SiteID:    siteID,
		Date:      date,
		Timestamp: time.Now(),
	}
}

func (m *DayEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DayEventMessageFromJSON(data []byte) (*DayEventMessage, error) {
	var msg DayEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
