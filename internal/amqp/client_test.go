package amqp

import (
	"testing"

	"sitebook/internal/core"
)

func TestDayEventMessageRoundTrip(t *testing.T) {
	msg := NewDayEventMessage(KindDaySaved, 42, core.NewDate(2024, 1, 15))
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	decoded, err := DayEventMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if decoded.Kind != KindDaySaved {
		t.Errorf("Kind = %s", decoded.Kind)
	}
	if decoded.SiteID != 42 {
		t.Errorf("SiteID = %d", decoded.SiteID)
	}
	if !decoded.Date.Equal(core.NewDate(2024, 1, 15)) {
		t.Errorf("Date = %s", decoded.Date)
	}
}

func TestDayEventMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := DayEventMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error")
	}
}
