package core

import (
	"encoding/json"
	"testing"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("round trip = %s", d.String())
	}

	bads := []string{"", "2024-13-01", "29-02-2024", "yesterday"}
	for i, s := range bads {
		if _, err := ParseDate(s); err == nil {
			t.Fatalf("case %d expected error for %q", i, s)
		}
	}
}

func TestDateAddDays(t *testing.T) {
	d := NewDate(2024, 3, 1)
	if got := d.AddDays(-1); got.String() != "2024-02-29" {
		t.Fatalf("AddDays(-1) = %s", got.String())
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 1, 5))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-01-05"` {
		t.Fatalf("marshal = %s", b)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2024-01-05"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2024, 1, 5)) {
		t.Fatalf("unmarshal = %s", d.String())
	}
}

func TestCivilWorkHasInput(t *testing.T) {
	tests := []struct {
		name    string
		work    CivilWork
		advance Money
		want    bool
	}{
		{"all zero", CivilWork{}, Money{}, false},
		{"count set", CivilWork{MasonFull: 1}, Money{}, true},
		{"half count set", CivilWork{HelperHalf: 1}, Money{}, true},
		{"advance only", CivilWork{}, Money{Cents: 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.work.HasInput(tt.advance); got != tt.want {
				t.Errorf("HasInput() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := (Site{Name: " "}).Validate(); err == nil {
		t.Error("blank site name should fail")
	}
	if err := (Team{Name: "A"}).Validate(); err != nil {
		t.Errorf("expected ok, got %v", err)
	}
	bad := TeamRate{MasonFull: Money{Cents: 0}, HelperFull: Money{Cents: 100}, FromDate: NewDate(2024, 1, 1)}
	if err := bad.Validate(); err == nil {
		t.Error("zero mason rate should fail")
	}
	good := TeamRate{MasonFull: Money{Cents: 100}, HelperFull: Money{Cents: 100}, FromDate: NewDate(2024, 1, 1)}
	if err := good.Validate(); err != nil {
		t.Errorf("expected ok, got %v", err)
	}
}
