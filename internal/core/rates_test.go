package core

import "testing"

func TestEffectiveTeamRate(t *testing.T) {
	history := []TeamRate{
		{ID: 1, TeamID: 1, MasonFull: Money{Cents: 50000}, HelperFull: Money{Cents: 30000}, FromDate: NewDate(2024, 1, 1), Locked: false},
		{ID: 2, TeamID: 1, MasonFull: Money{Cents: 60000}, HelperFull: Money{Cents: 35000}, FromDate: NewDate(2024, 2, 1), Locked: true},
	}

	tests := []struct {
		name   string
		asOf   Date
		wantID int64
	}{
		{"before any locked rate applies", NewDate(2024, 1, 15), 1},
		{"locked rate effective", NewDate(2024, 3, 1), 2},
		{"on locked from_date", NewDate(2024, 2, 1), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveTeamRate(history, tt.asOf)
			if got == nil {
				t.Fatalf("expected a rate, got nil")
			}
			if got.ID != tt.wantID {
				t.Errorf("EffectiveTeamRate() = rate %d, want %d", got.ID, tt.wantID)
			}
		})
	}
}

func TestEffectiveTeamRateLockedPinsOverNewerUnlocked(t *testing.T) {
	history := []TeamRate{
		{ID: 1, FromDate: NewDate(2024, 2, 1), Locked: true},
		{ID: 2, FromDate: NewDate(2024, 5, 1), Locked: false},
	}
	got := EffectiveTeamRate(history, NewDate(2024, 6, 1))
	if got == nil || got.ID != 1 {
		t.Fatalf("locked rate should win over newer unlocked rate, got %+v", got)
	}
}

func TestEffectiveTeamRateNewestLockedWins(t *testing.T) {
	history := []TeamRate{
		{ID: 1, FromDate: NewDate(2024, 1, 1), Locked: true},
		{ID: 2, FromDate: NewDate(2024, 3, 1), Locked: true},
	}
	got := EffectiveTeamRate(history, NewDate(2024, 4, 1))
	if got == nil || got.ID != 2 {
		t.Fatalf("newest qualifying locked rate should win, got %+v", got)
	}
}

func TestEffectiveTeamRateNone(t *testing.T) {
	history := []TeamRate{
		{ID: 1, FromDate: NewDate(2024, 2, 1), Locked: true},
	}
	if got := EffectiveTeamRate(history, NewDate(2024, 1, 1)); got != nil {
		t.Fatalf("expected nil before first from_date, got %+v", got)
	}
	if got := EffectiveTeamRate(nil, NewDate(2024, 1, 1)); got != nil {
		t.Fatalf("expected nil for empty history, got %+v", got)
	}
}
