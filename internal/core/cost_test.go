package core

import "testing"

func TestCivilLabour(t *testing.T) {
	rate := &TeamRate{MasonFull: Money{Cents: 50000}, HelperFull: Money{Cents: 30000}}

	tests := []struct {
		name           string
		mf, hf, mh, hh int
		want           int64
	}{
		{"full units only", 2, 1, 0, 0, 2*50000 + 30000},
		{"half units use true halving", 0, 0, 1, 1, 25000 + 15000},
		{"mixed", 1, 2, 3, 4, 50000 + 2*30000 + 3*25000 + 4*15000},
		{"zero counts", 0, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CivilLabour(tt.mf, tt.hf, tt.mh, tt.hh, rate)
			if got.Cents != tt.want {
				t.Errorf("CivilLabour() = %d, want %d", got.Cents, tt.want)
			}
		})
	}
}

func TestCivilLabourOddRateKeepsFractionalHalfPay(t *testing.T) {
	// 501.00 full rate: two half units must pay a full 501.00, not 2*250.50
	// floored per unit at some coarser precision.
	rate := &TeamRate{MasonFull: Money{Cents: 50100}, HelperFull: Money{Cents: 30000}}
	got := CivilLabour(0, 0, 2, 0, rate)
	if got.Cents != 50100 {
		t.Fatalf("two mason half units = %d, want 50100", got.Cents)
	}
}

func TestCivilLabourNoRate(t *testing.T) {
	if got := CivilLabour(2, 1, 0, 0, nil); got.Cents != 0 {
		t.Fatalf("labour without a rate should be zero, got %d", got.Cents)
	}
}

func TestDepartmentLabour(t *testing.T) {
	got := DepartmentLabour(3, 2, Money{Cents: 40000})
	if want := int64(3*40000 + 40000); got.Cents != want {
		t.Errorf("DepartmentLabour() = %d, want %d", got.Cents, want)
	}
}

func TestMaterialLineTotal(t *testing.T) {
	tests := []struct {
		name string
		qty  float64
		rate int64
		want int64
	}{
		{"whole", 10, 5000, 50000},
		{"fractional quantity", 2.5, 1000, 2500},
		{"rounds to cent", 0.333, 100, 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaterialLineTotal(tt.qty, Money{Cents: tt.rate})
			if got.Cents != tt.want {
				t.Errorf("MaterialLineTotal(%v, %d) = %d, want %d", tt.qty, tt.rate, got.Cents, tt.want)
			}
		})
	}
}

func TestNetTotal(t *testing.T) {
	got := NetTotal(Money{Cents: 130000}, Money{Cents: 20000})
	if got.Cents != 110000 {
		t.Errorf("NetTotal() = %d, want 110000", got.Cents)
	}
	// Advances larger than gross go negative rather than clamping; the
	// ledger reports what is owed back.
	got = NetTotal(Money{Cents: 1000}, Money{Cents: 2500})
	if got.Cents != -1500 {
		t.Errorf("NetTotal() = %d, want -1500", got.Cents)
	}
}

func TestHalfRateFloorsAtCent(t *testing.T) {
	r := TeamRate{MasonFull: Money{Cents: 101}, HelperFull: Money{Cents: 100}}
	if r.MasonHalf().Cents != 50 {
		t.Errorf("MasonHalf() = %d, want 50", r.MasonHalf().Cents)
	}
	if r.HelperHalf().Cents != 50 {
		t.Errorf("HelperHalf() = %d, want 50", r.HelperHalf().Cents)
	}
	dr := DefaultRate{FullDay: Money{Cents: 33300}}
	if dr.HalfDay().Cents != 16650 {
		t.Errorf("HalfDay() = %d, want 16650", dr.HalfDay().Cents)
	}
}
