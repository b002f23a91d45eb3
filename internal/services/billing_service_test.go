package services

import (
	"context"
	"testing"

	"sitebook/internal/core"
)

type billingFixture struct {
	*fixture
	billing *BillingService
	siteB   core.Site
}

func newBillingFixture(t *testing.T) (context.Context, *billingFixture) {
	t.Helper()
	ctx, f := newFixture(t)
	bf := &billingFixture{fixture: f, billing: NewBillingService(f.store)}
	var err error
	if bf.siteB, err = f.store.CreateSite(ctx, "Tower B"); err != nil {
		t.Fatalf("create site: %v", err)
	}
	return ctx, bf
}

func january() Range {
	return Range{From: core.NewDate(2024, 1, 1), To: core.NewDate(2024, 1, 31)}
}

func TestAggregateGrandTotal(t *testing.T) {
	ctx, f := newBillingFixture(t)
	d := core.NewDate(2024, 1, 15)

	if err := f.masters.SetDefaultRate(ctx, f.dept.ID, core.Money{Cents: 80000}, false); err != nil {
		t.Fatalf("SetDefaultRate: %v", err)
	}
	err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Civil:       []CivilInput{{TeamID: f.team.ID, MasonFull: 2, HelperFull: 1, Advance: money(20000)}},
		Departments: []DepartmentInput{{DepartmentID: f.dept.ID, FullDays: 1}},
		Materials: []core.MaterialEntry{
			{Agent: "Acme", Name: "Cement", Quantity: 10, Rate: core.Money{Cents: 40000}, Advance: core.Money{Cents: 100000}},
		},
		Expenses: []core.OtherExpense{{Title: "Fuel", Amount: core.Money{Cents: 15000}}},
	})
	if err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	report, err := f.billing.Aggregate(ctx, january(), Filters{}, OrderPrintable)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(report.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(report.Rows))
	}
	// Labour 1300 + 800, material 4000, expense 150, advance 200 + 1000.
	if report.Totals.Labour.Cents != 210000 {
		t.Errorf("Labour = %d", report.Totals.Labour.Cents)
	}
	if report.Totals.Material.Cents != 400000 {
		t.Errorf("Material = %d", report.Totals.Material.Cents)
	}
	if report.Totals.Expense.Cents != 15000 {
		t.Errorf("Expense = %d", report.Totals.Expense.Cents)
	}
	if report.Totals.Advance.Cents != 120000 {
		t.Errorf("Advance = %d", report.Totals.Advance.Cents)
	}
	want := int64(210000 + 400000 + 15000 - 120000)
	if report.Totals.Grand.Cents != want {
		t.Errorf("Grand = %d, want %d", report.Totals.Grand.Cents, want)
	}
}

func TestAggregateSourceSelection(t *testing.T) {
	ctx, f := newBillingFixture(t)
	d := core.NewDate(2024, 1, 15)

	if err := f.masters.SetDefaultRate(ctx, f.dept.ID, core.Money{Cents: 80000}, false); err != nil {
		t.Fatalf("SetDefaultRate: %v", err)
	}
	err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Civil:       []CivilInput{{TeamID: f.team.ID, MasonFull: 1}},
		Departments: []DepartmentInput{{DepartmentID: f.dept.ID, FullDays: 1}},
		Materials:   []core.MaterialEntry{{Agent: "Acme", Name: "Cement", Quantity: 1, Rate: core.Money{Cents: 40000}}},
		Expenses:    []core.OtherExpense{{Title: "Fuel", Amount: core.Money{Cents: 15000}}},
	})
	if err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	tests := []struct {
		name       string
		filters    Filters
		wantRows   int
		categories map[string]bool
	}{
		{"team filter keeps civil only", Filters{TeamID: f.team.ID}, 1,
			map[string]bool{core.CategoryCivil: true}},
		{"department filter keeps department only", Filters{DepartmentID: f.dept.ID}, 1,
			map[string]bool{"Electrical": true}},
		{"material only", Filters{MaterialOnly: true}, 1,
			map[string]bool{core.CategoryMaterial: true}},
		{"no filter keeps all", Filters{}, 4, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := f.billing.Aggregate(ctx, january(), tt.filters, OrderPrintable)
			if err != nil {
				t.Fatalf("Aggregate: %v", err)
			}
			if len(report.Rows) != tt.wantRows {
				t.Fatalf("rows = %d, want %d", len(report.Rows), tt.wantRows)
			}
			for _, row := range report.Rows {
				if tt.categories != nil && !tt.categories[row.Category] {
					t.Errorf("unexpected category %s", row.Category)
				}
			}
		})
	}
}

func TestAggregateAdvanceKeyedBySite(t *testing.T) {
	ctx, f := newBillingFixture(t)
	d := core.NewDate(2024, 1, 15)

	// Same team, same date, two sites; only Tower A took an advance.
	if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Civil: []CivilInput{{TeamID: f.team.ID, MasonFull: 1, Advance: money(10000)}},
	}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	if err := f.entries.SaveDay(ctx, f.siteB.ID, d, DayInput{
		Civil: []CivilInput{{TeamID: f.team.ID, MasonFull: 1}},
	}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	report, err := f.billing.Aggregate(ctx, january(), Filters{}, OrderPrintable)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	for _, row := range report.Rows {
		switch row.Site {
		case "Tower A":
			if row.Advance.Cents != 10000 {
				t.Errorf("Tower A advance = %d", row.Advance.Cents)
			}
		case "Tower B":
			if row.Advance.Cents != 0 {
				t.Errorf("Tower B advance leaked: %d", row.Advance.Cents)
			}
		}
	}
}

func TestAggregateOrdering(t *testing.T) {
	ctx, f := newBillingFixture(t)

	for _, d := range []core.Date{core.NewDate(2024, 1, 10), core.NewDate(2024, 1, 20)} {
		if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
			Civil: []CivilInput{{TeamID: f.team.ID, MasonFull: 1}},
		}); err != nil {
			t.Fatalf("SaveDay: %v", err)
		}
	}

	desc, err := f.billing.Aggregate(ctx, january(), Filters{}, OrderDateDesc)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !desc.Rows[0].Date.After(desc.Rows[1].Date.Time) {
		t.Errorf("OrderDateDesc rows out of order: %s before %s", desc.Rows[0].Date, desc.Rows[1].Date)
	}

	asc, err := f.billing.Aggregate(ctx, january(), Filters{}, OrderPrintable)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !asc.Rows[0].Date.Before(asc.Rows[1].Date.Time) {
		t.Errorf("OrderPrintable rows out of order: %s before %s", asc.Rows[0].Date, asc.Rows[1].Date)
	}
}

func TestAgentBill(t *testing.T) {
	ctx, f := newBillingFixture(t)

	// 600 gross across two sites, 100 advance, 500 payable.
	if err := f.entries.SaveDay(ctx, f.site.ID, core.NewDate(2024, 1, 10), DayInput{
		Materials: []core.MaterialEntry{
			{Agent: "Acme", Name: "Cement", Quantity: 1, Rate: core.Money{Cents: 40000}, Advance: core.Money{Cents: 10000}},
		},
	}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	if err := f.entries.SaveDay(ctx, f.siteB.ID, core.NewDate(2024, 1, 12), DayInput{
		Materials: []core.MaterialEntry{
			{Agent: "acme", Name: "Sand", Quantity: 1, Rate: core.Money{Cents: 20000}},
		},
	}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	bill, err := f.billing.AgentBill(ctx, "Acme", january())
	if err != nil {
		t.Fatalf("AgentBill: %v", err)
	}
	if len(bill.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(bill.Lines))
	}
	if bill.AdvanceTotal.Cents != 10000 {
		t.Errorf("AdvanceTotal = %d", bill.AdvanceTotal.Cents)
	}
	if bill.GrandTotal.Cents != 50000 {
		t.Errorf("GrandTotal = %d, want 50000", bill.GrandTotal.Cents)
	}
}

func TestTeamBill(t *testing.T) {
	ctx, f := newBillingFixture(t)
	d := core.NewDate(2024, 1, 15)

	if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Civil: []CivilInput{{TeamID: f.team.ID, MasonFull: 2, HelperFull: 1, Advance: money(20000)}},
	}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	bill, err := f.billing.TeamBill(ctx, f.team.ID, january())
	if err != nil {
		t.Fatalf("TeamBill: %v", err)
	}
	if bill.Dimension != "Mason Crew" {
		t.Errorf("Dimension = %s", bill.Dimension)
	}
	if len(bill.Lines) != 1 || bill.Lines[0].Total.Cents != 110000 || bill.Lines[0].Advance.Cents != 20000 {
		t.Fatalf("lines = %+v", bill.Lines)
	}
}

func TestDashboardMatchesAggregate(t *testing.T) {
	ctx, f := newBillingFixture(t)
	today := core.NewDate(2024, 1, 17) // a Wednesday

	// One entry today, one earlier in the same week, one earlier in the month.
	for _, d := range []core.Date{today, core.NewDate(2024, 1, 15), core.NewDate(2024, 1, 2)} {
		if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
			Civil: []CivilInput{{TeamID: f.team.ID, MasonFull: 1, Advance: money(5000)}},
		}); err != nil {
			t.Fatalf("SaveDay: %v", err)
		}
	}

	snaps, err := f.billing.Dashboard(ctx, today)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	var snap core.SiteSnapshot
	for _, s := range snaps {
		if s.Site.ID == f.site.ID {
			snap = s
		}
	}
	// Per day: 500 labour - 50 advance = 450 net.
	if snap.TodayTotal.Cents != 45000 {
		t.Errorf("TodayTotal = %d", snap.TodayTotal.Cents)
	}
	if snap.TodayAdvance.Cents != 5000 {
		t.Errorf("TodayAdvance = %d", snap.TodayAdvance.Cents)
	}
	// Week starts Sunday Jan 14: today + Jan 15.
	if snap.WeekTotal.Cents != 90000 {
		t.Errorf("WeekTotal = %d", snap.WeekTotal.Cents)
	}
	// Month to date: all three days.
	if snap.MonthTotal.Cents != 135000 {
		t.Errorf("MonthTotal = %d", snap.MonthTotal.Cents)
	}
}

func TestAggregateAdditiveOverDisjointRanges(t *testing.T) {
	ctx, f := newBillingFixture(t)

	if err := f.masters.SetDefaultRate(ctx, f.dept.ID, core.Money{Cents: 80000}, false); err != nil {
		t.Fatalf("SetDefaultRate: %v", err)
	}
	days := []struct {
		site core.Site
		date core.Date
		in   DayInput
	}{
		{f.site, core.NewDate(2024, 1, 5), DayInput{
			Civil: []CivilInput{{TeamID: f.team.ID, MasonFull: 2, Advance: money(20000)}},
		}},
		{f.siteB, core.NewDate(2024, 1, 15), DayInput{
			Departments: []DepartmentInput{{DepartmentID: f.dept.ID, FullDays: 1}},
			Materials:   []core.MaterialEntry{{Agent: "Acme", Name: "Cement", Quantity: 5, Rate: core.Money{Cents: 40000}}},
		}},
		{f.site, core.NewDate(2024, 1, 25), DayInput{
			Expenses: []core.OtherExpense{{Title: "Fuel", Amount: core.Money{Cents: 15000}}},
		}},
	}
	for _, d := range days {
		if err := f.entries.SaveDay(ctx, d.site.ID, d.date, d.in); err != nil {
			t.Fatalf("SaveDay %s: %v", d.date, err)
		}
	}

	whole, err := f.billing.Aggregate(ctx, january(), Filters{}, OrderPrintable)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	first, err := f.billing.Aggregate(ctx, Range{
		From: core.NewDate(2024, 1, 1), To: core.NewDate(2024, 1, 15),
	}, Filters{}, OrderPrintable)
	if err != nil {
		t.Fatalf("Aggregate first half: %v", err)
	}
	second, err := f.billing.Aggregate(ctx, Range{
		From: core.NewDate(2024, 1, 16), To: core.NewDate(2024, 1, 31),
	}, Filters{}, OrderPrintable)
	if err != nil {
		t.Fatalf("Aggregate second half: %v", err)
	}

	if got, want := len(first.Rows)+len(second.Rows), len(whole.Rows); got != want {
		t.Errorf("split rows = %d, whole rows = %d", got, want)
	}
	sums := []struct {
		name            string
		whole, lhs, rhs int64
	}{
		{"labour", whole.Totals.Labour.Cents, first.Totals.Labour.Cents, second.Totals.Labour.Cents},
		{"material", whole.Totals.Material.Cents, first.Totals.Material.Cents, second.Totals.Material.Cents},
		{"expense", whole.Totals.Expense.Cents, first.Totals.Expense.Cents, second.Totals.Expense.Cents},
		{"advance", whole.Totals.Advance.Cents, first.Totals.Advance.Cents, second.Totals.Advance.Cents},
		{"grand", whole.Totals.Grand.Cents, first.Totals.Grand.Cents, second.Totals.Grand.Cents},
	}
	for _, s := range sums {
		if s.lhs+s.rhs != s.whole {
			t.Errorf("%s: %d + %d != %d", s.name, s.lhs, s.rhs, s.whole)
		}
	}
	if whole.Totals.Grand.Cents == 0 {
		t.Error("fixture produced an empty month")
	}
}
