package services

import (
	"context"
	"errors"
	"testing"

	"sitebook/internal/core"
	"sitebook/internal/storage"
	"sitebook/internal/storage/memory"
)

type recordingPublisher struct {
	saved  []string
	copied []string
}

func (p *recordingPublisher) PublishDaySaved(ctx context.Context, siteID int64, date core.Date) error {
	p.saved = append(p.saved, date.String())
	return nil
}

func (p *recordingPublisher) PublishDayCopied(ctx context.Context, siteID int64, date core.Date) error {
	p.copied = append(p.copied, date.String())
	return nil
}

type fixture struct {
	store   *memory.Store
	entries *EntryService
	masters *MastersService
	pub     *recordingPublisher

	site core.Site
	team core.Team
	dept core.Department
}

func newFixture(t *testing.T) (context.Context, *fixture) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	f := &fixture{
		store:   store,
		entries: NewEntryService(store, pub),
		masters: NewMastersService(store, []string{"Civil", "Electrical"}),
		pub:     pub,
	}

	var err error
	if f.site, err = store.CreateSite(ctx, "Tower A"); err != nil {
		t.Fatalf("create site: %v", err)
	}
	if f.team, err = store.CreateTeam(ctx, "Mason Crew"); err != nil {
		t.Fatalf("create team: %v", err)
	}
	if f.dept, err = store.CreateDepartment(ctx, "Electrical"); err != nil {
		t.Fatalf("create department: %v", err)
	}
	// Rate history: 500/300 from January.
	_, err = store.InsertTeamRate(ctx, core.TeamRate{
		TeamID:     f.team.ID,
		MasonFull:  core.Money{Cents: 50000},
		HelperFull: core.Money{Cents: 30000},
		FromDate:   core.NewDate(2024, 1, 1),
	})
	if err != nil {
		t.Fatalf("insert rate: %v", err)
	}
	return ctx, f
}

func money(cents int64) *core.Money { return &core.Money{Cents: cents} }

func TestSaveDayComputesCivilTotals(t *testing.T) {
	ctx, f := newFixture(t)
	d := core.NewDate(2024, 1, 15)

	err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Civil: []CivilInput{{
			TeamID:     f.team.ID,
			MasonFull:  2,
			HelperFull: 1,
			Advance:    money(20000),
		}},
	})
	if err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	sheet, err := f.entries.ReadDay(ctx, f.site.ID, d)
	if err != nil {
		t.Fatalf("ReadDay: %v", err)
	}
	if len(sheet.Civil) != 1 {
		t.Fatalf("civil rows = %d", len(sheet.Civil))
	}
	// 2*500 + 1*300 = 1300 labour, minus 200 advance.
	if got := sheet.Civil[0].Labour.Cents; got != 130000 {
		t.Errorf("Labour = %d, want 130000", got)
	}
	if got := sheet.Civil[0].Total.Cents; got != 110000 {
		t.Errorf("Total = %d, want 110000", got)
	}
	if len(f.pub.saved) != 1 {
		t.Errorf("day_saved events = %d", len(f.pub.saved))
	}
}

func TestSaveDayZeroInputDeletesRow(t *testing.T) {
	ctx, f := newFixture(t)
	d := core.NewDate(2024, 1, 15)

	in := DayInput{Civil: []CivilInput{{TeamID: f.team.ID, MasonFull: 2, Advance: money(10000)}}}
	if err := f.entries.SaveDay(ctx, f.site.ID, d, in); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	// Resubmit with everything cleared.
	in = DayInput{Civil: []CivilInput{{TeamID: f.team.ID, Advance: money(0)}}}
	if err := f.entries.SaveDay(ctx, f.site.ID, d, in); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	sheet, err := f.entries.ReadDay(ctx, f.site.ID, d)
	if err != nil {
		t.Fatalf("ReadDay: %v", err)
	}
	if len(sheet.Civil) != 0 {
		t.Errorf("civil rows = %d, want 0", len(sheet.Civil))
	}
	if len(sheet.Advances) != 0 {
		t.Errorf("advance rows = %d, want 0", len(sheet.Advances))
	}
}

func TestSaveDayKeepsStoredAdvanceWhenAbsent(t *testing.T) {
	ctx, f := newFixture(t)
	d := core.NewDate(2024, 1, 15)

	if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Civil: []CivilInput{{TeamID: f.team.ID, MasonFull: 1, Advance: money(5000)}},
	}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	// Second save updates counts but does not touch the advance field.
	if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Civil: []CivilInput{{TeamID: f.team.ID, MasonFull: 2}},
	}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	sheet, _ := f.entries.ReadDay(ctx, f.site.ID, d)
	if len(sheet.Advances) != 1 || sheet.Advances[0].Amount.Cents != 5000 {
		t.Fatalf("stored advance lost: %+v", sheet.Advances)
	}
	// 2*500 - 50 advance.
	if got := sheet.Civil[0].Total.Cents; got != 95000 {
		t.Errorf("Total = %d, want 95000", got)
	}
}

func TestSaveDayNoRateMeansZeroLabour(t *testing.T) {
	ctx, f := newFixture(t)
	// Before the first rate row takes effect.
	d := core.NewDate(2023, 12, 20)

	if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Civil: []CivilInput{{TeamID: f.team.ID, MasonFull: 3}},
	}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	sheet, _ := f.entries.ReadDay(ctx, f.site.ID, d)
	if len(sheet.Civil) != 1 {
		t.Fatalf("civil rows = %d", len(sheet.Civil))
	}
	if sheet.Civil[0].Labour.Cents != 0 || sheet.Civil[0].Total.Cents != 0 {
		t.Errorf("expected zero labour, got %+v", sheet.Civil[0])
	}
}

func TestSaveDayDepartmentRateNotConfigured(t *testing.T) {
	ctx, f := newFixture(t)
	d := core.NewDate(2024, 1, 15)

	err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Departments: []DepartmentInput{{DepartmentID: f.dept.ID, FullDays: 2}},
	})
	if !errors.Is(err, ErrRateNotConfigured) {
		t.Fatalf("expected ErrRateNotConfigured, got %v", err)
	}
	// The failed save must not leave partial rows behind.
	rows, _ := f.store.ListDepartmentWork(ctx, storage.RangeFilter{From: d, To: d, SiteID: f.site.ID})
	if len(rows) != 0 {
		t.Errorf("department rows = %d after failed save", len(rows))
	}
}

func TestSaveDayDepartmentSnapshotsRate(t *testing.T) {
	ctx, f := newFixture(t)
	d := core.NewDate(2024, 1, 15)

	if err := f.masters.SetDefaultRate(ctx, f.dept.ID, core.Money{Cents: 80000}, false); err != nil {
		t.Fatalf("SetDefaultRate: %v", err)
	}
	if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Departments: []DepartmentInput{{DepartmentID: f.dept.ID, FullDays: 1, HalfDays: 1, Advance: core.Money{Cents: 10000}}},
	}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	// Rate change after entry must not rewrite the stored row.
	if err := f.masters.SetDefaultRate(ctx, f.dept.ID, core.Money{Cents: 99900}, false); err != nil {
		t.Fatalf("SetDefaultRate: %v", err)
	}

	sheet, _ := f.entries.ReadDay(ctx, f.site.ID, d)
	if len(sheet.Departments) != 1 {
		t.Fatalf("department rows = %d", len(sheet.Departments))
	}
	row := sheet.Departments[0]
	if row.FullRate.Cents != 80000 || row.HalfRate.Cents != 40000 {
		t.Errorf("snapshot = %d/%d, want 80000/40000", row.FullRate.Cents, row.HalfRate.Cents)
	}
	// 1*800 + 1*400 - 100.
	if row.Labour.Cents != 120000 || row.Total.Cents != 110000 {
		t.Errorf("labour/total = %d/%d", row.Labour.Cents, row.Total.Cents)
	}
}

func TestSaveDaySkipsReservedDepartment(t *testing.T) {
	ctx, f := newFixture(t)
	d := core.NewDate(2024, 1, 15)

	civilDept, err := f.store.CreateDepartment(ctx, core.ReservedDepartment)
	if err != nil {
		t.Fatalf("create reserved: %v", err)
	}
	if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Departments: []DepartmentInput{{DepartmentID: civilDept.ID, FullDays: 5}},
	}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	rows, _ := f.store.ListDepartmentWork(ctx, storage.RangeFilter{From: d, To: d, SiteID: f.site.ID})
	if len(rows) != 0 {
		t.Errorf("reserved department produced %d rows", len(rows))
	}
}

func TestSaveDayTrimsAndPricesMaterials(t *testing.T) {
	ctx, f := newFixture(t)
	d := core.NewDate(2024, 1, 15)

	err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
		Materials: []core.MaterialEntry{
			{Agent: "Acme", Name: "Cement", Quantity: 10, Unit: "bag", Rate: core.Money{Cents: 40000}, Advance: core.Money{Cents: 100000}},
			{Name: ""},
			{Agent: "Ghost", Name: "Should not persist", Quantity: 1, Rate: core.Money{Cents: 1}},
		},
	})
	if err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	sheet, _ := f.entries.ReadDay(ctx, f.site.ID, d)
	if len(sheet.Materials) != 1 {
		t.Fatalf("materials = %d, want 1", len(sheet.Materials))
	}
	// 10*400 - 1000 advance.
	if got := sheet.Materials[0].Total.Cents; got != 300000 {
		t.Errorf("Total = %d, want 300000", got)
	}
}

func TestSaveDayNoteLifecycle(t *testing.T) {
	ctx, f := newFixture(t)
	d := core.NewDate(2024, 1, 15)

	note := "half day rain"
	if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{Note: &note}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	sheet, _ := f.entries.ReadDay(ctx, f.site.ID, d)
	if sheet.Note != note {
		t.Fatalf("Note = %q", sheet.Note)
	}

	// Absent note leaves the stored one alone.
	if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	sheet, _ = f.entries.ReadDay(ctx, f.site.ID, d)
	if sheet.Note != note {
		t.Fatalf("Note lost on untouched save: %q", sheet.Note)
	}

	// Empty note deletes.
	empty := ""
	if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{Note: &empty}); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	sheet, _ = f.entries.ReadDay(ctx, f.site.ID, d)
	if sheet.Note != "" {
		t.Fatalf("Note = %q after delete", sheet.Note)
	}
}

func TestSaveDayUnknownSite(t *testing.T) {
	ctx, f := newFixture(t)
	err := f.entries.SaveDay(ctx, 9999, core.NewDate(2024, 1, 15), DayInput{})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResetScopes(t *testing.T) {
	ctx, f := newFixture(t)

	days := []core.Date{
		core.NewDate(2024, 1, 15),
		core.NewDate(2024, 1, 20),
		core.NewDate(2024, 2, 5),
	}
	for _, d := range days {
		if err := f.entries.SaveDay(ctx, f.site.ID, d, DayInput{
			Civil: []CivilInput{{TeamID: f.team.ID, MasonFull: 1}},
		}); err != nil {
			t.Fatalf("SaveDay %s: %v", d, err)
		}
	}

	if err := f.entries.ResetDay(ctx, f.site.ID, days[0]); err != nil {
		t.Fatalf("ResetDay: %v", err)
	}
	remaining, _ := f.store.ListCivilWork(ctx, storage.RangeFilter{From: days[0], To: days[2], SiteID: f.site.ID})
	if len(remaining) != 2 {
		t.Fatalf("after ResetDay rows = %d, want 2", len(remaining))
	}

	if err := f.entries.ResetMonth(ctx, f.site.ID, core.NewDate(2024, 1, 1)); err != nil {
		t.Fatalf("ResetMonth: %v", err)
	}
	remaining, _ = f.store.ListCivilWork(ctx, storage.RangeFilter{From: days[0], To: days[2], SiteID: f.site.ID})
	if len(remaining) != 1 || !remaining[0].Date.Equal(days[2]) {
		t.Fatalf("after ResetMonth rows = %+v", remaining)
	}

	if err := f.entries.ResetSite(ctx, f.site.ID); err != nil {
		t.Fatalf("ResetSite: %v", err)
	}
	remaining, _ = f.store.ListCivilWork(ctx, storage.RangeFilter{From: days[0], To: days[2], SiteID: f.site.ID})
	if len(remaining) != 0 {
		t.Fatalf("after ResetSite rows = %d", len(remaining))
	}
	// Masters survive a history reset.
	if _, err := f.store.GetSite(ctx, f.site.ID); err != nil {
		t.Fatalf("site gone after ResetSite: %v", err)
	}
}
