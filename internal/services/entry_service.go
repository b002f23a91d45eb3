package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sitebook/internal/core"
	"sitebook/internal/storage"
)

// DayEventPublisher notifies downstream consumers that a site's day
// changed. Implemented by the AMQP client; nil disables publishing.
type DayEventPublisher interface {
	PublishDaySaved(ctx context.Context, siteID int64, date core.Date) error
	PublishDayCopied(ctx context.Context, siteID int64, date core.Date) error
}

// CivilInput is one team's row on the day sheet. A nil Advance means the
// caller did not touch the advance field, so the stored advance (if any)
// keeps counting toward the total. An explicit zero deletes it.
type CivilInput struct {
	TeamID     int64
	MasonFull  int
	MasonHalf  int
	HelperFull int
	HelperHalf int
	Advance    *core.Money
}

// DepartmentInput is one department's row. The advance is absolute: each
// save rewrites it.
type DepartmentInput struct {
	DepartmentID int64
	FullDays     int
	HalfDays     int
	Advance      core.Money
}

// DayInput is everything a single save of one (site, date) sheet carries.
// Materials and Expenses replace the stored lists wholesale; rows from
// the first one with an empty name/title onward are discarded. A nil
// Note leaves the stored note alone; an empty one deletes it.
type DayInput struct {
	Civil       []CivilInput
	Departments []DepartmentInput
	Materials   []core.MaterialEntry
	Expenses    []core.OtherExpense
	Note        *string
}

// DaySheet is the read model of one (site, date): stored rows plus the
// display rates the entry form shows for teams without rows yet.
type DaySheet struct {
	Site            core.Site                  `json:"site"`
	Date            core.Date                  `json:"date"`
	Civil           []core.CivilWork           `json:"civil"`
	Advances        []core.CivilAdvance        `json:"advances"`
	Departments     []core.DepartmentWork      `json:"departments"`
	Materials       []core.MaterialEntry       `json:"materials"`
	Expenses        []core.OtherExpense        `json:"expenses"`
	Note            string                     `json:"note"`
	TeamRates       map[int64]core.TeamRate    `json:"team_rates"`
	DepartmentRates map[int64]core.DefaultRate `json:"department_rates"`
}

// EntryService owns the daily ledger write path.
type EntryService struct {
	store     storage.Store
	publisher DayEventPublisher
}

func NewEntryService(store storage.Store, publisher DayEventPublisher) *EntryService {
	return &EntryService{store: store, publisher: publisher}
}

// SaveDay applies a full day-sheet submission for one site and date in a
// single transaction, then publishes a day_saved event.
func (s *EntryService) SaveDay(ctx context.Context, siteID int64, date core.Date, in DayInput) error {
	if err := date.Validate(); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetSite(ctx, siteID); err != nil {
			return fmt.Errorf("site %d: %w", siteID, err)
		}
		for _, c := range in.Civil {
			if err := s.saveCivilRow(ctx, tx, siteID, date, c); err != nil {
				return err
			}
		}
		for _, d := range in.Departments {
			if err := s.saveDepartmentRow(ctx, tx, siteID, date, d); err != nil {
				return err
			}
		}
		if err := tx.ReplaceMaterials(ctx, siteID, date, priceMaterials(trimMaterials(in.Materials))); err != nil {
			return err
		}
		if err := tx.ReplaceExpenses(ctx, siteID, date, trimExpenses(in.Expenses)); err != nil {
			return err
		}
		if in.Note != nil {
			if strings.TrimSpace(*in.Note) == "" {
				return tx.DeleteNote(ctx, siteID, date)
			}
			return tx.UpsertNote(ctx, siteID, date, *in.Note)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishDaySaved(ctx, siteID, date); err != nil {
			slog.WarnContext(ctx, "failed to publish day_saved event",
				"site_id", siteID, "date", date.String(), "error", err)
		}
	}
	return nil
}

func (s *EntryService) saveCivilRow(ctx context.Context, tx storage.Store, siteID int64, date core.Date, c CivilInput) error {
	advance := core.Money{}
	if c.Advance != nil {
		advance = *c.Advance
	} else {
		stored, err := tx.GetCivilAdvance(ctx, siteID, c.TeamID, date)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err == nil {
			advance = stored.Amount
		}
	}

	w := core.CivilWork{
		SiteID:     siteID,
		TeamID:     c.TeamID,
		Date:       date,
		MasonFull:  c.MasonFull,
		MasonHalf:  c.MasonHalf,
		HelperFull: c.HelperFull,
		HelperHalf: c.HelperHalf,
	}
	if !w.HasInput(advance) {
		if err := tx.DeleteCivilWork(ctx, siteID, c.TeamID, date); err != nil {
			return err
		}
		return tx.DeleteCivilAdvance(ctx, siteID, c.TeamID, date)
	}

	history, err := tx.ListTeamRates(ctx, c.TeamID)
	if err != nil {
		return err
	}
	rate := core.EffectiveTeamRate(history, date)
	w.Labour = core.CivilLabour(c.MasonFull, c.HelperFull, c.MasonHalf, c.HelperHalf, rate)
	w.Total = core.NetTotal(w.Labour, advance)
	if err := tx.UpsertCivilWork(ctx, w); err != nil {
		return err
	}

	if c.Advance == nil {
		return nil
	}
	if c.Advance.Cents == 0 {
		return tx.DeleteCivilAdvance(ctx, siteID, c.TeamID, date)
	}
	return tx.UpsertCivilAdvance(ctx, core.CivilAdvance{
		SiteID: siteID,
		TeamID: c.TeamID,
		Date:   date,
		Amount: *c.Advance,
	})
}

func (s *EntryService) saveDepartmentRow(ctx context.Context, tx storage.Store, siteID int64, date core.Date, d DepartmentInput) error {
	dept, err := tx.GetDepartment(ctx, d.DepartmentID)
	if err != nil {
		return fmt.Errorf("department %d: %w", d.DepartmentID, err)
	}
	// Civil attendance is keyed by team, never entered as department work.
	if strings.EqualFold(dept.Name, core.ReservedDepartment) {
		return nil
	}

	w := core.DepartmentWork{
		SiteID:       siteID,
		DepartmentID: d.DepartmentID,
		Date:         date,
		FullDays:     d.FullDays,
		HalfDays:     d.HalfDays,
		Advance:      d.Advance,
	}
	if !w.HasInput() {
		return tx.DeleteDepartmentWork(ctx, siteID, d.DepartmentID, date)
	}

	rate, err := tx.GetDefaultRate(ctx, d.DepartmentID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && rate.FullDay.Cents == 0) {
		if d.FullDays != 0 || d.HalfDays != 0 {
			return fmt.Errorf("department %s: %w", dept.Name, ErrRateNotConfigured)
		}
		rate = core.DefaultRate{}
	} else if err != nil {
		return err
	}

	// Snapshot the rate so later rate edits never rewrite this row.
	w.FullRate = rate.FullDay
	w.HalfRate = rate.HalfDay()
	w.Labour = core.DepartmentLabour(d.FullDays, d.HalfDays, rate.FullDay)
	w.Total = core.NetTotal(w.Labour, d.Advance)
	return tx.UpsertDepartmentWork(ctx, w)
}

// ReadDay assembles the full sheet for one (site, date).
func (s *EntryService) ReadDay(ctx context.Context, siteID int64, date core.Date) (DaySheet, error) {
	sheet := DaySheet{Date: date}

	site, err := s.store.GetSite(ctx, siteID)
	if err != nil {
		return sheet, fmt.Errorf("site %d: %w", siteID, err)
	}
	sheet.Site = site

	day := storage.RangeFilter{From: date, To: date, SiteID: siteID}
	if sheet.Civil, err = s.store.ListCivilWork(ctx, day); err != nil {
		return sheet, err
	}
	if sheet.Advances, err = s.store.ListCivilAdvances(ctx, day); err != nil {
		return sheet, err
	}
	if sheet.Departments, err = s.store.ListDepartmentWork(ctx, day); err != nil {
		return sheet, err
	}
	if sheet.Materials, err = s.store.ListMaterials(ctx, day); err != nil {
		return sheet, err
	}
	if sheet.Expenses, err = s.store.ListExpenses(ctx, day); err != nil {
		return sheet, err
	}
	note, err := s.store.GetNote(ctx, siteID, date)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return sheet, err
	}
	sheet.Note = note.Description

	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return sheet, err
	}
	history, err := s.store.ListTeamRates(ctx, 0)
	if err != nil {
		return sheet, err
	}
	byTeam := make(map[int64][]core.TeamRate)
	for _, r := range history {
		byTeam[r.TeamID] = append(byTeam[r.TeamID], r)
	}
	sheet.TeamRates = make(map[int64]core.TeamRate)
	for _, t := range teams {
		if r := core.EffectiveTeamRate(byTeam[t.ID], date); r != nil {
			sheet.TeamRates[t.ID] = *r
		}
	}

	defaults, err := s.store.ListDefaultRates(ctx)
	if err != nil {
		return sheet, err
	}
	sheet.DepartmentRates = make(map[int64]core.DefaultRate, len(defaults))
	for _, r := range defaults {
		sheet.DepartmentRates[r.DepartmentID] = r
	}

	return sheet, nil
}

// Wide bounds for range purges; daily rows always carry real dates.
var (
	minDate = core.NewDate(1, 1, 1)
	maxDate = core.NewDate(9999, 12, 31)
)

// ResetDay deletes every category of row for one (site, date).
func (s *EntryService) ResetDay(ctx context.Context, siteID int64, date core.Date) error {
	slog.InfoContext(ctx, "resetting day", "site_id", siteID, "date", date.String())
	return s.store.PurgeSiteRange(ctx, siteID, date, date)
}

// ResetMonth deletes every daily row of the site in the date's month.
func (s *EntryService) ResetMonth(ctx context.Context, siteID int64, date core.Date) error {
	first := core.NewDate(date.Year(), int(date.Month()), 1)
	last := first.AddDays(32)
	last = core.NewDate(last.Year(), int(last.Month()), 1).AddDays(-1)
	slog.InfoContext(ctx, "resetting month", "site_id", siteID, "from", first.String(), "to", last.String())
	return s.store.PurgeSiteRange(ctx, siteID, first, last)
}

// ResetSite deletes the site's entire daily history. Masters survive.
func (s *EntryService) ResetSite(ctx context.Context, siteID int64) error {
	slog.InfoContext(ctx, "resetting site history", "site_id", siteID)
	return s.store.PurgeSiteRange(ctx, siteID, minDate, maxDate)
}

// trimMaterials drops rows from the first unnamed one onward, the
// terminator convention of row-oriented entry forms.
func trimMaterials(in []core.MaterialEntry) []core.MaterialEntry {
	for i, m := range in {
		if strings.TrimSpace(m.Name) == "" {
			return in[:i]
		}
	}
	return in
}

func trimExpenses(in []core.OtherExpense) []core.OtherExpense {
	for i, e := range in {
		if strings.TrimSpace(e.Title) == "" {
			return in[:i]
		}
	}
	return in
}

// priceMaterials recomputes each line's net total from quantity, rate,
// and advance; client-sent totals are never trusted.
func priceMaterials(in []core.MaterialEntry) []core.MaterialEntry {
	for i := range in {
		gross := core.MaterialLineTotal(in[i].Quantity, in[i].Rate)
		in[i].Total = core.NetTotal(gross, in[i].Advance)
	}
	return in
}
