package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"sitebook/internal/core"
	"sitebook/internal/storage"
)

// Range is an inclusive date window.
type Range struct {
	From core.Date
	To   core.Date
}

// Filters narrows an aggregation. A team filter excludes department,
// material, and expense sources; a department filter excludes civil,
// material, and expense sources; MaterialOnly keeps materials alone.
type Filters struct {
	SiteID       int64
	TeamID       int64
	DepartmentID int64
	MaterialOnly bool
}

// Order selects row ordering of the aggregated report.
type Order int

const (
	// OrderDateDesc lists the newest transactions first, the interactive
	// report view.
	OrderDateDesc Order = iota
	// OrderPrintable orders by date, site, category, label ascending,
	// the layout of the printable bill.
	OrderPrintable
)

// BillingService aggregates stored daily rows into reports and bills.
// It only reads; stored amounts are never recomputed.
type BillingService struct {
	store storage.Store
}

func NewBillingService(store storage.Store) *BillingService {
	return &BillingService{store: store}
}

type advanceKey struct {
	siteID int64
	teamID int64
	date   string
}

// Aggregate builds the cross-category report for a date range.
func (s *BillingService) Aggregate(ctx context.Context, r Range, f Filters, order Order) (core.Report, error) {
	report := core.Report{
		From:             r.From,
		To:               r.To,
		TeamTotals:       make(core.CrossTab),
		DepartmentTotals: make(core.CrossTab),
		AgentTotals:      make(core.CrossTab),
		ExpenseTotals:    make(core.CrossTab),
	}

	names, err := s.loadNames(ctx)
	if err != nil {
		return report, err
	}

	includeCivil := !f.MaterialOnly && f.DepartmentID == 0
	includeDept := !f.MaterialOnly && f.TeamID == 0
	includeMaterial := f.TeamID == 0 && f.DepartmentID == 0
	includeExpense := !f.MaterialOnly && f.TeamID == 0 && f.DepartmentID == 0

	base := storage.RangeFilter{From: r.From, To: r.To, SiteID: f.SiteID}

	var (
		civil     []core.CivilWork
		advances  []core.CivilAdvance
		deptWork  []core.DepartmentWork
		materials []core.MaterialEntry
		expenses  []core.OtherExpense
	)

	g, gctx := errgroup.WithContext(ctx)
	if includeCivil {
		g.Go(func() error {
			filter := base
			filter.TeamID = f.TeamID
			var err error
			if civil, err = s.store.ListCivilWork(gctx, filter); err != nil {
				return fmt.Errorf("list civil work: %w", err)
			}
			if advances, err = s.store.ListCivilAdvances(gctx, filter); err != nil {
				return fmt.Errorf("list civil advances: %w", err)
			}
			return nil
		})
	}
	if includeDept {
		g.Go(func() error {
			filter := base
			filter.DepartmentID = f.DepartmentID
			var err error
			if deptWork, err = s.store.ListDepartmentWork(gctx, filter); err != nil {
				return fmt.Errorf("list department work: %w", err)
			}
			return nil
		})
	}
	if includeMaterial {
		g.Go(func() error {
			var err error
			if materials, err = s.store.ListMaterials(gctx, base); err != nil {
				return fmt.Errorf("list materials: %w", err)
			}
			return nil
		})
	}
	if includeExpense {
		g.Go(func() error {
			var err error
			if expenses, err = s.store.ListExpenses(gctx, base); err != nil {
				return fmt.Errorf("list expenses: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	// Advances join civil rows by exact (site, team, date); no smearing
	// across days or sites.
	advByKey := make(map[advanceKey]core.Money, len(advances))
	for _, a := range advances {
		advByKey[advanceKey{a.SiteID, a.TeamID, a.Date.String()}] = a.Amount
	}

	for _, w := range civil {
		adv := advByKey[advanceKey{w.SiteID, w.TeamID, w.Date.String()}]
		site := names.site(w.SiteID)
		team := names.team(w.TeamID)
		report.Rows = append(report.Rows, core.ReportRow{
			Date:     w.Date,
			Site:     site,
			Category: core.CategoryCivil,
			Label:    team,
			Labour:   w.Labour,
			Advance:  adv,
			Total:    w.Total,
		})
		report.Totals.Labour.Cents += w.Labour.Cents
		report.Totals.Advance.Cents += adv.Cents
		report.TeamTotals.Add(team, site, w.Total)
	}

	for _, w := range deptWork {
		site := names.site(w.SiteID)
		dept := names.department(w.DepartmentID)
		report.Rows = append(report.Rows, core.ReportRow{
			Date:     w.Date,
			Site:     site,
			Category: dept,
			Labour:   w.Labour,
			Advance:  w.Advance,
			Total:    w.Total,
		})
		report.Totals.Labour.Cents += w.Labour.Cents
		report.Totals.Advance.Cents += w.Advance.Cents
		report.DepartmentTotals.Add(dept, site, w.Total)
	}

	for _, m := range materials {
		site := names.site(m.SiteID)
		gross := core.Money{Cents: m.Total.Cents + m.Advance.Cents}
		report.Rows = append(report.Rows, core.ReportRow{
			Date:     m.Date,
			Site:     site,
			Category: core.CategoryMaterial,
			Label:    m.Name,
			Agent:    m.Agent,
			Material: gross,
			Advance:  m.Advance,
			Total:    m.Total,
		})
		report.Totals.Material.Cents += gross.Cents
		report.Totals.Advance.Cents += m.Advance.Cents
		report.AgentTotals.Add(m.Agent, site, m.Total)
	}

	for _, e := range expenses {
		site := names.site(e.SiteID)
		report.Rows = append(report.Rows, core.ReportRow{
			Date:     e.Date,
			Site:     site,
			Category: core.CategoryExpense,
			Label:    e.Title,
			Agent:    e.Owner,
			Total:    e.Amount,
		})
		report.Totals.Expense.Cents += e.Amount.Cents
		report.ExpenseTotals.Add(e.Title, site, e.Amount)
	}

	report.Totals.Grand.Cents = report.Totals.Labour.Cents +
		report.Totals.Material.Cents +
		report.Totals.Expense.Cents -
		report.Totals.Advance.Cents

	sortRows(report.Rows, order)
	return report, nil
}

func sortRows(rows []core.ReportRow, order Order) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			if order == OrderDateDesc {
				return a.Date.After(b.Date.Time)
			}
			return a.Date.Before(b.Date.Time)
		}
		if a.Site != b.Site {
			return a.Site < b.Site
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Label < b.Label
	})
}

// TeamBill is one team's per-site settlement over a range.
func (s *BillingService) TeamBill(ctx context.Context, teamID int64, r Range) (core.Bill, error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return core.Bill{}, fmt.Errorf("team %d: %w", teamID, err)
	}
	filter := storage.RangeFilter{From: r.From, To: r.To, TeamID: teamID}
	work, err := s.store.ListCivilWork(ctx, filter)
	if err != nil {
		return core.Bill{}, err
	}
	advances, err := s.store.ListCivilAdvances(ctx, filter)
	if err != nil {
		return core.Bill{}, err
	}
	names, err := s.loadNames(ctx)
	if err != nil {
		return core.Bill{}, err
	}

	perSite := make(map[string]*core.BillLine)
	for _, w := range work {
		line := billLine(perSite, names.site(w.SiteID))
		line.Total.Cents += w.Total.Cents
	}
	for _, a := range advances {
		line := billLine(perSite, names.site(a.SiteID))
		line.Advance.Cents += a.Amount.Cents
	}
	return assembleBill(team.Name, r, perSite), nil
}

// DepartmentBill is one department's per-site settlement over a range.
func (s *BillingService) DepartmentBill(ctx context.Context, departmentID int64, r Range) (core.Bill, error) {
	dept, err := s.store.GetDepartment(ctx, departmentID)
	if err != nil {
		return core.Bill{}, fmt.Errorf("department %d: %w", departmentID, err)
	}
	work, err := s.store.ListDepartmentWork(ctx, storage.RangeFilter{From: r.From, To: r.To, DepartmentID: departmentID})
	if err != nil {
		return core.Bill{}, err
	}
	names, err := s.loadNames(ctx)
	if err != nil {
		return core.Bill{}, err
	}

	perSite := make(map[string]*core.BillLine)
	for _, w := range work {
		line := billLine(perSite, names.site(w.SiteID))
		line.Total.Cents += w.Total.Cents
		line.Advance.Cents += w.Advance.Cents
	}
	return assembleBill(dept.Name, r, perSite), nil
}

// AgentBill is one material agent's per-site settlement over a range.
func (s *BillingService) AgentBill(ctx context.Context, agent string, r Range) (core.Bill, error) {
	materials, err := s.store.ListMaterials(ctx, storage.RangeFilter{From: r.From, To: r.To})
	if err != nil {
		return core.Bill{}, err
	}
	names, err := s.loadNames(ctx)
	if err != nil {
		return core.Bill{}, err
	}

	perSite := make(map[string]*core.BillLine)
	for _, m := range materials {
		if !strings.EqualFold(m.Agent, agent) {
			continue
		}
		line := billLine(perSite, names.site(m.SiteID))
		line.Total.Cents += m.Total.Cents
		line.Advance.Cents += m.Advance.Cents
	}
	return assembleBill(agent, r, perSite), nil
}

// ExpenseBill is one expense title's per-site totals over a range.
func (s *BillingService) ExpenseBill(ctx context.Context, title string, r Range) (core.Bill, error) {
	expenses, err := s.store.ListExpenses(ctx, storage.RangeFilter{From: r.From, To: r.To})
	if err != nil {
		return core.Bill{}, err
	}
	names, err := s.loadNames(ctx)
	if err != nil {
		return core.Bill{}, err
	}

	perSite := make(map[string]*core.BillLine)
	for _, e := range expenses {
		if !strings.EqualFold(e.Title, title) {
			continue
		}
		line := billLine(perSite, names.site(e.SiteID))
		line.Total.Cents += e.Amount.Cents
	}
	return assembleBill(title, r, perSite), nil
}

// Dashboard summarizes every site's today, week-to-date (weeks start
// Sunday), and month-to-date net totals.
func (s *BillingService) Dashboard(ctx context.Context, today core.Date) ([]core.SiteSnapshot, error) {
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		return nil, err
	}

	weekStart := today.AddDays(-int(today.Weekday()))
	monthStart := core.NewDate(today.Year(), int(today.Month()), 1)

	out := make([]core.SiteSnapshot, 0, len(sites))
	for _, site := range sites {
		snap := core.SiteSnapshot{Site: site}
		var advance core.Money
		if snap.TodayTotal, advance, err = s.netTotals(ctx, site.ID, today, today); err != nil {
			return nil, err
		}
		snap.TodayAdvance = advance
		if snap.WeekTotal, _, err = s.netTotals(ctx, site.ID, weekStart, today); err != nil {
			return nil, err
		}
		if snap.MonthTotal, _, err = s.netTotals(ctx, site.ID, monthStart, today); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// netTotals sums stored net totals and advances for one site and range.
func (s *BillingService) netTotals(ctx context.Context, siteID int64, from, to core.Date) (core.Money, core.Money, error) {
	filter := storage.RangeFilter{From: from, To: to, SiteID: siteID}
	var total, advance core.Money

	civil, err := s.store.ListCivilWork(ctx, filter)
	if err != nil {
		return total, advance, err
	}
	for _, w := range civil {
		total.Cents += w.Total.Cents
	}
	advances, err := s.store.ListCivilAdvances(ctx, filter)
	if err != nil {
		return total, advance, err
	}
	for _, a := range advances {
		advance.Cents += a.Amount.Cents
	}
	deptWork, err := s.store.ListDepartmentWork(ctx, filter)
	if err != nil {
		return total, advance, err
	}
	for _, w := range deptWork {
		total.Cents += w.Total.Cents
		advance.Cents += w.Advance.Cents
	}
	materials, err := s.store.ListMaterials(ctx, filter)
	if err != nil {
		return total, advance, err
	}
	for _, m := range materials {
		total.Cents += m.Total.Cents
		advance.Cents += m.Advance.Cents
	}
	expenses, err := s.store.ListExpenses(ctx, filter)
	if err != nil {
		return total, advance, err
	}
	for _, e := range expenses {
		total.Cents += e.Amount.Cents
	}
	return total, advance, nil
}

type nameIndex struct {
	sites       map[int64]string
	teams       map[int64]string
	departments map[int64]string
}

func (n nameIndex) site(id int64) string       { return n.sites[id] }
func (n nameIndex) team(id int64) string       { return n.teams[id] }
func (n nameIndex) department(id int64) string { return n.departments[id] }

func (s *BillingService) loadNames(ctx context.Context) (nameIndex, error) {
	idx := nameIndex{
		sites:       make(map[int64]string),
		teams:       make(map[int64]string),
		departments: make(map[int64]string),
	}
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		return idx, err
	}
	for _, v := range sites {
		idx.sites[v.ID] = v.Name
	}
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return idx, err
	}
	for _, v := range teams {
		idx.teams[v.ID] = v.Name
	}
	departments, err := s.store.ListDepartments(ctx)
	if err != nil {
		return idx, err
	}
	for _, v := range departments {
		idx.departments[v.ID] = v.Name
	}
	return idx, nil
}

func billLine(perSite map[string]*core.BillLine, site string) *core.BillLine {
	line, ok := perSite[site]
	if !ok {
		line = &core.BillLine{Site: site}
		perSite[site] = line
	}
	return line
}

func assembleBill(dimension string, r Range, perSite map[string]*core.BillLine) core.Bill {
	bill := core.Bill{Dimension: dimension, From: r.From, To: r.To}
	siteNames := make([]string, 0, len(perSite))
	for name := range perSite {
		siteNames = append(siteNames, name)
	}
	sort.Strings(siteNames)
	for _, name := range siteNames {
		line := perSite[name]
		bill.Lines = append(bill.Lines, *line)
		bill.AdvanceTotal.Cents += line.Advance.Cents
		bill.GrandTotal.Cents += line.Total.Cents
	}
	return bill
}
