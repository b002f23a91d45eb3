// Package storage defines the persistence boundary of the ledger engine
// and its sqlite, postgres, and in-memory implementations.
package storage

import (
	"context"

	"sitebook/internal/core"
)

// RangeFilter narrows listing queries. From/To are inclusive; a zero ID
// means "all". Single-day reads use From == To.
type RangeFilter struct {
	From         core.Date
	To           core.Date
	SiteID       int64
	TeamID       int64
	DepartmentID int64
}

// Contains reports whether d falls inside the filter's date range.
func (f RangeFilter) Contains(d core.Date) bool {
	return !d.Before(f.From.Time) && !d.After(f.To.Time)
}

// Store is the persistence port of the engine. Implementations must make
// WithTx atomic: either every write inside fn is applied or none is.
type Store interface {
	// Masters.
	CreateSite(ctx context.Context, name string) (core.Site, error)
	ListSites(ctx context.Context) ([]core.Site, error)
	GetSite(ctx context.Context, id int64) (core.Site, error)
	DeleteSite(ctx context.Context, id int64) error

	CreateTeam(ctx context.Context, name string) (core.Team, error)
	ListTeams(ctx context.Context) ([]core.Team, error)
	GetTeam(ctx context.Context, id int64) (core.Team, error)
	DeleteTeam(ctx context.Context, id int64) error
	// TeamInUse reports whether any work row or rate row references the team.
	TeamInUse(ctx context.Context, id int64) (bool, error)

	CreateDepartment(ctx context.Context, name string) (core.Department, error)
	GetDepartmentByName(ctx context.Context, name string) (core.Department, error)
	ListDepartments(ctx context.Context) ([]core.Department, error)
	GetDepartment(ctx context.Context, id int64) (core.Department, error)
	DeleteDepartment(ctx context.Context, id int64) error
	DepartmentInUse(ctx context.Context, id int64) (bool, error)

	// Rates. ListTeamRates with teamID 0 returns the full history for
	// every team.
	InsertTeamRate(ctx context.Context, rate core.TeamRate) (core.TeamRate, error)
	ListTeamRates(ctx context.Context, teamID int64) ([]core.TeamRate, error)
	SetTeamRateLock(ctx context.Context, rateID int64, locked bool) error
	UpsertDefaultRate(ctx context.Context, departmentID int64, fullDay core.Money, locked bool) error
	GetDefaultRate(ctx context.Context, departmentID int64) (core.DefaultRate, error)
	ListDefaultRates(ctx context.Context) ([]core.DefaultRate, error)

	// Civil rows, unique per (site, team, date).
	UpsertCivilWork(ctx context.Context, w core.CivilWork) error
	DeleteCivilWork(ctx context.Context, siteID, teamID int64, date core.Date) error
	ListCivilWork(ctx context.Context, f RangeFilter) ([]core.CivilWork, error)

	UpsertCivilAdvance(ctx context.Context, a core.CivilAdvance) error
	DeleteCivilAdvance(ctx context.Context, siteID, teamID int64, date core.Date) error
	GetCivilAdvance(ctx context.Context, siteID, teamID int64, date core.Date) (core.CivilAdvance, error)
	ListCivilAdvances(ctx context.Context, f RangeFilter) ([]core.CivilAdvance, error)

	// Department rows, unique per (site, department, date).
	UpsertDepartmentWork(ctx context.Context, w core.DepartmentWork) error
	DeleteDepartmentWork(ctx context.Context, siteID, departmentID int64, date core.Date) error
	ListDepartmentWork(ctx context.Context, f RangeFilter) ([]core.DepartmentWork, error)

	// Materials and expenses are lifecycle-owned per (site, date):
	// Replace deletes every existing row for that key and inserts the
	// supplied list in order.
	ReplaceMaterials(ctx context.Context, siteID int64, date core.Date, entries []core.MaterialEntry) error
	ListMaterials(ctx context.Context, f RangeFilter) ([]core.MaterialEntry, error)
	ReplaceExpenses(ctx context.Context, siteID int64, date core.Date, entries []core.OtherExpense) error
	ListExpenses(ctx context.Context, f RangeFilter) ([]core.OtherExpense, error)

	// Daily note, singleton per (site, date).
	UpsertNote(ctx context.Context, siteID int64, date core.Date, description string) error
	GetNote(ctx context.Context, siteID int64, date core.Date) (core.SiteNote, error)
	DeleteNote(ctx context.Context, siteID int64, date core.Date) error

	// PurgeSiteRange deletes every daily row (civil, advance, department,
	// material, expense, note) for the site within [from, to].
	PurgeSiteRange(ctx context.Context, siteID int64, from, to core.Date) error

	// WithTx runs fn against a transactional view of the store.
	WithTx(ctx context.Context, fn func(Store) error) error

	Ping(ctx context.Context) error
	Close() error
}
