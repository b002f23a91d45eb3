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

// MastersService manages the reference data everything else keys on:
// sites, teams, departments, and their rates.
type MastersService struct {
	store    storage.Store
	defaults []string
}

func NewMastersService(store storage.Store, defaultDepartments []string) *MastersService {
	return &MastersService{store: store, defaults: defaultDepartments}
}

// EnsureDefaults creates the configured default departments, each with a
// zero-value rate row, on first run. The reserved civil department gets
// no rate row: its labour is priced per team, never per day. Idempotent.
func (s *MastersService) EnsureDefaults(ctx context.Context) error {
	for _, name := range s.defaults {
		dept, err := s.store.GetDepartmentByName(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			if dept, err = s.store.CreateDepartment(ctx, name); err != nil {
				return fmt.Errorf("create default department %s: %w", name, err)
			}
			if !strings.EqualFold(name, core.ReservedDepartment) {
				if err := s.store.UpsertDefaultRate(ctx, dept.ID, core.Money{}, false); err != nil {
					return fmt.Errorf("init rate for %s: %w", name, err)
				}
			}
			slog.InfoContext(ctx, "created default department", "name", name, "id", dept.ID)
			continue
		}
		if err != nil {
			return fmt.Errorf("lookup department %s: %w", name, err)
		}
	}
	return nil
}

func (s *MastersService) CreateSite(ctx context.Context, name string) (core.Site, error) {
	site := core.Site{Name: strings.TrimSpace(name)}
	if err := site.Validate(); err != nil {
		return core.Site{}, err
	}
	// Creating a site guarantees the default departments exist so its
	// day sheets have pickers to draw from.
	if err := s.EnsureDefaults(ctx); err != nil {
		return core.Site{}, err
	}
	return s.store.CreateSite(ctx, site.Name)
}

func (s *MastersService) ListSites(ctx context.Context) ([]core.Site, error) {
	return s.store.ListSites(ctx)
}

// DeleteSite removes the site and its entire daily history.
func (s *MastersService) DeleteSite(ctx context.Context, id int64) error {
	slog.InfoContext(ctx, "deleting site and its history", "site_id", id)
	return s.store.DeleteSite(ctx, id)
}

func (s *MastersService) CreateTeam(ctx context.Context, name string) (core.Team, error) {
	team := core.Team{Name: strings.TrimSpace(name)}
	if err := team.Validate(); err != nil {
		return core.Team{}, err
	}
	return s.store.CreateTeam(ctx, team.Name)
}

func (s *MastersService) ListTeams(ctx context.Context) ([]core.Team, error) {
	return s.store.ListTeams(ctx)
}

// DeleteTeam refuses when the team has any work or rate history, so old
// bills keep resolving names.
func (s *MastersService) DeleteTeam(ctx context.Context, id int64) error {
	used, err := s.store.TeamInUse(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrTeamInUse
	}
	return s.store.DeleteTeam(ctx, id)
}

func (s *MastersService) CreateDepartment(ctx context.Context, name string) (core.Department, error) {
	dept := core.Department{Name: strings.TrimSpace(name)}
	if err := dept.Validate(); err != nil {
		return core.Department{}, err
	}
	if strings.EqualFold(dept.Name, core.ReservedDepartment) {
		return core.Department{}, ErrReservedDepartment
	}
	created, err := s.store.CreateDepartment(ctx, dept.Name)
	if err != nil {
		return core.Department{}, err
	}
	// Zero rate row so the entry form can show the department right away;
	// saving counts still requires a real rate.
	if err := s.store.UpsertDefaultRate(ctx, created.ID, core.Money{}, false); err != nil {
		return core.Department{}, fmt.Errorf("init rate: %w", err)
	}
	return created, nil
}

// ListDepartments returns departments for entry pickers, the reserved
// civil department excluded.
func (s *MastersService) ListDepartments(ctx context.Context) ([]core.Department, error) {
	all, err := s.store.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, d := range all {
		if strings.EqualFold(d.Name, core.ReservedDepartment) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *MastersService) DeleteDepartment(ctx context.Context, id int64) error {
	dept, err := s.store.GetDepartment(ctx, id)
	if err != nil {
		return err
	}
	if strings.EqualFold(dept.Name, core.ReservedDepartment) {
		return ErrReservedDepartment
	}
	used, err := s.store.DepartmentInUse(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrDepartmentInUse
	}
	return s.store.DeleteDepartment(ctx, id)
}

// SetTeamRate appends a new unlocked history row effective today. The
// resolver picks it up for today onward; locked rows keep older days
// pinned.
func (s *MastersService) SetTeamRate(ctx context.Context, teamID int64, masonFull, helperFull core.Money) (core.TeamRate, error) {
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		return core.TeamRate{}, fmt.Errorf("team %d: %w", teamID, err)
	}
	rate := core.TeamRate{
		TeamID:     teamID,
		MasonFull:  masonFull,
		HelperFull: helperFull,
		FromDate:   core.Today(),
	}
	if err := rate.Validate(); err != nil {
		return core.TeamRate{}, err
	}
	return s.store.InsertTeamRate(ctx, rate)
}

func (s *MastersService) ListTeamRates(ctx context.Context, teamID int64) ([]core.TeamRate, error) {
	return s.store.ListTeamRates(ctx, teamID)
}

// LockTeamRate pins or unpins one history row.
func (s *MastersService) LockTeamRate(ctx context.Context, rateID int64, locked bool) error {
	return s.store.SetTeamRateLock(ctx, rateID, locked)
}

// SetDefaultRate mutates the department's single rate in place. Existing
// work rows keep their snapshots.
func (s *MastersService) SetDefaultRate(ctx context.Context, departmentID int64, fullDay core.Money, locked bool) error {
	if fullDay.Cents < 0 {
		return core.ErrInvalidRate
	}
	if _, err := s.store.GetDepartment(ctx, departmentID); err != nil {
		return fmt.Errorf("department %d: %w", departmentID, err)
	}
	return s.store.UpsertDefaultRate(ctx, departmentID, fullDay, locked)
}

func (s *MastersService) ListDefaultRates(ctx context.Context) ([]core.DefaultRate, error) {
	return s.store.ListDefaultRates(ctx)
}
