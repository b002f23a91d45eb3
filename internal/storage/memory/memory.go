// Package memory provides an in-memory Store used as the default
// backend and as the fixture for service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"sitebook/internal/core"
	"sitebook/internal/storage"
)

type rowKey struct {
	siteID  int64
	otherID int64
	date    string
}

type state struct {
	nextID       int64
	sites        map[int64]core.Site
	teams        map[int64]core.Team
	departments  map[int64]core.Department
	teamRates    []core.TeamRate
	defaultRates map[int64]core.DefaultRate
	civil        map[rowKey]core.CivilWork
	advances     map[rowKey]core.CivilAdvance
	deptWork     map[rowKey]core.DepartmentWork
	materials    []core.MaterialEntry
	expenses     []core.OtherExpense
	notes        map[rowKey]core.SiteNote
}

// Store implements storage.Store over process memory. All operations are
// serialized by one mutex; WithTx snapshots state and restores it on
// error, which gives the same all-or-nothing behavior as the SQL stores.
type Store struct {
	mu sync.Mutex
	st *state
	// inTx marks a transactional view that already holds the parent lock.
	inTx bool
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: &state{
		sites:        map[int64]core.Site{},
		teams:        map[int64]core.Team{},
		departments:  map[int64]core.Department{},
		defaultRates: map[int64]core.DefaultRate{},
		civil:        map[rowKey]core.CivilWork{},
		advances:     map[rowKey]core.CivilAdvance{},
		deptWork:     map[rowKey]core.DepartmentWork{},
		notes:        map[rowKey]core.SiteNote{},
	}}
}

func (s *Store) run(fn func(st *state) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

func (s *Store) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.st.clone()
	tx := &Store{st: s.st, inTx: true}
	if err := fn(tx); err != nil {
		*s.st = *snap
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

func (st *state) clone() *state {
	cp := &state{
		nextID:       st.nextID,
		sites:        map[int64]core.Site{},
		teams:        map[int64]core.Team{},
		departments:  map[int64]core.Department{},
		defaultRates: map[int64]core.DefaultRate{},
		civil:        map[rowKey]core.CivilWork{},
		advances:     map[rowKey]core.CivilAdvance{},
		deptWork:     map[rowKey]core.DepartmentWork{},
		notes:        map[rowKey]core.SiteNote{},
	}
	for k, v := range st.sites {
		cp.sites[k] = v
	}
	for k, v := range st.teams {
		cp.teams[k] = v
	}
	for k, v := range st.departments {
		cp.departments[k] = v
	}
	for k, v := range st.defaultRates {
		cp.defaultRates[k] = v
	}
	for k, v := range st.civil {
		cp.civil[k] = v
	}
	for k, v := range st.advances {
		cp.advances[k] = v
	}
	for k, v := range st.deptWork {
		cp.deptWork[k] = v
	}
	for k, v := range st.notes {
		cp.notes[k] = v
	}
	cp.teamRates = append([]core.TeamRate(nil), st.teamRates...)
	cp.materials = append([]core.MaterialEntry(nil), st.materials...)
	cp.expenses = append([]core.OtherExpense(nil), st.expenses...)
	return cp
}

// ---- masters ----

func (s *Store) CreateSite(ctx context.Context, name string) (core.Site, error) {
	var out core.Site
	err := s.run(func(st *state) error {
		out = core.Site{ID: st.id(), Name: name}
		st.sites[out.ID] = out
		return nil
	})
	return out, err
}

func (s *Store) ListSites(ctx context.Context) ([]core.Site, error) {
	var out []core.Site
	err := s.run(func(st *state) error {
		for _, v := range st.sites {
			out = append(out, v)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (s *Store) GetSite(ctx context.Context, id int64) (core.Site, error) {
	var out core.Site
	err := s.run(func(st *state) error {
		v, ok := st.sites[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

func (s *Store) DeleteSite(ctx context.Context, id int64) error {
	return s.run(func(st *state) error {
		if _, ok := st.sites[id]; !ok {
			return storage.ErrNotFound
		}
		delete(st.sites, id)
		st.purge(id, core.Date{}, core.Date{})
		return nil
	})
}

func (s *Store) CreateTeam(ctx context.Context, name string) (core.Team, error) {
	var out core.Team
	err := s.run(func(st *state) error {
		out = core.Team{ID: st.id(), Name: name}
		st.teams[out.ID] = out
		return nil
	})
	return out, err
}

func (s *Store) ListTeams(ctx context.Context) ([]core.Team, error) {
	var out []core.Team
	err := s.run(func(st *state) error {
		for _, v := range st.teams {
			out = append(out, v)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (s *Store) GetTeam(ctx context.Context, id int64) (core.Team, error) {
	var out core.Team
	err := s.run(func(st *state) error {
		v, ok := st.teams[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

func (s *Store) DeleteTeam(ctx context.Context, id int64) error {
	return s.run(func(st *state) error {
		if _, ok := st.teams[id]; !ok {
			return storage.ErrNotFound
		}
		delete(st.teams, id)
		return nil
	})
}

func (s *Store) TeamInUse(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := s.run(func(st *state) error {
		for k := range st.civil {
			if k.otherID == id {
				used = true
				return nil
			}
		}
		for _, r := range st.teamRates {
			if r.TeamID == id {
				used = true
				return nil
			}
		}
		return nil
	})
	return used, err
}

func (s *Store) CreateDepartment(ctx context.Context, name string) (core.Department, error) {
	var out core.Department
	err := s.run(func(st *state) error {
		for _, d := range st.departments {
			if strings.EqualFold(d.Name, name) {
				return storage.ErrDuplicate
			}
		}
		out = core.Department{ID: st.id(), Name: name}
		st.departments[out.ID] = out
		return nil
	})
	return out, err
}

func (s *Store) GetDepartmentByName(ctx context.Context, name string) (core.Department, error) {
	var out core.Department
	err := s.run(func(st *state) error {
		for _, d := range st.departments {
			if strings.EqualFold(d.Name, name) {
				out = d
				return nil
			}
		}
		return storage.ErrNotFound
	})
	return out, err
}

func (s *Store) ListDepartments(ctx context.Context) ([]core.Department, error) {
	var out []core.Department
	err := s.run(func(st *state) error {
		for _, v := range st.departments {
			out = append(out, v)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (s *Store) GetDepartment(ctx context.Context, id int64) (core.Department, error) {
	var out core.Department
	err := s.run(func(st *state) error {
		v, ok := st.departments[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

func (s *Store) DeleteDepartment(ctx context.Context, id int64) error {
	return s.run(func(st *state) error {
		if _, ok := st.departments[id]; !ok {
			return storage.ErrNotFound
		}
		delete(st.departments, id)
		delete(st.defaultRates, id)
		return nil
	})
}

func (s *Store) DepartmentInUse(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := s.run(func(st *state) error {
		for k := range st.deptWork {
			if k.otherID == id {
				used = true
				return nil
			}
		}
		return nil
	})
	return used, err
}

// ---- rates ----

func (s *Store) InsertTeamRate(ctx context.Context, rate core.TeamRate) (core.TeamRate, error) {
	err := s.run(func(st *state) error {
		rate.ID = st.id()
		st.teamRates = append(st.teamRates, rate)
		return nil
	})
	return rate, err
}

func (s *Store) ListTeamRates(ctx context.Context, teamID int64) ([]core.TeamRate, error) {
	var out []core.TeamRate
	err := s.run(func(st *state) error {
		for _, r := range st.teamRates {
			if teamID == 0 || r.TeamID == teamID {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) SetTeamRateLock(ctx context.Context, rateID int64, locked bool) error {
	return s.run(func(st *state) error {
		for i := range st.teamRates {
			if st.teamRates[i].ID == rateID {
				st.teamRates[i].Locked = locked
				return nil
			}
		}
		return storage.ErrNotFound
	})
}

func (s *Store) UpsertDefaultRate(ctx context.Context, departmentID int64, fullDay core.Money, locked bool) error {
	return s.run(func(st *state) error {
		r, ok := st.defaultRates[departmentID]
		if !ok {
			r = core.DefaultRate{ID: st.id(), DepartmentID: departmentID}
		}
		r.FullDay = fullDay
		r.Locked = locked
		st.defaultRates[departmentID] = r
		return nil
	})
}

func (s *Store) GetDefaultRate(ctx context.Context, departmentID int64) (core.DefaultRate, error) {
	var out core.DefaultRate
	err := s.run(func(st *state) error {
		v, ok := st.defaultRates[departmentID]
		if !ok {
			return storage.ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

func (s *Store) ListDefaultRates(ctx context.Context) ([]core.DefaultRate, error) {
	var out []core.DefaultRate
	err := s.run(func(st *state) error {
		for _, v := range st.defaultRates {
			out = append(out, v)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].DepartmentID < out[j].DepartmentID })
		return nil
	})
	return out, err
}

// ---- civil ----

func civilKey(siteID, teamID int64, date core.Date) rowKey {
	return rowKey{siteID: siteID, otherID: teamID, date: date.String()}
}

func (s *Store) UpsertCivilWork(ctx context.Context, w core.CivilWork) error {
	return s.run(func(st *state) error {
		k := civilKey(w.SiteID, w.TeamID, w.Date)
		if prev, ok := st.civil[k]; ok {
			w.ID = prev.ID
		} else {
			w.ID = st.id()
		}
		st.civil[k] = w
		return nil
	})
}

func (s *Store) DeleteCivilWork(ctx context.Context, siteID, teamID int64, date core.Date) error {
	return s.run(func(st *state) error {
		delete(st.civil, civilKey(siteID, teamID, date))
		return nil
	})
}

func (s *Store) ListCivilWork(ctx context.Context, f storage.RangeFilter) ([]core.CivilWork, error) {
	var out []core.CivilWork
	err := s.run(func(st *state) error {
		for _, w := range st.civil {
			if matches(f, w.SiteID, w.Date) && (f.TeamID == 0 || w.TeamID == f.TeamID) {
				out = append(out, w)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (s *Store) UpsertCivilAdvance(ctx context.Context, a core.CivilAdvance) error {
	return s.run(func(st *state) error {
		k := civilKey(a.SiteID, a.TeamID, a.Date)
		if prev, ok := st.advances[k]; ok {
			a.ID = prev.ID
		} else {
			a.ID = st.id()
		}
		st.advances[k] = a
		return nil
	})
}

func (s *Store) DeleteCivilAdvance(ctx context.Context, siteID, teamID int64, date core.Date) error {
	return s.run(func(st *state) error {
		delete(st.advances, civilKey(siteID, teamID, date))
		return nil
	})
}

func (s *Store) GetCivilAdvance(ctx context.Context, siteID, teamID int64, date core.Date) (core.CivilAdvance, error) {
	var out core.CivilAdvance
	err := s.run(func(st *state) error {
		v, ok := st.advances[civilKey(siteID, teamID, date)]
		if !ok {
			return storage.ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

func (s *Store) ListCivilAdvances(ctx context.Context, f storage.RangeFilter) ([]core.CivilAdvance, error) {
	var out []core.CivilAdvance
	err := s.run(func(st *state) error {
		for _, a := range st.advances {
			if matches(f, a.SiteID, a.Date) && (f.TeamID == 0 || a.TeamID == f.TeamID) {
				out = append(out, a)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

// ---- department ----

func (s *Store) UpsertDepartmentWork(ctx context.Context, w core.DepartmentWork) error {
	return s.run(func(st *state) error {
		k := rowKey{siteID: w.SiteID, otherID: w.DepartmentID, date: w.Date.String()}
		if prev, ok := st.deptWork[k]; ok {
			w.ID = prev.ID
		} else {
			w.ID = st.id()
		}
		st.deptWork[k] = w
		return nil
	})
}

func (s *Store) DeleteDepartmentWork(ctx context.Context, siteID, departmentID int64, date core.Date) error {
	return s.run(func(st *state) error {
		delete(st.deptWork, rowKey{siteID: siteID, otherID: departmentID, date: date.String()})
		return nil
	})
}

func (s *Store) ListDepartmentWork(ctx context.Context, f storage.RangeFilter) ([]core.DepartmentWork, error) {
	var out []core.DepartmentWork
	err := s.run(func(st *state) error {
		for _, w := range st.deptWork {
			if matches(f, w.SiteID, w.Date) && (f.DepartmentID == 0 || w.DepartmentID == f.DepartmentID) {
				out = append(out, w)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

// ---- materials / expenses ----

func (s *Store) ReplaceMaterials(ctx context.Context, siteID int64, date core.Date, entries []core.MaterialEntry) error {
	return s.run(func(st *state) error {
		kept := st.materials[:0]
		for _, m := range st.materials {
			if !(m.SiteID == siteID && m.Date.Equal(date)) {
				kept = append(kept, m)
			}
		}
		st.materials = kept
		for _, m := range entries {
			m.ID = st.id()
			m.SiteID = siteID
			m.Date = date
			st.materials = append(st.materials, m)
		}
		return nil
	})
}

func (s *Store) ListMaterials(ctx context.Context, f storage.RangeFilter) ([]core.MaterialEntry, error) {
	var out []core.MaterialEntry
	err := s.run(func(st *state) error {
		for _, m := range st.materials {
			if matches(f, m.SiteID, m.Date) {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) ReplaceExpenses(ctx context.Context, siteID int64, date core.Date, entries []core.OtherExpense) error {
	return s.run(func(st *state) error {
		kept := st.expenses[:0]
		for _, e := range st.expenses {
			if !(e.SiteID == siteID && e.Date.Equal(date)) {
				kept = append(kept, e)
			}
		}
		st.expenses = kept
		for _, e := range entries {
			e.ID = st.id()
			e.SiteID = siteID
			e.Date = date
			st.expenses = append(st.expenses, e)
		}
		return nil
	})
}

func (s *Store) ListExpenses(ctx context.Context, f storage.RangeFilter) ([]core.OtherExpense, error) {
	var out []core.OtherExpense
	err := s.run(func(st *state) error {
		for _, e := range st.expenses {
			if matches(f, e.SiteID, e.Date) {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// ---- notes ----

func (s *Store) UpsertNote(ctx context.Context, siteID int64, date core.Date, description string) error {
	return s.run(func(st *state) error {
		k := rowKey{siteID: siteID, date: date.String()}
		n, ok := st.notes[k]
		if !ok {
			n = core.SiteNote{ID: st.id(), SiteID: siteID, Date: date}
		}
		n.Description = description
		st.notes[k] = n
		return nil
	})
}

func (s *Store) GetNote(ctx context.Context, siteID int64, date core.Date) (core.SiteNote, error) {
	var out core.SiteNote
	err := s.run(func(st *state) error {
		v, ok := st.notes[rowKey{siteID: siteID, date: date.String()}]
		if !ok {
			return storage.ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

func (s *Store) DeleteNote(ctx context.Context, siteID int64, date core.Date) error {
	return s.run(func(st *state) error {
		delete(st.notes, rowKey{siteID: siteID, date: date.String()})
		return nil
	})
}

// ---- maintenance ----

func (s *Store) PurgeSiteRange(ctx context.Context, siteID int64, from, to core.Date) error {
	return s.run(func(st *state) error {
		st.purge(siteID, from, to)
		return nil
	})
}

// purge deletes daily rows for a site. Zero from/to means all dates.
func (st *state) purge(siteID int64, from, to core.Date) {
	in := func(d core.Date) bool {
		if from.IsZero() && to.IsZero() {
			return true
		}
		return !d.Before(from.Time) && !d.After(to.Time)
	}
	for k, w := range st.civil {
		if w.SiteID == siteID && in(w.Date) {
			delete(st.civil, k)
		}
	}
	for k, a := range st.advances {
		if a.SiteID == siteID && in(a.Date) {
			delete(st.advances, k)
		}
	}
	for k, w := range st.deptWork {
		if w.SiteID == siteID && in(w.Date) {
			delete(st.deptWork, k)
		}
	}
	for k, n := range st.notes {
		if n.SiteID == siteID && in(n.Date) {
			delete(st.notes, k)
		}
	}
	keptM := st.materials[:0]
	for _, m := range st.materials {
		if !(m.SiteID == siteID && in(m.Date)) {
			keptM = append(keptM, m)
		}
	}
	st.materials = keptM
	keptE := st.expenses[:0]
	for _, e := range st.expenses {
		if !(e.SiteID == siteID && in(e.Date)) {
			keptE = append(keptE, e)
		}
	}
	st.expenses = keptE
}

func matches(f storage.RangeFilter, siteID int64, d core.Date) bool {
	if f.SiteID != 0 && siteID != f.SiteID {
		return false
	}
	return f.Contains(d)
}
