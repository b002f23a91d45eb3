package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sitebook/internal/core"

	_ "modernc.org/sqlite"
)

// dbtx is the subset of *sql.DB and *sql.Tx the queries need, so the same
// methods serve both the pooled store and its transactional view.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store on a local sqlite file.
type SQLiteStore struct {
	db *sql.DB
	q  dbtx
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, q: db}, nil
}

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	view := &SQLiteStore{db: s.db, q: tx}
	if err := fn(view); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ---- masters ----

func (s *SQLiteStore) CreateSite(ctx context.Context, name string) (core.Site, error) {
	res, err := s.q.ExecContext(ctx, "INSERT INTO sites (name) VALUES (?)", name)
	if err != nil {
		return core.Site{}, fmt.Errorf("insert site: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Site{}, fmt.Errorf("site id: %w", err)
	}
	return core.Site{ID: id, Name: name}, nil
}

func (s *SQLiteStore) ListSites(ctx context.Context) ([]core.Site, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name FROM sites ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()
	var out []core.Site
	for rows.Next() {
		var v core.Site
		if err := rows.Scan(&v.ID, &v.Name); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetSite(ctx context.Context, id int64) (core.Site, error) {
	var v core.Site
	err := s.q.QueryRowContext(ctx, "SELECT id, name FROM sites WHERE id = ?", id).Scan(&v.ID, &v.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Site{}, ErrNotFound
	}
	if err != nil {
		return core.Site{}, fmt.Errorf("get site: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) DeleteSite(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "sites", id)
}

func (s *SQLiteStore) CreateTeam(ctx context.Context, name string) (core.Team, error) {
	res, err := s.q.ExecContext(ctx, "INSERT INTO teams (name) VALUES (?)", name)
	if err != nil {
		return core.Team{}, fmt.Errorf("insert team: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Team{}, fmt.Errorf("team id: %w", err)
	}
	return core.Team{ID: id, Name: name}, nil
}

func (s *SQLiteStore) ListTeams(ctx context.Context) ([]core.Team, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name FROM teams ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()
	var out []core.Team
	for rows.Next() {
		var v core.Team
		if err := rows.Scan(&v.ID, &v.Name); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetTeam(ctx context.Context, id int64) (core.Team, error) {
	var v core.Team
	err := s.q.QueryRowContext(ctx, "SELECT id, name FROM teams WHERE id = ?", id).Scan(&v.ID, &v.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Team{}, ErrNotFound
	}
	if err != nil {
		return core.Team{}, fmt.Errorf("get team: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) DeleteTeam(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "teams", id)
}

func (s *SQLiteStore) TeamInUse(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(1) FROM civil_work WHERE team_id = ?)
		      + (SELECT COUNT(1) FROM team_rates WHERE team_id = ?)`, id, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("team in use: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) CreateDepartment(ctx context.Context, name string) (core.Department, error) {
	res, err := s.q.ExecContext(ctx, "INSERT INTO departments (name) VALUES (?)", name)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Department{}, ErrDuplicate
		}
		return core.Department{}, fmt.Errorf("insert department: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Department{}, fmt.Errorf("department id: %w", err)
	}
	return core.Department{ID: id, Name: name}, nil
}

func (s *SQLiteStore) GetDepartmentByName(ctx context.Context, name string) (core.Department, error) {
	var v core.Department
	err := s.q.QueryRowContext(ctx,
		"SELECT id, name FROM departments WHERE name = ? COLLATE NOCASE", name).Scan(&v.ID, &v.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Department{}, ErrNotFound
	}
	if err != nil {
		return core.Department{}, fmt.Errorf("get department by name: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) ListDepartments(ctx context.Context) ([]core.Department, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name FROM departments ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()
	var out []core.Department
	for rows.Next() {
		var v core.Department
		if err := rows.Scan(&v.ID, &v.Name); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetDepartment(ctx context.Context, id int64) (core.Department, error) {
	var v core.Department
	err := s.q.QueryRowContext(ctx, "SELECT id, name FROM departments WHERE id = ?", id).Scan(&v.ID, &v.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Department{}, ErrNotFound
	}
	if err != nil {
		return core.Department{}, fmt.Errorf("get department: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) DeleteDepartment(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "departments", id)
}

func (s *SQLiteStore) DepartmentInUse(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM department_work WHERE department_id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("department in use: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- rates ----

func (s *SQLiteStore) InsertTeamRate(ctx context.Context, rate core.TeamRate) (core.TeamRate, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO team_rates (team_id, mason_full_cents, helper_full_cents, from_date, is_locked)
		 VALUES (?, ?, ?, ?, ?)`,
		rate.TeamID, rate.MasonFull.Cents, rate.HelperFull.Cents, rate.FromDate.String(), rate.Locked)
	if err != nil {
		return core.TeamRate{}, fmt.Errorf("insert team rate: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.TeamRate{}, fmt.Errorf("team rate id: %w", err)
	}
	rate.ID = id
	return rate, nil
}

func (s *SQLiteStore) ListTeamRates(ctx context.Context, teamID int64) ([]core.TeamRate, error) {
	query := `SELECT id, team_id, mason_full_cents, helper_full_cents, from_date, is_locked
	          FROM team_rates`
	args := []any{}
	if teamID != 0 {
		query += " WHERE team_id = ?"
		args = append(args, teamID)
	}
	query += " ORDER BY team_id, from_date"
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list team rates: %w", err)
	}
	defer rows.Close()
	var out []core.TeamRate
	for rows.Next() {
		var r core.TeamRate
		var from string
		if err := rows.Scan(&r.ID, &r.TeamID, &r.MasonFull.Cents, &r.HelperFull.Cents, &from, &r.Locked); err != nil {
			return nil, fmt.Errorf("scan team rate: %w", err)
		}
		if r.FromDate, err = core.ParseDate(from); err != nil {
			return nil, fmt.Errorf("team rate %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetTeamRateLock(ctx context.Context, rateID int64, locked bool) error {
	res, err := s.q.ExecContext(ctx, "UPDATE team_rates SET is_locked = ? WHERE id = ?", locked, rateID)
	if err != nil {
		return fmt.Errorf("set team rate lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set team rate lock: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UpsertDefaultRate(ctx context.Context, departmentID int64, fullDay core.Money, locked bool) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO default_rates (department_id, full_day_cents, is_locked)
		 VALUES (?, ?, ?)
		 ON CONFLICT(department_id) DO UPDATE SET
		   full_day_cents = excluded.full_day_cents,
		   is_locked = excluded.is_locked`,
		departmentID, fullDay.Cents, locked)
	if err != nil {
		return fmt.Errorf("upsert default rate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDefaultRate(ctx context.Context, departmentID int64) (core.DefaultRate, error) {
	var r core.DefaultRate
	err := s.q.QueryRowContext(ctx,
		`SELECT id, department_id, full_day_cents, is_locked
		 FROM default_rates WHERE department_id = ?`, departmentID).
		Scan(&r.ID, &r.DepartmentID, &r.FullDay.Cents, &r.Locked)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultRate{}, ErrNotFound
	}
	if err != nil {
		return core.DefaultRate{}, fmt.Errorf("get default rate: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) ListDefaultRates(ctx context.Context) ([]core.DefaultRate, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, department_id, full_day_cents, is_locked
		 FROM default_rates ORDER BY department_id`)
	if err != nil {
		return nil, fmt.Errorf("list default rates: %w", err)
	}
	defer rows.Close()
	var out []core.DefaultRate
	for rows.Next() {
		var r core.DefaultRate
		if err := rows.Scan(&r.ID, &r.DepartmentID, &r.FullDay.Cents, &r.Locked); err != nil {
			return nil, fmt.Errorf("scan default rate: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- civil ----

func (s *SQLiteStore) UpsertCivilWork(ctx context.Context, w core.CivilWork) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO civil_work
		   (site_id, team_id, date, mason_full, mason_half, helper_full, helper_half, labour_cents, total_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(site_id, team_id, date) DO UPDATE SET
		   mason_full = excluded.mason_full,
		   mason_half = excluded.mason_half,
		   helper_full = excluded.helper_full,
		   helper_half = excluded.helper_half,
		   labour_cents = excluded.labour_cents,
		   total_cents = excluded.total_cents`,
		w.SiteID, w.TeamID, w.Date.String(),
		w.MasonFull, w.MasonHalf, w.HelperFull, w.HelperHalf,
		w.Labour.Cents, w.Total.Cents)
	if err != nil {
		return fmt.Errorf("upsert civil work: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCivilWork(ctx context.Context, siteID, teamID int64, date core.Date) error {
	_, err := s.q.ExecContext(ctx,
		"DELETE FROM civil_work WHERE site_id = ? AND team_id = ? AND date = ?",
		siteID, teamID, date.String())
	if err != nil {
		return fmt.Errorf("delete civil work: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListCivilWork(ctx context.Context, f RangeFilter) ([]core.CivilWork, error) {
	query := `SELECT id, site_id, team_id, date, mason_full, mason_half, helper_full, helper_half, labour_cents, total_cents
	          FROM civil_work WHERE date >= ? AND date <= ?`
	args := []any{f.From.String(), f.To.String()}
	if f.SiteID != 0 {
		query += " AND site_id = ?"
		args = append(args, f.SiteID)
	}
	if f.TeamID != 0 {
		query += " AND team_id = ?"
		args = append(args, f.TeamID)
	}
	query += " ORDER BY date, site_id, id"
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list civil work: %w", err)
	}
	defer rows.Close()
	var out []core.CivilWork
	for rows.Next() {
		var w core.CivilWork
		var date string
		if err := rows.Scan(&w.ID, &w.SiteID, &w.TeamID, &date,
			&w.MasonFull, &w.MasonHalf, &w.HelperFull, &w.HelperHalf,
			&w.Labour.Cents, &w.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan civil work: %w", err)
		}
		if w.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("civil work %d: %w", w.ID, err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertCivilAdvance(ctx context.Context, a core.CivilAdvance) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO civil_advances (site_id, team_id, date, amount_cents)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(site_id, team_id, date) DO UPDATE SET
		   amount_cents = excluded.amount_cents`,
		a.SiteID, a.TeamID, a.Date.String(), a.Amount.Cents)
	if err != nil {
		return fmt.Errorf("upsert civil advance: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCivilAdvance(ctx context.Context, siteID, teamID int64, date core.Date) error {
	_, err := s.q.ExecContext(ctx,
		"DELETE FROM civil_advances WHERE site_id = ? AND team_id = ? AND date = ?",
		siteID, teamID, date.String())
	if err != nil {
		return fmt.Errorf("delete civil advance: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCivilAdvance(ctx context.Context, siteID, teamID int64, date core.Date) (core.CivilAdvance, error) {
	var a core.CivilAdvance
	var d string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, site_id, team_id, date, amount_cents
		 FROM civil_advances WHERE site_id = ? AND team_id = ? AND date = ?`,
		siteID, teamID, date.String()).
		Scan(&a.ID, &a.SiteID, &a.TeamID, &d, &a.Amount.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CivilAdvance{}, ErrNotFound
	}
	if err != nil {
		return core.CivilAdvance{}, fmt.Errorf("get civil advance: %w", err)
	}
	if a.Date, err = core.ParseDate(d); err != nil {
		return core.CivilAdvance{}, fmt.Errorf("civil advance %d: %w", a.ID, err)
	}
	return a, nil
}

func (s *SQLiteStore) ListCivilAdvances(ctx context.Context, f RangeFilter) ([]core.CivilAdvance, error) {
	query := `SELECT id, site_id, team_id, date, amount_cents
	          FROM civil_advances WHERE date >= ? AND date <= ?`
	args := []any{f.From.String(), f.To.String()}
	if f.SiteID != 0 {
		query += " AND site_id = ?"
		args = append(args, f.SiteID)
	}
	if f.TeamID != 0 {
		query += " AND team_id = ?"
		args = append(args, f.TeamID)
	}
	query += " ORDER BY date, site_id, id"
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list civil advances: %w", err)
	}
	defer rows.Close()
	var out []core.CivilAdvance
	for rows.Next() {
		var a core.CivilAdvance
		var d string
		if err := rows.Scan(&a.ID, &a.SiteID, &a.TeamID, &d, &a.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan civil advance: %w", err)
		}
		if a.Date, err = core.ParseDate(d); err != nil {
			return nil, fmt.Errorf("civil advance %d: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- department ----

func (s *SQLiteStore) UpsertDepartmentWork(ctx context.Context, w core.DepartmentWork) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO department_work
		   (site_id, department_id, date, full_days, half_days, full_rate_cents, half_rate_cents, labour_cents, advance_cents, total_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(site_id, department_id, date) DO UPDATE SET
		   full_days = excluded.full_days,
		   half_days = excluded.half_days,
		   full_rate_cents = excluded.full_rate_cents,
		   half_rate_cents = excluded.half_rate_cents,
		   labour_cents = excluded.labour_cents,
		   advance_cents = excluded.advance_cents,
		   total_cents = excluded.total_cents`,
		w.SiteID, w.DepartmentID, w.Date.String(),
		w.FullDays, w.HalfDays,
		w.FullRate.Cents, w.HalfRate.Cents,
		w.Labour.Cents, w.Advance.Cents, w.Total.Cents)
	if err != nil {
		return fmt.Errorf("upsert department work: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteDepartmentWork(ctx context.Context, siteID, departmentID int64, date core.Date) error {
	_, err := s.q.ExecContext(ctx,
		"DELETE FROM department_work WHERE site_id = ? AND department_id = ? AND date = ?",
		siteID, departmentID, date.String())
	if err != nil {
		return fmt.Errorf("delete department work: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDepartmentWork(ctx context.Context, f RangeFilter) ([]core.DepartmentWork, error) {
	query := `SELECT id, site_id, department_id, date, full_days, half_days, full_rate_cents, half_rate_cents, labour_cents, advance_cents, total_cents
	          FROM department_work WHERE date >= ? AND date <= ?`
	args := []any{f.From.String(), f.To.String()}
	if f.SiteID != 0 {
		query += " AND site_id = ?"
		args = append(args, f.SiteID)
	}
	if f.DepartmentID != 0 {
		query += " AND department_id = ?"
		args = append(args, f.DepartmentID)
	}
	query += " ORDER BY date, site_id, id"
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list department work: %w", err)
	}
	defer rows.Close()
	var out []core.DepartmentWork
	for rows.Next() {
		var w core.DepartmentWork
		var d string
		if err := rows.Scan(&w.ID, &w.SiteID, &w.DepartmentID, &d,
			&w.FullDays, &w.HalfDays,
			&w.FullRate.Cents, &w.HalfRate.Cents,
			&w.Labour.Cents, &w.Advance.Cents, &w.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan department work: %w", err)
		}
		if w.Date, err = core.ParseDate(d); err != nil {
			return nil, fmt.Errorf("department work %d: %w", w.ID, err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ---- materials / expenses ----

func (s *SQLiteStore) ReplaceMaterials(ctx context.Context, siteID int64, date core.Date, entries []core.MaterialEntry) error {
	if _, err := s.q.ExecContext(ctx,
		"DELETE FROM materials WHERE site_id = ? AND date = ?", siteID, date.String()); err != nil {
		return fmt.Errorf("clear materials: %w", err)
	}
	for _, m := range entries {
		if _, err := s.q.ExecContext(ctx,
			`INSERT INTO materials (site_id, date, agent_name, name, quantity, unit, rate_cents, advance_cents, total_cents)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			siteID, date.String(), m.Agent, m.Name, m.Quantity, m.Unit,
			m.Rate.Cents, m.Advance.Cents, m.Total.Cents); err != nil {
			return fmt.Errorf("insert material: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListMaterials(ctx context.Context, f RangeFilter) ([]core.MaterialEntry, error) {
	query := `SELECT id, site_id, date, agent_name, name, quantity, unit, rate_cents, advance_cents, total_cents
	          FROM materials WHERE date >= ? AND date <= ?`
	args := []any{f.From.String(), f.To.String()}
	if f.SiteID != 0 {
		query += " AND site_id = ?"
		args = append(args, f.SiteID)
	}
	query += " ORDER BY date, site_id, id"
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()
	var out []core.MaterialEntry
	for rows.Next() {
		var m core.MaterialEntry
		var d string
		if err := rows.Scan(&m.ID, &m.SiteID, &d, &m.Agent, &m.Name, &m.Quantity, &m.Unit,
			&m.Rate.Cents, &m.Advance.Cents, &m.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		if m.Date, err = core.ParseDate(d); err != nil {
			return nil, fmt.Errorf("material %d: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReplaceExpenses(ctx context.Context, siteID int64, date core.Date, entries []core.OtherExpense) error {
	if _, err := s.q.ExecContext(ctx,
		"DELETE FROM other_expenses WHERE site_id = ? AND date = ?", siteID, date.String()); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	for _, e := range entries {
		if _, err := s.q.ExecContext(ctx,
			`INSERT INTO other_expenses (site_id, date, title, owner, amount_cents, notes)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			siteID, date.String(), e.Title, e.Owner, e.Amount.Cents, e.Notes); err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListExpenses(ctx context.Context, f RangeFilter) ([]core.OtherExpense, error) {
	query := `SELECT id, site_id, date, title, owner, amount_cents, notes
	          FROM other_expenses WHERE date >= ? AND date <= ?`
	args := []any{f.From.String(), f.To.String()}
	if f.SiteID != 0 {
		query += " AND site_id = ?"
		args = append(args, f.SiteID)
	}
	query += " ORDER BY date, site_id, id"
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	var out []core.OtherExpense
	for rows.Next() {
		var e core.OtherExpense
		var d string
		if err := rows.Scan(&e.ID, &e.SiteID, &d, &e.Title, &e.Owner, &e.Amount.Cents, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = core.ParseDate(d); err != nil {
			return nil, fmt.Errorf("expense %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- notes ----

func (s *SQLiteStore) UpsertNote(ctx context.Context, siteID int64, date core.Date, description string) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO site_notes (site_id, date, description)
		 VALUES (?, ?, ?)
		 ON CONFLICT(site_id, date) DO UPDATE SET
		   description = excluded.description`,
		siteID, date.String(), description)
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetNote(ctx context.Context, siteID int64, date core.Date) (core.SiteNote, error) {
	var n core.SiteNote
	var d string
	err := s.q.QueryRowContext(ctx,
		"SELECT id, site_id, date, description FROM site_notes WHERE site_id = ? AND date = ?",
		siteID, date.String()).
		Scan(&n.ID, &n.SiteID, &d, &n.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SiteNote{}, ErrNotFound
	}
	if err != nil {
		return core.SiteNote{}, fmt.Errorf("get note: %w", err)
	}
	if n.Date, err = core.ParseDate(d); err != nil {
		return core.SiteNote{}, fmt.Errorf("note %d: %w", n.ID, err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteNote(ctx context.Context, siteID int64, date core.Date) error {
	_, err := s.q.ExecContext(ctx,
		"DELETE FROM site_notes WHERE site_id = ? AND date = ?", siteID, date.String())
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// ---- maintenance ----

func (s *SQLiteStore) PurgeSiteRange(ctx context.Context, siteID int64, from, to core.Date) error {
	for _, table := range []string{"civil_work", "civil_advances", "department_work", "materials", "other_expenses", "site_notes"} {
		if _, err := s.q.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE site_id = ? AND date >= ? AND date <= ?",
			siteID, from.String(), to.String()); err != nil {
			return fmt.Errorf("purge %s: %w", table, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
