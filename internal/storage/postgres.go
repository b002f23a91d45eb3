package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sitebook/internal/core"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS sites (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS teams (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS departments (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    CONSTRAINT departments_name_key UNIQUE (name)
);
CREATE TABLE IF NOT EXISTS team_rates (
    id BIGSERIAL PRIMARY KEY,
    team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    mason_full_cents BIGINT NOT NULL,
    helper_full_cents BIGINT NOT NULL,
    from_date DATE NOT NULL,
    is_locked BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_team_rates_team_date ON team_rates(team_id, from_date);
CREATE TABLE IF NOT EXISTS default_rates (
    id BIGSERIAL PRIMARY KEY,
    department_id BIGINT NOT NULL UNIQUE REFERENCES departments(id) ON DELETE CASCADE,
    full_day_cents BIGINT NOT NULL,
    is_locked BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS civil_work (
    id BIGSERIAL PRIMARY KEY,
    site_id BIGINT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    team_id BIGINT NOT NULL REFERENCES teams(id),
    date DATE NOT NULL,
    mason_full INT NOT NULL DEFAULT 0,
    mason_half INT NOT NULL DEFAULT 0,
    helper_full INT NOT NULL DEFAULT 0,
    helper_half INT NOT NULL DEFAULT 0,
    labour_cents BIGINT NOT NULL DEFAULT 0,
    total_cents BIGINT NOT NULL DEFAULT 0,
    UNIQUE(site_id, team_id, date)
);
CREATE TABLE IF NOT EXISTS civil_advances (
    id BIGSERIAL PRIMARY KEY,
    site_id BIGINT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    team_id BIGINT NOT NULL REFERENCES teams(id),
    date DATE NOT NULL,
    amount_cents BIGINT NOT NULL,
    UNIQUE(site_id, team_id, date)
);
CREATE TABLE IF NOT EXISTS department_work (
    id BIGSERIAL PRIMARY KEY,
    site_id BIGINT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    department_id BIGINT NOT NULL REFERENCES departments(id),
    date DATE NOT NULL,
    full_days INT NOT NULL DEFAULT 0,
    half_days INT NOT NULL DEFAULT 0,
    full_rate_cents BIGINT NOT NULL DEFAULT 0,
    half_rate_cents BIGINT NOT NULL DEFAULT 0,
    labour_cents BIGINT NOT NULL DEFAULT 0,
    advance_cents BIGINT NOT NULL DEFAULT 0,
    total_cents BIGINT NOT NULL DEFAULT 0,
    UNIQUE(site_id, department_id, date)
);
CREATE TABLE IF NOT EXISTS materials (
    id BIGSERIAL PRIMARY KEY,
    site_id BIGINT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    date DATE NOT NULL,
    agent_name TEXT NOT NULL,
    name TEXT NOT NULL,
    quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
    unit TEXT NOT NULL DEFAULT '',
    rate_cents BIGINT NOT NULL DEFAULT 0,
    advance_cents BIGINT NOT NULL DEFAULT 0,
    total_cents BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_materials_site_date ON materials(site_id, date);
CREATE TABLE IF NOT EXISTS other_expenses (
    id BIGSERIAL PRIMARY KEY,
    site_id BIGINT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    date DATE NOT NULL,
    title TEXT NOT NULL,
    owner TEXT NOT NULL DEFAULT '',
    amount_cents BIGINT NOT NULL,
    notes TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_other_expenses_site_date ON other_expenses(site_id, date);
CREATE TABLE IF NOT EXISTS site_notes (
    id BIGSERIAL PRIMARY KEY,
    site_id BIGINT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    date DATE NOT NULL,
    description TEXT NOT NULL,
    UNIQUE(site_id, date)
);
`

// pgq is satisfied by both *pgxpool.Pool and pgx.Tx, so the same query
// methods back the pooled store and its transactional view.
type pgq interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    pgq
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool, q: pool}, nil
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if _, ok := s.q.(pgx.Tx); ok {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	view := &PostgresStore{pool: s.pool, q: tx}
	if err := fn(view); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgDate(t time.Time) core.Date { return core.DateOf(t) }

func isPgDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}

// ---- masters ----

func (s *PostgresStore) CreateSite(ctx context.Context, name string) (core.Site, error) {
	v := core.Site{Name: name}
	err := s.q.QueryRow(ctx, "INSERT INTO sites (name) VALUES ($1) RETURNING id", name).Scan(&v.ID)
	if err != nil {
		return core.Site{}, fmt.Errorf("insert site: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListSites(ctx context.Context) ([]core.Site, error) {
	rows, err := s.q.Query(ctx, "SELECT id, name FROM sites ORDER BY id")
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

func (s *PostgresStore) GetSite(ctx context.Context, id int64) (core.Site, error) {
	var v core.Site
	err := s.q.QueryRow(ctx, "SELECT id, name FROM sites WHERE id = $1", id).Scan(&v.ID, &v.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Site{}, ErrNotFound
	}
	if err != nil {
		return core.Site{}, fmt.Errorf("get site: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) DeleteSite(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "sites", id)
}

func (s *PostgresStore) CreateTeam(ctx context.Context, name string) (core.Team, error) {
	v := core.Team{Name: name}
	err := s.q.QueryRow(ctx, "INSERT INTO teams (name) VALUES ($1) RETURNING id", name).Scan(&v.ID)
	if err != nil {
		return core.Team{}, fmt.Errorf("insert team: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListTeams(ctx context.Context) ([]core.Team, error) {
	rows, err := s.q.Query(ctx, "SELECT id, name FROM teams ORDER BY id")
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

func (s *PostgresStore) GetTeam(ctx context.Context, id int64) (core.Team, error) {
	var v core.Team
	err := s.q.QueryRow(ctx, "SELECT id, name FROM teams WHERE id = $1", id).Scan(&v.ID, &v.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Team{}, ErrNotFound
	}
	if err != nil {
		return core.Team{}, fmt.Errorf("get team: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) DeleteTeam(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "teams", id)
}

func (s *PostgresStore) TeamInUse(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT (SELECT COUNT(1) FROM civil_work WHERE team_id = $1)
		      + (SELECT COUNT(1) FROM team_rates WHERE team_id = $1)`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("team in use: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) CreateDepartment(ctx context.Context, name string) (core.Department, error) {
	v := core.Department{Name: name}
	err := s.q.QueryRow(ctx, "INSERT INTO departments (name) VALUES ($1) RETURNING id", name).Scan(&v.ID)
	if isPgDuplicate(err) {
		return core.Department{}, ErrDuplicate
	}
	if err != nil {
		return core.Department{}, fmt.Errorf("insert department: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) GetDepartmentByName(ctx context.Context, name string) (core.Department, error) {
	var v core.Department
	err := s.q.QueryRow(ctx,
		"SELECT id, name FROM departments WHERE LOWER(name) = LOWER($1)", name).Scan(&v.ID, &v.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Department{}, ErrNotFound
	}
	if err != nil {
		return core.Department{}, fmt.Errorf("get department by name: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListDepartments(ctx context.Context) ([]core.Department, error) {
	rows, err := s.q.Query(ctx, "SELECT id, name FROM departments ORDER BY id")
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

func (s *PostgresStore) GetDepartment(ctx context.Context, id int64) (core.Department, error) {
	var v core.Department
	err := s.q.QueryRow(ctx, "SELECT id, name FROM departments WHERE id = $1", id).Scan(&v.ID, &v.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Department{}, ErrNotFound
	}
	if err != nil {
		return core.Department{}, fmt.Errorf("get department: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) DeleteDepartment(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "departments", id)
}

func (s *PostgresStore) DepartmentInUse(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.q.QueryRow(ctx,
		"SELECT COUNT(1) FROM department_work WHERE department_id = $1", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("department in use: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) deleteByID(ctx context.Context, table string, id int64) error {
	tag, err := s.q.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- rates ----

func (s *PostgresStore) InsertTeamRate(ctx context.Context, rate core.TeamRate) (core.TeamRate, error) {
	err := s.q.QueryRow(ctx,
		`INSERT INTO team_rates (team_id, mason_full_cents, helper_full_cents, from_date, is_locked)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		rate.TeamID, rate.MasonFull.Cents, rate.HelperFull.Cents, rate.FromDate.Time, rate.Locked).
		Scan(&rate.ID)
	if err != nil {
		return core.TeamRate{}, fmt.Errorf("insert team rate: %w", err)
	}
	return rate, nil
}

func (s *PostgresStore) ListTeamRates(ctx context.Context, teamID int64) ([]core.TeamRate, error) {
	query := `SELECT id, team_id, mason_full_cents, helper_full_cents, from_date, is_locked
	          FROM team_rates`
	args := []any{}
	if teamID != 0 {
		query += " WHERE team_id = $1"
		args = append(args, teamID)
	}
	query += " ORDER BY team_id, from_date"
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list team rates: %w", err)
	}
	defer rows.Close()
	var out []core.TeamRate
	for rows.Next() {
		var r core.TeamRate
		var from time.Time
		if err := rows.Scan(&r.ID, &r.TeamID, &r.MasonFull.Cents, &r.HelperFull.Cents, &from, &r.Locked); err != nil {
			return nil, fmt.Errorf("scan team rate: %w", err)
		}
		r.FromDate = pgDate(from)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetTeamRateLock(ctx context.Context, rateID int64, locked bool) error {
	tag, err := s.q.Exec(ctx, "UPDATE team_rates SET is_locked = $1 WHERE id = $2", locked, rateID)
	if err != nil {
		return fmt.Errorf("set team rate lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpsertDefaultRate(ctx context.Context, departmentID int64, fullDay core.Money, locked bool) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO default_rates (department_id, full_day_cents, is_locked)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (department_id) DO UPDATE SET
		   full_day_cents = EXCLUDED.full_day_cents,
		   is_locked = EXCLUDED.is_locked`,
		departmentID, fullDay.Cents, locked)
	if err != nil {
		return fmt.Errorf("upsert default rate: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDefaultRate(ctx context.Context, departmentID int64) (core.DefaultRate, error) {
	var r core.DefaultRate
	err := s.q.QueryRow(ctx,
		`SELECT id, department_id, full_day_cents, is_locked
		 FROM default_rates WHERE department_id = $1`, departmentID).
		Scan(&r.ID, &r.DepartmentID, &r.FullDay.Cents, &r.Locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.DefaultRate{}, ErrNotFound
	}
	if err != nil {
		return core.DefaultRate{}, fmt.Errorf("get default rate: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListDefaultRates(ctx context.Context) ([]core.DefaultRate, error) {
	rows, err := s.q.Query(ctx,
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

func (s *PostgresStore) UpsertCivilWork(ctx context.Context, w core.CivilWork) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO civil_work
		   (site_id, team_id, date, mason_full, mason_half, helper_full, helper_half, labour_cents, total_cents)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (site_id, team_id, date) DO UPDATE SET
		   mason_full = EXCLUDED.mason_full,
		   mason_half = EXCLUDED.mason_half,
		   helper_full = EXCLUDED.helper_full,
		   helper_half = EXCLUDED.helper_half,
		   labour_cents = EXCLUDED.labour_cents,
		   total_cents = EXCLUDED.total_cents`,
		w.SiteID, w.TeamID, w.Date.Time,
		w.MasonFull, w.MasonHalf, w.HelperFull, w.HelperHalf,
		w.Labour.Cents, w.Total.Cents)
	if err != nil {
		return fmt.Errorf("upsert civil work: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteCivilWork(ctx context.Context, siteID, teamID int64, date core.Date) error {
	_, err := s.q.Exec(ctx,
		"DELETE FROM civil_work WHERE site_id = $1 AND team_id = $2 AND date = $3",
		siteID, teamID, date.Time)
	if err != nil {
		return fmt.Errorf("delete civil work: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCivilWork(ctx context.Context, f RangeFilter) ([]core.CivilWork, error) {
	query := `SELECT id, site_id, team_id, date, mason_full, mason_half, helper_full, helper_half, labour_cents, total_cents
	          FROM civil_work WHERE date >= $1 AND date <= $2`
	args := []any{f.From.Time, f.To.Time}
	if f.SiteID != 0 {
		args = append(args, f.SiteID)
		query += fmt.Sprintf(" AND site_id = $%d", len(args))
	}
	if f.TeamID != 0 {
		args = append(args, f.TeamID)
		query += fmt.Sprintf(" AND team_id = $%d", len(args))
	}
	query += " ORDER BY date, site_id, id"
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list civil work: %w", err)
	}
	defer rows.Close()
	var out []core.CivilWork
	for rows.Next() {
		var w core.CivilWork
		var d time.Time
		if err := rows.Scan(&w.ID, &w.SiteID, &w.TeamID, &d,
			&w.MasonFull, &w.MasonHalf, &w.HelperFull, &w.HelperHalf,
			&w.Labour.Cents, &w.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan civil work: %w", err)
		}
		w.Date = pgDate(d)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertCivilAdvance(ctx context.Context, a core.CivilAdvance) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO civil_advances (site_id, team_id, date, amount_cents)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (site_id, team_id, date) DO UPDATE SET
		   amount_cents = EXCLUDED.amount_cents`,
		a.SiteID, a.TeamID, a.Date.Time, a.Amount.Cents)
	if err != nil {
		return fmt.Errorf("upsert civil advance: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteCivilAdvance(ctx context.Context, siteID, teamID int64, date core.Date) error {
	_, err := s.q.Exec(ctx,
		"DELETE FROM civil_advances WHERE site_id = $1 AND team_id = $2 AND date = $3",
		siteID, teamID, date.Time)
	if err != nil {
		return fmt.Errorf("delete civil advance: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCivilAdvance(ctx context.Context, siteID, teamID int64, date core.Date) (core.CivilAdvance, error) {
	var a core.CivilAdvance
	var d time.Time
	err := s.q.QueryRow(ctx,
		`SELECT id, site_id, team_id, date, amount_cents
		 FROM civil_advances WHERE site_id = $1 AND team_id = $2 AND date = $3`,
		siteID, teamID, date.Time).
		Scan(&a.ID, &a.SiteID, &a.TeamID, &d, &a.Amount.Cents)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.CivilAdvance{}, ErrNotFound
	}
	if err != nil {
		return core.CivilAdvance{}, fmt.Errorf("get civil advance: %w", err)
	}
	a.Date = pgDate(d)
	return a, nil
}

func (s *PostgresStore) ListCivilAdvances(ctx context.Context, f RangeFilter) ([]core.CivilAdvance, error) {
	query := `SELECT id, site_id, team_id, date, amount_cents
	          FROM civil_advances WHERE date >= $1 AND date <= $2`
	args := []any{f.From.Time, f.To.Time}
	if f.SiteID != 0 {
		args = append(args, f.SiteID)
		query += fmt.Sprintf(" AND site_id = $%d", len(args))
	}
	if f.TeamID != 0 {
		args = append(args, f.TeamID)
		query += fmt.Sprintf(" AND team_id = $%d", len(args))
	}
	query += " ORDER BY date, site_id, id"
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list civil advances: %w", err)
	}
	defer rows.Close()
	var out []core.CivilAdvance
	for rows.Next() {
		var a core.CivilAdvance
		var d time.Time
		if err := rows.Scan(&a.ID, &a.SiteID, &a.TeamID, &d, &a.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan civil advance: %w", err)
		}
		a.Date = pgDate(d)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- department ----

func (s *PostgresStore) UpsertDepartmentWork(ctx context.Context, w core.DepartmentWork) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO department_work
		   (site_id, department_id, date, full_days, half_days, full_rate_cents, half_rate_cents, labour_cents, advance_cents, total_cents)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (site_id, department_id, date) DO UPDATE SET
		   full_days = EXCLUDED.full_days,
		   half_days = EXCLUDED.half_days,
		   full_rate_cents = EXCLUDED.full_rate_cents,
		   half_rate_cents = EXCLUDED.half_rate_cents,
		   labour_cents = EXCLUDED.labour_cents,
		   advance_cents = EXCLUDED.advance_cents,
		   total_cents = EXCLUDED.total_cents`,
		w.SiteID, w.DepartmentID, w.Date.Time,
		w.FullDays, w.HalfDays,
		w.FullRate.Cents, w.HalfRate.Cents,
		w.Labour.Cents, w.Advance.Cents, w.Total.Cents)
	if err != nil {
		return fmt.Errorf("upsert department work: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDepartmentWork(ctx context.Context, siteID, departmentID int64, date core.Date) error {
	_, err := s.q.Exec(ctx,
		"DELETE FROM department_work WHERE site_id = $1 AND department_id = $2 AND date = $3",
		siteID, departmentID, date.Time)
	if err != nil {
		return fmt.Errorf("delete department work: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDepartmentWork(ctx context.Context, f RangeFilter) ([]core.DepartmentWork, error) {
	query := `SELECT id, site_id, department_id, date, full_days, half_days, full_rate_cents, half_rate_cents, labour_cents, advance_cents, total_cents
	          FROM department_work WHERE date >= $1 AND date <= $2`
	args := []any{f.From.Time, f.To.Time}
	if f.SiteID != 0 {
		args = append(args, f.SiteID)
		query += fmt.Sprintf(" AND site_id = $%d", len(args))
	}
	if f.DepartmentID != 0 {
		args = append(args, f.DepartmentID)
		query += fmt.Sprintf(" AND department_id = $%d", len(args))
	}
	query += " ORDER BY date, site_id, id"
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list department work: %w", err)
	}
	defer rows.Close()
	var out []core.DepartmentWork
	for rows.Next() {
		var w core.DepartmentWork
		var d time.Time
		if err := rows.Scan(&w.ID, &w.SiteID, &w.DepartmentID, &d,
			&w.FullDays, &w.HalfDays,
			&w.FullRate.Cents, &w.HalfRate.Cents,
			&w.Labour.Cents, &w.Advance.Cents, &w.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan department work: %w", err)
		}
		w.Date = pgDate(d)
		out = append(out, w)
	}
	return out, rows.Err()
}

// ---- materials / expenses ----

func (s *PostgresStore) ReplaceMaterials(ctx context.Context, siteID int64, date core.Date, entries []core.MaterialEntry) error {
	if _, err := s.q.Exec(ctx,
		"DELETE FROM materials WHERE site_id = $1 AND date = $2", siteID, date.Time); err != nil {
		return fmt.Errorf("clear materials: %w", err)
	}
	for _, m := range entries {
		if _, err := s.q.Exec(ctx,
			`INSERT INTO materials (site_id, date, agent_name, name, quantity, unit, rate_cents, advance_cents, total_cents)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			siteID, date.Time, m.Agent, m.Name, m.Quantity, m.Unit,
			m.Rate.Cents, m.Advance.Cents, m.Total.Cents); err != nil {
			return fmt.Errorf("insert material: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListMaterials(ctx context.Context, f RangeFilter) ([]core.MaterialEntry, error) {
	query := `SELECT id, site_id, date, agent_name, name, quantity, unit, rate_cents, advance_cents, total_cents
	          FROM materials WHERE date >= $1 AND date <= $2`
	args := []any{f.From.Time, f.To.Time}
	if f.SiteID != 0 {
		args = append(args, f.SiteID)
		query += fmt.Sprintf(" AND site_id = $%d", len(args))
	}
	query += " ORDER BY date, site_id, id"
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()
	var out []core.MaterialEntry
	for rows.Next() {
		var m core.MaterialEntry
		var d time.Time
		if err := rows.Scan(&m.ID, &m.SiteID, &d, &m.Agent, &m.Name, &m.Quantity, &m.Unit,
			&m.Rate.Cents, &m.Advance.Cents, &m.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		m.Date = pgDate(d)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReplaceExpenses(ctx context.Context, siteID int64, date core.Date, entries []core.OtherExpense) error {
	if _, err := s.q.Exec(ctx,
		"DELETE FROM other_expenses WHERE site_id = $1 AND date = $2", siteID, date.Time); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	for _, e := range entries {
		if _, err := s.q.Exec(ctx,
			`INSERT INTO other_expenses (site_id, date, title, owner, amount_cents, notes)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			siteID, date.Time, e.Title, e.Owner, e.Amount.Cents, e.Notes); err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListExpenses(ctx context.Context, f RangeFilter) ([]core.OtherExpense, error) {
	query := `SELECT id, site_id, date, title, owner, amount_cents, notes
	          FROM other_expenses WHERE date >= $1 AND date <= $2`
	args := []any{f.From.Time, f.To.Time}
	if f.SiteID != 0 {
		args = append(args, f.SiteID)
		query += fmt.Sprintf(" AND site_id = $%d", len(args))
	}
	query += " ORDER BY date, site_id, id"
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	var out []core.OtherExpense
	for rows.Next() {
		var e core.OtherExpense
		var d time.Time
		if err := rows.Scan(&e.ID, &e.SiteID, &d, &e.Title, &e.Owner, &e.Amount.Cents, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date = pgDate(d)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- notes ----

func (s *PostgresStore) UpsertNote(ctx context.Context, siteID int64, date core.Date, description string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO site_notes (site_id, date, description)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (site_id, date) DO UPDATE SET
		   description = EXCLUDED.description`,
		siteID, date.Time, description)
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNote(ctx context.Context, siteID int64, date core.Date) (core.SiteNote, error) {
	var n core.SiteNote
	var d time.Time
	err := s.q.QueryRow(ctx,
		"SELECT id, site_id, date, description FROM site_notes WHERE site_id = $1 AND date = $2",
		siteID, date.Time).
		Scan(&n.ID, &n.SiteID, &d, &n.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.SiteNote{}, ErrNotFound
	}
	if err != nil {
		return core.SiteNote{}, fmt.Errorf("get note: %w", err)
	}
	n.Date = pgDate(d)
	return n, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, siteID int64, date core.Date) error {
	_, err := s.q.Exec(ctx,
		"DELETE FROM site_notes WHERE site_id = $1 AND date = $2", siteID, date.Time)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// ---- maintenance ----

func (s *PostgresStore) PurgeSiteRange(ctx context.Context, siteID int64, from, to core.Date) error {
	for _, table := range []string{"civil_work", "civil_advances", "department_work", "materials", "other_expenses", "site_notes"} {
		if _, err := s.q.Exec(ctx,
			"DELETE FROM "+table+" WHERE site_id = $1 AND date >= $2 AND date <= $3",
			siteID, from.Time, to.Time); err != nil {
			return fmt.Errorf("purge %s: %w", table, err)
		}
	}
	return nil
}
