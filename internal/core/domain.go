package core

import (
	"errors"
	"strings"
	"time"
)

// ReservedDepartment is the department name reserved for civil team work.
// It never appears in department-work entry; civil rows are keyed by team
// instead.
const ReservedDepartment = "Civil"

type (
	// Date is a calendar date with day precision, always in UTC.
	Date struct {
		time.Time
	}

	Site struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Team struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Department struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	// TeamRate is one version in a team's pay-rate history. Multiple rows
	// per team form the history the resolver selects from.
	TeamRate struct {
		ID         int64 `json:"id"`
		TeamID     int64 `json:"team_id"`
		MasonFull  Money `json:"mason_full_rate"`
		HelperFull Money `json:"helper_full_rate"`
		FromDate   Date  `json:"from_date"`
		Locked     bool  `json:"is_locked"`
	}

	// DefaultRate is the single per-department day rate. Unlike team rates
	// it is not versioned; it is mutated in place.
	DefaultRate struct {
		ID           int64 `json:"id"`
		DepartmentID int64 `json:"department_id"`
		FullDay      Money `json:"full_day_rate"`
		Locked       bool  `json:"is_locked"`
	}

	// CivilWork is one team's attendance for one site and date.
	// Labour and Total are computed, never user-entered.
	CivilWork struct {
		ID         int64 `json:"id"`
		SiteID     int64 `json:"site_id"`
		TeamID     int64 `json:"team_id"`
		Date       Date  `json:"date"`
		MasonFull  int   `json:"mason_full"`
		MasonHalf  int   `json:"mason_half"`
		HelperFull int   `json:"helper_full"`
		HelperHalf int   `json:"helper_half"`
		Labour     Money `json:"labour_amount"`
		Total      Money `json:"total_amount"`
	}

	// CivilAdvance is a cash advance netted against the same key's labour.
	CivilAdvance struct {
		ID     int64 `json:"id"`
		SiteID int64 `json:"site_id"`
		TeamID int64 `json:"team_id"`
		Date   Date  `json:"date"`
		Amount Money `json:"amount"`
	}

	// DepartmentWork snapshots the rate effective at entry time, so later
	// DefaultRate changes never rewrite history.
	DepartmentWork struct {
		ID           int64 `json:"id"`
		SiteID       int64 `json:"site_id"`
		DepartmentID int64 `json:"department_id"`
		Date         Date  `json:"date"`
		FullDays     int   `json:"full_day_count"`
		HalfDays     int   `json:"half_day_count"`
		FullRate     Money `json:"full_day_rate"`
		HalfRate     Money `json:"half_day_rate"`
		Labour       Money `json:"labour_amount"`
		Advance      Money `json:"advance_amount"`
		Total        Money `json:"total_amount"`
	}

	// MaterialEntry is one supplied line item. Several per (site, date,
	// agent) are allowed; there is no natural per-line key.
	MaterialEntry struct {
		ID       int64   `json:"id"`
		SiteID   int64   `json:"site_id"`
		Date     Date    `json:"date"`
		Agent    string  `json:"agent_name"`
		Name     string  `json:"name"`
		Quantity float64 `json:"quantity"`
		Unit     string  `json:"unit"`
		Rate     Money   `json:"rate"`
		Advance  Money   `json:"advance"`
		Total    Money   `json:"total"`
	}

	OtherExpense struct {
		ID     int64  `json:"id"`
		SiteID int64  `json:"site_id"`
		Date   Date   `json:"date"`
		Title  string `json:"title"`
		Owner  string `json:"owner,omitempty"`
		Amount Money  `json:"amount"`
		Notes  string `json:"notes,omitempty"`
	}

	// SiteNote is the free-text daily log, singleton per (site, date).
	SiteNote struct {
		ID          int64  `json:"id"`
		SiteID      int64  `json:"site_id"`
		Date        Date   `json:"date"`
		Description string `json:"description"`
	}
)

var (
	ErrEmptyName   = errors.New("empty name")
	ErrInvalidRate = errors.New("invalid rate")
	ErrBadDate     = errors.New("invalid date")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar date.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrBadDate
	}
	return Date{Time: t}, nil
}

// AddDays returns the date shifted by n days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	return d.Time.Format(dateLayout)
}

// Equal reports whether two dates name the same calendar day.
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrBadDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MasonHalf is the half-day mason rate, derived rather than stored.
func (r TeamRate) MasonHalf() Money {
	return r.MasonFull.Half()
}

// HelperHalf is the half-day helper rate, derived rather than stored.
func (r TeamRate) HelperHalf() Money {
	return r.HelperFull.Half()
}

// HalfDay is the half-day department rate, derived from the full rate.
// DepartmentWork rows snapshot it at entry time.
func (r DefaultRate) HalfDay() Money {
	return r.FullDay.Half()
}

// HasInput reports whether any quantitative input is present. A civil row
// exists iff this is true; otherwise the row is deleted, never kept as a
// zero row.
func (w CivilWork) HasInput(advance Money) bool {
	return w.MasonFull != 0 || w.MasonHalf != 0 || w.HelperFull != 0 || w.HelperHalf != 0 || advance.Cents != 0
}

// HasInput mirrors CivilWork.HasInput for department rows.
func (w DepartmentWork) HasInput() bool {
	return w.FullDays != 0 || w.HalfDays != 0 || w.Advance.Cents != 0
}

func (s Site) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t Team) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (d Department) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (r TeamRate) Validate() error {
	if r.MasonFull.Cents <= 0 || r.HelperFull.Cents <= 0 {
		return ErrInvalidRate
	}
	return r.FromDate.Validate()
}
