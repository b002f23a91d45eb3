package core

// Report shapes consumed by the rendering collaborators (report view,
// printable bill). These are plain data; aggregation lives in the
// billing service.

// Row categories in a report. Civil rows carry the team name as label,
// department rows the department name as category, material rows the
// item name and supplying agent, expense rows the expense title.
const (
	CategoryCivil    = "Civil"
	CategoryMaterial = "Material"
	CategoryExpense  = "Expense"
)

// ReportRow is one ledger transaction flattened for reporting.
// Total is labour+material-advance for work rows, total-advance for
// material rows, and the plain amount for expense rows.
type ReportRow struct {
	Date     Date   `json:"date"`
	Site     string `json:"site"`
	Category string `json:"category"`
	Label    string `json:"label"`
	Agent    string `json:"agent,omitempty"`
	Labour   Money  `json:"labour"`
	Material Money  `json:"material"`
	Advance  Money  `json:"advance"`
	Total    Money  `json:"total"`
}

// ReportTotals are the grand-total scalars across all included rows.
// Grand = Labour + Material + Expense - Advance.
type ReportTotals struct {
	Labour   Money `json:"labour"`
	Material Money `json:"material"`
	Expense  Money `json:"expense"`
	Advance  Money `json:"advance"`
	Grand    Money `json:"grand_total"`
}

// CrossTab accumulates net totals per dimension value per site name,
// the shape of the cross-tab bill views.
type CrossTab map[string]map[string]Money

// Add accumulates amount into the (dimension, site) cell.
func (ct CrossTab) Add(dimension, site string, amount Money) {
	row, ok := ct[dimension]
	if !ok {
		row = make(map[string]Money)
		ct[dimension] = row
	}
	cell := row[site]
	cell.Cents += amount.Cents
	row[site] = cell
}

// Report is the full output of a date-range aggregation: the flat row
// list, the dimension-by-site cross-tabs, and the grand totals.
type Report struct {
	From             Date         `json:"from"`
	To               Date         `json:"to"`
	Rows             []ReportRow  `json:"rows"`
	TeamTotals       CrossTab     `json:"team_site_totals"`
	DepartmentTotals CrossTab     `json:"department_site_totals"`
	AgentTotals      CrossTab     `json:"agent_site_totals"`
	ExpenseTotals    CrossTab     `json:"expense_site_totals"`
	Totals           ReportTotals `json:"totals"`
}

// BillLine is one site's share of a dimension bill.
type BillLine struct {
	Site    string `json:"site"`
	Advance Money  `json:"advance"`
	Total   Money  `json:"total"`
}

// Bill is the on-demand detail view for a single team, department,
// material agent, or expense title.
type Bill struct {
	Dimension    string     `json:"dimension"`
	From         Date       `json:"from"`
	To           Date       `json:"to"`
	Lines        []BillLine `json:"lines"`
	AdvanceTotal Money      `json:"advance_total"`
	GrandTotal   Money      `json:"grand_total"`
}

// SiteSnapshot is the dashboard summary for one site.
type SiteSnapshot struct {
	Site         Site  `json:"site"`
	TodayTotal   Money `json:"today_total"`
	TodayAdvance Money `json:"today_advance"`
	WeekTotal    Money `json:"weekly_total"`
	MonthTotal   Money `json:"month_total"`
}
