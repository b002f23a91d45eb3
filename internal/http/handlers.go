package http

import (
	"net/http"
	"strings"

	"sitebook/internal/core"
	"sitebook/internal/services"
)

// saveDayRequest is the JSON body of POST /day. Civil advances are
// tri-state: an omitted advance leaves the stored one alone, an explicit
// zero deletes it.
type saveDayRequest struct {
	SiteID      int64                  `json:"site_id"`
	Date        core.Date              `json:"date"`
	Civil       []civilRowRequest      `json:"civil"`
	Departments []departmentRowRequest `json:"departments"`
	Materials   []core.MaterialEntry   `json:"materials"`
	Expenses    []core.OtherExpense    `json:"expenses"`
	Note        *string                `json:"note"`
}

type civilRowRequest struct {
	TeamID     int64       `json:"team_id"`
	MasonFull  int         `json:"mason_full"`
	MasonHalf  int         `json:"mason_half"`
	HelperFull int         `json:"helper_full"`
	HelperHalf int         `json:"helper_half"`
	Advance    *core.Money `json:"advance,omitempty"`
}

type departmentRowRequest struct {
	DepartmentID int64      `json:"department_id"`
	FullDays     int        `json:"full_day_count"`
	HalfDays     int        `json:"half_day_count"`
	Advance      core.Money `json:"advance"`
}

func (req saveDayRequest) toInput() services.DayInput {
	in := services.DayInput{
		Materials: req.Materials,
		Expenses:  req.Expenses,
		Note:      req.Note,
	}
	for _, c := range req.Civil {
		in.Civil = append(in.Civil, services.CivilInput{
			TeamID:     c.TeamID,
			MasonFull:  c.MasonFull,
			MasonHalf:  c.MasonHalf,
			HelperFull: c.HelperFull,
			HelperHalf: c.HelperHalf,
			Advance:    c.Advance,
		})
	}
	for _, d := range req.Departments {
		in.Departments = append(in.Departments, services.DepartmentInput{
			DepartmentID: d.DepartmentID,
			FullDays:     d.FullDays,
			HalfDays:     d.HalfDays,
			Advance:      d.Advance,
		})
	}
	return in
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		siteID := parseIDParam(r, "site")
		date := parseDateParam(r, "date")
		sheet, err := s.entries.ReadDay(r.Context(), siteID, date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sheet)

	case http.MethodPost:
		var req saveDayRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if req.Date.Validate() != nil {
			req.Date = core.Today()
		}
		if err := s.entries.SaveDay(r.Context(), req.SiteID, req.Date, req.toInput()); err != nil {
			writeError(w, r, err)
			return
		}
		s.invalidateCaches()

		sheet, err := s.entries.ReadDay(r.Context(), req.SiteID, req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sheet)

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleDayReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	siteID := parseIDParam(r, "site")
	date := parseDateParam(r, "date")

	var err error
	scope := strings.ToLower(strings.TrimSpace(r.FormValue("scope")))
	switch scope {
	case "", "day":
		err = s.entries.ResetDay(r.Context(), siteID, date)
	case "month":
		err = s.entries.ResetMonth(r.Context(), siteID, date)
	case "site":
		err = s.entries.ResetSite(r.Context(), siteID)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown scope: " + scope})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateCaches()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "scope": scopeOrDay(scope)})
}

func scopeOrDay(scope string) string {
	if scope == "" {
		return "day"
	}
	return scope
}

func (s *Server) handleDayCopy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	siteID := parseIDParam(r, "site")
	date := parseDateParam(r, "date")
	flags := services.CopyFlags{
		Civil:      parseBoolParam(r, "civil"),
		Department: parseBoolParam(r, "department"),
		Material:   parseBoolParam(r, "material"),
		Note:       parseBoolParam(r, "note"),
		Replace:    parseBoolParam(r, "replace"),
	}

	changed, err := s.copier.CopyDay(r.Context(), siteID, date, flags)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if changed {
		s.invalidateCaches()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"copied": changed})
}

func (s *Server) reportRange(r *http.Request) services.Range {
	to := parseDateParam(r, "to")
	from := to.AddDays(-29)
	if v := strings.TrimSpace(r.FormValue("from")); v != "" {
		if d, err := core.ParseDate(v); err == nil {
			from = d
		}
	}
	return services.Range{From: from, To: to}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	rng := s.reportRange(r)
	filters := services.Filters{
		SiteID:       parseIDParam(r, "site"),
		TeamID:       parseIDParam(r, "team"),
		DepartmentID: parseIDParam(r, "department"),
		MaterialOnly: parseBoolParam(r, "material_only"),
	}
	order := services.OrderDateDesc
	if strings.EqualFold(r.FormValue("order"), "printable") {
		order = services.OrderPrintable
	}

	key := s.cacheKey("report", r.URL.RawQuery)
	if report, ok := s.reportCache.Get(key); ok {
		writeJSON(w, http.StatusOK, report)
		return
	}

	report, err := s.billing.Aggregate(r.Context(), rng, filters, order)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.reportCache.Set(key, report)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	today := parseDateParam(r, "date")
	key := s.cacheKey("dashboard", today.String())
	if snaps, ok := s.dashCache.Get(key); ok {
		writeJSON(w, http.StatusOK, snaps)
		return
	}

	snaps, err := s.billing.Dashboard(r.Context(), today)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.dashCache.Set(key, snaps)
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) serveBill(w http.ResponseWriter, r *http.Request, kind string,
	load func() (core.Bill, error)) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	key := s.cacheKey("bill", kind, r.URL.RawQuery)
	if bill, ok := s.billCache.Get(key); ok {
		writeJSON(w, http.StatusOK, bill)
		return
	}

	bill, err := load()
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.billCache.Set(key, bill)
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleTeamBill(w http.ResponseWriter, r *http.Request) {
	s.serveBill(w, r, "team", func() (core.Bill, error) {
		return s.billing.TeamBill(r.Context(), parseIDParam(r, "team"), s.reportRange(r))
	})
}

func (s *Server) handleDepartmentBill(w http.ResponseWriter, r *http.Request) {
	s.serveBill(w, r, "department", func() (core.Bill, error) {
		return s.billing.DepartmentBill(r.Context(), parseIDParam(r, "department"), s.reportRange(r))
	})
}

func (s *Server) handleAgentBill(w http.ResponseWriter, r *http.Request) {
	s.serveBill(w, r, "agent", func() (core.Bill, error) {
		return s.billing.AgentBill(r.Context(), strings.TrimSpace(r.FormValue("agent")), s.reportRange(r))
	})
}

func (s *Server) handleExpenseBill(w http.ResponseWriter, r *http.Request) {
	s.serveBill(w, r, "expense", func() (core.Bill, error) {
		return s.billing.ExpenseBill(r.Context(), strings.TrimSpace(r.FormValue("title")), s.reportRange(r))
	})
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sites, err := s.masters.ListSites(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sites)

	case http.MethodPost:
		site, err := s.masters.CreateSite(r.Context(), r.FormValue("name"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, site)

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleSiteDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if err := s.masters.DeleteSite(r.Context(), parseIDParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateCaches()
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		teams, err := s.masters.ListTeams(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, teams)

	case http.MethodPost:
		team, err := s.masters.CreateTeam(r.Context(), r.FormValue("name"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, team)

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleTeamDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if err := s.masters.DeleteTeam(r.Context(), parseIDParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleTeamRates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rates, err := s.masters.ListTeamRates(r.Context(), parseIDParam(r, "team"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rates)

	case http.MethodPost:
		rate, err := s.masters.SetTeamRate(r.Context(),
			parseIDParam(r, "team"),
			parseMoneyParam(r, "mason_full"),
			parseMoneyParam(r, "helper_full"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.invalidateCaches()
		writeJSON(w, http.StatusCreated, rate)

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleTeamRateLock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if err := s.masters.LockTeamRate(r.Context(),
		parseIDParam(r, "rate"), parseBoolParam(r, "locked")); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateCaches()
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		depts, err := s.masters.ListDepartments(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, depts)

	case http.MethodPost:
		dept, err := s.masters.CreateDepartment(r.Context(), r.FormValue("name"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, dept)

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleDepartmentDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if err := s.masters.DeleteDepartment(r.Context(), parseIDParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDepartmentRates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rates, err := s.masters.ListDefaultRates(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rates)

	case http.MethodPost:
		if err := s.masters.SetDefaultRate(r.Context(),
			parseIDParam(r, "department"),
			parseMoneyParam(r, "full_day"),
			parseBoolParam(r, "locked")); err != nil {
			writeError(w, r, err)
			return
		}
		s.invalidateCaches()
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})

	default:
		methodNotAllowed(w, "GET, POST")
	}
}
