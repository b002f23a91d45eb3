package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sitebook/internal/core"
	"sitebook/internal/services"
	"sitebook/internal/storage/memory"
)

type testServer struct {
	srv  *Server
	site core.Site
	team core.Team
	dept core.Department
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	masters := services.NewMastersService(store, nil)
	entries := services.NewEntryService(store, nil)
	billing := services.NewBillingService(store)
	copier := services.NewDayCopyService(store, nil)

	srv := NewServer(":0", entries, billing, copier, masters, store)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	ctx := context.Background()
	site, err := masters.CreateSite(ctx, "Tower A")
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	team, err := masters.CreateTeam(ctx, "Mason Crew")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	// Backdated rate row so 2024 day sheets resolve it; SetTeamRate would
	// pin FromDate to today.
	if _, err := store.InsertTeamRate(ctx, core.TeamRate{
		TeamID:     team.ID,
		MasonFull:  core.Money{Cents: 50000},
		HelperFull: core.Money{Cents: 30000},
		FromDate:   core.NewDate(2024, 1, 1),
	}); err != nil {
		t.Fatalf("insert team rate: %v", err)
	}
	dept, err := masters.CreateDepartment(ctx, "Electrical")
	if err != nil {
		t.Fatalf("create department: %v", err)
	}
	return &testServer{srv: srv, site: site, team: team, dept: dept}
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		req = httptest.NewRequest(method, target, bytes.NewReader(buf))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) postForm(t *testing.T, target, form string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(t, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestDaySaveAndReadRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	advance := core.Money{Cents: 20000}
	rr := ts.do(t, http.MethodPost, "/day", saveDayRequest{
		SiteID: ts.site.ID,
		Date:   core.NewDate(2024, 1, 15),
		Civil: []civilRowRequest{{
			TeamID:     ts.team.ID,
			MasonFull:  2,
			HelperFull: 1,
			Advance:    &advance,
		}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, "/day?site=1&date=2024-01-15", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("read status=%d", rr.Code)
	}
	var sheet services.DaySheet
	if err := json.Unmarshal(rr.Body.Bytes(), &sheet); err != nil {
		t.Fatalf("decode sheet: %v", err)
	}
	if len(sheet.Civil) != 1 {
		t.Fatalf("civil rows = %d, want 1", len(sheet.Civil))
	}
	if got := sheet.Civil[0].Labour.Cents; got != 130000 {
		t.Fatalf("labour = %d, want 130000", got)
	}
	if got := sheet.Civil[0].Total.Cents; got != 110000 {
		t.Fatalf("total = %d, want 110000", got)
	}
}

func TestDayRejectsWrongMethodAndUnknownSite(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodDelete, "/day", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/day", saveDayRequest{
		SiteID: 999,
		Date:   core.NewDate(2024, 1, 15),
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown site, got %d", rr.Code)
	}
}

func TestReportCacheInvalidatedByWrite(t *testing.T) {
	ts := newTestServer(t)
	target := "/report?from=2024-01-01&to=2024-01-31"

	rr := ts.do(t, http.MethodGet, target, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("report status=%d", rr.Code)
	}
	var before core.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &before); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(before.Rows) != 0 {
		t.Fatalf("expected empty report, got %d rows", len(before.Rows))
	}

	rr = ts.do(t, http.MethodPost, "/day", saveDayRequest{
		SiteID:   ts.site.ID,
		Date:     core.NewDate(2024, 1, 15),
		Expenses: []core.OtherExpense{{Title: "Fuel", Amount: core.Money{Cents: 15000}}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, target, nil)
	var after core.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(after.Rows) != 1 {
		t.Fatalf("expected fresh report with 1 row, got %d", len(after.Rows))
	}
	if after.Totals.Expense.Cents != 15000 {
		t.Fatalf("expense total = %d, want 15000", after.Totals.Expense.Cents)
	}
}

func TestDayCopyEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/day", saveDayRequest{
		SiteID: ts.site.ID,
		Date:   core.NewDate(2024, 1, 14),
		Civil:  []civilRowRequest{{TeamID: ts.team.ID, MasonFull: 2}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d", rr.Code)
	}

	rr = ts.postForm(t, "/day/copy", "site=1&date=2024-01-15&civil=1")
	if rr.Code != http.StatusOK {
		t.Fatalf("copy status=%d body=%s", rr.Code, rr.Body.String())
	}
	var result map[string]bool
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode copy result: %v", err)
	}
	if !result["copied"] {
		t.Fatal("expected copied=true")
	}

	rr = ts.do(t, http.MethodGet, "/day?site=1&date=2024-01-15", nil)
	var sheet services.DaySheet
	if err := json.Unmarshal(rr.Body.Bytes(), &sheet); err != nil {
		t.Fatalf("decode sheet: %v", err)
	}
	if len(sheet.Civil) != 1 || sheet.Civil[0].MasonFull != 2 {
		t.Fatalf("copied sheet = %+v", sheet.Civil)
	}
}

func TestDayResetRejectsUnknownScope(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.postForm(t, "/day/reset", "site=1&date=2024-01-15&scope=year")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestMasterGuardStatusCodes(t *testing.T) {
	ts := newTestServer(t)

	// Team has a rate row, deleting it conflicts.
	rr := ts.postForm(t, "/teams/delete", fmt.Sprintf("id=%d", ts.team.ID))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for team in use, got %d", rr.Code)
	}

	rr = ts.postForm(t, "/departments", "name=civil")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reserved department, got %d", rr.Code)
	}

	rr = ts.postForm(t, "/sites", "name=")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank site name, got %d", rr.Code)
	}
}

func TestDepartmentsExcludeReserved(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/departments", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), core.ReservedDepartment) {
		t.Fatalf("reserved department leaked into listing: %s", rr.Body.String())
	}
}

func TestPostRateLimit(t *testing.T) {
	ts := newTestServer(t)

	var last int
	for i := 0; i <= rateLimitMax; i++ {
		rr := ts.postForm(t, "/sites", "name=")
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d posts, got %d", rateLimitMax+1, last)
	}
}
