package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finanze/internal/core"
	"finanze/internal/store/memory"
)

const testUser = "u_test"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(":0", memory.New(), nil, 32, time.Minute)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doAs(t, s, testUser, method, path, body)
}

func doAs(t *testing.T, s *Server, uid, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := doAs(t, s, "", http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t)
	rec := doAs(t, s, "", http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", rec.Code)
	}
}

func TestMissingUserHeader(t *testing.T) {
	s := newTestServer(t)
	rec := doAs(t, s, "", http.MethodGet, "/api/profile", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestProfileLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/api/profile", `{"email":"a@b.cc","displayName":"A"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ensure profile status = %d: %s", rec.Code, rec.Body.String())
	}
	p := decode[core.Profile](t, rec)
	if len(p.Categories) != len(core.DefaultCategories()) {
		t.Fatalf("categories = %d, want defaults", len(p.Categories))
	}

	rec = do(t, s, http.MethodPost, "/api/profile/categories", `{"name":"Garden"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add category status = %d", rec.Code)
	}
	cat := decode[core.Category](t, rec)
	if !strings.HasPrefix(cat.ID, "c_garden_") {
		t.Errorf("category id = %q", cat.ID)
	}

	rec = do(t, s, http.MethodGet, "/api/profile", "")
	p = decode[core.Profile](t, rec)
	if len(p.Categories) != len(core.DefaultCategories())+1 {
		t.Errorf("categories after add = %d", len(p.Categories))
	}
}

func TestGetProfileNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/profile", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/sessions", `{"date":"2026-02-10"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d: %s", rec.Code, rec.Body.String())
	}
	sess := decode[core.BillSession](t, rec)
	if sess.MonthKey != "2026-02" {
		t.Errorf("monthKey = %q", sess.MonthKey)
	}
	if sess.Title != "Bills – 2026-02" {
		t.Errorf("title = %q", sess.Title)
	}

	base := "/api/sessions/" + sess.ID

	rec = do(t, s, http.MethodPost, base+"/items",
		`{"merchant":"Keells","amount":"45.50","categoryId":"food","date":"2026-02-10"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add item status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, s, http.MethodPost, base+"/items",
		`{"merchant":"PickMe","amount":"12.00","categoryId":"transport","date":"2026-02-11","note":"airport"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add item status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, base+"/items", "")
	items := decode[[]core.BillItem](t, rec)
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	if items[0].Merchant != "PickMe" {
		t.Errorf("most recent first, got %q", items[0].Merchant)
	}

	rec = do(t, s, http.MethodPost, base+"/summary", `{"close":false}`)
	sum := decode[core.Summary](t, rec)
	if sum.Count != 2 || sum.Total.Cents != 5750 {
		t.Errorf("summary = %+v", sum)
	}

	rec = do(t, s, http.MethodPost, base+"/convert", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("convert status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[map[string]any](t, rec)
	if res["created"] != float64(2) || res["alreadyConverted"] != false {
		t.Fatalf("convert result = %v", res)
	}

	// Second convert is a no-op, still 200.
	rec = do(t, s, http.MethodPost, base+"/convert", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reconvert status = %d", rec.Code)
	}
	res = decode[map[string]any](t, rec)
	if res["alreadyConverted"] != true {
		t.Fatalf("reconvert result = %v", res)
	}

	rec = do(t, s, http.MethodGet, "/api/transactions/2026-02", "")
	txs := decode[[]core.Transaction](t, rec)
	if len(txs) != 2 {
		t.Fatalf("transactions = %d", len(txs))
	}
	for _, tx := range txs {
		if tx.Source == nil || tx.Source.SessionID != sess.ID {
			t.Errorf("missing provenance on %+v", tx)
		}
	}
}

func TestAddItemInvalidAmount(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/sessions", `{}`)
	sess := decode[core.BillSession](t, rec)

	rec = do(t, s, http.MethodPost, "/api/sessions/"+sess.ID+"/items",
		`{"merchant":"X","amount":"-5","categoryId":"food","date":"2026-02-10"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestAddItemValidationError(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/sessions", `{}`)
	sess := decode[core.BillSession](t, rec)

	rec = do(t, s, http.MethodPost, "/api/sessions/"+sess.ID+"/items",
		`{"merchant":"   ","amount":"5.00","categoryId":"food","date":"2026-02-10"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
}

func TestSessionNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/sessions/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestTransactionsCRUD(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/transactions",
		`{"type":"income","amount":"1000.00","categoryId":"other","date":"2026-03-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	tx := decode[core.Transaction](t, rec)
	if tx.MonthKey != "2026-03" {
		t.Errorf("monthKey = %q", tx.MonthKey)
	}

	rec = do(t, s, http.MethodPatch, "/api/transactions/id/"+tx.ID, `{"date":"2026-04-02"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/transactions/2026-03", "")
	if txs := decode[[]core.Transaction](t, rec); len(txs) != 0 {
		t.Errorf("march still has %d transactions", len(txs))
	}
	rec = do(t, s, http.MethodGet, "/api/transactions/2026-04", "")
	if txs := decode[[]core.Transaction](t, rec); len(txs) != 1 {
		t.Errorf("april has %d transactions", len(txs))
	}

	rec = do(t, s, http.MethodDelete, "/api/transactions/id/"+tx.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = do(t, s, http.MethodDelete, "/api/transactions/id/"+tx.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestListTransactionsBadMonthKey(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/transactions/2026-13", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestBudgets(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/api/budgets",
		`{"monthKey":"2026-02","categoryId":"food","limit":"300.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d: %s", rec.Code, rec.Body.String())
	}
	b := decode[core.Budget](t, rec)
	if b.ID != "2026-02_food" {
		t.Errorf("budget id = %q", b.ID)
	}

	// Zero is a valid limit.
	rec = do(t, s, http.MethodPut, "/api/budgets",
		`{"monthKey":"2026-02","categoryId":"fun","limit":"0"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("zero limit status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/budgets/2026-02", "")
	if budgets := decode[[]core.Budget](t, rec); len(budgets) != 2 {
		t.Errorf("budgets = %d", len(budgets))
	}
}

func TestGoals(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/goals",
		`{"name":"Emergency fund","targetAmount":"5000.00","deadline":"2026-12-31"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	g := decode[core.Goal](t, rec)

	rec = do(t, s, http.MethodPost, "/api/goals/"+g.ID+"/deposit", `{"amount":"1500.00"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deposit status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPatch, "/api/goals/"+g.ID, `{"clearDeadline":true}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("patch status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/goals", "")
	goals := decode[[]core.Goal](t, rec)
	if len(goals) != 1 {
		t.Fatalf("goals = %d", len(goals))
	}
	if goals[0].CurrentAmount.Cents != 150000 {
		t.Errorf("current = %d", goals[0].CurrentAmount.Cents)
	}
	if goals[0].Deadline != nil {
		t.Errorf("deadline not cleared")
	}

	rec = do(t, s, http.MethodDelete, "/api/goals/"+g.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestInsights(t *testing.T) {
	s := newTestServer(t)

	seed := func(body string) {
		t.Helper()
		rec := do(t, s, http.MethodPost, "/api/transactions", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed status = %d: %s", rec.Code, rec.Body.String())
		}
	}
	seed(`{"type":"income","amount":"2000.00","categoryId":"other","date":"2026-02-01"}`)
	seed(`{"type":"expense","amount":"120.00","categoryId":"food","date":"2026-02-02"}`)
	seed(`{"type":"expense","amount":"80.00","categoryId":"food","date":"2026-02-03"}`)
	seed(`{"type":"expense","amount":"50.00","categoryId":"transport","date":"2026-02-04"}`)

	rec := do(t, s, http.MethodGet, "/api/insights/2026-02", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("insights status = %d: %s", rec.Code, rec.Body.String())
	}
	ins := decode[insightsResponse](t, rec)
	if ins.Totals.Income.Cents != 200000 || ins.Totals.Expense.Cents != 25000 || ins.Totals.Net.Cents != 175000 {
		t.Errorf("totals = %+v", ins.Totals)
	}
	if len(ins.ByCategory) != 2 || ins.ByCategory[0].CategoryID != "food" || ins.ByCategory[0].Spent.Cents != 20000 {
		t.Errorf("byCategory = %+v", ins.ByCategory)
	}

	// A new transaction must invalidate the cached month.
	seed(`{"type":"expense","amount":"25.00","categoryId":"transport","date":"2026-02-05"}`)
	rec = do(t, s, http.MethodGet, "/api/insights/2026-02", "")
	ins = decode[insightsResponse](t, rec)
	if ins.Totals.Expense.Cents != 27500 {
		t.Errorf("expense after invalidation = %d", ins.Totals.Expense.Cents)
	}
}

func TestInsightsBadMonthKey(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/insights/garbage", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestExportMonth(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/transactions",
		`{"type":"expense","amount":"10.00","categoryId":"food","date":"2026-02-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/export/2026-02", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "transactions-2026-02.xlsx") {
		t.Errorf("content disposition = %q", cd)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty export body")
	}
}

func TestUserIsolation(t *testing.T) {
	s := newTestServer(t)

	rec := doAs(t, s, "alice", http.MethodPost, "/api/sessions", `{}`)
	sess := decode[core.BillSession](t, rec)

	rec = doAs(t, s, "bob", http.MethodGet, "/api/sessions/"+sess.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-user read status = %d, want 404", rec.Code)
	}
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/sessions", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
