package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dispensa/internal/services"
	"dispensa/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New()
	people := services.NewPeopleService(store)
	cycles := services.NewCycleService(store, nil, nil, nil)
	ledger := services.NewLedgerService(store, cycles, nil, nil, []string{"save-on"}, "")
	s := NewServer(":0", people, cycles, ledger)
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	if rec := doRequest(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec := doRequest(t, s, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK || rec.Body.String() != "ready" {
		t.Errorf("readyz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestPeopleEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/people", `{"name":"  Alice  "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[personJSON](t, rec)
	if created.Name != "Alice" || !created.Active || created.ID == "" {
		t.Errorf("created = %+v", created)
	}

	// Duplicate name conflicts.
	if rec := doRequest(t, s, http.MethodPost, "/api/people", `{"name":"Alice"}`); rec.Code != http.StatusConflict {
		t.Errorf("duplicate = %d, want 409", rec.Code)
	}

	// Blank name is a validation error.
	if rec := doRequest(t, s, http.MethodPost, "/api/people", `{"name":"   "}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("blank = %d, want 422", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPatch, "/api/people/"+created.ID, `{"name":"Alicia"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("rename = %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[personJSON](t, rec); got.Name != "Alicia" || got.ID != created.ID {
		t.Errorf("renamed = %+v", got)
	}

	if rec := doRequest(t, s, http.MethodDelete, "/api/people/"+created.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("deactivate = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/people?active=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	if got := decodeBody[[]personJSON](t, rec); len(got) != 0 {
		t.Errorf("active list = %+v, want empty after deactivation", got)
	}

	if rec := doRequest(t, s, http.MethodPatch, "/api/people/nope", `{"name":"X"}`); rec.Code != http.StatusNotFound {
		t.Errorf("rename unknown = %d, want 404", rec.Code)
	}
}

func TestCycleLifecycleEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/cycles", `{"month":"2025-12"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	c := decodeBody[cycleJSON](t, rec)
	if c.MonthKey != "2025-12" || c.Label != "December 2025" || c.Finalized {
		t.Errorf("cycle = %+v", c)
	}
	if c.StartDate != "2025-12-01" || c.EndDate != "2025-12-31" {
		t.Errorf("bounds = %s..%s", c.StartDate, c.EndDate)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/cycles", `{"month":"2025-12"}`); rec.Code != http.StatusConflict {
		t.Errorf("duplicate month = %d, want 409", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/cycles", `{"month":"2025-13"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month = %d, want 422", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/finalize", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize = %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[cycleJSON](t, rec); !got.Finalized {
		t.Errorf("finalize did not flip flag: %+v", got)
	}

	// Mutations on a finalized cycle conflict.
	rec = doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/transactions",
		`{"date":"2025-12-05","merchant":"MARKET","amount":"10.00"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("manual add on finalized = %d, want 409", rec.Code)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/unfinalize", ""); rec.Code != http.StatusOK {
		t.Errorf("unfinalize = %d", rec.Code)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/cycles/2099-01/finalize", ""); rec.Code != http.StatusNotFound {
		t.Errorf("finalize unknown month = %d, want 404", rec.Code)
	}
}

func TestConsumptionAndBillEndpoints(t *testing.T) {
	s := newTestServer(t)

	alice := decodeBody[personJSON](t, doRequest(t, s, http.MethodPost, "/api/people", `{"name":"Alice"}`))
	bob := decodeBody[personJSON](t, doRequest(t, s, http.MethodPost, "/api/people", `{"name":"Bob"}`))

	if rec := doRequest(t, s, http.MethodPost, "/api/cycles", `{"month":"2025-12"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create cycle = %d", rec.Code)
	}

	rec := doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/transactions",
		`{"date":"2025-12-05","merchant":"SAVE-ON-FOODS","amount":"100.00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add transaction = %d %s", rec.Code, rec.Body.String())
	}

	body := `[{"person_id":"` + alice.ID + `","weight":3},{"person_id":"` + bob.ID + `","weight":1}]`
	rec = doRequest(t, s, http.MethodPut, "/api/cycles/2025-12/consumption", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("set consumption = %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[[]entryJSON](t, rec); len(got) != 2 {
		t.Fatalf("entries = %+v", got)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/cycles/2025-12/bill", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("bill = %d", rec.Code)
	}
	bill := decodeBody[billJSON](t, rec)
	if bill.Total != "100.00" || bill.TotalWeight != 4 {
		t.Errorf("bill = %+v", bill)
	}
	if len(bill.Rows) != 2 || bill.Rows[0].PersonName != "Alice" || bill.Rows[0].Owed != "75.00" {
		t.Errorf("rows = %+v", bill.Rows)
	}

	// Unknown person in the bulk upsert rejects the whole batch.
	rec = doRequest(t, s, http.MethodPut, "/api/cycles/2025-12/consumption",
		`[{"person_id":"nope","weight":1}]`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown person = %d, want 404", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/cycles/2025-12", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("detail = %d", rec.Code)
	}
	detail := decodeBody[cycleDetailJSON](t, rec)
	if len(detail.Transactions) != 1 || len(detail.Entries) != 2 || detail.Bill.Total != "100.00" {
		t.Errorf("detail = %+v", detail)
	}
}

func TestTransactionEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/transactions",
		`{"date":"2025-12-05","merchant":"COUNTRY GROCER","amount":"42.50","notes":"bbq"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add = %d %s", rec.Code, rec.Body.String())
	}
	tx := decodeBody[transactionJSON](t, rec)
	if tx.Amount != "42.50" || tx.Source != "manual" || tx.Verified {
		t.Errorf("tx = %+v", tx)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/transactions",
		`{"date":"2025-12-05","merchant":"X","amount":"abc"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad amount = %d, want 422", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/transactions",
		`{"date":"bad","merchant":"X","amount":"1.00"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad date = %d, want 422", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPatch, "/api/cycles/2025-12/transactions/"+tx.ID, `{"verified":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify = %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[transactionJSON](t, rec); !got.Verified {
		t.Errorf("verify did not stick: %+v", got)
	}

	if rec := doRequest(t, s, http.MethodPatch, "/api/cycles/2025-12/transactions/"+tx.ID, `{}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing verified field = %d, want 422", rec.Code)
	}

	if rec := doRequest(t, s, http.MethodDelete, "/api/cycles/2025-12/transactions/"+tx.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodDelete, "/api/cycles/2025-12/transactions/"+tx.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("re-delete = %d, want 404", rec.Code)
	}
}

func TestImportCSVEndpoint(t *testing.T) {
	s := newTestServer(t)

	csv := "Date,Vendor,Debit,Credit,Card\n" +
		"2025-12-03,THRIFTY FOODS,62.10,,1234\n" +
		"2025-12-15,EMPLOYER PAYROLL,,1500.00,1234\n"
	rec := doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/import/csv", csv)
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d %s", rec.Code, rec.Body.String())
	}
	res := decodeBody[services.MergeResult](t, rec)
	if res.Added != 1 || res.Skipped != 1 || res.Errors != 0 || res.Considered != 2 {
		t.Errorf("counters = %+v", res)
	}

	// The import created the cycle implicitly.
	if rec := doRequest(t, s, http.MethodGet, "/api/cycles/2025-12", ""); rec.Code != http.StatusOK {
		t.Errorf("detail after import = %d", rec.Code)
	}
}

func TestSyncWithoutFetcher(t *testing.T) {
	s := newTestServer(t)
	if rec := doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/sync", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("sync = %d, want 422 with no aggregator configured", rec.Code)
	}
}

func TestPaymentEndpoints(t *testing.T) {
	s := newTestServer(t)

	alice := decodeBody[personJSON](t, doRequest(t, s, http.MethodPost, "/api/people", `{"name":"Alice"}`))

	rec := doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/payments",
		`{"person_id":"`+alice.ID+`","amount":"25.00","note":"farm stand","date":"2025-12-10"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add payment = %d %s", rec.Code, rec.Body.String())
	}
	p := decodeBody[paymentJSON](t, rec)
	if p.Amount != "25.00" || p.Date != "2025-12-10" {
		t.Errorf("payment = %+v", p)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/payments",
		`{"person_id":"`+alice.ID+`","amount":"0"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("zero amount = %d, want 422", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/cycles/2025-12/payments",
		`{"person_id":"nope","amount":"5.00"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown person = %d, want 404", rec.Code)
	}

	if rec := doRequest(t, s, http.MethodDelete, "/api/cycles/2025-12/payments/"+p.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete payment = %d", rec.Code)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/people", `{"name":"Alice","nmae":"typo"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown field = %d, want 422", rec.Code)
	}
}

func TestRateLimiterAllowsThenBlocks(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d blocked under the limit", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request 61 allowed over the limit")
	}
	// Other clients are unaffected.
	if !rl.allow("10.0.0.2") {
		t.Error("second client blocked")
	}
}
