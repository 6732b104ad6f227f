package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/accounts"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/mail"
	"fintrack/internal/reset"
	"fintrack/internal/storage/memory"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *outbox) messages() []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mail.Message(nil), o.sent...)
}

type testEnv struct {
	t      *testing.T
	srv    *Server
	outbox *outbox
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	store := memory.New()
	logger := log.New(log.Config{Output: io.Discard})
	acct := accounts.NewService(store, auth.NewIssuer(testSecret, time.Hour), accounts.WithCost(bcrypt.MinCost))
	tokens := reset.NewStore(reset.NewMemoryBackend(reset.DefaultTTL, nil))
	box := &outbox{}

	deps := Deps{
		Ledger:             ledger.New(store, ledger.WithLogger(logger)),
		Accounts:           acct,
		Resets:             reset.NewService(tokens, acct, box, "https://app.example.com/reset-password", logger),
		Verifier:           auth.NewAuthenticator(testSecret),
		Mailer:             box,
		Logger:             logger,
		ContactInbox:       "inbox@example.com",
		MailConfigured:     true,
		RateLimitPerMinute: 100,
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{t: t, srv: srv, outbox: box}
}

func (e *testEnv) do(method, path, body, token string) (*httptest.ResponseRecorder, map[string]any) {
	e.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)

	var out map[string]any
	dec := json.NewDecoder(strings.NewReader(rr.Body.String()))
	dec.UseNumber()
	_ = dec.Decode(&out)
	return rr, out
}

func (e *testEnv) login(email, password string) string {
	e.t.Helper()
	body := `{"email":"` + email + `","password":"` + password + `"}`
	if rr, _ := e.do(http.MethodPost, "/api/user/register", body, ""); rr.Code != http.StatusCreated {
		e.t.Fatalf("register %s: status %d: %s", email, rr.Code, rr.Body)
	}
	rr, out := e.do(http.MethodPost, "/api/user/login", body, "")
	if rr.Code != http.StatusOK {
		e.t.Fatalf("login %s: status %d: %s", email, rr.Code, rr.Body)
	}
	return out["token"].(string)
}

func path(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

func num(v any) string {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return ""
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rr, out := env.do(http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if out["status"] != "ok" || out["emailConfigured"] != true {
		t.Fatalf("body = %v", out)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestProtectedRoutesRequireCredential(t *testing.T) {
	env := newTestEnv(t, nil)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/transactions"},
		{http.MethodPost, "/api/transactions"},
		{http.MethodPut, "/api/transactions/abc"},
		{http.MethodDelete, "/api/transactions/abc"},
		{http.MethodGet, "/api/summary"},
		{http.MethodGet, "/api/chart/data"},
		{http.MethodGet, "/api/user/verify-token"},
	}
	for _, rt := range routes {
		rr, out := env.do(rt.method, rt.path, "", "")
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", rt.method, rt.path, rr.Code)
		}
		if out["error"] != "No token provided" {
			t.Errorf("%s %s: error = %v", rt.method, rt.path, out["error"])
		}
	}

	rr, out := env.do(http.MethodGet, "/api/transactions", "", "garbage")
	if rr.Code != http.StatusUnauthorized || out["error"] != "Invalid token" {
		t.Fatalf("garbage token: %d %v", rr.Code, out)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login("Ann@Example.com", "correct horse")

	rr, out := env.do(http.MethodPost, "/api/user/register", `{"email":"ann@example.com","password":"whatever1"}`, "")
	if rr.Code != http.StatusConflict || out["error"] != "User already exists" {
		t.Fatalf("duplicate register: %d %v", rr.Code, out)
	}

	rr, out = env.do(http.MethodPost, "/api/user/login", `{"email":"ann@example.com","password":"wrong password"}`, "")
	if rr.Code != http.StatusUnauthorized || out["error"] != "Invalid email or password" {
		t.Fatalf("wrong password: %d %v", rr.Code, out)
	}

	rr, out = env.do(http.MethodPost, "/api/user/register", `{"email":"bob@example.com","password":"short"}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("short password: %d %v", rr.Code, out)
	}

	rr, out = env.do(http.MethodGet, "/api/user/verify-token", "", token)
	if rr.Code != http.StatusOK || out["userId"] == "" || out["success"] != true {
		t.Fatalf("verify-token: %d %v", rr.Code, out)
	}
}

func TestLedgerFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login("ann@example.com", "correct horse")

	rr, out := env.do(http.MethodPost, "/api/transactions",
		`{"description":"Salary","amount":100,"type":"income","category":"ignored","date":"2024-01-01"}`, token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add income: %d %s", rr.Code, rr.Body)
	}
	if path(out, "transaction", "category") != "" {
		t.Fatalf("income category should be cleared: %v", out)
	}

	rr, out = env.do(http.MethodPost, "/api/transactions/add",
		`{"description":"Groceries","amount":45.555,"type":"expense","category":"food","date":"2024-01-01"}`, token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add expense: %d %s", rr.Code, rr.Body)
	}
	if got := num(path(out, "transaction", "amount")); got != "45.56" {
		t.Fatalf("amount = %q, want 45.56", got)
	}
	groceriesID := path(out, "transaction", "id").(string)

	rr, _ = env.do(http.MethodPost, "/api/transactions",
		`{"description":"Lunch","amount":"10","type":"expense","category":"food","date":"2024-01-02"}`, token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add string amount: %d %s", rr.Code, rr.Body)
	}

	rr, out = env.do(http.MethodPost, "/api/transactions",
		`{"description":"Taxi","amount":12,"type":"expense","date":"2024-01-02"}`, token)
	if rr.Code != http.StatusBadRequest || out["error"] != "category is required for expenses" {
		t.Fatalf("missing category: %d %v", rr.Code, out)
	}

	rr, out = env.do(http.MethodGet, "/api/summary", "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary: %d %s", rr.Code, rr.Body)
	}
	if got := num(path(out, "data", "totals", "netBalance")); got != "44.44" {
		t.Fatalf("netBalance = %q, want 44.44", got)
	}
	if got := num(path(out, "data", "categoryTotals", "food")); got != "55.56" {
		t.Fatalf("food = %q, want 55.56", got)
	}
	dates, _ := path(out, "data", "dailySeries", "dates").([]any)
	if len(dates) != 2 || dates[0] != "2024-01-01" || dates[1] != "2024-01-02" {
		t.Fatalf("dates = %v", dates)
	}

	rr, out = env.do(http.MethodGet, "/api/chart/data", "", token)
	doughnut, _ := path(out, "data", "doughnut").([]any)
	if rr.Code != http.StatusOK || len(doughnut) != 2 || num(doughnut[0]) != "100.00" || num(doughnut[1]) != "55.56" {
		t.Fatalf("chart data: %d %v", rr.Code, out)
	}

	rr, out = env.do(http.MethodPut, "/api/transactions/"+groceriesID,
		`{"description":"Groceries","amount":40,"type":"expense","category":"food","date":"2024-01-01"}`, token)
	if rr.Code != http.StatusOK || num(path(out, "transaction", "amount")) != "40.00" {
		t.Fatalf("update: %d %v", rr.Code, out)
	}

	other := env.login("bob@example.com", "another secret")
	rr, out = env.do(http.MethodDelete, "/api/transactions/"+groceriesID, "", other)
	if rr.Code != http.StatusNotFound || out["error"] != "Transaction not found" {
		t.Fatalf("foreign delete: %d %v", rr.Code, out)
	}
	rr, out = env.do(http.MethodGet, "/api/transactions/all", "", other)
	if list, _ := out["transactions"].([]any); rr.Code != http.StatusOK || len(list) != 0 {
		t.Fatalf("foreign list: %d %v", rr.Code, out)
	}

	rr, _ = env.do(http.MethodDelete, "/api/transactions/delete/"+groceriesID, "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rr.Code, rr.Body)
	}
	rr, _ = env.do(http.MethodDelete, "/api/transactions/"+groceriesID, "", token)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rr.Code)
	}

	rr, out = env.do(http.MethodGet, "/api/transactions", "", token)
	if list, _ := out["transactions"].([]any); rr.Code != http.StatusOK || len(list) != 2 {
		t.Fatalf("list: %d %v", rr.Code, out)
	}
}

func TestEmptyLedgerSummary(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login("ann@example.com", "correct horse")

	_, out := env.do(http.MethodGet, "/api/summary", "", token)
	if path(out, "data", "noDataMessage") != "No transaction data available" {
		t.Fatalf("body = %v", out)
	}
	if num(path(out, "data", "totals", "netBalance")) != "0.00" {
		t.Fatalf("netBalance = %v", path(out, "data", "totals", "netBalance"))
	}
}

var tokenInLink = regexp.MustCompile(`reset-password/([0-9a-f]{64})`)

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login("ann@example.com", "old password")

	rr, out := env.do(http.MethodPost, "/api/forgot-password", `{"email":"ann@example.com"}`, "")
	if rr.Code != http.StatusOK || out["message"] != forgotPasswordMessage {
		t.Fatalf("forgot-password: %d %v", rr.Code, out)
	}
	sent := env.outbox.messages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	m := tokenInLink.FindStringSubmatch(sent[0].HTML)
	if m == nil {
		t.Fatalf("no token in email: %s", sent[0].HTML)
	}
	token := m[1]
	if strings.Contains(rr.Body.String(), token) {
		t.Fatal("token leaked in response body")
	}

	rr, out = env.do(http.MethodPost, "/api/forgot-password", `{"email":"nobody@example.com"}`, "")
	if rr.Code != http.StatusOK || out["message"] != forgotPasswordMessage {
		t.Fatalf("unknown email: %d %v", rr.Code, out)
	}
	if len(env.outbox.messages()) != 1 {
		t.Fatal("unknown email must not be mailed")
	}

	rr, out = env.do(http.MethodPost, "/api/reset-password", `{"token":"`+token+`","newPassword":"short"}`, "")
	if rr.Code != http.StatusBadRequest || out["error"] != "password must be at least 8 characters long" {
		t.Fatalf("short password: %d %v", rr.Code, out)
	}

	rr, out = env.do(http.MethodPost, "/api/reset-password", `{"token":"`+token+`","newPassword":"new password"}`, "")
	if rr.Code != http.StatusOK || out["message"] != "Password reset successful" {
		t.Fatalf("reset: %d %v", rr.Code, out)
	}

	rr, out = env.do(http.MethodPost, "/api/reset-password", `{"token":"`+token+`","newPassword":"third password"}`, "")
	if rr.Code != http.StatusBadRequest || out["error"] != "Invalid or expired token" {
		t.Fatalf("reuse: %d %v", rr.Code, out)
	}

	rr, _ = env.do(http.MethodPost, "/api/user/login", `{"email":"ann@example.com","password":"new password"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login with new password: %d", rr.Code)
	}
	if got := len(env.outbox.messages()); got != 2 {
		t.Fatalf("sent %d messages, want reset + confirmation", got)
	}
}

func TestForgotPasswordMailFailureLooksLikeSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login("ann@example.com", "old password")
	env.outbox.fail(errors.New("smtp down"))

	known, knownOut := env.do(http.MethodPost, "/api/forgot-password", `{"email":"ann@example.com"}`, "")
	unknown, unknownOut := env.do(http.MethodPost, "/api/forgot-password", `{"email":"nobody@example.com"}`, "")
	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("status known=%d unknown=%d, want 200 for both", known.Code, unknown.Code)
	}
	if knownOut["message"] != forgotPasswordMessage || unknownOut["message"] != forgotPasswordMessage {
		t.Fatalf("bodies differ: %v vs %v", knownOut, unknownOut)
	}
}

func TestResetPasswordMissingFields(t *testing.T) {
	env := newTestEnv(t, nil)
	rr, out := env.do(http.MethodPost, "/api/reset-password", `{}`, "")
	if rr.Code != http.StatusBadRequest || out["error"] != "Missing required fields" {
		t.Fatalf("status %d body %v", rr.Code, out)
	}
	details, _ := out["details"].(map[string]any)
	if details["token"] != "Token is required" || details["newPassword"] != "New password is required" {
		t.Fatalf("details = %v", details)
	}
}

func TestContact(t *testing.T) {
	env := newTestEnv(t, nil)

	rr, out := env.do(http.MethodPost, "/api/contact", `{"name":"Ann"}`, "")
	if rr.Code != http.StatusBadRequest || out["error"] != "Missing required fields" {
		t.Fatalf("missing fields: %d %v", rr.Code, out)
	}

	rr, out = env.do(http.MethodPost, "/api/contact",
		`{"name":"Ann","email":"nope","subject":"Hi","message":"Hello"}`, "")
	if rr.Code != http.StatusBadRequest || out["error"] != "invalid email format" {
		t.Fatalf("bad email: %d %v", rr.Code, out)
	}

	rr, out = env.do(http.MethodPost, "/api/contact",
		`{"name":"Ann","email":"ann@example.com","subject":"Hi","message":"<b>Hello</b>"}`, "")
	if rr.Code != http.StatusOK || out["message"] != "Email sent successfully!" {
		t.Fatalf("contact: %d %v", rr.Code, out)
	}
	sent := env.outbox.messages()
	if len(sent) != 1 || sent[0].To != "inbox@example.com" || sent[0].ReplyTo != "ann@example.com" {
		t.Fatalf("sent = %+v", sent)
	}
	if strings.Contains(sent[0].HTML, "<b>Hello</b>") {
		t.Fatal("visitor HTML must be escaped")
	}
}

func TestContactDisabledWithoutInbox(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.ContactInbox = "" })
	rr, _ := env.do(http.MethodPost, "/api/contact",
		`{"name":"Ann","email":"ann@example.com","subject":"Hi","message":"Hello"}`, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRateLimitOnPublicEndpoints(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.RateLimitPerMinute = 2 })
	body := `{"email":"nobody@example.com"}`
	for i := 0; i < 2; i++ {
		if rr, _ := env.do(http.MethodPost, "/api/forgot-password", body, ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rr.Code)
		}
	}
	rr, out := env.do(http.MethodPost, "/api/forgot-password", body, "")
	if rr.Code != http.StatusTooManyRequests || out["success"] != false {
		t.Fatalf("third request: %d %v", rr.Code, out)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if rr, _ := env.do(http.MethodGet, "/api/health", "", ""); rr.Code != http.StatusOK {
		t.Fatal("health must not be rate limited")
	}
}

func TestMalformedBody(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login("ann@example.com", "correct horse")

	for _, body := range []string{"not json", `{"a":1}{"b":2}`, `[1,2]`} {
		rr, out := env.do(http.MethodPost, "/api/transactions", body, token)
		if rr.Code != http.StatusBadRequest || out["error"] != "request body must be a JSON object" {
			t.Errorf("body %q: %d %v", body, rr.Code, out)
		}
	}

	huge := `{"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	if rr, _ := env.do(http.MethodPost, "/api/transactions", huge, token); rr.Code != http.StatusBadRequest {
		t.Fatalf("oversized body: %d", rr.Code)
	}
}

type brokenLedger struct{}

func (brokenLedger) Chronological(context.Context, core.Identity) ([]core.Transaction, error) {
	return nil, core.Persistence("list transactions", errors.New("disk on fire"))
}

func (brokenLedger) Add(context.Context, core.Identity, core.EntryInput) (core.Transaction, error) {
	return core.Transaction{}, core.Persistence("insert transaction", errors.New("disk on fire"))
}

func (brokenLedger) Update(context.Context, core.Identity, string, core.EntryInput) (core.Transaction, error) {
	return core.Transaction{}, core.ErrNotFound
}

func (brokenLedger) Delete(context.Context, core.Identity, string) error {
	return core.ErrNotFound
}

func TestPersistenceFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Ledger = brokenLedger{} })
	token := env.login("ann@example.com", "correct horse")

	for _, p := range []string{"/api/transactions", "/api/summary", "/api/chart/data"} {
		rr, out := env.do(http.MethodGet, p, "", token)
		if rr.Code != http.StatusInternalServerError || out["error"] != "Internal server error" {
			t.Errorf("%s: %d %v", p, rr.Code, out)
		}
		if strings.Contains(rr.Body.String(), "disk") {
			t.Errorf("%s: datastore text leaked: %s", p, rr.Body)
		}
	}
}

func TestExpiredCredential(t *testing.T) {
	env := newTestEnv(t, nil)
	issuer := auth.NewIssuer(testSecret, -time.Minute)
	expired, _, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatal(err)
	}
	rr, out := env.do(http.MethodGet, "/api/transactions", "", expired)
	if rr.Code != http.StatusUnauthorized || out["error"] != "Token expired" {
		t.Fatalf("expired: %d %v", rr.Code, out)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodGet, "/api/health", "", "")
	rr, out := env.do(http.MethodGet, "/api/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if num(path(out, "requests", "total")) != "2" {
		t.Fatalf("requests = %v", out["requests"])
	}
}
