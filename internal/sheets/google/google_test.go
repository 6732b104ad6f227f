package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

type fakeSheets struct {
	mu       sync.Mutex
	header   [][]any
	appended [][]any
	gets     int
	fail     bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}

	var body struct {
		Values [][]any `json:"values"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		f.gets++
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "A1:I1", "values": f.header})
	case r.Method == http.MethodPut:
		f.header = body.Values
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRows": 1})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		f.appended = append(f.appended, body.Values...)
		row := len(f.appended) + 1
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "'2024 Audit'!A" + strconv.Itoa(row) + ":I" + strconv.Itoa(row)},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewWithEndpoint(context.Background(), srv.URL+"/", Config{SpreadsheetID: "sid", AuditSheet: "2024 Audit"})
	if err != nil {
		t.Fatalf("NewWithEndpoint: %v", err)
	}
	return c, fake
}

func sampleEvent() core.LedgerEvent {
	kind, _ := core.ExpenseKind("food")
	return core.LedgerEvent{
		Action: core.ActionAdd,
		UserID: "alice",
		Transaction: core.Transaction{
			ID:          "t1",
			Description: "lunch",
			Amount:      core.Money{Cents: 1050},
			Kind:        kind,
			Date:        core.NewDate(2024, 3, 9),
		},
		Timestamp: time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC),
	}
}

func TestAppendEventWritesHeaderOnce(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	ref, err := c.AppendEvent(ctx, sampleEvent())
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if ref != "'2024 Audit'!A2:I2" {
		t.Errorf("ref = %q", ref)
	}
	if _, err := c.AppendEvent(ctx, sampleEvent()); err != nil {
		t.Fatalf("second AppendEvent: %v", err)
	}

	if fake.gets != 1 {
		t.Errorf("header checked %d times, want 1", fake.gets)
	}
	if len(fake.header) != 1 || len(fake.header[0]) != len(sheets.Header) || fake.header[0][0] != "Timestamp" {
		t.Errorf("unexpected header: %v", fake.header)
	}
	if len(fake.appended) != 2 {
		t.Fatalf("appended %d rows, want 2", len(fake.appended))
	}
	row := fake.appended[0]
	if row[1] != "add" || row[6] != "food" || row[8] != "10.50" {
		t.Errorf("unexpected row: %v", row)
	}
}

func TestAppendEventError(t *testing.T) {
	c, fake := newTestClient(t)
	fake.fail = true
	if _, err := c.AppendEvent(context.Background(), sampleEvent()); err == nil {
		t.Fatal("expected error from failing backend")
	}

	fake.fail = false
	if _, err := c.AppendEvent(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("header retry after failure: %v", err)
	}
}

func TestAppendEventNilService(t *testing.T) {
	c := &Client{spreadsheetID: "sid", auditSheet: "x"}
	if _, err := c.AppendEvent(context.Background(), sampleEvent()); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestNewMissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := loadCredentials(Config{}); err == nil {
		t.Error("expected error without credentials")
	}

	b, err := loadCredentials(Config{CredentialsJSON: `{"type":"service_account"}`, CredentialsFile: "/nonexistent"})
	if err != nil || !strings.Contains(string(b), "service_account") {
		t.Errorf("inline JSON should win: %s %v", b, err)
	}

	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	b, err = loadCredentials(Config{})
	if err != nil || string(b) != `{"from":"file"}` {
		t.Errorf("fallback file: %s %v", b, err)
	}

	if _, err := loadCredentials(Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Error("expected error for unreadable file")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Audit", 2024, "2024 Audit"},
		{"2023 Audit", 2024, "2023 Audit"},
		{"  Audit  ", 2025, "2025 Audit"},
		{"", 2024, ""},
		{"123 Audit", 2024, "2024 123 Audit"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestDefaultSheetName(t *testing.T) {
	c := newWithService(nil, Config{SpreadsheetID: " sid "}, 2026)
	if c.SheetName() != "2026 Audit" || c.spreadsheetID != "sid" {
		t.Errorf("unexpected client: %q %q", c.SheetName(), c.spreadsheetID)
	}
}
