package httpapi_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/adapters/sqlite"
	"github.com/example/shiftdesk/internal/app"
	"github.com/example/shiftdesk/internal/clock"
	"github.com/example/shiftdesk/internal/core/events"
	"github.com/example/shiftdesk/internal/core/fee"
	"github.com/example/shiftdesk/internal/core/ledger"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/db"
	"github.com/example/shiftdesk/internal/httpapi"
	"github.com/example/shiftdesk/internal/ports/primary"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, events.Event) error { return nil }

type recordingQueue struct {
	mu   sync.Mutex
	reqs []primary.ExitStatsRequest
	full bool
}

func (q *recordingQueue) Enqueue(req primary.ExitStatsRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.reqs = append(q.reqs, req)
	return true
}

type fixture struct {
	srv   *httptest.Server
	clock *clock.Manual
	queue *recordingQueue
}

type fixtureOpts struct {
	secret    string
	withQueue bool
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewManual(t0)
	tx := sqlite.NewTransactor(conn)
	shifts := sqlite.NewShiftRepository(conn)
	ledgerRepo := sqlite.NewLedgerRepository(conn)
	slot := app.NewShiftSlot()
	notifier := app.NewNotifier(nopPublisher{}, clk, logger)

	registry := app.NewShiftRegistry(shifts, tx, slot, notifier, clk, logger)
	linkage := app.NewLinkageService(registry, ledgerRepo, sqlite.NewLiveStatsRepository(conn), tx, notifier, clk, logger)
	reports := app.NewReportService(shifts, ledgerRepo, clk, logger)
	handovers := app.NewHandoverCoordinator(registry, linkage, reports, sqlite.NewShiftChangeRepository(conn),
		tx, slot, notifier, clk, logger, app.DefaultRecoveryPolicy())
	ledgerSvc := app.NewLedgerService(ledgerRepo, linkage, fee.NewCalculator(), clk, logger)

	svc := httpapi.Services{
		Shifts:    registry,
		Handovers: handovers,
		Linkage:   linkage,
		Reports:   reports,
		Ledger:    ledgerSvc,
	}
	f := &fixture{clock: clk}
	if opts.withQueue {
		f.queue = &recordingQueue{}
		svc.ExitQueue = f.queue
	}

	server := httpapi.NewServer(svc, httpapi.Options{Metrics: true, JWTSecret: opts.secret}, logger)
	f.srv = httptest.NewServer(server.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&v); err != nil {
		t.Fatalf("failed to decode %s: %v", body, err)
	}
	return v
}

type errorEnvelope struct {
	Error struct {
		Code  string `json:"code"`
		Field string `json:"field"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	status, body := f.do(t, http.MethodGet, "/health", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	got := decode[map[string]string](t, body)
	if got["status"] != "ok" {
		t.Errorf("expected status ok, got %q", got["status"])
	}
	if !strings.HasPrefix(got["version"], "shiftdesk ") {
		t.Errorf("unexpected version %q", got["version"])
	}

	status, _ = f.do(t, http.MethodGet, "/metrics", "")
	if status != http.StatusOK {
		t.Errorf("expected metrics 200, got %d", status)
	}
}

func TestShiftLifecycle(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	status, _ := f.do(t, http.MethodGet, "/api/v1/shifts/active", "")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 with no active shift, got %d", status)
	}

	status, body := f.do(t, http.MethodPost, "/api/v1/shifts",
		`{"employee_id":"E1","employee_name":"Asha","opening_cash":"500.00"}`)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	started := decode[shift.Session](t, body)
	if started.ID != "SHIFT-0001" {
		t.Errorf("expected SHIFT-0001, got %q", started.ID)
	}
	if !started.OpeningCash.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected opening cash 500, got %s", started.OpeningCash)
	}

	status, body = f.do(t, http.MethodPost, "/api/v1/shifts",
		`{"employee_id":"E2","employee_name":"Ben","opening_cash":"0"}`)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for second active shift, got %d: %s", status, body)
	}

	status, body = f.do(t, http.MethodGet, "/api/v1/shifts/active", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if active := decode[shift.Session](t, body); active.ID != started.ID {
		t.Errorf("expected active %s, got %s", started.ID, active.ID)
	}

	f.clock.Advance(8 * time.Hour)
	status, body = f.do(t, http.MethodPost, "/api/v1/shifts/SHIFT-0001/end", `{"closing_cash":"750.50"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	ended := decode[shift.Session](t, body)
	if ended.Status != shift.StatusCompleted {
		t.Errorf("expected completed, got %s", ended.Status)
	}
	if !ended.ClosingCash.Valid || !ended.ClosingCash.Decimal.Equal(decimal.RequireFromString("750.50")) {
		t.Errorf("expected closing cash 750.50, got %v", ended.ClosingCash)
	}

	status, _ = f.do(t, http.MethodPost, "/api/v1/shifts/SHIFT-0001/end", `{"closing_cash":"1"}`)
	if status != http.StatusConflict {
		t.Errorf("expected 409 ending an ended shift, got %d", status)
	}

	status, body = f.do(t, http.MethodGet, "/api/v1/shifts?limit=10", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if list := decode[[]shift.Session](t, body); len(list) != 1 {
		t.Errorf("expected 1 shift, got %d", len(list))
	}

	status, _ = f.do(t, http.MethodGet, "/api/v1/shifts/SHIFT-0404", "")
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown shift, got %d", status)
	}
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		field  string
	}{
		{"unknown field", http.MethodPost, "/api/v1/shifts", `{"employee_id":"E1","employe_name":"x"}`, "body"},
		{"empty body", http.MethodPost, "/api/v1/shifts", ``, "body"},
		{"trailing data", http.MethodPost, "/api/v1/shifts", `{"employee_id":"E1"} {}`, "body"},
		{"bad limit", http.MethodGet, "/api/v1/shifts?limit=-3", ``, "limit"},
		{"missing employee", http.MethodPost, "/api/v1/shifts", `{"employee_name":"x","opening_cash":"0"}`, "employee_id"},
		{"missing vehicle number", http.MethodPost, "/api/v1/vehicles", `{"vehicle_type":"Trailer"}`, "vehicle_number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, tt.method, tt.path, tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", status, body)
			}
			env := decode[errorEnvelope](t, body)
			if env.Error.Code != "validation" {
				t.Errorf("expected validation code, got %q", env.Error.Code)
			}
			if env.Error.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, env.Error.Field)
			}
		})
	}
}

func TestHandoverOverHTTP(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	f.do(t, http.MethodPost, "/api/v1/shifts", `{"employee_id":"E1","employee_name":"Asha","opening_cash":"100"}`)
	f.clock.Advance(time.Hour)
	status, body := f.do(t, http.MethodPost, "/api/v1/vehicles",
		`{"vehicle_number":"mh12ab1234","vehicle_type":"trailer"}`)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	entry := decode[primary.LedgerResponse](t, body)
	if entry.Entry.ShiftSessionID != "SHIFT-0001" {
		t.Fatalf("expected entry linked to SHIFT-0001, got %q", entry.Entry.ShiftSessionID)
	}

	f.clock.Advance(7 * time.Hour)
	status, body = f.do(t, http.MethodPost, "/api/v1/shifts/SHIFT-0001/handover",
		`{"incoming_employee_id":"E2","incoming_employee_name":"Ben","closing_cash":"320.00","handover_notes":"gate 2 jammed"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	res := decode[primary.HandoverResult](t, body)
	if res.NewShift == nil || res.NewShift.ID != "SHIFT-0002" {
		t.Fatalf("expected new shift SHIFT-0002, got %+v", res.NewShift)
	}
	if !res.NewShift.OpeningCash.Equal(decimal.NewFromInt(320)) {
		t.Errorf("expected opening cash 320, got %s", res.NewShift.OpeningCash)
	}
	if res.SessionsRelinked != 1 {
		t.Errorf("expected 1 parked vehicle relinked, got %d", res.SessionsRelinked)
	}
	if res.Change == nil || res.Change.ID != "HO-0001" {
		t.Errorf("expected change HO-0001, got %+v", res.Change)
	}

	status, body = f.do(t, http.MethodGet, "/api/v1/handovers", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if changes := decode[[]shift.Change](t, body); len(changes) != 1 {
		t.Errorf("expected 1 change, got %d", len(changes))
	}

	status, body = f.do(t, http.MethodGet, "/api/v1/vehicles/"+entry.Entry.ID, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if got := decode[ledger.Entry](t, body); got.ShiftSessionID != "SHIFT-0002" {
		t.Errorf("expected parked entry relinked to SHIFT-0002, got %q", got.ShiftSessionID)
	}

	status, _ = f.do(t, http.MethodPost, "/api/v1/shifts/SHIFT-0001/handover",
		`{"incoming_employee_id":"E3","incoming_employee_name":"Cy","closing_cash":"0","handover_notes":"x"}`)
	if status != http.StatusConflict {
		t.Errorf("expected 409 handing over an ended shift, got %d", status)
	}
}

func TestVehicleExitAndStats(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	f.do(t, http.MethodPost, "/api/v1/shifts", `{"employee_id":"E1","employee_name":"Asha","opening_cash":"0"}`)
	_, body := f.do(t, http.MethodPost, "/api/v1/vehicles", `{"vehicle_number":"KA01","vehicle_type":"Trailer"}`)
	entry := decode[primary.LedgerResponse](t, body)

	f.clock.Advance(5 * time.Hour)
	status, body := f.do(t, http.MethodPost, "/api/v1/vehicles/"+entry.Entry.ID+"/exit", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	exited := decode[primary.LedgerResponse](t, body)
	if exited.Fee == nil || !exited.Fee.TotalFee.Equal(decimal.NewFromInt(225)) {
		t.Fatalf("expected one day trailer fee 225, got %+v", exited.Fee)
	}

	status, _ = f.do(t, http.MethodPost, "/api/v1/vehicles/"+entry.Entry.ID+"/exit", "")
	if status != http.StatusConflict {
		t.Errorf("expected 409 on second exit, got %d", status)
	}

	status, body = f.do(t, http.MethodPost, "/api/v1/vehicles/"+entry.Entry.ID+"/payment", `{"payment_mode":"upi"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	status, body = f.do(t, http.MethodGet, "/api/v1/shifts/SHIFT-0001/stats", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	stats := decode[primary.LiveStats](t, body)
	if stats.VehiclesEntered != 1 || stats.VehiclesExited != 1 {
		t.Errorf("expected 1 entered and 1 exited, got %+v", stats)
	}
	if !stats.Revenue.Equal(decimal.NewFromInt(225)) {
		t.Errorf("expected revenue 225, got %s", stats.Revenue)
	}

	status, body = f.do(t, http.MethodGet, "/api/v1/shifts/SHIFT-0001/report", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	status, body = f.do(t, http.MethodGet, "/api/v1/fees", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if sched := decode[fee.Schedule](t, body); len(sched.Rates) != 4 {
		t.Errorf("expected 4 rates, got %d", len(sched.Rates))
	}
}

func TestLinkageStatusCodes(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"no active shift", "/api/v1/link/session", `{"session_id":"abc"}`, http.StatusConflict, primary.CodeNoActiveShift},
		{"missing session", "/api/v1/link/session", `{}`, http.StatusBadRequest, primary.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, tt.path, tt.body)
			if status != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, status, body)
			}
			if res := decode[primary.LinkResult](t, body); res.ErrorCode != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, res.ErrorCode)
			}
		})
	}

	f.do(t, http.MethodPost, "/api/v1/shifts", `{"employee_id":"E1","employee_name":"Asha","opening_cash":"0"}`)
	status, body := f.do(t, http.MethodPost, "/api/v1/link/session", `{"session_id":"missing"}`)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", status, body)
	}
	if res := decode[primary.LinkResult](t, body); res.ErrorCode != primary.CodeSessionNotFound {
		t.Errorf("expected SESSION_NOT_FOUND, got %s", res.ErrorCode)
	}

	status, body = f.do(t, http.MethodPost, "/api/v1/reconcile", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
}

func TestLinkExitQueued(t *testing.T) {
	f := newFixture(t, fixtureOpts{withQueue: true})

	status, body := f.do(t, http.MethodPost, "/api/v1/link/exit",
		`{"session_id":"s1","shift_id":"SHIFT-0001","vehicle_type":"Trailer","duration_minutes":90}`)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", status, body)
	}
	if len(f.queue.reqs) != 1 || f.queue.reqs[0].DurationMinutes != 90 {
		t.Errorf("expected queued request, got %+v", f.queue.reqs)
	}

	status, _ = f.do(t, http.MethodPost, "/api/v1/link/exit", `{"session_id":"s1"}`)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 without shift id, got %d", status)
	}

	f.queue.full = true
	status, _ = f.do(t, http.MethodPost, "/api/v1/link/exit", `{"session_id":"s2","shift_id":"SHIFT-0001"}`)
	if status != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when queue is full, got %d", status)
	}
}

func TestOperatorAuth(t *testing.T) {
	const secret = "test-secret"
	f := newFixture(t, fixtureOpts{secret: secret})

	sign := func(method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
		tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return tok
	}
	valid := sign(jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
		Subject:   "op-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	expired := sign(jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
		Subject:   "op-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	wrongKey := sign(jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{Subject: "op-7"})
	noSubject := sign(jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"no subject", "Bearer " + noSubject, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.header != "" {
				headers = []string{"Authorization", tt.header}
			}
			status, body := f.do(t, http.MethodGet, "/api/v1/fees", "", headers...)
			if status != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, status, body)
			}
		})
	}

	status, _ := f.do(t, http.MethodGet, "/health", "")
	if status != http.StatusOK {
		t.Errorf("expected health to skip auth, got %d", status)
	}
}
