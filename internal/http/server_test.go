package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"timetracker/internal/auth"
	"timetracker/internal/core"
	"timetracker/internal/editor"
	"timetracker/internal/store"
	"timetracker/internal/tables"
	"timetracker/internal/tables/memory"
	"timetracker/internal/tracker"
)

var testNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

const (
	testEmail    = "ada@example.com"
	testPassword = "correct horse"
)

// switchableEntries fails writes while err is set.
type switchableEntries struct {
	tracker.EntryRepository
	err error
}

func (s *switchableEntries) Save(ctx context.Context, e core.FlatTimeEntry) error {
	if s.err != nil {
		return s.err
	}
	return s.EntryRepository.Save(ctx, e)
}

func (s *switchableEntries) Delete(ctx context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	return s.EntryRepository.Delete(ctx, id)
}

type testServer struct {
	*Server
	entries *switchableEntries
	cookie  *http.Cookie
	ready   error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := memory.New()
	norm := core.DateNormalizer{Now: func() time.Time { return testNow }, Location: time.UTC}
	entries := &switchableEntries{EntryRepository: store.NewEntryStore(mem, "", store.WithNormalizer(norm))}

	svc, err := tracker.NewService(tracker.Config{
		Entries:    entries,
		Categories: store.NewCategoryStore(mem, "", nil),
		Now:        func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	provider, err := auth.NewLocalProvider(map[string]string{testEmail: string(hash)})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	sessions, _, err := auth.NewSessions("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}

	ts := &testServer{entries: entries}
	srv, err := NewServer(":0", Deps{
		Tracker:  svc,
		Editors:  editor.NewManager(editor.ManagerConfig{}),
		Auth:     provider,
		Sessions: sessions,
		Ready:    func(context.Context) error { return ts.ready },
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	ts.Server = srv

	token, _, err := sessions.Issue(tables.Identity{UserID: auth.LocalUserID(testEmail), Email: testEmail})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ts.cookie = &http.Cookie{Name: auth.CookieName, Value: token}
	return ts
}

func (ts *testServer) do(method, target string, form url.Values, signedIn bool) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("HX-Request", "true")
	if signedIn {
		req.AddCookie(ts.cookie)
	}
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/tracker", nil)
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	rr = ts.do(http.MethodPost, "/entries", url.Values{"description": {"x"}}, false)
	if rr.Code != http.StatusUnauthorized || rr.Header().Get("HX-Redirect") != "/login" {
		t.Fatalf("htmx status=%d hx-redirect=%q", rr.Code, rr.Header().Get("HX-Redirect"))
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/login", nil, false)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Sign in") {
		t.Fatalf("login page status=%d", rr.Code)
	}

	rr = ts.do(http.MethodPost, "/login", url.Values{"email": {testEmail}, "password": {"wrong"}}, false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid email or password.") {
		t.Errorf("missing error message: %s", rr.Body.String())
	}

	rr = ts.do(http.MethodPost, "/login", url.Values{"email": {"ADA@example.com"}, "password": {testPassword}}, false)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/tracker" {
		t.Fatalf("good login status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	if !strings.Contains(rr.Header().Get("Set-Cookie"), auth.CookieName+"=") {
		t.Errorf("session cookie not set")
	}

	rr = ts.do(http.MethodGet, "/login", nil, true)
	if rr.Code != http.StatusSeeOther {
		t.Errorf("signed-in user should skip the login page, got %d", rr.Code)
	}
}

func TestTrackerPage(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/", nil, true)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/tracker" {
		t.Fatalf("root status=%d", rr.Code)
	}

	rr = ts.do(http.MethodGet, "/tracker", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("tracker status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"March 2024", "Tuesday, March 5, 2024", "No time logged", testEmail} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}

	rr = ts.do(http.MethodGet, "/ui/month?month=2024-04&date=2024-03-05", nil, true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "April 2024") {
		t.Fatalf("month partial status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "<html") {
		t.Errorf("partial should not contain the page layout")
	}
}

func TestSaveEntryAndExport(t *testing.T) {
	ts := newTestServer(t)

	form := url.Values{
		"date":        {"05/03/2024"},
		"description": {`standup "daily"`},
		"category":    {"1"},
		"hours":       {"1"},
		"minutes":     {"30"},
		"month":       {"2024-03"},
	}
	rr := ts.do(http.MethodPost, "/entries", form, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventEntrySaved) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	if rr.Header().Get("HX-Retarget") != "#month" {
		t.Errorf("HX-Retarget = %q", rr.Header().Get("HX-Retarget"))
	}
	if !strings.Contains(rr.Body.String(), "1h 30m") {
		t.Errorf("day list missing duration: %s", rr.Body.String())
	}

	rr = ts.do(http.MethodGet, "/export.csv", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="time-export-2024-03-05.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	want := "Date,Category,Description,Hours\n2024-03-05,Kundemøde,\"standup \"\"daily\"\"\",1.50"
	if rr.Body.String() != want {
		t.Errorf("csv = %q, want %q", rr.Body.String(), want)
	}

	rr = ts.do(http.MethodGet, "/metrics", nil, false)
	if !strings.Contains(rr.Body.String(), "timetracker_entries_saved_total 1") {
		t.Errorf("metrics missing saved counter:\n%s", rr.Body.String())
	}
}

func TestSaveFailureRaisesAlert(t *testing.T) {
	ts := newTestServer(t)
	ts.entries.err = errors.New("permission denied for table time_tracker")

	rr := ts.do(http.MethodPost, "/entries", url.Values{"date": {"2024-03-05"}, "description": {"x"}, "minutes": {"5"}}, true)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, EventShowAlert) {
		t.Fatalf("HX-Trigger = %q", trigger)
	}
	if !strings.Contains(trigger, "Failed to save entry: permission denied for table time_tracker. Check backend keys") {
		t.Errorf("alert text = %q", trigger)
	}
}

func TestRejectedWritesAreNotBackendFailures(t *testing.T) {
	ts := newTestServer(t)
	form := url.Values{"date": {"2024-03-05"}, "description": {"x"}, "minutes": {"5"}}

	ts.entries.err = fmt.Errorf("save entry: %w", errors.Join(core.ErrInvalidEntry, core.ErrInvalidDate))
	rr := ts.do(http.MethodPost, "/entries", form, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid entry status=%d, want 400", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, EventShowAlert) || strings.Contains(trigger, "Check backend keys") {
		t.Errorf("HX-Trigger = %q", trigger)
	}

	ts.entries.err = tables.NotOwned("upsert", tables.EntriesTable, "e1")
	rr = ts.do(http.MethodPost, "/entries", form, true)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign entry status=%d, want 403", rr.Code)
	}
	rr = ts.do(http.MethodDelete, "/entries/e1", nil, true)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign delete status=%d, want 403", rr.Code)
	}
}

var sessionPath = regexp.MustCompile(`/editor/([0-9a-f-]{36})/save`)

func TestEditorFlow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/editor", url.Values{"date": {"2024-03-05"}, "month": {"2024-03"}}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("open status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), editor.TitleNew) {
		t.Errorf("new editor title missing")
	}
	m := sessionPath.FindStringSubmatch(rr.Body.String())
	if m == nil {
		t.Fatalf("no session id in editor markup: %s", rr.Body.String())
	}
	sid := m[1]
	backdrop := `<div class="backdrop" hx-post="/editor/` + sid + `/close" hx-trigger="click target:.backdrop"`
	if !strings.Contains(rr.Body.String(), backdrop) {
		t.Errorf("a click on the backdrop must close the editor: %s", rr.Body.String())
	}

	rr = ts.do(http.MethodGet, "/editor/"+sid+"/clock", nil, true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "00:00:00") {
		t.Fatalf("clock status=%d body=%s", rr.Code, rr.Body.String())
	}

	form := url.Values{"description": {"review"}, "category": {"2"}, "hours": {"0"}, "minutes": {"45"}, "month": {"2024-03"}}
	rr = ts.do(http.MethodPost, "/editor/"+sid+"/save", form, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventEditorClosed) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	if !strings.Contains(rr.Body.String(), "review") {
		t.Errorf("saved entry not listed")
	}

	rr = ts.do(http.MethodPost, "/editor/"+sid+"/start", nil, true)
	if rr.Code != http.StatusNotFound {
		t.Errorf("closed session status=%d, want 404", rr.Code)
	}

	rr = ts.do(http.MethodPost, "/editor", url.Values{"date": {"2024-03-05"}, "id": {"missing"}}, true)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown entry status=%d, want 404", rr.Code)
	}
}

func TestEditorKeepsSessionOnFailedSave(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/editor", url.Values{"date": {"2024-03-05"}}, true)
	sid := sessionPath.FindStringSubmatch(rr.Body.String())[1]

	ts.entries.err = errors.New("offline")
	rr = ts.do(http.MethodPost, "/editor/"+sid+"/save", url.Values{"description": {"x"}, "minutes": {"5"}}, true)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}

	ts.entries.err = nil
	rr = ts.do(http.MethodPost, "/editor/"+sid+"/save", url.Values{"description": {"x"}, "minutes": {"5"}}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("retry status=%d", rr.Code)
	}
}

func TestDeleteEntry(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/entries", url.Values{"id": {"e1"}, "date": {"2024-03-05"}, "description": {"gone soon"}, "minutes": {"10"}}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d", rr.Code)
	}

	rr = ts.do(http.MethodDelete, "/entries/e1?month=2024-03&date=2024-03-05", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "gone soon") {
		t.Errorf("deleted entry still listed")
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventEntryDeleted) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/healthz", nil, false)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(http.MethodGet, "/readyz", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}

	ts.ready = errors.New("connection refused")
	rr = ts.do(http.MethodGet, "/readyz", nil, false)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing backend status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "connection refused") {
		t.Errorf("readyz body = %s", rr.Body.String())
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(http.MethodGet, "/healthz", nil, false)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing nosniff")
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q", rr.Header().Get("X-Request-ID"))
	}
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(http.MethodPost, "/logout", url.Values{}, true)
	if rr.Header().Get("HX-Redirect") != "/login" {
		t.Fatalf("HX-Redirect = %q", rr.Header().Get("HX-Redirect"))
	}
	if !strings.Contains(rr.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Errorf("cookie not cleared: %q", rr.Header().Get("Set-Cookie"))
	}
}
