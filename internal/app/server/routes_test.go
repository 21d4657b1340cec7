package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"

	"iplog/internal/config"
	"iplog/internal/database"
	"iplog/internal/service"
)

type fakeScheduler struct {
	mu       sync.Mutex
	restarts int
	next     time.Time
}

func (f *fakeScheduler) Restart(context.Context) {
	f.mu.Lock()
	f.restarts++
	f.mu.Unlock()
}

func (f *fakeScheduler) NextSweepTimestamp() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}

func (f *fakeScheduler) restartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restarts
}

type testServer struct {
	handler   http.Handler
	scheduler *fakeScheduler
	now       time.Time
}

func setupServer(t *testing.T, opts ...Option) testServer {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.SetupDB(database.WithDialector(sqlite.Open(fmt.Sprintf("file:srv_%s?mode=memory&cache=shared", name))))
	if err != nil {
		t.Fatalf("setup database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	settings := config.NewSettings(database.NewConfigStore(db))
	records := database.NewRecordStore(db, database.WithRecordClock(clock))
	ips := service.NewIPService(records, settings, service.WithClock(clock))
	scheduler := &fakeScheduler{}

	opts = append([]Option{WithClock(clock)}, opts...)
	return testServer{
		handler:   New(ips, settings, scheduler, opts...).Handler(),
		scheduler: scheduler,
		now:       now,
	}
}

func (ts testServer) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var payload map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, target, rec.Body.String(), err)
		}
	}
	return rec, payload
}

func TestAddAndCheckIP(t *testing.T) {
	ts := setupServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/ip/add?ip=192.168.1.10", "")
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("add: status %d body %v", rec.Code, body)
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["ip"] != "192.168.1.10" {
		t.Fatalf("add: unexpected data %v", body["data"])
	}

	rec, body = ts.do(t, http.MethodGet, "/api/ip/add?ip=192.168.1.10", "")
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("duplicate add: status %d body %v", rec.Code, body)
	}
	if again := body["data"].(map[string]any); again["id"] != data["id"] {
		t.Fatalf("duplicate add returned a different record: %v vs %v", again, data)
	}

	rec, body = ts.do(t, http.MethodGet, "/api/ip/check?ip=192.168.1.10", "")
	if rec.Code != http.StatusOK || body["exists"] != true {
		t.Fatalf("check existing: status %d body %v", rec.Code, body)
	}

	rec, body = ts.do(t, http.MethodGet, "/api/ip/check?ip=10.0.0.99", "")
	if rec.Code != http.StatusOK || body["exists"] != false {
		t.Fatalf("check missing: status %d body %v", rec.Code, body)
	}
}

func TestAddIPRejectsInvalidInput(t *testing.T) {
	ts := setupServer(t)

	for _, target := range []string{
		"/api/ip/add",
		"/api/ip/add?ip=",
		"/api/ip/add?ip=999.1.1.1",
		"/api/ip/add?ip=1.2.3",
		"/api/ip/add?ip=abc",
	} {
		rec, body := ts.do(t, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest || body["success"] != false {
			t.Fatalf("%s: status %d body %v, want 400", target, rec.Code, body)
		}
	}

	rec, _ := ts.do(t, http.MethodGet, "/api/ip/check", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("check without ip: status %d, want 400", rec.Code)
	}
}

func TestListDeleteAndClear(t *testing.T) {
	ts := setupServer(t)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		if rec, _ := ts.do(t, http.MethodGet, "/api/ip/add?ip="+ip, ""); rec.Code != http.StatusOK {
			t.Fatalf("add %s: status %d", ip, rec.Code)
		}
	}

	rec, body := ts.do(t, http.MethodGet, "/api/ip/list", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	list, ok := body["data"].([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("list: expected two records, got %v", body["data"])
	}
	first := list[0].(map[string]any)
	if _, ok := first["expires_at"]; !ok {
		t.Fatalf("list entries must carry expires_at: %v", first)
	}

	id := fmt.Sprintf("%.0f", first["id"].(float64))
	rec, body = ts.do(t, http.MethodDelete, "/api/ip/delete/"+id, "")
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("delete: status %d body %v", rec.Code, body)
	}

	rec, _ = ts.do(t, http.MethodDelete, "/api/ip/delete/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: status %d, want 404", rec.Code)
	}

	rec, _ = ts.do(t, http.MethodDelete, "/api/ip/delete/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("delete with bad id: status %d, want 400", rec.Code)
	}

	rec, body = ts.do(t, http.MethodDelete, "/api/ip/clear", "")
	if rec.Code != http.StatusOK || body["deletedCount"] != float64(1) {
		t.Fatalf("clear: status %d body %v", rec.Code, body)
	}

	rec, body = ts.do(t, http.MethodGet, "/api/ip/list", "")
	if list, _ := body["data"].([]any); rec.Code != http.StatusOK || len(list) != 0 {
		t.Fatalf("list after clear: status %d body %v", rec.Code, body)
	}
}

func TestTimeoutRoutes(t *testing.T) {
	ts := setupServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/ip/timeout", "")
	if rec.Code != http.StatusOK || body["timeout"] != float64(3600) {
		t.Fatalf("timeout: status %d body %v", rec.Code, body)
	}

	for _, target := range []string{"/api/ip/set", "/api/ip/set?timeout=abc", "/api/ip/set?timeout=0", "/api/ip/set?timeout=-5", "/api/ip/set?timeout=10000000000"} {
		if rec, _ := ts.do(t, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", target, rec.Code)
		}
	}

	rec, body = ts.do(t, http.MethodGet, "/api/ip/set?timeout=120", "")
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("set timeout: status %d body %v", rec.Code, body)
	}

	_, body = ts.do(t, http.MethodGet, "/api/ip/timeout", "")
	if body["timeout"] != float64(120) {
		t.Fatalf("timeout after set = %v, want 120", body["timeout"])
	}
}

func TestAutoCleanupRoutes(t *testing.T) {
	ts := setupServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/ip/auto-cleanup", "")
	if rec.Code != http.StatusOK || body["enabled"] != true || body["interval"] != float64(300) {
		t.Fatalf("auto cleanup defaults: status %d body %v", rec.Code, body)
	}

	bad := []string{
		`not json`,
		`{"enabled":"yes","interval":60}`,
		`{"enabled":true,"interval":"60"}`,
		`{"enabled":true,"interval":29}`,
		`{"enabled":true,"interval":45.5}`,
		`{"interval":60}`,
		`{"enabled":true}`,
	}
	for _, payload := range bad {
		rec, _ := ts.do(t, http.MethodPost, "/api/ip/auto-cleanup", payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("payload %s: status %d, want 400", payload, rec.Code)
		}
	}
	if n := ts.scheduler.restartCount(); n != 0 {
		t.Fatalf("rejected updates must not restart the scheduler, got %d restarts", n)
	}

	rec, body = ts.do(t, http.MethodPost, "/api/ip/auto-cleanup", `{"enabled":false,"interval":60}`)
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("update: status %d body %v", rec.Code, body)
	}
	if n := ts.scheduler.restartCount(); n != 1 {
		t.Fatalf("scheduler restarts = %d, want 1", n)
	}

	_, body = ts.do(t, http.MethodGet, "/api/ip/auto-cleanup", "")
	if body["enabled"] != false || body["interval"] != float64(60) {
		t.Fatalf("auto cleanup after update: %v", body)
	}
}

func TestNextCleanup(t *testing.T) {
	ts := setupServer(t)

	_, body := ts.do(t, http.MethodGet, "/api/ip/next-cleanup", "")
	if body["nextCleanupTime"] != float64(0) || body["remainingSeconds"] != float64(0) {
		t.Fatalf("stopped scheduler: %v", body)
	}

	next := ts.now.Add(90 * time.Second)
	ts.scheduler.mu.Lock()
	ts.scheduler.next = next
	ts.scheduler.mu.Unlock()

	_, body = ts.do(t, http.MethodGet, "/api/ip/next-cleanup", "")
	if body["nextCleanupTime"] != float64(next.UnixMilli()) {
		t.Fatalf("nextCleanupTime = %v, want %d", body["nextCleanupTime"], next.UnixMilli())
	}
	if body["remainingSeconds"] != float64(90) {
		t.Fatalf("remainingSeconds = %v, want 90", body["remainingSeconds"])
	}
}

func TestHealthCORSAndNotFound(t *testing.T) {
	ts := setupServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("health: status %d body %v", rec.Code, body)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("missing CORS header, got %q", got)
	}

	rec, _ = ts.do(t, http.MethodOptions, "/api/ip/list", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: status %d, want 204", rec.Code)
	}

	rec, body = ts.do(t, http.MethodGet, "/api/version", "")
	if rec.Code != http.StatusOK || body["buildVersion"] != "dev" {
		t.Fatalf("version: status %d body %v", rec.Code, body)
	}

	rec, body = ts.do(t, http.MethodGet, "/api/unknown", "")
	if rec.Code != http.StatusNotFound || body["error"] != "API not found" {
		t.Fatalf("unknown route: status %d body %v", rec.Code, body)
	}
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>iplog</html>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	ts := setupServer(t, WithStaticDir(dir))

	rec, _ := ts.do(t, http.MethodGet, "/app.js", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "console.log") {
		t.Fatalf("asset: status %d body %q", rec.Code, rec.Body.String())
	}

	rec, _ = ts.do(t, http.MethodGet, "/settings", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "iplog") {
		t.Fatalf("spa fallback: status %d body %q", rec.Code, rec.Body.String())
	}

	rec, _ = ts.do(t, http.MethodGet, "/api/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("api paths must not fall back to index.html, got %d", rec.Code)
	}
}
