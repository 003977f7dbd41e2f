package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/boardsync-core/internal/auth"
	"github.com/nerrad567/boardsync-core/internal/board"
	"github.com/nerrad567/boardsync-core/internal/bundle"
	"github.com/nerrad567/boardsync-core/internal/events"
	"github.com/nerrad567/boardsync-core/internal/infrastructure/config"
	"github.com/nerrad567/boardsync-core/internal/infrastructure/database"
	"github.com/nerrad567/boardsync-core/internal/infrastructure/logging"
	"github.com/nerrad567/boardsync-core/internal/libsync"
	"github.com/nerrad567/boardsync-core/internal/transport"
	"github.com/nerrad567/boardsync-core/internal/transport/transporttest"
	_ "github.com/nerrad567/boardsync-core/migrations"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// memSource serves a firmware 8 catalog from memory.
type memSource struct {
	index []byte
	files map[string][]byte
}

func (s *memSource) FetchIndex(_ context.Context, major int) ([]byte, error) {
	if major != 8 {
		return nil, fmt.Errorf("no index for %d", major)
	}
	return s.index, nil
}

func (s *memSource) FetchFile(_ context.Context, _ int, path string) ([]byte, error) {
	data, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("no file %s", path)
	}
	return data, nil
}

func mpy(version string) []byte {
	return []byte("C\x05\x02\x1f" + version + "\x00\x0b__version__\x00")
}

func newMemSource(t *testing.T) *memSource {
	t.Helper()
	idx := bundle.Index{
		FirmwareMajor: 8,
		Modules: []bundle.Module{
			{Name: "neopixel", Version: "6.3.9", Files: []string{"neopixel.mpy"}, Dependencies: []string{"adafruit_pixelbuf"}},
			{Name: "adafruit_pixelbuf", Version: "2.0.3", Files: []string{"adafruit_pixelbuf.mpy"}},
			{Name: "adafruit_ticks", Version: "1.0.13", Files: []string{"adafruit_ticks.mpy"}},
		},
	}
	data, err := json.Marshal(idx)
	if err != nil {
		t.Fatal(err)
	}
	src := &memSource{index: data, files: map[string][]byte{}}
	for _, m := range idx.Modules {
		for _, f := range m.Files {
			src.files[f] = mpy(m.Version)
		}
	}
	return src
}

type testEnv struct {
	srv    *Server
	router http.Handler
	boards *board.Registry
	web    *transporttest.Channel
	usb    *transporttest.Channel
	feath  *transporttest.Board
}

// newTestEnv builds a server over a real registry, catalog manager,
// orchestrator and SQLite history. One web board (ABC123) runs a program
// importing neopixel; one USB board has no serial and firmware 7, for
// which there is no catalog.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	web := transporttest.NewChannel(transport.KindWeb)
	usb := transporttest.NewChannel(transport.KindUSB)

	feather := transporttest.NewBoard(transport.DeviceInfo{SerialNumber: "abc123", BoardName: "Feather", FirmwareVersion: "8.2.9"})
	feather.PutFile("/code.py", []byte("import board\nimport neopixel\n"))
	web.Attach(transport.Endpoint{Address: "192.168.1.40:80", Name: "cpy-feather", FallbackID: "cpy-feather"}, feather)

	pico := transporttest.NewBoard(transport.DeviceInfo{BoardName: "Pico", FirmwareVersion: "7.3.3"})
	usb.Attach(transport.Endpoint{Address: "/media/CIRCUITPY", Name: "CIRCUITPY", FallbackID: "/media/CIRCUITPY"}, pico)

	reg := board.NewRegistry([]transport.Channel{usb, web}, board.Options{ConnectTimeout: time.Second})
	t.Cleanup(func() { reg.Close() }) //nolint:errcheck // test cleanup

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "api.db"), BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	history := libsync.NewHistory(db.DB)

	catalogs := bundle.NewManager(newMemSource(t))
	orch := libsync.NewOrchestrator(catalogs)
	orch.SetHistory(history)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1"},
		WS:       config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret}},
		Logger:   log,
		Boards:   reg,
		Syncer:   orch,
		Catalogs: catalogs,
		History:  history,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := reg.Rescan(context.Background(), true); err != nil {
		t.Fatalf("Rescan() error = %v", err)
	}

	return &testEnv{srv: srv, router: srv.Handler(), boards: reg, web: web, usb: usb, feath: feather}
}

func token(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := auth.GenerateToken("tester", role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return tok
}

// do sends a request as role; an empty role sends no Authorization header.
func (e *testEnv) do(t *testing.T, role auth.Role, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	return v
}

func TestNew_RequiresDependencies(t *testing.T) {
	log := logging.Default()
	reg := board.NewRegistry(nil, board.Options{})
	catalogs := bundle.NewManager(&memSource{})
	orch := libsync.NewOrchestrator(catalogs)

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Boards: reg, Syncer: orch, Catalogs: catalogs}},
		{"no registry", Deps{Logger: log, Syncer: orch, Catalogs: catalogs}},
		{"no orchestrator", Deps{Logger: log, Boards: reg, Catalogs: catalogs}},
		{"no catalogs", Deps{Logger: log, Boards: reg, Syncer: orch}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}

	srv, err := New(Deps{Logger: log, Boards: reg, Syncer: orch, Catalogs: catalogs})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.Hub() == nil {
		t.Error("New() should create a hub when none is given")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "", http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[map[string]any](t, w)
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
	if resp["syncing"] != false {
		t.Errorf("syncing = %v, want false", resp["syncing"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
		method string
		target string
		want   int
	}{
		{"no header", "", http.MethodGet, "/api/v1/boards", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.MethodGet, "/api/v1/boards", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.MethodGet, "/api/v1/boards", http.StatusUnauthorized},
		{"viewer reads", "Bearer " + token(t, auth.RoleViewer), http.MethodGet, "/api/v1/boards", http.StatusOK},
		{"viewer cannot rescan", "Bearer " + token(t, auth.RoleViewer), http.MethodPost, "/api/v1/boards/rescan", http.StatusForbidden},
		{"viewer cannot sync", "Bearer " + token(t, auth.RoleViewer), http.MethodPost, "/api/v1/boards/ABC123/sync", http.StatusForbidden},
		{"viewer cannot refresh catalog", "Bearer " + token(t, auth.RoleViewer), http.MethodPost, "/api/v1/catalog/8/refresh", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestBoards_ListAndGet(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/boards", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	list := decode[struct {
		Boards []struct {
			Key           string `json:"key"`
			Editable      bool   `json:"editable"`
			FirmwareMajor int    `json:"firmware_major"`
		} `json:"boards"`
		Count int `json:"count"`
	}](t, w)
	if list.Count != 2 {
		t.Fatalf("count = %d, want 2 (%s)", list.Count, w.Body.String())
	}

	keys := map[string]bool{}
	for _, b := range list.Boards {
		keys[b.Key] = true
		if b.Key == "ABC123" && (b.FirmwareMajor != 8 || !b.Editable) {
			t.Errorf("ABC123 = %+v, want editable firmware 8", b)
		}
	}
	if !keys["ABC123"] || !keys["usb:/media/CIRCUITPY"] {
		t.Errorf("keys = %v", keys)
	}

	tests := []struct {
		name   string
		target string
		want   int
		key    string
	}{
		{"serial key", "/api/v1/boards/ABC123", http.StatusOK, "ABC123"},
		{"escaped fallback key", "/api/v1/boards/usb:%2Fmedia%2FCIRCUITPY", http.StatusOK, "usb:/media/CIRCUITPY"},
		{"unknown", "/api/v1/boards/NOPE", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, auth.RoleViewer, http.MethodGet, tt.target, "")
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if tt.key == "" {
				return
			}
			if got := decode[map[string]any](t, w)["key"]; got != tt.key {
				t.Errorf("key = %v, want %q", got, tt.key)
			}
		})
	}
}

func TestRescan(t *testing.T) {
	env := newTestEnv(t)

	env.usb.Detach("/media/CIRCUITPY")

	w := env.do(t, auth.RoleOperator, http.MethodPost, "/api/v1/boards/rescan?full=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	res := decode[map[string]any](t, w)
	if res["full"] != true || res["boards"] != float64(1) {
		t.Errorf("pass = %v, want full pass with 1 board", res)
	}

	if w := env.do(t, auth.RoleOperator, http.MethodPost, "/api/v1/boards/rescan?full=maybe", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad full status = %d, want 400", w.Code)
	}
}

func TestDiffAndSync(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, auth.RoleViewer, http.MethodPost, "/api/v1/boards/ABC123/diff", "")
	if w.Code != http.StatusOK {
		t.Fatalf("diff status = %d (%s)", w.Code, w.Body.String())
	}
	diff := decode[libsync.Report](t, w)
	if len(diff.Rows) != 2 {
		t.Fatalf("diff rows = %+v, want neopixel and adafruit_pixelbuf", diff.Rows)
	}
	for _, row := range diff.Rows {
		if row.Status != libsync.StatusMissing {
			t.Errorf("%s = %s, want missing", row.Module.Name, row.Status)
		}
	}
	if len(env.feath.Writes()) != 0 {
		t.Errorf("diff wrote %v", env.feath.Writes())
	}

	w = env.do(t, auth.RoleOperator, http.MethodPost, "/api/v1/boards/ABC123/sync", "")
	if w.Code != http.StatusOK {
		t.Fatalf("sync status = %d (%s)", w.Code, w.Body.String())
	}
	rep := decode[libsync.Report](t, w)
	if len(rep.Installed) != 2 {
		t.Errorf("installed = %v, want 2 modules", rep.Installed)
	}
	for _, row := range rep.Rows {
		if row.Status != libsync.StatusUpToDate {
			t.Errorf("%s = %s after sync, want up_to_date", row.Module.Name, row.Status)
		}
	}

	w = env.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/sync/runs?board=ABC123", "")
	if w.Code != http.StatusOK {
		t.Fatalf("runs status = %d (%s)", w.Code, w.Body.String())
	}
	runs := decode[struct {
		Runs  []libsync.Run `json:"runs"`
		Count int           `json:"count"`
	}](t, w)
	if runs.Count != 2 || runs.Runs[0].ID != rep.ID {
		t.Errorf("runs = %+v, want the sync first of 2", runs.Runs)
	}
}

func TestSync_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"unknown board", "/api/v1/boards/NOPE/diff", "", http.StatusNotFound},
		{"bad json", "/api/v1/boards/ABC123/diff", "{", http.StatusBadRequest},
		{"unknown mode", "/api/v1/boards/ABC123/diff", `{"mode":"everything"}`, http.StatusBadRequest},
		{"missing program", "/api/v1/boards/ABC123/diff", `{"path":"main.py"}`, http.StatusNotFound},
		{"unknown explicit module", "/api/v1/boards/ABC123/diff", `{"mode":"explicit","names":["ghost"]}`, http.StatusBadRequest},
		{"no catalog for firmware", "/api/v1/boards/usb:%2Fmedia%2FCIRCUITPY/diff", `{"mode":"installed"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, auth.RoleOperator, http.MethodPost, tt.target, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSync_ConcurrentSyncIsBusy(t *testing.T) {
	env := newTestEnv(t)

	second := transporttest.NewBoard(transport.DeviceInfo{SerialNumber: "DEF456", FirmwareVersion: "8.1.0"})
	second.PutFile("/code.py", []byte("import adafruit_ticks\n"))
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	second.SetWriteHook(func(string) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	})
	env.web.Attach(transport.Endpoint{Address: "192.168.1.41:80", FallbackID: "cpy-second"}, second)
	if _, err := env.boards.Rescan(context.Background(), false); err != nil {
		t.Fatalf("Rescan() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/boards/DEF456/sync", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth.RoleOperator))
	done := make(chan int, 1)
	go func() {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		done <- w.Code
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first sync never reached the board")
	}

	// Requests arriving mid-install are dropped straight away, whether they
	// target the busy board or another one.
	for _, target := range []string{
		"/api/v1/boards/DEF456/sync",
		"/api/v1/boards/DEF456/diff",
		"/api/v1/boards/ABC123/diff",
	} {
		t.Run(target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, target, nil)
			req.Header.Set("Authorization", "Bearer "+token(t, auth.RoleOperator))
			result := make(chan *httptest.ResponseRecorder, 1)
			go func() {
				w := httptest.NewRecorder()
				env.router.ServeHTTP(w, req)
				result <- w
			}()

			var w *httptest.ResponseRecorder
			select {
			case w = <-result:
			case <-time.After(2 * time.Second):
				t.Fatal("concurrent request was queued instead of rejected")
			}
			if w.Code != http.StatusConflict {
				t.Errorf("concurrent status = %d, want 409 (%s)", w.Code, w.Body.String())
			}
			if code := decode[Error](t, w).Code; code != ErrCodeBusy {
				t.Errorf("error code = %q, want %q", code, ErrCodeBusy)
			}
		})
	}

	// The first install is still parked in its first write.
	if writes := second.Writes(); len(writes) != 0 {
		t.Errorf("board writes while busy = %v, want none", writes)
	}

	close(release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first sync status = %d, want 200", code)
	}
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/catalog/8/modules", "")
	if w.Code != http.StatusOK {
		t.Fatalf("modules status = %d (%s)", w.Code, w.Body.String())
	}
	resp := decode[struct {
		FirmwareMajor int             `json:"firmware_major"`
		Modules       []bundle.Module `json:"modules"`
		Count         int             `json:"count"`
	}](t, w)
	if resp.FirmwareMajor != 8 || resp.Count != 3 || resp.Modules[0].Name != "adafruit_pixelbuf" {
		t.Errorf("catalog = %+v", resp)
	}

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"refresh", http.MethodPost, "/api/v1/catalog/8/refresh", http.StatusOK},
		{"bad major", http.MethodGet, "/api/v1/catalog/eight/modules", http.StatusBadRequest},
		{"zero major", http.MethodGet, "/api/v1/catalog/0/modules", http.StatusBadRequest},
		{"unavailable major", http.MethodGet, "/api/v1/catalog/7/modules", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, auth.RoleOperator, tt.method, tt.target, "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestListRuns(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/sync/runs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"runs":[]`) {
		t.Errorf("body = %s, want empty runs array", w.Body.String())
	}

	if w := env.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/sync/runs?limit=-1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}

	env.srv.history = nil
	if w := env.do(t, auth.RoleViewer, http.MethodGet, "/api/v1/sync/runs", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no history status = %d, want 503", w.Code)
	}
}

func TestTicketStore(t *testing.T) {
	ts := newTicketStore()
	now := time.Now()
	ts.now = func() time.Time { return now }

	ticket := ts.issue("tester", auth.RoleViewer)
	if len(ticket) != ticketBytes*2 {
		t.Errorf("ticket length = %d, want %d", len(ticket), ticketBytes*2)
	}

	entry, ok := ts.redeem(ticket)
	if !ok || entry.subject != "tester" || entry.role != auth.RoleViewer {
		t.Fatalf("redeem() = %+v, %v", entry, ok)
	}
	if _, ok := ts.redeem(ticket); ok {
		t.Error("ticket redeemed twice")
	}

	expired := ts.issue("tester", auth.RoleViewer)
	now = now.Add(ticketTTL + time.Second)
	if _, ok := ts.redeem(expired); ok {
		t.Error("expired ticket redeemed")
	}

	ts.issue("tester", auth.RoleViewer)
	now = now.Add(ticketTTL + time.Second)
	ts.sweep()
	if len(ts.tickets) != 0 {
		t.Errorf("sweep left %d tickets", len(ts.tickets))
	}
}

func TestWebSocket_TicketRequired(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/api/v1/ws", "/api/v1/ws?ticket=unknown"} {
		if w := env.do(t, "", http.MethodGet, target, ""); w.Code != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want 401", target, w.Code)
		}
	}
}

func TestWebSocket_ReceivesSubscribedEvents(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	w := env.do(t, auth.RoleViewer, http.MethodPost, "/api/v1/auth/ws-ticket", "")
	if w.Code != http.StatusOK {
		t.Fatalf("ticket status = %d", w.Code)
	}
	ticket := decode[map[string]any](t, w)["ticket"].(string)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticket
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	defer conn.Close()

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{string(events.TypePlanComplete)}}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck // test deadline

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("ReadJSON(ack) error = %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("ack = %+v", ack)
	}

	hub := env.srv.Hub()
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Publish(events.Event{Type: events.TypeBoardCreated, BoardKey: "ABC123"})
	hub.Publish(events.Event{Type: events.TypePlanComplete, BoardKey: "ABC123", Status: "complete"})

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON(event) error = %v", err)
	}
	if msg.Type != WSTypeEvent || msg.EventType != string(events.TypePlanComplete) {
		t.Errorf("event = %+v, want only the subscribed plan_complete", msg)
	}

	// The same ticket cannot open a second connection.
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Error("second Dial() with a used ticket succeeded")
	} else if resp != nil {
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("reuse status = %d, want 401", resp.StatusCode)
		}
	}
}

func TestHub_SubscriptionFiltering(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Default())

	newClient := func(channels ...string) *WSClient {
		c := &WSClient{hub: hub, send: make(chan []byte, 4), subscriptions: map[string]struct{}{}}
		for _, ch := range channels {
			c.subscriptions[ch] = struct{}{}
		}
		hub.Register(c)
		return c
	}

	all := newClient(WSChannelAll)
	boards := newClient(string(events.TypeBoardCreated))
	none := newClient()

	hub.Publish(events.Event{Type: events.TypeBoardCreated, BoardKey: "ABC123"})
	hub.Publish(events.Event{Type: events.TypeInstallResult, Module: "neopixel"})

	tests := []struct {
		name   string
		client *WSClient
		want   int
	}{
		{"wildcard", all, 2},
		{"board events only", boards, 1},
		{"unsubscribed", none, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.client.send); got != tt.want {
				t.Errorf("queued = %d, want %d", got, tt.want)
			}
		})
	}

	var msg WSMessage
	if err := json.Unmarshal(<-boards.send, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.EventType != string(events.TypeBoardCreated) || msg.Timestamp == "" {
		t.Errorf("message = %+v", msg)
	}

	hub.Unregister(none)
	hub.Unregister(none)
	if hub.ClientCount() != 2 {
		t.Errorf("ClientCount() = %d, want 2", hub.ClientCount())
	}
}

func TestHub_FullBufferDrops(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Default())
	c := &WSClient{hub: hub, send: make(chan []byte, 1), subscriptions: map[string]struct{}{WSChannelAll: {}}}
	hub.Register(c)

	hub.Broadcast("custom", map[string]string{"n": "1"})
	hub.Broadcast("custom", map[string]string{"n": "2"})

	if len(c.send) != 1 {
		t.Errorf("queued = %d, want 1", len(c.send))
	}

	hub.Unregister(c)
	// Sending to a closed client must not panic.
	c.trySend([]byte("late"))
}
