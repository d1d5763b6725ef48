package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadverse/internal/shared/globalstate"
	"cadverse/internal/shared/settings"
	"cadverse/internal/shared/types"
	"cadverse/internal/sim"
)

type testEnv struct {
	srv      *httptest.Server
	hub      *Hub
	store    *sim.Store
	settings *settings.SettingsManager
	dir      string
}

func newTestEnv(t *testing.T, cfg types.ServerConf) *testEnv {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.obj"),
		[]byte("# cube corner\nv 1000 0 0\nv 0 2000 0\nv 0 0 500\nf 1 2 3\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("v 1000 0 0\n"), 0644))

	sm, err := settings.NewSettingsManager("")
	require.NoError(t, err)
	store := sim.NewStore(nil)
	hub := NewHub(store.MarshalSnapshot)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	status := globalstate.NewStatusManager()
	status.Set("Running")
	handler := NewHandler(dir, sm, store, hub, status)
	srv := httptest.NewServer(NewMux(cfg, handler, hub))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testEnv{srv: srv, hub: hub, store: store, settings: sm, dir: dir}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandleResource(t *testing.T) {
	env := newTestEnv(t, types.ServerConf{})

	resp, body := env.get(t, "/cadverse/resources/base.obj")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "v 1000 0 0")

	resp, _ = env.get(t, "/cadverse/resources/missing.obj")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, env.settings.Update(settings.ModuleResources, json.RawMessage(`{"scale":0.001}`)))
	_, body = env.get(t, "/cadverse/resources/base.obj")
	assert.Equal(t, "# cube corner\nv 1.000000 0.000000 0.000000\nv 0.000000 2.000000 0.000000\nv 0.000000 0.000000 0.500000\nf 1 2 3\n", body)

	// only OBJ files are rescaled
	_, body = env.get(t, "/cadverse/resources/notes.txt")
	assert.Equal(t, "v 1000 0 0\n", body)
}

func TestHandleResource_RejectsTraversal(t *testing.T) {
	sm, err := settings.NewSettingsManager("")
	require.NoError(t, err)
	h := NewHandler(t.TempDir(), sm, sim.NewStore(nil), NewHub(nil), nil)

	for _, p := range []string{
		"/cadverse/resources/../secret.txt",
		"/cadverse/resources/a/../../secret.txt",
		"/cadverse/resources/",
		"/cadverse/resources//etc/passwd",
		`/cadverse/resources/..\secret.txt`,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = p
		rec := httptest.NewRecorder()
		h.HandleResource(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, p)
	}

	req := httptest.NewRequest(http.MethodPost, "/cadverse/resources/base.obj", nil)
	rec := httptest.NewRecorder()
	h.HandleResource(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleModels_ReflectsStore(t *testing.T) {
	env := newTestEnv(t, types.ServerConf{})
	loop := sim.NewLoop(env.store, env.hub, env.settings.Get().Simulation)
	_, err := loop.Step()
	require.NoError(t, err)

	_, body := env.get(t, "/models")
	var got sim.States
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.InDelta(t, 0.1, got[sim.DefaultModel].Position.X, 1e-9)
	assert.Equal(t, 1.0, got[sim.DefaultModel].Rotation.W)
}

func TestWebSocket_SnapshotAndBroadcast(t *testing.T) {
	env := newTestEnv(t, types.ServerConf{})

	for _, path := range []string{"/ws", "/cadverse/interaction"} {
		conn := env.dial(t, path)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err, path)
		assert.JSONEq(t,
			`{"model_1":{"position":{"x":0,"y":0,"z":0},"rotation":{"x":0,"y":0,"z":0,"w":1}}}`,
			string(msg))
	}
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	conn := env.dial(t, "/ws")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello from client")))

	env.hub.BroadcastModelStates([]byte(`{"model_1":{}}`))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"model_1":{}}`, string(msg))

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, types.ServerConf{})
	env.dial(t, "/ws")
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	resp, body := env.get(t, "/api/status")
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var st types.ServerStatus
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, "Running", st.Status)
	assert.Equal(t, 1, st.Clients)
}

func TestSettingsAPI_BasicAuth(t *testing.T) {
	env := newTestEnv(t, types.ServerConf{WebUser: "admin", WebPassword: "secret"})

	resp, _ := env.get(t, "/api/settings")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	post := func(module, body string, auth bool) int {
		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/settings/"+module, strings.NewReader(body))
		require.NoError(t, err)
		if auth {
			req.SetBasicAuth("admin", "secret")
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, post("simulation", `{"step_x":1}`, false))
	assert.Equal(t, http.StatusOK, post("simulation", `{"step_x":1}`, true))
	assert.Equal(t, http.StatusNotFound, post("gateway", `{}`, true))
	assert.Equal(t, http.StatusBadRequest, post("resources", `{"scale":0}`, true))
	assert.Equal(t, http.StatusBadRequest, post("", `{}`, true))

	assert.Equal(t, 1.0, env.settings.Get().Simulation.StepX)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/settings", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var got settings.RuntimeSettings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 1.0, got.Simulation.StepX)
}

func TestSettingsUpdateReachesLoop(t *testing.T) {
	env := newTestEnv(t, types.ServerConf{})
	loop := sim.NewLoop(env.store, env.hub, env.settings.Get().Simulation)
	env.settings.Register(settings.ModuleSimulation, loop)

	post := func(body string) {
		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/settings/simulation", strings.NewReader(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	post(`{"step_x":0.5}`)
	post(`{"step_x":5,"tick_interval_ms":250}`)

	// the loop runs with the values of the last POST as soon as it returns
	got := loop.Settings()
	assert.Equal(t, 5.0, got.StepX)
	assert.Equal(t, 250, got.TickIntervalMs)

	before := env.store.Snapshot()[sim.DefaultModel].Position.X
	_, err := loop.Step()
	require.NoError(t, err)
	after := env.store.Snapshot()[sim.DefaultModel].Position.X
	assert.InDelta(t, 5.0, after-before, 1e-9)
}

func TestServer_ServeCountsTraffic(t *testing.T) {
	sm, err := settings.NewSettingsManager("")
	require.NoError(t, err)
	store := sim.NewStore(nil)
	hub := NewHub(store.MarshalSnapshot)
	status := globalstate.NewStatusManager()
	srv := NewServer(types.ServerConf{Host: "127.0.0.1"}, NewHandler(t.TempDir(), sm, store, hub, status), hub)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/models")
	require.NoError(t, err)
	io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	snap := status.Snapshot(0)
	assert.Greater(t, snap.BytesReceived, uint64(0))
	assert.Greater(t, snap.BytesSent, uint64(0))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RunListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	sm, err := settings.NewSettingsManager("")
	require.NoError(t, err)
	hub := NewHub(nil)
	srv := NewServer(types.ServerConf{Host: "127.0.0.1", Port: port}, NewHandler(t.TempDir(), sm, sim.NewStore(nil), hub, nil), hub)
	assert.Error(t, srv.Run(context.Background()))
}
