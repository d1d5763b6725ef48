package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadverse/internal/shared/types"
	"cadverse/internal/wsclient"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newTestServer serves resources over HTTP and greets every WebSocket client
// with "hello". Text frames the server receives are published on the
// returned channel.
func newTestServer(t *testing.T) (*httptest.Server, <-chan string) {
	t.Helper()
	received := make(chan string, 16)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	var lines strings.Builder
	for i := 1; i <= 50; i++ {
		fmt.Fprintf(&lines, "line %02d\n", i)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/cadverse/resources/lines.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, lines.String())
	})
	mux.HandleFunc("/cadverse/resources/base.obj", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "v 0 0 0\nv 100 0 0\nv 0 100 0\nf 1 2 3\n")
	})
	mux.HandleFunc("/cadverse/interaction", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
			return
		}
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(msg)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, received
}

func testConfig(srv *httptest.Server) *types.Config {
	cfg := types.DefaultConfig()
	addr := srv.Listener.Addr().(*net.TCPAddr)
	cfg.ClientConf.ServerHost = "127.0.0.1"
	cfg.ClientConf.ServerPort = addr.Port
	cfg.ClientConf.HandshakeTimeout = 2
	return cfg
}

func expectMessage(t *testing.T, received <-chan string, want string) {
	t.Helper()
	select {
	case got := <-received:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not receive %q", want)
	}
}

// startTester runs the menu loop on a pipe and returns a function that types
// one line into it.
func startTester(t *testing.T, cfg *types.Config) (func(string), *syncBuffer, <-chan struct{}) {
	t.Helper()
	pr, pw := io.Pipe()
	out := &syncBuffer{}
	tt, err := newTester(cfg, bufio.NewReader(pr), out)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		tt.run()
		close(done)
	}()
	t.Cleanup(func() { pw.Close() })

	return func(line string) {
		_, err := io.WriteString(pw, line+"\n")
		require.NoError(t, err)
	}, out, done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tester did not exit")
	}
}

func TestHarnessSession_AutoReply(t *testing.T) {
	srv, received := newTestServer(t)
	cfg := testConfig(srv)
	cfg.ClientConf.AutoReply = true

	typeLine, out, done := startTester(t, cfg)
	typeLine("6")
	typeLine("connect")
	expectMessage(t, received, "Hi, CAD! 1 times")
	typeLine("send ping")
	expectMessage(t, received, "ping")
	typeLine("disconnect")
	typeLine("quit")
	typeLine("0")
	waitDone(t, done)

	s := out.String()
	assert.Contains(t, s, "[OK] WebSocket connected!")
	assert.Contains(t, s, "<- Received: hello")
	assert.Contains(t, s, "-> Sent: Hi, CAD! 1 times")
	assert.Contains(t, s, "-> Sent: ping")
	assert.Contains(t, s, "-> Disconnecting...")
	assert.Contains(t, s, "Leaving harness session.")
}

func TestHarnessSession_ManualFlow(t *testing.T) {
	srv, received := newTestServer(t)
	cfg := testConfig(srv)
	cfg.MeshConf.Camera = "4,5,6"

	typeLine, out, done := startTester(t, cfg)
	typeLine("6")
	typeLine("send too early")
	typeLine("connect")
	typeLine("send ping")
	// without auto-reply the first frame the server sees is ours
	expectMessage(t, received, "ping")
	typeLine("load")
	typeLine("load")
	typeLine("status")
	typeLine("bogus")
	typeLine("quit")
	typeLine("0")
	waitDone(t, done)

	s := out.String()
	assert.Contains(t, s, "[!] Connect to the server first.")
	assert.Contains(t, s, "[OK] base.obj added to the scene (3 vertices, 1 triangles)")
	assert.Contains(t, s, "[!] An object is already loaded.")
	assert.Contains(t, s, "camera: [4 5 6]")
	assert.Contains(t, s, "[OK] Connected! (connect false, disconnect true, send true)")
	assert.Contains(t, s, `Unknown command "bogus"`)
	assert.NotContains(t, s, "Hi, CAD!")
}

func TestHTTPResource_PreviewHint(t *testing.T) {
	srv, _ := newTestServer(t)
	out := &bytes.Buffer{}
	tt, err := newTester(testConfig(srv), bufio.NewReader(strings.NewReader("lines.txt\n")), out)
	require.NoError(t, err)

	require.NoError(t, tt.httpResource())
	s := out.String()
	assert.Contains(t, s, "10: line 10")
	assert.NotContains(t, s, "line 11")
	// 50 lines fit in 1 KB, so only the line limit hides anything
	assert.Contains(t, s, "... (10 of 51 lines shown)")
	assert.NotContains(t, s, "body cut at")
}

func TestNextMessage_Cancel(t *testing.T) {
	c := wsclient.New("ws://127.0.0.1:1/none")

	ev, err := nextMessage(context.Background(), c, 10*time.Millisecond)
	assert.NoError(t, err)
	assert.Nil(t, ev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	ev, err = nextMessage(ctx, c, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ev)
	assert.Less(t, time.Since(start), time.Second)
}
