package resource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadverse/internal/shared/types"
)

func newResourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cadverse/resources/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cadverse/resources/base.obj":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))
		case "/cadverse/resources/my part.obj":
			w.Write([]byte("# spaced"))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"Running","clients":2}`))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Success(t *testing.T) {
	srv := newResourceServer(t)
	f, err := New(srv.URL + "/")
	require.NoError(t, err)

	resp, err := f.Fetch(context.Background(), "base.obj")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, srv.URL+"/cadverse/resources/base.obj", resp.URL)
	assert.Contains(t, resp.ContentType, "text/plain")
	assert.True(t, strings.HasPrefix(string(resp.Body), "v 0 0 0"))
}

func TestFetch_EscapesName(t *testing.T) {
	srv := newResourceServer(t)
	f, err := New(srv.URL)
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/cadverse/resources/my%20part.obj", f.ResourceURL("my part.obj"))
	resp, err := f.Fetch(context.Background(), "my part.obj")
	require.NoError(t, err)
	assert.Equal(t, "# spaced", string(resp.Body))
}

func TestFetch_NotFound(t *testing.T) {
	srv := newResourceServer(t)
	f, err := New(srv.URL)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "missing.obj")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestFetch_BodyLimit(t *testing.T) {
	srv := newResourceServer(t)
	const bodyLen = len("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n")

	f, err := New(srv.URL, WithMaxBodySize(int64(bodyLen)))
	require.NoError(t, err)
	resp, err := f.Fetch(context.Background(), "base.obj")
	require.NoError(t, err)
	assert.Len(t, resp.Body, bodyLen)

	// one byte short must fail rather than return a truncated mesh
	f, err = New(srv.URL, WithMaxBodySize(int64(bodyLen-1)))
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), "base.obj")
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	_, err = New(srv.URL, WithMaxBodySize(0))
	assert.Error(t, err)
}

func TestFetch_Timeout(t *testing.T) {
	srv := newResourceServer(t)
	f, err := New(srv.URL, WithResourcePath("/"), WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "slow")
	assert.Error(t, err)
}

func TestCheckStatus(t *testing.T) {
	srv := newResourceServer(t)
	f, err := New(srv.URL)
	require.NoError(t, err)

	st, err := f.CheckStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Running", st.Status)
	assert.Equal(t, 2, st.Clients)
}

func TestNewFromConfig(t *testing.T) {
	f, err := NewFromConfig(types.ClientConf{
		ServerHost:   "localhost",
		ServerPort:   8000,
		ResourcePath: "assets/",
		HTTPTimeout:  3,
		Proxy:        "127.0.0.1:1080",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/assets/base.obj", f.ResourceURL("base.obj"))
	assert.Equal(t, 3*time.Second, f.client.Timeout)
	assert.NotNil(t, f.client.Transport)
}

func TestNewPreview(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("v 1 2 3\n")
	}
	p := NewPreview([]byte(sb.String()), 1024, 10)
	assert.Len(t, p.Lines, 10)
	assert.Equal(t, 31, p.TotalLines)
	assert.False(t, p.Truncated)
	assert.False(t, p.Binary)

	big := []byte(strings.Repeat("x", 2048))
	p = NewPreview(big, 1024, 10)
	assert.True(t, p.Truncated)
	assert.Len(t, p.Lines[0], 1024)

	p = NewPreview([]byte{0xff, 0xfe, 0x00}, 1024, 10)
	assert.True(t, p.Binary)
	assert.Empty(t, p.Lines)
}

func TestNewPreview_DoesNotSplitRunes(t *testing.T) {
	body := []byte("ab가나")
	p := NewPreview(body, 4, 10)
	assert.True(t, p.Truncated)
	assert.Equal(t, []string{"ab"}, p.Lines)
}
