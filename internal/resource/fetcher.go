package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"cadverse/internal/shared/logger"
	"cadverse/internal/shared/types"
)

const (
	DefaultResourcePath = "/cadverse/resources"
	statusPath          = "/api/status"
	maxBodyBytes        = 256 << 20
)

// ErrBodyTooLarge is returned when a response body exceeds the fetcher's limit.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, strings.TrimSpace(e.Body))
}

// Response is a fetched resource.
type Response struct {
	URL           string
	StatusCode    int
	ContentType   string
	ContentLength int64 // -1 when the server did not send one
	Body          []byte
}

// Fetcher downloads resources from the simulation server over HTTP.
type Fetcher struct {
	baseURL      string
	resourcePath string
	maxBody      int64
	client       *http.Client
	log          zerolog.Logger
}

type Option func(*Fetcher) error

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) error {
		f.client.Timeout = d
		return nil
	}
}

func WithResourcePath(p string) Option {
	return func(f *Fetcher) error {
		if p != "" {
			f.resourcePath = strings.TrimRight("/"+strings.Trim(p, "/"), "/")
		}
		return nil
	}
}

// WithMaxBodySize caps the number of body bytes a response may carry.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) error {
		if n <= 0 {
			return fmt.Errorf("max body size must be positive, got %d", n)
		}
		f.maxBody = n
		return nil
	}
}

// WithSOCKS5 routes all requests through a SOCKS5 proxy at addr (host:port).
func WithSOCKS5(addr string) Option {
	return func(f *Fetcher) error {
		if addr == "" {
			return nil
		}
		dialer, err := proxy.SOCKS5("tcp", addr, nil, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		cd, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return fmt.Errorf("SOCKS5 dialer for %s does not support contexts", addr)
		}
		f.client.Transport = &http.Transport{DialContext: cd.DialContext}
		return nil
	}
}

// New creates a Fetcher for a server at baseURL, e.g. "http://localhost:8000".
func New(baseURL string, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		baseURL:      strings.TrimRight(baseURL, "/"),
		resourcePath: DefaultResourcePath,
		maxBody:      maxBodyBytes,
		client:       &http.Client{Timeout: 5 * time.Second},
		log:          logger.WithComponent("Fetcher"),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NewFromConfig builds a Fetcher from the [client] ini section.
func NewFromConfig(cfg types.ClientConf) (*Fetcher, error) {
	base := fmt.Sprintf("http://%s:%d", cfg.ServerHost, cfg.ServerPort)
	opts := []Option{WithResourcePath(cfg.ResourcePath), WithSOCKS5(cfg.Proxy)}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, WithTimeout(time.Duration(cfg.HTTPTimeout)*time.Second))
	}
	return New(base, opts...)
}

// ResourceURL returns the URL a resource name is fetched from.
func (f *Fetcher) ResourceURL(name string) string {
	return f.baseURL + f.resourcePath + "/" + url.PathEscape(name)
}

// Fetch downloads a named resource.
func (f *Fetcher) Fetch(ctx context.Context, name string) (*Response, error) {
	return f.get(ctx, f.ResourceURL(name))
}

// CheckStatus queries the server's status endpoint.
func (f *Fetcher) CheckStatus(ctx context.Context) (*types.ServerStatus, error) {
	resp, err := f.get(ctx, f.baseURL+statusPath)
	if err != nil {
		return nil, err
	}
	var status types.ServerStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}
	return &status, nil
}

func (f *Fetcher) get(ctx context.Context, u string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", u, err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", u, ErrBodyTooLarge, f.maxBody)
	}

	f.log.Debug().
		Str("url", u).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("HTTP GET finished")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return &Response{
		URL:           u,
		StatusCode:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Body:          body,
	}, nil
}
