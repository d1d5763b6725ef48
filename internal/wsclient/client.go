// Package wsclient is a WebSocket client whose lifecycle is an explicit state
// machine. Transport activity is published as Events on a channel so that the
// layer showing it never touches the connection.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"cadverse/internal/shared/logger"
)

const (
	writeWait           = 10 * time.Second
	defaultCloseTimeout = 5 * time.Second
	defaultEventBuffer  = 256
)

var (
	ErrAlreadyConnected = errors.New("websocket already connected")
	ErrNotConnected     = errors.New("websocket not connected")
	ErrEmptyMessage     = errors.New("message is empty")
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type EventType int

const (
	EventOpen EventType = iota
	EventMessage
	EventError
	EventClose
)

func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one inbound transport notification.
type Event struct {
	Type      EventType
	Data      []byte // EventMessage
	Err       error  // EventError
	CloseCode int    // EventClose
	At        time.Time
}

// Option configures a Client.
type Option func(*Client)

func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialer.HandshakeTimeout = d }
}

func WithCloseTimeout(d time.Duration) Option {
	return func(c *Client) { c.closeTimeout = d }
}

func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

func WithEventBuffer(n int) Option {
	return func(c *Client) { c.events = make(chan Event, n) }
}

// Client is safe for concurrent use. Events must be drained by the owner;
// when the buffer is full new events are dropped.
type Client struct {
	url          string
	dialer       websocket.Dialer
	header       http.Header
	closeTimeout time.Duration
	events       chan Event
	log          zerolog.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	pumpDone chan struct{}

	writeMu sync.Mutex
}

func New(url string, opts ...Option) *Client {
	c := &Client{
		url: url,
		dialer: websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
		closeTimeout: defaultCloseTimeout,
		events:       make(chan Event, defaultEventBuffer),
		log:          logger.WithComponent("WSClient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint the client dials.
func (c *Client) URL() string { return c.url }

// Events returns the channel inbound events are published on.
func (c *Client) Events() <-chan Event { return c.events }

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the server. It is allowed from Disconnected and Closed only.
// A failed dial leaves the client Closed and is reported through the return
// value, not as an event.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateOpen, StateClosing:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.log.Debug().Str("url", c.url).Msg("Dialing websocket")
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		if resp != nil {
			return fmt.Errorf("dial %s (%s): %w", c.url, resp.Status, err)
		}
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.pumpDone = done
	c.state = StateOpen
	c.mu.Unlock()

	c.log.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("WebSocket connected")
	c.emit(Event{Type: EventOpen})
	go c.readPump(conn, done)
	return nil
}

// SendText trims text and sends it as a single text frame.
func (c *Client) SendText(text string) error {
	c.mu.Lock()
	conn, open := c.conn, c.state == StateOpen
	c.mu.Unlock()
	if !open {
		return ErrNotConnected
	}

	msg := strings.TrimSpace(text)
	if msg == "" {
		return ErrEmptyMessage
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

// Close performs a normal close handshake. If the peer does not answer
// within the close timeout the connection is dropped. The Close event is
// published by the read pump once the connection is gone.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.state = StateClosing
	conn, done := c.conn, c.pumpDone
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	werr := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))

	select {
	case <-done:
	case <-time.After(c.closeTimeout):
		c.log.Warn().Dur("timeout", c.closeTimeout).Msg("Peer did not answer close frame, dropping connection")
		conn.Close()
		<-done
	}

	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		return fmt.Errorf("send close frame: %w", werr)
	}
	return nil
}

func (c *Client) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err == nil {
			c.emit(Event{Type: EventMessage, Data: data})
			continue
		}

		code := websocket.CloseAbnormalClosure
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			code = ce.Code
		}

		c.mu.Lock()
		closing := c.state == StateClosing
		c.state = StateClosed
		c.conn = nil
		c.mu.Unlock()

		if !closing && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.log.Warn().Err(err).Msg("WebSocket read failed")
			c.emit(Event{Type: EventError, Err: err})
		}
		conn.Close()
		c.log.Info().Int("code", code).Msg("WebSocket closed")
		c.emit(Event{Type: EventClose, CloseCode: code})
		return
	}
}

func (c *Client) emit(ev Event) {
	ev.At = time.Now()
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Str("event", ev.Type.String()).Msg("Event buffer is full, dropping event")
	}
}
