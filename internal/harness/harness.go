// Package harness wires the WebSocket client, the resource fetcher and the
// scene manager to a Panel. The exported methods correspond to the harness
// actions (connect, disconnect, send, load); transport events reach the
// panel only through Run.
package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"cadverse/internal/mesh"
	"cadverse/internal/resource"
	"cadverse/internal/scene"
	"cadverse/internal/shared/logger"
	"cadverse/internal/wsclient"
)

// Transport is the part of wsclient.Client the harness drives.
type Transport interface {
	URL() string
	State() wsclient.State
	Events() <-chan wsclient.Event
	Connect(ctx context.Context) error
	SendText(text string) error
	Close() error
}

type Option func(*Harness)

// WithAutoReply answers every inbound message with "Hi, CAD! N times".
func WithAutoReply(on bool) Option {
	return func(h *Harness) { h.autoReply = on }
}

func WithParseOptions(opts ...mesh.Option) Option {
	return func(h *Harness) { h.parseOpts = opts }
}

type Harness struct {
	client    Transport
	fetcher   *resource.Fetcher
	scene     *scene.Manager
	panel     *Panel
	parseOpts []mesh.Option
	autoReply bool
	received  int // owned by Run
	log       zerolog.Logger
}

func New(client Transport, fetcher *resource.Fetcher, sm *scene.Manager, panel *Panel, opts ...Option) *Harness {
	h := &Harness{
		client:  client,
		fetcher: fetcher,
		scene:   sm,
		panel:   panel,
		log:     logger.WithComponent("Harness"),
	}
	for _, opt := range opts {
		opt(h)
	}
	panel.SetStatus("Waiting...", false)
	panel.Appendf("Connect to the server to begin.")
	return h
}

func (h *Harness) Panel() *Panel { return h.panel }

func (h *Harness) Connect(ctx context.Context) error {
	if h.client.State() == wsclient.StateOpen {
		h.panel.Appendf("[!] Already connected.")
		return wsclient.ErrAlreadyConnected
	}

	h.panel.SetStatus("Connecting...", false)
	h.panel.Appendf("-> Connecting: %s", h.client.URL())
	if err := h.client.Connect(ctx); err != nil {
		h.log.Error().Err(err).Msg("Connection failed")
		h.panel.SetStatus("[X] Connection failed", false)
		h.panel.Appendf("[X] Connection failed: %v", err)
		return err
	}
	return nil
}

func (h *Harness) Disconnect() error {
	if h.client.State() != wsclient.StateOpen {
		h.panel.Appendf("[!] Not connected.")
		return wsclient.ErrNotConnected
	}

	h.panel.SetStatus("Disconnecting...", false)
	h.panel.Appendf("-> Disconnecting...")
	if err := h.client.Close(); err != nil {
		h.log.Error().Err(err).Msg("Disconnect failed")
		h.panel.Appendf("[X] Disconnect error: %v", err)
		return err
	}
	return nil
}

func (h *Harness) Send(text string) error {
	err := h.client.SendText(text)
	switch {
	case err == nil:
		text = strings.TrimSpace(text)
		h.panel.Appendf("-> Sent: %s", text)
		h.log.Debug().Str("message", text).Msg("Sent")
		return nil
	case errors.Is(err, wsclient.ErrNotConnected):
		h.panel.Appendf("[!] Connect to the server first.")
	case errors.Is(err, wsclient.ErrEmptyMessage):
		h.panel.Appendf("[!] Enter a message.")
	default:
		h.log.Error().Err(err).Msg("Send failed")
		h.panel.Appendf("[X] Send failed: %v", err)
	}
	return err
}

// LoadResource fetches name over HTTP, parses it as OBJ and places it in the
// scene. Only one object can be loaded at a time.
func (h *Harness) LoadResource(ctx context.Context, name string) (*scene.Object, error) {
	obj, err := h.scene.Load(ctx, name, func(ctx context.Context) (*mesh.Mesh, error) {
		resp, err := h.fetcher.Fetch(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("http: %w", err)
		}
		h.log.Info().Str("url", resp.URL).Int("bytes", len(resp.Body)).Msg("[OK] HTTP success, parsing OBJ")
		return mesh.ParseOBJ(string(resp.Body), h.parseOpts...)
	})

	var fe *mesh.FormatError
	switch {
	case err == nil:
		h.panel.Appendf("[OK] %s added to the scene (%d vertices, %d triangles)",
			name, len(obj.Mesh.Vertices), len(obj.Mesh.Triangles))
		return obj, nil
	case errors.Is(err, scene.ErrAlreadyLoaded):
		h.log.Warn().Str("name", name).Msg("[!] An object is already loaded")
		h.panel.Appendf("[!] An object is already loaded.")
	case errors.As(err, &fe):
		h.log.Error().Err(err).Str("name", name).Msg("OBJ parse failed")
		h.panel.Appendf("[X] Failed to parse %s: %v", name, err)
	default:
		h.log.Error().Err(err).Str("name", name).Msg("[X] HTTP failed")
		h.panel.Appendf("[X] HTTP failed: %v", err)
	}
	return nil, err
}

// HandleEvent applies one transport event to the panel.
func (h *Harness) HandleEvent(ev wsclient.Event) {
	switch ev.Type {
	case wsclient.EventOpen:
		h.panel.SetStatus("[OK] Connected!", true)
		h.panel.Appendf("[OK] WebSocket connected!")
	case wsclient.EventMessage:
		h.received++
		h.panel.Appendf("<- Received: %s", ev.Data)
		if h.autoReply {
			h.Send(fmt.Sprintf("Hi, CAD! %d times", h.received))
		}
	case wsclient.EventError:
		h.panel.Appendf("[X] Error: %v", ev.Err)
	case wsclient.EventClose:
		h.panel.SetStatus("Disconnected", false)
		h.panel.Appendf("<- Connection closed")
	}
}

// Run drains transport events until ctx is done, then closes an open
// connection.
func (h *Harness) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if h.client.State() == wsclient.StateOpen {
				if err := h.client.Close(); err != nil {
					h.log.Warn().Err(err).Msg("Close on shutdown failed")
				}
			}
			return ctx.Err()
		case ev := <-h.client.Events():
			h.HandleEvent(ev)
		}
	}
}
