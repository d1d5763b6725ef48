package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"cadverse/internal/core/health"
	"cadverse/internal/harness"
	"cadverse/internal/mesh"
	"cadverse/internal/resource"
	"cadverse/internal/scene"
	"cadverse/internal/shared/types"
	"cadverse/internal/wsclient"
)

const (
	previewLines  = 10
	previewBytes  = 1024
	onceTimeout   = 5 * time.Second
	chatTimeout   = 3 * time.Second
	idleNotice    = 10 * time.Second
	statusTimeout = 2 * time.Second
)

type tester struct {
	cfg       *types.Config
	in        *bufio.Reader
	out       io.Writer
	wsURL     string
	fetcher   *resource.Fetcher
	parseOpts []mesh.Option
}

func newTester(cfg *types.Config, in *bufio.Reader, out io.Writer) (*tester, error) {
	f, err := resource.NewFromConfig(cfg.ClientConf)
	if err != nil {
		return nil, err
	}
	opts, err := mesh.OptionsFromConf(cfg.MeshConf)
	if err != nil {
		return nil, err
	}
	hostPort := net.JoinHostPort(cfg.ClientConf.ServerHost, strconv.Itoa(cfg.ClientConf.ServerPort))
	return &tester{
		cfg:       cfg,
		in:        in,
		out:       out,
		wsURL:     "ws://" + hostPort + cfg.ClientConf.InteractionPath,
		fetcher:   f,
		parseOpts: opts,
	}, nil
}

func (t *tester) printf(format string, args ...interface{}) {
	fmt.Fprintf(t.out, format, args...)
}

func (t *tester) prompt(label string) (string, error) {
	t.printf("%s", label)
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (t *tester) newClient() *wsclient.Client {
	return wsclient.New(t.wsURL,
		wsclient.WithHandshakeTimeout(time.Duration(t.cfg.ClientConf.HandshakeTimeout)*time.Second))
}

func (t *tester) run() {
	for {
		t.printf("\n%s\n", strings.Repeat("=", 50))
		t.printf("CADverse server test client\n")
		t.printf("%s\n", strings.Repeat("=", 50))
		t.printf("1. HTTP GET test (resource file)\n")
		t.printf("2. WebSocket test (single message)\n")
		t.printf("3. WebSocket live monitor\n")
		t.printf("4. WebSocket chat\n")
		t.printf("5. Server status\n")
		t.printf("6. Harness session (connect, send, load)\n")
		t.printf("0. Quit\n")

		choice, err := t.prompt("\nChoice: ")
		if err != nil {
			return
		}

		switch choice {
		case "1":
			err = t.httpResource()
		case "2":
			err = t.websocketOnce()
		case "3":
			err = t.websocketMonitor()
		case "4":
			err = t.websocketChat()
		case "5":
			t.serverStatus()
		case "6":
			err = t.harnessSession()
		case "0":
			t.printf("\nBye.\n")
			return
		default:
			t.printf("[X] Invalid choice.\n")
		}
		if err != nil {
			t.printf("[X] Error: %v\n", err)
		}
	}
}

func (t *tester) resourceName() (string, error) {
	name, err := t.prompt("Resource to request (e.g. base.obj): ")
	if err != nil {
		return "", err
	}
	if name == "" {
		name = t.cfg.ClientConf.DefaultResource
		t.printf("Using default: %s\n", name)
	}
	return name, nil
}

func (t *tester) httpResource() error {
	t.printf("\n[HTTP resource test]\n")
	name, err := t.resourceName()
	if err != nil {
		return err
	}
	t.printf("\nURL: %s\n", t.fetcher.ResourceURL(name))

	resp, err := t.fetcher.Fetch(context.Background(), name)
	var se *resource.StatusError
	if errors.As(err, &se) {
		t.printf("Status: %d\n[X] Failed: %s\n", se.StatusCode, se.Body)
		return nil
	}
	if err != nil {
		return err
	}

	t.printf("Status: %d\n", resp.StatusCode)
	t.printf("Content-Type: %s\n", resp.ContentType)
	t.printf("Content-Length: %d bytes (%.2f KB)\n", len(resp.Body), float64(len(resp.Body))/1024)
	t.printf("\n[OK] Success!\n")

	p := resource.NewPreview(resp.Body, previewBytes, previewLines)
	if p.Binary {
		t.printf("\nBinary content, %d bytes.\n", len(resp.Body))
		return nil
	}
	t.printf("\nBody (first %d lines, at most 1 KB):\n%s\n", previewLines, strings.Repeat("-", 50))
	for i, line := range p.Lines {
		t.printf("%2d: %s\n", i+1, line)
	}
	t.printf("%s\n", strings.Repeat("-", 50))
	if p.TotalLines > len(p.Lines) {
		t.printf("... (%d of %d lines shown)\n", len(p.Lines), p.TotalLines)
	}
	if p.Truncated {
		t.printf("... (body cut at %d bytes)\n", previewBytes)
	}
	return nil
}

// nextMessage waits for the next message event, returning nil on timeout
// and ctx.Err() once ctx is done.
func nextMessage(ctx context.Context, c *wsclient.Client, timeout time.Duration) (*wsclient.Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev := <-c.Events():
			switch ev.Type {
			case wsclient.EventMessage:
				return &ev, nil
			case wsclient.EventError:
				return nil, ev.Err
			case wsclient.EventClose:
				return nil, fmt.Errorf("connection closed (code %d)", ev.CloseCode)
			}
		case <-timer.C:
			return nil, nil
		}
	}
}

func (t *tester) websocketOnce() error {
	t.printf("\n[WebSocket single message test]\nConnecting: %s\n", t.wsURL)
	c := t.newClient()
	if err := c.Connect(context.Background()); err != nil {
		return err
	}
	defer c.Close()
	t.printf("[OK] Connected!\n")

	msg, err := t.prompt("\nMessage to send: ")
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Hello from test client!"
		t.printf("Using default: %s\n", msg)
	}
	if err := c.SendText(msg); err != nil {
		return err
	}
	t.printf("-> Sent: %s\n", msg)

	ev, err := nextMessage(context.Background(), c, onceTimeout)
	if err != nil {
		return err
	}
	if ev == nil {
		t.printf("<- (no reply, timed out)\n")
	} else {
		t.printf("<- Received: %s\n", ev.Data)
	}
	t.printf("\n[OK] Done\n")
	return nil
}

func (t *tester) websocketMonitor() error {
	t.printf("\n[WebSocket live monitor]\nConnecting: %s\nPress Ctrl+C to stop.\n\n", t.wsURL)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := t.newClient()
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()
	t.printf("[OK] Connected, waiting for messages...\n\n")

	count := 0
	for {
		ev, err := nextMessage(ctx, c, idleNotice)
		if errors.Is(err, context.Canceled) {
			t.printf("\n\nStopping.\n")
			return nil
		}
		if err != nil {
			return err
		}
		if ev == nil {
			t.printf("(no message for %s...)\n", idleNotice)
			continue
		}

		count++
		var pretty map[string]interface{}
		if json.Unmarshal(ev.Data, &pretty) == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			t.printf("[%d] <- Received (JSON):\n%s\n", count, out)
		} else {
			t.printf("[%d] <- Received (TEXT): %s\n", count, ev.Data)
		}

		reply := fmt.Sprintf("Hi, CAD! %d times", count)
		if err := c.SendText(reply); err != nil {
			return err
		}
		t.printf("[%d] -> Reply: %s\n%s\n", count, reply, strings.Repeat("-", 50))
	}
}

func (t *tester) websocketChat() error {
	t.printf("\n[WebSocket chat]\nConnecting: %s\nType a message and press Enter, 'quit' to leave.\n\n", t.wsURL)
	c := t.newClient()
	if err := c.Connect(context.Background()); err != nil {
		return err
	}
	defer c.Close()
	t.printf("[OK] Connected!\n\n")

	for {
		msg, err := t.prompt("-> Message: ")
		if err != nil {
			return err
		}
		if strings.EqualFold(msg, "quit") {
			t.printf("Leaving chat.\n")
			return nil
		}
		if msg == "" {
			continue
		}
		if err := c.SendText(msg); err != nil {
			return err
		}
		t.printf("  sent: %s\n", msg)

		ev, err := nextMessage(context.Background(), c, chatTimeout)
		if err != nil {
			return err
		}
		if ev == nil {
			t.printf("<- (no reply)\n\n")
		} else {
			t.printf("<- Received: %s\n\n", ev.Data)
		}
	}
}

func (t *tester) serverStatus() {
	t.printf("\n[Server status]\n")
	var st *types.ServerStatus
	results := health.New(statusTimeout).Check(context.Background(), map[string]health.Probe{
		"http": func(ctx context.Context) error {
			var err error
			st, err = t.fetcher.CheckStatus(ctx)
			return err
		},
		"websocket": func(ctx context.Context) error {
			c := t.newClient()
			if err := c.Connect(ctx); err != nil {
				return err
			}
			return c.Close()
		},
	})

	for _, name := range []string{"http", "websocket"} {
		r := results[name]
		if r.Status != health.StatusUp {
			t.printf("  [X] %s: %v\n", name, r.Err)
			continue
		}
		t.printf("  [OK] %s: %s\n", name, r.Latency.Round(time.Millisecond))
	}
	if st != nil {
		t.printf("\n  status %s, %d client(s), up %s, %d bytes sent, %d bytes received\n",
			st.Status, st.Clients, st.Uptime, st.BytesSent, st.BytesReceived)
	}
}

const harnessHelp = "Commands: connect | send <message> | disconnect | load [resource] | status | quit"

// harnessSession drives a Harness from the prompt. Run drains transport
// events in the background until the session ends.
func (t *tester) harnessSession() error {
	opts, err := scene.OptionsFromConf(t.cfg.MeshConf)
	if err != nil {
		return err
	}
	sm := scene.NewManager(opts...)
	h := harness.New(t.newClient(), t.fetcher, sm, harness.NewPanel(t.out, 0),
		harness.WithParseOptions(t.parseOpts...),
		harness.WithAutoReply(t.cfg.ClientConf.AutoReply))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	t.printf("\n[Harness session]\n%s\n", harnessHelp)
	for {
		line, err := t.prompt("harness> ")
		if err != nil {
			return err
		}
		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToLower(cmd) {
		case "":
		case "connect":
			h.Connect(ctx)
		case "send":
			h.Send(arg)
		case "disconnect":
			h.Disconnect()
		case "load":
			name := strings.TrimSpace(arg)
			if name == "" {
				name = t.cfg.ClientConf.DefaultResource
			}
			obj, err := h.LoadResource(ctx, name)
			if err != nil {
				continue
			}
			wb := obj.WorldBounds()
			cam := sm.Camera()
			t.printf("  object id: %s\n", obj.ID)
			t.printf("  world bounds: min %v max %v\n", wb.Min, wb.Max)
			t.printf("  camera: %v looking at %v\n", cam.Position, cam.Target)
		case "status":
			c := h.Panel().Controls()
			t.printf("  %s (connect %t, disconnect %t, send %t)\n", h.Panel().Status(), c.Connect, c.Disconnect, c.Send)
		case "quit", "exit":
			t.printf("Leaving harness session.\n")
			return nil
		default:
			t.printf("[X] Unknown command %q. %s\n", cmd, harnessHelp)
		}
	}
}
