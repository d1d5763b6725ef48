package harness

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const defaultMaxLines = 200

// Controls mirrors which harness actions are currently enabled.
type Controls struct {
	Connect    bool
	Disconnect bool
	Send       bool
}

// Panel is the harness's status line and message log. Every appended line
// is stamped "[HH:mm:ss]" and mirrored to out.
type Panel struct {
	out      io.Writer
	maxLines int
	now      func() time.Time

	mu       sync.Mutex
	status   string
	controls Controls
	lines    []string
}

func NewPanel(out io.Writer, maxLines int) *Panel {
	if out == nil {
		out = io.Discard
	}
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}
	return &Panel{
		out:      out,
		maxLines: maxLines,
		now:      time.Now,
		controls: Controls{Connect: true},
	}
}

// SetStatus updates the status line and enables the controls that make
// sense for the given connection state.
func (p *Panel) SetStatus(status string, connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	p.controls = Controls{
		Connect:    !connected,
		Disconnect: connected,
		Send:       connected,
	}
}

// Appendf adds a timestamped line to the log.
func (p *Panel) Appendf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := fmt.Sprintf("[%s] %s", p.now().Format("15:04:05"), fmt.Sprintf(format, args...))
	p.lines = append(p.lines, line)
	if len(p.lines) > p.maxLines {
		p.lines = p.lines[len(p.lines)-p.maxLines:]
	}
	fmt.Fprintln(p.out, line)
}

func (p *Panel) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Panel) Controls() Controls {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controls
}

// Lines returns a copy of the log.
func (p *Panel) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.lines))
	copy(out, p.lines)
	return out
}

// Last returns the most recent log line, or "" when the log is empty.
func (p *Panel) Last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.lines) == 0 {
		return ""
	}
	return p.lines[len(p.lines)-1]
}
