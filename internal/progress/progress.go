// Package progress provides page progress reporters for document extraction.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Callback receives page progress. Calls arrive with done strictly
// increasing, and the last call of a run is always (total, total).
type Callback interface {
	OnProgress(done, total int)
}

// Func adapts a plain function to Callback.
type Func func(done, total int)

// OnProgress calls f.
func (f Func) OnProgress(done, total int) { f(done, total) }

// NoOp implements Callback but does nothing.
type NoOp struct{}

func (NoOp) OnProgress(done, total int) {}

// OrNoOp returns cb, or NoOp when cb is nil.
func OrNoOp(cb Callback) Callback {
	if cb == nil {
		return NoOp{}
	}
	return cb
}

// Console draws a progress bar on a terminal.
type Console struct {
	writer    io.Writer
	prefix    string
	width     int
	mutex     sync.Mutex
	startTime time.Time
	showRate  bool
}

// NewConsole creates a console progress reporter. A nil writer uses stderr.
func NewConsole(writer io.Writer, prefix string) *Console {
	if writer == nil {
		writer = os.Stderr
	}
	return &Console{
		writer:   writer,
		prefix:   prefix,
		width:    40,
		showRate: true,
	}
}

// WithWidth sets the progress bar width.
func (c *Console) WithWidth(width int) *Console {
	c.width = width
	return c
}

// WithRate toggles the pages-per-second suffix.
func (c *Console) WithRate(show bool) *Console {
	c.showRate = show
	return c
}

func (c *Console) OnProgress(done, total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if total <= 0 {
		return
	}
	now := time.Now()
	if c.startTime.IsZero() {
		c.startTime = now
	}

	filled := c.width * done / total
	if filled > c.width {
		filled = c.width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s[%s] %d/%d pages (%.1f%%)", c.prefix, bar, done, total,
		float64(done)/float64(total)*100.0)

	if elapsed := now.Sub(c.startTime); c.showRate && elapsed > 0 && done > 0 {
		status += fmt.Sprintf(" %.1f pages/s", float64(done)/elapsed.Seconds())
	}
	if done >= total {
		status += "\n"
	}
	_, _ = fmt.Fprint(c.writer, status)
}

// Log logs progress updates using slog.
type Log struct {
	logger   *slog.Logger
	level    slog.Level
	attrs    []any
	interval int // log every N pages
	mutex    sync.Mutex
	lastLog  int
	start    time.Time
}

// NewLog creates a log-based progress reporter. attrs are added to every
// record, e.g. a file name or job id.
func NewLog(logger *slog.Logger, level slog.Level, attrs ...any) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		logger:   logger,
		level:    level,
		attrs:    attrs,
		interval: 1,
	}
}

// WithInterval sets how frequently to log progress (every N pages).
func (l *Log) WithInterval(interval int) *Log {
	if interval < 1 {
		interval = 1
	}
	l.interval = interval
	return l
}

func (l *Log) OnProgress(done, total int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.start.IsZero() {
		l.start = time.Now()
	}
	if done-l.lastLog < l.interval && done != total {
		return
	}
	l.lastLog = done

	args := append([]any{
		"done", done,
		"total", total,
		"elapsed", time.Since(l.start).Round(time.Millisecond),
	}, l.attrs...)
	l.logger.Log(context.Background(), l.level, "page progress", args...)
}

// Multi fans progress out to several callbacks in order.
type Multi struct {
	callbacks []Callback
}

// NewMulti creates a progress callback that reports to all non-nil callbacks.
func NewMulti(callbacks ...Callback) *Multi {
	m := &Multi{}
	for _, cb := range callbacks {
		m.Add(cb)
	}
	return m
}

// Add adds another progress callback. nil is ignored.
func (m *Multi) Add(cb Callback) {
	if cb != nil {
		m.callbacks = append(m.callbacks, cb)
	}
}

func (m *Multi) OnProgress(done, total int) {
	for _, cb := range m.callbacks {
		cb.OnProgress(done, total)
	}
}

// Throttled wraps another callback and drops updates that arrive faster than
// minInterval. The final (total, total) update is never dropped.
type Throttled struct {
	wrapped     Callback
	minInterval time.Duration
	lastUpdate  time.Time
	mutex       sync.Mutex
}

// NewThrottled creates a throttled wrapper around another callback.
func NewThrottled(wrapped Callback, minInterval time.Duration) *Throttled {
	return &Throttled{wrapped: OrNoOp(wrapped), minInterval: minInterval}
}

func (t *Throttled) OnProgress(done, total int) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := time.Now()
	if done >= total || t.lastUpdate.IsZero() || now.Sub(t.lastUpdate) >= t.minInterval {
		t.lastUpdate = now
		t.wrapped.OnProgress(done, total)
	}
}
