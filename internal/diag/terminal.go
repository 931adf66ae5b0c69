package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Terminal: human progress lines (not logs).
//   - TTY: one line rewritten in place with \r.
//   - Otherwise: one line per finished document.
//
// Safe for concurrent use; the first write error disables it.
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool

	concurrency int
	total       int
	done        int
	failed      int
	runStart    time.Time

	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal installs the process terminal (nil clears it).
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal returns the process terminal, possibly nil.
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// NewTerminal builds a terminal writing to w (stderr when nil). enabled=false
// makes every call a no-op.
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled}
	// CI logs are not terminals even when a pty is attached.
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			t.isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	return t
}

// RunStart announces the run.
func (t *Terminal) RunStart(concurrency, documents int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.concurrency = concurrency
	t.total = documents
	t.done, t.failed = 0, 0
	t.runStart = time.Now()
	t.println(fmt.Sprintf("[run] documents=%d | concurrency=%d", documents, concurrency))
}

// DocFinish records one finished document.
func (t *Terminal) DocFinish(fileID string, ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.done++
	if !ok {
		t.failed++
	}
	if !t.isTTY {
		status := "done"
		if !ok {
			status = "skip"
		}
		t.println(fmt.Sprintf("[%s] %s | %s", status, shortenBase(fileID, 48), formatDur(dur)))
		return
	}
	// throttle in-place updates to 10/s, always show the last one.
	now := time.Now()
	if t.done < t.total && now.Sub(t.lastFlush) < 100*time.Millisecond {
		return
	}
	t.lastFlush = now
	t.printInline(fmt.Sprintf("[docs] %d/%d | skipped %d | concurrency %d | %s",
		t.done, t.total, t.failed, t.concurrency, formatSince(t.runStart)))
}

// RunFinish prints the summary line.
func (t *Terminal) RunFinish(ok bool, rows int, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	tag := "ok"
	if !ok {
		tag = "fail"
	}
	t.println(fmt.Sprintf("[%s] documents %d | skipped %d | patients %d | %s",
		tag, t.done, t.failed, rows, formatDur(dur)))
}

func (t *Terminal) println(s string) {
	if t == nil || !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		t.enabled = false
	}
	t.lastLen = 0
}

// printInline rewrites the current line, padding with spaces when the new
// content is shorter.
func (t *Terminal) printInline(s string) {
	if t == nil || !t.enabled {
		return
	}
	pad := 0
	if l := visLen(s); t.lastLen > l {
		pad = t.lastLen - l
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	if pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = visLen(s)
}

// shortenBase keeps the base name, truncated to max runes with an ellipsis.
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	if visLen(base) <= max {
		return base
	}
	rs := []rune(base)
	return string(rs[:max-1]) + "…"
}

func visLen(s string) int { return len([]rune(s)) }

func formatSince(t0 time.Time) string { return formatDur(time.Since(t0)) }

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(d.Milliseconds())/1000.0)
}
