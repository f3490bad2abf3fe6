// Package shortterm implements the bounded message buffer and its
// asynchronous compression task. The single-in-flight cancellation
// scheme is grounded on the upstream Discord channel's per-channel
// typing-indicator cancel map: there, starting a new typing loop
// cancels the previous one; here, a new compression task cancels the
// one still running.
package shortterm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/joebot/nekobot/internal/bus"
)

// VisibleWindow (L in spec.md) is the number of recent messages exposed
// to the cognitive pipeline.
const VisibleWindow = 10

// bufferCap is the hard cap on the underlying FIFO (5 x L).
const bufferCap = 5 * VisibleWindow

// Summarizer produces a topic-grouped, participant-aware summary of the
// messages currently held in short-term memory. Implementations must
// watch ctx and return promptly on cancellation; a cancelled summarizer
// result is always discarded.
type Summarizer func(ctx context.Context, messages []bus.Message) (string, error)

// Window is what the reply phase actually sees: the visible tail of
// recent messages plus the compressed history that replaced everything
// older.
type Window struct {
	Messages   []bus.Message
	Compressed string
}

// Memory is a Session's short-term message buffer with async
// compression.
type Memory struct {
	mu         sync.Mutex
	messages   []bus.Message
	compressed string
	counter    int
	summarize  Summarizer
	cancel     context.CancelFunc
}

// New creates an empty short-term memory backed by summarize for
// compression tasks.
func New(summarize Summarizer) *Memory {
	return &Memory{summarize: summarize}
}

// Access returns the visible window: the last VisibleWindow messages
// plus the current compressed history.
func (m *Memory) Access() Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.messages)
	start := 0
	if n > VisibleWindow {
		start = n - VisibleWindow
	}
	out := make([]bus.Message, n-start)
	copy(out, m.messages[start:])
	return Window{Messages: out, Compressed: m.compressed}
}

// Snapshot returns the full underlying buffer (not just the visible
// window) and the current compressed history, for persistence.
func (m *Memory) Snapshot() ([]bus.Message, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bus.Message, len(m.messages))
	copy(out, m.messages)
	return out, m.compressed
}

// Restore replaces the buffer and compressed history wholesale, used
// when loading a persisted snapshot. It does not launch a compression
// task.
func (m *Memory) Restore(messages []bus.Message, compressed string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append([]bus.Message(nil), messages...)
	m.compressed = compressed
	m.counter = 0
}

// Update appends batch to the buffer, trims it to the hard cap, and
// launches a compression task once the compress counter reaches
// VisibleWindow. ctx bounds the launched compression task's lifetime
// (process shutdown, not the caller's per-call context).
func (m *Memory) Update(ctx context.Context, batch []bus.Message) {
	m.mu.Lock()
	m.messages = append(m.messages, batch...)
	if over := len(m.messages) - bufferCap; over > 0 {
		m.messages = m.messages[over:]
	}
	m.counter += len(batch)
	shouldCompress := m.counter >= VisibleWindow
	if shouldCompress {
		m.counter = 0
	}
	snapshot := append([]bus.Message(nil), m.messages...)
	m.mu.Unlock()

	if shouldCompress {
		m.launchCompression(ctx, snapshot)
	}
}

// launchCompression cancels any prior in-flight compression task and
// starts a new one. Cancellation is cooperative: the prior task's
// summarize call observes ctx.Done() (or, for a well-behaved HTTP
// client, has its request aborted) and its result is discarded because
// the task checks its own cancel token before committing.
func (m *Memory) launchCompression(parent context.Context, messages []bus.Message) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	taskCtx, cancel := context.WithCancel(parent)
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		summary, err := m.summarize(taskCtx, messages)
		if taskCtx.Err() != nil {
			return // cancelled by a newer task or Clear; drop the result
		}
		if err != nil {
			slog.Error("short-term compression failed", "err", err)
			return
		}
		m.mu.Lock()
		if m.cancel != nil && taskCtx.Err() == nil {
			m.compressed = summary
		}
		m.mu.Unlock()
	}()
}

// Clear cancels any in-flight compression task and zeroes the buffer
// and compressed history.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.messages = nil
	m.compressed = ""
	m.counter = 0
}

// FormatForPrompt renders the visible window the way the feedback and
// retrieve stages expect it: 'name':'content' lines.
func FormatForPrompt(messages []bus.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&sb, "'%s':'%s'\n", m.UserName, m.Content)
	}
	return sb.String()
}
