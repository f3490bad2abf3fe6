// Package groupregistry owns the one piece of global mutable process
// state this core needs beyond the preset registry: the map of
// per-group Sessions, created lazily on first observation and never
// torn down except at process exit. Lazy-create-on-first-use plus a
// lock around the map follows the upstream agent's session.Manager
// cache; here creation also spawns the group's background worker
// exactly once.
package groupregistry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/embedding"
	"github.com/joebot/nekobot/internal/llm"
	"github.com/joebot/nekobot/internal/longterm"
	"github.com/joebot/nekobot/internal/pipeline"
	"github.com/joebot/nekobot/internal/session"
	"github.com/joebot/nekobot/internal/shortterm"
	"github.com/joebot/nekobot/internal/worker"
)

// Deps bundles the long-lived collaborators every Session needs at
// construction time.
type Deps struct {
	Provider      llm.Provider
	Model         string
	Embedder      embedding.Provider
	SnapshotDir   string
	LongTermDir   string
	OutboundQueue func(ctx context.Context, msg *bus.OutboundMessage)
}

type entry struct {
	sess   *session.Session
	cancel context.CancelFunc
}

// Registry is the set of per-group Sessions, keyed by group id. Created
// once at startup and never reassigned; interior mutability lives
// inside each Session under its own mutex, guarded here only for the
// map itself.
type Registry struct {
	mu      sync.Mutex
	deps    Deps
	entries map[string]*entry
}

// New creates an empty registry.
func New(deps Deps) *Registry {
	return &Registry{deps: deps, entries: make(map[string]*entry)}
}

// Ensure returns the Session for groupID, creating it (and spawning its
// background worker) on first observation.
func (r *Registry) Ensure(ctx context.Context, groupID string) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[groupID]; ok {
		return e.sess
	}

	sess := r.build(groupID)
	workerCtx, cancel := context.WithCancel(ctx)
	p := pipeline.New(r.deps.Provider, r.deps.Model)
	w := worker.New(sess, p, r.deps.OutboundQueue)
	go w.Run(workerCtx)

	r.entries[groupID] = &entry{sess: sess, cancel: cancel}
	slog.Info("spawned session worker", "group", groupID)
	return sess
}

// Get returns the Session for groupID without creating it.
func (r *Registry) Get(groupID string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[groupID]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

// GroupIDs returns every group id currently registered.
func (r *Registry) GroupIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown cancels every group's background worker. On-disk state is
// current as of each Session's last completed pipeline run; any pending
// in-flight batch is lost, matching the documented shutdown contract.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.cancel()
	}
}

func (r *Registry) build(groupID string) *session.Session {
	sm := shortterm.New(r.summarize)

	indexPath := filepath.Join(r.deps.LongTermDir, fmt.Sprintf("hippo_index_%s", groupID))
	idx, err := longterm.OpenBleveIndex(indexPath)
	if err != nil {
		slog.Error("open long-term index, falling back to a null index", "group", groupID, "err", err)
		lt := longterm.NewStore(indexPath, longterm.NullIndex{}, r.deps.Embedder)
		return session.New(groupID, sm, lt, r.deps.SnapshotDir)
	}
	lt := longterm.NewStore(indexPath, idx, r.deps.Embedder)

	return session.New(groupID, sm, lt, r.deps.SnapshotDir)
}

// summarize backs each Session's short-term compression task with one
// LLM call, formatted the way the feedback stage's own prompts are.
func (r *Registry) summarize(ctx context.Context, messages []bus.Message) (string, error) {
	prompt := "Summarize the following group chat messages into a short, topic-grouped summary that names which participants said what:\n\n" +
		shortterm.FormatForPrompt(messages)
	resp, err := r.deps.Provider.Chat(ctx, llm.ChatRequest{
		Messages:    []map[string]any{{"role": "user", "content": prompt}},
		Model:       r.deps.Model,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("compression call: %w", err)
	}
	return resp.Content, nil
}
