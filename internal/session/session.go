// Package session implements the Session aggregate: one per chat group,
// owning its emotion state, per-user profiles, short-term and long-term
// memory handles, the Idle/Bubble/Active automaton, and the pending
// message batch the ingress handlers append to. Shape and mutex
// discipline are grounded on the upstream agent's session.Manager /
// session.Session pairing, generalized from a flat message history to
// the layered memory model this core needs.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/emotion"
	"github.com/joebot/nekobot/internal/longterm"
	"github.com/joebot/nekobot/internal/presets"
	"github.com/joebot/nekobot/internal/profile"
	"github.com/joebot/nekobot/internal/shortterm"
)

const (
	defaultName = "neko"
	defaultRole = "a curious, low-key group-chat participant"
)

// FeedbackResult is the validated output of the feedback stage, ready to
// be committed to a Session. Construction (parsing + validation) happens
// in the pipeline package; Session only ever sees a value that has
// already passed ValidateFeedback.
type FeedbackResult struct {
	NewEmotion    emotion.Vector
	EmotionTends  []emotion.Vector // len must equal len(batch)
	Summary       string
	AnalyzeResult []string
	Willing       Willingness
}

// ValidateFeedback checks the strict-parse invariants the feedback
// stage's contract requires before any state may be committed:
// emotion_tends must align 1:1 with the batch, new_emotion must be in
// range, and willing must be in [0,1] per field.
func ValidateFeedback(batch []bus.Message, r FeedbackResult) error {
	if len(r.EmotionTends) != len(batch) {
		return fmt.Errorf("emotion_tends length %d != batch length %d", len(r.EmotionTends), len(batch))
	}
	if !r.NewEmotion.InRange() {
		return fmt.Errorf("new_emotion out of range: %+v", r.NewEmotion)
	}
	for i, e := range r.EmotionTends {
		if !e.InRange() {
			return fmt.Errorf("emotion_tends[%d] out of range: %+v", i, e)
		}
	}
	for _, w := range []float64{r.Willing.Idle, r.Willing.Bubble, r.Willing.Active} {
		if w < 0 || w > 1 {
			return fmt.Errorf("willing value out of range: %v", w)
		}
	}
	return nil
}

// Session is the aggregate root for one chat group.
type Session struct {
	mu sync.Mutex

	id   string
	name string
	role string

	globalEmotion    emotion.Vector
	profiles         *profile.Journal
	chatSummary      string
	chattingState    ChattingState
	bubbleWillingSum float64
	lastResponse     []string

	shortTerm *shortterm.Memory
	longTerm  *longterm.Store

	pending []bus.Message

	snapshotDir string
}

// New constructs a Session for groupID, restoring a snapshot from
// snapshotDir if one exists; a missing or corrupt snapshot falls back to
// fresh defaults rather than aborting.
func New(id string, shortTerm *shortterm.Memory, longTerm *longterm.Store, snapshotDir string) *Session {
	s := &Session{
		id:          id,
		name:        defaultName,
		role:        defaultRole,
		profiles:    profile.NewJournal(),
		shortTerm:   shortTerm,
		longTerm:    longTerm,
		snapshotDir: snapshotDir,
	}
	s.restore()
	return s
}

// ID returns the group id this Session belongs to.
func (s *Session) ID() string { return s.id }

// Lock acquires the Session's mutex. Held by the background worker for
// the full pipeline duration, by operator command handlers, and briefly
// by ingress handlers appending to the pending batch.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the Session's mutex.
func (s *Session) Unlock() { s.mu.Unlock() }

// Enqueue appends an already-resolved message to the pending batch.
// Callers must hold the lock.
func (s *Session) Enqueue(msg bus.Message) {
	s.pending = append(s.pending, msg)
}

// DrainPending returns and clears the pending batch. Callers must hold
// the lock.
func (s *Session) DrainPending() []bus.Message {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = nil
	return batch
}

// ShortTerm returns the Session's short-term memory handle.
func (s *Session) ShortTerm() *shortterm.Memory { return s.shortTerm }

// LongTerm returns the Session's long-term memory handle.
func (s *Session) LongTerm() *longterm.Store { return s.longTerm }

// Snapshot fields read by the pipeline and operator commands. Callers
// must hold the lock (or accept a benign race on read-only status
// reporting).

func (s *Session) Name() string                  { return s.name }
func (s *Session) Role() string                  { return s.role }
func (s *Session) GlobalEmotion() emotion.Vector  { return s.globalEmotion }
func (s *Session) ChatSummary() string            { return s.chatSummary }
func (s *Session) ChattingState() ChattingState   { return s.chattingState }
func (s *Session) BubbleWillingSum() float64      { return s.bubbleWillingSum }
func (s *Session) LastResponse() []string         { return s.lastResponse }
func (s *Session) Profiles() *profile.Journal     { return s.profiles }

// TendencyFor returns the emotion tendency tracked for userName, or the
// zero vector if no profile exists yet.
func (s *Session) TendencyFor(userName string) emotion.Vector {
	if p := s.profiles.Get(userName); p != nil {
		return p.Emotion
	}
	return emotion.Vector{}
}

// ApplyFeedback commits a validated feedback result: new global emotion,
// per-user impressions, chat summary, long-term pending facts, and the
// chat-state transition. Callers must hold the lock. r must already have
// passed ValidateFeedback — this is the single commit point the
// feedback stage's contract in §4.4 describes.
func (s *Session) ApplyFeedback(now time.Time, batch []bus.Message, r FeedbackResult) {
	s.globalEmotion = r.NewEmotion

	for i, msg := range batch {
		p := s.profiles.Ensure(msg.UserName)
		p.Push(now, r.EmotionTends[i])
	}

	s.chatSummary = r.Summary
	s.longTerm.AddTexts(r.AnalyzeResult)

	s.chattingState, s.bubbleWillingSum = Transition(s.chattingState, s.bubbleWillingSum, r.Willing)
}

// RecordReply appends the agent's own reply to both memories and updates
// last_response. Callers must hold the lock.
func (s *Session) RecordReply(now time.Time, content string) {
	msg := bus.Message{Time: now, UserName: s.name, Content: content}
	s.shortTerm.Update(context.Background(), []bus.Message{msg})
	s.longTerm.AddTexts([]string{content})
	s.lastResponse = append(s.lastResponse, content)
	if len(s.lastResponse) > 20 {
		s.lastResponse = s.lastResponse[len(s.lastResponse)-20:]
	}
}

// Reset zeroes all mutable state back to freshly-constructed defaults.
// The background worker is not affected; it keeps running against the
// now-empty Session. Callers must hold the lock.
func (s *Session) Reset() {
	s.name = defaultName
	s.role = defaultRole
	s.globalEmotion = emotion.Vector{}
	s.profiles = profile.NewJournal()
	s.chatSummary = ""
	s.chattingState = Idle
	s.bubbleWillingSum = 0
	s.lastResponse = nil
	s.pending = nil
	s.shortTerm.Clear()
	if err := s.longTerm.Clear(); err != nil {
		slog.Error("reset: clearing long-term index", "session", s.id, "err", err)
	}
}

// CalmDown zeroes only emotion and profiles; chat_summary and both
// memories are left unchanged. Callers must hold the lock.
func (s *Session) CalmDown() {
	s.globalEmotion = emotion.Vector{}
	s.profiles = profile.NewJournal()
}

// SetRole sets the agent's display name and persona text. Callers must
// hold the lock.
func (s *Session) SetRole(name, role string) {
	s.name = name
	s.role = role
}

// LoadPreset resets the Session, then applies a preset's name, role, and
// seed knowledge. It returns nothing; a failed preset lookup is handled
// by the caller before this is called. Callers must hold the lock.
func (s *Session) LoadPreset(p presets.Preset) {
	s.Reset()
	s.name = p.Name
	s.role = p.Role
	s.longTerm.AddTexts(p.Knowledges)
	if err := s.longTerm.Index(context.Background()); err != nil {
		slog.Error("load_preset: indexing seed knowledge", "session", s.id, "err", err)
	}
}

// Status renders a human-readable summary for the operator status
// command. Callers must hold the lock.
func (s *Session) Status() string {
	return fmt.Sprintf(
		"id=%s name=%q role=%q state=%s emotion={v=%.2f a=%.2f d=%.2f} profiles=%d summary=%q",
		s.id, s.name, s.role, s.chattingState,
		s.globalEmotion.Valence, s.globalEmotion.Arousal, s.globalEmotion.Dominance,
		s.profiles.Len(), truncate(s.chatSummary, 80),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
