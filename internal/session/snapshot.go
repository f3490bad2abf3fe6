package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/emotion"
	"github.com/joebot/nekobot/internal/profile"
)

type profileSnapshot struct {
	UserID       string               `json:"user_id"`
	Emotion      emotion.Vector       `json:"emotion"`
	Interactions []profile.Impression `json:"interactions"`
}

type shortTermSnapshot struct {
	CompressedHistory string        `json:"compressed_history"`
	Messages          []bus.Message `json:"messages"`
}

// snapshot is the on-disk JSON shape of a Session, written after every
// successful pipeline run and every operator-initiated state change.
type snapshot struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Role          string              `json:"role"`
	ShortTerm     shortTermSnapshot   `json:"short_term"`
	GlobalEmotion emotion.Vector      `json:"global_emotion"`
	ChatSummary   string              `json:"chat_summary"`
	Profiles      []profileSnapshot   `json:"profiles"`
	LastResponse  []string            `json:"last_response"`
	ChattingState int                 `json:"chatting_state"`
	BubbleSum     float64             `json:"bubble_willing_sum"`
}

func (s *Session) snapshotPath() string {
	return filepath.Join(s.snapshotDir, fmt.Sprintf("session_%s.json", s.id))
}

// Persist writes the Session's current state to its per-group snapshot
// file. Disk failures are logged; in-memory state remains authoritative
// and the next successful snapshot supersedes this one. Callers must
// hold the lock.
func (s *Session) Persist() error {
	messages, compressed := s.shortTerm.Snapshot()

	var profiles []profileSnapshot
	for _, p := range s.profiles.All() {
		profiles = append(profiles, profileSnapshot{
			UserID:       p.UserID,
			Emotion:      p.Emotion,
			Interactions: p.Interactions,
		})
	}

	snap := snapshot{
		ID:   s.id,
		Name: s.name,
		Role: s.role,
		ShortTerm: shortTermSnapshot{
			CompressedHistory: compressed,
			Messages:          messages,
		},
		GlobalEmotion: s.globalEmotion,
		ChatSummary:   s.chatSummary,
		Profiles:      profiles,
		LastResponse:  s.lastResponse,
		ChattingState: int(s.chattingState),
		BubbleSum:     s.bubbleWillingSum,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	path := s.snapshotPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// restore loads a persisted snapshot if present. A missing file is not
// an error; a corrupt file is logged and the Session is left at its
// freshly-constructed defaults.
func (s *Session) restore() {
	data, err := os.ReadFile(s.snapshotPath())
	if err != nil {
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Error("session snapshot corrupt, starting fresh", "session", s.id, "err", err)
		return
	}

	s.name = snap.Name
	s.role = snap.Role
	s.globalEmotion = snap.GlobalEmotion
	s.chatSummary = snap.ChatSummary
	s.lastResponse = snap.LastResponse
	s.chattingState = ChattingState(snap.ChattingState)
	s.bubbleWillingSum = snap.BubbleSum

	s.shortTerm.Restore(snap.ShortTerm.Messages, snap.ShortTerm.CompressedHistory)

	s.profiles = profile.NewJournal()
	for _, ps := range snap.Profiles {
		p := s.profiles.Ensure(ps.UserID)
		p.Emotion = ps.Emotion
		p.Interactions = ps.Interactions
	}
}
