package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/emotion"
	"github.com/joebot/nekobot/internal/session"
	"github.com/joebot/nekobot/internal/shortterm"
)

// feedbackResponse is the strict JSON contract the feedback stage's LLM
// call must satisfy.
type feedbackResponse struct {
	NewEmotion    emotion.Vector         `json:"new_emotion"`
	EmotionTends  []emotion.Vector       `json:"emotion_tends"`
	Summary       string                 `json:"summary"`
	AnalyzeResult []string               `json:"analyze_result"`
	Willing       map[string]float64     `json:"willing"`
}

func (p *Pipeline) feedback(ctx context.Context, sess *session.Session, batch []bus.Message, memHistory []string) (session.FeedbackResult, error) {
	prompt := buildFeedbackPrompt(sess, batch, memHistory)

	raw, err := p.call(ctx, prompt)
	if err != nil {
		return session.FeedbackResult{}, err
	}

	var parsed feedbackResponse
	if err := unmarshalStrict(raw, &parsed); err != nil {
		return session.FeedbackResult{}, err
	}

	willing, err := parseWillingness(parsed.Willing)
	if err != nil {
		return session.FeedbackResult{}, err
	}

	result := session.FeedbackResult{
		NewEmotion:    parsed.NewEmotion,
		EmotionTends:  parsed.EmotionTends,
		Summary:       parsed.Summary,
		AnalyzeResult: parsed.AnalyzeResult,
		Willing:       willing,
	}
	if err := session.ValidateFeedback(batch, result); err != nil {
		return session.FeedbackResult{}, err
	}
	return result, nil
}

func parseWillingness(m map[string]float64) (session.Willingness, error) {
	idle, ok0 := m["0"]
	bubble, ok1 := m["1"]
	active, ok2 := m["2"]
	if !ok0 || !ok1 || !ok2 {
		return session.Willingness{}, fmt.Errorf("willing map missing one of keys 0,1,2: %v", m)
	}
	return session.Willingness{Idle: idle, Bubble: bubble, Active: active}, nil
}

func buildFeedbackPrompt(sess *session.Session, batch []bus.Message, memHistory []string) string {
	window := sess.ShortTerm().Access()
	emo := sess.GlobalEmotion()

	var tendencies strings.Builder
	seen := make(map[string]bool)
	for _, msg := range window.Messages {
		if seen[msg.UserName] {
			continue
		}
		seen[msg.UserName] = true
		t := sess.TendencyFor(msg.UserName)
		fmt.Fprintf(&tendencies, "- %s: valence=%.2f arousal=%.2f dominance=%.2f\n", msg.UserName, t.Valence, t.Arousal, t.Dominance)
	}

	var batchLines strings.Builder
	for i, msg := range batch {
		fmt.Fprintf(&batchLines, "%d. '%s':'%s'\n", i, msg.UserName, msg.Content)
	}

	var mem strings.Builder
	for _, m := range memHistory {
		mem.WriteString("- " + m + "\n")
	}

	return fmt.Sprintf(`You are %s, a group-chat participant with persona: %s.

Current chatting_state: %s
Compressed history: %s
Recent messages:
%s
New batch (index is the key used in emotion_tends below):
%sCurrent global emotion: valence=%.2f arousal=%.2f dominance=%.2f
Per-user tendencies for users currently in view:
%sRelevant long-term memory:
%sPrior chat_summary: %s

Produce strict JSON, nothing else, with exactly these fields:
{
  "new_emotion": {"valence": float in [-1,1], "arousal": float in [0,1], "dominance": float in [-1,1]},
  "emotion_tends": [ {"valence":float,"arousal":float,"dominance":float}, ... ] // one entry per batch message, same order
  "summary": "string continuing the prior summary",
  "analyze_result": ["new fact strings worth remembering long-term, none already in the long-term memory above"],
  "willing": {"0": float in [0,1], "1": float in [0,1], "2": float in [0,1]} // probability of Idle, Bubble, Active respectively
}

The summary must preserve continuity with the prior summary. Consider these five regimes and pick the one that fits:
- break: the topic has ended with no natural followup; start a new summary thread.
- shift: the topic is drifting into something related; blend old and new.
- noise: the new messages are off-topic chatter; keep the prior summary mostly unchanged.
- return: the conversation has come back to an earlier topic; reconnect to it explicitly.
- mixed: several of the above are happening across different participants at once; summarize each thread briefly.
`, sess.Name(), sess.Role(), sess.ChattingState(), window.Compressed, shortterm.FormatForPrompt(window.Messages),
		batchLines.String(), emo.Valence, emo.Arousal, emo.Dominance, tendencies.String(), mem.String(), sess.ChatSummary())
}
