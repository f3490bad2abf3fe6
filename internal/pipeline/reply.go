package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/session"
	"github.com/joebot/nekobot/internal/shortterm"
)

// replyResponse is the strict JSON contract the reply stage's LLM call
// must satisfy. An empty Reply means silence.
type replyResponse struct {
	Reply []string `json:"reply"`
}

func (p *Pipeline) reply(ctx context.Context, sess *session.Session, batch []bus.Message, memHistory []string) ([]string, error) {
	prompt := buildReplyPrompt(sess, batch, memHistory)

	raw, err := p.call(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed replyResponse
	if err := unmarshalStrict(raw, &parsed); err != nil {
		return nil, err
	}
	return parsed.Reply, nil
}

func buildReplyPrompt(sess *session.Session, batch []bus.Message, memHistory []string) string {
	window := sess.ShortTerm().Access()
	emo := sess.GlobalEmotion()

	var batchLines strings.Builder
	for _, msg := range batch {
		fmt.Fprintf(&batchLines, "'%s':'%s'\n", msg.UserName, msg.Content)
	}

	var mem strings.Builder
	for _, m := range memHistory {
		mem.WriteString("- " + m + "\n")
	}

	var stateRule string
	switch sess.ChattingState() {
	case session.Bubble:
		stateRule = `You are in Bubble state: you are only half paying attention. If your own name does not appear among the last few messages (meaning you have not recently participated), reply with a single trivial "looking at chat" token such as an eye emoji and nothing else. If you have recently participated, say nothing — return an empty reply list.`
	case session.Active:
		stateRule = `You are in Active state: you are an engaged participant. First decide, based on how dense and recent the conversation is, whether it's your turn to speak at all. If so, produce one or more short, natural replies. Do not repeat your own prior reply templates (see last_response below) and do not simply restate what someone else just said.`
	default:
		stateRule = `You are Idle: remain silent.`
	}

	return fmt.Sprintf(`You are %s, persona: %s.

Current chatting_state: %s
%s

Compressed history: %s
Recent messages:
%s
New batch:
%sCurrent global emotion: valence=%.2f arousal=%.2f dominance=%.2f
Relevant long-term memory:
%sYour own recent replies (avoid repeating their shape): %s

Respond with strict JSON only: {"reply": ["string", ...]}. An empty array means you choose not to speak.
`, sess.Name(), sess.Role(), sess.ChattingState(), stateRule, window.Compressed, shortterm.FormatForPrompt(window.Messages),
		batchLines.String(), emo.Valence, emo.Arousal, emo.Dominance, mem.String(), strings.Join(sess.LastResponse(), " | "))
}
