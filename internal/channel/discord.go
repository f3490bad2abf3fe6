package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/config"
)

// typingInterval matches Discord's own "typing" expiry window, so a
// single refresh loop keeps the indicator alive for as long as a reply
// is still being produced.
const typingInterval = 8 * time.Second

// Discord implements the Channel interface on top of discordgo's
// gateway session, replacing a hand-rolled gateway client with the
// library the rest of the retrieved pack reaches for.
type Discord struct {
	config config.DiscordConfig
	bus    *bus.EventBus
	sess   *discordgo.Session

	typingMu     sync.Mutex
	typingCancel map[string]context.CancelFunc
}

// NewDiscord creates a new Discord channel adapter.
func NewDiscord(cfg config.DiscordConfig, b *bus.EventBus) *Discord {
	return &Discord{
		config:       cfg,
		bus:          b,
		typingCancel: make(map[string]context.CancelFunc),
	}
}

func (d *Discord) Name() string { return "discord" }

// Start opens the gateway session and begins dispatching events.
func (d *Discord) Start(ctx context.Context) error {
	if d.config.Token == "" {
		return fmt.Errorf("discord bot token not configured")
	}

	sess, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	sess.Identify.Intents = discordgo.Intent(d.config.Intents)

	sess.AddHandler(func(s *discordgo.Session, evt *discordgo.MessageCreate) {
		d.handleMessageCreate(ctx, s, evt)
	})
	sess.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("discord gateway ready", "user", r.User.Username)
	})

	if err := sess.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	d.sess = sess

	<-ctx.Done()
	return ctx.Err()
}

// Stop closes the gateway session and cancels every outstanding typing
// indicator.
func (d *Discord) Stop() error {
	d.typingMu.Lock()
	for _, cancel := range d.typingCancel {
		cancel()
	}
	d.typingCancel = make(map[string]context.CancelFunc)
	d.typingMu.Unlock()

	if d.sess != nil {
		return d.sess.Close()
	}
	return nil
}

// Send posts a reply through the REST API as a plain channel message;
// it does not reference the triggering message.
func (d *Discord) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	defer d.stopTyping(msg.GroupID)

	data := &discordgo.MessageSend{Content: msg.Content}
	_, err := d.sess.ChannelMessageSendComplex(msg.GroupID, data, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}

func (d *Discord) handleMessageCreate(ctx context.Context, s *discordgo.Session, evt *discordgo.MessageCreate) {
	if evt.Author == nil || evt.Author.Bot {
		return
	}
	if !IsAllowed(evt.Author.ID, d.config.AllowFrom) {
		return
	}

	parts := d.resolveParts(evt)
	if len(parts) == 0 {
		return
	}

	d.startTyping(ctx, evt.ChannelID)

	d.bus.PublishInbound(&bus.InboundEvent{
		GroupID:  evt.ChannelID,
		UserID:   evt.Author.ID,
		UserName: displayName(evt.Member, evt.Author),
		Parts:    parts,
		Time:     time.Now(),
	})
}

// resolveParts tags each fragment of a gateway message the way the
// ingress resolver expects: plain text, `at` mentions (self-mentions
// flagged with the sentinel the resolver compares against the agent's
// own session name), and attachments treated as images, except image
// attachments at most 160px on each side, which are tagged as emoji.
func (d *Discord) resolveParts(evt *discordgo.MessageCreate) []bus.Part {
	var parts []bus.Part

	content := evt.Content
	for _, u := range evt.Mentions {
		target := u.ID
		if d.sess != nil && d.sess.State != nil && d.sess.State.User != nil && u.ID == d.sess.State.User.ID {
			target = "self"
		}
		content = strings.ReplaceAll(content, "<@"+u.ID+">", "")
		content = strings.ReplaceAll(content, "<@!"+u.ID+">", "")
		parts = append(parts, bus.Part{Kind: bus.PartAt, At: target})
	}

	content = strings.TrimSpace(content)
	if content != "" {
		parts = append(parts, bus.Part{Kind: bus.PartText, Text: content})
	}

	for _, att := range evt.Attachments {
		kind := bus.PartImage
		if strings.HasPrefix(att.ContentType, "image/") && att.Width <= 160 && att.Height <= 160 {
			kind = bus.PartEmoji
		}
		parts = append(parts, bus.Part{Kind: kind, Text: att.URL})
	}

	if evt.MessageReference != nil {
		parts = append(parts, bus.Part{Kind: bus.PartReply, Text: evt.MessageReference.MessageID})
	}

	return parts
}

// LookupGroupMember resolves a platform user id to its nickname (the
// guild nick, or the username when no nick is set) and member card (the
// guild nick) within guildID.
func (d *Discord) LookupGroupMember(guildID, userID string) (nickname, card string, err error) {
	if d.sess == nil {
		return "", "", fmt.Errorf("discord session not started")
	}
	member, err := d.sess.GuildMember(guildID, userID)
	if err != nil {
		return "", "", fmt.Errorf("lookup guild member: %w", err)
	}
	nickname = member.Nick
	if nickname == "" && member.User != nil {
		nickname = member.User.Username
	}
	return nickname, member.Nick, nil
}

func displayName(member *discordgo.Member, author *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if author != nil {
		return author.Username
	}
	return "unknown"
}

func (d *Discord) startTyping(ctx context.Context, channelID string) {
	d.stopTyping(channelID)

	typingCtx, cancel := context.WithCancel(ctx)
	d.typingMu.Lock()
	d.typingCancel[channelID] = cancel
	d.typingMu.Unlock()

	go func() {
		for {
			if d.sess != nil {
				if err := d.sess.ChannelTyping(channelID); err != nil {
					slog.Warn("discord typing indicator failed", "err", err)
				}
			}
			select {
			case <-typingCtx.Done():
				return
			case <-time.After(typingInterval):
			}
		}
	}()
}

func (d *Discord) stopTyping(channelID string) {
	d.typingMu.Lock()
	defer d.typingMu.Unlock()
	if cancel, ok := d.typingCancel[channelID]; ok {
		cancel()
		delete(d.typingCancel, channelID)
	}
}
