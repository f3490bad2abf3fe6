// Package ingress turns a platform adapter's raw InboundEvent into the
// Message the cognitive pipeline sees: image and emoji parts are
// downloaded, cached, and described; self-mentions are rewritten to the
// Session's current display name; and the result is appended to the
// target group's pending batch. This is the "ingress handler" the
// concurrency model describes as acquiring the Session's lock only to
// append, never to run the pipeline.
package ingress

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/groupregistry"
	"github.com/joebot/nekobot/internal/imagecache"
	"github.com/joebot/nekobot/internal/vlm"
)

// selfAt is the sentinel a platform adapter puts in Part.At when an `at`
// part targets the agent's own platform user id — the adapter is the
// only component that knows that id, so it resolves the comparison
// before publishing the event.
const selfAt = "self"

// Resolver consumes InboundEvents and feeds resolved Messages into the
// group registry's Sessions.
type Resolver struct {
	registry  *groupregistry.Registry
	cache     *imagecache.Cache
	describer vlm.Describer
	client    *http.Client
}

// New creates a Resolver. The image-fetch client uses a permissive TLS
// policy because the platform's image CDN is frequently served by hosts
// with certificates the default trust store rejects.
func New(registry *groupregistry.Registry, cache *imagecache.Cache, describer vlm.Describer) *Resolver {
	return &Resolver{
		registry:  registry,
		cache:     cache,
		describer: describer,
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// Run drains bus's inbound queue until ctx is cancelled.
func (r *Resolver) Run(ctx context.Context, b *bus.EventBus) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-b.Inbound:
			r.Handle(ctx, evt)
		}
	}
}

// Handle resolves one event's parts and enqueues the resulting Message.
// An event with no content-bearing part creates no session.
func (r *Resolver) Handle(ctx context.Context, evt *bus.InboundEvent) {
	empty := true
	for _, p := range evt.Parts {
		if (p.Kind == bus.PartText && p.Text != "") || p.Kind == bus.PartAt || p.Kind == bus.PartImage || p.Kind == bus.PartEmoji {
			empty = false
			break
		}
	}
	if empty {
		return
	}

	sess := r.registry.Ensure(ctx, evt.GroupID)

	sess.Lock()
	name := sess.Name()
	sess.Unlock()

	content := r.resolveParts(ctx, evt.Parts, name)
	if content == "" {
		return
	}

	msg := bus.Message{Time: evt.Time, UserName: evt.UserName, Content: content}

	sess.Lock()
	sess.Enqueue(msg)
	sess.Unlock()
}

func (r *Resolver) resolveParts(ctx context.Context, parts []bus.Part, agentName string) string {
	var sb strings.Builder
	for _, part := range parts {
		switch part.Kind {
		case bus.PartText:
			sb.WriteString(part.Text)
		case bus.PartAt:
			if part.At == selfAt {
				fmt.Fprintf(&sb, "@%s", agentName)
			} else {
				fmt.Fprintf(&sb, "@%s", part.At)
			}
		case bus.PartImage:
			sb.WriteString(r.describeImage(ctx, part.Text, false))
		case bus.PartEmoji:
			sb.WriteString(r.describeImage(ctx, part.Text, true))
		case bus.PartReply:
			// Reply-to context carries no text of its own; the platform
			// adapter is expected to include the quoted content as a
			// separate text part when it matters.
		default:
			// Unknown parts are ignored.
		}
	}
	return sb.String()
}

func (r *Resolver) describeImage(ctx context.Context, fetchURL string, isSticker bool) string {
	fileID := fileIDFromURL(fetchURL)

	data, cached := r.cache.LoadRaw(fileID)
	if !cached {
		fetched, err := r.fetch(ctx, fetchURL)
		if err != nil {
			slog.Error("image fetch failed", "url", fetchURL, "err", err)
			if isSticker {
				return "[表情包]"
			}
			return "[图片]"
		}
		data = fetched
		if err := r.cache.StoreRaw(fileID, data); err != nil {
			slog.Warn("image cache store failed", "err", err)
		}
	}

	desc, cached := r.cache.LoadDescription(data)
	if !cached {
		described, err := r.describer.Describe(ctx, data, isSticker)
		if err != nil {
			slog.Error("image description failed", "err", err)
			if isSticker {
				return "[表情包]"
			}
			return "[图片]"
		}
		desc = described
		if err := r.cache.StoreDescription(data, desc); err != nil {
			slog.Warn("description cache store failed", "err", err)
		}
	}

	if isSticker {
		return fmt.Sprintf("[表情包] [情感:%s] [内容:%s]", desc.Emotion, desc.Text)
	}
	return fmt.Sprintf("[图片] %s", desc.Text)
}

func (r *Resolver) fetch(ctx context.Context, fetchURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func fileIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("fileid")
}
