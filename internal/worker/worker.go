// Package worker implements the per-group background polling loop: wake
// after a randomized delay, drain the pending batch under the Session's
// lock, run the cognitive pipeline, and dispatch any replies. The sleep
// randomization and select-on-ctx.Done shape are grounded on the
// upstream agent's heartbeat.Service.Run ticker loop. The Session's lock
// is held from the drain through the whole pipeline run.
package worker

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/pipeline"
	"github.com/joebot/nekobot/internal/session"
)

const (
	minSleep = 5 * time.Second
	maxSleep = 10 * time.Second
)

func randomSleep() time.Duration {
	return minSleep + time.Duration(rand.Int63n(int64(maxSleep-minSleep)))
}

// Worker drives one Session's background loop.
type Worker struct {
	sess     *session.Session
	pipeline *pipeline.Pipeline
	outbound func(ctx context.Context, msg *bus.OutboundMessage)
}

// New creates a worker for sess. outbound is invoked once per reply, in
// the order the pipeline produced them, while the Session's lock is
// still held so replies never interleave with a concurrent tick.
func New(sess *session.Session, p *pipeline.Pipeline, outbound func(ctx context.Context, msg *bus.OutboundMessage)) *Worker {
	return &Worker{sess: sess, pipeline: p, outbound: outbound}
}

// Run blocks until ctx is cancelled, running one tick per randomized
// sleep interval. A timer (not a ticker) is used so each interval is
// independently redrawn from Uniform(5,10)s rather than fixed.
func (w *Worker) Run(ctx context.Context) {
	timer := time.NewTimer(randomSleep())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			w.tick(ctx)
			timer.Reset(randomSleep())
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	w.sess.Lock()
	defer w.sess.Unlock()

	batch := w.sess.DrainPending()
	if len(batch) == 0 {
		return
	}

	replies, err := w.runPipeline(ctx, batch)
	if err != nil {
		slog.Error("pipeline run failed, batch dropped", "session", w.sess.ID(), "err", err)
		return
	}

	now := time.Now()
	for _, text := range replies {
		w.sess.RecordReply(now, text)
		if w.outbound != nil {
			w.outbound(ctx, &bus.OutboundMessage{GroupID: w.sess.ID(), Content: text})
		}
	}

	if err := w.sess.Persist(); err != nil {
		slog.Error("session persist failed", "session", w.sess.ID(), "err", err)
	}
}

// runPipeline recovers from a panicking pipeline run so one bad batch
// never kills the group's worker goroutine.
func (w *Worker) runPipeline(ctx context.Context, batch []bus.Message) (replies []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline panicked, batch dropped", "session", w.sess.ID(), "panic", r)
			err = nil
			replies = nil
		}
	}()
	return w.pipeline.Run(ctx, w.sess, batch)
}
