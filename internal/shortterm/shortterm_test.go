package shortterm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(name, content string) bus.Message {
	return bus.Message{Time: time.Now(), UserName: name, Content: content}
}

func TestAccessReturnsAtMostVisibleWindow(t *testing.T) {
	m := New(func(ctx context.Context, msgs []bus.Message) (string, error) { return "", nil })
	for i := 0; i < bufferCap+5; i++ {
		m.Update(context.Background(), []bus.Message{msg("u", "hi")})
	}
	win := m.Access()
	assert.LessOrEqual(t, len(win.Messages), VisibleWindow)
}

func TestBufferHardCap(t *testing.T) {
	m := New(func(ctx context.Context, msgs []bus.Message) (string, error) { return "", nil })
	for i := 0; i < bufferCap+20; i++ {
		m.Update(context.Background(), []bus.Message{msg("u", "hi")})
	}
	assert.LessOrEqual(t, len(m.messages), bufferCap)
}

func TestCompressionCancelsPriorTask(t *testing.T) {
	var started, cancelledCount, committed int32
	block := make(chan struct{})

	m := New(func(ctx context.Context, msgs []bus.Message) (string, error) {
		atomic.AddInt32(&started, 1)
		select {
		case <-ctx.Done():
			atomic.AddInt32(&cancelledCount, 1)
			return "", ctx.Err()
		case <-block:
			atomic.AddInt32(&committed, 1)
			return "done", nil
		}
	})

	batch := make([]bus.Message, VisibleWindow)
	for i := range batch {
		batch[i] = msg("u", "hi")
	}
	m.Update(context.Background(), batch) // triggers first compression, blocks on <-block
	time.Sleep(20 * time.Millisecond)
	m.Update(context.Background(), batch) // should cancel the first task and start a second

	close(block) // let whichever task(s) are still waiting proceed
	time.Sleep(20 * time.Millisecond)

	require.Equal(t, int32(2), atomic.LoadInt32(&started))
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelledCount))
}

func TestClearCancelsAndZeroes(t *testing.T) {
	done := make(chan struct{})
	m := New(func(ctx context.Context, msgs []bus.Message) (string, error) {
		<-ctx.Done()
		close(done)
		return "", ctx.Err()
	})
	batch := make([]bus.Message, VisibleWindow)
	for i := range batch {
		batch[i] = msg("u", "hi")
	}
	m.Update(context.Background(), batch)
	m.Clear()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("compression task was not cancelled by Clear")
	}
	win := m.Access()
	assert.Empty(t, win.Messages)
	assert.Empty(t, win.Compressed)
}

func TestFormatForPrompt(t *testing.T) {
	out := FormatForPrompt([]bus.Message{msg("alice", "hello")})
	assert.Equal(t, "'alice':'hello'\n", out)
}
