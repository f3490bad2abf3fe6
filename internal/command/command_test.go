package command

import (
	"context"
	"testing"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/groupregistry"
	"github.com/joebot/nekobot/internal/llm"
	"github.com/joebot/nekobot/internal/presets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct{}

func (fakeProvider) DefaultModel() string { return "test" }
func (fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: "ok"}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *groupregistry.Registry) {
	t.Helper()
	reg := groupregistry.New(groupregistry.Deps{
		Provider:      fakeProvider{},
		Model:         "test",
		Embedder:      fakeEmbedder{},
		SnapshotDir:   t.TempDir(),
		LongTermDir:   t.TempDir(),
		OutboundQueue: func(ctx context.Context, msg *bus.OutboundMessage) {},
	})
	presetReg, err := presets.Load(t.TempDir())
	require.NoError(t, err)
	return New(reg, presetReg), reg
}

func TestExecuteUnknownCommandReturnsUsage(t *testing.T) {
	d, reg := newTestDispatcher(t)
	defer reg.Shutdown()
	reg.Ensure(context.Background(), "g1")

	out, err := d.Execute(context.Background(), "g1", "frobnicate", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "unknown command")
}

func TestExecuteMissingSessionReturnsUsage(t *testing.T) {
	d, reg := newTestDispatcher(t)
	defer reg.Shutdown()

	out, err := d.Execute(context.Background(), "never-seen", "status", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "no session")
}

func TestSetRoleThenRoleRoundTrips(t *testing.T) {
	d, reg := newTestDispatcher(t)
	defer reg.Shutdown()
	ctx := context.Background()
	reg.Ensure(ctx, "g1")

	out, err := d.Execute(ctx, "g1", "set_role", []string{"Mimi", "a", "sleepy", "cat"})
	require.NoError(t, err)
	assert.Contains(t, out, "Mimi")

	out, err = d.Execute(ctx, "g1", "role", nil)
	require.NoError(t, err)
	assert.Equal(t, "Mimi — a sleepy cat", out)
}

func TestResetRestoresDefaultName(t *testing.T) {
	d, reg := newTestDispatcher(t)
	defer reg.Shutdown()
	ctx := context.Background()
	reg.Ensure(ctx, "g1")

	_, err := d.Execute(ctx, "g1", "set_role", []string{"Mimi", "custom", "role"})
	require.NoError(t, err)

	out, err := d.Execute(ctx, "g1", "reset", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "reset")

	out, err = d.Execute(ctx, "g1", "role", nil)
	require.NoError(t, err)
	assert.NotContains(t, out, "Mimi")
}

func TestPresetsListsSeededExample(t *testing.T) {
	d, reg := newTestDispatcher(t)
	defer reg.Shutdown()

	out, err := d.Execute(context.Background(), "g1", "presets", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "example")
}

func TestSetPresetUnknownNameDoesNotMutate(t *testing.T) {
	d, reg := newTestDispatcher(t)
	defer reg.Shutdown()
	ctx := context.Background()
	reg.Ensure(ctx, "g1")

	out, err := d.Execute(ctx, "g1", "set_preset", []string{"nope.json"})
	require.NoError(t, err)
	assert.Contains(t, out, "not found")
}

func TestExecutePrivateUsesLeadingGroupID(t *testing.T) {
	d, reg := newTestDispatcher(t)
	defer reg.Shutdown()
	ctx := context.Background()
	reg.Ensure(ctx, "g1")

	out, err := d.ExecutePrivate(ctx, "status", []string{"g1"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestListGroupsReflectsEnsuredGroups(t *testing.T) {
	d, reg := newTestDispatcher(t)
	defer reg.Shutdown()
	ctx := context.Background()
	reg.Ensure(ctx, "g1")
	reg.Ensure(ctx, "g2")

	out, err := d.Execute(ctx, "ignored", "list_groups", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "g1")
	assert.Contains(t, out, "g2")
}
