// Package command implements the privileged operator command surface:
// a small line-oriented dispatcher mutating or inspecting a group's
// Session, grounded on the upstream agent's slash-command registry
// (name + description pairs resolved to a handler by a lookup map).
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/joebot/nekobot/internal/groupregistry"
	"github.com/joebot/nekobot/internal/presets"
	"github.com/joebot/nekobot/internal/session"
)

// Command is one recognized command's name and one-line description,
// as surfaced by `help`.
type Command struct {
	Name        string
	Description string
}

// Handler runs one command against an already-locked Session.
type Handler func(ctx context.Context, sess *session.Session, args []string) (string, error)

// Dispatcher resolves a command name to a Handler and runs it against
// the addressed group's Session under that Session's own mutex, the
// way the worker and the ingress resolver do.
type Dispatcher struct {
	registry *groupregistry.Registry
	presets  *presets.Registry

	defs     []Command
	handlers map[string]Handler
}

// New creates a Dispatcher wired to the live group registry and preset
// registry.
func New(registry *groupregistry.Registry, presetRegistry *presets.Registry) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		presets:  presetRegistry,
		handlers: make(map[string]Handler),
	}
	d.register("help", "Show available commands", d.handleHelp)
	d.register("status", "Show this group's current session status", d.handleStatus)
	d.register("set_role <name> <role>", "Set the agent's display name and persona for this group", d.handleSetRole)
	d.register("role", "Show the agent's current name and persona for this group", d.handleRole)
	d.register("calm", "Zero emotion and per-user profiles, keep memory and summary", d.handleCalm)
	d.register("reset", "Reset this group's session to defaults, keep the worker alive", d.handleReset)
	d.register("presets", "List available role presets", d.handlePresets)
	d.register("set_preset <filename>", "Reset then apply a named role preset", d.handleSetPreset)
	return d
}

func (d *Dispatcher) register(name, description string, h Handler) {
	d.defs = append(d.defs, Command{Name: name, Description: description})
	d.handlers[strings.Fields(name)[0]] = h
}

// Commands returns every registered command's name and description.
func (d *Dispatcher) Commands() []Command { return d.defs }

// Execute runs a command against groupID's session, acquiring its
// mutex for the duration. help and presets read no session and run for
// any groupID, including "". An unrecognized command name or a missing
// session surfaces as a literal usage string rather than an error.
func (d *Dispatcher) Execute(ctx context.Context, groupID, name string, args []string) (string, error) {
	if name == "list_groups" {
		return d.listGroups(), nil
	}

	h, ok := d.handlers[name]
	if !ok {
		return fmt.Sprintf("unknown command %q; try \"help\"", name), nil
	}
	if name == "help" || name == "presets" {
		return h(ctx, nil, args)
	}

	sess, ok := d.registry.Get(groupID)
	if !ok {
		return fmt.Sprintf("no session for group %q", groupID), nil
	}

	sess.Lock()
	defer sess.Unlock()
	return h(ctx, sess, args)
}

// ExecutePrivate runs a command issued from a private chat, where the
// target group id is the command's first argument.
func (d *Dispatcher) ExecutePrivate(ctx context.Context, name string, args []string) (string, error) {
	if len(args) == 0 {
		return "usage: <group_id> [args...]", nil
	}
	return d.Execute(ctx, args[0], name, args[1:])
}

func (d *Dispatcher) listGroups() string {
	ids := d.registry.GroupIDs()
	sort.Strings(ids)
	if len(ids) == 0 {
		return "no enabled groups have an active session yet"
	}
	return strings.Join(ids, "\n")
}

func (d *Dispatcher) handleHelp(_ context.Context, _ *session.Session, _ []string) (string, error) {
	var sb strings.Builder
	for _, cmd := range d.defs {
		fmt.Fprintf(&sb, "%s — %s\n", cmd.Name, cmd.Description)
	}
	fmt.Fprintf(&sb, "list_groups — List enabled group ids")
	return sb.String(), nil
}

func (d *Dispatcher) handleStatus(_ context.Context, sess *session.Session, _ []string) (string, error) {
	return sess.Status(), nil
}

func (d *Dispatcher) handleSetRole(_ context.Context, sess *session.Session, args []string) (string, error) {
	if len(args) < 2 {
		return "usage: set_role <name> <role>", nil
	}
	sess.SetRole(args[0], strings.Join(args[1:], " "))
	if err := sess.Persist(); err != nil {
		return "", fmt.Errorf("persist after set_role: %w", err)
	}
	return fmt.Sprintf("role updated: %s — %s", sess.Name(), sess.Role()), nil
}

func (d *Dispatcher) handleRole(_ context.Context, sess *session.Session, _ []string) (string, error) {
	return fmt.Sprintf("%s — %s", sess.Name(), sess.Role()), nil
}

func (d *Dispatcher) handleCalm(_ context.Context, sess *session.Session, _ []string) (string, error) {
	sess.CalmDown()
	if err := sess.Persist(); err != nil {
		return "", fmt.Errorf("persist after calm: %w", err)
	}
	return "emotion and profiles cleared", nil
}

func (d *Dispatcher) handleReset(_ context.Context, sess *session.Session, _ []string) (string, error) {
	sess.Reset()
	if err := sess.Persist(); err != nil {
		return "", fmt.Errorf("persist after reset: %w", err)
	}
	return "session reset to defaults", nil
}

func (d *Dispatcher) handlePresets(_ context.Context, _ *session.Session, _ []string) (string, error) {
	names := d.presets.List()
	if len(names) == 0 {
		return "no presets available", nil
	}
	return strings.Join(names, "\n"), nil
}

func (d *Dispatcher) handleSetPreset(_ context.Context, sess *session.Session, args []string) (string, error) {
	if len(args) != 1 {
		return "usage: set_preset <filename>", nil
	}
	p, ok := d.presets.Get(args[0])
	if !ok {
		return fmt.Sprintf("preset %q not found", args[0]), nil
	}
	sess.LoadPreset(p)
	if err := sess.Persist(); err != nil {
		return "", fmt.Errorf("persist after set_preset: %w", err)
	}
	return fmt.Sprintf("preset %q applied: %s — %s", args[0], sess.Name(), sess.Role()), nil
}
