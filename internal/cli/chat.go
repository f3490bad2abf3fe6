package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joebot/nekobot/internal/command"
)

// --- message types ---

type commandResultMsg struct {
	content string
	err     error
}

// --- console entry ---

type consoleEntry struct {
	role    string // "input", "output", "error"
	content string
}

// --- operator console model ---

// consoleModel is the operator-facing REPL over command.Dispatcher: every
// line is `<command> [<group_id>] [args...]`, except `help` and
// `list_groups` which need no group id.
type consoleModel struct {
	input    textinput.Model
	viewport viewport.Model

	history []consoleEntry
	waiting bool

	dispatcher *command.Dispatcher
	ctx        context.Context

	ready  bool
	width  int
	height int
}

func newConsoleModel(dispatcher *command.Dispatcher, ctx context.Context) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "help | status <group_id> | set_role <group_id> <name> <role> | list_groups"
	ti.Focus()
	ti.CharLimit = 0
	ti.Prompt = "❯ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(Accent)

	return consoleModel{
		input: ti,
		dispatcher: dispatcher,
		ctx:        ctx,
	}
}

func (m consoleModel) Init() tea.Cmd { return nil }

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 5
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			if isExitCmd(line) {
				return m, tea.Quit
			}
			m.history = append(m.history, consoleEntry{role: "input", content: line})
			m.input.SetValue("")
			m.viewport.SetContent(m.renderHistory())
			m.viewport.GotoBottom()
			return m, m.runLine(line)
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case commandResultMsg:
		m.waiting = false
		if msg.err != nil {
			m.history = append(m.history, consoleEntry{role: "error", content: msg.err.Error()})
		} else {
			m.history = append(m.history, consoleEntry{role: "output", content: msg.content})
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m consoleModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := TitleStyle.Render(fmt.Sprintf(" %s nekobot operator console", Logo))
	divider := DimStyle.Render(strings.Repeat("─", m.width))

	return header + "\n" +
		divider + "\n" +
		m.viewport.View() + "\n" +
		divider + "\n" +
		" " + m.input.View()
}

func (m consoleModel) renderHistory() string {
	if len(m.history) == 0 {
		return m.renderWelcome()
	}

	var sb strings.Builder
	for _, entry := range m.history {
		sb.WriteString("\n")
		switch entry.role {
		case "input":
			sb.WriteString("  " + UserLabel.Render("❯ "+entry.content) + "\n")
		case "output":
			for _, line := range strings.Split(entry.content, "\n") {
				sb.WriteString("  " + line + "\n")
			}
		case "error":
			sb.WriteString("  " + ErrStyle.Render("Error: "+entry.content) + "\n")
		}
	}
	return sb.String()
}

func (m consoleModel) renderWelcome() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(RenderBanner())
	sb.WriteString("\n")
	sb.WriteString("  " + BoldStyle.Render("Operator commands:") + "\n")
	sb.WriteString(DimStyle.Render("  help") + "\n")
	sb.WriteString(DimStyle.Render("  list_groups") + "\n")
	sb.WriteString(DimStyle.Render("  status <group_id>") + "\n")
	sb.WriteString(DimStyle.Render("  set_role <group_id> <name> <role>") + "\n")
	return sb.String()
}

// runLine parses one console line into a command name plus arguments.
// `help` and `list_groups` need no group id; every other command takes
// it as its leading argument, the private-chat calling convention.
func (m consoleModel) runLine(line string) tea.Cmd {
	fields := strings.Fields(line)
	name := fields[0]
	rest := fields[1:]

	return func() tea.Msg {
		var (
			out string
			err error
		)
		if name == "help" || name == "list_groups" {
			out, err = m.dispatcher.Execute(m.ctx, "", name, rest)
		} else {
			out, err = m.dispatcher.ExecutePrivate(m.ctx, name, rest)
		}
		return commandResultMsg{content: out, err: err}
	}
}

func isExitCmd(s string) bool {
	s = strings.ToLower(s)
	return s == "exit" || s == "quit" || s == ":q"
}

// RunConsole starts the interactive operator console.
func RunConsole(dispatcher *command.Dispatcher, ctx context.Context) error {
	m := newConsoleModel(dispatcher, ctx)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
