package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joebot/nekobot/internal/config"
)

// --- onboard selection model ---

type onboardChoice int

const (
	choiceUpgrade onboardChoice = iota
	choiceOverwrite
	choiceSkip
)

type onboardModel struct {
	choices []string
	cursor  int
	chosen  bool
	choice  onboardChoice
}

func (m onboardModel) Init() tea.Cmd { return nil }

func (m onboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.choice = choiceSkip
			m.chosen = true
			return m, tea.Quit
		case tea.KeyUp, tea.KeyShiftTab:
			if m.cursor > 0 {
				m.cursor--
			}
		case tea.KeyDown, tea.KeyTab:
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case tea.KeyEnter:
			m.choice = onboardChoice(m.cursor)
			m.chosen = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m onboardModel) View() string {
	if m.chosen {
		return ""
	}

	s := "\n"
	s += fmt.Sprintf("  Config already exists at %s\n\n", DimStyle.Render(config.ConfigPath()))

	for i, choice := range m.choices {
		cursor := "  "
		if i == m.cursor {
			cursor = BotLabel.Render("❯ ")
		}
		s += "  " + cursor + choice + "\n"
	}

	s += "\n" + DimStyle.Render("  ↑/↓ navigate · enter select · ctrl+c cancel") + "\n"
	return s
}

// RunOnboard runs the onboard wizard.
func RunOnboard() {
	cfgPath := config.ConfigPath()
	var cfg *config.Config

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s nekobot Onboard", Logo)))

	if _, err := os.Stat(cfgPath); err == nil {
		// Config exists — ask what to do
		m := onboardModel{
			choices: []string{
				"Upgrade — add new fields, keep existing values",
				"Overwrite — replace with fresh defaults",
				"Skip — do not modify config",
			},
		}
		p := tea.NewProgram(m)
		final, err := p.Run()
		if err != nil {
			fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
			os.Exit(1)
		}
		fm := final.(onboardModel)

		fmt.Println()
		switch fm.choice {
		case choiceUpgrade:
			upgraded, err := config.Upgrade()
			if err != nil {
				fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
				os.Exit(1)
			}
			cfg = upgraded
			fmt.Println("  " + OkStyle.Render("✓") + " Upgraded config")
		case choiceOverwrite:
			cfg = config.DefaultConfig()
			if err := config.Save(cfg); err != nil {
				fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
				os.Exit(1)
			}
			fmt.Println("  " + OkStyle.Render("✓") + " Overwritten config")
		default:
			fmt.Println("  " + DimStyle.Render("Config unchanged"))
			cfg, _ = config.Load()
		}
	} else {
		cfg = config.DefaultConfig()
		if err := config.Save(cfg); err != nil {
			fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
			os.Exit(1)
		}
		fmt.Println()
		fmt.Println("  " + OkStyle.Render("✓") + " Created config at " + DimStyle.Render(cfgPath))
	}

	createChatDirs(cfg)

	fmt.Println()
	fmt.Println(OkStyle.Render("  nekobot is ready!"))
	fmt.Println()
	fmt.Println(DimStyle.Render("  Next steps:"))
	fmt.Println(DimStyle.Render("  1. Add your chat OpenAI-compatible API key to ~/.nagobot/config.json"))
	fmt.Println(DimStyle.Render("  2. List chat.enabledGroups for the groups nekobot should join"))
	fmt.Println(DimStyle.Render("  3. Edit a seeded preset in " + cfg.PresetDirPath()))
	fmt.Println()
}

// createChatDirs creates the on-disk layout the group-chat core expects
// to already exist: per-group session snapshots, the long-term index
// root, the image description cache, and the preset directory (which
// presets.Load seeds with an example on first read).
func createChatDirs(cfg *config.Config) {
	dirs := []struct {
		name string
		path string
	}{
		{"sessions", cfg.SessionDirPath()},
		{"long-term", cfg.LongTermDirPath()},
		{"image cache", cfg.ImageCacheDirPath()},
		{"presets", cfg.PresetDirPath()},
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d.path, 0o755); err != nil {
			fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
			continue
		}
		fmt.Println("  " + OkStyle.Render("✓") + " " + d.name + " at " + DimStyle.Render(d.path))
	}
}
