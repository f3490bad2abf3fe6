package cli

import (
	"fmt"
	"os"

	"github.com/joebot/nekobot/internal/config"
)

// RunStatus displays the current configuration status with styled output.
func RunStatus(cfg *config.Config) {
	cfgPath := config.ConfigPath()

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s nekobot Status", Logo)))
	fmt.Println()

	fmt.Printf("  %-12s %s  %s\n", "Config", StatusBadge(fileExists(cfgPath)), DimStyle.Render(cfgPath))
	fmt.Printf("  %-12s %s\n", "Chat model", cfg.Chat.OpenAIModel)
	fmt.Printf("  %-12s %d\n", "Enabled groups", len(cfg.Chat.EnabledGroups))
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Credentials"))
	fmt.Printf("    %s  Chat OpenAI-compatible key\n", StatusBadge(cfg.Chat.OpenAIAPIKey != ""))
	fmt.Printf("    %s  Siliconflow embedding key\n", StatusBadge(cfg.Chat.SiliconflowAPIKey != ""))
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Storage"))
	dirs := []struct {
		name string
		path string
	}{
		{"Sessions", cfg.SessionDirPath()},
		{"Long-term", cfg.LongTermDirPath()},
		{"Image cache", cfg.ImageCacheDirPath()},
		{"Presets", cfg.PresetDirPath()},
	}
	for _, d := range dirs {
		fmt.Printf("    %s  %-12s %s\n", StatusBadge(fileExists(d.path)), d.name, DimStyle.Render(d.path))
	}
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Channels"))
	fmt.Printf("    %s  Discord\n", StatusBadge(cfg.Channels.Discord.Enabled))
	fmt.Println()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
