// Command nekobot runs the group-chat companion core: a per-group
// Session with emotion, short- and long-term memory, and a stochastic
// chattiness automaton, fed by a Discord adapter and reachable by an
// operator console.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joebot/nekobot/internal/bus"
	"github.com/joebot/nekobot/internal/channel"
	"github.com/joebot/nekobot/internal/cli"
	"github.com/joebot/nekobot/internal/command"
	"github.com/joebot/nekobot/internal/config"
	"github.com/joebot/nekobot/internal/embedding"
	"github.com/joebot/nekobot/internal/groupregistry"
	"github.com/joebot/nekobot/internal/imagecache"
	"github.com/joebot/nekobot/internal/ingress"
	"github.com/joebot/nekobot/internal/llm"
	"github.com/joebot/nekobot/internal/logging"
	"github.com/joebot/nekobot/internal/presets"
	"github.com/joebot/nekobot/internal/vlm"
)

const version = "0.1.0"
const logo = "🐱"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		cmdRun()
	case "status":
		cli.RunStatus(mustLoadConfig())
	case "onboard":
		cli.RunOnboard()
	case "version", "--version", "-v":
		fmt.Printf("%s nekobot v%s\n", logo, version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s nekobot - group-chat companion core

Usage:
  nekobot run       Start the Discord adapter, background workers, and operator console
  nekobot status     Show configuration status
  nekobot onboard    Initialize config and on-disk layout
  nekobot version    Show version
`, logo)
}

func cmdRun() {
	cfg := mustLoadConfig()
	setupLogging()

	var provider llm.Provider = llm.NewOpenAIProvider(cfg.Chat.OpenAIAPIKey, cfg.Chat.OpenAIBaseURL, cfg.Chat.OpenAIModel, nil)
	model := cfg.Chat.OpenAIModel
	if cfg.PreferAnthropic() {
		provider = llm.NewAnthropicProvider(cfg.Chat.AnthropicAPIKey, cfg.Chat.AnthropicBaseURL, "", nil)
		model = ""
	}
	embedder := embedding.NewHTTPProvider(cfg.Chat.SiliconflowAPIKey, "https://api.siliconflow.cn/v1", "")
	describer := vlm.NewHTTPDescriber(cfg.Chat.OpenAIAPIKey, cfg.Chat.OpenAIBaseURL, "")

	if err := os.MkdirAll(cfg.SessionDirPath(), 0o755); err != nil {
		slog.Error("create session dir", "err", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.LongTermDirPath(), 0o755); err != nil {
		slog.Error("create long-term dir", "err", err)
		os.Exit(1)
	}

	cache, err := imagecache.New(cfg.ImageCacheDirPath())
	if err != nil {
		slog.Error("create image cache", "err", err)
		os.Exit(1)
	}

	presetRegistry, err := presets.Load(cfg.PresetDirPath())
	if err != nil {
		slog.Error("load presets", "err", err)
		os.Exit(1)
	}

	eventBus := bus.NewEventBus()

	registry := groupregistry.New(groupregistry.Deps{
		Provider:    provider,
		Model:       model,
		Embedder:    embedder,
		SnapshotDir: cfg.SessionDirPath(),
		LongTermDir: cfg.LongTermDirPath(),
		OutboundQueue: func(ctx context.Context, msg *bus.OutboundMessage) {
			eventBus.PublishOutbound(msg)
		},
	})

	resolver := ingress.New(registry, cache, describer)
	dispatcher := command.New(registry, presetRegistry)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, groupID := range cfg.Chat.EnabledGroups {
		registry.Ensure(ctx, fmt.Sprintf("%d", groupID))
	}

	go resolver.Run(ctx, eventBus)
	go eventBus.DispatchOutbound(ctx)

	var discord *channel.Discord
	if cfg.Channels.Discord.Enabled {
		discord = channel.NewDiscord(cfg.Channels.Discord, eventBus)
		eventBus.Subscribe(discord.Send)
		go func() {
			if err := discord.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("discord adapter stopped", "err", err)
			}
		}()
	}

	consoleErr := make(chan error, 1)
	go func() { consoleErr <- cli.RunConsole(dispatcher, ctx) }()

	select {
	case <-ctx.Done():
	case err := <-consoleErr:
		if err != nil {
			slog.Error("operator console exited", "err", err)
		}
	}

	cancel()
	if discord != nil {
		discord.Stop()
	}
	registry.Shutdown()
}

// setupLogging routes slog through the compact file handler. Run hosts
// the operator console on the alt screen, so logs go to a file rather
// than stderr to avoid tearing the TUI.
func setupLogging() {
	path := filepath.Join(config.DataDir(), "nekobot.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.SetDefault(slog.New(logging.NewHandler(os.Stderr, &logging.Options{Level: slog.LevelInfo})))
		slog.Warn("open log file, falling back to stderr", "path", path, "err", err)
		return
	}
	slog.SetDefault(slog.New(logging.NewHandler(f, &logging.Options{Level: slog.LevelInfo})))
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %s\n", err)
		os.Exit(1)
	}
	return cfg
}
