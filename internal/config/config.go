package config

import "path/filepath"

// Config is the root configuration for nekobot.
type Config struct {
	Channels ChannelsConfig `json:"channels"`
	Chat     ChatConfig     `json:"chat"`
}

// ChatConfig holds the group-chat core's own LLM/embedding/vision
// credentials, the set of groups it's allowed to run in, and the
// on-disk layout for its persisted state.
type ChatConfig struct {
	OpenAIAPIKey      string `json:"chatOpenaiApiKey"`
	OpenAIBaseURL     string `json:"chatOpenaiBaseUrl"`
	OpenAIModel       string `json:"chatOpenaiModel"`
	AnthropicAPIKey   string `json:"chatAnthropicApiKey"`
	AnthropicBaseURL  string `json:"chatAnthropicBaseUrl"`
	SiliconflowAPIKey string `json:"siliconflowApiKey"`

	EnabledGroups []int64 `json:"enabledGroups"`

	SessionDir    string `json:"sessionDir"`
	LongTermDir   string `json:"longTermDir"`
	ImageCacheDir string `json:"imageCacheDir"`
	PresetDir     string `json:"presetDir"`
}

// ChannelsConfig holds all channel configurations.
type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

// DiscordConfig holds Discord channel settings.
type DiscordConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Intents   int      `json:"intents"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Intents: 37377,
			},
		},
		Chat: ChatConfig{
			OpenAIModel:   "gpt-3.5-turbo",
			SessionDir:    "~/.nagobot/yaturningtest_sessions",
			LongTermDir:   "~/.nagobot",
			ImageCacheDir: "~/.nagobot/image_cache",
			PresetDir:     "~/.nagobot/nya_presets",
		},
	}
}

// SessionDirPath returns the expanded per-group session snapshot directory.
func (c *Config) SessionDirPath() string { return expandHome(c.Chat.SessionDir) }

// LongTermDirPath returns the expanded directory under which each
// group's long-term index directory is created.
func (c *Config) LongTermDirPath() string { return expandHome(c.Chat.LongTermDir) }

// ImageCacheDirPath returns the expanded image cache directory.
func (c *Config) ImageCacheDirPath() string { return expandHome(c.Chat.ImageCacheDir) }

// PresetDirPath returns the expanded role preset directory.
func (c *Config) PresetDirPath() string { return expandHome(c.Chat.PresetDir) }

// PreferAnthropic reports whether an Anthropic credential is configured,
// in which case the chat LLM provider prefers it over the
// OpenAI-compatible one.
func (c *Config) PreferAnthropic() bool { return c.Chat.AnthropicAPIKey != "" }

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		home := homeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
