package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lecternhq/lectern/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Models       ModelsConfig       `koanf:"models"`
	Retrieval    RetrievalConfig    `koanf:"retrieval"`
	Ingest       IngestConfig       `koanf:"ingest"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Prompts      PromptsConfig      `koanf:"prompts"`
	Store        StoreConfig        `koanf:"store"`
	Adapters     AdaptersConfig     `koanf:"adapters"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type ModelsConfig struct {
	Default             string          `koanf:"default"`
	Fallback            string          `koanf:"fallback"`
	Embedding           string          `koanf:"embedding"`
	MaxTokens           int             `koanf:"max_tokens"`
	MaxFallbackAttempts int             `koanf:"max_fallback_attempts"`
	Registry            []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name     string `koanf:"name"`
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type RetrievalConfig struct {
	MaxResults       int     `koanf:"max_results"`
	ResolveThreshold float64 `koanf:"resolve_threshold"`
	RequestTimeout   string  `koanf:"request_timeout"`
}

type IngestConfig struct {
	DocsPath        string `koanf:"docs_path"`
	ChunkSize       int    `koanf:"chunk_size"`
	ChunkOverlap    int    `koanf:"chunk_overlap"`
	ReindexSchedule string `koanf:"reindex_schedule"`
}

type OrchestratorConfig struct {
	MaxRounds           int    `koanf:"max_rounds"`
	SessionHistoryLimit int    `koanf:"session_history_limit"`
	EngineTimeout       string `koanf:"engine_timeout"`
}

type PromptsConfig struct {
	Assistant AssistantPromptConfig `koanf:"assistant"`
}

type AssistantPromptConfig struct {
	System string `koanf:"system"`
}

type StoreConfig struct {
	DataPath     string `koanf:"data_path"`
	LockTimeout  string `koanf:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry"`
	LockMaxRetry int    `koanf:"lock_max_retry"`
	InboxSize    int    `koanf:"inbox_size"`
}

type AdaptersConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type SlackConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Port          int    `koanf:"port"`
	SigningSecret string `koanf:"signing_secret"`
	BotToken      string `koanf:"bot_token"`
}

type TelegramConfig struct {
	Enabled       bool   `koanf:"enabled"`
	BotToken      string `koanf:"bot_token"`
	UpdateTimeout int    `koanf:"update_timeout"`
}

const (
	DefaultServerPort            = 8080
	DefaultServerLogLevel        = "info"
	DefaultServerReadTimeout     = "10s"
	DefaultServerWriteTimeout    = "30s"
	DefaultServerIdleTimeout     = "60s"
	DefaultServerShutdownTimeout = "5s"

	DefaultModelDefault          = "claude-sonnet-4-20250514"
	DefaultModelFallback         = "gpt-4o-mini"
	DefaultModelEmbedding        = "text-embedding-3-small"
	DefaultModelMaxTokens        = 800
	DefaultMaxFallbackAttempts   = 2
	DefaultOpenAIBaseURL         = "https://api.openai.com/v1"
	DefaultOllamaBaseURL         = "http://localhost:11434/v1"
	DefaultOllamaAPIKey          = "ollama"

	DefaultRetrievalMaxResults       = 5
	DefaultRetrievalResolveThreshold = 0.35
	DefaultRetrievalRequestTimeout   = "15s"

	DefaultIngestDocsPath     = "docs"
	DefaultIngestChunkSize    = 800
	DefaultIngestChunkOverlap = 100

	DefaultOrchestratorMaxRounds    = 2
	DefaultSessionHistoryLimit      = 10
	DefaultOrchestratorEngineTimeout = "60s"

	DefaultStoreLockTimeout  = "30s"
	DefaultStoreLockRetry    = "100ms"
	DefaultStoreLockMaxRetry = 300
	DefaultStoreInboxSize    = 100

	DefaultSlackPort             = 3000
	DefaultTelegramUpdateTimeout = 60

	DefaultAssistantSystemPrompt = "You are a course materials assistant. Answer questions about the course catalog using the provided tools. " +
		"Use search_course_content for questions about specific topics or lesson content, and get_course_outline for questions about " +
		"course structure, lesson lists, or what a course covers. Search at most once per question when possible, ground your answer " +
		"in the retrieved material, and say so plainly when nothing relevant was found. Keep answers concise."
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.port":              DefaultServerPort,
		"server.log_level":         DefaultServerLogLevel,
		"server.read_timeout":      DefaultServerReadTimeout,
		"server.write_timeout":     DefaultServerWriteTimeout,
		"server.idle_timeout":      DefaultServerIdleTimeout,
		"server.shutdown_timeout":  DefaultServerShutdownTimeout,
		"models.default":           DefaultModelDefault,
		"models.fallback":          DefaultModelFallback,
		"models.embedding":         DefaultModelEmbedding,
		"models.max_tokens":        DefaultModelMaxTokens,
		"models.max_fallback_attempts": DefaultMaxFallbackAttempts,
		"models.registry": []ModelRegistry{
			{Name: DefaultModelDefault, Provider: "anthropic"},
			{Name: DefaultModelFallback, Provider: "openai"},
			{Name: DefaultModelEmbedding, Provider: "openai"},
		},
		"retrieval.max_results":        DefaultRetrievalMaxResults,
		"retrieval.resolve_threshold":  DefaultRetrievalResolveThreshold,
		"retrieval.request_timeout":    DefaultRetrievalRequestTimeout,
		"ingest.docs_path":             DefaultIngestDocsPath,
		"ingest.chunk_size":            DefaultIngestChunkSize,
		"ingest.chunk_overlap":         DefaultIngestChunkOverlap,
		"ingest.reindex_schedule":      "",
		"orchestrator.max_rounds":      DefaultOrchestratorMaxRounds,
		"orchestrator.session_history_limit": DefaultSessionHistoryLimit,
		"orchestrator.engine_timeout":  DefaultOrchestratorEngineTimeout,
		"prompts.assistant.system":     DefaultAssistantSystemPrompt,
		"store.data_path":              filepath.Join(os.Getenv("HOME"), ".lectern", "data"),
		"store.lock_timeout":           DefaultStoreLockTimeout,
		"store.lock_retry":             DefaultStoreLockRetry,
		"store.lock_max_retry":         DefaultStoreLockMaxRetry,
		"store.inbox_size":             DefaultStoreInboxSize,
		"adapters.slack.port":          DefaultSlackPort,
		"adapters.telegram.update_timeout": DefaultTelegramUpdateTimeout,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".lectern", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider("LECTERN_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "LECTERN_")), "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "openai"
		}
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	// Post-Process: Inject standard Env Vars if missing
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "anthropic" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "openai" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "gemini" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}

	return &cfg, nil
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	dataPath, err := expandConfiguredPath(cfg.Store.DataPath)
	if err != nil {
		return err
	}
	if dataPath != "" {
		cfg.Store.DataPath = dataPath
	}

	docsPath, err := expandConfiguredPath(cfg.Ingest.DocsPath)
	if err != nil {
		return err
	}
	if docsPath != "" {
		cfg.Ingest.DocsPath = docsPath
	}

	return nil
}

func expandConfiguredPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	expanded, err := pathutil.Expand(trimmed)
	if err != nil {
		return "", err
	}
	return expanded, nil
}
