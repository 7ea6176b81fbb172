package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "BOOKPUBLISHER_CONFIG"
	logLevelEnv       = "LOG_LEVEL"
	dataDirEnv        = "DATA_DIR"
	ollamaHostEnv     = "OLLAMA_HOST"
	llmProviderEnv    = "LLM_PROVIDER"
	llmModelEnv       = "LLM_MODEL"
	llmAPIKeyEnv      = "LLM_API_KEY"
	llmTemperatureEnv = "LLM_TEMPERATURE"
	embeddingModelEnv = "EMBEDDING_MODEL"
	archiveDSNEnv     = "ARCHIVE_DSN"
	browserExecEnv    = "CHROME_PATH"
	httpAddrEnv       = "HTTP_ADDR"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Provider names accepted for language models and embeddings.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Data          DataConfig         `yaml:"data"`
	Browser       BrowserConfig      `yaml:"browser"`
	LLM           LLMConfig          `yaml:"llm"`
	Review        ReviewConfig       `yaml:"review"`
	Embedding     EmbeddingConfig    `yaml:"embedding"`
	Archive       ArchiveConfig      `yaml:"archive"`
	Server        ServerConfig       `yaml:"server"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DataConfig points at the artifact tree root.
type DataConfig struct {
	Root string `yaml:"root"`
}

// BrowserConfig selects how pages are rendered.
type BrowserConfig struct {
	// Mode is "chrome" (headless browser, screenshots) or "http" (static fetch).
	Mode     string        `yaml:"mode"`
	Headless *bool         `yaml:"headless"`
	ExecPath string        `yaml:"execPath"`
	Timeout  time.Duration `yaml:"timeout"`
}

// IsHeadless defaults to true when unset.
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// LLMConfig defines how to contact the chat model.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"apiKey"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Stream      *bool         `yaml:"stream"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StreamEnabled defaults to true when unset.
func (l LLMConfig) StreamEnabled() bool {
	return l.Stream == nil || *l.Stream
}

// ReviewConfig selects how the critique response is shaped.
type ReviewConfig struct {
	// Mode is "marker" (split on "Review Report:") or "structured" (JSON object).
	Mode string `yaml:"mode"`
}

// EmbeddingConfig defines the embeddings backend.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
	Model    string `yaml:"model"`
}

// ArchiveConfig describes the SQL database backing the search index.
type ArchiveConfig struct {
	Driver       string        `yaml:"driver"`
	DSN          string        `yaml:"dsn"`
	// SyncInterval re-ingests final artifacts while the web UI runs; zero disables it.
	SyncInterval time.Duration `yaml:"syncInterval"`
}

// ServerConfig configures the interactive web UI.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SiteConfig describes where chapter text lives on one site.
type SiteConfig struct {
	Name       string   `yaml:"name"`
	Hosts      []string `yaml:"hosts"`
	Container  string   `yaml:"container"`
	Paragraphs string   `yaml:"paragraphs"`
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit YAML path; an empty path falls back to BOOKPUBLISHER_CONFIG.
func LoadFrom(path string) Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot read .env: %v", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := Parse(raw)
			if err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(dataDirEnv); v != "" {
		c.Data.Root = v
	}
	if v := os.Getenv(llmProviderEnv); v != "" && v != c.LLM.Provider {
		c.LLM.Provider = v
		c.LLM.Endpoint = defaultChatEndpoint(v)
	}
	if v := os.Getenv(ollamaHostEnv); v != "" {
		if c.LLM.Provider == ProviderOllama {
			c.LLM.Endpoint = v
		}
		if c.Embedding.Provider == ProviderOllama {
			c.Embedding.Endpoint = v
		}
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
	}
	if v := os.Getenv(llmTemperatureEnv); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			c.LLM.Temperature = parsed
		} else {
			log.Printf("config: ignoring %s=%q: %v", llmTemperatureEnv, v, err)
		}
	}
	if v := os.Getenv(embeddingModelEnv); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv(archiveDSNEnv); v != "" {
		c.Archive.DSN = v
	}
	if v := os.Getenv(browserExecEnv); v != "" {
		c.Browser.ExecPath = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Data.Root != "" {
		base.Data.Root = override.Data.Root
	}

	if override.Browser.Mode != "" {
		base.Browser.Mode = override.Browser.Mode
	}
	if override.Browser.Headless != nil {
		base.Browser.Headless = override.Browser.Headless
	}
	if override.Browser.ExecPath != "" {
		base.Browser.ExecPath = override.Browser.ExecPath
	}
	if override.Browser.Timeout > 0 {
		base.Browser.Timeout = override.Browser.Timeout
	}

	if override.LLM.Provider != "" {
		base.LLM.Provider = override.LLM.Provider
		base.LLM.Endpoint = defaultChatEndpoint(override.LLM.Provider)
	}
	if override.LLM.Stream != nil {
		base.LLM.Stream = override.LLM.Stream
	}
	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.Temperature > 0 {
		base.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.Timeout > 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}

	if override.Review.Mode != "" {
		base.Review.Mode = override.Review.Mode
	}

	if override.Embedding.Provider != "" {
		base.Embedding.Provider = override.Embedding.Provider
		base.Embedding.Endpoint = defaultEmbeddingEndpoint(override.Embedding.Provider)
	}
	if override.Embedding.Endpoint != "" {
		base.Embedding.Endpoint = override.Embedding.Endpoint
	}
	if override.Embedding.APIKey != "" {
		base.Embedding.APIKey = override.Embedding.APIKey
	}
	if override.Embedding.Model != "" {
		base.Embedding.Model = override.Embedding.Model
	}

	if override.Archive.Driver != "" {
		base.Archive.Driver = override.Archive.Driver
	}
	if override.Archive.DSN != "" {
		base.Archive.DSN = override.Archive.DSN
	}
	if override.Archive.SyncInterval > 0 {
		base.Archive.SyncInterval = override.Archive.SyncInterval
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func defaultChatEndpoint(provider string) string {
	if provider == ProviderOpenAI {
		return "https://api.openai.com/v1/chat/completions"
	}
	return "http://localhost:11434"
}

func defaultEmbeddingEndpoint(provider string) string {
	if provider == ProviderOpenAI {
		return "https://api.openai.com/v1/embeddings"
	}
	return "http://localhost:11434"
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Data:    DataConfig{Root: "data"},
		Browser: BrowserConfig{Mode: "chrome", Timeout: 60 * time.Second},
		LLM: LLMConfig{
			Provider:    ProviderOllama,
			Endpoint:    defaultChatEndpoint(ProviderOllama),
			Model:       "llama3.1:8b",
			Temperature: 0.8,
			Timeout:     10 * time.Minute,
		},
		Review: ReviewConfig{Mode: "marker"},
		Embedding: EmbeddingConfig{
			Provider: ProviderOllama,
			Endpoint: defaultEmbeddingEndpoint(ProviderOllama),
			Model:    "all-minilm",
		},
		Archive: ArchiveConfig{Driver: "sqlite", DSN: "chroma_store/chapters.db"},
		Server:  ServerConfig{Addr: ":8501"},
		Sites: []SiteConfig{
			{
				Name:       "wikisource",
				Hosts:      []string{"wikisource.org"},
				Container:  "div.prp-pages-output",
				Paragraphs: "p",
			},
		},
	}
}
