package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"NewsPipeline/internal/domain"
)

const (
	configPathEnv     = "NEWS_PIPELINE_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	redisURLEnv       = "REDIS_URL"
	httpAddrEnv       = "HTTP_ADDR"
	llmAPIKeyEnv      = "LLM_API_KEY"
	mlAPIKeyEnv       = "ML_API_KEY"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultLanguage          = "en"
	defaultRetryAttempts     = 3
	defaultRetryDelaySeconds = 30
)

// Config holds high-level settings required across the application.
type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	Server     ServerConfig      `yaml:"server"`
	Logging    LoggingConfig     `yaml:"logging"`
	Scheduler  SchedulerConfig   `yaml:"scheduler"`
	Telegram   TelegramConfig    `yaml:"telegram"`
	LLM        LLMConfig         `yaml:"llm"`
	ML         MLConfig          `yaml:"ml"`
	Redis      RedisConfig       `yaml:"redis"`
	Broadcast  BroadcastConfig   `yaml:"broadcast"`
	Delivery   DeliveryConfig    `yaml:"delivery"`
	Workspaces []WorkspaceConfig `yaml:"workspaces"`
}

// DatabaseConfig describes the SQL store connection.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines how often every enabled workspace is triggered. Zero disables it.
type SchedulerConfig struct {
	IntervalMinutes int `yaml:"intervalMinutes"`
}

// Interval returns the scheduler period.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken       string `yaml:"botToken"`
	APIBaseURL     string `yaml:"apiBaseUrl"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// Timeout returns the per-request HTTP timeout.
func (t TelegramConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// LLMConfig defines how to contact a chat-completion API for translation.
type LLMConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// MLConfig describes the remote forgery/classification service.
type MLConfig struct {
	InferenceURL string `yaml:"inferenceUrl"`
	APIKey       string `yaml:"apiKey"`
}

// RedisConfig enables the shared run-scoped fingerprint set.
type RedisConfig struct {
	URL        string `yaml:"url"`
	TTLSeconds int    `yaml:"ttlSeconds"`
}

// TTL returns the lifetime of a run's fingerprint set.
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// BroadcastConfig sizes subscriber queues and status snapshots.
type BroadcastConfig struct {
	BufferSize   int `yaml:"bufferSize"`
	SnapshotSize int `yaml:"snapshotSize"`
}

// DeliveryConfig toggles the per-channel delivery ledger.
type DeliveryConfig struct {
	Ledger bool `yaml:"ledger"`
}

// WorkspaceConfig is the YAML form of a workspace.
type WorkspaceConfig struct {
	ID                string          `yaml:"id"`
	Enabled           *bool           `yaml:"enabled"`
	TargetLanguage    string          `yaml:"targetLanguage"`
	RetryAttempts     *int            `yaml:"retryAttempts"`
	RetryDelaySeconds *int            `yaml:"retryDelaySeconds"`
	DeliveryEnabled   *bool           `yaml:"deliveryEnabled"`
	Sources           []SourceConfig  `yaml:"sources"`
	Proxies           []ProxyConfig   `yaml:"proxies"`
	Channels          []ChannelConfig `yaml:"channels"`
}

// SourceConfig declares one item source.
type SourceConfig struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"kind"`
	URL     string            `yaml:"url"`
	Active  *bool             `yaml:"active"`
	Items   []domain.RawItem  `yaml:"items"`
	Options map[string]string `yaml:"options"`
}

// ProxyConfig declares one egress proxy.
type ProxyConfig struct {
	Name     string `yaml:"name"`
	Protocol string `yaml:"protocol"`
	Address  string `yaml:"address"`
	Active   *bool  `yaml:"active"`
}

// ChannelConfig declares one delivery destination.
type ChannelConfig struct {
	Name   string `yaml:"name"`
	ChatID string `yaml:"chatId"`
	Active *bool  `yaml:"active"`
}

// Load reads YAML configuration (if present), applies environment overrides and validates the result.
// An empty path falls back to NEWS_PIPELINE_CONFIG.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		fileCfg, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Path returns the config file location that Load would use.
func Path(path string) string {
	if path != "" {
		return path
	}
	return os.Getenv(configPathEnv)
}

func readFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fileCfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Scheduler.IntervalMinutes < 0 {
		errs = append(errs, errors.New("scheduler.intervalMinutes must not be negative"))
	}
	if err := validateWorkspaces(c.Workspaces); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func validateWorkspaces(workspaces []WorkspaceConfig) error {
	var errs []error
	seen := make(map[string]bool, len(workspaces))
	for i, ws := range workspaces {
		id := strings.TrimSpace(ws.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("workspaces[%d].id is required", i))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("workspace %q is declared twice", id))
		}
		seen[id] = true

		if ws.RetryAttempts != nil && *ws.RetryAttempts < 0 {
			errs = append(errs, fmt.Errorf("workspace %q: retryAttempts must not be negative", id))
		}
		if ws.RetryDelaySeconds != nil && *ws.RetryDelaySeconds < 0 {
			errs = append(errs, fmt.Errorf("workspace %q: retryDelaySeconds must not be negative", id))
		}
		for j, src := range ws.Sources {
			if !sourceKind(src.Kind).Valid() {
				errs = append(errs, fmt.Errorf("workspace %q: sources[%d] has unknown kind %q", id, j, src.Kind))
			}
			if sourceKind(src.Kind) != domain.SourceStatic && strings.TrimSpace(src.URL) == "" {
				errs = append(errs, fmt.Errorf("workspace %q: sources[%d] requires url", id, j))
			}
		}
		for j, ch := range ws.Channels {
			if strings.TrimSpace(ch.ChatID) == "" {
				errs = append(errs, fmt.Errorf("workspace %q: channels[%d] requires chatId", id, j))
			}
		}
	}
	return errors.Join(errs...)
}

func sourceKind(kind string) domain.SourceKind {
	if strings.TrimSpace(kind) == "" {
		return domain.SourceStatic
	}
	return domain.SourceKind(strings.ToLower(strings.TrimSpace(kind)))
}

// Domain resolves defaults and returns the workspace in its domain form.
func (w WorkspaceConfig) Domain() domain.Workspace {
	id := strings.TrimSpace(w.ID)
	ws := domain.Workspace{
		ID:              id,
		Enabled:         boolOr(w.Enabled, true),
		TargetLanguage:  strings.ToLower(strings.TrimSpace(w.TargetLanguage)),
		RetryAttempts:   intOr(w.RetryAttempts, defaultRetryAttempts),
		RetryDelay:      time.Duration(intOr(w.RetryDelaySeconds, defaultRetryDelaySeconds)) * time.Second,
		DeliveryEnabled: boolOr(w.DeliveryEnabled, true),
	}
	if ws.TargetLanguage == "" {
		ws.TargetLanguage = DefaultLanguage
	}

	for i, src := range w.Sources {
		kind := sourceKind(src.Kind)
		name := strings.TrimSpace(src.Name)
		if name == "" {
			name = fmt.Sprintf("%s-%d", kind, i+1)
		}
		items := make([]domain.RawItem, len(src.Items))
		copy(items, src.Items)
		ws.Sources = append(ws.Sources, domain.Source{
			Workspace: id,
			Name:      name,
			Kind:      kind,
			Endpoint:  src.URL,
			IsActive:  boolOr(src.Active, true),
			Items:     items,
			Options:   src.Options,
		})
	}
	for _, p := range w.Proxies {
		ws.Proxies = append(ws.Proxies, domain.Proxy{
			Workspace: id,
			Name:      p.Name,
			Protocol:  p.Protocol,
			Address:   p.Address,
			IsActive:  boolOr(p.Active, true),
		})
	}
	for _, ch := range w.Channels {
		name := ch.Name
		if name == "" {
			name = ch.ChatID
		}
		ws.Channels = append(ws.Channels, domain.DeliveryChannel{
			Workspace: id,
			Name:      name,
			ChatID:    ch.ChatID,
			IsActive:  boolOr(ch.Active, true),
		})
	}
	return ws
}

// DomainWorkspaces converts every configured workspace.
func (c Config) DomainWorkspaces() []domain.Workspace {
	out := make([]domain.Workspace, 0, len(c.Workspaces))
	for _, ws := range c.Workspaces {
		out = append(out, ws.Domain())
	}
	return out
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(redisURLEnv); v != "" {
		c.Redis.URL = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(mlAPIKeyEnv); v != "" {
		c.ML.APIKey = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Scheduler.IntervalMinutes != 0 {
		base.Scheduler.IntervalMinutes = override.Scheduler.IntervalMinutes
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.APIBaseURL != "" {
		base.Telegram.APIBaseURL = override.Telegram.APIBaseURL
	}
	if override.Telegram.TimeoutSeconds > 0 {
		base.Telegram.TimeoutSeconds = override.Telegram.TimeoutSeconds
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.SystemPrompt != "" {
		base.LLM.SystemPrompt = override.LLM.SystemPrompt
	}

	if override.ML.InferenceURL != "" {
		base.ML.InferenceURL = override.ML.InferenceURL
	}
	if override.ML.APIKey != "" {
		base.ML.APIKey = override.ML.APIKey
	}

	if override.Redis.URL != "" {
		base.Redis.URL = override.Redis.URL
	}
	if override.Redis.TTLSeconds > 0 {
		base.Redis.TTLSeconds = override.Redis.TTLSeconds
	}

	if override.Broadcast.BufferSize > 0 {
		base.Broadcast.BufferSize = override.Broadcast.BufferSize
	}
	if override.Broadcast.SnapshotSize > 0 {
		base.Broadcast.SnapshotSize = override.Broadcast.SnapshotSize
	}

	if override.Delivery.Ledger {
		base.Delivery.Ledger = true
	}

	if len(override.Workspaces) > 0 {
		base.Workspaces = override.Workspaces
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Driver: DriverSQLite, DSN: "newspipeline.db"},
		Server:   ServerConfig{Addr: ":8080"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Telegram: TelegramConfig{
			APIBaseURL:     "https://api.telegram.org",
			TimeoutSeconds: 10,
		},
		LLM: LLMConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You translate news items. Reply with a JSON object holding title, summary and body.",
		},
		Redis:     RedisConfig{TTLSeconds: 3600},
		Broadcast: BroadcastConfig{BufferSize: 64, SnapshotSize: 20},
	}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
