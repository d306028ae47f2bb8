package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "STARWATCH_CONFIG"
	githubTokenEnv   = "GITHUB_TOKEN"
	databaseDSNEnv   = "DATABASE_DSN"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
)

// Duration wraps time.Duration so YAML values like "60s" or "10m" parse
// directly into config fields.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Feed          FeedConfig         `yaml:"feed"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Storage       StorageConfig      `yaml:"storage"`
	Jobs          JobsConfig         `yaml:"jobs"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// FeedConfig describes the starred-feed endpoint and polling cadence.
type FeedConfig struct {
	Source               string   `yaml:"source"`
	APIURL               string   `yaml:"apiUrl"`
	Token                string   `yaml:"token"`
	PageSize             int      `yaml:"pageSize"`
	PollInterval         Duration `yaml:"pollInterval"`
	IncrementalPageLimit int      `yaml:"incrementalPageLimit"`
	BackfillPageLimit    int      `yaml:"backfillPageLimit"`
}

// PipelineConfig sizes the two worker pools and their queues.
type PipelineConfig struct {
	CloneWorkers   int      `yaml:"cloneWorkers"`
	ScanWorkers    int      `yaml:"scanWorkers"`
	QueueSize      int      `yaml:"queueSize"`
	CloneRetries   int      `yaml:"cloneRetries"`
	RetryDelay     Duration `yaml:"retryDelay"`
	ReportInterval Duration `yaml:"reportInterval"`
	DrainTimeout   Duration `yaml:"drainTimeout"`
	JoinTimeout    Duration `yaml:"joinTimeout"`
}

// StorageConfig locates the ledger, the cursor file, and the clone root.
// When PostgresDSN is set the ledger lives in Postgres instead of the CSV
// file.
type StorageConfig struct {
	LedgerPath  string `yaml:"ledgerPath"`
	CursorPath  string `yaml:"cursorPath"`
	CloneDir    string `yaml:"cloneDir"`
	PostgresDSN string `yaml:"postgresDsn"`
}

// JobsConfig defines the external acquisition and processing commands.
type JobsConfig struct {
	CloneTimeout Duration `yaml:"cloneTimeout"`
	ScanCommand  []string `yaml:"scanCommand"`
	ScanTimeout  Duration `yaml:"scanTimeout"`
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

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(githubTokenEnv); v != "" {
		c.Feed.Token = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.PostgresDSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Feed.Source != "" {
		base.Feed.Source = override.Feed.Source
	}
	if override.Feed.APIURL != "" {
		base.Feed.APIURL = override.Feed.APIURL
	}
	if override.Feed.Token != "" {
		base.Feed.Token = override.Feed.Token
	}
	if override.Feed.PageSize > 0 {
		base.Feed.PageSize = override.Feed.PageSize
	}
	if override.Feed.PollInterval > 0 {
		base.Feed.PollInterval = override.Feed.PollInterval
	}
	if override.Feed.IncrementalPageLimit > 0 {
		base.Feed.IncrementalPageLimit = override.Feed.IncrementalPageLimit
	}
	if override.Feed.BackfillPageLimit > 0 {
		base.Feed.BackfillPageLimit = override.Feed.BackfillPageLimit
	}

	if override.Pipeline.CloneWorkers > 0 {
		base.Pipeline.CloneWorkers = override.Pipeline.CloneWorkers
	}
	if override.Pipeline.ScanWorkers > 0 {
		base.Pipeline.ScanWorkers = override.Pipeline.ScanWorkers
	}
	if override.Pipeline.QueueSize > 0 {
		base.Pipeline.QueueSize = override.Pipeline.QueueSize
	}
	if override.Pipeline.CloneRetries > 0 {
		base.Pipeline.CloneRetries = override.Pipeline.CloneRetries
	}
	if override.Pipeline.RetryDelay > 0 {
		base.Pipeline.RetryDelay = override.Pipeline.RetryDelay
	}
	if override.Pipeline.ReportInterval > 0 {
		base.Pipeline.ReportInterval = override.Pipeline.ReportInterval
	}
	if override.Pipeline.DrainTimeout > 0 {
		base.Pipeline.DrainTimeout = override.Pipeline.DrainTimeout
	}
	if override.Pipeline.JoinTimeout > 0 {
		base.Pipeline.JoinTimeout = override.Pipeline.JoinTimeout
	}

	if override.Storage.LedgerPath != "" {
		base.Storage.LedgerPath = override.Storage.LedgerPath
	}
	if override.Storage.CursorPath != "" {
		base.Storage.CursorPath = override.Storage.CursorPath
	}
	if override.Storage.CloneDir != "" {
		base.Storage.CloneDir = override.Storage.CloneDir
	}
	if override.Storage.PostgresDSN != "" {
		base.Storage.PostgresDSN = override.Storage.PostgresDSN
	}

	if override.Jobs.CloneTimeout > 0 {
		base.Jobs.CloneTimeout = override.Jobs.CloneTimeout
	}
	if len(override.Jobs.ScanCommand) > 0 {
		base.Jobs.ScanCommand = override.Jobs.ScanCommand
	}
	if override.Jobs.ScanTimeout > 0 {
		base.Jobs.ScanTimeout = override.Jobs.ScanTimeout
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Feed: FeedConfig{
			Source:               "github",
			APIURL:               "https://api.github.com/user/starred",
			PageSize:             100,
			PollInterval:         Duration(60 * time.Second),
			IncrementalPageLimit: 10,
			BackfillPageLimit:    100,
		},
		Pipeline: PipelineConfig{
			CloneWorkers:   4,
			ScanWorkers:    2,
			QueueSize:      100,
			CloneRetries:   3,
			RetryDelay:     Duration(5 * time.Second),
			ReportInterval: Duration(30 * time.Second),
			DrainTimeout:   Duration(30 * time.Second),
			JoinTimeout:    Duration(5 * time.Second),
		},
		Storage: StorageConfig{
			LedgerPath: "repos.csv",
			CursorPath: "star_config.json",
			CloneDir:   "repos",
		},
		Jobs: JobsConfig{
			CloneTimeout: Duration(10 * time.Minute),
			ScanCommand:  []string{"python3", "scan_then_verify.py"},
			ScanTimeout:  Duration(time.Hour),
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
	}
}
