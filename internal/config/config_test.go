package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(githubTokenEnv, "")
	t.Setenv(databaseDSNEnv, "")
	t.Setenv(telegramTokenEnv, "")
	t.Setenv(telegramChatEnv, "")

	cfg := Load()

	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "github", cfg.Feed.Source)
	require.Equal(t, 100, cfg.Feed.PageSize)
	require.Equal(t, 60*time.Second, cfg.Feed.PollInterval.Std())
	require.Equal(t, 10, cfg.Feed.IncrementalPageLimit)
	require.Equal(t, 100, cfg.Feed.BackfillPageLimit)
	require.Equal(t, 4, cfg.Pipeline.CloneWorkers)
	require.Equal(t, 2, cfg.Pipeline.ScanWorkers)
	require.Equal(t, 3, cfg.Pipeline.CloneRetries)
	require.Equal(t, "repos.csv", cfg.Storage.LedgerPath)
	require.Equal(t, "star_config.json", cfg.Storage.CursorPath)
	require.Equal(t, []string{"python3", "scan_then_verify.py"}, cfg.Jobs.ScanCommand)
	require.Equal(t, time.Hour, cfg.Jobs.ScanTimeout.Std())
}

func TestLoadMergesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
logging:
  level: debug
feed:
  pollInterval: 5m
  pageSize: 50
pipeline:
  cloneWorkers: 8
storage:
  ledgerPath: /var/lib/starwatch/repos.csv
jobs:
  scanCommand: ["./scan.sh", "--deep"]
  scanTimeout: 30m
`)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	t.Setenv(configPathEnv, path)
	t.Setenv(githubTokenEnv, "")

	cfg := Load()

	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, 5*time.Minute, cfg.Feed.PollInterval.Std())
	require.Equal(t, 50, cfg.Feed.PageSize)
	require.Equal(t, 8, cfg.Pipeline.CloneWorkers)
	require.Equal(t, "/var/lib/starwatch/repos.csv", cfg.Storage.LedgerPath)
	require.Equal(t, []string{"./scan.sh", "--deep"}, cfg.Jobs.ScanCommand)
	require.Equal(t, 30*time.Minute, cfg.Jobs.ScanTimeout.Std())

	// unset keys keep their defaults
	require.Equal(t, 2, cfg.Pipeline.ScanWorkers)
	require.Equal(t, "star_config.json", cfg.Storage.CursorPath)
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
feed:
  token: from-file
notifications:
  telegram:
    botToken: file-bot
`)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	t.Setenv(configPathEnv, path)
	t.Setenv(githubTokenEnv, "from-env")
	t.Setenv(databaseDSNEnv, "postgres://localhost/starwatch")
	t.Setenv(telegramTokenEnv, "env-bot")
	t.Setenv(telegramChatEnv, "42")

	cfg := Load()

	require.Equal(t, "from-env", cfg.Feed.Token)
	require.Equal(t, "postgres://localhost/starwatch", cfg.Storage.PostgresDSN)
	require.Equal(t, "env-bot", cfg.Notifications.Telegram.BotToken)
	require.Equal(t, "42", cfg.Notifications.Telegram.ChatID)
}

func TestLoadUnreadableFileFallsBackToDefaults(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv(githubTokenEnv, "")

	cfg := Load()
	require.Equal(t, 100, cfg.Feed.PageSize)
}

func TestDurationRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte("feed:\n  pollInterval: soon\n")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	t.Setenv(configPathEnv, path)
	t.Setenv(githubTokenEnv, "")

	// a broken file is logged and ignored, the defaults survive
	cfg := Load()
	require.Equal(t, 60*time.Second, cfg.Feed.PollInterval.Std())
}
