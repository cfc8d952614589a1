package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	t.Setenv("CANDYPIC_TEST_TOKEN", "test_token")

	yamlContent := `
telegram:
  bot_token: "${CANDYPIC_TEST_TOKEN}"
  chat_id: -100123
database:
  path: "test.db"
conversation:
  ttl: 2h
push:
  timeout: 3s
team:
  - name: "Asha"
    phone: "+91 98765-43210"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "test_token", cfg.Telegram.BotToken)
	assert.Equal(t, int64(-100123), cfg.Telegram.ChatID)
	assert.Equal(t, ModeWebhook, cfg.Telegram.Mode)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Conversation.TTL)
	assert.Equal(t, 3*time.Second, cfg.Push.Timeout)
	require.Len(t, cfg.Team, 1)
	assert.Equal(t, "Asha", cfg.Team[0].Name)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Telegram: TelegramConfig{BotToken: "token", ChatID: 1, Mode: ModeWebhook},
			Database: DatabaseConfig{Driver: DriverSQLite, Path: "path"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.BotToken = "" }, wantErr: true},
		{name: "placeholder token", mutate: func(c *Config) { c.Telegram.BotToken = "YOUR_BOT_TOKEN_HERE" }, wantErr: true},
		{name: "missing chat", mutate: func(c *Config) { c.Telegram.ChatID = 0 }, wantErr: true},
		{name: "bad mode", mutate: func(c *Config) { c.Telegram.Mode = "push" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "pgx without dsn", mutate: func(c *Config) { c.Database.Driver = DriverPostgres }, wantErr: true},
		{
			name: "pgx with dsn",
			mutate: func(c *Config) {
				c.Database.Driver = DriverPostgres
				c.Database.DSN = "postgres://localhost/candypic"
			},
		},
		{name: "push without credentials", mutate: func(c *Config) { c.Push.Enabled = true }, wantErr: true},
		{
			name: "duplicate team member",
			mutate: func(c *Config) {
				c.Team = []TeamMember{{Name: "Asha"}, {Name: "asha "}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 24*time.Hour, cfg.Conversation.TTL)
	assert.Equal(t, "/calendar", cfg.Push.Link)
	assert.Equal(t, 4, cfg.Push.MaxParallel)
	assert.Equal(t, 10, cfg.Bot.UpcomingLimit)
	assert.Equal(t, 8080, cfg.API.Port)
}

func TestTeamMemberByName(t *testing.T) {
	cfg := &Config{Team: []TeamMember{{Name: "Asha", Phone: "9876543210"}}}

	member, ok := cfg.TeamMemberByName(" asha")
	assert.True(t, ok)
	assert.Equal(t, "9876543210", member.Phone)

	_, ok = cfg.TeamMemberByName("Ravi")
	assert.False(t, ok)
}

func TestLocationFallback(t *testing.T) {
	cfg := &Config{Bot: BotConfig{Timezone: "Nowhere/Unknown"}}
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Bot.Timezone = "UTC"
	assert.Equal(t, "UTC", cfg.Location().String())
}
