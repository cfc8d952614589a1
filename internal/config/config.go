package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeWebhook = "webhook"
	ModePolling = "polling"

	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Conversation ConversationConfig `yaml:"conversation"`
	Push         PushConfig         `yaml:"push"`
	Backup       BackupConfig       `yaml:"backup"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	API          APIConfig          `yaml:"api"`
	Bot          BotConfig          `yaml:"bot"`
	Team         []TeamMember       `yaml:"team"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken      string `yaml:"bot_token"`
	ChatID        int64  `yaml:"chat_id"`
	Mode          string `yaml:"mode"`
	WebhookSecret string `yaml:"webhook_secret"`
	Debug         bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	Path         string `yaml:"path"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ConversationConfig controls how long an unanswered wizard or assignment prompt stays resumable.
type ConversationConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type PushConfig struct {
	Enabled         bool          `yaml:"enabled"`
	CredentialsFile string        `yaml:"credentials_file"`
	ProjectID       string        `yaml:"project_id"`
	Link            string        `yaml:"link"`
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	MaxParallel     int           `yaml:"max_parallel"`
	Timeout         time.Duration `yaml:"timeout"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Port          int                `yaml:"port"`
	WebhookSecret string             `yaml:"webhook_secret"`
	RateLimit     APIRateLimitConfig `yaml:"rate_limit"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BotConfig struct {
	UpcomingLimit int    `yaml:"upcoming_limit"`
	Timezone      string `yaml:"timezone"`
}

// TeamMember is offered as a one-tap assignee in the booking wizard.
type TeamMember struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; real deployments inject the environment directly
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}
	if c.Telegram.ChatID == 0 {
		return errors.New("telegram chat_id is required")
	}
	if c.Telegram.Mode != ModeWebhook && c.Telegram.Mode != ModePolling {
		return fmt.Errorf("unknown telegram mode %q", c.Telegram.Mode)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for pgx")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Push.Enabled && c.Push.CredentialsFile == "" {
		return errors.New("push.credentials_file is required when push is enabled")
	}

	return ValidateTeam(c.Team)
}

func ValidateTeam(team []TeamMember) error {
	seen := make(map[string]bool)
	for i, member := range team {
		name := strings.ToLower(strings.TrimSpace(member.Name))
		if name == "" {
			return fmt.Errorf("team member #%d has no name", i+1)
		}
		if seen[name] {
			return fmt.Errorf("duplicate team member: %s", member.Name)
		}
		seen[name] = true
	}
	return nil
}

// TeamMemberByName matches case-insensitively.
func (c *Config) TeamMemberByName(name string) (TeamMember, bool) {
	name = strings.TrimSpace(name)
	for _, member := range c.Team {
		if strings.EqualFold(strings.TrimSpace(member.Name), name) {
			return member, true
		}
	}
	return TeamMember{}, false
}

// Location falls back to the server zone when the timezone is unset or unknown.
func (c *Config) Location() *time.Location {
	if c.Bot.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Bot.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "candypic"
	}
	if c.Telegram.Mode == "" {
		c.Telegram.Mode = ModeWebhook
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Conversation.TTL == 0 {
		c.Conversation.TTL = 24 * time.Hour
	}
	if c.Push.Link == "" {
		c.Push.Link = "/calendar"
	}
	if c.Push.Workers == 0 {
		c.Push.Workers = 2
	}
	if c.Push.QueueSize == 0 {
		c.Push.QueueSize = 128
	}
	if c.Push.MaxParallel == 0 {
		c.Push.MaxParallel = 4
	}
	if c.Push.Timeout == 0 {
		c.Push.Timeout = 10 * time.Second
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Bot.UpcomingLimit == 0 {
		c.Bot.UpcomingLimit = 10
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
}
