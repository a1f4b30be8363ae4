package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	defaultPollInterval     = 10 * time.Second
	defaultTransmissionPort = 9091
	defaultTransmissionPath = "/transmission/rpc"
	defaultListLimit        = 10
	defaultMoreLimit        = 15
	defaultSearchCacheTTL   = 30 * 24 * time.Hour
	defaultFilesPerMessage  = 25
	defaultMaxFileSize      = 50 << 20
	defaultKeyPrefix        = "TelegramTransmissionBot"
	defaultSendRate         = 20
	defaultTrackerRate      = 2
	defaultHTTPTimeout      = 30 * time.Second
	defaultEventsExchange   = "transmissionbot.events"
	defaultLogMaxSizeMB     = 10
	defaultLogMaxBackups    = 3
	defaultLogMaxAgeDays    = 28
)

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type TelegramConfig struct {
	Token        string   `yaml:"token"`
	AllowedUsers []string `yaml:"allowed_users"`
	Debug        bool     `yaml:"debug"`
	// SendRate is the number of outgoing messages per second.
	SendRate int `yaml:"send_rate"`
}

type TransmissionConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Path     string        `yaml:"path"`
	HTTPS    bool          `yaml:"https"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

type ReconcilerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	// PassTimeout bounds a single pass, zero means no limit.
	PassTimeout time.Duration `yaml:"pass_timeout"`
}

type SearchConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Login     string        `yaml:"login"`
	Password  string        `yaml:"password"`
	MoreLimit int           `yaml:"more_limit"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	// RateLimit is the number of tracker requests per second.
	RateLimit int `yaml:"rate_limit"`
}

type TunnelConfig struct {
	URL string `yaml:"url"`
}

type EventsConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type Config struct {
	Listen          string             `yaml:"listen"`
	RedisURL        string             `yaml:"redis_url"`
	KeyPrefix       string             `yaml:"key_prefix"`
	ListLimit       int                `yaml:"list_limit"`
	FilesPerMessage int                `yaml:"files_per_message"`
	MaxFileSize     int64              `yaml:"max_file_size"`
	LogConfig       LogConfig          `yaml:"log"`
	Telegram        TelegramConfig     `yaml:"telegram"`
	Transmission    TransmissionConfig `yaml:"transmission"`
	Reconciler      ReconcilerConfig   `yaml:"reconciler"`
	Search          SearchConfig       `yaml:"search"`
	Tunnel          TunnelConfig       `yaml:"tunnel"`
	Events          EventsConfig       `yaml:"events"`
}

func (c *Config) SetDefaults() {
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = LogLevelInfo
	}
	if c.LogConfig.MaxSizeMB <= 0 {
		c.LogConfig.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.LogConfig.MaxBackups <= 0 {
		c.LogConfig.MaxBackups = defaultLogMaxBackups
	}
	if c.LogConfig.MaxAgeDays <= 0 {
		c.LogConfig.MaxAgeDays = defaultLogMaxAgeDays
	}

	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
	if c.ListLimit <= 0 {
		c.ListLimit = defaultListLimit
	}
	if c.FilesPerMessage <= 0 {
		c.FilesPerMessage = defaultFilesPerMessage
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = defaultMaxFileSize
	}

	if c.Telegram.SendRate <= 0 {
		c.Telegram.SendRate = defaultSendRate
	}

	if c.Transmission.Port == 0 {
		c.Transmission.Port = defaultTransmissionPort
	}
	if c.Transmission.Path == "" {
		c.Transmission.Path = defaultTransmissionPath
	}
	if c.Transmission.Timeout <= 0 {
		c.Transmission.Timeout = defaultHTTPTimeout
	}

	if c.Reconciler.PollInterval == 0 {
		c.Reconciler.PollInterval = defaultPollInterval
	}

	if c.Search.MoreLimit <= 0 {
		c.Search.MoreLimit = defaultMoreLimit
	}
	if c.Search.CacheTTL <= 0 {
		c.Search.CacheTTL = defaultSearchCacheTTL
	}
	if c.Search.RateLimit <= 0 {
		c.Search.RateLimit = defaultTrackerRate
	}

	if c.Events.Exchange == "" {
		c.Events.Exchange = defaultEventsExchange
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram token is not set"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("redis url is not set"))
	}
	if c.Transmission.Host == "" {
		errs = append(errs, errors.New("transmission host is not set"))
	}
	if c.Reconciler.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive: %s", c.Reconciler.PollInterval))
	}

	switch c.LogConfig.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		errs = append(errs, fmt.Errorf("unknown log level: %s", c.LogConfig.Level))
	}

	return errors.Join(errs...)
}

// applyEnv overrides file values with the environment.
func (c *Config) applyEnv() error {
	str := map[string]*string{
		"TG_TOKEN":              &c.Telegram.Token,
		"REDIS":                 &c.RedisURL,
		"TRANSMISSION_HOST":     &c.Transmission.Host,
		"TRANSMISSION_LOGIN":    &c.Transmission.Username,
		"TRANSMISSION_PASSWORD": &c.Transmission.Password,
		"RUTRACKER_LOGIN":       &c.Search.Login,
		"RUTRACKER_PASSWORD":    &c.Search.Password,
		"TUNNEL_API":            &c.Tunnel.URL,
		"AMQP_URL":              &c.Events.URL,
		"LOG_LEVEL":             &c.LogConfig.Level,
		"LOG_FILE":              &c.LogConfig.File,
		"LISTEN":                &c.Listen,
	}

	for name, dst := range str {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("TG_ALLOWED_USERS"); ok {
		c.Telegram.AllowedUsers = splitList(v)
	}

	if v, ok := os.LookupEnv("TRANSMISSION_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRANSMISSION_PORT: %w", err)
		}
		c.Transmission.Port = port
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

// Load reads the YAML file at path, then the .env file and the environment.
// A missing config file is not an error, everything may come from the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}
