package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultJWTExpiresIn      = "24h"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "scribe"
	DefaultPGSSLMode         = "disable"
	DefaultStorageRoot       = "data"
	DefaultStorageBucket     = "files"
	DefaultPublicBaseURL     = "http://127.0.0.1:8080/storage"
	DefaultGenerationClient  = "googleai"
	DefaultGenerationModel   = "gemini-1.5-flash"
	DefaultGenerationTimeout = "120s"
	DefaultMaxUploadBytes    = 25 * 1024 * 1024
	DefaultMaxFilesPerTurn   = 10
	DefaultChatRatePerMinute = 30
	DefaultOrphanTTL         = "24h"
	DefaultJanitorSchedule   = "@every 1h"

	envConfigPath = "CONFIG_PATH"
	envJWTSecret  = "SCRIBE_JWT_SECRET"
	envGenAPIKey  = "SCRIBE_GENERATION_API_KEY"
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Auth       AuthConfig       `toml:"auth"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Storage    StorageConfig    `toml:"storage"`
	Generation GenerationConfig `toml:"generation"`
	Chat       ChatConfig       `toml:"chat"`
	Media      MediaConfig      `toml:"media"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN renders the connection string understood by pgx and golang-migrate.
// Credentials are escaped, so passwords may contain URL delimiters.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// StorageConfig configures the object storage collaborator.
type StorageConfig struct {
	Root          string `toml:"root"`
	Bucket        string `toml:"bucket"`
	PublicBaseURL string `toml:"public_base_url"`
}

// GenerationConfig selects the generative backend.
type GenerationConfig struct {
	// ClientType is one of "googleai", "openai", "ollama" or "anthropic".
	ClientType string `toml:"client_type"`
	Model      string `toml:"model"`
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	Timeout    string `toml:"timeout"`
}

type ChatConfig struct {
	MaxFilesPerTurn  int  `toml:"max_files_per_turn"`
	CleanupOnFailure bool `toml:"cleanup_on_failure"`
	// RatePerMinute caps turns per user. Zero disables the limit.
	RatePerMinute int `toml:"rate_per_minute"`
}

type MediaConfig struct {
	MaxUploadBytes  int64  `toml:"max_upload_bytes"`
	OrphanTTL       string `toml:"orphan_ttl"`
	JanitorSchedule string `toml:"janitor_schedule"`
}

// TimeoutDuration parses Timeout, falling back to the default.
func (c GenerationConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(c.Timeout, DefaultGenerationTimeout)
}

// OrphanTTLDuration parses OrphanTTL, falling back to the default.
func (c MediaConfig) OrphanTTLDuration() time.Duration {
	return parseDurationOr(c.OrphanTTL, DefaultOrphanTTL)
}

// JWTExpiresInDuration parses JWTExpiresIn, falling back to the default.
func (c AuthConfig) JWTExpiresInDuration() time.Duration {
	return parseDurationOr(c.JWTExpiresIn, DefaultJWTExpiresIn)
}

func parseDurationOr(raw, fallback string) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Storage: StorageConfig{
			Root:          DefaultStorageRoot,
			Bucket:        DefaultStorageBucket,
			PublicBaseURL: DefaultPublicBaseURL,
		},
		Generation: GenerationConfig{
			ClientType: DefaultGenerationClient,
			Model:      DefaultGenerationModel,
			Timeout:    DefaultGenerationTimeout,
		},
		Chat: ChatConfig{
			MaxFilesPerTurn:  DefaultMaxFilesPerTurn,
			CleanupOnFailure: true,
			RatePerMinute:    DefaultChatRatePerMinute,
		},
		Media: MediaConfig{
			MaxUploadBytes:  DefaultMaxUploadBytes,
			OrphanTTL:       DefaultOrphanTTL,
			JanitorSchedule: DefaultJanitorSchedule,
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error. When path is empty CONFIG_PATH and then DefaultConfigPath are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envJWTSecret)); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(envGenAPIKey)); v != "" {
		cfg.Generation.APIKey = v
	}
}
