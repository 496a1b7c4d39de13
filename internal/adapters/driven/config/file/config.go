package file

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

// OAuthConfig holds the provider client credentials. The secret is read
// from the environment, never persisted to the config file.
type OAuthConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"-"`
	RedirectURL  string   `toml:"redirect_url"`
	Scopes       []string `toml:"scopes,omitempty"`
}

// EngineConfig is the typed configuration for the sync engine. Values come
// from ~/.calsync/config.toml, overridden by CALSYNC_* environment
// variables. Durations are stored as plain integers to keep the TOML file
// hand-editable.
type EngineConfig struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `toml:"listen_addr"`
	// DataDir holds the SQLite database. Empty means ~/.calsync/data.
	DataDir string `toml:"data_dir"`
	// EncryptionKey is the hex-encoded 32-byte AES key. Environment only.
	EncryptionKey string `toml:"-"`
	// AuthToken gates the HTTP surface. Empty disables the gate, for
	// local single-user runs. Environment only.
	AuthToken string `toml:"-"`

	// SyncIntervalMinutes is the scheduler tick interval.
	SyncIntervalMinutes int `toml:"sync_interval_minutes"`
	// LookbackDays and LookaheadDays bound the calendar sync window.
	LookbackDays  int `toml:"lookback_days"`
	LookaheadDays int `toml:"lookahead_days"`

	OAuth OAuthConfig `toml:"oauth"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		ListenAddr:          "127.0.0.1:8484",
		SyncIntervalMinutes: 15,
		LookbackDays:        7,
		LookaheadDays:       365,
	}
}

// Load reads the engine configuration. Order of precedence, lowest first:
// built-in defaults, the TOML file at configDir/config.toml, environment
// variables. A missing config file is not an error. If configDir is empty,
// defaults to ~/.calsync.
func Load(configDir string) (*EngineConfig, error) {
	// A local .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".calsync")
	}

	cfg := DefaultConfig()

	path := filepath.Join(configDir, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *EngineConfig) applyEnv() {
	if v := os.Getenv("CALSYNC_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("CALSYNC_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CALSYNC_ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}
	if v := os.Getenv("CALSYNC_AUTH_TOKEN"); v != "" {
		c.AuthToken = v
	}
	if v := os.Getenv("CALSYNC_SYNC_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.SyncIntervalMinutes = n
		}
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		c.OAuth.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		c.OAuth.ClientSecret = v
	}
	if v := os.Getenv("CALSYNC_OAUTH_REDIRECT_URL"); v != "" {
		c.OAuth.RedirectURL = v
	}
}

// Validate checks invariants that would otherwise surface as runtime
// failures deep inside the engine.
func (c *EngineConfig) Validate() error {
	if c.SyncIntervalMinutes <= 0 {
		return fmt.Errorf("%w: sync_interval_minutes must be positive", domain.ErrInvalidInput)
	}
	if c.LookbackDays < 0 || c.LookaheadDays < 0 {
		return fmt.Errorf("%w: lookback_days and lookahead_days must not be negative", domain.ErrInvalidInput)
	}
	return nil
}

// EncryptionKeyBytes decodes the hex-encoded AES key and checks its size.
func (c *EngineConfig) EncryptionKeyBytes() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, fmt.Errorf("%w: CALSYNC_ENCRYPTION_KEY is not set", domain.ErrInvalidInput)
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encryption key must be hex-encoded", domain.ErrInvalidInput)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: encryption key must be 32 bytes, got %d", domain.ErrInvalidInput, len(key))
	}
	return key, nil
}

// SyncInterval returns the scheduler interval as a duration.
func (c *EngineConfig) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

// Lookback returns the calendar window lookback as a duration.
func (c *EngineConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// Lookahead returns the calendar window lookahead as a duration.
func (c *EngineConfig) Lookahead() time.Duration {
	return time.Duration(c.LookaheadDays) * 24 * time.Hour
}
