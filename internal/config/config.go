// Package config loads scrubberd's configuration from a YAML file, with
// environment variables taking precedence over file values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Scrubber   ScrubberConfig   `yaml:"scrubber"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Storage    StorageConfig    `yaml:"storage"`
	LastFM     LastFMConfig     `yaml:"lastfm"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ScrubberConfig controls the monitor loop and confirmation policy.
type ScrubberConfig struct {
	Interval                        time.Duration `yaml:"interval"`
	DryRun                          bool          `yaml:"dry_run"`
	RequireConfirmation             bool          `yaml:"require_confirmation"`
	RequireProposedRuleConfirmation bool          `yaml:"require_proposed_rule_confirmation"`
}

// ProvidersConfig toggles and configures the suggestion providers.
type ProvidersConfig struct {
	EnableRewriteRules bool              `yaml:"enable_rewrite_rules"`
	EnableOpenAI       bool              `yaml:"enable_openai"`
	EnableMusicBrainz  bool              `yaml:"enable_musicbrainz"`
	EnableHTTP         bool              `yaml:"enable_http"`
	OpenAI             OpenAIConfig      `yaml:"openai"`
	MusicBrainz        MusicBrainzConfig `yaml:"musicbrainz"`
}

// OpenAIConfig configures the LLM suggestion provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

// MusicBrainzConfig configures the metadata-authority suggestion provider.
type MusicBrainzConfig struct {
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	MaxResults          int      `yaml:"max_results"`
	ReleaseFilters      []string `yaml:"release_filters"`
	OfficialOnly        bool     `yaml:"official_only"`
}

// StorageConfig points at the durable state file.
type StorageConfig struct {
	StateFile string `yaml:"state_file"`
}

// LastFMConfig holds remote-service credentials. APIKey authenticates the
// read-only Audioscrobbler calls (recent/artist/search); Username/Password
// authenticate the web session EditScrobble needs, since the official API
// has no scrobble-edit method.
type LastFMConfig struct {
	APIKey   string `yaml:"api_key"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// EncryptionConfig holds the passphrase used to derive the at-rest
// credential-encryption key (see internal/encryption).
type EncryptionConfig struct {
	Passphrase string `yaml:"passphrase"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxFiles   int    `yaml:"file_max_files"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Scrubber: ScrubberConfig{
			Interval:                        5 * time.Minute,
			RequireProposedRuleConfirmation: true,
		},
		Providers: ProvidersConfig{
			EnableRewriteRules: true,
			MusicBrainz: MusicBrainzConfig{
				ConfidenceThreshold: 0.8,
				MaxResults:          10,
				OfficialOnly:        true,
			},
		},
		Storage: StorageConfig{
			StateFile: "/data/scrobble-scrubber.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("SCRUBBER_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Scrubber.Interval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("SCRUBBER_DRY_RUN"); v != "" {
		c.Scrubber.DryRun = v == "true"
	}
	if v := os.Getenv("SCRUBBER_REQUIRE_CONFIRMATION"); v != "" {
		c.Scrubber.RequireConfirmation = v == "true"
	}
	if v := os.Getenv("SCRUBBER_STATE_FILE"); v != "" {
		c.Storage.StateFile = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.LastFM.APIKey = v
	}
	if v := os.Getenv("LASTFM_USERNAME"); v != "" {
		c.LastFM.Username = v
	}
	if v := os.Getenv("LASTFM_PASSWORD"); v != "" {
		c.LastFM.Password = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Providers.OpenAI.APIKey = v
		c.Providers.EnableOpenAI = true
	}
	if v := os.Getenv("SCRUBBER_ENCRYPTION_PASSPHRASE"); v != "" {
		c.Encryption.Passphrase = v
	}
	if v := os.Getenv("SCRUBBER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SCRUBBER_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

func (c *Config) validate() error {
	if c.Scrubber.Interval <= 0 {
		return fmt.Errorf("scrubber.interval must be positive")
	}
	if c.Storage.StateFile == "" {
		return fmt.Errorf("storage.state_file is required")
	}
	if c.Providers.EnableOpenAI && c.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("providers.openai.api_key is required when providers.enable_openai is set")
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	return nil
}
