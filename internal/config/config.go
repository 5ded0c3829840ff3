// internal/config/config.go
// Loads server configuration from the environment, with logging settings layered from a JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/erilali/duet/internal/logger"
	"github.com/erilali/duet/internal/session"
	"github.com/joho/godotenv"
)

// Config holds the server settings read from the environment.
type Config struct {
	Addr              string        `env:"DUET_ADDR,default=:8080"`
	RelayPolicy       string        `env:"RELAY_POLICY,default=strict"`
	SessionSecret     string        `env:"SESSION_SECRET"`
	SessionTTL        time.Duration `env:"SESSION_TTL,default=24h"`
	NatsEnabled       bool          `env:"NATS_ENABLED,default=true"`
	NatsURL           string        `env:"NATS_URL"`
	NatsSubjectPrefix string        `env:"NATS_SUBJECT_PREFIX,default=duet.room"`
	LoggerConfigPath  string        `env:"LOGGER_CONFIG,default=logger_config.json"`
	LogLevel          string        `env:"LOG_LEVEL"`
	MaxMessageLength  int           `env:"MAX_MESSAGE_LENGTH,default=500"`
	MaxFrameBytes     int           `env:"MAX_FRAME_BYTES,default=65536"`
	SendBuffer        int           `env:"SEND_BUFFER,default=256"`

	// Policy is RelayPolicy after validation.
	Policy session.Policy
	// Log starts from the logger defaults, takes the file at LoggerConfigPath
	// if there is one, then LOG_LEVEL.
	Log logger.LogConfig
}

// Load reads an optional .env file, then decodes the environment.
func Load(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.loadLog()
}

func (c *Config) validate() error {
	policy, err := session.ParsePolicy(c.RelayPolicy)
	if err != nil {
		return err
	}
	c.Policy = policy
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.MaxFrameBytes <= 0 {
		return fmt.Errorf("MAX_FRAME_BYTES must be positive, got %d", c.MaxFrameBytes)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	return nil
}

func (c *Config) loadLog() error {
	c.Log = logger.DefaultLogConfig()
	data, err := os.ReadFile(c.LoggerConfigPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("reading %s: %w", c.LoggerConfigPath, err)
	default:
		if err := json.Unmarshal(data, &c.Log); err != nil {
			return fmt.Errorf("parsing %s: %w", c.LoggerConfigPath, err)
		}
	}
	if c.LogLevel != "" {
		c.Log.Level = c.LogLevel
	}
	return nil
}
