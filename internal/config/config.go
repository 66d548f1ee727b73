package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Model backends.
const (
	ModelArtifact = "artifact"
	ModelRemote   = "remote"
)

// Database backends.
const (
	DatabaseNone     = "none"
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		Format string `yaml:"format"` // "console" or "json"
	} `yaml:"log"`

	Data struct {
		ReferencePath string `yaml:"reference_path"`
	} `yaml:"data"`

	Model struct {
		Type           string `yaml:"type"` // "artifact" or "remote"
		Path           string `yaml:"path"`
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"model"`

	Validation struct {
		// Predict with defaulted values instead of stopping at field errors.
		AllowPartial bool `yaml:"allow_partial"`
		// Refuse categorical values absent from the reference data.
		RejectUnknownCategories bool `yaml:"reject_unknown_categories"`
	} `yaml:"validation"`

	Database struct {
		Type string `yaml:"type"` // "sqlite", "postgres" or "none"
		Path string `yaml:"path"` // SQLite file
		URL  string `yaml:"url"`  // PostgreSQL URL
	} `yaml:"database"`

	Admin struct {
		Username        string `yaml:"username"`
		PasswordHash    string `yaml:"password_hash"`
		JWTSecret       string `yaml:"jwt_secret"`
		TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
	} `yaml:"admin"`
}

// LoadConfig loads configuration from YAML file. Variables from a .env file
// in the working directory are visible to ${VAR} references.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.expandEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) expandEnv() {
	c.Data.ReferencePath = os.ExpandEnv(c.Data.ReferencePath)
	c.Model.Path = os.ExpandEnv(c.Model.Path)
	c.Model.URL = os.ExpandEnv(c.Model.URL)
	c.Database.Path = os.ExpandEnv(c.Database.Path)
	c.Database.URL = os.ExpandEnv(c.Database.URL)
	c.Admin.PasswordHash = expandSecret(c.Admin.PasswordHash)
	c.Admin.JWTSecret = expandSecret(c.Admin.JWTSecret)
}

var wholeVarRef = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// expandSecret resolves a value that is exactly ${VAR}. Anything else is
// taken literally, since password hashes are full of '$'.
func expandSecret(v string) string {
	if m := wholeVarRef.FindStringSubmatch(v); m != nil {
		return os.Getenv(m[1])
	}
	return v
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "5000"
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}

	if c.Data.ReferencePath == "" {
		c.Data.ReferencePath = "./data/first_telc.csv"
	}

	if c.Model.Type == "" {
		c.Model.Type = ModelArtifact
	}

	if c.Model.Path == "" {
		c.Model.Path = "./data/model.json"
	}

	if c.Model.TimeoutSeconds == 0 {
		c.Model.TimeoutSeconds = 30
	}

	if c.Database.Type == "" {
		c.Database.Type = DatabaseSQLite
	}

	if c.Database.Path == "" {
		c.Database.Path = "./data/predictions.db"
	}

	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}

	if c.Admin.TokenTTLMinutes == 0 {
		c.Admin.TokenTTLMinutes = 60
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Model.Type {
	case ModelArtifact:
	case ModelRemote:
		if c.Model.URL == "" {
			return errors.New("model.url is required for a remote model")
		}
	default:
		return fmt.Errorf("unknown model type %q", c.Model.Type)
	}

	switch c.Database.Type {
	case DatabaseNone, DatabaseSQLite:
	case DatabasePostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database type %q", c.Database.Type)
	}

	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// ModelTimeout returns the model service request timeout.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSeconds) * time.Second
}

// TokenTTL returns the lifetime of admin tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Admin.TokenTTLMinutes) * time.Minute
}

// AdminEnabled reports whether the history endpoints can be served.
func (c *Config) AdminEnabled() bool {
	return c.Admin.JWTSecret != "" && c.Admin.PasswordHash != "" && c.Database.Type != DatabaseNone
}
