// Package config loads the agent's configuration: defaults, then an
// optional YAML file, then FURROW_* environment overrides, strongest last.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no file is named explicitly.
const DefaultPath = ".furrow/config.yaml"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the full agent configuration.
type Config struct {
	Model   ModelConfig   `yaml:"model" mapstructure:"model"`
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Runner  RunnerConfig  `yaml:"runner" mapstructure:"runner"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// ModelConfig points at an OpenAI-compatible completion endpoint.
type ModelConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	Name        string  `yaml:"name" mapstructure:"name"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig configures the Tavily searcher.
type SearchConfig struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// StorageConfig selects and configures the snapshot store.
type StorageConfig struct {
	// Backend is memory, file or redis.
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Path is the file backend's directory. Empty uses the store's
	// default (.furrow/threads).
	Path string `yaml:"path" mapstructure:"path"`

	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`

	// EncryptionKey enables snapshot encryption at rest when set. Base64
	// of 32 bytes.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`

	// RedactPatterns are regexes masked out of persisted text.
	RedactPatterns []string `yaml:"redact_patterns" mapstructure:"redact_patterns"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Address  string        `yaml:"address" mapstructure:"address"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// RunnerConfig configures the command sandbox.
type RunnerConfig struct {
	WorkDir string        `yaml:"work_dir" mapstructure:"work_dir"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address string `yaml:"address" mapstructure:"address"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" mapstructure:"level"`

	// Format is text or json.
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Name:        "gemini-2.0-flash-exp",
			Temperature: 0,
		},
		Search: SearchConfig{
			MaxResults: 5,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
		},
		Runner: RunnerConfig{
			Timeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Address: "127.0.0.1:8723",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment. With an empty path, DefaultPath is read when it exists;
// a named path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Defaults plus environment only.
	default:
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML goes through a generic map so mapstructure's duration hook can
// turn "90s" style strings into time.Duration fields.
func decodeYAML(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func applyEnv(cfg *Config) {
	setString(&cfg.Model.BaseURL, "FURROW_MODEL_BASE_URL")
	setString(&cfg.Model.APIKey, "FURROW_MODEL_API_KEY", "GOOGLE_API_KEY")
	setString(&cfg.Model.Name, "FURROW_MODEL_NAME")
	setString(&cfg.Search.APIKey, "FURROW_SEARCH_API_KEY", "TAVILY_API_KEY")
	setString(&cfg.Storage.Backend, "FURROW_STORAGE_BACKEND")
	setString(&cfg.Storage.Path, "FURROW_STORAGE_PATH")
	setString(&cfg.Storage.EncryptionKey, "FURROW_ENCRYPTION_KEY")
	setString(&cfg.Storage.Redis.Address, "FURROW_REDIS_ADDRESS")
	setString(&cfg.Storage.Redis.Password, "FURROW_REDIS_PASSWORD")
	setInt(&cfg.Storage.Redis.DB, "FURROW_REDIS_DB")
	setString(&cfg.Server.Address, "FURROW_SERVER_ADDRESS")
	setDuration(&cfg.Runner.Timeout, "FURROW_RUNNER_TIMEOUT")
	setString(&cfg.Runner.WorkDir, "FURROW_RUNNER_WORK_DIR")
	setString(&cfg.Logging.Level, "FURROW_LOG_LEVEL")
	setString(&cfg.Logging.Format, "FURROW_LOG_FORMAT")
}

func setString(target *string, names ...string) {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			*target = val
			return
		}
	}
}

func setInt(target *int, name string) {
	if val := os.Getenv(name); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*target = n
		}
	}
}

func setDuration(target *time.Duration, name string) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}

// Validate rejects configurations the wiring cannot honor.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendRedis && c.Storage.Redis.Address == "" {
		return fmt.Errorf("redis backend requires storage.redis.address")
	}
	if c.Runner.Timeout < 0 {
		return fmt.Errorf("runner timeout cannot be negative")
	}
	if _, _, err := c.Storage.DecodeEncryptionKey(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// DecodeEncryptionKey returns the decoded key and whether encryption is
// enabled at all.
func (s StorageConfig) DecodeEncryptionKey() ([]byte, bool, error) {
	if s.EncryptionKey == "" {
		return nil, false, nil
	}
	key, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, false, fmt.Errorf("decode storage.encryption_key: %w", err)
	}
	if len(key) != 32 {
		return nil, false, fmt.Errorf("storage.encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, true, nil
}
