package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	OutputDir  string `toml:"output_dir"`
	StagingDir string `toml:"staging_dir"`
}

// Encode contains configuration for the encode workers.
type Encode struct {
	Engine       string `toml:"engine"`
	DraptoBinary string `toml:"drapto_binary"`
	Concurrency  int    `toml:"concurrency"`
}

// API contains configuration for the HTTP API.
type API struct {
	Bind      string `toml:"bind"`
	Token     string `toml:"token"`
	JWTSecret string `toml:"jwt_secret"`
	JWTIssuer string `toml:"jwt_issuer"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	RequestTimeout  int    `toml:"request_timeout"`
	EncodeCompleted bool   `toml:"encode_completed"`
	EncodeFailed    bool   `toml:"encode_failed"`
}

// Broadcast contains configuration for the Redis state-change channel that
// connected clients subscribe to.
type Broadcast struct {
	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisDB        int    `toml:"redis_db"`
	Channel        string `toml:"channel"`
	PublishTimeout int    `toml:"publish_timeout"`
}

// Archive contains configuration for copying produced files to object storage.
type Archive struct {
	Backend         string `toml:"backend"`
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKey       string `toml:"access_key"`
	SecretKey       string `toml:"secret_key"`
	CredentialsFile string `toml:"credentials_file"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Journal contains configuration for the encode outcome history.
type Journal struct {
	RetentionDays int `toml:"retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for tsencode.
//
// Configuration sections by subsystem:
//   - Paths: data, log, output, and staging directories
//   - Encode: encoder engine and worker concurrency
//   - API: HTTP bind address and authentication
//   - Notifications: ntfy push notification settings
//   - Broadcast: Redis channel for client state-change messages
//   - Archive: optional S3/GCS copy of produced files
//   - Workflow: polling intervals and heartbeat timeouts
//   - Journal: outcome history retention
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Encode        Encode        `toml:"encode"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Broadcast     Broadcast     `toml:"broadcast"`
	Archive       Archive       `toml:"archive"`
	Workflow      Workflow      `toml:"workflow"`
	Journal       Journal       `toml:"journal"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tsencode.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so the daemon can run when
// network storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.StagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// SocketPath returns the IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "tsencode.sock")
}

// QueueDBPath returns the encode job database location.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// RecordingsDBPath returns the recording catalogue database location.
func (c *Config) RecordingsDBPath() string {
	return filepath.Join(c.Paths.DataDir, "recordings.db")
}

// JournalDir returns the encode outcome journal directory.
func (c *Config) JournalDir() string {
	return filepath.Join(c.Paths.DataDir, "journal")
}

// LockPath returns the single-instance daemon lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "tsencoded.lock")
}

// UsesCLIEncoder reports whether encodes shell out to the drapto binary.
func (c *Config) UsesCLIEncoder() bool {
	return c.Encode.Engine == EngineCLI
}

// ArchiveEnabled reports whether produced files are copied to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.Archive.Backend != ""
}

// BroadcastEnabled reports whether client notifications are published to Redis.
func (c *Config) BroadcastEnabled() bool {
	return strings.TrimSpace(c.Broadcast.RedisAddr) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
