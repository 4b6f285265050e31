package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncode(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if c.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must not be negative")
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func (c *Config) validateEncode() error {
	switch c.Encode.Engine {
	case EngineLibrary, EngineCLI:
	default:
		return fmt.Errorf("encode.engine must be %q or %q, got %q", EngineLibrary, EngineCLI, c.Encode.Engine)
	}
	if c.Encode.Concurrency <= 0 {
		return errors.New("encode.concurrency must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.JWTSecret != "" && len(c.API.JWTSecret) < 32 {
		return errors.New("api.jwt_secret must be at least 32 bytes")
	}
	return nil
}

func (c *Config) validateArchive() error {
	switch c.Archive.Backend {
	case "":
		return nil
	case ArchiveS3:
		if c.Archive.Region == "" {
			return errors.New("archive.region must be set when archive.backend is s3")
		}
		if c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
			return errors.New("archive.access_key and archive.secret_key must be set when archive.backend is s3 (or set AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY)")
		}
	case ArchiveGCS:
		if c.Archive.CredentialsFile == "" {
			return errors.New("archive.credentials_file must be set when archive.backend is gcs")
		}
	default:
		return fmt.Errorf("archive.backend must be empty, %q, or %q, got %q", ArchiveS3, ArchiveGCS, c.Archive.Backend)
	}
	if strings.TrimSpace(c.Archive.Bucket) == "" {
		return errors.New("archive.bucket must be set when archive.backend is configured")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":    c.Workflow.HeartbeatTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
