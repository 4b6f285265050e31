package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncode()
	c.normalizeAPI()
	c.normalizeBroadcast()
	if err := c.normalizeArchive(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
		def   string
	}{
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.staging_dir", &c.Paths.StagingDir, defaultStagingDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeEncode() {
	c.Encode.Engine = strings.ToLower(strings.TrimSpace(c.Encode.Engine))
	if c.Encode.Engine == "" {
		c.Encode.Engine = EngineLibrary
	}
	c.Encode.DraptoBinary = strings.TrimSpace(c.Encode.DraptoBinary)
	if c.Encode.DraptoBinary == "" {
		c.Encode.DraptoBinary = defaultDraptoBinary
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("TSENCODE_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	c.API.JWTSecret = strings.TrimSpace(c.API.JWTSecret)
	if c.API.JWTSecret == "" {
		if value, ok := os.LookupEnv("TSENCODE_JWT_SECRET"); ok {
			c.API.JWTSecret = strings.TrimSpace(value)
		}
	}
	c.API.JWTIssuer = strings.TrimSpace(c.API.JWTIssuer)
	if c.API.JWTIssuer == "" {
		c.API.JWTIssuer = defaultJWTIssuer
	}
}

func (c *Config) normalizeBroadcast() {
	c.Broadcast.RedisAddr = strings.TrimSpace(c.Broadcast.RedisAddr)
	c.Broadcast.Channel = strings.TrimSpace(c.Broadcast.Channel)
	if c.Broadcast.Channel == "" {
		c.Broadcast.Channel = defaultBroadcastChannel
	}
	if c.Broadcast.PublishTimeout <= 0 {
		c.Broadcast.PublishTimeout = defaultBroadcastPublishTimeout
	}
}

func (c *Config) normalizeArchive() error {
	c.Archive.Backend = strings.ToLower(strings.TrimSpace(c.Archive.Backend))
	c.Archive.Bucket = strings.TrimSpace(c.Archive.Bucket)
	c.Archive.Region = strings.TrimSpace(c.Archive.Region)
	c.Archive.Endpoint = strings.TrimSpace(c.Archive.Endpoint)
	c.Archive.Prefix = strings.TrimLeft(strings.TrimSpace(c.Archive.Prefix), "/")
	if c.Archive.Backend == ArchiveS3 {
		if c.Archive.AccessKey == "" {
			if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
				c.Archive.AccessKey = strings.TrimSpace(value)
			}
		}
		if c.Archive.SecretKey == "" {
			if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
				c.Archive.SecretKey = strings.TrimSpace(value)
			}
		}
	}
	if c.Archive.CredentialsFile != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Archive.CredentialsFile))
		if err != nil {
			return fmt.Errorf("archive.credentials_file: %w", err)
		}
		c.Archive.CredentialsFile = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
