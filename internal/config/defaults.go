package config

const (
	defaultConfigPath                = "~/.config/tsencode/config.toml"
	defaultDataDir                   = "~/.local/share/tsencode"
	defaultLogDir                    = "~/.local/share/tsencode/logs"
	defaultOutputDir                 = "~/encoded"
	defaultStagingDir                = "~/.local/share/tsencode/staging"
	defaultDraptoBinary              = "drapto"
	defaultEncodeConcurrency         = 1
	defaultAPIBind                   = "127.0.0.1:7488"
	defaultJWTIssuer                 = "tsencode"
	defaultNotifyRequestTimeout      = 10
	defaultBroadcastChannel          = "tsencode:state"
	defaultBroadcastPublishTimeout   = 3
	defaultArchivePrefix             = "encoded/"
	defaultWorkflowQueuePollInterval = 5
	defaultWorkflowErrorRetry        = 10
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultJournalRetentionDays      = 30
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogRetentionDays          = 14
)

// Encoder engines.
const (
	EngineLibrary = "library"
	EngineCLI     = "cli"
)

// Archive backends.
const (
	ArchiveS3  = "s3"
	ArchiveGCS = "gcs"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			OutputDir:  defaultOutputDir,
			StagingDir: defaultStagingDir,
		},
		Encode: Encode{
			Engine:       EngineLibrary,
			DraptoBinary: defaultDraptoBinary,
			Concurrency:  defaultEncodeConcurrency,
		},
		API: API{
			Bind:      defaultAPIBind,
			JWTIssuer: defaultJWTIssuer,
		},
		Notifications: Notifications{
			RequestTimeout:  defaultNotifyRequestTimeout,
			EncodeCompleted: true,
			EncodeFailed:    true,
		},
		Broadcast: Broadcast{
			Channel:        defaultBroadcastChannel,
			PublishTimeout: defaultBroadcastPublishTimeout,
		},
		Archive: Archive{
			Prefix: defaultArchivePrefix,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultWorkflowQueuePollInterval,
			ErrorRetryInterval: defaultWorkflowErrorRetry,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
		},
		Journal: Journal{
			RetentionDays: defaultJournalRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
