package main

import (
	"strings"

	"github.com/spf13/cobra"

	"tsencode/internal/config"
	"tsencode/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the tsencode daemon in the foreground (internal)",
		Hidden:       true,
		Annotations:  map[string]string{"skipConfigLoad": "true"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    resolvedLogLevel(cfg, logLevel),
				Development: development,
				SocketPath:  ctx.socketFlagValue(),
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging (source locations)")
	return cmd
}

func resolvedLogLevel(cfg *config.Config, override string) string {
	if level := strings.TrimSpace(override); level != "" {
		return strings.ToLower(level)
	}
	if cfg == nil {
		return ""
	}
	return cfg.Logging.Level
}
