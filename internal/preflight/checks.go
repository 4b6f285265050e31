package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"tsencode/internal/config"
	"tsencode/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the configured encoder
// engine needs. The daemon status and the CLI status command share it.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	var statuses []deps.Status
	encoderCommand := ""
	if cfg.UsesCLIEncoder() {
		encoderCommand = cfg.Encode.DraptoBinary
		statuses = append(statuses, deps.CheckBinaries([]deps.Requirement{{
			Name:        "drapto",
			Command:     encoderCommand,
			Description: "Required for the cli encode engine",
		}})...)
	}
	statuses = append(statuses,
		deps.CheckSidecar(encoderCommand, "ffmpeg", "Required for encoding"),
		deps.CheckSidecar(encoderCommand, "ffprobe", "Required for media inspection"),
	)
	return statuses
}
