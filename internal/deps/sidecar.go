package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckSidecar reports the copy of tool (ffmpeg, ffprobe) that drapto will
// execute. Drapto prefers a binary sitting next to its own executable and
// falls back to PATH. An empty encoderCommand skips the sidecar lookup, which
// is how the in-process library resolves its tools.
func CheckSidecar(encoderCommand, tool, description string) Status {
	result := Status{
		Name:        tool,
		Description: description,
	}

	if encoder := strings.TrimSpace(encoderCommand); encoder != "" {
		if resolved, err := exec.LookPath(encoder); err == nil {
			candidate := filepath.Join(filepath.Dir(resolved), executableName(tool))
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				result.Command = candidate
				result.Available = true
				return result
			}
		}
	}

	if path, err := exec.LookPath(tool); err == nil {
		result.Command = path
		result.Available = true
		return result
	}

	result.Command = tool
	result.Detail = fmt.Sprintf("binary %q not found", tool)
	return result
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
