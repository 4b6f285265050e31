package encoder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"tsencode/internal/services"
)

var commandContext = exec.CommandContext

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the drapto command-line encoder.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "drapto"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

type cliEvent struct {
	Type       string  `json:"type"`
	Percent    float64 `json:"percent"`
	Stage      string  `json:"stage"`
	Message    string  `json:"message"`
	ETASeconds float64 `json:"eta_seconds"`
	Speed      float64 `json:"speed"`
	FPS        float64 `json:"fps"`
	Bitrate    string  `json:"bitrate"`
	Title      string  `json:"title"`
}

const stderrTailLines = 5

// Encode launches drapto encode and returns the output path.
func (c *CLI) Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	cleanOutputDir := strings.TrimSpace(outputDir)
	if cleanOutputDir == "" {
		return "", errors.New("output directory required")
	}

	args := []string{"encode", "--input", inputPath, "--output", cleanOutputDir, "--responsive", "--progress-json"}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	var tail tailBuffer
	cmd.Stderr = &tail
	if err := cmd.Start(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "encoder", "start drapto", c.binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var payload cliEvent
		if err := json.Unmarshal(scanner.Bytes(), &payload); err != nil {
			continue
		}
		if progress != nil {
			progress(payload.update())
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return "", fmt.Errorf("read drapto output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrExternalTool, "encoder", "drapto encode", tail.String(), err)
	}
	return OutputPath(inputPath, cleanOutputDir), nil
}

func (e cliEvent) update() ProgressUpdate {
	update := ProgressUpdate{
		Type:      EventType(e.Type),
		Timestamp: time.Now(),
		Percent:   e.Percent,
		Stage:     e.Stage,
		Message:   e.Message,
		ETA:       time.Duration(e.ETASeconds * float64(time.Second)),
		Speed:     e.Speed,
		FPS:       e.FPS,
		Bitrate:   e.Bitrate,
	}
	switch update.Type {
	case "":
		update.Type = EventStage
	case EventWarning:
		update.Warning = e.Message
	case EventError:
		update.Issue = &Issue{Title: e.Title, Message: e.Message}
	}
	return update
}

// tailBuffer keeps the last few stderr lines for error messages.
type tailBuffer struct {
	lines   []string
	partial string
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	data := b.partial + string(p)
	parts := strings.Split(data, "\n")
	b.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		if line = strings.TrimSpace(line); line != "" {
			b.lines = append(b.lines, line)
		}
	}
	if len(b.lines) > stderrTailLines {
		b.lines = b.lines[len(b.lines)-stderrTailLines:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	lines := b.lines
	if p := strings.TrimSpace(b.partial); p != "" {
		lines = append(append([]string(nil), lines...), p)
	}
	return strings.Join(lines, " | ")
}

var _ Client = (*CLI)(nil)
