package encoder

import (
	"context"
	"errors"
	"strings"

	draptolib "github.com/five82/drapto"

	"tsencode/internal/services"
)

// Library implements Client using the Drapto Go library directly.
type Library struct{}

// NewLibrary constructs a Library client.
func NewLibrary() *Library {
	return &Library{}
}

// Encode encodes a video file using the Drapto library.
func (l *Library) Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return "", errors.New("output directory required")
	}

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "encoder", "init drapto", "", err)
	}

	var rep draptolib.Reporter
	if progress != nil {
		rep = newReporter(progress)
	}
	if _, err := encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrExternalTool, "encoder", "drapto encode", "", err)
	}
	return OutputPath(inputPath, outputDir), nil
}

var _ Client = (*Library)(nil)
