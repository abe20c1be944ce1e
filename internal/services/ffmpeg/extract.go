package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"devourer/internal/services"
)

// DefaultBinary is the ffmpeg executable name used when none is configured.
const DefaultBinary = "ffmpeg"

// Extractor pulls the audio track out of downloaded media. The output is
// mono 16 kHz FLAC, the format the transcription tool expects.
type Extractor struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewExtractor creates an extractor using the given ffmpeg binary.
func NewExtractor(binary string) *Extractor {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Extractor{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	e.commandRunner = runner
}

// ExtractAudio writes the audio stream of source to dest. Failures carry the
// ErrExternalTool marker so the orchestrator treats the stage as incomplete
// rather than abandoning the item.
func (e *Extractor) ExtractAudio(ctx context.Context, source, dest string) error {
	if source == "" || dest == "" {
		return services.Wrap(services.ErrConfiguration, "ffmpeg", "extract audio", "source and dest required", nil)
	}
	args := buildExtractArgs(source, dest)
	if err := e.run(ctx, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "extract audio", source, err)
	}
	return nil
}

func (e *Extractor) run(ctx context.Context, args ...string) error {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, e.binary, args...)
	}
	cmd := exec.CommandContext(ctx, e.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", e.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func buildExtractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "flac",
		dest,
	}
}
