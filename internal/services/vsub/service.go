package vsub

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"devourer/internal/services"
)

// Config captures the transcription tool invocation settings.
type Config struct {
	// Binary is the tool executable (or interpreter when Entrypoint is set).
	Binary string
	// Entrypoint is an optional script passed as the first argument, for
	// installations that run the tool through an interpreter.
	Entrypoint string
}

// Result reports what one invocation produced.
type Result struct {
	TranscriptPath string
	SubtitlePath   string
	Stdout         string
	Stderr         string
}

// Service invokes the external transcription tool.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) (string, string, error)
}

// NewService creates a transcription service with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing). The runner
// returns captured stdout and stderr.
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) (string, string, error)) {
	s.commandRunner = runner
}

// Transcribe runs the tool over source, asking for a subtitle file and a
// plain-text transcript in outputDir. Stderr text without a failing exit
// status is surfaced on the Result so callers can log it; a failing exit
// status carries the ErrExternalTool marker.
func (s *Service) Transcribe(ctx context.Context, source, transcriptPath, subtitlePath, outputDir string) (Result, error) {
	result := Result{TranscriptPath: transcriptPath, SubtitlePath: subtitlePath}

	if strings.TrimSpace(s.cfg.Binary) == "" {
		return result, services.Wrap(services.ErrConfiguration, "vsub", "transcribe", "binary not configured", nil)
	}
	if source == "" {
		return result, services.Wrap(services.ErrConfiguration, "vsub", "transcribe", "source path required", nil)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrStorage, "vsub", "ensure output dir", outputDir, err)
	}

	name, args := s.buildCommand(source, transcriptPath, subtitlePath, outputDir)
	stdout, stderr, err := s.run(ctx, name, args...)
	result.Stdout = stdout
	result.Stderr = stderr
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "vsub", "transcribe", source, err)
	}
	return result, nil
}

func (s *Service) buildCommand(source, transcriptPath, subtitlePath, outputDir string) (string, []string) {
	args := make([]string, 0, 8)
	name := s.cfg.Binary
	if s.cfg.Entrypoint != "" {
		args = append(args, s.cfg.Entrypoint)
	}
	args = append(args,
		source,
		"-s", subtitlePath,
		"-t", transcriptPath,
		"-o", outputDir,
	)
	return name, args
}

func (s *Service) run(ctx context.Context, name string, args ...string) (string, string, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		err = fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), stderr.String(), err
}
