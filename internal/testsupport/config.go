package testsupport

import (
	"path/filepath"
	"testing"

	"devourer/internal/config"
)

// NewConfig produces a config seeded with unique temp directories per test
// and rate-limit intervals collapsed to zero so tests never sleep.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StorageDir = filepath.Join(base, "archive")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Provider.BaseURL = "http://127.0.0.1:0"
	cfg.RateLimit.PostMinSeconds = 0
	cfg.RateLimit.PostMaxSeconds = 0
	cfg.RateLimit.ClipMinSeconds = 0
	cfg.RateLimit.ClipMaxSeconds = 0

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}
