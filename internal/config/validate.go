package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		problems = append(problems, "paths.storage_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Provider.BaseURL) == "" {
		problems = append(problems, "provider.base_url must be set")
	}
	if c.Provider.TimeoutSeconds <= 0 {
		problems = append(problems, "provider.timeout_seconds must be positive")
	}
	if c.Download.Parallelism <= 0 {
		problems = append(problems, "download.parallelism must be positive")
	}
	if c.Download.TimeoutSeconds <= 0 {
		problems = append(problems, "download.timeout_seconds must be positive")
	}
	if c.RateLimit.PostMinSeconds < 0 || c.RateLimit.ClipMinSeconds < 0 {
		problems = append(problems, "ratelimit minimum delays must not be negative")
	}
	if c.RateLimit.PostMaxSeconds < c.RateLimit.PostMinSeconds {
		problems = append(problems, "ratelimit.post_max_seconds must be >= post_min_seconds")
	}
	if c.RateLimit.ClipMaxSeconds < c.RateLimit.ClipMinSeconds {
		problems = append(problems, "ratelimit.clip_max_seconds must be >= clip_min_seconds")
	}
	if strings.TrimSpace(c.Tools.VsubBinary) == "" {
		problems = append(problems, "tools.vsub_binary must be set")
	}

	if len(problems) == 0 {
		return nil
	}
	if len(problems) == 1 {
		return errors.New(problems[0])
	}
	return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
}
