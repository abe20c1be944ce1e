// Package config loads, validates, and defaults the TOML configuration for
// devourer. Paths are expanded (including ~) and normalized at load time so
// the rest of the program never deals with relative or user-prefixed paths.
package config
