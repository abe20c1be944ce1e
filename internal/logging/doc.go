// Package logging builds the slog loggers used throughout devourer and
// provides attribute helpers plus the shared structured field names.
package logging
