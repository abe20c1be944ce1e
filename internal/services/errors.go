package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnrecognized  = errors.New("unrecognized reference")
	ErrTransient     = errors.New("transient failure")
	ErrExternalTool  = errors.New("external tool error")
	ErrStorage       = errors.New("storage error")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ItemFatal reports whether a stage error must abandon the item. External
// tool failures leave the artifact absent for a future run; everything else
// (transient fetch, storage, not-found) stops the item so later stages do not
// run against missing inputs.
func ItemFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrExternalTool)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
