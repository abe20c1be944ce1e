package services

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection reset")
	err := Wrap(ErrTransient, "provider", "fetch metadata", "request failed", base)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "provider: fetch metadata") {
		t.Fatalf("missing detail in %q", err.Error())
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "fetch", "download", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
}

func TestItemFatal(t *testing.T) {
	cases := []struct {
		err   error
		fatal bool
	}{
		{nil, false},
		{Wrap(ErrExternalTool, "vsub", "run", "", errors.New("exit 1")), false},
		{Wrap(ErrTransient, "provider", "fetch", "", nil), true},
		{Wrap(ErrStorage, "artifacts", "write", "", nil), true},
		{Wrap(ErrNotFound, "provider", "fetch", "", nil), true},
	}
	for _, tc := range cases {
		if got := ItemFatal(tc.err); got != tc.fatal {
			t.Fatalf("ItemFatal(%v) = %v, want %v", tc.err, got, tc.fatal)
		}
	}
}
