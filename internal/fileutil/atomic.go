package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// PartialSuffix marks in-flight writes. A rename into the final name is the
// only way a file without the suffix appears, so presence checks never see a
// torn artifact.
const PartialSuffix = ".partial"

// WriteFileAtomic writes data to path via a sibling partial file and rename.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	tmp := path + PartialSuffix
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("write partial file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", filepath.Base(path), err)
	}
	return nil
}

// CreatePartial opens the partial sibling of path for streaming writes,
// creating parent directories as needed. Callers finish with CommitPartial or
// DiscardPartial.
func CreatePartial(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}
	file, err := os.OpenFile(path+PartialSuffix, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create partial file: %w", err)
	}
	return file, nil
}

// CommitPartial renames the partial sibling into the final path.
func CommitPartial(path string) error {
	if err := os.Rename(path+PartialSuffix, path); err != nil {
		return fmt.Errorf("commit %s: %w", filepath.Base(path), err)
	}
	return nil
}

// DiscardPartial removes a leftover partial sibling, ignoring absence.
func DiscardPartial(path string) {
	_ = os.Remove(path + PartialSuffix)
}
