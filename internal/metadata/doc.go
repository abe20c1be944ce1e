// Package metadata defines the versioned metadata document persisted for
// each content item, including the preview-selection policy.
package metadata
