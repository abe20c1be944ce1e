package metadata

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is bumped whenever Document changes incompatibly.
const SchemaVersion = 1

// Media describes one downloadable media rendition.
type Media struct {
	URL         string `json:"url"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Preview describes one preview-image candidate.
type Preview struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Document is the versioned metadata record persisted for every item. It
// replaces reflection over arbitrary provider objects with a fixed schema so
// serialization is total.
type Document struct {
	SchemaVersion int        `json:"schema_version"`
	Kind          string     `json:"kind"`
	Code          string     `json:"code"`
	Author        string     `json:"author,omitempty"`
	Caption       string     `json:"caption,omitempty"`
	TakenAt       *time.Time `json:"taken_at,omitempty"`
	Videos        []Media    `json:"videos,omitempty"`
	Images        []Media    `json:"images,omitempty"`
	Previews      []Preview  `json:"previews,omitempty"`
}

// BestPreview returns the candidate with the largest declared width. Ties
// keep the first-encountered candidate. The boolean is false when there are
// no candidates, which callers treat as "skip the preview stage".
func (d *Document) BestPreview() (Preview, bool) {
	if d == nil || len(d.Previews) == 0 {
		return Preview{}, false
	}
	best := d.Previews[0]
	for _, p := range d.Previews[1:] {
		if p.Width > best.Width {
			best = p
		}
	}
	return best, true
}

// PrimaryVideo returns the first video rendition, the one downloaded for
// clips.
func (d *Document) PrimaryVideo() (Media, bool) {
	if d == nil || len(d.Videos) == 0 {
		return Media{}, false
	}
	return d.Videos[0], true
}

// Encode serializes the document as indented JSON.
func Encode(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("metadata: nil document")
	}
	if doc.SchemaVersion == 0 {
		doc.SchemaVersion = SchemaVersion
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses a persisted document.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("metadata: decode document: %w", err)
	}
	return &doc, nil
}
