package reference

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"devourer/internal/services"
)

// Kind discriminates the two supported content types.
type Kind string

const (
	KindPost Kind = "post"
	KindClip Kind = "clip"
)

// Reference identifies one piece of content by kind and canonical code.
// Immutable once parsed.
type Reference struct {
	Kind Kind
	Code string
}

func (r Reference) String() string {
	return string(r.Kind) + "/" + r.Code
}

const (
	clipMarker = "clip/"
	postMarker = "post/"
)

// Parse classifies a raw link into a Reference. It recognizes URLs carrying a
// clip/ or post/ path segment and extracts the code that follows, up to the
// next slash or query string. Anything else fails with
// services.ErrUnrecognized.
func Parse(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if code, ok := codeAfter(trimmed, clipMarker); ok {
		return Reference{Kind: KindClip, Code: code}, nil
	}
	if code, ok := codeAfter(trimmed, postMarker); ok {
		return Reference{Kind: KindPost, Code: code}, nil
	}
	return Reference{}, services.Wrap(services.ErrUnrecognized, "reference", "parse",
		fmt.Sprintf("no clip/ or post/ segment in %q", raw), nil)
}

func codeAfter(link, marker string) (string, bool) {
	idx := strings.Index(link, marker)
	if idx < 0 {
		return "", false
	}
	code := link[idx+len(marker):]
	if cut := strings.IndexAny(code, "/?#"); cut >= 0 {
		code = code[:cut]
	}
	if code == "" {
		return "", false
	}
	return code, true
}

// LoadFile reads a line-oriented link list. Blank lines and lines starting
// with # are ignored. Unparseable lines are skipped and returned as warnings
// so the caller can log them without aborting the batch.
func LoadFile(path string) ([]Reference, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open link list: %w", err)
	}
	defer file.Close()

	var refs []Reference
	var warnings []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, err := Parse(line)
		if err != nil {
			warnings = append(warnings, line)
			continue
		}
		refs = append(refs, ref)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read link list: %w", err)
	}
	if len(refs) == 0 && len(warnings) == 0 {
		return nil, nil, fmt.Errorf("link list %s contains no entries", path)
	}
	return refs, warnings, nil
}
