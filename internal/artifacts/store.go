package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"devourer/internal/fileutil"
	"devourer/internal/metadata"
	"devourer/internal/reference"
	"devourer/internal/services"
)

// Stage names one unit of pipeline work whose output is a persisted artifact.
type Stage string

const (
	StageMetadata   Stage = "metadata"
	StageMedia      Stage = "media"
	StagePreview    Stage = "preview"
	StageAudio      Stage = "audio"
	StageTranscript Stage = "transcript"
	StageSubtitle   Stage = "subtitle"
)

// Store maps (kind, code, stage) to filesystem locations under a storage
// root. File existence is the only completion marker; there is no separate
// status ledger.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir. The directory itself is created
// lazily by the first write.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the storage root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) categoryDir(stage Stage) string {
	switch stage {
	case StageMetadata:
		return filepath.Join(s.root, "metadata")
	case StageMedia:
		return filepath.Join(s.root, "media")
	case StagePreview:
		return filepath.Join(s.root, "previews")
	case StageAudio:
		return filepath.Join(s.root, "audio")
	case StageTranscript, StageSubtitle:
		return filepath.Join(s.root, "transcripts")
	default:
		return filepath.Join(s.root, string(stage))
	}
}

// Path returns the final artifact location for single-file stages. Post media
// uses PostMediaPath instead because one post can carry several files.
func (s *Store) Path(kind reference.Kind, code string, stage Stage) string {
	dir := s.categoryDir(stage)
	switch stage {
	case StageMetadata:
		return filepath.Join(dir, code+".json")
	case StageMedia:
		return filepath.Join(dir, code+".mp4")
	case StagePreview:
		return filepath.Join(dir, code+".jpg")
	case StageAudio:
		return filepath.Join(dir, code+".flac")
	case StageTranscript:
		return filepath.Join(dir, code+".txt")
	case StageSubtitle:
		return filepath.Join(dir, code+".srt")
	default:
		return filepath.Join(dir, code)
	}
}

// PostMediaPath returns the location of the seq-th media file of a post. The
// extension comes from the declared content type ("image/jpeg" → jpg).
func (s *Store) PostMediaPath(code string, seq int, contentType string) string {
	ext := extensionFor(contentType)
	name := fmt.Sprintf("%s_%03d.%s", code, seq, ext)
	return filepath.Join(s.categoryDir(StageMedia), name)
}

// postMediaEmptySuffix names the zero-byte marker recorded when a post's
// provider media list comes back empty.
const postMediaEmptySuffix = "_empty"

// MarkPostMediaEmpty records that a post has no downloadable media. The
// marker satisfies Exists for the media stage, so later runs skip it without
// asking the provider again.
func (s *Store) MarkPostMediaEmpty(code string) error {
	path := filepath.Join(s.categoryDir(StageMedia), code+postMediaEmptySuffix)
	if err := fileutil.WriteFileAtomic(path, nil, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "artifacts", "mark post media empty", code, err)
	}
	return nil
}

// Exists answers whether the stage output is present. Partial files never
// count. A post's media stage is complete when at least one sequence file
// exists.
func (s *Store) Exists(kind reference.Kind, code string, stage Stage) bool {
	if stage == StageMedia && kind == reference.KindPost {
		matches, err := filepath.Glob(filepath.Join(s.categoryDir(StageMedia), code+"_*"))
		if err != nil {
			return false
		}
		for _, m := range matches {
			if !strings.HasSuffix(m, fileutil.PartialSuffix) {
				return true
			}
		}
		return false
	}
	info, err := os.Stat(s.Path(kind, code, stage))
	return err == nil && !info.IsDir()
}

// WriteDocument persists a metadata document atomically and returns its path.
func (s *Store) WriteDocument(ref reference.Reference, doc *metadata.Document) (string, error) {
	data, err := metadata.Encode(doc)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "artifacts", "encode metadata", ref.String(), err)
	}
	path := s.Path(ref.Kind, ref.Code, StageMetadata)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrStorage, "artifacts", "write metadata", ref.String(), err)
	}
	return path, nil
}

// ReadDocument loads a previously persisted metadata document.
func (s *Store) ReadDocument(ref reference.Reference) (*metadata.Document, error) {
	data, err := os.ReadFile(s.Path(ref.Kind, ref.Code, StageMetadata))
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "artifacts", "read metadata", ref.String(), err)
	}
	doc, err := metadata.Decode(data)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "artifacts", "decode metadata", ref.String(), err)
	}
	return doc, nil
}

func extensionFor(contentType string) string {
	sub := contentType
	if idx := strings.LastIndex(contentType, "/"); idx >= 0 {
		sub = contentType[idx+1:]
	}
	sub = strings.ToLower(strings.TrimSpace(sub))
	switch sub {
	case "", "octet-stream":
		return "bin"
	case "jpeg":
		return "jpg"
	default:
		return sub
	}
}
