package pipeline

import (
	"context"

	"devourer/internal/reference"
)

// Stage names used in logs and the run journal.
const (
	StageMetadataFetch = "metadata_fetch"
	StageMediaDownload = "media_download"
	StagePreviewFetch  = "preview_fetch"
	StageAudioExtract  = "audio_extract"
	StageTranscribe    = "transcribe"
)

// Result is the explicit per-stage outcome the orchestrator folds into its
// item state. HitQuota marks stages that touched the provider API; the rate
// limiter fires only when an item accumulated at least one.
type Result struct {
	Ran      bool
	HitQuota bool
}

// Executor is one unit of pipeline work. Run checks its own precondition
// (artifact absent) and reports Ran=false when the output already exists.
type Executor interface {
	Name() string
	Run(ctx context.Context, ref reference.Reference) (Result, error)
}

// StageSet bundles the concrete executors the orchestrator sequences.
type StageSet struct {
	Metadata   Executor
	Media      Executor
	Preview    Executor
	Audio      Executor
	Transcribe Executor
}

// ForKind returns the stage sequence for a content kind. Posts stop after
// media; clips continue through preview, audio, and transcription.
func (s StageSet) ForKind(kind reference.Kind) []Executor {
	if kind == reference.KindPost {
		return []Executor{s.Metadata, s.Media}
	}
	return []Executor{s.Metadata, s.Media, s.Preview, s.Audio, s.Transcribe}
}
