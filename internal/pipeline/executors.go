package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"devourer/internal/artifacts"
	"devourer/internal/fetch"
	"devourer/internal/logging"
	"devourer/internal/reference"
	"devourer/internal/services"
	"devourer/internal/services/ffmpeg"
	"devourer/internal/services/provider"
	"devourer/internal/services/vsub"
)

// MetadataFetch retrieves and persists the metadata document.
type MetadataFetch struct {
	store  *artifacts.Store
	client provider.Client
	logger *slog.Logger
}

func NewMetadataFetch(store *artifacts.Store, client provider.Client, logger *slog.Logger) *MetadataFetch {
	return &MetadataFetch{store: store, client: client, logger: logger}
}

func (e *MetadataFetch) Name() string { return StageMetadataFetch }

func (e *MetadataFetch) Run(ctx context.Context, ref reference.Reference) (Result, error) {
	if e.store.Exists(ref.Kind, ref.Code, artifacts.StageMetadata) {
		return Result{}, nil
	}
	doc, err := e.client.FetchMetadata(ctx, ref)
	if err != nil {
		return Result{Ran: true, HitQuota: true}, err
	}
	path, err := e.store.WriteDocument(ref, doc)
	if err != nil {
		return Result{Ran: true, HitQuota: true}, err
	}
	e.logger.Info("metadata saved",
		logging.String(logging.FieldCode, ref.Code),
		logging.String("path", path),
	)
	return Result{Ran: true, HitQuota: true}, nil
}

// MediaDownload fetches the binary media. Clips download the primary video
// named in the metadata document; posts ask the provider for the full media
// list and download every sibling with bounded parallelism.
type MediaDownload struct {
	store       *artifacts.Store
	client      provider.Client
	downloader  *fetch.Downloader
	parallelism int
	logger      *slog.Logger
}

func NewMediaDownload(store *artifacts.Store, client provider.Client, downloader *fetch.Downloader, parallelism int, logger *slog.Logger) *MediaDownload {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &MediaDownload{store: store, client: client, downloader: downloader, parallelism: parallelism, logger: logger}
}

func (e *MediaDownload) Name() string { return StageMediaDownload }

func (e *MediaDownload) Run(ctx context.Context, ref reference.Reference) (Result, error) {
	if e.store.Exists(ref.Kind, ref.Code, artifacts.StageMedia) {
		return Result{}, nil
	}
	if ref.Kind == reference.KindPost {
		return e.runPost(ctx, ref)
	}
	return e.runClip(ctx, ref)
}

func (e *MediaDownload) runClip(ctx context.Context, ref reference.Reference) (Result, error) {
	doc, err := e.store.ReadDocument(ref)
	if err != nil {
		return Result{Ran: true}, err
	}
	video, ok := doc.PrimaryVideo()
	if !ok || video.URL == "" {
		e.logger.Warn("no video URL in metadata; skipping media download",
			logging.String(logging.FieldCode, ref.Code))
		return Result{Ran: true}, nil
	}
	dest := e.store.Path(ref.Kind, ref.Code, artifacts.StageMedia)
	written, err := e.downloader.Download(ctx, video.URL, dest)
	if err != nil {
		return Result{Ran: true, HitQuota: true}, err
	}
	e.logger.Info("media saved",
		logging.String(logging.FieldCode, ref.Code),
		logging.String("path", dest),
		logging.String("size", humanize.Bytes(uint64(written))),
	)
	return Result{Ran: true, HitQuota: true}, nil
}

func (e *MediaDownload) runPost(ctx context.Context, ref reference.Reference) (Result, error) {
	list, err := e.client.FetchMediaList(ctx, ref)
	if err != nil {
		return Result{Ran: true, HitQuota: true}, err
	}
	if len(list) == 0 {
		// Record completion so reruns skip the stage instead of asking the
		// provider again.
		if err := e.store.MarkPostMediaEmpty(ref.Code); err != nil {
			return Result{Ran: true, HitQuota: true}, err
		}
		e.logger.Info("post has no downloadable media",
			logging.String(logging.FieldCode, ref.Code))
		return Result{Ran: true, HitQuota: true}, nil
	}
	jobs := make([]fetch.Job, 0, len(list))
	for i, media := range list {
		jobs = append(jobs, fetch.Job{
			URL:  media.URL,
			Dest: e.store.PostMediaPath(ref.Code, i+1, media.ContentType),
		})
	}
	written, err := e.downloader.DownloadAll(ctx, jobs, e.parallelism)
	if err != nil {
		return Result{Ran: true, HitQuota: true}, err
	}
	e.logger.Info("post media saved",
		logging.String(logging.FieldCode, ref.Code),
		logging.Int("files", len(jobs)),
		logging.String("size", humanize.Bytes(uint64(written))),
	)
	return Result{Ran: true, HitQuota: true}, nil
}

// PreviewFetch downloads the best preview image named in the metadata
// document. Missing candidates merely skip the stage. The image comes from a
// CDN URL, not the provider API, so it never consumes quota.
type PreviewFetch struct {
	store      *artifacts.Store
	downloader *fetch.Downloader
	logger     *slog.Logger
}

func NewPreviewFetch(store *artifacts.Store, downloader *fetch.Downloader, logger *slog.Logger) *PreviewFetch {
	return &PreviewFetch{store: store, downloader: downloader, logger: logger}
}

func (e *PreviewFetch) Name() string { return StagePreviewFetch }

func (e *PreviewFetch) Run(ctx context.Context, ref reference.Reference) (Result, error) {
	if e.store.Exists(ref.Kind, ref.Code, artifacts.StagePreview) {
		return Result{}, nil
	}
	if !e.store.Exists(ref.Kind, ref.Code, artifacts.StageMetadata) {
		return Result{}, nil
	}
	doc, err := e.store.ReadDocument(ref)
	if err != nil {
		return Result{Ran: true}, err
	}
	best, ok := doc.BestPreview()
	if !ok || best.URL == "" {
		return Result{}, nil
	}
	dest := e.store.Path(ref.Kind, ref.Code, artifacts.StagePreview)
	if _, err := e.downloader.Download(ctx, best.URL, dest); err != nil {
		return Result{Ran: true}, err
	}
	e.logger.Info("preview saved",
		logging.String(logging.FieldCode, ref.Code),
		logging.Int("width", best.Width),
	)
	return Result{Ran: true}, nil
}

// AudioExtract produces the audio track for transcription once media is
// present.
type AudioExtract struct {
	store     *artifacts.Store
	extractor *ffmpeg.Extractor
	logger    *slog.Logger
}

func NewAudioExtract(store *artifacts.Store, extractor *ffmpeg.Extractor, logger *slog.Logger) *AudioExtract {
	return &AudioExtract{store: store, extractor: extractor, logger: logger}
}

func (e *AudioExtract) Name() string { return StageAudioExtract }

func (e *AudioExtract) Run(ctx context.Context, ref reference.Reference) (Result, error) {
	if e.store.Exists(ref.Kind, ref.Code, artifacts.StageAudio) {
		return Result{}, nil
	}
	if !e.store.Exists(ref.Kind, ref.Code, artifacts.StageMedia) {
		return Result{}, nil
	}
	source := e.store.Path(ref.Kind, ref.Code, artifacts.StageMedia)
	dest := e.store.Path(ref.Kind, ref.Code, artifacts.StageAudio)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{Ran: true}, services.Wrap(services.ErrStorage, "pipeline", "ensure audio dir", dest, err)
	}
	if err := e.extractor.ExtractAudio(ctx, source, dest); err != nil {
		return Result{Ran: true}, err
	}
	e.logger.Info("audio extracted", logging.String(logging.FieldCode, ref.Code))
	return Result{Ran: true}, nil
}

// Transcribe invokes the external transcription tool to produce the
// transcript and subtitle artifacts.
type Transcribe struct {
	store   *artifacts.Store
	service *vsub.Service
	logger  *slog.Logger
}

func NewTranscribe(store *artifacts.Store, service *vsub.Service, logger *slog.Logger) *Transcribe {
	return &Transcribe{store: store, service: service, logger: logger}
}

func (e *Transcribe) Name() string { return StageTranscribe }

func (e *Transcribe) Run(ctx context.Context, ref reference.Reference) (Result, error) {
	haveTranscript := e.store.Exists(ref.Kind, ref.Code, artifacts.StageTranscript)
	haveSubtitle := e.store.Exists(ref.Kind, ref.Code, artifacts.StageSubtitle)
	if haveTranscript && haveSubtitle {
		return Result{}, nil
	}
	if !e.store.Exists(ref.Kind, ref.Code, artifacts.StageMedia) {
		return Result{}, nil
	}

	source := e.store.Path(ref.Kind, ref.Code, artifacts.StageMedia)
	transcriptPath := e.store.Path(ref.Kind, ref.Code, artifacts.StageTranscript)
	subtitlePath := e.store.Path(ref.Kind, ref.Code, artifacts.StageSubtitle)

	result, err := e.service.Transcribe(ctx, source, transcriptPath, subtitlePath, filepath.Dir(transcriptPath))
	if result.Stdout != "" {
		e.logger.Info("transcription tool output",
			logging.String(logging.FieldCode, ref.Code),
			logging.String("stdout", result.Stdout),
		)
	}
	if result.Stderr != "" {
		e.logger.Error("transcription tool stderr",
			logging.String(logging.FieldCode, ref.Code),
			logging.String("stderr", result.Stderr),
		)
	}
	if err != nil {
		return Result{Ran: true}, err
	}
	e.logger.Info("transcript saved",
		logging.String(logging.FieldCode, ref.Code),
		logging.String("transcript", result.TranscriptPath),
		logging.String("subtitle", result.SubtitlePath),
	)
	return Result{Ran: true}, nil
}
