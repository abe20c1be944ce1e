package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"devourer/internal/artifacts"
	"devourer/internal/config"
	"devourer/internal/fetch"
	"devourer/internal/journal"
	"devourer/internal/logging"
	"devourer/internal/pipeline"
	"devourer/internal/ratelimit"
	"devourer/internal/reference"
	"devourer/internal/services/ffmpeg"
	"devourer/internal/services/provider"
	"devourer/internal/services/vsub"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <links-file>",
		Short: "Process a link list through the acquisition pipeline",
		Long: `Run walks every link in the list through metadata fetch, media download,
and, for clips, preview fetch, audio extraction, and transcription. Stages
whose artifacts already exist are skipped, so rerunning over an unchanged
archive is free.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runPipeline(cmd, cfg, args[0])
		},
	}
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, linksPath string) error {
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{cfg.LogFilePath(), "stdout"},
	})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	lock := flock.New(cfg.LockFilePath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another run holds %s; wait for it to finish", cfg.LockFilePath())
	}
	defer func() {
		_ = lock.Unlock()
	}()

	refs, warnings, err := reference.LoadFile(linksPath)
	if err != nil {
		return err
	}
	for _, line := range warnings {
		logger.Warn("unrecognized link skipped", logging.String("line", line))
	}
	if len(refs) == 0 {
		return fmt.Errorf("link list %s has no usable entries", linksPath)
	}

	signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := provider.NewHTTPClient(
		cfg.Provider.BaseURL,
		cfg.Provider.AuthToken,
		time.Duration(cfg.Provider.TimeoutSeconds)*time.Second,
	)
	downloader := fetch.NewDownloader(&http.Client{
		Timeout: time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
	})
	store := artifacts.NewStore(cfg.Paths.StorageDir)
	extractor := ffmpeg.NewExtractor(cfg.Tools.FFmpegBinary)
	transcriber := vsub.NewService(vsub.Config{
		Binary:     cfg.Tools.VsubBinary,
		Entrypoint: cfg.Tools.VsubEntrypoint,
	})
	limiter := ratelimit.New(
		ratelimit.Interval{
			Min: time.Duration(cfg.RateLimit.PostMinSeconds) * time.Second,
			Max: time.Duration(cfg.RateLimit.PostMaxSeconds) * time.Second,
		},
		ratelimit.Interval{
			Min: time.Duration(cfg.RateLimit.ClipMinSeconds) * time.Second,
			Max: time.Duration(cfg.RateLimit.ClipMaxSeconds) * time.Second,
		},
	)

	stages := pipeline.StageSet{
		Metadata:   pipeline.NewMetadataFetch(store, client, logger),
		Media:      pipeline.NewMediaDownload(store, client, downloader, cfg.Download.Parallelism, logger),
		Preview:    pipeline.NewPreviewFetch(store, downloader, logger),
		Audio:      pipeline.NewAudioExtract(store, extractor, logger),
		Transcribe: pipeline.NewTranscribe(store, transcriber, logger),
	}

	var recorder pipeline.Recorder
	journalStore, err := journal.Open(cfg.JournalPath())
	if err != nil {
		logger.Warn("run journal unavailable; continuing without history", logging.Error(err))
	} else {
		recorder = journalStore
		defer journalStore.Close()
	}

	orch := pipeline.NewOrchestrator(stages, limiter, logger, recorder)
	started := time.Now()
	logger.Info("run started",
		logging.String("run_id", orch.RunID()),
		logging.Int("items", len(refs)),
	)
	if journalStore != nil {
		if err := journalStore.BeginRun(signalCtx, orch.RunID(), started); err != nil {
			logger.Warn("journal begin failed", logging.Error(err))
		}
	}

	summary, runErr := orch.Run(signalCtx, refs)

	if journalStore != nil {
		// Record the outcome even when the run was interrupted.
		if err := journalStore.FinishRun(cmd.Context(), orch.RunID(), time.Now(),
			summary.Processed, summary.Skipped, summary.Failed); err != nil {
			logger.Warn("journal finish failed", logging.Error(err))
		}
	}

	printRunSummary(cmd.OutOrStdout(), summary)
	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", summary.Failed, len(refs))
	}
	return nil
}
