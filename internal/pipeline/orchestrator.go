package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"devourer/internal/journal"
	"devourer/internal/logging"
	"devourer/internal/ratelimit"
	"devourer/internal/reference"
	"devourer/internal/services"
)

// Recorder receives item outcomes for the run journal. A nil Recorder
// disables journaling; recording failures never affect the pipeline result.
type Recorder interface {
	RecordItem(ctx context.Context, rec journal.ItemRecord) error
}

// Summary reports what one orchestrator pass did.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	Warnings  int
	Duration  time.Duration
}

// Orchestrator walks each reference through its stage sequence. Items are
// processed strictly sequentially; one item's failure never prevents the
// rest of the batch from being attempted, and rerunning over unchanged
// artifacts performs no quota-limited calls and no waits.
type Orchestrator struct {
	stages   StageSet
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	recorder Recorder
	runID    string
}

// NewOrchestrator wires the stage set to the rate limiter and journal.
func NewOrchestrator(stages StageSet, limiter *ratelimit.Limiter, logger *slog.Logger, recorder Recorder) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		stages:   stages,
		limiter:  limiter,
		logger:   logger,
		recorder: recorder,
		runID:    uuid.NewString(),
	}
}

// RunID identifies this orchestrator pass in logs and the journal.
func (o *Orchestrator) RunID() string { return o.runID }

// Run processes the reference list in order. It returns early only on
// context cancellation; every other failure is contained at its item.
func (o *Orchestrator) Run(ctx context.Context, refs []reference.Reference) (Summary, error) {
	start := time.Now()
	var summary Summary

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		requestID := uuid.NewString()
		itemLogger := o.logger.With(
			logging.String(logging.FieldKind, string(ref.Kind)),
			logging.String(logging.FieldCode, ref.Code),
			logging.String(logging.FieldRequestID, requestID),
		)
		itemLogger.Info("processing item",
			logging.Int("position", i+1),
			logging.Int("total", len(refs)),
		)

		outcome := o.processItem(ctx, itemLogger, ref)
		o.record(ctx, itemLogger, ref, outcome)

		switch outcome.status {
		case journal.StatusDone:
			summary.Processed++
		case journal.StatusSkipped:
			summary.Skipped++
			itemLogger.Info("all artifacts present; nothing to do")
		case journal.StatusFailed:
			summary.Failed++
		}
		if outcome.toolFailures > 0 {
			summary.Warnings += outcome.toolFailures
		}

		// Pace only when this item actually touched the provider. A failed
		// fetch still consumed quota, so it waits too.
		if outcome.hitQuota {
			kind := ratelimit.WaitClip
			if ref.Kind == reference.KindPost {
				kind = ratelimit.WaitPost
			}
			if err := o.limiter.Wait(ctx, kind); err != nil {
				summary.Duration = time.Since(start)
				return summary, err
			}
		}
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

type itemOutcome struct {
	stagesRan    []string
	hitQuota     bool
	toolFailures int
	status       string
	err          error
}

func (o *Orchestrator) processItem(ctx context.Context, itemLogger *slog.Logger, ref reference.Reference) itemOutcome {
	var outcome itemOutcome

	for _, executor := range o.stages.ForKind(ref.Kind) {
		if executor == nil {
			continue
		}
		result, err := executor.Run(ctx, ref)
		if result.Ran {
			outcome.stagesRan = append(outcome.stagesRan, executor.Name())
		}
		if result.HitQuota {
			outcome.hitQuota = true
		}
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome.err = err
			outcome.status = journal.StatusFailed
			return outcome
		}
		if services.ItemFatal(err) {
			itemLogger.Error("item abandoned",
				logging.String(logging.FieldStage, executor.Name()),
				logging.Error(err),
			)
			outcome.err = err
			outcome.status = journal.StatusFailed
			return outcome
		}
		// External tool failure: artifact stays absent for a future run.
		outcome.toolFailures++
		itemLogger.Warn("stage incomplete; will retry on a future run",
			logging.String(logging.FieldStage, executor.Name()),
			logging.Error(err),
		)
	}

	if len(outcome.stagesRan) == 0 {
		outcome.status = journal.StatusSkipped
	} else {
		outcome.status = journal.StatusDone
	}
	return outcome
}

func (o *Orchestrator) record(ctx context.Context, itemLogger *slog.Logger, ref reference.Reference, outcome itemOutcome) {
	if o.recorder == nil {
		return
	}
	rec := journal.ItemRecord{
		RunID:    o.runID,
		Kind:     string(ref.Kind),
		Code:     ref.Code,
		Stages:   outcome.stagesRan,
		HitQuota: outcome.hitQuota,
		Status:   outcome.status,
	}
	if outcome.err != nil {
		rec.Error = outcome.err.Error()
	}
	if err := o.recorder.RecordItem(ctx, rec); err != nil {
		itemLogger.Warn("journal write failed", logging.Error(err))
	}
}
