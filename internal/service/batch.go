package service

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fleveque/frameseal/internal/codec"
	"github.com/fleveque/frameseal/internal/frame"
	"github.com/fleveque/frameseal/internal/model"
	"github.com/fleveque/frameseal/internal/storage"
)

// Failure is one image that could not be framed.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes a batch. Canceled images are neither successes nor
// failures.
type Report struct {
	RunID     int64 // 0 when no ledger is configured
	Succeeded int
	Failures  []Failure
	Canceled  int
	Outputs   map[string]string // source path -> written output path
}

// BatchOptions controls a batch run.
type BatchOptions struct {
	Format  string
	Workers int // <= 0 means runtime.NumCPU()
}

// BatchService frames many files in parallel and writes each result beside
// its source.
type BatchService struct {
	frames *FrameService
	runs   storage.RunRepository // nil disables the ledger
	logger *zap.Logger
}

// NewBatchService creates a BatchService. runs may be nil.
func NewBatchService(frames *FrameService, runs storage.RunRepository, logger *zap.Logger) *BatchService {
	return &BatchService{frames: frames, runs: runs, logger: logger}
}

// task is one input file with its planned output.
type task struct {
	src     string
	dst     string
	planErr error
}

// outcome is written by exactly one worker, at its task's index.
type outcome struct {
	status model.ResultStatus
	dst    string
	err    error
}

// Run frames every path with cfg. An invalid cfg or unknown format fails the
// whole batch before any file is touched; everything after that is
// per-image and ends up in the Report.
//
// Output paths are planned one after another before the workers start, so
// their order follows the input order even though encoding is parallel.
func (b *BatchService) Run(ctx context.Context, paths []string, cfg *frame.Config, opts BatchOptions) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := codec.Lookup(opts.Format); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	registry := codec.NewRegistry()
	tasks := make([]task, len(paths))
	for i, p := range paths {
		tasks[i].src = p
		tasks[i].dst, tasks[i].planErr = registry.Plan(opts.Format, p)
	}

	run := &model.Run{Format: opts.Format, Total: len(paths)}
	b.recordRun(ctx, run)

	b.logger.Info("batch started",
		zap.Int64("run_id", run.ID),
		zap.Int("images", len(paths)),
		zap.String("format", opts.Format),
		zap.Int("workers", workers),
	)
	started := time.Now()

	// Go note: errgroup.Group with SetLimit is a bounded worker pool. g.Go
	// blocks once `workers` goroutines are busy. Workers never return an
	// error here, because one bad image must not stop the others.
	outcomes := make([]outcome, len(tasks))
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range tasks {
		g.Go(func() error {
			t := tasks[i]
			begin := time.Now()
			o := b.process(ctx, registry, t, opts.Format, cfg)
			outcomes[i] = o
			b.recordResult(ctx, run.ID, t.src, o, time.Since(begin))
			return nil
		})
	}
	g.Wait()

	report := &Report{RunID: run.ID, Outputs: make(map[string]string)}
	for i, o := range outcomes {
		switch o.status {
		case model.StatusSucceeded:
			report.Succeeded++
			report.Outputs[tasks[i].src] = o.dst
		case model.StatusCanceled:
			report.Canceled++
		default:
			report.Failures = append(report.Failures, Failure{Path: tasks[i].src, Err: o.err})
		}
	}

	run.Succeeded, run.Failed, run.Canceled = report.Succeeded, len(report.Failures), report.Canceled
	run.Status = model.RunFinished
	if ctx.Err() != nil {
		run.Status = model.RunCanceled
	}
	b.finishRun(ctx, run)

	b.logger.Info("batch finished",
		zap.Int64("run_id", run.ID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", len(report.Failures)),
		zap.Int("canceled", report.Canceled),
		zap.Duration("elapsed", time.Since(started)),
	)

	return report, nil
}

func (b *BatchService) process(ctx context.Context, registry *codec.Registry, t task, format string, cfg *frame.Config) outcome {
	if t.planErr != nil {
		b.logger.Warn("image failed", zap.String("path", t.src), zap.Error(t.planErr))
		return outcome{status: model.StatusFailed, err: t.planErr}
	}

	photo, err := b.frames.FrameFile(ctx, t.src, cfg)
	if err == nil {
		// Last chance to drop the image before anything reaches the disk.
		err = ctx.Err()
	}
	if err == nil {
		err = registry.Write(format, photo.Image, photo.Exif, t.dst)
	}

	switch {
	case err == nil:
		return outcome{status: model.StatusSucceeded, dst: t.dst}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcome{status: model.StatusCanceled}
	default:
		b.logger.Warn("image failed", zap.String("path", t.src), zap.Error(err))
		return outcome{status: model.StatusFailed, err: err}
	}
}

// The ledger is best effort: a broken database is logged, never allowed to
// fail the images themselves. Writes use context.WithoutCancel so a
// canceled run is still recorded as such.

func (b *BatchService) recordRun(ctx context.Context, run *model.Run) {
	if b.runs == nil {
		return
	}
	if err := b.runs.CreateRun(context.WithoutCancel(ctx), run); err != nil {
		b.logger.Warn("recording run", zap.Error(err))
	}
}

func (b *BatchService) recordResult(ctx context.Context, runID int64, src string, o outcome, elapsed time.Duration) {
	if b.runs == nil || runID == 0 {
		return
	}
	res := &model.ImageResult{
		RunID:      runID,
		SourcePath: src,
		Status:     o.status,
		DurationMs: elapsed.Milliseconds(),
	}
	if o.dst != "" {
		res.OutputPath = &o.dst
	}
	if o.err != nil {
		msg := o.err.Error()
		res.ErrorMessage = &msg
	}
	if err := b.runs.RecordResult(context.WithoutCancel(ctx), res); err != nil {
		b.logger.Warn("recording result", zap.String("path", src), zap.Error(err))
	}
}

func (b *BatchService) finishRun(ctx context.Context, run *model.Run) {
	if b.runs == nil || run.ID == 0 {
		return
	}
	if err := b.runs.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		b.logger.Warn("finishing run", zap.Int64("run_id", run.ID), zap.Error(err))
	}
}
