// Package exportworker builds survey-report workbooks in the background.
// Jobs are queued in the export_jobs table by the HTTP API; the worker claims
// them one at a time with FOR UPDATE SKIP LOCKED, so multiple instances can
// run against the same database.
package exportworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"prop_survey/core-go/internal/filestore"
	"prop_survey/core-go/internal/metrics"
	"prop_survey/core-go/internal/sqlcgen"
	"prop_survey/core-go/internal/xlsio"
)

// Queries is the minimal DB interface the export worker needs.
// *sqlcgen.Queries satisfies this.
type Queries interface {
	ClaimNextExportJob(ctx context.Context) (sqlcgen.ExportJob, error)
	UpdateExportJob(ctx context.Context, arg sqlcgen.UpdateExportJobParams) (sqlcgen.ExportJob, error)
	ListExportRows(ctx context.Context, arg sqlcgen.ListExportRowsParams) ([]sqlcgen.ExportRow, error)
}

type Worker struct {
	log          zerolog.Logger
	q            Queries
	store        *filestore.Store
	pollInterval time.Duration
	maxRuntime   time.Duration
	maxRows      int
	metrics      *metrics.Metrics
}

type Options struct {
	PollInterval time.Duration
	MaxRuntime   time.Duration
	MaxRows      int
}

func New(log zerolog.Logger, q Queries, store *filestore.Store, opts Options, m *metrics.Metrics) *Worker {
	pi := opts.PollInterval
	if pi <= 0 {
		pi = 2 * time.Second
	}
	mr := opts.MaxRuntime
	if mr <= 0 {
		mr = 2 * time.Minute
	}
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = 50000
	}

	return &Worker{
		log:          log,
		q:            q,
		store:        store,
		pollInterval: pi,
		maxRuntime:   mr,
		maxRows:      maxRows,
		metrics:      m,
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.q == nil {
		return
	}

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		for {
			processed, err := w.runOnce(ctx)
			if err != nil {
				consecutiveFailures++
				break
			}
			consecutiveFailures = 0
			if !processed {
				break
			}
		}

		timer.Reset(backoffDuration(w.pollInterval, consecutiveFailures))
	}
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 2 * time.Second
	}
	if failures <= 0 {
		return base
	}

	// Exponential-ish backoff: base * 2^failures, capped.
	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func (w *Worker) runOnce(ctx context.Context) (bool, error) {
	job, err := w.q.ClaimNextExportJob(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		w.log.Error().Err(err).Msg("export worker failed to claim next job")
		return false, err
	}

	start := time.Now()
	defer func() {
		if w.metrics != nil {
			w.metrics.ObserveExportJobDuration(time.Since(start))
		}
	}()

	w.log.Info().Str("job_id", job.ID).Msg("export job claimed")

	execCtx, cancel := context.WithTimeout(ctx, w.maxRuntime)
	defer cancel()

	arg := sqlcgen.ListExportRowsParams{Limit: int32(w.maxRows)}
	if job.Filter != nil {
		if v, ok := job.Filter["batch_id"].(string); ok && v != "" {
			arg.BatchID = &v
		}
		if v, ok := job.Filter["status"].(string); ok && v != "" {
			arg.Status = &v
		}
	}

	rows, err := w.q.ListExportRows(execCtx, arg)
	if err != nil {
		return true, w.failJob(execCtx, job.ID, fmt.Errorf("list export rows: %w", err))
	}

	data, err := xlsio.BuildSurveyReport(rows)
	if err != nil {
		return true, w.failJob(execCtx, job.ID, fmt.Errorf("build workbook: %w", err))
	}

	if w.store == nil {
		return true, w.failJob(execCtx, job.ID, errors.New("file store not configured"))
	}
	url, err := w.store.SaveExport(execCtx, job.ID, data)
	if err != nil {
		return true, w.failJob(execCtx, job.ID, fmt.Errorf("store workbook: %w", err))
	}

	completedAt := time.Now()
	stats := map[string]any{
		"rows":       len(rows),
		"bytes":      len(data),
		"runtime_ms": int(time.Since(start).Milliseconds()),
	}
	if _, err := w.q.UpdateExportJob(execCtx, sqlcgen.UpdateExportJobParams{
		ID:          job.ID,
		Status:      "done",
		Stats:       stats,
		CompletedAt: &completedAt,
		ResultURL:   &url,
	}); err != nil {
		w.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark export job done")
		return true, err
	}

	if w.metrics != nil {
		w.metrics.IncExportJob("done")
	}
	w.log.Info().Str("job_id", job.ID).Int("rows", len(rows)).Msg("export job completed")
	return true, nil
}

func (w *Worker) failJob(ctx context.Context, jobID string, cause error) error {
	w.log.Error().Err(cause).Str("job_id", jobID).Msg("export job failed")

	// If the provided context is already canceled, still try to mark the job
	// failed with a short background context so it doesn't stay "running".
	if ctx == nil || ctx.Err() != nil {
		bg, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ctx = bg
	}

	completedAt := time.Now()
	msg := cause.Error()
	if _, err := w.q.UpdateExportJob(ctx, sqlcgen.UpdateExportJobParams{
		ID:          jobID,
		Status:      "failed",
		CompletedAt: &completedAt,
		LastError:   &msg,
	}); err != nil {
		w.log.Error().Err(err).Str("job_id", jobID).Msg("failed to mark export job failed")
		return err
	}

	if w.metrics != nil {
		w.metrics.IncExportJob("failed")
	}
	return cause
}
