// Package jobs holds the background task definitions and handlers consumed
// by the worker binary.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGLReportWarmup precomputes a general ledger report into the cache.
	TaskGLReportWarmup = "gl:report_warmup"
)

// GLReportWarmupPayload carries the parameters of the report to precompute.
type GLReportWarmupPayload struct {
	Params ledger.ReportParams `json:"params"`
}

// NewGLReportWarmupTask constructs the warmup task.
func NewGLReportWarmupTask(payload GLReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLReportWarmup, data), nil
}

// GLReportWarmer runs reports ahead of interactive use and stores them in the
// report cache so the first request of the day is served warm.
type GLReportWarmer struct {
	Service *ledger.Service
	Cache   *ledger.Cache
	Logger  *slog.Logger
}

// ProcessTask handles one warmup task.
func (w *GLReportWarmer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload GLReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := w.Cache.Fetch(ctx, payload.Params, func(ctx context.Context) (*ledger.Report, error) {
		return w.Service.BuildReport(ctx, payload.Params)
	})
	if err != nil {
		if w.Logger != nil {
			w.Logger.Error("gl report warmup failed", slog.Any("error", err))
		}
		return err
	}
	if w.Logger != nil {
		w.Logger.Info("gl report warmed",
			slog.Time("date_from", payload.Params.DateFrom),
			slog.Time("date_to", payload.Params.DateTo),
		)
	}
	return nil
}
