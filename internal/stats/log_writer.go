package stats

import (
	"context"

	"go.uber.org/zap"
)

// LogWriter writes the run summary as a structured log line.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter returns a Writer backed by logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogWriter{logger: logger}
}

// WriteStats implements Writer.
func (w *LogWriter) WriteStats(_ context.Context, s Summary) error {
	w.logger.Info("crawl finished",
		zap.String("run_id", s.RunID),
		zap.Int64("duration_ms", s.DurationMs),
		zap.Int64("requests", s.Requests),
		zap.Int64("errors", s.Errors),
		zap.Int64("retries", s.Retries),
		zap.Int64("jobs_scraped", s.JobsScraped),
		zap.Int64("listings_persisted", s.ListingsPersisted),
		zap.Int64("duplicates", s.Duplicates),
		zap.Int64("detail_failures", s.DetailFailures),
		zap.Any("pages", s.Pages),
	)
	return nil
}
