package pipeline

import (
	"context"
	"time"

	"github.com/kosarica/catalog-service/internal/taskqueue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// fetchPhase downloads the archive of a task.
func (e *Engine) fetchPhase(ctx context.Context, task *taskqueue.Task) ([]byte, error) {
	var content []byte
	start := time.Now()
	err := e.phase(ctx, "fetch", func(ctx context.Context) error {
		data, err := e.Fetcher.Fetch(ctx, task.URL)
		if err != nil {
			return err
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("archive.size", len(data)))
		content = data
		return nil
	})
	if e.Metrics != nil {
		e.Metrics.RecordPulling(time.Since(start))
	}
	return content, err
}
