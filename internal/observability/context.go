package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// DetachForWorker creates a new context.Background() that carries the span
// context from the originating HTTP request. The worker's job-processing
// goroutine outlives the request that admitted the job, so it must not
// inherit the request's cancellation — but its spans should still nest
// under the original trace for end-to-end visibility.
func DetachForWorker(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return context.Background()
	}
	return trace.ContextWithRemoteSpanContext(context.Background(), sc)
}
