/*
Package tracing provides lightweight request tracing.

Every HTTP request gets a span, and every service tool executed for it gets a
child span. The trace ID is taken from the inbound X-Trace-ID header when it is
a safe identifier, otherwise a UUID is minted. Span IDs are prefixed ULIDs.
Finished spans are logged through zap by a single collector goroutine: errors
at error level, spans slower than the threshold at info, the rest at debug.
Close drains and stops the collector.

# Usage

	tracer := tracing.New("filedeck", logger, tracing.WithSlowThreshold(time.Second))
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	err := tracer.Trace(ctx, "sync", func(ctx context.Context, span *tracing.Span) error {
		span.SetTag("root", rootID)
		return mirror(ctx)
	})
*/
package tracing
