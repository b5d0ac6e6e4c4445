// Package resilience provides the circuit breaker that guards FileDeck's
// outbound calls: the cloud object store and URL imports.
//
// A breaker starts closed. Once ReadyToTrip accepts the counts it opens and
// rejects calls with ErrCircuitOpen until Timeout passes, then lets
// MaxRequests probe calls through in the half-open state. Errors for which
// IsSuccessful returns true (a missing object, say) and context cancellations
// never count as failures.
//
//	breaker := resilience.New("cloud", resilience.Settings{Timeout: 30 * time.Second})
//	err := breaker.Do(ctx, func(ctx context.Context) error {
//		return store.Put(ctx, key, body, size, meta)
//	})
package resilience
