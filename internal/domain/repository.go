package domain

import "context"

// Journal stores handled exceptions
type Journal interface {
	// Record stores one event. Implementations must not block the caller
	// for long since it runs on the call path.
	Record(ctx context.Context, event ExceptionEvent) error
}
