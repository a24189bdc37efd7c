package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrInvalidConfig    = fmt.Errorf("invalid configuration")
	ErrEmptyPayload     = fmt.Errorf("empty payload")
	ErrMissingField     = fmt.Errorf("missing required field")
	ErrPoolExhausted    = fmt.Errorf("connection pool exhausted")
	ErrPoolClosed       = fmt.Errorf("connection pool closed")
	ErrPersistence      = fmt.Errorf("persistence failed")
	ErrRelayUnreachable = fmt.Errorf("relay server unreachable")
	ErrShutdownTimeout  = fmt.Errorf("grace period exceeded")
)
