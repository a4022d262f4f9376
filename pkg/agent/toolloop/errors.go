package toolloop

import "errors"

var (
	// ErrMaxIterations indicates the model kept calling tools until the iteration
	// cap without giving a final answer or a terminal signal.
	ErrMaxIterations = errors.New("maximum tool iterations exceeded")

	// ErrGracefulShutdown indicates the loop was interrupted by context cancellation.
	ErrGracefulShutdown = errors.New("graceful shutdown requested")
)
