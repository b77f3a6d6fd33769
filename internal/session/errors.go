package session

import "errors"

// ErrShuttingDown is returned once Shutdown has started.
var ErrShuttingDown = errors.New("orchestrator is shutting down")
