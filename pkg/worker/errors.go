package worker

import (
	stderrors "errors"

	"github.com/c360/alusync/errors"
)

// Lifecycle and queue errors are the shared sentinels, so errors.Is matches
// either name.
var (
	ErrPoolNotStarted     = errors.ErrNotStarted
	ErrPoolAlreadyStarted = errors.ErrAlreadyStarted
	ErrPoolStopped        = errors.ErrClosed
	ErrQueueFull          = errors.ErrSendQueueFull

	ErrNilProcessor = stderrors.New("worker: nil processor")
	ErrStopTimeout  = stderrors.New("worker: workers still running after stop timeout")
)
