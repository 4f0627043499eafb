package interfaces

import (
	"context"
	"sync"

	"battery-observer/src/models"
)

// StateChangeHandler receives every state_changed event the source decodes.
// It is called on the source's read goroutine, one event at a time.
type StateChangeHandler func(change models.MStateChange)

// -----------------------------------------------------------------------------
// IEventSource is a long-lived subscription to the hub's event stream.
// -----------------------------------------------------------------------------

type IEventSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// Run connects, subscribes and forwards events to handler, reconnecting
	// after every failure. It returns only when ctx is cancelled.
	Run(ctx context.Context, handler StateChangeHandler) error

	// -----------------------------------------------------------------------------

	// Start runs Run on its own goroutine
	// ctx: controls the lifecycle (cancellation stops the source)
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, handler StateChangeHandler, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// State reports the current connection state
	State() models.ConnectionState
}
