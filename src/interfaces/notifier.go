package interfaces

import "context"

// -----------------------------------------------------------------------------
// INotifier delivers alert messages. Callers log failures and never retry.
// -----------------------------------------------------------------------------

type INotifier interface {
	Name() string
	Notify(ctx context.Context, message string) error
}
