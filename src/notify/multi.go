package notify

import (
	"context"
	"errors"

	"battery-observer/src/interfaces"
)

// Multi fans one alert out to several notifiers. Every notifier is tried;
// failures are joined.
type Multi []interfaces.INotifier

func (m Multi) Name() string {
	return "multi"
}

// -----------------------------------------------------------------------------

func (m Multi) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
