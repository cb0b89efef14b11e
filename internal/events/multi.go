package events

import (
	"context"
	"errors"
	"fmt"
)

// Multi fans one publish out to every publisher. A failing publisher does
// not stop the others; all errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, name string, payload any) error {
	var errs []error
	for i, p := range m {
		if err := p.Publish(ctx, name, payload); err != nil {
			errs = append(errs, fmt.Errorf("publisher %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
