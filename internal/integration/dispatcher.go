package integration

import "context"

// Dispatcher delivers events to the journal-posting handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt Event) error
}

// SyncDispatcher runs the hooks in the caller's goroutine.
type SyncDispatcher struct {
	Hooks *Hooks
}

// Dispatch handles evt immediately.
func (d SyncDispatcher) Dispatch(ctx context.Context, evt Event) error {
	_, err := d.Hooks.Handle(ctx, evt)
	return err
}
