package view

import "context"

// FuncFactory adapts a construction function to the Factory interface.
type FuncFactory struct {
	// TypeID identifies the view type.
	TypeID string
	// Background allows instances to be built ahead of time.
	Background bool
	// NewFunc constructs an instance.
	NewFunc func(ctx context.Context) (View, error)
}

func (f FuncFactory) ID() string { return f.TypeID }

func (f FuncFactory) New(ctx context.Context) (View, error) { return f.NewFunc(ctx) }

func (f FuncFactory) Preload() bool { return f.Background }
