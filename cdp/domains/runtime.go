package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpr "github.com/chromedp/cdproto/runtime"
)

// Runtime exposes the protocol Runtime domain actions reactview uses.
type Runtime interface {
	Enable(ctx context.Context) error
	AddBinding(ctx context.Context, name string) error
	Evaluate(ctx context.Context, expression string) error
}

var _ Runtime = &runtime{}

type runtime struct {
	exec cdp.Executor
}

// NewRuntime returns a new Runtime domain wrapper.
func NewRuntime(exec cdp.Executor) Runtime {
	return &runtime{exec}
}

func (r *runtime) Enable(ctx context.Context) error {
	if err := cdpr.Enable().Do(cdp.WithExecutor(ctx, r.exec)); err != nil {
		return fmt.Errorf("enabling runtime domain: %w", err)
	}
	return nil
}

// AddBinding installs a page-global function with the given name whose calls
// are delivered back as bindingCalled events.
func (r *runtime) AddBinding(ctx context.Context, name string) error {
	if err := cdpr.AddBinding(name).Do(cdp.WithExecutor(ctx, r.exec)); err != nil {
		return fmt.Errorf("adding binding %q: %w", name, err)
	}
	return nil
}

// Evaluate runs an expression in the page and discards its value. A thrown
// exception is returned as an error.
func (r *runtime) Evaluate(ctx context.Context, expression string) error {
	_, exc, err := cdpr.Evaluate(expression).Do(cdp.WithExecutor(ctx, r.exec))
	if err != nil {
		return fmt.Errorf("evaluating expression: %w", err)
	}
	if exc != nil {
		return fmt.Errorf("evaluating expression: %w", exc)
	}
	return nil
}
