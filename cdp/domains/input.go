package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpi "github.com/chromedp/cdproto/input"
)

// Input exposes the protocol Input domain actions reactview uses.
type Input interface {
	SetInterceptDrags(ctx context.Context, enabled bool) error
}

var _ Input = &input{}

type input struct {
	exec cdp.Executor
}

// NewInput returns a new Input domain wrapper.
func NewInput(exec cdp.Executor) Input {
	return &input{exec}
}

// SetInterceptDrags makes the engine report drag operations as
// dragIntercepted events instead of handling them internally, so the host
// application can react to file and text drags.
func (i *input) SetInterceptDrags(ctx context.Context, enabled bool) error {
	if err := cdpi.SetInterceptDrags(enabled).Do(cdp.WithExecutor(ctx, i.exec)); err != nil {
		return fmt.Errorf("setting drag interception: %w", err)
	}
	return nil
}
