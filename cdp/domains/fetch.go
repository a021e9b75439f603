// Package domains wraps the DevTools-protocol domains reactview drives.
package domains

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpf "github.com/chromedp/cdproto/fetch"
	cdpn "github.com/chromedp/cdproto/network"
)

// Fetch exposes the protocol Fetch domain actions used for resource-request
// interception.
type Fetch interface {
	Enable(ctx context.Context, urlPatterns []string) error
	Fulfill(ctx context.Context, requestID cdpf.RequestID, statusCode int64, headers map[string]string, body []byte) error
	Continue(ctx context.Context, requestID cdpf.RequestID) error
	Fail(ctx context.Context, requestID cdpf.RequestID) error
}

var _ Fetch = &fetch{}

type fetch struct {
	exec cdp.Executor
}

// NewFetch returns a new Fetch domain wrapper.
func NewFetch(exec cdp.Executor) Fetch {
	return &fetch{exec}
}

// Enable turns on request interception for the given URL patterns, pausing
// matching requests at the request stage.
func (f *fetch) Enable(ctx context.Context, urlPatterns []string) error {
	patterns := make([]*cdpf.RequestPattern, 0, len(urlPatterns))
	for _, p := range urlPatterns {
		patterns = append(patterns, &cdpf.RequestPattern{
			URLPattern:   p,
			RequestStage: cdpf.RequestStageRequest,
		})
	}

	action := cdpf.Enable().WithPatterns(patterns)
	if err := action.Do(cdp.WithExecutor(ctx, f.exec)); err != nil {
		return fmt.Errorf("enabling fetch interception: %w", err)
	}
	return nil
}

// Fulfill answers a paused request with the given response.
func (f *fetch) Fulfill(
	ctx context.Context, requestID cdpf.RequestID, statusCode int64, headers map[string]string, body []byte,
) error {
	hs := make([]*cdpf.HeaderEntry, 0, len(headers))
	for name, value := range headers {
		hs = append(hs, &cdpf.HeaderEntry{Name: name, Value: value})
	}

	action := cdpf.FulfillRequest(requestID, statusCode).WithResponseHeaders(hs)
	if len(body) > 0 {
		action = action.WithBody(base64.StdEncoding.EncodeToString(body))
	}
	if err := action.Do(cdp.WithExecutor(ctx, f.exec)); err != nil {
		return fmt.Errorf("fulfilling request %s: %w", requestID, err)
	}
	return nil
}

// Continue releases a paused request unmodified.
func (f *fetch) Continue(ctx context.Context, requestID cdpf.RequestID) error {
	if err := cdpf.ContinueRequest(requestID).Do(cdp.WithExecutor(ctx, f.exec)); err != nil {
		return fmt.Errorf("continuing request %s: %w", requestID, err)
	}
	return nil
}

// Fail aborts a paused request.
func (f *fetch) Fail(ctx context.Context, requestID cdpf.RequestID) error {
	action := cdpf.FailRequest(requestID, cdpn.ErrorReasonFailed)
	if err := action.Do(cdp.WithExecutor(ctx, f.exec)); err != nil {
		return fmt.Errorf("failing request %s: %w", requestID, err)
	}
	return nil
}
