package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpp "github.com/chromedp/cdproto/page"
)

// Page exposes the protocol Page domain actions reactview uses.
type Page interface {
	Enable(ctx context.Context) error
	Navigate(ctx context.Context, url, referrer string) (docID string, err error)
	Reload(ctx context.Context) error
	AddScriptToEvaluateOnNewDocument(ctx context.Context, source string) (id string, err error)
	CaptureScreenshot(ctx context.Context, format string, quality int64) ([]byte, error)
}

var _ Page = &page{}

type page struct {
	exec cdp.Executor
}

// NewPage returns a new Page domain wrapper.
func NewPage(exec cdp.Executor) Page {
	return &page{exec}
}

func (p *page) Enable(ctx context.Context) error {
	if err := cdpp.Enable().Do(cdp.WithExecutor(ctx, p.exec)); err != nil {
		return fmt.Errorf("enabling page domain: %w", err)
	}
	return nil
}

func (p *page) Navigate(ctx context.Context, url, referrer string) (string, error) {
	action := cdpp.Navigate(url).WithReferrer(referrer)

	_, documentID, errorText, err := action.Do(cdp.WithExecutor(ctx, p.exec))
	if err != nil {
		err = fmt.Errorf("%s at %q: %w", errorText, url, err)
	}

	return documentID.String(), err
}

func (p *page) Reload(ctx context.Context) error {
	if err := cdpp.Reload().WithIgnoreCache(true).Do(cdp.WithExecutor(ctx, p.exec)); err != nil {
		return fmt.Errorf("reloading page: %w", err)
	}
	return nil
}

func (p *page) AddScriptToEvaluateOnNewDocument(ctx context.Context, source string) (string, error) {
	id, err := cdpp.AddScriptToEvaluateOnNewDocument(source).Do(cdp.WithExecutor(ctx, p.exec))
	if err != nil {
		return "", fmt.Errorf("adding bootstrap script: %w", err)
	}
	return string(id), nil
}

func (p *page) CaptureScreenshot(ctx context.Context, format string, quality int64) ([]byte, error) {
	action := cdpp.CaptureScreenshot().WithFormat(cdpp.CaptureScreenshotFormat(format))
	if format == "jpeg" {
		action = action.WithQuality(quality)
	}
	buf, err := action.Do(cdp.WithExecutor(ctx, p.exec))
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}
