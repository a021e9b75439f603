// Package api holds the public interfaces of the embeddable web view.
package api

import (
	"context"

	"github.com/viewfabric/reactview/common"
)

// Ensure the concrete control stays compatible with the public surface.
var _ WebView = &common.WebView{}

// WebView is the public interface of an embeddable web-rendering control.
type WebView interface {
	common.EventEmitter

	HandleScheme(scheme string, fn common.ResourceRequestHandlerFunc) error
	Navigate(url string) error
	Reload() error
	Evaluate(expression string) error
	AddBootstrapScript(source string) error
	Options() *common.Options
	Close()
}

// ViewFactory constructs view instances of one type for the instance cache.
type ViewFactory interface {
	ID() string
	New(ctx context.Context) (View, error)
	Preload() bool
}

// View is a constructed view instance.
type View interface {
	Close()
}
