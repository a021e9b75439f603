// Package common implements the embeddable web-rendering control: resource
// interception, response adaptation, and event forwarding to the host
// application. The browser engine itself is external; it is driven through
// the cdp package.
package common

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto"
	cdpf "github.com/chromedp/cdproto/fetch"
	cdpi "github.com/chromedp/cdproto/input"
	cdpn "github.com/chromedp/cdproto/network"
	cdpp "github.com/chromedp/cdproto/page"
	cdpr "github.com/chromedp/cdproto/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/viewfabric/reactview/cdp"
	"github.com/viewfabric/reactview/log"
	"github.com/viewfabric/reactview/metrics"
	"github.com/viewfabric/reactview/otel"
	"github.com/viewfabric/reactview/storage"
)

// Ensure WebView implements the EventEmitter interface.
var _ EventEmitter = &WebView{}

// BindingName is the page-global function through which the front-end
// reaches registered native objects.
const BindingName = "__reactviewHost"

// EmbeddedScheme is the URL scheme resources inside the compiled-in bundle
// are served from.
const EmbeddedScheme = "embedded"

const (
	WebViewStateOpen int64 = iota
	WebViewStateClosing
	WebViewStateClosed
)

// ResourceRequestHandlerFunc produces a ResourceHandler for an intercepted
// request. Returning nil lets the request pass through to the network.
type ResourceRequestHandlerFunc func(req *ResourceRequest) *ResourceHandler

// WebView is an embeddable web-rendering control. It attaches to a page
// target the external engine exposes and layers resource interception and
// host events on top.
type WebView struct {
	BaseEventEmitter

	ctx      context.Context
	cancelFn context.CancelFunc

	state int64

	client *cdp.Client
	opts   *Options
	logger *log.Logger

	mtr   *metrics.Metrics
	dumps *storage.DumpPersister

	schemesMu sync.RWMutex
	schemes   map[string]ResourceRequestHandlerFunc

	bindingMu sync.RWMutex
	bindingFn func(payload string)

	// The engine reports loading failures by request ID only, so URLs are
	// remembered from requestWillBeSent until the load settles.
	urlsMu      sync.Mutex
	requestURLs map[cdpn.RequestID]string

	evCancelFn context.CancelFunc
}

// NewWebView attaches a new control to the page target at wsURL.
func NewWebView(ctx context.Context, wsURL string, opts *Options, logger *log.Logger) (*WebView, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := &WebView{
		BaseEventEmitter: NewBaseEventEmitter(ctx),
		ctx:              ctx,
		cancelFn:         cancel,
		state:            WebViewStateOpen,
		client:           cdp.NewClient(ctx, logger),
		opts:             opts,
		logger:           logger,
		schemes:          make(map[string]ResourceRequestHandlerFunc),
		requestURLs:      make(map[cdpn.RequestID]string),
	}
	if opts.EnableDebugMode && opts.DumpDir != "" {
		w.dumps = storage.NewDumpPersister(opts.DumpDir)
	}
	if err := w.connect(wsURL); err != nil {
		cancel()
		return nil, err
	}
	return w, nil
}

func (w *WebView) connect(wsURL string) error {
	w.logger.Debugf("WebView:connect", "wsURL:%q", wsURL)
	if err := w.client.Connect(wsURL); err != nil {
		return fmt.Errorf("connecting to engine DevTools URL: %w", err)
	}

	// Subscribe before any Enable: the engine can emit events the moment a
	// domain is on, and events with no subscriber are dropped.
	w.initEvents()

	if err := w.client.Page.Enable(w.ctx); err != nil {
		return err
	}
	if err := w.client.Runtime.Enable(w.ctx); err != nil {
		return err
	}
	if err := w.client.Network.Enable(w.ctx); err != nil {
		return err
	}
	if err := w.client.Runtime.AddBinding(w.ctx, BindingName); err != nil {
		return err
	}
	if err := w.client.Input.SetInterceptDrags(w.ctx, true); err != nil {
		// Drag interception is best effort; older engines lack it.
		w.logger.Warnf("WebView:connect", "drag interception unavailable: %v", err)
	}
	if css := w.opts.DefaultStyleSheet; css != "" {
		if _, err := w.client.Page.AddScriptToEvaluateOnNewDocument(w.ctx, defaultStyleScript(css)); err != nil {
			return fmt.Errorf("installing default style sheet: %w", err)
		}
	}

	return nil
}

func (w *WebView) initEvents() {
	var cancelCtx context.Context
	cancelCtx, w.evCancelFn = context.WithCancel(w.ctx)

	evtCh, evtCancel := w.client.Subscribe(
		cdproto.EventFetchRequestPaused,
		cdproto.EventNetworkRequestWillBeSent,
		cdproto.EventNetworkLoadingFailed,
		cdproto.EventNetworkLoadingFinished,
		cdproto.EventRuntimeBindingCalled,
		cdproto.EventRuntimeExceptionThrown,
		cdproto.EventInputDragIntercepted,
		cdproto.EventPageLoadEventFired,
	)

	go func() {
		defer evtCancel()
		for {
			select {
			case evt := <-evtCh:
				w.dispatchEvent(evt)
			case <-cancelCtx.Done():
				return
			}
		}
	}()
}

func (w *WebView) dispatchEvent(evt *cdp.Event) {
	switch data := evt.Data.(type) {
	case *cdpf.EventRequestPaused:
		// Handled on its own goroutine: completing a request issues
		// protocol commands and host handlers may take their time.
		go w.onRequestPaused(data)
	case *cdpn.EventRequestWillBeSent:
		w.rememberRequestURL(data)
	case *cdpn.EventLoadingFailed:
		w.onLoadingFailed(data)
	case *cdpn.EventLoadingFinished:
		w.forgetRequestURL(data.RequestID)
	case *cdpr.EventBindingCalled:
		w.onBindingCalled(data)
	case *cdpr.EventExceptionThrown:
		if data.ExceptionDetails != nil {
			w.EmitUnhandledException(data.ExceptionDetails)
		}
	case *cdpi.EventDragIntercepted:
		w.onDragIntercepted(data)
	case *cdpp.EventLoadEventFired:
		w.emit(EventWebViewReady, nil)
	}
}

// HandleScheme registers a resource handler for a URL scheme and turns on
// engine-side interception for it. Registering a scheme again replaces the
// previous handler.
func (w *WebView) HandleScheme(scheme string, fn ResourceRequestHandlerFunc) error {
	scheme = strings.ToLower(scheme)

	w.schemesMu.Lock()
	w.schemes[scheme] = fn
	patterns := make([]string, 0, len(w.schemes))
	for s := range w.schemes {
		patterns = append(patterns, s+"://*")
	}
	w.schemesMu.Unlock()

	if err := w.client.Fetch.Enable(w.ctx, patterns); err != nil {
		return fmt.Errorf("enabling interception for scheme %q: %w", scheme, err)
	}
	return nil
}

// UseEmbeddedBundle serves the embedded:// scheme from fsys, typically an
// embed.FS holding the compiled front-end bundle.
func (w *WebView) UseEmbeddedBundle(fsys fs.FS) error {
	src := storage.NewEmbeddedSource(fsys)
	return w.HandleScheme(EmbeddedScheme, func(req *ResourceRequest) *ResourceHandler {
		data, mimeType, err := src.Resolve(req.URL)
		if err != nil {
			w.logger.Warnf("WebView:embedded", "resolving %q: %v", req.URL, err)
			return nil
		}
		h := NewResourceHandler()
		h.SetResponse(strings.NewReader(string(data)), mimeType, false)
		return h
	})
}

// UseMetrics publishes the control's metrics through m.
func (w *WebView) UseMetrics(m *metrics.Metrics) {
	w.mtr = m
}

// OnHostCall registers the function that receives front-end calls made
// through the page binding. Used by the bridge.
func (w *WebView) OnHostCall(fn func(payload string)) {
	w.bindingMu.Lock()
	defer w.bindingMu.Unlock()
	w.bindingFn = fn
}

func (w *WebView) onRequestPaused(ev *cdpf.EventRequestPaused) {
	reqURL := ev.Request.URL
	u, err := url.Parse(reqURL)
	if err != nil {
		w.logger.Warnf("WebView:onRequestPaused", "unparseable URL %q: %v", reqURL, err)
		w.continueRequest(ev.RequestID)
		return
	}
	scheme := strings.ToLower(u.Scheme)

	if w.mtr != nil {
		w.mtr.ResourceRequests.WithLabelValues(scheme).Inc()
	}

	req := &ResourceRequest{
		ID:           string(ev.RequestID),
		URL:          reqURL,
		Method:       ev.Request.Method,
		ResourceType: string(ev.ResourceType),
	}

	w.schemesMu.RLock()
	fn, ok := w.schemes[scheme]
	w.schemesMu.RUnlock()

	if !ok || fn == nil {
		w.emit(EventWebViewExternalResourceRequested, req)
		w.continueRequest(ev.RequestID)
		return
	}

	if scheme == EmbeddedScheme {
		w.emit(EventWebViewEmbeddedResourceRequested, req)
	} else {
		w.emit(EventWebViewCustomResourceRequested, req)
	}

	h := fn(req)
	if h == nil {
		w.continueRequest(ev.RequestID)
		return
	}

	decision, err := h.ProcessRequest(w.completionFor(ev.RequestID, reqURL))
	if err != nil {
		w.logger.Errorf("WebView:onRequestPaused", "completing %q: %v", reqURL, err)
		return
	}
	if decision == CompleteLater {
		w.logger.Debugf("WebView:onRequestPaused", "suspended %q until the host continues it", reqURL)
	}
}

// completionFor builds the single-use completion handle a ResourceHandler
// invokes to resume the engine's handling of a request.
func (w *WebView) completionFor(id cdpf.RequestID, reqURL string) CompletionFunc {
	return func(resp *Response) error {
		_, span := otel.Trace(w.ctx, "resource_complete",
			trace.WithAttributes(attribute.String("url", reqURL)))
		defer span.End()

		if resp.RedirectURL != "" {
			headers := map[string]string{"Location": resp.RedirectURL}
			return w.client.Fetch.Fulfill(w.ctx, id, 302, headers, nil)
		}

		body, err := resp.Bytes()
		if err != nil {
			_ = w.client.Fetch.Fail(w.ctx, id)
			return err
		}
		headers := make(map[string]string, 1)
		if resp.ContentType != "" {
			headers["Content-Type"] = resp.ContentType
		}
		return w.client.Fetch.Fulfill(w.ctx, id, 200, headers, body)
	}
}

func (w *WebView) continueRequest(id cdpf.RequestID) {
	if err := w.client.Fetch.Continue(w.ctx, id); err != nil {
		w.logger.Warnf("WebView:continueRequest", "request %s: %v", id, err)
	}
}

func (w *WebView) rememberRequestURL(ev *cdpn.EventRequestWillBeSent) {
	if ev.Request == nil {
		return
	}
	w.urlsMu.Lock()
	w.requestURLs[ev.RequestID] = ev.Request.URL
	w.urlsMu.Unlock()
}

func (w *WebView) forgetRequestURL(id cdpn.RequestID) {
	w.urlsMu.Lock()
	delete(w.requestURLs, id)
	w.urlsMu.Unlock()
}

func (w *WebView) takeRequestURL(id cdpn.RequestID) string {
	w.urlsMu.Lock()
	defer w.urlsMu.Unlock()
	u := w.requestURLs[id]
	delete(w.requestURLs, id)
	return u
}

// onLoadingFailed forwards engine-side load failures to the host. They are
// not swallowed: the host always gets the event, and debug mode also
// renders the failure inline and dumps it to disk.
func (w *WebView) onLoadingFailed(ev *cdpn.EventLoadingFailed) {
	failure := &ResourceLoadFailure{
		URL:       w.takeRequestURL(ev.RequestID),
		ErrorText: ev.ErrorText,
		Canceled:  ev.Canceled,
	}
	if w.mtr != nil {
		w.mtr.ResourceLoadFailures.Inc()
	}
	w.emit(EventWebViewResourceLoadFailed, failure)

	if w.opts.EnableDebugMode && !failure.Canceled {
		go w.renderLoadFailure(failure)
	}
}

func (w *WebView) renderLoadFailure(failure *ResourceLoadFailure) {
	if err := w.client.Runtime.Evaluate(w.ctx, errorOverlayScript(failure)); err != nil {
		w.logger.Warnf("WebView:renderLoadFailure", "injecting overlay: %v", err)
	}
	if w.dumps == nil {
		return
	}
	if _, err := w.dumps.DumpFailure(w.ctx, failure.URL, failure.ErrorText); err != nil {
		w.logger.Warnf("WebView:renderLoadFailure", "%v", err)
	}
}

func (w *WebView) onBindingCalled(ev *cdpr.EventBindingCalled) {
	if ev.Name != BindingName {
		return
	}
	w.bindingMu.RLock()
	fn := w.bindingFn
	w.bindingMu.RUnlock()
	if fn == nil {
		w.logger.Warnf("WebView:onBindingCalled", "no host-call handler registered")
		return
	}
	go fn(ev.Payload)
}

func (w *WebView) onDragIntercepted(ev *cdpi.EventDragIntercepted) {
	if ev.Data == nil {
		return
	}
	if len(ev.Data.Files) > 0 {
		w.emit(EventWebViewFileDrag, &DragData{Files: ev.Data.Files})
		return
	}
	for _, item := range ev.Data.Items {
		if item.MimeType == "text/plain" && item.Data != "" {
			w.emit(EventWebViewTextDrag, &DragData{Text: item.Data})
			return
		}
	}
}

// EmitUnhandledException surfaces an asynchronous failure to the host.
func (w *WebView) EmitUnhandledException(err error) {
	w.logger.Errorf("WebView", "unhandled async error: %v", err)
	w.emit(EventWebViewUnhandledException, err)
}

// Navigate loads url in the view.
func (w *WebView) Navigate(targetURL string) error {
	_, err := w.client.Page.Navigate(w.ctx, targetURL, "")
	return err
}

// Reload reloads the current document, bypassing the engine cache.
func (w *WebView) Reload() error {
	return w.client.Page.Reload(w.ctx)
}

// Evaluate runs an expression in the page.
func (w *WebView) Evaluate(expression string) error {
	return w.client.Runtime.Evaluate(w.ctx, expression)
}

// AddBootstrapScript installs source to run in every new document before
// any page script.
func (w *WebView) AddBootstrapScript(source string) error {
	_, err := w.client.Page.AddScriptToEvaluateOnNewDocument(w.ctx, source)
	return err
}

// Options returns the options the view was created with.
func (w *WebView) Options() *Options {
	return w.opts
}

// Close detaches from the engine and releases the control's resources.
// Teardown is explicit: the owning context must call it.
func (w *WebView) Close() {
	w.logger.Debugf("WebView:Close", "")
	if !atomic.CompareAndSwapInt64(&w.state, WebViewStateOpen, WebViewStateClosing) {
		// Already closing or closed.
		return
	}

	w.evCancelFn()
	w.client.Disconnect()
	w.cancelFn()

	atomic.StoreInt64(&w.state, WebViewStateClosed)
}
