package common

const (
	// EventWebViewReady is emitted after each document finishes loading.
	EventWebViewReady string = "ready"

	// EventWebViewUnhandledException is emitted when an asynchronous
	// operation (bridge dispatch, dev-server message handling) fails
	// outside any host call stack.
	EventWebViewUnhandledException string = "unhandledexception"

	// EventWebViewResourceLoadFailed is emitted when the engine reports a
	// failed resource load.
	EventWebViewResourceLoadFailed string = "resourceloadfailed"

	// EventWebViewEmbeddedResourceRequested is emitted when a resource is
	// requested from the embedded bundle.
	EventWebViewEmbeddedResourceRequested string = "embeddedresourcerequested"

	// EventWebViewCustomResourceRequested is emitted when a resource is
	// requested on a host-registered scheme.
	EventWebViewCustomResourceRequested string = "customresourcerequested"

	// EventWebViewExternalResourceRequested is emitted when a resource is
	// requested that no handler claims and that passes through to the
	// network.
	EventWebViewExternalResourceRequested string = "externalresourcerequested"

	// EventWebViewFileDrag is emitted when files are dragged over the view.
	EventWebViewFileDrag string = "filedrag"

	// EventWebViewTextDrag is emitted when text is dragged over the view.
	EventWebViewTextDrag string = "textdrag"
)

// ResourceRequest describes one intercepted resource load.
type ResourceRequest struct {
	ID           string
	URL          string
	Method       string
	ResourceType string
}

// ResourceLoadFailure describes a resource load the engine gave up on.
type ResourceLoadFailure struct {
	URL       string
	ErrorText string
	Canceled  bool
}

// DragData carries the payload of a file or text drag.
type DragData struct {
	Files []string
	Text  string
}
