package common

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oxtoacart/bpool"
)

// Decision is the answer ProcessRequest gives the engine glue.
type Decision int

const (
	// CompleteNow means a response or redirect was already assigned and the
	// completion handle has been invoked before ProcessRequest returned.
	CompleteNow Decision = iota

	// CompleteLater means the engine's handling of the request is suspended
	// until the host calls Continue.
	CompleteLater
)

// Response is the finalized answer handed to the engine: either an
// in-memory body, an externally-owned stream, or a redirect target.
type Response struct {
	Body        []byte
	Stream      io.ReadCloser
	ContentType string
	RedirectURL string
}

// Bytes realizes the response payload, draining the stream when the payload
// is not already in memory.
func (r *Response) Bytes() ([]byte, error) {
	if r.Body != nil || r.Stream == nil {
		return r.Body, nil
	}
	b, err := io.ReadAll(r.Stream)
	if err != nil {
		return nil, fmt.Errorf("reading response stream: %w", err)
	}
	return b, nil
}

// CompletionFunc is the single-use completion handle the engine glue
// provides when a request is intercepted.
type CompletionFunc func(*Response) error

// ErrNoResponse is returned by Continue when the completion handle is still
// pending but neither a response nor a redirect has been assigned. That is
// invalid use: the engine would be resumed with nothing to serve.
var ErrNoResponse = errors.New("no response or redirect assigned")

// utf8Preamble is the byte-order mark prepended to text responses so that
// the consumer can auto-detect the encoding.
var utf8Preamble = []byte{0xEF, 0xBB, 0xBF}

// textBuffers amortizes allocations when encoding text payloads.
var textBuffers = bpool.NewBufferPool(32) //nolint:gochecknoglobals

// ResourceHandler bridges the engine's pull-based "is the response ready"
// model to a push model where the host supplies the response on its own
// schedule, synchronously or from a later scheduling turn.
//
// The completion handle is invoked exactly once, and only after a response
// or redirect has been assigned. When both are assigned, the response wins
// and the redirect is ignored.
type ResourceHandler struct {
	mu          sync.Mutex
	complete    CompletionFunc
	body        []byte
	stream      io.ReadCloser
	contentType string
	redirectURL string
	ownsStream  bool
}

// NewResourceHandler returns an empty handler the host fills in later.
func NewResourceHandler() *ResourceHandler {
	return &ResourceHandler{}
}

// NewTextResourceHandler returns a handler pre-loaded with a synchronous
// text response, so ProcessRequest completes immediately.
func NewTextResourceHandler(text string) *ResourceHandler {
	h := NewResourceHandler()
	h.SetResponseText(text)
	return h
}

// SetResponseText assigns a UTF-8 text payload with the byte-order preamble
// prepended. It replaces any previously assigned payload.
func (h *ResourceHandler) SetResponseText(text string) {
	buf := textBuffers.Get()
	buf.Write(utf8Preamble)
	buf.WriteString(text)
	body := make([]byte, buf.Len())
	copy(body, buf.Bytes())
	textBuffers.Put(buf)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseStreamLocked()
	h.body = body
	// The content type belongs to the replaced payload; let the new text
	// payload be sniffed instead.
	h.contentType = ""
}

// SetResponse assigns a byte-stream payload. When ownsStream is true the
// handler releases the stream on Close. It replaces any previously assigned
// payload; a replaced owned stream is released right away, since the
// handler would otherwise lose its only reference to it.
func (h *ResourceHandler) SetResponse(r io.Reader, contentType string, ownsStream bool) {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseStreamLocked()
	h.body = nil
	h.stream = rc
	h.contentType = contentType
	h.ownsStream = ownsStream
}

// RedirectTo assigns a redirect target. If a response payload is also
// assigned by the time the request completes, the payload wins.
func (h *ResourceHandler) RedirectTo(targetURL string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.redirectURL = targetURL
}

// ProcessRequest is invoked by the engine glue when a request begins. If a
// response or redirect is already assigned it finalizes the payload and
// invokes complete before returning CompleteNow. Otherwise it stores the
// handle and returns CompleteLater, suspending the engine's handling of
// this request without blocking any goroutine.
func (h *ResourceHandler) ProcessRequest(complete CompletionFunc) (Decision, error) {
	h.mu.Lock()
	if !h.readyLocked() {
		h.complete = complete
		h.mu.Unlock()
		return CompleteLater, nil
	}
	resp := h.finalizeLocked()
	h.mu.Unlock()

	return CompleteNow, complete(resp)
}

// Continue finalizes the response and invokes the stored completion handle.
// The handle is taken out before finalization so it is released exactly
// once even if completing fails. Calling Continue with no pending handle is
// a no-op, which tolerates requests that completed synchronously.
func (h *ResourceHandler) Continue() error {
	h.mu.Lock()
	if h.complete == nil {
		h.mu.Unlock()
		return nil
	}
	if !h.readyLocked() {
		h.mu.Unlock()
		return ErrNoResponse
	}
	complete := h.complete
	h.complete = nil
	resp := h.finalizeLocked()
	h.mu.Unlock()

	return complete(resp)
}

// Close releases an owned stream. Cleanup is unconditional: it runs the
// same way whether the request completed, was replaced, or was abandoned.
func (h *ResourceHandler) Close() error {
	h.mu.Lock()
	stream, owns := h.stream, h.ownsStream
	h.stream, h.ownsStream = nil, false
	h.mu.Unlock()

	if owns && stream != nil {
		if err := stream.Close(); err != nil {
			return fmt.Errorf("releasing owned response stream: %w", err)
		}
	}
	return nil
}

func (h *ResourceHandler) readyLocked() bool {
	return h.body != nil || h.stream != nil || h.redirectURL != ""
}

// finalizeLocked builds the Response the completion handle receives. A
// response payload wins over a redirect when both are present.
func (h *ResourceHandler) finalizeLocked() *Response {
	resp := &Response{ContentType: h.contentType}
	switch {
	case h.body != nil:
		resp.Body = h.body
	case h.stream != nil:
		resp.Stream = h.stream
	default:
		resp.RedirectURL = h.redirectURL
	}
	if resp.ContentType == "" && len(resp.Body) > 0 {
		resp.ContentType = mimetype.Detect(resp.Body).String()
	}
	return resp
}

func (h *ResourceHandler) releaseStreamLocked() {
	if h.ownsStream && h.stream != nil {
		_ = h.stream.Close()
	}
	h.stream = nil
	h.ownsStream = false
}
