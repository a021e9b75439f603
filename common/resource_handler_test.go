package common

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completionRecorder struct {
	calls     int
	responses []*Response
	err       error
}

func (c *completionRecorder) fn(resp *Response) error {
	c.calls++
	c.responses = append(c.responses, resp)
	return c.err
}

func TestResourceHandlerSynchronousText(t *testing.T) {
	t.Parallel()

	h := NewTextResourceHandler("hello")
	var rec completionRecorder

	d, err := h.ProcessRequest(rec.fn)
	require.NoError(t, err)
	assert.Equal(t, CompleteNow, d)
	require.Equal(t, 1, rec.calls)

	body := rec.responses[0].Body
	require.True(t, len(body) > 3)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, body[:3])
	assert.Equal(t, "hello", string(body[3:]))
}

func TestResourceHandlerAsynchronousCompletion(t *testing.T) {
	t.Parallel()

	h := NewResourceHandler()
	var rec completionRecorder

	d, err := h.ProcessRequest(rec.fn)
	require.NoError(t, err)
	assert.Equal(t, CompleteLater, d)
	assert.Zero(t, rec.calls)

	h.SetResponseText("later")
	require.NoError(t, h.Continue())
	assert.Equal(t, 1, rec.calls)
}

func TestResourceHandlerContinueInvokesHandleAtMostOnce(t *testing.T) {
	t.Parallel()

	h := NewResourceHandler()
	var rec completionRecorder

	_, err := h.ProcessRequest(rec.fn)
	require.NoError(t, err)

	h.SetResponseText("once")
	require.NoError(t, h.Continue())
	require.NoError(t, h.Continue())
	require.NoError(t, h.Continue())
	assert.Equal(t, 1, rec.calls)
}

func TestResourceHandlerContinueWithoutHandleIsNoop(t *testing.T) {
	t.Parallel()

	h := NewTextResourceHandler("sync")
	var rec completionRecorder

	_, err := h.ProcessRequest(rec.fn)
	require.NoError(t, err)
	require.Equal(t, 1, rec.calls)

	// The request already completed synchronously; a later Continue from
	// host code must be tolerated.
	require.NoError(t, h.Continue())
	assert.Equal(t, 1, rec.calls)
}

func TestResourceHandlerContinueBeforeResponseIsInvalid(t *testing.T) {
	t.Parallel()

	h := NewResourceHandler()
	var rec completionRecorder

	_, err := h.ProcessRequest(rec.fn)
	require.NoError(t, err)

	require.ErrorIs(t, h.Continue(), ErrNoResponse)
	assert.Zero(t, rec.calls)

	// The handle survives the invalid call and fires once the response
	// arrives.
	h.SetResponseText("eventually")
	require.NoError(t, h.Continue())
	assert.Equal(t, 1, rec.calls)
}

func TestResourceHandlerResponseWinsOverRedirect(t *testing.T) {
	t.Parallel()

	h := NewResourceHandler()
	var rec completionRecorder

	_, err := h.ProcessRequest(rec.fn)
	require.NoError(t, err)

	h.SetResponseText("hello")
	h.RedirectTo("http://x")
	require.NoError(t, h.Continue())

	require.Equal(t, 1, rec.calls)
	resp := rec.responses[0]
	assert.Empty(t, resp.RedirectURL)
	assert.Equal(t, "hello", string(resp.Body[3:]))
}

func TestResourceHandlerRedirect(t *testing.T) {
	t.Parallel()

	h := NewResourceHandler()
	var rec completionRecorder

	_, err := h.ProcessRequest(rec.fn)
	require.NoError(t, err)

	h.RedirectTo("https://example.com/next")
	require.NoError(t, h.Continue())

	require.Equal(t, 1, rec.calls)
	assert.Equal(t, "https://example.com/next", rec.responses[0].RedirectURL)
	assert.Nil(t, rec.responses[0].Body)
}

func TestResourceHandlerLastWriteWins(t *testing.T) {
	t.Parallel()

	h := NewResourceHandler()
	h.SetResponseText("first")
	h.SetResponse(strings.NewReader("second"), "text/plain", false)
	h.SetResponseText("third")

	var rec completionRecorder
	d, err := h.ProcessRequest(rec.fn)
	require.NoError(t, err)
	assert.Equal(t, CompleteNow, d)
	assert.Equal(t, "third", string(rec.responses[0].Body[3:]))
}

func TestResourceHandlerTextReplacesStreamContentType(t *testing.T) {
	t.Parallel()

	h := NewResourceHandler()
	h.SetResponse(strings.NewReader("binary"), "application/octet-stream", false)
	h.SetResponseText("plain text now")

	var rec completionRecorder
	_, err := h.ProcessRequest(rec.fn)
	require.NoError(t, err)
	require.Equal(t, 1, rec.calls)

	// The stream's content type does not stick to the text payload; the
	// finalized response is sniffed instead.
	assert.Contains(t, rec.responses[0].ContentType, "text/plain")
}

type closableStream struct {
	*strings.Reader
	closed bool
}

func (c *closableStream) Close() error {
	c.closed = true
	return nil
}

func TestResourceHandlerCloseReleasesOwnedStream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ownsStream bool
		wantClosed bool
	}{
		{name: "owned", ownsStream: true, wantClosed: true},
		{name: "not_owned", ownsStream: false, wantClosed: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := &closableStream{Reader: strings.NewReader("data")}
			h := NewResourceHandler()
			h.SetResponse(s, "application/octet-stream", tt.ownsStream)

			require.NoError(t, h.Close())
			assert.Equal(t, tt.wantClosed, s.closed)
		})
	}
}

func TestResourceHandlerReplacedOwnedStreamIsReleased(t *testing.T) {
	t.Parallel()

	s := &closableStream{Reader: strings.NewReader("old")}
	h := NewResourceHandler()
	h.SetResponse(s, "", true)
	h.SetResponseText("new")

	assert.True(t, s.closed)
}

func TestResourceHandlerCompletionErrorStillReleasesHandle(t *testing.T) {
	t.Parallel()

	h := NewResourceHandler()
	rec := completionRecorder{err: errors.New("engine gone")}

	_, err := h.ProcessRequest(rec.fn)
	require.NoError(t, err)

	h.SetResponseText("x")
	require.Error(t, h.Continue())
	require.Equal(t, 1, rec.calls)

	// The handle was released on the failed attempt; it must not fire again.
	require.NoError(t, h.Continue())
	assert.Equal(t, 1, rec.calls)
}

func TestResponseBytesDrainsStream(t *testing.T) {
	t.Parallel()

	resp := &Response{Stream: &closableStream{Reader: strings.NewReader("streamed")}}
	b, err := resp.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(b))
}
