package cdp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/viewfabric/reactview/log"
)

type connection struct {
	ws     *websocket.Conn
	logger *log.Logger
}

func newConnection(ctx context.Context, wsURL string, logger *log.Logger) (*connection, error) {
	wd := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		// The engine can push large payloads (big resource bodies,
		// serialized frames), so keep the buffers generous.
		ReadBufferSize:  1 << 20,
		WriteBufferSize: 1 << 20,
		Proxy:           http.ProxyFromEnvironment,
	}

	ws, _, err := wd.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dialing DevTools URL %q: %w", wsURL, err)
	}

	return &connection{ws: ws, logger: logger}, nil
}

func (c *connection) readMessage() (*cdproto.Message, error) {
	_, buf, err := c.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}

	var msg cdproto.Message
	in := jlexer.Lexer{Data: buf}
	msg.UnmarshalEasyJSON(&in)
	if err := in.Error(); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}

	return &msg, nil
}

func (c *connection) writeMessage(msg *cdproto.Message) error {
	var out jwriter.Writer
	msg.MarshalEasyJSON(&out)
	if err := out.Error; err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	buf, err := out.BuildBytes()
	if err != nil {
		return fmt.Errorf("building message bytes: %w", err)
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, buf); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

func (c *connection) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(time.Second))
	return c.ws.Close() //nolint:wrapcheck
}
