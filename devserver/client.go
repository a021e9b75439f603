// Package devserver connects a web view to a front-end development server.
// The server pushes commands over a websocket when sources change, so the
// view can reload scripts or swap stylesheets without restarting the host.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/viewfabric/reactview/common"
	"github.com/viewfabric/reactview/common/js"
	"github.com/viewfabric/reactview/log"
)

// viewReloader is the slice of the web view the client drives.
type viewReloader interface {
	Reload() error
	Evaluate(expression string) error
}

// cacheInvalidator drops pre-built view instances whose styling went stale.
type cacheInvalidator interface {
	InvalidateAll()
}

// Client listens for development-server commands and applies them to a view.
type Client struct {
	conn   *websocket.Conn
	view   viewReloader
	cache  cacheInvalidator
	logger *log.Logger
}

const (
	dialAttempts = 3
	dialBackoff  = 250 * time.Millisecond
)

// Dial connects to the development server at serverURL, retrying a few
// times since the server usually starts alongside the host.
func Dial(ctx context.Context, serverURL string, view viewReloader, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("devserver: parsing websocket server URL: %w", err)
	}

	var conn *websocket.Conn
	for attempt := 1; ; attempt++ {
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err == nil {
			break
		}
		if attempt == dialAttempts {
			return nil, fmt.Errorf("devserver: dialing server: %w", err)
		}
		logger.Debugf("devserver", "dial attempt %d failed, retrying: %v", attempt, err)
		select {
		case <-time.After(time.Duration(attempt) * dialBackoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("devserver: dialing server: %w", ctx.Err())
		}
	}

	return &Client{
		conn:   conn,
		view:   view,
		logger: logger,
	}, nil
}

// SetCacheInvalidator makes stylesheet refreshes also drop pre-built views.
func (c *Client) SetCacheInvalidator(cache cacheInvalidator) {
	c.cache = cache
}

// DialFromOptions connects when a development-server URI is configured and
// returns (nil, nil) when it is not.
func DialFromOptions(ctx context.Context, opts *common.Options, view viewReloader, logger *log.Logger) (*Client, error) {
	if !opts.DevServerURI.Valid {
		return nil, nil
	}
	return Dial(ctx, opts.DevServerURI.String, view, logger)
}

// Listen consumes server commands until the connection closes.
func (c *Client) Listen() {
	for {
		_, message, err := c.conn.ReadMessage()
		if websocket.IsCloseError(err,
			websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
		) {
			return
		}
		if err != nil {
			c.logger.Warnf("devserver", "reading websocket message: %v", err)
			return
		}

		var envelope struct {
			Command string          `json:"command"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil {
			c.logger.Warnf("devserver", "unmarshaling command message: %v", err)
			continue
		}

		switch envelope.Command {
		case "reload":
			c.handleReload()
		case "refresh_stylesheet":
			c.handleRefreshStylesheet()
		default:
			c.logger.Warnf("devserver", "unknown command: %s", envelope.Command)
		}
	}
}

func (c *Client) handleReload() {
	c.logger.Debugf("devserver", "reloading view")
	if err := c.view.Reload(); err != nil {
		c.logger.Warnf("devserver", "reloading view: %v", err)
	}
}

// handleRefreshStylesheet re-fetches every linked stylesheet in place by
// cache-busting its href, leaving the page state intact. Pre-built views
// carry the old styling and are dropped.
func (c *Client) handleRefreshStylesheet() {
	c.logger.Debugf("devserver", "refreshing stylesheets")
	if c.cache != nil {
		c.cache.InvalidateAll()
	}
	if err := c.view.Evaluate(js.RefreshStylesheetsScript); err != nil {
		c.logger.Warnf("devserver", "refreshing stylesheets: %v", err)
	}
}

// SendReady announces to the server that the view is connected and watching.
func (c *Client) SendReady() error {
	envelope := map[string]any{
		"type": "ready",
	}
	message, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("devserver: marshaling ready message: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		return fmt.Errorf("devserver: sending ready message: %w", err)
	}

	return nil
}

// Close performs the websocket close handshake and drops the connection.
func (c *Client) Close() error {
	if err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	); err != nil {
		return fmt.Errorf("devserver: sending websocket close message: %w", err)
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("devserver: closing websocket connection: %w", err)
	}
	return nil
}
