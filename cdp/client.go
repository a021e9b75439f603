// Package cdp manages DevTools-protocol communication with the embedded
// browser engine. The engine itself (process model, compositing, rendering)
// lives outside this repository; this package only speaks the wire protocol
// to the page target the host embeds.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto"
	cdpext "github.com/chromedp/cdproto/cdp"
	"github.com/mailru/easyjson"

	"github.com/viewfabric/reactview/cdp/domains"
	"github.com/viewfabric/reactview/log"
)

var _ cdpext.Executor = &Client{}

// ErrClientClosed is returned by Execute after Disconnect.
var ErrClientClosed = errors.New("cdp client closed")

// Client manages protocol communication with the engine.
type Client struct {
	ctx    context.Context
	logger *log.Logger

	Fetch   domains.Fetch
	Page    domains.Page
	Runtime domains.Runtime
	Network domains.Network
	Input   domains.Input

	conn  *connection
	msgID int64

	sendCh    chan *cdproto.Message
	msgSubsMu sync.Mutex
	msgSubs   map[int64]chan *cdproto.Message

	watcher *eventWatcher

	closeOnce sync.Once
	done      chan struct{}

	wsURL string
}

// NewClient returns a new Client that is unusable until a connection is
// established with Connect.
func NewClient(ctx context.Context, logger *log.Logger) *Client {
	c := &Client{
		ctx:     ctx,
		logger:  logger,
		sendCh:  make(chan *cdproto.Message, 32), // buffered to avoid blocking in Execute
		msgSubs: make(map[int64]chan *cdproto.Message),
		watcher: newEventWatcher(ctx, logger),
		done:    make(chan struct{}),
	}

	c.Fetch = domains.NewFetch(c)
	c.Page = domains.NewPage(c)
	c.Runtime = domains.NewRuntime(c)
	c.Network = domains.NewNetwork(c)
	c.Input = domains.NewInput(c)

	return c
}

// Connect to the engine's page target at wsURL.
func (c *Client) Connect(wsURL string) (err error) {
	if c.wsURL != "" {
		return fmt.Errorf("connection already established to %q", c.wsURL)
	}

	if c.conn, err = newConnection(c.ctx, wsURL, c.logger); err != nil {
		return err
	}
	c.logger.Infof("cdp", "established connection to %q", wsURL)
	c.wsURL = wsURL

	go c.recvLoop()
	go c.sendLoop()

	return nil
}

// Disconnect from the engine.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			if err := c.conn.Close(); err != nil {
				c.logger.Debugf("Client:Disconnect", "closing connection: %v", err)
			}
		}
	})
}

// Execute implements the cdproto Executor interface and performs a
// synchronous send and receive.
func (c *Client) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	c.logger.Debugf("Client:Execute", "wsURL:%q method:%q", c.wsURL, method)
	id := atomic.AddInt64(&c.msgID, 1)

	recvCh := make(chan *cdproto.Message, 1)
	c.msgSubsMu.Lock()
	c.msgSubs[id] = recvCh
	c.msgSubsMu.Unlock()
	defer func() {
		c.msgSubsMu.Lock()
		delete(c.msgSubs, id)
		c.msgSubsMu.Unlock()
	}()

	var buf []byte
	if params != nil {
		var err error
		if buf, err = easyjson.Marshal(params); err != nil {
			return fmt.Errorf("marshaling %q params: %w", method, err)
		}
	}
	msg := &cdproto.Message{
		ID:     id,
		Method: cdproto.MethodType(method),
		Params: buf,
	}

	select {
	case c.sendCh <- msg:
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return c.ctx.Err()
	}

	select {
	case reply := <-recvCh:
		switch {
		case reply == nil:
			return errors.New("nil reply message")
		case reply.Error != nil:
			return reply.Error
		case res != nil:
			return easyjson.Unmarshal(reply.Result, res)
		}
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return c.ctx.Err()
	}

	return nil
}

// Subscribe returns a channel notified when any of the given protocol events
// is received, and a cancellation function that unsubscribes it.
func (c *Client) Subscribe(events ...cdproto.MethodType) (<-chan *Event, func()) {
	return c.watcher.subscribe(events...)
}

func (c *Client) recvLoop() {
	for {
		msg, err := c.conn.readMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if !errors.Is(err, net.ErrClosed) {
					c.logger.Errorf("Client:recvLoop", "wsURL:%q err:%v", c.wsURL, err)
				}
			}
			return
		}

		switch {
		case msg.Method != "":
			evt, err := cdproto.UnmarshalMessage(msg)
			if err != nil {
				c.logger.Errorf("cdp", "unmarshaling %s event: %v", msg.Method, err)
				continue
			}
			c.watcher.notify(&Event{Name: msg.Method, Data: evt})
		case msg.ID > 0:
			c.msgSubsMu.Lock()
			ch, ok := c.msgSubs[msg.ID]
			if ok {
				delete(c.msgSubs, msg.ID)
			}
			c.msgSubsMu.Unlock()
			if ok {
				ch <- msg
			}
		default:
			c.logger.Errorf("cdp", "ignoring malformed message (missing id and method): %#v", msg)
		}
	}
}

func (c *Client) sendLoop() {
	for {
		select {
		case msg := <-c.sendCh:
			if err := c.conn.writeMessage(msg); err != nil {
				c.logger.Errorf("Client:sendLoop", "wsURL:%q err:%v", c.wsURL, err)
			}
		case <-c.done:
			return
		case <-c.ctx.Done():
			c.Disconnect()
			return
		}
	}
}
