package stomp

import (
	"errors"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// wsConn presents a websocket as the byte stream the STOMP codec expects.
// Each Write becomes one text message; reads concatenate message payloads.
type wsConn struct {
	ws *websocket.Conn

	rmu    sync.Mutex
	reader io.Reader

	wmu sync.Mutex

	// onReadError is called once with the first read failure.
	onReadError func(error)
	errOnce     sync.Once
}

func newWSConn(ws *websocket.Conn, onReadError func(error)) *wsConn {
	return &wsConn{ws: ws, onReadError: onReadError}
}

func (c *wsConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	for {
		if c.reader == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				c.fail(err)
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			c.fail(err)
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close frame when possible and closes the socket.
func (c *wsConn) Close() error {
	c.wmu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.wmu.Unlock()
	return c.ws.Close()
}

func (c *wsConn) fail(err error) {
	if c.onReadError == nil {
		return
	}
	c.errOnce.Do(func() { c.onReadError(err) })
}
