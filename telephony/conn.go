package telephony

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn wraps the provider-side websocket. Reads belong to a single goroutine;
// writes are serialized with a mutex because the outbound relay and the
// lifecycle controller may both emit messages.
type Conn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// ReadFrame blocks until the next inbound frame. Non-text messages are
// skipped; the provider only sends JSON text.
func (c *Conn) ReadFrame() (*Frame, error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("reading telephony message: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return ParseFrame(data)
	}
}

func (c *Conn) write(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("writing telephony message: %w", err)
	}
	return nil
}

func (c *Conn) WriteMedia(streamSid string, audio []byte) error {
	msg, err := MediaMessage(streamSid, audio)
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (c *Conn) WriteMark(streamSid, name string) error {
	msg, err := MarkMessage(streamSid, name)
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (c *Conn) WriteClear(streamSid string) error {
	msg, err := ClearMessage(streamSid)
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (c *Conn) WriteTransfer(streamSid, to string) error {
	msg, err := TransferMessage(streamSid, to)
	if err != nil {
		return err
	}
	return c.write(msg)
}

// Close is safe to call from multiple goroutines; later calls return the
// first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
