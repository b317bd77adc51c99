package model

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/bt-bridge/voicebridge/shared"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/openai/openai-go/v3/realtime"
	"go.uber.org/zap"
)

const eventBufferSize = 64

// Client is one realtime session over a websocket. Events() delivers typed
// server events until the connection ends; senders are safe for concurrent
// use.
type Client struct {
	logger shared.LoggerAdapter
	ws     *websocket.Conn
	events chan *ServerEvent

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error

	ctx    context.Context
	cancel context.CancelCauseFunc
}

// Dial connects to the realtime endpoint and starts the read loop. A dial
// failure is final; the caller does not retry mid-call.
func Dial(ctx context.Context, logger shared.LoggerAdapter, apiKey, baseUrl, modelName string) (*Client, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if apiKey == "" {
		return nil, shared.ErrNoAPIKey
	}
	var u *url.URL
	var err error
	if baseUrl != "" {
		u, err = url.Parse(baseUrl)
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
	} else {
		u = &url.URL{Scheme: "wss", Host: "api.openai.com", Path: "/v1/realtime"}
	}
	q := u.Query()
	q.Set("model", modelName)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing realtime endpoint (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing realtime endpoint: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	c := &Client{
		logger: logger,
		ws:     ws,
		events: make(chan *ServerEvent, eventBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.cancel(fmt.Errorf("reading model message: %w", err))
			return
		}
		event, err := ParseServerEvent(data)
		if err != nil {
			c.logger.Error("dropping undecodable model event", err, zap.ByteString("data", data))
			continue
		}
		c.logger.Trace(
			"received model event",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.EventID),
		)
		select {
		case c.events <- event:
		case <-c.ctx.Done():
			return
		}
	}
}

// Events yields server events in arrival order. The channel closes when the
// connection ends for any reason.
func (c *Client) Events() <-chan *ServerEvent {
	return c.events
}

func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Client) Err() error {
	return context.Cause(c.ctx)
}

func (c *Client) respectCtx() error {
	select {
	case <-c.ctx.Done():
		return shared.ErrSessionClosed
	default:
	}
	return nil
}

func (c *Client) send(payload []byte) error {
	if err := c.respectCtx(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("writing model message: %w", err)
	}
	return nil
}

// UpdateSession pushes the session configuration. Called once after dialing,
// before any audio is appended.
func (c *Client) UpdateSession(cfg *realtime.RealtimeSessionCreateRequestParam) error {
	if cfg == nil {
		return shared.ErrNoConfig
	}
	sessBytes, err := cfg.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling session config: %w", err)
	}
	payload, err := sonic.Marshal(&sessionUpdateEvent{
		Type:    ClientEventTypeSessionUpdate,
		Session: sessBytes,
	})
	if err != nil {
		return fmt.Errorf("marshaling session.update: %w", err)
	}
	return c.send(payload)
}

// AppendAudio streams one chunk of caller audio into the input buffer. The
// server's voice activity detection owns segmentation; there is no commit.
func (c *Client) AppendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	payload, err := sonic.Marshal(&audioAppendEvent{
		Type:  ClientEventTypeInputAudioBufferAppend,
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
	if err != nil {
		return fmt.Errorf("marshaling input_audio_buffer.append: %w", err)
	}
	return c.send(payload)
}

// CreateResponse asks the model to speak. Non-empty instructions steer only
// this response, as with the opening greeting.
func (c *Client) CreateResponse(instructions string) error {
	event := &responseCreateEvent{Type: ClientEventTypeResponseCreate}
	if instructions != "" {
		event.Response = map[string]any{"instructions": instructions}
	}
	payload, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling response.create: %w", err)
	}
	return c.send(payload)
}

// SendFunctionOutput returns a tool result to the conversation and requests
// the follow-up response in one step.
func (c *Client) SendFunctionOutput(callID, output string) error {
	if callID == "" {
		return errors.New("call ID is required")
	}
	payload, err := sonic.Marshal(&itemCreateEvent{
		Type: ClientEventTypeConversationItemCreate,
		Item: functionOutputItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	})
	if err != nil {
		return fmt.Errorf("marshaling conversation.item.create: %w", err)
	}
	if err := c.send(payload); err != nil {
		return err
	}
	return c.CreateResponse("")
}

// Close is idempotent and safe from any goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel(errors.New("client closed"))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
