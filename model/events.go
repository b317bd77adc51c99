// Package model is the websocket client for the realtime speech API:
// dialing, the typed server-event stream, and the client-event senders the
// bridge needs.
package model

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

type ServerEventType string

// Server event types the bridge reacts to. Unlisted types still parse and
// flow through the event stream; consumers ignore what they do not handle.
const (
	ServerEventTypeError                                            ServerEventType = "error"
	ServerEventTypeSessionCreated                                   ServerEventType = "session.created"
	ServerEventTypeSessionUpdated                                   ServerEventType = "session.updated"
	ServerEventTypeConversationItemInputAudioTranscriptionCompleted ServerEventType = "conversation.item.input_audio_transcription.completed"
	ServerEventTypeConversationItemInputAudioTranscriptionFailed    ServerEventType = "conversation.item.input_audio_transcription.failed"
	ServerEventTypeInputAudioBufferCommitted                        ServerEventType = "input_audio_buffer.committed"
	ServerEventTypeInputAudioBufferSpeechStarted                    ServerEventType = "input_audio_buffer.speech_started"
	ServerEventTypeInputAudioBufferSpeechStopped                    ServerEventType = "input_audio_buffer.speech_stopped"
	ServerEventTypeResponseCreated                                  ServerEventType = "response.created"
	ServerEventTypeResponseDone                                     ServerEventType = "response.done"
	ServerEventTypeResponseOutputAudioDelta                         ServerEventType = "response.output_audio.delta"
	ServerEventTypeResponseOutputAudioDone                          ServerEventType = "response.output_audio.done"
	ServerEventTypeResponseOutputAudioTranscriptDelta               ServerEventType = "response.output_audio_transcript.delta"
	ServerEventTypeResponseOutputAudioTranscriptDone                ServerEventType = "response.output_audio_transcript.done"
	ServerEventTypeResponseOutputTextDone                           ServerEventType = "response.output_text.done"
	ServerEventTypeResponseFunctionCallArgumentsDone                ServerEventType = "response.function_call_arguments.done"
	ServerEventTypeRatelimitsUpdated                                ServerEventType = "rate_limits.updated"
)

type ClientEventType string

const (
	ClientEventTypeSessionUpdate          ClientEventType = "session.update"
	ClientEventTypeInputAudioBufferAppend ClientEventType = "input_audio_buffer.append"
	ClientEventTypeConversationItemCreate ClientEventType = "conversation.item.create"
	ClientEventTypeResponseCreate         ClientEventType = "response.create"
)

type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   any    `json:"param"`
}

func (e *ErrorDetail) Error() string {
	return fmt.Sprintf("model error (%s/%s): %s", e.Type, e.Code, e.Message)
}

// ServerEvent is one message from the model. Fields beyond EventID and Type
// are populated per type; unrelated fields stay zero.
type ServerEvent struct {
	EventID      string          `json:"event_id"`
	Type         ServerEventType `json:"type"`
	ItemID       string          `json:"item_id,omitempty"`
	ResponseID   string          `json:"response_id,omitempty"`
	OutputIndex  int             `json:"output_index,omitempty"`
	ContentIndex int             `json:"content_index,omitempty"`
	Delta        string          `json:"delta,omitempty"`
	Transcript   string          `json:"transcript,omitempty"`
	Text         string          `json:"text,omitempty"`
	CallID       string          `json:"call_id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Arguments    string          `json:"arguments,omitempty"`
	AudioStartMs int             `json:"audio_start_ms,omitempty"`
	AudioEndMs   int             `json:"audio_end_ms,omitempty"`
	Err          *ErrorDetail    `json:"error,omitempty"`
}

// ParseServerEvent decodes one message off the wire.
func ParseServerEvent(data []byte) (*ServerEvent, error) {
	e := new(ServerEvent)
	if err := sonic.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("unmarshaling server event: %w", err)
	}
	if e.Type == "" {
		return nil, errors.New("missing event type")
	}
	return e, nil
}

// Audio decodes the base64 PCM payload of an output_audio.delta event.
func (e *ServerEvent) Audio() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(e.Delta)
	if err != nil {
		return nil, fmt.Errorf("decoding audio delta: %w", err)
	}
	return b, nil
}

type sessionUpdateEvent struct {
	Type    ClientEventType `json:"type"`
	Session json.RawMessage `json:"session"`
}

type audioAppendEvent struct {
	Type  ClientEventType `json:"type"`
	Audio string          `json:"audio"`
}

type responseCreateEvent struct {
	Type     ClientEventType `json:"type"`
	Response map[string]any  `json:"response,omitempty"`
}

type functionOutputItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

type itemCreateEvent struct {
	Type ClientEventType    `json:"type"`
	Item functionOutputItem `json:"item"`
}
