package model

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerEvent(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		check   func(t *testing.T, e *ServerEvent)
		wantErr bool
	}{
		{
			name: "Audio delta",
			data: `{"event_id":"ev1","type":"response.output_audio.delta","response_id":"r1","item_id":"i1","output_index":0,"content_index":0,"delta":"AAAA"}`,
			check: func(t *testing.T, e *ServerEvent) {
				assert.Equal(t, ServerEventTypeResponseOutputAudioDelta, e.Type)
				assert.Equal(t, "r1", e.ResponseID)
				assert.Equal(t, "AAAA", e.Delta)
			},
		},
		{
			name: "Function call arguments done",
			data: `{"event_id":"ev2","type":"response.function_call_arguments.done","response_id":"r1","item_id":"i2","output_index":1,"call_id":"call_7","name":"end_call","arguments":"{\"reason\":\"completed\"}"}`,
			check: func(t *testing.T, e *ServerEvent) {
				assert.Equal(t, ServerEventTypeResponseFunctionCallArgumentsDone, e.Type)
				assert.Equal(t, "call_7", e.CallID)
				assert.Equal(t, "end_call", e.Name)
				assert.JSONEq(t, `{"reason":"completed"}`, e.Arguments)
			},
		},
		{
			name: "Input transcription completed",
			data: `{"event_id":"ev3","type":"conversation.item.input_audio_transcription.completed","item_id":"i3","content_index":0,"transcript":"hello there"}`,
			check: func(t *testing.T, e *ServerEvent) {
				assert.Equal(t, ServerEventTypeConversationItemInputAudioTranscriptionCompleted, e.Type)
				assert.Equal(t, "hello there", e.Transcript)
			},
		},
		{
			name: "Speech started",
			data: `{"event_id":"ev4","type":"input_audio_buffer.speech_started","audio_start_ms":1200,"item_id":"i4"}`,
			check: func(t *testing.T, e *ServerEvent) {
				assert.Equal(t, ServerEventTypeInputAudioBufferSpeechStarted, e.Type)
				assert.Equal(t, 1200, e.AudioStartMs)
			},
		},
		{
			name: "Error event",
			data: `{"event_id":"ev5","type":"error","error":{"type":"invalid_request_error","code":"bad_audio","message":"unreadable audio","param":null}}`,
			check: func(t *testing.T, e *ServerEvent) {
				assert.Equal(t, ServerEventTypeError, e.Type)
				require.NotNil(t, e.Err)
				assert.Equal(t, "bad_audio", e.Err.Code)
				assert.Contains(t, e.Err.Error(), "unreadable audio")
			},
		},
		{
			name: "Unknown type still parses",
			data: `{"event_id":"ev6","type":"rate_limits.updated"}`,
			check: func(t *testing.T, e *ServerEvent) {
				assert.Equal(t, ServerEventTypeRatelimitsUpdated, e.Type)
			},
		},
		{
			name:    "Missing type",
			data:    `{"event_id":"ev7"}`,
			wantErr: true,
		},
		{
			name:    "Invalid JSON",
			data:    `{"type":`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseServerEvent([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, event)
		})
	}
}

func TestServerEventAudio(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	e := &ServerEvent{
		Type:  ServerEventTypeResponseOutputAudioDelta,
		Delta: base64.StdEncoding.EncodeToString(pcm),
	}
	decoded, err := e.Audio()
	require.NoError(t, err)
	assert.Equal(t, pcm, decoded)

	e.Delta = "%%%"
	_, err = e.Audio()
	assert.Error(t, err)
}
