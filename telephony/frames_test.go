package telephony

import (
	"encoding/base64"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		event   EventType
		wantErr bool
	}{
		{
			name:  "Connected",
			data:  `{"event":"connected","protocol":"Call","version":"1.0.0"}`,
			event: EventConnected,
		},
		{
			name: "Start",
			data: `{"event":"start","sequenceNumber":"1","streamSid":"MZ123",` +
				`"start":{"accountSid":"AC1","streamSid":"MZ123","callSid":"CA1",` +
				`"tracks":["inbound"],"mediaFormat":{"encoding":"audio/x-mulaw","sampleRate":8000,"channels":1},` +
				`"customParameters":{"from":"+15550001111","to":"+15550002222"}}}`,
			event: EventStart,
		},
		{
			name:  "Media",
			data:  `{"event":"media","sequenceNumber":"2","streamSid":"MZ123","media":{"track":"inbound","chunk":"1","timestamp":"5","payload":"f39/"}}`,
			event: EventMedia,
		},
		{
			name:  "Stop",
			data:  `{"event":"stop","sequenceNumber":"9","streamSid":"MZ123","stop":{"accountSid":"AC1","callSid":"CA1"}}`,
			event: EventStop,
		},
		{
			name:  "Mark",
			data:  `{"event":"mark","streamSid":"MZ123","mark":{"name":"greeting"}}`,
			event: EventMark,
		},
		{
			name:  "DTMF",
			data:  `{"event":"dtmf","streamSid":"MZ123","dtmf":{"track":"inbound_track","digit":"5"}}`,
			event: EventDTMF,
		},
		{
			name:    "Missing event",
			data:    `{"streamSid":"MZ123"}`,
			wantErr: true,
		},
		{
			name:    "Start without payload",
			data:    `{"event":"start","streamSid":"MZ123"}`,
			wantErr: true,
		},
		{
			name:    "Media without payload",
			data:    `{"event":"media","streamSid":"MZ123"}`,
			wantErr: true,
		},
		{
			name:    "Mark without payload",
			data:    `{"event":"mark","streamSid":"MZ123"}`,
			wantErr: true,
		},
		{
			name:    "DTMF without payload",
			data:    `{"event":"dtmf","streamSid":"MZ123"}`,
			wantErr: true,
		},
		{
			name:    "Invalid JSON",
			data:    `{"event":`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseFrame([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.event, frame.Event)
		})
	}
}

func TestParseStartDetails(t *testing.T) {
	data := `{"event":"start","streamSid":"MZ123","start":{"accountSid":"AC1",` +
		`"streamSid":"MZ123","callSid":"CA1","tracks":["inbound"],` +
		`"mediaFormat":{"encoding":"audio/x-mulaw","sampleRate":8000,"channels":1},` +
		`"customParameters":{"from":"+15550001111","to":"+15550002222"}}}`
	frame, err := ParseFrame([]byte(data))
	require.NoError(t, err)
	require.NotNil(t, frame.Start)
	assert.Equal(t, "MZ123", frame.Start.StreamSid)
	assert.Equal(t, "CA1", frame.Start.CallSid)
	assert.Equal(t, "+15550001111", frame.Start.CustomParameters["from"])
	assert.Equal(t, 8000, frame.Start.MediaFormat.SampleRate)
}

func TestMediaAudio(t *testing.T) {
	raw := []byte{0x7f, 0x00, 0xff, 0x80}
	p := &MediaPayload{Payload: base64.StdEncoding.EncodeToString(raw)}
	audio, err := p.Audio()
	require.NoError(t, err)
	assert.Equal(t, raw, audio)

	p = &MediaPayload{Payload: "not base64!!"}
	_, err = p.Audio()
	assert.Error(t, err)
}

func TestOutboundMessages(t *testing.T) {
	audio := []byte{0x01, 0x02, 0x03}

	msg, err := MediaMessage("MZ123", audio)
	require.NoError(t, err)
	var media map[string]any
	require.NoError(t, sonic.Unmarshal(msg, &media))
	assert.Equal(t, "media", media["event"])
	assert.Equal(t, "MZ123", media["streamSid"])
	payload := media["media"].(map[string]any)["payload"].(string)
	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, audio, decoded)

	msg, err = MarkMessage("MZ123", "done")
	require.NoError(t, err)
	var mark map[string]any
	require.NoError(t, sonic.Unmarshal(msg, &mark))
	assert.Equal(t, "mark", mark["event"])
	assert.Equal(t, "done", mark["mark"].(map[string]any)["name"])

	msg, err = ClearMessage("MZ123")
	require.NoError(t, err)
	var clear map[string]any
	require.NoError(t, sonic.Unmarshal(msg, &clear))
	assert.Equal(t, "clear", clear["event"])
	assert.Equal(t, "MZ123", clear["streamSid"])

	msg, err = TransferMessage("MZ123", "+15550009999")
	require.NoError(t, err)
	var transfer map[string]any
	require.NoError(t, sonic.Unmarshal(msg, &transfer))
	assert.Equal(t, "transfer", transfer["event"])
	assert.Equal(t, "+15550009999", transfer["transfer"].(map[string]any)["to"])
}
