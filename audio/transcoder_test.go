package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMuLawRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		sample    int16
		tolerance int32
	}{
		{name: "Silence", sample: 0, tolerance: 8},
		{name: "Small positive", sample: 100, tolerance: 16},
		{name: "Small negative", sample: -100, tolerance: 16},
		{name: "Mid positive", sample: 8000, tolerance: 600},
		{name: "Mid negative", sample: -8000, tolerance: 600},
		{name: "Near clip positive", sample: 32000, tolerance: 2100},
		{name: "Near clip negative", sample: -32000, tolerance: 2100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := DecodeMuLaw(EncodeMuLaw(tt.sample))
			diff := int32(decoded) - int32(tt.sample)
			if diff < 0 {
				diff = -diff
			}
			assert.LessOrEqual(t, diff, tt.tolerance,
				"decoded %d from %d", decoded, tt.sample)
		})
	}
}

func TestMuLawMonotonic(t *testing.T) {
	// Larger magnitudes must never decode to smaller magnitudes.
	prev := int16(0)
	for s := int16(0); s < 32000; s += 500 {
		decoded := DecodeMuLaw(EncodeMuLaw(s))
		assert.GreaterOrEqual(t, decoded, prev)
		prev = decoded
	}
}

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestToModelExpandsRate(t *testing.T) {
	tr := NewTranscoder()
	// 80 mu-law samples is 10ms at 8kHz; expect about 3x samples out.
	in := make([]byte, 80)
	for i := range in {
		in[i] = EncodeMuLaw(int16(i * 100))
	}
	out := tr.ToModel(in)
	require.Equal(t, 0, len(out)%2)
	samples := len(out) / 2
	assert.InDelta(t, 240, samples, 2)
}

func TestToModelEmptyInput(t *testing.T) {
	tr := NewTranscoder()
	assert.Empty(t, tr.ToModel(nil))
	assert.Empty(t, tr.ToModel([]byte{}))
}

func TestToTelephonyCompressesRate(t *testing.T) {
	tr := NewTranscoder()
	// 240 samples of 24kHz PCM is 10ms; expect about 80 mu-law bytes.
	samples := make([]int16, 240)
	for i := range samples {
		samples[i] = int16(2000 * math.Sin(float64(i)/10))
	}
	out := tr.ToTelephony(pcmBytes(samples))
	assert.InDelta(t, 80, len(out), 2)
}

func TestToTelephonyOddByteCarried(t *testing.T) {
	tr := NewTranscoder()
	full := pcmBytes(make([]int16, 240))

	// Split one sample across two chunks.
	first := tr.ToTelephony(full[:241])
	second := tr.ToTelephony(full[241:])
	assert.InDelta(t, 80, len(first)+len(second), 2)
}

func TestResamplerChunkingInvariance(t *testing.T) {
	// The same stream fed whole or in pieces must resample identically.
	src := make([]int16, 400)
	for i := range src {
		src[i] = int16(5000 * math.Sin(float64(i)/7))
	}

	whole := newResampler(TelephonyRate, ModelRate)
	wholeOut := whole.process(src)

	chunked := newResampler(TelephonyRate, ModelRate)
	var chunkedOut []int16
	for _, size := range []int{1, 7, 80, 160, 152} {
		chunkedOut = append(chunkedOut, chunked.process(src[:size])...)
		src = src[size:]
	}

	require.Equal(t, len(wholeOut), len(chunkedOut))
	for i := range wholeOut {
		assert.Equal(t, wholeOut[i], chunkedOut[i], "sample %d", i)
	}
}

func TestTranscoderReset(t *testing.T) {
	tr := NewTranscoder()
	in := make([]byte, 80)
	first := tr.ToModel(in)
	tr.Reset()
	second := tr.ToModel(in)
	assert.Equal(t, first, second)
}

func TestTelephonyDuration(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int
		expected time.Duration
	}{
		{name: "One second", bytes: 8000, expected: time.Second},
		{name: "20ms frame", bytes: 160, expected: 20 * time.Millisecond},
		{name: "Empty", bytes: 0, expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TelephonyDuration(tt.bytes))
		})
	}
}
