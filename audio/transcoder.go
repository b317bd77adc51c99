// Package audio converts between the telephony leg's G.711 mu-law stream at
// 8 kHz and the speech model's 16-bit linear PCM stream at 24 kHz. Resampling
// state is carried across chunks so that arbitrary chunk boundaries do not
// produce discontinuities.
package audio

import (
	"encoding/binary"
	"time"
)

const (
	TelephonyRate = 8000
	ModelRate     = 24000
)

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// DecodeMuLaw expands a single G.711 mu-law byte to 16-bit linear PCM.
func DecodeMuLaw(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F
	magnitude := ((int32(mantissa) << 3) + muLawBias) << exponent
	magnitude -= muLawBias
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// EncodeMuLaw compresses a 16-bit linear PCM sample to G.711 mu-law.
func EncodeMuLaw(s int16) byte {
	var sign byte
	v := int32(s)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias
	exponent := 7
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((v >> (exponent + 3)) & 0x0F)
	return ^(sign | byte(exponent)<<4 | mantissa)
}

// resampler performs linear-interpolation rate conversion. The last source
// sample and the fractional read position survive between calls, so feeding
// the same stream in different chunkings yields the same output.
type resampler struct {
	step   float64 // source samples advanced per output sample
	last   int16
	pos    float64
	primed bool
}

func newResampler(srcRate, dstRate int) resampler {
	return resampler{step: float64(srcRate) / float64(dstRate)}
}

func (r *resampler) process(in []int16) []int16 {
	if len(in) == 0 {
		return nil
	}
	if !r.primed {
		r.last = in[0]
		r.primed = true
	}
	// Virtual source stream: index 0 is the carried sample, 1..n map to in.
	src := func(k int) int16 {
		if k == 0 {
			return r.last
		}
		return in[k-1]
	}
	n := len(in)
	out := make([]int16, 0, int(float64(n)/r.step)+2)
	pos := r.pos
	for pos < float64(n) {
		i := int(pos)
		frac := pos - float64(i)
		s0 := float64(src(i))
		s1 := float64(src(i + 1))
		out = append(out, int16(s0+(s1-s0)*frac))
		pos += r.step
	}
	r.last = in[n-1]
	r.pos = pos - float64(n)
	return out
}

func (r *resampler) reset() {
	r.pos = 0
	r.primed = false
	r.last = 0
}

// Transcoder converts between the two stream formats for a single call.
// It is not safe for concurrent use; each direction belongs to one relay.
type Transcoder struct {
	up      resampler // telephony -> model
	down    resampler // model -> telephony
	pending []byte    // odd trailing byte of a PCM chunk, completed by the next chunk
}

func NewTranscoder() *Transcoder {
	return &Transcoder{
		up:   newResampler(TelephonyRate, ModelRate),
		down: newResampler(ModelRate, TelephonyRate),
	}
}

// ToModel expands a mu-law 8 kHz chunk into little-endian PCM16 at the model
// rate. Empty input yields empty output without disturbing resampler state.
func (t *Transcoder) ToModel(payload []byte) []byte {
	if len(payload) == 0 {
		return nil
	}
	pcm := make([]int16, len(payload))
	for i, u := range payload {
		pcm[i] = DecodeMuLaw(u)
	}
	wide := t.up.process(pcm)
	out := make([]byte, len(wide)*2)
	for i, s := range wide {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// ToTelephony compresses a little-endian PCM16 chunk at the model rate into
// mu-law at 8 kHz. A chunk with an odd byte count keeps the dangling byte and
// completes the sample when the next chunk arrives.
func (t *Transcoder) ToTelephony(pcm []byte) []byte {
	if len(t.pending) > 0 {
		pcm = append(t.pending, pcm...)
		t.pending = nil
	}
	if len(pcm)%2 != 0 {
		t.pending = []byte{pcm[len(pcm)-1]}
		pcm = pcm[:len(pcm)-1]
	}
	if len(pcm) == 0 {
		return nil
	}
	wide := make([]int16, len(pcm)/2)
	for i := range wide {
		wide[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	narrow := t.down.process(wide)
	out := make([]byte, len(narrow))
	for i, s := range narrow {
		out[i] = EncodeMuLaw(s)
	}
	return out
}

// Reset drops all carried state, for reuse across calls.
func (t *Transcoder) Reset() {
	t.up.reset()
	t.down.reset()
	t.pending = nil
}

// TelephonyDuration is the playout time of n mu-law bytes at the telephony
// rate. One byte is one sample.
func TelephonyDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / TelephonyRate
}
