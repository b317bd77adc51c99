package model

import (
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/realtime"
)

// Session defaults for a phone call. Narrowband input makes semantic VAD
// unreliable, so turn detection stays on plain server VAD.
const (
	DefaultModel              string  = "gpt-realtime"
	DefaultVoice              string  = "ash"
	DefaultSpeed              float64 = 1.0
	DefaultTranscriptionModel string  = "whisper-1"
	DefaultVADThreshold       float64 = 0.5
	DefaultVADSilenceMs       int64   = 500
	DefaultVADPrefixMs        int64   = 300
	DefaultMaxOutputTokens    int64   = 1024
)

type SessionOptions struct {
	Model              string
	Instructions       string
	Voice              string
	Speed              float64
	InputLanguage      string
	TranscriptionModel string
	VADThreshold       float64
	VADSilenceMs       int64
	VADPrefixMs        int64
	MaxOutputTokens    int64
	Tools              realtime.RealtimeToolsConfigParam
}

func (o *SessionOptions) withDefaults() SessionOptions {
	out := *o
	if out.Model == "" {
		out.Model = DefaultModel
	}
	if out.Voice == "" {
		out.Voice = DefaultVoice
	}
	if out.Speed == 0 {
		out.Speed = DefaultSpeed
	}
	if out.TranscriptionModel == "" {
		out.TranscriptionModel = DefaultTranscriptionModel
	}
	if out.VADThreshold == 0 {
		out.VADThreshold = DefaultVADThreshold
	}
	if out.VADSilenceMs == 0 {
		out.VADSilenceMs = DefaultVADSilenceMs
	}
	if out.VADPrefixMs == 0 {
		out.VADPrefixMs = DefaultVADPrefixMs
	}
	if out.MaxOutputTokens == 0 {
		out.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return out
}

// BuildSession assembles the session.update configuration: PCM16 at 24 kHz
// on both directions, server VAD with interruption, input transcription, and
// the per-destination instructions and tools.
func BuildSession(opts SessionOptions) *realtime.RealtimeSessionCreateRequestParam {
	o := opts.withDefaults()

	transcription := realtime.AudioTranscriptionParam{
		Model: realtime.AudioTranscriptionModel(o.TranscriptionModel),
	}
	if o.InputLanguage != "" {
		transcription.Language = param.NewOpt(o.InputLanguage)
	}

	session := &realtime.RealtimeSessionCreateRequestParam{
		Model:            realtime.RealtimeSessionCreateRequestModel(o.Model),
		Instructions:     param.NewOpt(o.Instructions),
		OutputModalities: []string{"audio"},
		Audio: realtime.RealtimeAudioConfigParam{
			Input: realtime.RealtimeAudioConfigInputParam{
				TurnDetection: realtime.RealtimeAudioInputTurnDetectionUnionParam{
					OfServerVad: &realtime.RealtimeAudioInputTurnDetectionServerVadParam{
						Type:              "server_vad",
						Threshold:         param.NewOpt(o.VADThreshold),
						SilenceDurationMs: param.NewOpt(o.VADSilenceMs),
						PrefixPaddingMs:   param.NewOpt(o.VADPrefixMs),
						CreateResponse:    param.NewOpt(true),
						InterruptResponse: param.NewOpt(true),
					},
				},
				Format: realtime.RealtimeAudioFormatsUnionParam{
					OfAudioPCM: &realtime.RealtimeAudioFormatsAudioPCMParam{
						Rate: 24000,
						Type: "audio/pcm",
					},
				},
				Transcription: transcription,
			},
			Output: realtime.RealtimeAudioConfigOutputParam{
				Speed: param.NewOpt(o.Speed),
				Format: realtime.RealtimeAudioFormatsUnionParam{
					OfAudioPCM: &realtime.RealtimeAudioFormatsAudioPCMParam{
						Rate: 24000,
						Type: "audio/pcm",
					},
				},
				Voice: realtime.RealtimeAudioConfigOutputVoice(o.Voice),
			},
		},
		MaxOutputTokens: realtime.RealtimeSessionCreateRequestMaxOutputTokensUnionParam{
			OfInt: param.NewOpt(o.MaxOutputTokens),
		},
	}
	if len(o.Tools) > 0 {
		session.Tools = o.Tools
	}
	return session
}
