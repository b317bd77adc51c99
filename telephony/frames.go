// Package telephony speaks the media-streaming websocket protocol of the
// telephony provider: typed inbound frames and outbound message builders,
// plus a connection wrapper enforcing single-writer discipline.
package telephony

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

type EventType string

// Inbound event types
const (
	EventConnected EventType = "connected"
	EventStart     EventType = "start"
	EventMedia     EventType = "media"
	EventStop      EventType = "stop"
	EventMark      EventType = "mark"
	EventDTMF      EventType = "dtmf"
)

// Outbound event types
const (
	EventClear    EventType = "clear"
	EventTransfer EventType = "transfer"
)

// Frame is one inbound message. Only the payload matching Event is set.
type Frame struct {
	Event          EventType     `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSid      string        `json:"streamSid,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
	Mark           *MarkPayload  `json:"mark,omitempty"`
	DTMF           *DTMFPayload  `json:"dtmf,omitempty"`
}

type StartPayload struct {
	AccountSid       string            `json:"accountSid"`
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type StopPayload struct {
	AccountSid string `json:"accountSid"`
	CallSid    string `json:"callSid"`
}

type MarkPayload struct {
	Name string `json:"name"`
}

type DTMFPayload struct {
	Track string `json:"track"`
	Digit string `json:"digit"`
}

// ParseFrame decodes an inbound message and validates that the payload the
// event type promises is present.
func ParseFrame(data []byte) (*Frame, error) {
	f := new(Frame)
	if err := sonic.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("unmarshaling frame: %w", err)
	}
	if f.Event == "" {
		return nil, errors.New("missing event")
	}
	switch f.Event {
	case EventStart:
		if f.Start == nil {
			return nil, errors.New("start frame missing start payload")
		}
	case EventMedia:
		if f.Media == nil {
			return nil, errors.New("media frame missing media payload")
		}
	case EventStop:
		if f.Stop == nil {
			return nil, errors.New("stop frame missing stop payload")
		}
	case EventMark:
		if f.Mark == nil {
			return nil, errors.New("mark frame missing mark payload")
		}
	case EventDTMF:
		if f.DTMF == nil {
			return nil, errors.New("dtmf frame missing dtmf payload")
		}
	}
	return f, nil
}

// Audio decodes the base64 mu-law payload of a media frame.
func (p *MediaPayload) Audio() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("decoding media payload: %w", err)
	}
	return b, nil
}

type outboundMedia struct {
	Event     EventType     `json:"event"`
	StreamSid string        `json:"streamSid"`
	Media     *MediaPayload `json:"media"`
}

type outboundMark struct {
	Event     EventType    `json:"event"`
	StreamSid string       `json:"streamSid"`
	Mark      *MarkPayload `json:"mark"`
}

type outboundClear struct {
	Event     EventType `json:"event"`
	StreamSid string    `json:"streamSid"`
}

type transferPayload struct {
	To string `json:"to"`
}

type outboundTransfer struct {
	Event     EventType        `json:"event"`
	StreamSid string           `json:"streamSid"`
	Transfer  *transferPayload `json:"transfer"`
}

// MediaMessage builds an outbound media message carrying raw mu-law audio.
func MediaMessage(streamSid string, audio []byte) ([]byte, error) {
	return sonic.Marshal(&outboundMedia{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     &MediaPayload{Payload: base64.StdEncoding.EncodeToString(audio)},
	})
}

func MarkMessage(streamSid, name string) ([]byte, error) {
	return sonic.Marshal(&outboundMark{
		Event:     EventMark,
		StreamSid: streamSid,
		Mark:      &MarkPayload{Name: name},
	})
}

func ClearMessage(streamSid string) ([]byte, error) {
	return sonic.Marshal(&outboundClear{
		Event:     EventClear,
		StreamSid: streamSid,
	})
}

// TransferMessage builds the control message asking the provider to hand the
// live call over to another number.
func TransferMessage(streamSid, to string) ([]byte, error) {
	return sonic.Marshal(&outboundTransfer{
		Event:     EventTransfer,
		StreamSid: streamSid,
		Transfer:  &transferPayload{To: to},
	})
}
