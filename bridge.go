package voicebridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bt-bridge/voicebridge/actions"
	"github.com/bt-bridge/voicebridge/model"
	"github.com/bt-bridge/voicebridge/shared"
	"github.com/bt-bridge/voicebridge/store"
	"github.com/bt-bridge/voicebridge/telephony"
	"github.com/openai/openai-go/v3/realtime"
	"go.uber.org/zap"
)

const (
	DefaultDrainMargin = time.Second
	DefaultGracePeriod = 3 * time.Second
)

// TelephonyConn is the provider-side leg. Satisfied by telephony.Conn.
type TelephonyConn interface {
	ReadFrame() (*telephony.Frame, error)
	WriteMedia(streamSid string, audio []byte) error
	WriteMark(streamSid, name string) error
	WriteClear(streamSid string) error
	WriteTransfer(streamSid, to string) error
	Close() error
}

// ModelConn is the speech-model leg. Satisfied by model.Client.
type ModelConn interface {
	Events() <-chan *model.ServerEvent
	Done() <-chan struct{}
	UpdateSession(cfg *realtime.RealtimeSessionCreateRequestParam) error
	AppendAudio(pcm []byte) error
	CreateResponse(instructions string) error
	SendFunctionOutput(callID, output string) error
	Close() error
}

// Recorder persists call records. Satisfied by store.Store.
type Recorder interface {
	OpenCallRecord(rec *store.CallRecord) error
	FinalizeCallRecord(streamSid string, status store.CallStatus, transcript string, actions []string, duration time.Duration) error
}

type Options struct {
	// SessionConfig is pushed to the model before any audio flows.
	SessionConfig *realtime.RealtimeSessionCreateRequestParam
	// Greeting steers the model's opening response once the stream starts.
	Greeting string
	// DrainMargin is added to the enqueued playout time before closing.
	DrainMargin time.Duration
	// GracePeriod bounds the wait for the second relay during draining.
	GracePeriod time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.DrainMargin == 0 {
		out.DrainMargin = DefaultDrainMargin
	}
	if out.GracePeriod == 0 {
		out.GracePeriod = DefaultGracePeriod
	}
	return out
}

// Bridge owns one call: the two relays, the shared session state, and the
// exactly-once finalization of the call record.
type Bridge struct {
	logger     shared.LoggerAdapter
	cfg        *store.CallConfig
	tconn      TelephonyConn
	mconn      ModelConn
	dispatcher *actions.Dispatcher
	recorder   Recorder
	session    *Session
	opts       Options

	finalizeOnce sync.Once
}

func NewBridge(
	logger shared.LoggerAdapter,
	cfg *store.CallConfig,
	tconn TelephonyConn,
	mconn ModelConn,
	dispatcher *actions.Dispatcher,
	recorder Recorder,
	opts Options,
) (*Bridge, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if cfg == nil {
		return nil, shared.ErrNoCallConfig
	}
	if tconn == nil || mconn == nil {
		return nil, shared.ErrClientNotInitialized
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	return &Bridge{
		logger:     logger.With(zap.String("destination", cfg.PhoneNumber)),
		cfg:        cfg,
		tconn:      tconn,
		mconn:      mconn,
		dispatcher: dispatcher,
		recorder:   recorder,
		session:    NewSession(),
		opts:       opts.withDefaults(),
	}, nil
}

func (b *Bridge) Session() *Session {
	return b.session
}

// Run drives the call to completion. It returns once both relays have
// stopped (or the grace period expired) and the record is finalized.
func (b *Bridge) Run(ctx context.Context) error {
	if b.opts.SessionConfig != nil {
		if err := b.mconn.UpdateSession(b.opts.SessionConfig); err != nil {
			b.session.SetPhase(PhaseFailed)
			b.closeConns()
			b.finalize()
			return fmt.Errorf("configuring model session: %w", err)
		}
	}
	b.session.SetPhase(PhaseAwaitingStart)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inboundDone := make(chan error, 1)
	outboundDone := make(chan error, 1)
	go func() { inboundDone <- b.runInbound(ctx) }()
	go func() { outboundDone <- b.runOutbound(ctx) }()

	var firstErr error
	var remaining chan error
	select {
	case firstErr = <-inboundDone:
		remaining = outboundDone
	case firstErr = <-outboundDone:
		remaining = inboundDone
	case <-ctx.Done():
		remaining = nil
	}

	b.session.SetPhase(PhaseDraining)
	cancel()
	b.closeConns()

	if remaining != nil {
		select {
		case err := <-remaining:
			if firstErr == nil {
				firstErr = err
			}
		case <-time.After(b.opts.GracePeriod):
			b.logger.Warn("relay did not stop within grace period, abandoning")
		}
	}

	b.finalize()
	if b.session.Termination() == nil {
		b.session.SetPhase(PhaseFailed)
	} else {
		b.session.SetPhase(PhaseClosed)
	}
	return firstErr
}

// closeConns closes both legs. Both Close implementations are idempotent, so
// every exit path can call this unconditionally.
func (b *Bridge) closeConns() {
	if err := b.tconn.Close(); err != nil {
		b.logger.Debug("closing telephony connection", zap.Error(err))
	}
	if err := b.mconn.Close(); err != nil {
		b.logger.Debug("closing model connection", zap.Error(err))
	}
}

// finalize writes the call record outcome exactly once. A session that never
// saw a start frame has no record to finalize.
func (b *Bridge) finalize() {
	b.finalizeOnce.Do(func() {
		if !b.session.Started() || b.recorder == nil {
			return
		}
		status := store.CallStatusFailed
		if term := b.session.Termination(); term != nil {
			status = term.Status
		}
		err := b.recorder.FinalizeCallRecord(
			b.session.StreamSid(),
			status,
			b.session.Transcript(),
			b.session.Actions(),
			b.session.Duration(),
		)
		if err != nil {
			b.logger.Error("finalizing call record", err)
			return
		}
		b.logger.Info(
			"call finalized",
			zap.String("status", string(status)),
			zap.Duration("duration", b.session.Duration()),
		)
	})
}

// Instructions renders the standing prompt for one destination.
func Instructions(cfg *store.CallConfig) string {
	prompt := fmt.Sprintf(
		"You are the AI receptionist answering phone calls for %s. "+
			"Keep replies short and natural; this is a voice call.",
		cfg.Name,
	)
	if cfg.Tone != "" {
		prompt += fmt.Sprintf(" Speak in a %s tone.", cfg.Tone)
	}
	if cfg.Instructions != "" {
		prompt += "\n\n" + cfg.Instructions
	}
	return prompt
}

// Greeting renders the opening-response steering for one destination.
func Greeting(cfg *store.CallConfig) string {
	if cfg.Greeting != "" {
		return "Greet the caller with: " + cfg.Greeting
	}
	return fmt.Sprintf("Greet the caller, say you are the assistant for %s, and ask how you can help.", cfg.Name)
}
