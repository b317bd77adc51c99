package voicebridge

import (
	"context"
	"time"

	"github.com/bt-bridge/voicebridge/audio"
	"github.com/bt-bridge/voicebridge/store"
	"github.com/bt-bridge/voicebridge/telephony"
	"go.uber.org/zap"
)

// runInbound consumes provider frames until the stream stops or the
// connection drops: caller audio flows to the model, the start frame brings
// the session up, the stop frame ends the call as completed.
func (b *Bridge) runInbound(ctx context.Context) error {
	transcoder := audio.NewTranscoder()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		frame, err := b.tconn.ReadFrame()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			// A drop before any termination request is an abnormal end.
			b.session.RequestTermination(&TerminationRequest{Status: store.CallStatusFailed})
			return err
		}

		switch frame.Event {
		case telephony.EventConnected:
			b.logger.Debug("telephony stream connected")

		case telephony.EventStart:
			if err := b.handleStart(frame.Start); err != nil {
				b.logger.Warn("ignoring duplicate start frame", zap.Error(err))
			}

		case telephony.EventMedia:
			if !b.session.Started() {
				b.logger.Warn("dropping media before start frame")
				continue
			}
			raw, err := frame.Media.Audio()
			if err != nil {
				b.logger.Error("skipping undecodable media frame", err)
				continue
			}
			if len(raw) == 0 {
				continue
			}
			if err := b.mconn.AppendAudio(transcoder.ToModel(raw)); err != nil {
				b.logger.Error("forwarding caller audio", err)
				b.session.RequestTermination(&TerminationRequest{Status: store.CallStatusFailed})
				return err
			}

		case telephony.EventStop:
			b.logger.Info("telephony stream stopped")
			b.session.RequestTermination(&TerminationRequest{Status: store.CallStatusCompleted})
			return nil

		case telephony.EventMark:
			if frame.Mark == nil {
				b.logger.Warn("skipping mark frame without payload")
				continue
			}
			b.logger.Trace("mark acknowledged", zap.String("name", frame.Mark.Name))

		case telephony.EventDTMF:
			if frame.DTMF == nil {
				b.logger.Warn("skipping dtmf frame without payload")
				continue
			}
			// Keypad input is out of scope; note it and move on.
			b.logger.Debug("ignoring dtmf", zap.String("digit", frame.DTMF.Digit))

		default:
			b.logger.Debug("ignoring frame", zap.String("event", string(frame.Event)))
		}
	}
}

func (b *Bridge) handleStart(start *telephony.StartPayload) error {
	caller := start.CustomParameters["from"]
	callee := start.CustomParameters["to"]
	if err := b.session.Begin(start.StreamSid, start.CallSid, caller, callee); err != nil {
		return err
	}
	b.logger.Info(
		"call started",
		zap.String("stream_sid", start.StreamSid),
		zap.String("call_sid", start.CallSid),
	)

	if b.recorder != nil {
		rec := &store.CallRecord{
			ConfigID:  b.cfg.ID,
			StreamSid: start.StreamSid,
			CallSid:   start.CallSid,
			Caller:    caller,
			Callee:    callee,
			Status:    store.CallStatusActive,
			StartedAt: time.Now().UTC(),
		}
		// The bridge keeps serving the call even if the record write fails.
		if err := b.recorder.OpenCallRecord(rec); err != nil {
			b.logger.Error("opening call record", err)
		}
	}

	if err := b.mconn.CreateResponse(b.opts.Greeting); err != nil {
		b.logger.Error("requesting greeting response", err)
	}
	return nil
}
