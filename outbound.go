package voicebridge

import (
	"context"
	"time"

	"github.com/bt-bridge/voicebridge/actions"
	"github.com/bt-bridge/voicebridge/audio"
	"github.com/bt-bridge/voicebridge/model"
	"github.com/bt-bridge/voicebridge/store"
	"go.uber.org/zap"
)

// runOutbound consumes model events: audio flows back to the caller,
// finalized transcripts land on the session, and tool invocations go through
// the dispatcher. Terminal directives drain the spoken tail before closing.
func (b *Bridge) runOutbound(ctx context.Context) error {
	// No audio can be framed before the start frame names the stream.
	select {
	case <-b.session.Ready():
	case <-b.mconn.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
	streamSid := b.session.StreamSid()
	transcoder := audio.NewTranscoder()

	// Set when an end-call ack has been sent: the completion of the
	// tool-call response is then skipped so the closing line that the ack
	// requested gets generated and played before the drain.
	var awaitingClosing bool

	for {
		var event *model.ServerEvent
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case event, ok = <-b.mconn.Events():
			if !ok {
				// Model leg dropped without a termination request.
				b.session.RequestTermination(&TerminationRequest{Status: store.CallStatusFailed})
				return nil
			}
		}

		switch event.Type {
		case model.ServerEventTypeResponseCreated:
			b.session.ResetAudioClock()

		case model.ServerEventTypeResponseOutputAudioDelta:
			pcm, err := event.Audio()
			if err != nil {
				b.logger.Error("skipping undecodable audio delta", err)
				continue
			}
			narrow := transcoder.ToTelephony(pcm)
			if len(narrow) == 0 {
				continue
			}
			b.session.AddAudio(audio.TelephonyDuration(len(narrow)))
			if err := b.tconn.WriteMedia(streamSid, narrow); err != nil {
				b.logger.Error("forwarding model audio", err)
				b.session.RequestTermination(&TerminationRequest{Status: store.CallStatusFailed})
				return err
			}

		case model.ServerEventTypeInputAudioBufferSpeechStarted:
			// Barge-in: flush whatever the caller has not heard yet.
			if err := b.tconn.WriteClear(streamSid); err != nil {
				b.logger.Error("clearing provider buffer", err)
			}
			b.session.ResetAudioClock()

		case model.ServerEventTypeConversationItemInputAudioTranscriptionCompleted:
			b.session.AppendTurn(RoleCaller, event.Transcript)

		case model.ServerEventTypeConversationItemInputAudioTranscriptionFailed:
			b.logger.Warn("caller transcription failed", zap.String("item_id", event.ItemID))

		case model.ServerEventTypeResponseOutputAudioTranscriptDone:
			b.session.AppendTurn(RoleAssistant, event.Transcript)

		case model.ServerEventTypeResponseFunctionCallArgumentsDone:
			if b.handleFunctionCall(ctx, event) {
				awaitingClosing = true
			}

		case model.ServerEventTypeResponseDone:
			if term := b.session.Termination(); term != nil {
				if awaitingClosing {
					awaitingClosing = false
					continue
				}
				b.drain(ctx)
				if term.TransferTo != "" {
					if err := b.tconn.WriteTransfer(streamSid, term.TransferTo); err != nil {
						b.logger.Error("emitting transfer frame", err)
					}
				}
				b.logger.Info(
					"session ending",
					zap.String("status", string(term.Status)),
					zap.String("reason", string(term.Reason)),
				)
				return nil
			}

		case model.ServerEventTypeError:
			if event.Err != nil {
				b.logger.Error("model reported error", event.Err)
			} else {
				b.logger.Error("model reported error", nil, zap.String("event_id", event.EventID))
			}

		default:
			b.logger.Trace("ignoring model event", zap.String("type", string(event.Type)))
		}
	}
}

// handleFunctionCall runs one tool invocation. It reports whether an end-call
// ack was sent, meaning a closing response is still on its way.
func (b *Bridge) handleFunctionCall(ctx context.Context, event *model.ServerEvent) bool {
	directive := b.dispatcher.Dispatch(ctx, actions.ActionName(event.Name), event.Arguments)

	switch {
	case directive.Transfer != "":
		b.session.RecordAction(directive.Action)
		b.session.RequestTermination(&TerminationRequest{
			Status:     store.CallStatusTransferred,
			TransferTo: directive.Transfer,
		})

	case directive.EndCall != "":
		b.session.RecordAction(directive.Action)
		b.session.RequestTermination(&TerminationRequest{
			Status: store.CallStatusCompleted,
			Reason: directive.EndCall,
		})
		// Acked so the model speaks a closing line before the drain.
		if err := b.mconn.SendFunctionOutput(event.CallID, `{"success":true}`); err != nil {
			b.logger.Error("acknowledging call end", err)
			return false
		}
		return true

	default:
		if err := b.mconn.SendFunctionOutput(event.CallID, directive.Output); err != nil {
			b.logger.Error("returning tool result", err)
			return false
		}
		b.session.RecordAction(directive.Action)
	}
	return false
}

// drain waits out the audio already handed to the provider plus a safety
// margin, so the caller hears the goodbye before the socket closes.
func (b *Bridge) drain(ctx context.Context) {
	wait := b.session.AudioClock() + b.opts.DrainMargin
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
