// Package voicebridge bridges live phone-call audio between a telephony
// media-streaming endpoint and a realtime conversational speech model. It
// transcodes between the provider's mu-law narrowband stream and the model's
// wideband PCM, relays audio full-duplex, accumulates the call transcript,
// and dispatches the model's tool invocations (knowledge lookup, call
// transfer, SMS, appointment booking, call wrap-up) to service backends.
package voicebridge
