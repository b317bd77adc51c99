package shared

import "errors"

var (
	ErrNoLogger              = errors.New("no logger provided")
	ErrNoConfig              = errors.New("no config provided")
	ErrNoAPIKey              = errors.New("no API key provided")
	ErrNoCallConfig          = errors.New("no call config for destination")
	ErrClientNotInitialized  = errors.New("client not initialized")
	ErrSessionAlreadyRunning = errors.New("session already running")
	ErrSessionClosed         = errors.New("session closed")
	ErrStreamAlreadyStarted  = errors.New("stream already started")
	ErrNoForwardingNumber    = errors.New("no forwarding number configured")
	ErrActionNotAllowed      = errors.New("action not allowed for this destination")
	ErrUnknownAction         = errors.New("unknown action")
	ErrCacheMiss             = errors.New("cache miss")
)
