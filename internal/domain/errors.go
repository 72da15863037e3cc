package domain

import "errors"

var (
	// ErrAuthRequired is returned before any connection attempt when no
	// credential is available.
	ErrAuthRequired = errors.New("auth required")
	// ErrProtocolDecode marks a malformed inbound message. The connection stays open.
	ErrProtocolDecode = errors.New("protocol decode error")
	// ErrNegotiation marks an offer/answer/candidate failure on one peer link.
	ErrNegotiation = errors.New("negotiation error")

	ErrPermissionDenied  = errors.New("permission denied")
	ErrDeviceUnavailable = errors.New("device unavailable")

	ErrTransientRecognition = errors.New("transient recognition error")
	ErrFatalRecognition     = errors.New("fatal recognition error")

	ErrNotOpen       = errors.New("session not open")
	ErrNotAdmitted   = errors.New("waiting for admission")
	ErrTerminated    = errors.New("session terminated")
	ErrNotHost       = errors.New("host role required")
	ErrInvalidIntent = errors.New("invalid intent")
)
