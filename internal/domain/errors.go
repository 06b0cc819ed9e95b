package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrCrossedBook  = errors.New("book update would cross the book")
	ErrNotReady     = errors.New("indicator not ready")
	ErrWSDisconnect = errors.New("websocket disconnected")
	ErrContextDone  = errors.New("context cancelled")

	// Risk gate rejections. Expected and recoverable: the candidate signal
	// is dropped without retry.
	ErrPositionLimit      = errors.New("max concurrent positions reached")
	ErrExposureLimit      = errors.New("max exposure fraction exceeded")
	ErrDailyLossLimit     = errors.New("daily loss limit breached")
	ErrCircuitBreakerOpen = errors.New("consecutive-loss circuit breaker open")
	ErrFrequencyLimit     = errors.New("trade frequency cap exceeded")

	// Order lifecycle errors.
	ErrBadTransition  = errors.New("invalid order state transition")
	ErrBrokerTimeout  = errors.New("broker acknowledgment timed out")
	ErrBrokerRejected = errors.New("broker rejected order")
	ErrNotCancellable = errors.New("order can no longer be cancelled")
)
