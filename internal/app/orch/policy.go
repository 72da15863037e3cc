package orch

import "time"

type ReconnectAction int

const (
	GiveUp ReconnectAction = iota
	Retry
)

// ReconnectPolicy decides what happens after the relay connection drops.
// attempt counts consecutive failures starting at 1.
type ReconnectPolicy interface {
	OnDisconnect(attempt int) (ReconnectAction, time.Duration)
}

// NoReconnect leaves the session closed.
type NoReconnect struct{}

func (NoReconnect) OnDisconnect(int) (ReconnectAction, time.Duration) {
	return GiveUp, 0
}

// maxWait bounds the delay when MaxBackoff is unset.
const maxWait = 10 * time.Minute

// BackoffPolicy retries with exponential backoff. A MaxAttempts of zero
// retries forever.
type BackoffPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

func (p BackoffPolicy) OnDisconnect(attempt int) (ReconnectAction, time.Duration) {
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return GiveUp, 0
	}
	wait := p.Backoff
	if wait <= 0 {
		wait = time.Second
	}
	ceiling := p.MaxBackoff
	if ceiling <= 0 {
		ceiling = maxWait
	}
	if wait >= ceiling {
		return Retry, ceiling
	}
	for i := 1; i < attempt; i++ {
		if wait >= ceiling/2 {
			return Retry, ceiling
		}
		wait *= 2
	}
	return Retry, wait
}
