package orch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/domain"
)

// Runner keeps one meeting session alive under a ReconnectPolicy. Each
// reconnect opens a fresh Session with empty state.
type Runner struct {
	deps    Deps
	opts    Options
	policy  ReconnectPolicy
	current atomic.Pointer[Session]
}

func NewRunner(deps Deps, opts Options, policy ReconnectPolicy) *Runner {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if policy == nil {
		policy = NoReconnect{}
	}
	return &Runner{deps: deps, opts: opts, policy: policy}
}

// Current returns the live or most recent session, or nil before the first
// connection.
func (r *Runner) Current() *Session { return r.current.Load() }

// Run blocks until the meeting ends, ctx is cancelled or the policy gives
// up on a dropped connection.
func (r *Runner) Run(ctx context.Context) error {
	logger := log.With().Str("module", "runner").Str("meeting", string(r.opts.MeetingID)).Logger()
	attempt := 0
	for {
		s, err := Open(ctx, r.deps, r.opts)
		switch {
		case errors.Is(err, domain.ErrAuthRequired):
			return err
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn().Err(err).Msg("connect failed")
		default:
			attempt = 0
			r.current.Store(s)
			<-s.Done()
			if ctx.Err() != nil || !s.Lost() {
				return nil
			}
		}

		attempt++
		action, wait := r.policy.OnDisconnect(attempt)
		if action == GiveUp {
			if err != nil {
				return err
			}
			return fmt.Errorf("%w: connection lost", domain.ErrNotOpen)
		}
		logger.Info().Int("attempt", attempt).Dur("wait", wait).Msg("reconnecting")
		select {
		case <-r.deps.Clock.After(wait):
		case <-ctx.Done():
			return nil
		}
	}
}
