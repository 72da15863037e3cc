package rtc

import (
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateEnded
)

// OutTrack is a local track fed from an ingest source. Muted tracks drop
// packets without renegotiating.
type OutTrack struct {
	*webrtc.TrackLocalStaticRTP
	state atomic.Int32

	mu       sync.Mutex
	onEnded  func()
	stop     func()
	stopOnce sync.Once
}

func NewOutTrack(track *webrtc.TrackLocalStaticRTP, stop func()) *OutTrack {
	return &OutTrack{TrackLocalStaticRTP: track, stop: stop}
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) SetEnabled(on bool) {
	next := TrackStateMuted
	if on {
		next = TrackStateOk
	}
	for {
		cur := ot.state.Load()
		if TrackState(cur) == TrackStateEnded {
			return
		}
		if ot.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

func (ot *OutTrack) Enabled() bool { return ot.GetState() == TrackStateOk }

func (ot *OutTrack) OnEnded(fn func()) {
	ot.mu.Lock()
	ot.onEnded = fn
	ot.mu.Unlock()
}

// Stop releases the ingest source, also after the source ended on its own.
// It does not fire OnEnded.
func (ot *OutTrack) Stop() {
	ot.state.Store(int32(TrackStateEnded))
	ot.stopOnce.Do(func() {
		if ot.stop != nil {
			ot.stop()
		}
	})
}

// end marks the track ended because its source went away.
func (ot *OutTrack) end() {
	if TrackState(ot.state.Swap(int32(TrackStateEnded))) == TrackStateEnded {
		return
	}
	ot.mu.Lock()
	fn := ot.onEnded
	ot.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// forward writes pkt unless the track is muted or ended.
func (ot *OutTrack) forward(pkt *rtp.Packet) error {
	if ot.GetState() != TrackStateOk {
		return nil
	}
	return ot.WriteRTP(pkt)
}
