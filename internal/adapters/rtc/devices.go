package rtc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

// Source describes where the RTP for one media kind arrives.
type Source struct {
	// Addr is a local UDP address such as "127.0.0.1:5004". Empty means the
	// device is not available.
	Addr string
	// Idle ends the track when no packet arrives for this long. Zero
	// disables the check.
	Idle time.Duration
}

// Devices exposes local capture as RTP streams pushed to UDP ports, e.g.
// by ffmpeg or gstreamer. One ingest runs per kind; repeated Acquire calls
// share it and the last Release stops it.
type Devices struct {
	sources  map[core.MediaKind]Source
	streamID string

	mu     sync.Mutex
	active map[core.MediaKind]*device
}

type device struct {
	ot   *OutTrack
	refs int
}

func NewDevices(sources map[core.MediaKind]Source) *Devices {
	return &Devices{
		sources:  sources,
		streamID: "meetsync-" + uuid.NewString(),
		active:   make(map[core.MediaKind]*device),
	}
}

func codecFor(kind core.MediaKind) webrtc.RTPCodecCapability {
	if kind == core.MediaAudio {
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
}

func (d *Devices) Acquire(ctx context.Context, kind core.MediaKind) (core.LocalTrack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dev, ok := d.active[kind]; ok && dev.ot.GetState() != TrackStateEnded {
		dev.refs++
		return dev.ot, nil
	}

	src, ok := d.sources[kind]
	if !ok || src.Addr == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrDeviceUnavailable, kind)
	}
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", src.Addr)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrPermissionDenied, kind, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDeviceUnavailable, kind, err)
	}

	track, err := webrtc.NewTrackLocalStaticRTP(codecFor(kind), string(kind), d.streamID)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDeviceUnavailable, kind, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	ot := NewOutTrack(track, cancel)
	d.active[kind] = &device{ot: ot, refs: 1}

	logger := log.With().Str("module", "media").Str("kind", string(kind)).Str("addr", conn.LocalAddr().String()).Logger()
	logger.Info().Msg("starting ingest")
	in := &ingest{conn: conn, ot: ot, idle: src.Idle}
	go func() {
		<-loopCtx.Done()
		_ = conn.Close()
	}()
	go in.loop(loopCtx, &logger)
	return ot, nil
}

func (d *Devices) Release(track core.LocalTrack) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for kind, dev := range d.active {
		if core.LocalTrack(dev.ot) != track {
			continue
		}
		dev.refs--
		if dev.refs > 0 {
			return
		}
		delete(d.active, kind)
		dev.ot.Stop()
		return
	}
}
