package rtc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

const maxPacketSize = 1500

// ingest reads RTP datagrams from conn and forwards them to ot until ctx is
// cancelled or the source goes quiet for longer than idle (when idle > 0).
type ingest struct {
	conn net.PacketConn
	ot   *OutTrack
	idle time.Duration
}

func (in *ingest) loop(ctx context.Context, logger *zerolog.Logger) {
	defer in.conn.Close()

	buf := make([]byte, maxPacketSize)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("ingest stopped")
			return
		default:
		}
		if in.idle > 0 {
			if err := in.conn.SetReadDeadline(time.Now().Add(in.idle)); err != nil {
				logger.Error().Err(err).Msg("ingest set deadline")
				in.ot.end()
				return
			}
		}
		n, _, err := in.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Info().Dur("idle", in.idle).Msg("source went quiet, track ended")
			} else {
				logger.Error().Err(err).Msg("ingest read error, track ended")
			}
			in.ot.end()
			return
		}

		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			logger.Debug().Err(err).Msg("dropping non-RTP datagram")
			continue
		}
		if err := in.ot.forward(pkt); err != nil {
			logger.Debug().Err(err).Msg("write RTP error")
		}
	}
}
