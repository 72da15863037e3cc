package mesh

import (
	"errors"
	"fmt"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// Sender delivers outbound signaling. It reports false when the message
// was dropped.
type Sender interface {
	Send(ev protocol.Event) bool
}

// StreamSink receives remote streams once their link is connected.
type StreamSink interface {
	SetRemoteStream(stream core.RemoteStream)
	RemoveRemoteStream(peer domain.UserID)
}

// Coordinator keeps one Link per remote participant. All methods must be
// called from the session loop; PeerConnection callbacks are marshalled
// back onto it through post.
type Coordinator struct {
	self    domain.UserID
	factory core.PeerFactory
	signal  Sender
	sink    StreamSink
	post    func(func())

	links  map[domain.UserID]*Link
	tracks map[webrtc.RTPCodecType]webrtc.TrackLocal
}

func New(self domain.UserID, factory core.PeerFactory, signal Sender, sink StreamSink, post func(func())) *Coordinator {
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &Coordinator{
		self:    self,
		factory: factory,
		signal:  signal,
		sink:    sink,
		post:    post,
		links:   make(map[domain.UserID]*Link),
		tracks:  make(map[webrtc.RTPCodecType]webrtc.TrackLocal),
	}
}

// Initiate opens a link to peer and sends an offer. An existing link that
// is already negotiating or connected is left alone.
func (c *Coordinator) Initiate(peer domain.UserID) {
	if peer == c.self || peer == 0 {
		return
	}
	logger := log.With().Str("module", "mesh").Stringer("peer", peer).Logger()

	link, ok := c.links[peer]
	if ok && link.state != LinkIdle {
		logger.Debug().Str("state", link.state.String()).Msg("initiate skipped")
		return
	}
	if !ok {
		var err error
		if link, err = c.open(peer); err != nil {
			logger.Error().Err(err).Msg("open link failed")
			return
		}
	}

	offer, err := link.pc.CreateOffer()
	if err != nil {
		logger.Error().Err(fmt.Errorf("%w: create offer: %v", domain.ErrNegotiation, err)).Msg("initiate failed")
		return
	}
	link.state = LinkOffering
	c.sendDescription(peer, offer)
	logger.Info().Msg("offer sent")
}

// HandleSignal applies a signaling message relayed from another participant.
func (c *Coordinator) HandleSignal(sig protocol.Signal) {
	peer := sig.Sender
	if peer == 0 || peer == c.self {
		return
	}
	p := sig.Payload
	switch {
	case p.Type == protocol.SignalOffer:
		c.handleOffer(peer, p.SDP)
	case p.Type == protocol.SignalAnswer:
		c.handleAnswer(peer, p.SDP)
	case p.Candidate != nil:
		c.handleCandidate(peer, *p.Candidate)
	default:
		log.Warn().Str("module", "mesh").Stringer("peer", peer).Str("type", p.Type).Msg("unrecognised signal payload")
	}
}

func (c *Coordinator) handleOffer(peer domain.UserID, sdp string) {
	logger := log.With().Str("module", "mesh").Stringer("peer", peer).Logger()

	link, ok := c.links[peer]
	if ok && link.state == LinkOffering {
		// Both sides offered. The lower id keeps its offer.
		if c.self < peer {
			logger.Info().Msg("offer collision, keeping local offer")
			return
		}
		logger.Info().Msg("offer collision, yielding to remote offer")
		c.drop(link)
		ok = false
	}
	if ok && link.state == LinkConnected {
		// The peer restarted under the same id. Its old transport and
		// tracks are gone.
		logger.Info().Msg("offer on connected link, replacing link")
		c.drop(link)
		ok = false
	}
	if !ok {
		var err error
		if link, err = c.open(peer); err != nil {
			logger.Error().Err(err).Msg("open link failed")
			return
		}
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := link.pc.SetRemoteDescription(offer); err != nil {
		logger.Error().Err(fmt.Errorf("%w: apply offer: %v", domain.ErrNegotiation, err)).Msg("offer rejected")
		return
	}
	link.state = LinkAnswering
	answer, err := link.pc.CreateAnswer()
	if err != nil {
		logger.Error().Err(fmt.Errorf("%w: create answer: %v", domain.ErrNegotiation, err)).Msg("answer failed")
		return
	}
	c.sendDescription(peer, answer)
	c.connected(link)
	logger.Info().Msg("answer sent")
}

func (c *Coordinator) handleAnswer(peer domain.UserID, sdp string) {
	logger := log.With().Str("module", "mesh").Stringer("peer", peer).Logger()

	link, ok := c.links[peer]
	if !ok || link.state != LinkOffering {
		logger.Warn().Msg("unexpected answer dropped")
		return
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := link.pc.SetRemoteDescription(answer); err != nil {
		logger.Error().Err(fmt.Errorf("%w: apply answer: %v", domain.ErrNegotiation, err)).Msg("answer rejected")
		return
	}
	c.connected(link)
}

// handleCandidate applies a trickled candidate whatever the link state.
// Candidates that arrive too early are lost.
func (c *Coordinator) handleCandidate(peer domain.UserID, cand webrtc.ICECandidateInit) {
	link, ok := c.links[peer]
	if !ok {
		var err error
		if link, err = c.open(peer); err != nil {
			log.Error().Err(err).Str("module", "mesh").Stringer("peer", peer).Msg("open link failed")
			return
		}
	}
	if err := link.pc.AddICECandidate(cand); err != nil {
		log.Debug().Err(fmt.Errorf("%w: add candidate: %v", domain.ErrNegotiation, err)).
			Str("module", "mesh").Stringer("peer", peer).Str("state", link.state.String()).Msg("candidate dropped")
	}
}

// Close tears down the link to peer and withdraws its stream. A later
// signaling message for the same peer starts a fresh link.
func (c *Coordinator) Close(peer domain.UserID) {
	link, ok := c.links[peer]
	if !ok {
		return
	}
	if err := c.drop(link); err != nil {
		log.Warn().Err(err).Str("module", "mesh").Stringer("peer", peer).Msg("close error")
	}
}

// CloseAll tears down every link without waiting for negotiation to finish.
func (c *Coordinator) CloseAll() error {
	var errs error
	for _, link := range c.links {
		errs = multierr.Append(errs, c.drop(link))
	}
	clear(c.tracks)
	return errs
}

// SetLocalTrack replaces the outbound track of kind on every link. A nil
// track detaches it.
func (c *Coordinator) SetLocalTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) {
	if track == nil {
		delete(c.tracks, kind)
	} else {
		c.tracks[kind] = track
	}
	for peer, link := range c.links {
		if err := link.pc.ReplaceTrack(kind, track); err != nil {
			log.Warn().Err(err).Str("module", "mesh").Stringer("peer", peer).Str("kind", kind.String()).Msg("replace track failed")
		}
	}
}

// Has reports whether a link to peer exists.
func (c *Coordinator) Has(peer domain.UserID) bool {
	_, ok := c.links[peer]
	return ok
}

// States returns the current state of every link.
func (c *Coordinator) States() map[domain.UserID]LinkState {
	out := make(map[domain.UserID]LinkState, len(c.links))
	for peer, link := range c.links {
		out[peer] = link.state
	}
	return out
}

func (c *Coordinator) open(peer domain.UserID) (*Link, error) {
	pc, err := c.factory.NewPeer(peer)
	if err != nil {
		return nil, fmt.Errorf("%w: new peer: %v", domain.ErrNegotiation, err)
	}
	link := &Link{peer: peer, pc: pc, stream: core.RemoteStream{Peer: peer}}
	c.links[peer] = link

	for kind, track := range c.tracks {
		if err := pc.ReplaceTrack(kind, track); err != nil {
			log.Warn().Err(err).Str("module", "mesh").Stringer("peer", peer).Str("kind", kind.String()).Msg("attach track failed")
		}
	}

	pc.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		c.post(func() {
			if !c.current(link) {
				return
			}
			c.signal.Send(protocol.Signal{Target: peer, Payload: protocol.SignalPayload{Candidate: &cand}})
		})
	})
	pc.OnTrack(func(t core.RemoteTrack) {
		c.post(func() {
			if !c.current(link) {
				return
			}
			link.stream = link.stream.WithTrack(t)
			if link.state == LinkConnected {
				c.sink.SetRemoteStream(link.stream)
			}
		})
	})
	pc.OnClosed(func() {
		c.post(func() {
			if !c.current(link) {
				return
			}
			log.Info().Str("module", "mesh").Stringer("peer", peer).Msg("peer transport closed")
			c.drop(link)
		})
	})
	return link, nil
}

func (c *Coordinator) connected(link *Link) {
	link.state = LinkConnected
	if link.hasMedia() {
		c.sink.SetRemoteStream(link.stream)
	}
}

// current reports whether link is still the live link for its peer.
// Completions for replaced or closed links are ignored.
func (c *Coordinator) current(link *Link) bool {
	return c.links[link.peer] == link && link.state != LinkClosed
}

func (c *Coordinator) drop(link *Link) error {
	if link.state == LinkClosed {
		return nil
	}
	link.state = LinkClosed
	if c.links[link.peer] == link {
		delete(c.links, link.peer)
	}
	c.sink.RemoveRemoteStream(link.peer)
	if err := link.pc.Close(); err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
		return fmt.Errorf("close peer %s: %w", link.peer, err)
	}
	return nil
}

func (c *Coordinator) sendDescription(peer domain.UserID, desc webrtc.SessionDescription) {
	payload := protocol.SignalPayload{Type: desc.Type.String(), SDP: desc.SDP}
	if !c.signal.Send(protocol.Signal{Target: peer, Payload: payload}) {
		log.Warn().Str("module", "mesh").Stringer("peer", peer).Str("type", payload.Type).Msg("signal dropped")
	}
}
