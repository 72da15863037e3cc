package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

// SetMedia switches the microphone, camera or screen share. Muting the
// microphone keeps its track attached and only drops packets; turning the
// camera off releases it.
func (s *Session) SetMedia(ctx context.Context, kind core.MediaKind, on bool) error {
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		wasActive := s.store.Media().Active()
		var err error
		switch kind {
		case core.MediaAudio:
			err = s.setAudio(ctx, on)
		case core.MediaVideo:
			err = s.setVideo(ctx, on)
		case core.MediaScreen:
			if on {
				err = s.startScreen(ctx)
			} else {
				s.stopScreen()
			}
		default:
			return fmt.Errorf("%w: media kind %q", domain.ErrInvalidIntent, kind)
		}
		if err != nil {
			return err
		}
		if !wasActive && s.store.Media().Active() {
			s.callParticipants()
		}
		return nil
	})
}

func (s *Session) setAudio(ctx context.Context, on bool) error {
	m := s.store.Media()
	if on {
		tr, err := s.acquire(ctx, core.MediaAudio)
		if err != nil {
			return err
		}
		tr.SetEnabled(true)
		s.mesh.SetLocalTrack(webrtc.RTPCodecTypeAudio, tr)
	} else if tr, ok := s.tracks[core.MediaAudio]; ok {
		tr.SetEnabled(false)
	}
	m.Audio = on
	s.store.SetMedia(m)
	return nil
}

func (s *Session) setVideo(ctx context.Context, on bool) error {
	m := s.store.Media()
	if on {
		tr, err := s.acquire(ctx, core.MediaVideo)
		if err != nil {
			return err
		}
		tr.SetEnabled(true)
		if !m.Screen {
			s.mesh.SetLocalTrack(webrtc.RTPCodecTypeVideo, tr)
		}
	} else {
		if tr, ok := s.tracks[core.MediaVideo]; ok {
			s.releaseTrack(core.MediaVideo, tr)
		}
		if !m.Screen {
			s.mesh.SetLocalTrack(webrtc.RTPCodecTypeVideo, nil)
		}
	}
	m.Video = on
	s.store.SetMedia(m)
	return nil
}

// startScreen puts the screen capture on the outbound video sender in
// place of the camera.
func (s *Session) startScreen(ctx context.Context) error {
	if _, ok := s.tracks[core.MediaScreen]; ok {
		return nil
	}
	tr, err := s.acquire(ctx, core.MediaScreen)
	if err != nil {
		return err
	}
	tr.OnEnded(func() {
		s.post(func() {
			if s.tracks[core.MediaScreen] == tr {
				s.logger.Info().Msg("screen share ended by source")
				s.stopScreen()
			}
		})
	})
	s.mesh.SetLocalTrack(webrtc.RTPCodecTypeVideo, tr)
	m := s.store.Media()
	m.Screen = true
	s.store.SetMedia(m)
	return nil
}

// stopScreen restores the camera, if it is on.
func (s *Session) stopScreen() {
	if tr, ok := s.tracks[core.MediaScreen]; ok {
		s.releaseTrack(core.MediaScreen, tr)
	}
	m := s.store.Media()
	if cam, ok := s.tracks[core.MediaVideo]; ok && m.Video {
		s.mesh.SetLocalTrack(webrtc.RTPCodecTypeVideo, cam)
	} else {
		s.mesh.SetLocalTrack(webrtc.RTPCodecTypeVideo, nil)
	}
	m.Screen = false
	s.store.SetMedia(m)
}

// callParticipants offers to everyone already present once local media
// starts. Later arrivals are called from their JOIN. Links that are already
// negotiating are left to the mesh.
func (s *Session) callParticipants() {
	self := s.store.View().Self.ID
	for id := range s.store.View().Participants {
		if id != self {
			s.mesh.Initiate(id)
		}
	}
}

func (s *Session) acquire(ctx context.Context, kind core.MediaKind) (core.LocalTrack, error) {
	if tr, ok := s.tracks[kind]; ok {
		return tr, nil
	}
	if s.deps.Devices == nil {
		return nil, fmt.Errorf("%w: no media devices", domain.ErrDeviceUnavailable)
	}
	tr, err := s.deps.Devices.Acquire(ctx, kind)
	if err != nil {
		s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("acquire failed")
		return nil, err
	}
	s.tracks[kind] = tr
	return tr, nil
}

func (s *Session) releaseTrack(kind core.MediaKind, tr core.LocalTrack) {
	delete(s.tracks, kind)
	if s.deps.Devices != nil {
		s.deps.Devices.Release(tr)
	}
}

// SetCaptions starts or stops local speech recognition.
func (s *Session) SetCaptions(on bool) error {
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		if on {
			if err := s.captions.Enable(); err != nil {
				return err
			}
		} else {
			s.captions.Disable()
		}
		s.syncCaptions()
		return nil
	})
}

// syncCaptions mirrors the pipeline into the store; a permission error
// may have switched captions off since the last intent.
func (s *Session) syncCaptions() {
	m := s.store.Media()
	m.Captions = s.captions.Enabled()
	s.store.SetMedia(m)
	if err := s.captions.Err(); err != nil && err != s.captionErr {
		s.captionErr = err
		s.store.SetLastError(err.Error())
	}
}

// SetRecording starts or stops the local recording timer.
func (s *Session) SetRecording(on bool) error {
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		m := s.store.Media()
		if on == m.Recording {
			return nil
		}
		if on {
			m.RecordingElapsed = 0
			s.startRecording()
		} else {
			s.stopRecording()
		}
		m.Recording = on
		s.store.SetMedia(m)
		return nil
	})
}

func (s *Session) startRecording() {
	ticker := s.deps.Clock.NewTicker(time.Second)
	stop := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				s.post(func() {
					select {
					case <-stop:
						return
					default:
					}
					s.store.SetRecordingElapsed(s.store.Media().RecordingElapsed + time.Second)
				})
			}
		}
	}()
	s.stopRec = func() { close(stop) }
}

func (s *Session) stopRecording() {
	if s.stopRec != nil {
		s.stopRec()
		s.stopRec = nil
	}
}
