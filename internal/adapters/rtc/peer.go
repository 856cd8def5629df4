// Package rtc wraps a pion peer connection for the reference clients.
// The server never touches media; this adapter lives entirely on the
// observer and agent side of the signaling channel.
package rtc

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Hooks fire from pion goroutines and must not block.
type Hooks struct {
	OnTrack        func()
	OnICECandidate func(c webrtc.ICECandidateInit)
	OnFailure      func()
}

type Peer struct {
	pc    *webrtc.PeerConnection
	hooks Hooks
}

func Config(stunServers []string) webrtc.Configuration {
	if len(stunServers) == 0 {
		stunServers = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
}

func NewPeer(cfg webrtc.Configuration, hooks Hooks) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	p := &Peer{pc: pc, hooks: hooks}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateFailed || s == webrtc.ICEConnectionStateClosed {
			if p.hooks.OnFailure != nil {
				p.hooks.OnFailure()
			}
		}
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && p.hooks.OnICECandidate != nil {
			p.hooks.OnICECandidate(cand.ToJSON())
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("track received")
		if p.hooks.OnTrack != nil {
			p.hooks.OnTrack()
		}
	})

	return p, nil
}

// ApplyOfferCreateAnswer is the observer side: consume the remote offer
// and produce an answer. Candidates trickle via OnICECandidate.
func (p *Peer) ApplyOfferCreateAnswer(sdp string) (string, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return answer.SDP, nil
}

// CreateOffer is the agent side: announce a sendonly video section and
// produce the offer. Attaching a real capture source to the transceiver
// is outside the signaling core.
func (p *Peer) CreateOffer() (string, error) {
	if _, err := p.pc.AddTransceiverFromKind(
		webrtc.RTPCodecTypeVideo,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendonly},
	); err != nil {
		return "", err
	}
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	return offer.SDP, nil
}

func (p *Peer) ApplyAnswer(sdp string) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func (p *Peer) AddICECandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

func (p *Peer) Close() {
	if err := p.pc.Close(); err != nil {
		log.Warn().Err(err).Str("module", "rtc").Msg("peer close")
	}
}
