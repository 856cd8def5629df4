package negotiator

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/domain"
)

const inputBuffer = 64

// SignalSender is the outbound half of the signaling channel.
type SignalSender interface {
	SendRequest(target domain.Identity) error
	SendAnswer(target domain.Identity, sdp string) error
	SendCandidate(target domain.Identity, c webrtc.ICECandidateInit) error
}

// Peer is one negotiation attempt's peer connection.
type Peer interface {
	ApplyOfferCreateAnswer(sdp string) (string, error)
	AddICECandidate(c webrtc.ICECandidateInit) error
	Close()
}

// PeerHooks are the callbacks a fresh peer must honor. They fire from
// transport goroutines and must not block.
type PeerHooks struct {
	OnTrack        func()
	OnICECandidate func(c webrtc.ICECandidateInit)
	OnFailure      func()
}

// PeerFactory builds a fresh peer per negotiation attempt; Retrying
// tears the old one down and the next attempt starts clean.
type PeerFactory func(h PeerHooks) (Peer, error)

// Options tune one driver. Zero values fall back to the defaults:
// 5s retry interval, unbounded retries.
type Options struct {
	RetryInterval time.Duration
	// MaxRetries caps re-issued requests; 0 keeps the retry loop
	// unbounded, matching the observer UI's sustained "Connecting".
	MaxRetries int
	OnState    func(State)
}

type input struct {
	ev     *Event
	cand   *webrtc.ICECandidateInit
	online *bool
}

// Driver owns every field below exclusively; external feeds only push
// into the inputs channel.
type Driver struct {
	target  domain.Identity
	signal  SignalSender
	newPeer PeerFactory
	opts    Options

	inputs  chan input
	state   State
	peer    Peer
	timer   *time.Timer
	retries int
	pending []webrtc.ICECandidateInit
}

func NewDriver(target domain.Identity, sig SignalSender, newPeer PeerFactory, opts Options) *Driver {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Second
	}
	return &Driver{
		target:  target,
		signal:  sig,
		newPeer: newPeer,
		opts:    opts,
		inputs:  make(chan input, inputBuffer),
		state:   StateIdle,
	}
}

func (d *Driver) State() State { return d.state }

// Offer feeds a relayed offer for the driver's target.
func (d *Driver) Offer(sdp string) { d.push(input{ev: &Event{Kind: EventOffer, SDP: sdp}}) }

// Candidate feeds a relayed remote ICE candidate.
func (d *Driver) Candidate(c webrtc.ICECandidateInit) { d.push(input{cand: &c}) }

// TargetStatus feeds a presence push for the target.
func (d *Driver) TargetStatus(online bool) { d.push(input{online: &online}) }

// Stop terminates the negotiation and releases the peer.
func (d *Driver) Stop() { d.push(input{ev: &Event{Kind: EventTeardown}}) }

func (d *Driver) push(in input) {
	select {
	case d.inputs <- in:
	default:
		log.Warn().Str("module", "negotiator").Str("target", string(d.target)).Msg("input dropped, driver busy")
	}
}

// Run issues the first request and processes inputs until the machine
// terminates or ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	d.step(Event{Kind: EventRequest})

	for {
		select {
		case <-ctx.Done():
			d.step(Event{Kind: EventTeardown})
			return
		case in := <-d.inputs:
			d.handle(in)
			if d.state == StateTerminated {
				return
			}
		}
	}
}

func (d *Driver) handle(in input) {
	switch {
	case in.cand != nil:
		d.remoteCandidate(*in.cand)
	case in.online != nil:
		d.targetStatus(*in.online)
	case in.ev != nil:
		ev := *in.ev
		if ev.Kind == EventTimeout {
			d.retries++
			if d.opts.MaxRetries > 0 && d.retries > d.opts.MaxRetries {
				log.Info().Str("module", "negotiator").Str("target", string(d.target)).Int("retries", d.opts.MaxRetries).Msg("retry cap reached")
				ev = Event{Kind: EventTeardown}
			}
		}
		d.step(ev)
	}
}

func (d *Driver) step(ev Event) {
	next, actions := Next(d.state, ev)
	if next != d.state {
		log.Debug().Str("module", "negotiator").Str("target", string(d.target)).Str("from", d.state.String()).Str("to", next.String()).Msg("transition")
	}
	d.state = next
	for _, a := range actions {
		d.execute(a)
	}
	if next == StateLive {
		d.retries = 0
	}
	// Report d.state, not next: applyOffer steps the machine again from
	// inside the action loop, and the outer report must not roll back.
	if d.opts.OnState != nil {
		d.opts.OnState(d.state)
	}
	// Retrying is transient: tear-down actions ran, re-issue now.
	if d.state == StateRetrying {
		d.step(Event{Kind: EventRequest})
	}
}

func (d *Driver) execute(a Action) {
	switch a.Kind {
	case ActionSendRequest:
		if err := d.signal.SendRequest(d.target); err != nil {
			log.Warn().Err(err).Str("module", "negotiator").Str("target", string(d.target)).Msg("request send failed")
		}
	case ActionApplyOffer:
		d.applyOffer(a.SDP)
	case ActionClosePeer:
		// Retry and teardown restart negotiation from scratch; buffered
		// candidates belong to the attempt being discarded.
		d.closePeer()
		d.pending = nil
	case ActionStartTimer:
		d.startTimer()
	case ActionStopTimer:
		d.stopTimer()
	}
}

func (d *Driver) applyOffer(sdp string) {
	d.closePeer()

	hooks := PeerHooks{
		OnTrack:        func() { d.push(input{ev: &Event{Kind: EventTrack}}) },
		OnICECandidate: d.localCandidate,
		OnFailure:      func() { d.push(input{ev: &Event{Kind: EventICEFailed}}) },
	}
	peer, err := d.newPeer(hooks)
	if err != nil {
		log.Error().Err(err).Str("module", "negotiator").Str("target", string(d.target)).Msg("peer create failed")
		return // the running timer recovers via Retrying
	}
	d.peer = peer

	answer, err := peer.ApplyOfferCreateAnswer(sdp)
	if err != nil {
		log.Error().Err(err).Str("module", "negotiator").Str("target", string(d.target)).Msg("apply offer failed")
		d.closePeer()
		return
	}
	for _, c := range d.pending {
		if err := peer.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "negotiator").Str("target", string(d.target)).Msg("buffered candidate rejected")
		}
	}
	d.pending = nil

	if err := d.signal.SendAnswer(d.target, answer); err != nil {
		log.Error().Err(err).Str("module", "negotiator").Str("target", string(d.target)).Msg("answer send failed")
		d.closePeer()
		return
	}
	d.step(Event{Kind: EventAnswerSent})
}

func (d *Driver) localCandidate(c webrtc.ICECandidateInit) {
	if err := d.signal.SendCandidate(d.target, c); err != nil {
		log.Warn().Err(err).Str("module", "negotiator").Str("target", string(d.target)).Msg("candidate send failed")
	}
}

// remoteCandidate buffers candidates that arrive before the offer.
func (d *Driver) remoteCandidate(c webrtc.ICECandidateInit) {
	if d.peer == nil {
		d.pending = append(d.pending, c)
		return
	}
	if err := d.peer.AddICECandidate(c); err != nil {
		log.Warn().Err(err).Str("module", "negotiator").Str("target", string(d.target)).Msg("candidate rejected")
	}
}

func (d *Driver) targetStatus(online bool) {
	if !online {
		// Below Live the stall is indistinguishable from an offline
		// target anyway; the retry loop keeps going.
		d.step(Event{Kind: EventTargetOffline})
		return
	}
	if d.state == StateIdle {
		d.step(Event{Kind: EventRequest})
	}
}

// closePeer releases the peer but leaves d.pending alone: candidates
// that outran the offer must survive the defensive close in applyOffer.
func (d *Driver) closePeer() {
	if d.peer != nil {
		d.peer.Close()
		d.peer = nil
	}
}

func (d *Driver) startTimer() {
	d.stopTimer()
	d.timer = time.AfterFunc(d.opts.RetryInterval, func() {
		d.push(input{ev: &Event{Kind: EventTimeout}})
	})
}

func (d *Driver) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
