// Package negotiator drives one observer-target negotiation attempt.
// The state machine is pure: Next maps (state, event) to (state,
// actions) and performs no I/O, so it is testable without a network or
// media stack. The Driver executes the actions against a signaling
// client and a peer connection.
package negotiator

type State int

const (
	StateIdle State = iota
	StateRequested
	StateOfferReceived
	StateAnswerSent
	StateLive
	StateRetrying
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StateOfferReceived:
		return "offer-received"
	case StateAnswerSent:
		return "answer-sent"
	case StateLive:
		return "live"
	case StateRetrying:
		return "retrying"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

type EventKind int

const (
	// EventRequest starts (or re-issues after Retrying) a negotiation.
	EventRequest EventKind = iota
	// EventOffer carries the target's SDP offer.
	EventOffer
	// EventAnswerSent reports that the driver applied the offer and
	// sent the answer back through the relay.
	EventAnswerSent
	// EventTrack fires on the first received media track.
	EventTrack
	// EventTimeout fires when the retry timer elapses before Live.
	EventTimeout
	// EventTargetOffline is the relay's status push for the target.
	EventTargetOffline
	// EventICEFailed reports a broken established media path.
	EventICEFailed
	// EventTeardown is the explicit observer-side stop.
	EventTeardown
)

type Event struct {
	Kind EventKind
	SDP  string // set for EventOffer
}

type ActionKind int

const (
	ActionSendRequest ActionKind = iota
	ActionApplyOffer             // create a peer, apply SDP, answer
	ActionClosePeer
	ActionStartTimer
	ActionStopTimer
)

type Action struct {
	Kind ActionKind
	SDP  string // set for ActionApplyOffer
}

// Next is the transition function. Unmatched (state, event) pairs keep
// the current state and emit no actions.
func Next(s State, ev Event) (State, []Action) {
	if ev.Kind == EventTeardown && s != StateTerminated {
		return StateTerminated, []Action{{Kind: ActionStopTimer}, {Kind: ActionClosePeer}}
	}

	switch s {
	case StateIdle, StateRetrying:
		if ev.Kind == EventRequest {
			return StateRequested, []Action{{Kind: ActionSendRequest}, {Kind: ActionStartTimer}}
		}

	case StateRequested:
		switch ev.Kind {
		case EventOffer:
			return StateOfferReceived, []Action{{Kind: ActionApplyOffer, SDP: ev.SDP}}
		case EventTimeout:
			return StateRetrying, []Action{{Kind: ActionClosePeer}}
		}

	case StateOfferReceived:
		switch ev.Kind {
		case EventAnswerSent:
			return StateAnswerSent, nil
		case EventTimeout:
			return StateRetrying, []Action{{Kind: ActionClosePeer}}
		}

	case StateAnswerSent:
		switch ev.Kind {
		case EventTrack:
			return StateLive, []Action{{Kind: ActionStopTimer}}
		case EventTimeout:
			return StateRetrying, []Action{{Kind: ActionClosePeer}}
		}

	case StateLive:
		switch ev.Kind {
		case EventTargetOffline, EventICEFailed:
			return StateIdle, []Action{{Kind: ActionStopTimer}, {Kind: ActionClosePeer}}
		}
	}

	return s, nil
}
