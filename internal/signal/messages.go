// Package signal defines the wire contracts of the signaling channel.
// Every message is a JSON object with a "type" discriminator, dispatched
// the same way on the server and in the reference clients.
package signal

import "encoding/json"

type Type string

const (
	TypeHello             Type = "hello"              // server -> client, carries the connection handle
	TypeRegister          Type = "register"           // monitored client -> server
	TypeRequestConnection Type = "request-connection" // observer -> server
	TypeRequestOffer      Type = "request-offer"      // server -> monitored client
	TypeOffer             Type = "offer"              // monitored client -> server -> watchers
	TypeAnswer            Type = "answer"             // observer -> server -> monitored client
	TypeCandidate         Type = "candidate"          // either direction, routed by the relay
	TypeCheckStatus       Type = "check-status"       // observer -> server
	TypeStatus            Type = "status"             // server -> subscribers
	TypePing              Type = "ping"
	TypePong              Type = "pong"
)

// Envelope is the minimal decode used to pick a handler.
type Envelope struct {
	Type Type `json:"type"`
}

type Hello struct {
	Type   Type   `json:"type"`
	Handle string `json:"handle"`
}

type Register struct {
	Type     Type   `json:"type"`
	Identity string `json:"identity"`
}

type RequestConnection struct {
	Type   Type   `json:"type"`
	Target string `json:"target"`
}

// RequestOffer instructs the monitored client to start a fresh
// negotiation for one observer.
type RequestOffer struct {
	Type     Type   `json:"type"`
	Observer string `json:"observer"`
}

// Offer is tagged with the monitored identity that produced it. The
// Observer field names the requester the offer was produced for;
// watchers other than the addressee may still see it (fan-out is
// tolerated, not guaranteed point-to-point).
type Offer struct {
	Type     Type   `json:"type"`
	Target   string `json:"target"`
	Observer string `json:"observer,omitempty"`
	SDP      string `json:"sdp"`
}

type Answer struct {
	Type     Type   `json:"type"`
	Target   string `json:"target"`
	Observer string `json:"observer,omitempty"` // stamped by the relay on the way to the target
	SDP      string `json:"sdp"`
}

type Candidate struct {
	Type          Type    `json:"type"`
	Target        string  `json:"target"`
	Observer      string  `json:"observer,omitempty"`
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

type CheckStatus struct {
	Type     Type   `json:"type"`
	Identity string `json:"identity"`
}

type Status struct {
	Type     Type   `json:"type"`
	Identity string `json:"identity"`
	Online   bool   `json:"online"`
}

type Ping struct {
	Type Type `json:"type"`
}

// Marshal encodes a message. The payload structs contain only plain
// JSON-encodable fields, so the error is discarded.
func Marshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
