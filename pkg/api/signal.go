package api

import "github.com/goccy/go-json"

// SignalRequest addresses one negotiation message (offer, answer or
// candidate) to another connection. Exactly one of Sdp or Candidate is
// set depending on the packet type; the server never looks inside.
type SignalRequest struct {
	Target    string          `json:"target"`
	Sdp       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// SignalEvent is the relayed form of SignalRequest with the target
// replaced by the sender identity.
type SignalEvent struct {
	From      string          `json:"from"`
	Sdp       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}
