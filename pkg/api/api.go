// Package api defines the wire protocol between the signaling server and its clients.
//
// Each message is a JSON-encoded packet of the following structure:
//
//	t - (required) one of the predefined unique packet types;
//	p - (optional) packet payload with arbitrary data.
//
// Packets differentiate by their predefined types with which it is
// possible to unwrap the payload into distinct request/event data
// structures. SDP and ICE payloads are never inspected by the server,
// they are kept as raw JSON and forwarded verbatim.
package api

import (
	"github.com/goccy/go-json"
)

type PT uint8

type In struct {
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // should be json.RawMessage for 2-pass unmarshal
}

type Out struct {
	T       PT  `json:"t"`
	Payload any `json:"p,omitempty"`
}

// Packet codes:
//
//	1x - room requests (client to server)
//	2x - negotiation messages (relayed both ways)
//	3x - room lifecycle events (server to client)
//	4x - membership events (server to client)
const (
	JoinRoom  PT = 10
	LeaveRoom PT = 11

	Offer     PT = 20
	Answer    PT = 21
	Candidate PT = 22

	RoomCreated    PT = 30
	RoomJoined     PT = 31
	RoomInfoUpdate PT = 32
	WrongPassword  PT = 33
	RoomFull       PT = 34
	Error          PT = 35

	UserConnected    PT = 40
	UserDisconnected PT = 41
)

func (p PT) String() string {
	switch p {
	case JoinRoom:
		return "JoinRoom"
	case LeaveRoom:
		return "LeaveRoom"
	case Offer:
		return "Offer"
	case Answer:
		return "Answer"
	case Candidate:
		return "Candidate"
	case RoomCreated:
		return "RoomCreated"
	case RoomJoined:
		return "RoomJoined"
	case RoomInfoUpdate:
		return "RoomInfoUpdate"
	case WrongPassword:
		return "WrongPassword"
	case RoomFull:
		return "RoomFull"
	case Error:
		return "Error"
	case UserConnected:
		return "UserConnected"
	case UserDisconnected:
		return "UserDisconnected"
	default:
		return "Unknown"
	}
}

// Unwrap deserializes a packet payload into the given type.
// Returns nil on malformed payloads.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}
