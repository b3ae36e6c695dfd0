// Package rtc abstracts WebRTC peer connections behind a small
// interface, so negotiation logic can be driven without real media.
package rtc

// Session is the media side of one negotiation with one remote peer.
// Descriptions and candidates cross the wire as raw JSON blobs.
type Session interface {
	// CreateOffer makes the local description and returns it encoded.
	CreateOffer() ([]byte, error)
	// CreateAnswer makes the answer to a previously applied remote
	// offer and returns it encoded.
	CreateAnswer() ([]byte, error)
	SetRemoteDescription(sdp []byte) error
	AddCandidate(candidate []byte) error
	Close() error
}

// Engine builds sessions. Implementations must deliver onCandidate
// callbacks asynchronously, never from inside a Session call.
type Engine interface {
	NewSession(onCandidate func(candidate []byte)) (Session, error)
}
