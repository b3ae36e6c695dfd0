package peer

import (
	"fmt"
	"time"

	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/ekinols/roomrtc/pkg/rtc"
)

type State uint8

const (
	Idle State = iota
	HaveLocalOffer
	HaveRemoteOffer
	Stable
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case HaveLocalOffer:
		return "have-local-offer"
	case HaveRemoteOffer:
		return "have-remote-offer"
	case Stable:
		return "stable"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one negotiation with one remote identity. Candidates
// arriving before the remote description are queued and flushed in
// arrival order, exactly once, right after the description applies.
//
// Sessions are not safe for concurrent use; the Manager serializes
// access to them.
type Session struct {
	remote   string
	state    State
	media    rtc.Session
	pending  [][]byte
	flushed  bool
	deadline *time.Timer
	log      *logger.Logger
}

func newSession(remote string, media rtc.Session, log *logger.Logger) *Session {
	return &Session{remote: remote, media: media, log: log}
}

func (s *Session) State() State { return s.state }

// startOffer makes the local offer; the session becomes the caller.
func (s *Session) startOffer() ([]byte, error) {
	if s.state != Idle {
		return nil, fmt.Errorf("offer in state %v", s.state)
	}
	sdp, err := s.media.CreateOffer()
	if err != nil {
		return nil, err
	}
	s.state = HaveLocalOffer
	return sdp, nil
}

// acceptOffer applies a remote offer and answers it; the session
// becomes the callee. Queued candidates flush between the two.
func (s *Session) acceptOffer(sdp []byte) ([]byte, error) {
	if s.state != Idle {
		return nil, fmt.Errorf("remote offer in state %v", s.state)
	}
	if err := s.media.SetRemoteDescription(sdp); err != nil {
		return nil, err
	}
	s.state = HaveRemoteOffer
	s.flush()
	answer, err := s.media.CreateAnswer()
	if err != nil {
		return nil, err
	}
	s.settle()
	return answer, nil
}

// acceptAnswer completes the caller side of the exchange.
func (s *Session) acceptAnswer(sdp []byte) error {
	if s.state != HaveLocalOffer {
		return fmt.Errorf("answer in state %v", s.state)
	}
	if err := s.media.SetRemoteDescription(sdp); err != nil {
		return err
	}
	s.flush()
	s.settle()
	return nil
}

func (s *Session) addCandidate(candidate []byte) {
	if s.state == Closed {
		return
	}
	if !s.flushed {
		s.pending = append(s.pending, candidate)
		return
	}
	if err := s.media.AddCandidate(candidate); err != nil {
		s.log.Warn().Err(err).Msgf("candidate rejected by %v", s.remote)
	}
}

func (s *Session) flush() {
	if s.flushed {
		return
	}
	s.flushed = true
	for _, c := range s.pending {
		if err := s.media.AddCandidate(c); err != nil {
			s.log.Warn().Err(err).Msgf("queued candidate rejected by %v", s.remote)
		}
	}
	s.pending = nil
}

func (s *Session) settle() {
	s.state = Stable
	if s.deadline != nil {
		s.deadline.Stop()
		s.deadline = nil
	}
}

// close is idempotent and drops whatever is still queued.
func (s *Session) close() {
	if s.state == Closed {
		return
	}
	s.state = Closed
	s.pending = nil
	if s.deadline != nil {
		s.deadline.Stop()
		s.deadline = nil
	}
	if err := s.media.Close(); err != nil {
		s.log.Warn().Err(err).Msgf("session close %v", s.remote)
	}
}
