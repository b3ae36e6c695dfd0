package peer

import (
	"sync"
	"time"

	"github.com/ekinols/roomrtc/pkg/api"
	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/ekinols/roomrtc/pkg/rtc"
)

// Manager owns one session per remote member of the current room and
// keeps the negotiation plane consistent: new members get an offer,
// incoming offers get an answer, candidates find their session or its
// queue. One mutex serializes all transitions; outbound packets are
// sent after the lock is released.
type Manager struct {
	mu       sync.Mutex
	engine   rtc.Engine
	send     func(t api.PT, data any)
	sessions map[string]*Session
	// orphaned candidates, keyed by sender, waiting for a session
	parked  map[string][][]byte
	members int
	timeout time.Duration
	log     *logger.Logger
}

func NewManager(engine rtc.Engine, send func(t api.PT, data any), timeout time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		engine:   engine,
		send:     send,
		sessions: make(map[string]*Session, 4),
		parked:   make(map[string][][]byte),
		timeout:  timeout,
		log:      log,
	}
}

// UserConnected starts the caller flow towards a new room member.
func (m *Manager) UserConnected(id string) {
	m.mu.Lock()
	m.members++
	s, err := m.createLocked(id)
	if err != nil {
		m.mu.Unlock()
		m.log.Error().Err(err).Msgf("session for %v", id)
		return
	}
	sdp, err := s.startOffer()
	if err != nil {
		m.dropLocked(id)
		m.mu.Unlock()
		m.log.Error().Err(err).Msgf("offer for %v", id)
		return
	}
	m.mu.Unlock()
	m.send(api.Offer, api.SignalRequest{Target: id, Sdp: sdp})
}

// UserDisconnected closes the member's session. The count decrement is
// defensive, the authoritative value arrives with the room info event.
func (m *Manager) UserDisconnected(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked(id)
	delete(m.parked, id)
	if m.members > 1 {
		m.members--
	}
}

// HandleOffer runs the callee flow. An offer over an existing session
// replaces it, keeping any candidates that were never flushed.
func (m *Manager) HandleOffer(from string, sdp []byte) {
	m.mu.Lock()
	if old, ok := m.sessions[from]; ok {
		if !old.flushed {
			m.parked[from] = append(m.parked[from], old.pending...)
		}
		m.dropLocked(from)
	}
	s, err := m.createLocked(from)
	if err != nil {
		m.mu.Unlock()
		m.log.Error().Err(err).Msgf("session for %v", from)
		return
	}
	answer, err := s.acceptOffer(sdp)
	if err != nil {
		m.dropLocked(from)
		m.mu.Unlock()
		m.log.Error().Err(err).Msgf("offer from %v", from)
		return
	}
	m.mu.Unlock()
	m.send(api.Answer, api.SignalRequest{Target: from, Sdp: answer})
}

func (m *Manager) HandleAnswer(from string, sdp []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[from]
	if !ok {
		m.log.Warn().Msgf("answer from %v without a session", from)
		return
	}
	if err := s.acceptAnswer(sdp); err != nil {
		m.dropLocked(from)
		m.log.Error().Err(err).Msgf("answer from %v", from)
	}
}

// HandleCandidate applies or queues one remote candidate. Candidates
// that outrun their offer park until the session exists.
func (m *Manager) HandleCandidate(from string, candidate []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[from]; ok {
		s.addCandidate(candidate)
		return
	}
	m.parked[from] = append(m.parked[from], candidate)
}

// Close shuts one session down, for explicit hang-ups.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked(id)
	delete(m.parked, id)
}

// CloseAll tears the negotiation plane down, e.g. on leaving the room.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.sessions {
		m.dropLocked(id)
	}
	m.parked = make(map[string][][]byte)
	m.members = 0
}

// SetMemberCount overrides the tracked size of the room.
func (m *Manager) SetMemberCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = n
}

func (m *Manager) MemberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// State reports the negotiation state towards one remote identity.
func (m *Manager) State(id string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Closed, false
	}
	return s.state, true
}

func (m *Manager) createLocked(id string) (*Session, error) {
	if old, ok := m.sessions[id]; ok {
		old.close()
	}
	media, err := m.engine.NewSession(func(candidate []byte) {
		m.emitCandidate(id, candidate)
	})
	if err != nil {
		return nil, err
	}
	s := newSession(id, media, m.log)
	if parked := m.parked[id]; len(parked) > 0 {
		s.pending = parked
		delete(m.parked, id)
	}
	if m.timeout > 0 {
		s.deadline = time.AfterFunc(m.timeout, func() { m.expire(id, s) })
	}
	m.sessions[id] = s
	return s, nil
}

func (m *Manager) dropLocked(id string) {
	if s, ok := m.sessions[id]; ok {
		s.close()
		delete(m.sessions, id)
	}
}

// emitCandidate forwards a locally gathered candidate unless the
// session has been closed in the meantime.
func (m *Manager) emitCandidate(id string, candidate []byte) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || s.state == Closed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.send(api.Candidate, api.SignalRequest{Target: id, Candidate: candidate})
}

// expire reaps a session stuck mid-negotiation.
func (m *Manager) expire(id string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[id]
	if !ok || cur != s || cur.state == Stable {
		return
	}
	m.log.Warn().Msgf("negotiation with %v timed out in %v", id, cur.state)
	m.dropLocked(id)
}
