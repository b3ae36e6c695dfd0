package peer

import (
	"sync"
	"testing"
	"time"

	"github.com/ekinols/roomrtc/pkg/api"
	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/ekinols/roomrtc/pkg/rtc"
)

type fakeEngine struct {
	mu       sync.Mutex
	sessions []*fakeMedia
	gatherer []func([]byte)
}

func (e *fakeEngine) NewSession(onCandidate func(candidate []byte)) (rtc.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	media := &fakeMedia{}
	e.sessions = append(e.sessions, media)
	e.gatherer = append(e.gatherer, onCandidate)
	return media, nil
}

func (e *fakeEngine) last() (*fakeMedia, func([]byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.sessions)
	return e.sessions[n-1], e.gatherer[n-1]
}

type recorder struct {
	mu  sync.Mutex
	out []api.Out
}

func (r *recorder) send(t api.PT, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, api.Out{T: t, Payload: data})
}

func (r *recorder) sent() []api.Out {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.Out(nil), r.out...)
}

func testManager(timeout time.Duration) (*Manager, *fakeEngine, *recorder) {
	engine := &fakeEngine{}
	rec := &recorder{}
	return NewManager(engine, rec.send, timeout, logger.New(false)), engine, rec
}

func TestManagerCallsNewMember(t *testing.T) {
	m, _, rec := testManager(0)
	m.UserConnected("x")

	sent := rec.sent()
	if len(sent) != 1 || sent[0].T != api.Offer {
		t.Fatalf("expected one offer, got %v", sent)
	}
	rq := sent[0].Payload.(api.SignalRequest)
	if rq.Target != "x" || len(rq.Sdp) == 0 {
		t.Fatalf("bad offer request: %+v", rq)
	}
	if state, ok := m.State("x"); !ok || state != HaveLocalOffer {
		t.Fatalf("expected have-local-offer, got %v", state)
	}
}

func TestManagerAnswersIncomingOffer(t *testing.T) {
	m, engine, rec := testManager(0)
	m.HandleOffer("x", []byte(`{"type":"offer"}`))

	sent := rec.sent()
	if len(sent) != 1 || sent[0].T != api.Answer {
		t.Fatalf("expected one answer, got %v", sent)
	}
	if state, _ := m.State("x"); state != Stable {
		t.Fatalf("expected stable, got %v", state)
	}
	media, _ := engine.last()
	if media.closed != 0 {
		t.Fatal("session must stay open")
	}
}

func TestManagerParksEarlyCandidates(t *testing.T) {
	m, engine, _ := testManager(0)

	// candidates race ahead of the offer that created them
	m.HandleCandidate("x", []byte("c1"))
	m.HandleCandidate("x", []byte("c2"))
	if m.Len() != 0 {
		t.Fatal("candidates alone must not make a session")
	}

	m.HandleOffer("x", []byte(`{"type":"offer"}`))
	media, _ := engine.last()
	if len(media.applied) != 2 ||
		string(media.applied[0]) != "c1" || string(media.applied[1]) != "c2" {
		t.Fatalf("parked candidates must apply in order, got %q", media.applied)
	}
	if len(m.parked) != 0 {
		t.Fatal("parked queue must be consumed")
	}
}

func TestManagerAnswerWithoutSession(t *testing.T) {
	m, _, rec := testManager(0)
	m.HandleAnswer("ghost", []byte(`{"type":"answer"}`))
	if len(rec.sent()) != 0 || m.Len() != 0 {
		t.Fatal("stray answer must be ignored")
	}
}

func TestManagerCloseStopsCandidateEmission(t *testing.T) {
	m, engine, rec := testManager(0)
	m.UserConnected("x")
	_, gather := engine.last()

	gather([]byte("c1"))
	m.Close("x")
	gather([]byte("c2"))

	var candidates int
	for _, out := range rec.sent() {
		if out.T == api.Candidate {
			candidates++
		}
	}
	if candidates != 1 {
		t.Fatalf("expected exactly 1 emitted candidate, got %d", candidates)
	}

	m.Close("x") // second close is a no-op
	media, _ := engine.last()
	if media.closed != 1 {
		t.Fatalf("expected one media close, got %d", media.closed)
	}
}

func TestManagerMemberCount(t *testing.T) {
	m, _, _ := testManager(0)
	m.SetMemberCount(3)
	m.UserDisconnected("x")
	if m.MemberCount() != 2 {
		t.Fatalf("expected defensive decrement to 2, got %d", m.MemberCount())
	}
	// never below one while the room is alive
	m.UserDisconnected("y")
	m.UserDisconnected("z")
	if m.MemberCount() != 1 {
		t.Fatalf("expected 1, got %d", m.MemberCount())
	}
	// the server count wins
	m.SetMemberCount(5)
	if m.MemberCount() != 5 {
		t.Fatalf("expected 5, got %d", m.MemberCount())
	}
}

func TestManagerResumesAfterRoomShrinks(t *testing.T) {
	m, _, rec := testManager(0)
	m.UserConnected("x")
	m.UserDisconnected("x")
	if m.Len() != 0 {
		t.Fatal("session must be gone")
	}

	m.UserConnected("y")
	sent := rec.sent()
	last := sent[len(sent)-1]
	if last.T != api.Offer || last.Payload.(api.SignalRequest).Target != "y" {
		t.Fatalf("expected a fresh offer to y, got %v", last)
	}
}

func TestManagerNegotiationTimeout(t *testing.T) {
	m, _, _ := testManager(20 * time.Millisecond)
	m.UserConnected("x") // stuck in have-local-offer, no answer coming

	deadline := time.After(2 * time.Second)
	for m.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("stuck session was not reaped")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManagerCloseAll(t *testing.T) {
	m, engine, _ := testManager(0)
	m.UserConnected("x")
	m.HandleOffer("y", []byte(`{"type":"offer"}`))
	m.HandleCandidate("ghost", []byte("c1"))

	m.CloseAll()
	if m.Len() != 0 || len(m.parked) != 0 || m.MemberCount() != 0 {
		t.Fatal("close-all must reset the negotiation plane")
	}
	for _, media := range engine.sessions {
		if media.closed != 1 {
			t.Fatal("every media session must be closed")
		}
	}
}

func TestManagersNegotiateToStable(t *testing.T) {
	var a, b *Manager
	ea, eb := &fakeEngine{}, &fakeEngine{}
	log := logger.New(false)

	deliver := func(to func() *Manager, from string) func(api.PT, any) {
		return func(t api.PT, data any) {
			rq := data.(api.SignalRequest)
			switch t {
			case api.Offer:
				to().HandleOffer(from, rq.Sdp)
			case api.Answer:
				to().HandleAnswer(from, rq.Sdp)
			case api.Candidate:
				to().HandleCandidate(from, rq.Candidate)
			}
		}
	}
	a = NewManager(ea, deliver(func() *Manager { return b }, "A"), 0, log)
	b = NewManager(eb, deliver(func() *Manager { return a }, "B"), 0, log)

	// A observes B joining the room and calls it
	a.UserConnected("B")

	if state, _ := a.State("B"); state != Stable {
		t.Fatalf("caller must settle, got %v", state)
	}
	if state, _ := b.State("A"); state != Stable {
		t.Fatalf("callee must settle, got %v", state)
	}

	// trickled candidates cross over and apply directly
	_, gather := ea.last()
	gather([]byte(`{"candidate":"host"}`))
	media, _ := eb.last()
	if len(media.applied) != 1 {
		t.Fatalf("expected the candidate on the callee side, got %d", len(media.applied))
	}
}
