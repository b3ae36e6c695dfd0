package peer

import (
	"errors"
	"sync"
	"testing"

	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/ekinols/roomrtc/pkg/rtc"
)

// fakeMedia records the call sequence instead of doing WebRTC.
type fakeMedia struct {
	mu         sync.Mutex
	calls      []string
	applied    [][]byte
	closed     int
	failRemote bool
}

func (f *fakeMedia) CreateOffer() ([]byte, error) {
	f.record("offer")
	return []byte(`{"type":"offer"}`), nil
}

func (f *fakeMedia) CreateAnswer() ([]byte, error) {
	f.record("answer")
	return []byte(`{"type":"answer"}`), nil
}

func (f *fakeMedia) SetRemoteDescription(sdp []byte) error {
	if f.failRemote {
		return errors.New("bad description")
	}
	f.record("remote")
	return nil
}

func (f *fakeMedia) AddCandidate(candidate []byte) error {
	f.record("candidate")
	f.mu.Lock()
	f.applied = append(f.applied, candidate)
	f.mu.Unlock()
	return nil
}

func (f *fakeMedia) Close() error {
	f.record("close")
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *fakeMedia) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeMedia) callSeq() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var _ rtc.Session = (*fakeMedia)(nil)

func testSession(remote string) (*Session, *fakeMedia) {
	media := &fakeMedia{}
	return newSession(remote, media, logger.New(false)), media
}

func TestSessionCallerFlow(t *testing.T) {
	s, media := testSession("x")

	if _, err := s.startOffer(); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if s.State() != HaveLocalOffer {
		t.Fatalf("expected have-local-offer, got %v", s.State())
	}

	// remote candidates outrun the answer and wait in the queue
	s.addCandidate([]byte("c1"))
	s.addCandidate([]byte("c2"))
	if len(media.applied) != 0 {
		t.Fatal("candidates must not apply before the remote description")
	}

	if err := s.acceptAnswer([]byte(`{"type":"answer"}`)); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if s.State() != Stable {
		t.Fatalf("expected stable, got %v", s.State())
	}
	if string(media.applied[0]) != "c1" || string(media.applied[1]) != "c2" {
		t.Fatalf("queued candidates must flush in arrival order, got %q", media.applied)
	}
	if s.pending != nil {
		t.Fatal("queue must be drained after the flush")
	}
}

func TestSessionCalleeFlushesBeforeAnswer(t *testing.T) {
	s, media := testSession("x")
	s.addCandidate([]byte("c1"))
	s.addCandidate([]byte("c2"))

	answer, err := s.acceptOffer([]byte(`{"type":"offer"}`))
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if len(answer) == 0 || s.State() != Stable {
		t.Fatalf("expected an answer and a stable session, got %v", s.State())
	}

	want := []string{"remote", "candidate", "candidate", "answer"}
	got := media.callSeq()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSessionFlushHappensOnce(t *testing.T) {
	s, media := testSession("x")
	s.addCandidate([]byte("c1"))
	if _, err := s.acceptOffer([]byte(`{"type":"offer"}`)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	// late candidates apply directly now
	s.addCandidate([]byte("c2"))
	s.flush()
	if len(media.applied) != 2 {
		t.Fatalf("expected 2 applied candidates, got %d", len(media.applied))
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s, media := testSession("x")
	s.addCandidate([]byte("c1"))
	s.close()
	s.close()
	if media.closed != 1 {
		t.Fatalf("expected one close, got %d", media.closed)
	}
	if s.State() != Closed || s.pending != nil {
		t.Fatal("closed session must drop its queue")
	}
	// everything is a no-op from here on
	s.addCandidate([]byte("c2"))
	if len(media.applied) != 0 {
		t.Fatal("closed session must not apply candidates")
	}
}

func TestSessionRejectsWrongStates(t *testing.T) {
	s, _ := testSession("x")
	if err := s.acceptAnswer([]byte("{}")); err == nil {
		t.Fatal("answer without a local offer must fail")
	}
	if _, err := s.startOffer(); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if _, err := s.startOffer(); err == nil {
		t.Fatal("double offer must fail")
	}
	if _, err := s.acceptOffer([]byte("{}")); err == nil {
		t.Fatal("remote offer over a local one must fail")
	}
}
