package signaler

import (
	"sync"
	"testing"

	"github.com/ekinols/roomrtc/pkg/api"
	"github.com/ekinols/roomrtc/pkg/com"
	"github.com/ekinols/roomrtc/pkg/config"
	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/goccy/go-json"
)

type fakeClient struct {
	id     com.Uid
	mu     sync.Mutex
	ev     []api.Out
	closed int
}

func newFakeClient() *fakeClient { return &fakeClient{id: com.NewUid()} }

func (f *fakeClient) Id() com.Uid { return f.id }

func (f *fakeClient) Notify(t api.PT, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ev = append(f.ev, api.Out{T: t, Payload: data})
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeClient) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeClient) events() []api.Out {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Out(nil), f.ev...)
}

func (f *fakeClient) types() []api.PT {
	var list []api.PT
	for _, out := range f.events() {
		list = append(list, out.T)
	}
	return list
}

func testHub(t *testing.T, capacity int) *Hub {
	t.Helper()
	conf := config.Signaler{Rooms: config.Rooms{Capacity: capacity}}
	return NewHub(conf, NewMetrics(func() float64 { return 0 }), logger.New(false))
}

func packet(t *testing.T, pt api.PT, payload any) api.In {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return api.In{T: pt, Payload: b}
}

func join(t *testing.T, h *Hub, c *fakeClient, roomId, password string) {
	t.Helper()
	h.connect(c)
	h.route(c, packet(t, api.JoinRoom, api.JoinRoomRequest{RoomId: roomId, Password: password}))
}

func TestHubJoinNotifiesBeforeRelay(t *testing.T) {
	h := testHub(t, 10)
	a, b := newFakeClient(), newFakeClient()

	join(t, h, a, "r1", "")
	if got := a.types(); len(got) != 1 || got[0] != api.RoomCreated {
		t.Fatalf("expected RoomCreated for the first joiner, got %v", got)
	}

	join(t, h, b, "r1", "")
	if got := b.types(); len(got) != 1 || got[0] != api.RoomJoined {
		t.Fatalf("expected RoomJoined for the second joiner, got %v", got)
	}

	// b reaches a straight after joining
	h.route(b, packet(t, api.Offer, api.SignalRequest{
		Target: a.id.String(),
		Sdp:    json.RawMessage(`{"type":"offer"}`),
	}))

	got := a.types()
	want := []api.PT{api.RoomCreated, api.UserConnected, api.RoomInfoUpdate, api.Offer}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	offer := a.events()[3].Payload.(api.SignalEvent)
	if offer.From != b.id.String() {
		t.Fatalf("relayed offer must carry the sender, got %q", offer.From)
	}
}

func TestHubRelayToUnknownTargetIsDropped(t *testing.T) {
	h := testHub(t, 10)
	a := newFakeClient()
	join(t, h, a, "r1", "")

	h.route(a, packet(t, api.Candidate, api.SignalRequest{
		Target:    com.NewUid().String(),
		Candidate: json.RawMessage(`{"candidate":"x"}`),
	}))

	if n := h.stats.relayDropped.Load(); n != 1 {
		t.Fatalf("expected 1 dropped packet, got %d", n)
	}
	// the sender is not bothered about it
	if got := a.types(); len(got) != 1 {
		t.Fatalf("unexpected events on the sender: %v", got)
	}
}

func TestHubRelayMalformed(t *testing.T) {
	h := testHub(t, 10)
	a := newFakeClient()
	h.connect(a)

	h.route(a, packet(t, api.Offer, api.SignalRequest{}))
	got := a.types()
	if len(got) != 1 || got[0] != api.Error {
		t.Fatalf("expected an Error event, got %v", got)
	}
}

func TestHubWrongPasswordAndFullRoom(t *testing.T) {
	h := testHub(t, 2)

	owner := newFakeClient()
	join(t, h, owner, "r1", "sesame")

	guest := newFakeClient()
	join(t, h, guest, "r1", "nope")
	if got := guest.types(); len(got) != 1 || got[0] != api.WrongPassword {
		t.Fatalf("expected WrongPassword, got %v", got)
	}

	second := newFakeClient()
	join(t, h, second, "r1", "sesame")
	third := newFakeClient()
	join(t, h, third, "r1", "sesame")
	if got := third.types(); len(got) != 1 || got[0] != api.RoomFull {
		t.Fatalf("expected RoomFull, got %v", got)
	}
}

func TestHubDisconnectCleanup(t *testing.T) {
	h := testHub(t, 10)
	a, b := newFakeClient(), newFakeClient()
	join(t, h, a, "r1", "")
	join(t, h, b, "r1", "")

	h.disconnect(b)
	got := a.types()
	want := []api.PT{api.RoomCreated, api.UserConnected, api.RoomInfoUpdate,
		api.UserDisconnected, api.RoomInfoUpdate}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	info := a.events()[4].Payload.(api.RoomInfoEvent)
	if info.MemberCount != 1 {
		t.Fatalf("expected 1 member left, got %d", info.MemberCount)
	}
	if h.registry.RoomCount() != 1 {
		t.Fatal("room with a remaining member must survive")
	}

	// double disconnect must not produce duplicate events
	h.disconnect(b)
	if n := len(a.types()); n != len(want) {
		t.Fatalf("duplicate events after a double disconnect: %d", n)
	}

	h.disconnect(a)
	if h.registry.RoomCount() != 0 {
		t.Fatal("empty room must be deleted")
	}
}

func TestHubExplicitLeave(t *testing.T) {
	h := testHub(t, 10)
	a, b := newFakeClient(), newFakeClient()
	join(t, h, a, "r1", "")
	join(t, h, b, "r1", "")

	h.route(b, packet(t, api.LeaveRoom, api.LeaveRoomRequest{RoomId: "r1"}))
	got := a.types()
	if got[len(got)-2] != api.UserDisconnected {
		t.Fatalf("expected UserDisconnected broadcast, got %v", got)
	}

	// b is free to join another room afterwards
	h.route(b, packet(t, api.JoinRoom, api.JoinRoomRequest{RoomId: "r2"}))
	types := b.types()
	if types[len(types)-1] != api.RoomCreated {
		t.Fatalf("expected RoomCreated in r2, got %v", types)
	}
}

func TestHubDisconnectAll(t *testing.T) {
	h := testHub(t, 10)
	a, b := newFakeClient(), newFakeClient()
	join(t, h, a, "r1", "")
	join(t, h, b, "r2", "")

	h.DisconnectAll()
	for _, c := range []*fakeClient{a, b} {
		types := c.types()
		if types[len(types)-1] != api.Error {
			t.Fatalf("expected a shutdown notice last, got %v", types)
		}
		if c.closeCount() != 1 {
			t.Fatalf("expected one socket close, got %d", c.closeCount())
		}
	}
}

func TestHubUnknownPacket(t *testing.T) {
	h := testHub(t, 10)
	a := newFakeClient()
	h.connect(a)

	h.route(a, api.In{T: api.PT(250)})
	if got := a.types(); len(got) != 1 || got[0] != api.Error {
		t.Fatalf("expected an Error event, got %v", got)
	}
}
