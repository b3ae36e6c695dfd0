package api

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestPacketDecode(t *testing.T) {
	raw := []byte(`{"t":10,"p":{"roomId":"r1","password":"sesame"}}`)
	var in In
	if err := json.Unmarshal(raw, &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.T != JoinRoom {
		t.Fatalf("expected JoinRoom, got %v", in.T)
	}
	rq := Unwrap[JoinRoomRequest](in.Payload)
	if rq == nil || rq.RoomId != "r1" || rq.Password != "sesame" {
		t.Fatalf("bad payload: %+v", rq)
	}
}

func TestSignalPayloadIsOpaque(t *testing.T) {
	// the server must forward sdp blobs byte for byte
	raw := []byte(`{"t":20,"p":{"target":"abc","sdp":{"type":"offer","sdp":"v=0\r\n"}}}`)
	var in In
	if err := json.Unmarshal(raw, &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rq := Unwrap[SignalRequest](in.Payload)
	if rq == nil || rq.Target != "abc" {
		t.Fatalf("bad payload: %+v", rq)
	}
	if string(rq.Sdp) != `{"type":"offer","sdp":"v=0\r\n"}` {
		t.Fatalf("sdp blob was mangled: %s", rq.Sdp)
	}
}

func TestUnwrapMalformed(t *testing.T) {
	if rq := Unwrap[JoinRoomRequest]([]byte(`{"roomId":1}`)); rq != nil {
		t.Fatalf("expected nil on malformed payload, got %+v", rq)
	}
}

func TestRoundTrip(t *testing.T) {
	out, err := json.Marshal(Out{T: RoomJoined, Payload: RoomJoinedEvent{RoomId: "r1", MemberCount: 2}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var in In
	if err = json.Unmarshal(out, &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ev := Unwrap[RoomJoinedEvent](in.Payload)
	if in.T != RoomJoined || ev == nil || ev.MemberCount != 2 {
		t.Fatalf("round trip mismatch: %v %+v", in.T, ev)
	}
}
