// Package peer implements the client side of the signaling protocol:
// a room client holding one server connection and a manager driving
// one WebRTC negotiation per remote room member.
package peer

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ekinols/roomrtc/pkg/api"
	"github.com/ekinols/roomrtc/pkg/com"
	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/ekinols/roomrtc/pkg/rtc"
)

var (
	ErrInvalidRoom   = errors.New("invalid room id")
	ErrWrongPassword = errors.New("wrong password")
	ErrRoomFull      = errors.New("room is full")
)

// EventSink receives room lifecycle events for whatever UI sits on
// top. Callbacks run on the connection's read loop, one at a time.
type EventSink interface {
	RoomCreated(ev api.RoomCreatedEvent)
	RoomJoined(ev api.RoomJoinedEvent)
	RoomInfo(ev api.RoomInfoEvent)
	JoinRejected(roomId string, reason error)
	UserConnected(id string)
	UserDisconnected(id string)
}

// RoomClient is one connection to the signaling server plus the room
// it is (or is about to be) in.
type RoomClient struct {
	conn *com.SocketClient
	mgr  *Manager
	sink EventSink
	log  *logger.Logger

	mu      sync.Mutex
	pending string // requested room, not confirmed yet
	roomId  string
	joined  bool
	closed  bool
}

// Dial connects to the signaling server and starts the packet loop.
// The client is idle until Join is called.
func Dial(address url.URL, engine rtc.Engine, sink EventSink, timeout time.Duration, log *logger.Logger) (*RoomClient, error) {
	conn, err := com.NewClient(address, log)
	if err != nil {
		return nil, err
	}
	c := &RoomClient{conn: conn, sink: sink, log: log}
	c.mgr = NewManager(engine, conn.Notify, timeout, log)
	conn.OnPacket(c.handle)
	go func() {
		<-conn.Listen()
		c.log.Info().Msg("server connection lost")
		c.teardown()
	}()
	return c, nil
}

// Join asks the server for the room. The outcome arrives as one of
// RoomCreated, RoomJoined or JoinRejected on the sink. Joining while
// in another room switches: the server releases the old membership on
// success, the confirmation tears the old sessions down here. Until
// then (and after a rejection) the current room stays intact.
func (c *RoomClient) Join(roomId, password string) error {
	roomId = strings.TrimSpace(roomId)
	if roomId == "" {
		return ErrInvalidRoom
	}
	c.mu.Lock()
	c.pending = roomId
	c.mu.Unlock()
	c.conn.Notify(api.JoinRoom, api.JoinRoomRequest{RoomId: roomId, Password: password})
	return nil
}

// Leave releases the room, closing every peer session. The connection
// stays usable for another Join.
func (c *RoomClient) Leave() {
	c.mu.Lock()
	roomId := c.roomId
	c.pending, c.roomId, c.joined = "", "", false
	c.mu.Unlock()
	if roomId != "" {
		c.conn.Notify(api.LeaveRoom, api.LeaveRoomRequest{RoomId: roomId})
	}
	c.mgr.CloseAll()
}

// Close leaves the room and drops the server connection. Idempotent.
func (c *RoomClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.Leave()
	c.conn.Disconnect()
}

func (c *RoomClient) Sessions() *Manager { return c.mgr }

// Joined reports the room the client is a member of, if any.
func (c *RoomClient) Joined() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomId, c.joined
}

func (c *RoomClient) teardown() {
	c.mu.Lock()
	c.pending, c.roomId, c.joined = "", "", false
	c.mu.Unlock()
	c.mgr.CloseAll()
}

func (c *RoomClient) handle(in api.In) error {
	switch in.T {
	case api.RoomCreated:
		ev := api.Unwrap[api.RoomCreatedEvent](in.Payload)
		if ev == nil {
			return errMalformed(in.T)
		}
		c.setJoined(ev.RoomId)
		c.mgr.SetMemberCount(1)
		c.sink.RoomCreated(*ev)
	case api.RoomJoined:
		ev := api.Unwrap[api.RoomJoinedEvent](in.Payload)
		if ev == nil {
			return errMalformed(in.T)
		}
		c.setJoined(ev.RoomId)
		c.mgr.SetMemberCount(ev.MemberCount)
		c.sink.RoomJoined(*ev)
	case api.RoomInfoUpdate:
		ev := api.Unwrap[api.RoomInfoEvent](in.Payload)
		if ev == nil {
			return errMalformed(in.T)
		}
		c.mgr.SetMemberCount(ev.MemberCount)
		c.sink.RoomInfo(*ev)
	case api.WrongPassword:
		c.rejected(in.Payload, ErrWrongPassword)
	case api.RoomFull:
		c.rejected(in.Payload, ErrRoomFull)
	case api.UserConnected:
		ev := api.Unwrap[api.UserEvent](in.Payload)
		if ev == nil {
			return errMalformed(in.T)
		}
		c.mgr.UserConnected(ev.Id)
		c.sink.UserConnected(ev.Id)
	case api.UserDisconnected:
		ev := api.Unwrap[api.UserEvent](in.Payload)
		if ev == nil {
			return errMalformed(in.T)
		}
		c.mgr.UserDisconnected(ev.Id)
		c.sink.UserDisconnected(ev.Id)
	case api.Offer, api.Answer, api.Candidate:
		ev := api.Unwrap[api.SignalEvent](in.Payload)
		if ev == nil || ev.From == "" {
			return errMalformed(in.T)
		}
		switch in.T {
		case api.Offer:
			c.mgr.HandleOffer(ev.From, ev.Sdp)
		case api.Answer:
			c.mgr.HandleAnswer(ev.From, ev.Sdp)
		case api.Candidate:
			c.mgr.HandleCandidate(ev.From, ev.Candidate)
		}
	case api.Error:
		if ev := api.Unwrap[api.ErrorEvent](in.Payload); ev != nil {
			c.log.Warn().Msgf("server: %v", ev.Message)
		}
	default:
		c.log.Warn().Msgf("unhandled packet: %v", in.T)
	}
	return nil
}

// setJoined marks the confirmed room. A confirmation for a different
// room means the server already released the old membership, so the
// old negotiation plane goes down with it.
func (c *RoomClient) setJoined(roomId string) {
	c.mu.Lock()
	switched := c.joined && c.roomId != roomId
	c.pending = ""
	c.roomId, c.joined = roomId, true
	c.mu.Unlock()
	if switched {
		c.mgr.CloseAll()
	}
}

// rejected drops the pending request only. A failed switch leaves the
// client a member of its current room, sessions included.
func (c *RoomClient) rejected(payload []byte, reason error) {
	roomId := ""
	if ev := api.Unwrap[api.RoomErrorEvent](payload); ev != nil {
		roomId = ev.RoomId
	}
	c.mu.Lock()
	if c.pending == roomId {
		c.pending = ""
	}
	c.mu.Unlock()
	c.sink.JoinRejected(roomId, reason)
}

func errMalformed(t api.PT) error {
	return fmt.Errorf("malformed %v payload", t)
}
