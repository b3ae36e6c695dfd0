package signaler

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ekinols/roomrtc/pkg/api"
	"github.com/ekinols/roomrtc/pkg/com"
	"github.com/ekinols/roomrtc/pkg/config"
	"github.com/ekinols/roomrtc/pkg/logger"
)

// netClient is the hub's view of one connection.
// *com.SocketClient implements it; tests substitute their own.
type netClient interface {
	Id() com.Uid
	Notify(t api.PT, data any)
	Disconnect()
}

// Hub routes packets between connections: room requests against the
// registry, negotiation messages point-to-point to their target.
//
// Each connection's packets are handled sequentially by its read
// loop, so a member's join is fully processed (including the
// user-connected fan-out) before any of its negotiation messages.
type Hub struct {
	conf     config.Signaler
	registry *Registry
	users    com.Map[com.Uid, netClient]
	metrics  *Metrics
	stats    stats
	log      *logger.Logger
}

type stats struct {
	start        time.Time
	connTotal    atomic.Int64
	connActive   atomic.Int64
	roomsTotal   atomic.Int64
	relayed      atomic.Int64
	relayDropped atomic.Int64
}

func NewHub(conf config.Signaler, m *Metrics, log *logger.Logger) *Hub {
	h := &Hub{
		conf:     conf,
		registry: NewRegistry(conf.Rooms.Capacity),
		users:    com.NewMap[com.Uid, netClient](),
		metrics:  m,
		log:      log,
	}
	h.stats.start = time.Now()
	return h
}

// handleUserConnection upgrades the request and blocks until the
// connection is gone, then releases whatever room state it held.
func (h *Hub) handleUserConnection(w http.ResponseWriter, r *http.Request) {
	usr, err := com.NewServer(w, r, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("couldn't init user connection")
		return
	}
	h.connect(usr)
	usr.OnPacket(func(in api.In) error { h.route(usr, in); return nil })
	<-usr.Listen()
	h.disconnect(usr)
}

func (h *Hub) connect(c netClient) {
	h.users.Put(c.Id(), c)
	h.stats.connTotal.Add(1)
	h.stats.connActive.Add(1)
	h.metrics.connTotal.Inc()
	h.metrics.connections.Inc()
}

func (h *Hub) disconnect(c netClient) {
	if !h.users.Has(c.Id()) {
		return
	}
	h.users.RemoveByKey(c.Id())
	h.stats.connActive.Add(-1)
	h.metrics.connections.Dec()
	if res, ok := h.registry.Leave(c.Id()); ok {
		h.log.Info().Str(logger.ClientField, c.Id().Short()).
			Str(logger.RoomField, res.RoomId).Msg("user left on disconnect")
		h.notifyLeft(c.Id(), res)
	}
}

// DisconnectAll tells every client the server is going down and drops
// its connection, so teardown runs client-side right away instead of
// waiting for a dead socket. Each read loop then releases its own room
// state through the usual disconnect path.
func (h *Hub) DisconnectAll() {
	h.users.ForEach(func(c netClient) {
		c.Notify(api.Error, api.ErrorEvent{Message: "server is shutting down"})
		c.Disconnect()
	})
}

func (h *Hub) route(c netClient, in api.In) {
	switch in.T {
	case api.JoinRoom:
		rq := api.Unwrap[api.JoinRoomRequest](in.Payload)
		if rq == nil {
			c.Notify(api.Error, api.ErrorEvent{Message: "malformed join-room request"})
			return
		}
		h.handleJoin(c, *rq)
	case api.LeaveRoom:
		rq := api.Unwrap[api.LeaveRoomRequest](in.Payload)
		if rq == nil {
			c.Notify(api.Error, api.ErrorEvent{Message: "malformed leave-room request"})
			return
		}
		h.handleLeave(c, rq.RoomId)
	case api.Offer, api.Answer, api.Candidate:
		h.relay(c, in.T, in.Payload)
	default:
		c.Notify(api.Error, api.ErrorEvent{Message: "unknown packet: " + in.T.String()})
	}
}

func (h *Hub) handleJoin(c netClient, rq api.JoinRoomRequest) {
	res, err := h.registry.Join(c.Id(), rq.RoomId, rq.Password)
	switch {
	case errors.Is(err, ErrWrongPassword):
		h.metrics.joinRejected.WithLabelValues("password").Inc()
		h.log.Info().Str(logger.RoomField, res.RoomId).Msg("join rejected: wrong password")
		c.Notify(api.WrongPassword, api.RoomErrorEvent{RoomId: res.RoomId})
		return
	case errors.Is(err, ErrRoomFull):
		h.metrics.joinRejected.WithLabelValues("capacity").Inc()
		h.log.Info().Str(logger.RoomField, res.RoomId).Msg("join rejected: room is full")
		c.Notify(api.RoomFull, api.RoomErrorEvent{RoomId: res.RoomId})
		return
	case err != nil:
		h.metrics.joinRejected.WithLabelValues("invalid").Inc()
		c.Notify(api.Error, api.ErrorEvent{Message: err.Error()})
		return
	}

	if res.Left != nil {
		h.notifyLeft(c.Id(), *res.Left)
	}

	log := h.log.Extend(h.log.With().
		Str(logger.ClientField, c.Id().Short()).
		Str(logger.RoomField, res.RoomId))

	if res.Created {
		h.stats.roomsTotal.Add(1)
		h.metrics.roomsTotal.Inc()
		log.Info().Msg("room created")
		c.Notify(api.RoomCreated, api.RoomCreatedEvent{RoomId: res.RoomId, HasPassword: res.Protected})
		return
	}

	log.Info().Msgf("room joined, %d members", res.MemberCount)
	c.Notify(api.RoomJoined, api.RoomJoinedEvent{
		RoomId:      res.RoomId,
		MemberCount: res.MemberCount,
		HasPassword: res.Protected,
	})
	// existing members learn about the newcomer before it can reach
	// them with negotiation messages
	info := roomInfo(res.RoomId, append(res.Others, c.Id()))
	joined := api.UserEvent{Id: c.Id().String()}
	for _, uid := range res.Others {
		if peer, err := h.users.Find(uid); err == nil {
			peer.Notify(api.UserConnected, joined)
			peer.Notify(api.RoomInfoUpdate, info)
		}
	}
}

func (h *Hub) handleLeave(c netClient, roomId string) {
	res, ok := h.registry.LeaveRoom(c.Id(), roomId)
	if !ok {
		return
	}
	h.log.Info().Str(logger.ClientField, c.Id().Short()).
		Str(logger.RoomField, res.RoomId).Msg("user left")
	h.notifyLeft(c.Id(), res)
}

// notifyLeft tells the rest of the room that one member is gone.
func (h *Hub) notifyLeft(id com.Uid, res LeaveResult) {
	if res.Deleted {
		h.log.Info().Str(logger.RoomField, res.RoomId).Msg("room deleted")
		return
	}
	gone := api.UserEvent{Id: id.String()}
	info := roomInfo(res.RoomId, res.Remaining)
	for _, uid := range res.Remaining {
		if peer, err := h.users.Find(uid); err == nil {
			peer.Notify(api.UserDisconnected, gone)
			peer.Notify(api.RoomInfoUpdate, info)
		}
	}
}

// relay forwards one negotiation packet to its target, annotated with
// the sender identity. Unknown targets drop the packet, the sender is
// not informed (it will learn through its own disconnect events).
func (h *Hub) relay(c netClient, t api.PT, payload []byte) {
	rq := api.Unwrap[api.SignalRequest](payload)
	if rq == nil || rq.Target == "" {
		c.Notify(api.Error, api.ErrorEvent{Message: "malformed " + t.String() + " request"})
		return
	}
	target, err := h.users.Find(com.UidFrom(rq.Target))
	if err != nil {
		h.stats.relayDropped.Add(1)
		h.metrics.relayDropped.Inc()
		h.log.Warn().Str(logger.ClientField, c.Id().Short()).
			Msgf("%v dropped, target %s is not connected", t, rq.Target)
		return
	}
	h.stats.relayed.Add(1)
	h.metrics.relayed.WithLabelValues(t.String()).Inc()
	target.Notify(t, api.SignalEvent{From: c.Id().String(), Sdp: rq.Sdp, Candidate: rq.Candidate})
}

func roomInfo(roomId string, members []com.Uid) api.RoomInfoEvent {
	list := make([]string, len(members))
	for i, id := range members {
		list[i] = id.String()
	}
	return api.RoomInfoEvent{RoomId: roomId, MemberCount: len(members), Members: list}
}
