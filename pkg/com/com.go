package com

import (
	"net/http"
	"net/url"

	"github.com/ekinols/roomrtc/pkg/api"
	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/ekinols/roomrtc/pkg/network/websocket"
	"github.com/goccy/go-json"
)

// SocketClient is one packet-oriented connection with an assigned
// identity, either the server side or the client side of it.
type SocketClient struct {
	id   Uid
	sock *websocket.WS
	log  *logger.Logger // a special logger for showing x -> y directions
}

// NewServer upgrades an incoming HTTP request and assigns the
// connection a fresh identity.
func NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*SocketClient, error) {
	conn, err := websocket.NewServer(w, r, log)
	if err != nil {
		return nil, err
	}
	return newSocketClient(conn, NewUid(), true, log), nil
}

// NewClient dials the address and wraps the connection.
// The identity is not known until the server reports it back through
// the application protocol, so the local one stays unused for routing.
func NewClient(address url.URL, log *logger.Logger) (*SocketClient, error) {
	conn, err := websocket.NewClient(address, log)
	if err != nil {
		return nil, err
	}
	return newSocketClient(conn, NewUid(), false, log), nil
}

func newSocketClient(conn *websocket.WS, id Uid, isServer bool, log *logger.Logger) *SocketClient {
	dir := "→"
	if isServer {
		dir = "←"
	}
	dirClLog := log.Extend(log.With().
		Str(logger.ClientField, id.Short()).
		Str(logger.DirectionField, dir),
	)
	dirClLog.Debug().Msg("Connect")
	return &SocketClient{sock: conn, id: id, log: dirClLog}
}

// OnPacket sets the inbound packet handler. Must be called before Listen.
func (c *SocketClient) OnPacket(fn func(in api.In) error) {
	c.sock.OnMessage = func(message []byte, err error) {
		if err != nil {
			c.log.Error().Err(err).Send()
			return
		}
		var packet api.In
		if err = json.Unmarshal(message, &packet); err != nil {
			c.log.Error().Err(err).Msg("malformed packet")
			return
		}
		c.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", packet.T)
		if err = fn(packet); err != nil {
			c.log.Error().Err(err).Send()
		}
	}
}

// Notify just sends a message and goes further.
func (c *SocketClient) Notify(t api.PT, data any) {
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", t)
	r, err := json.Marshal(api.Out{T: t, Payload: data})
	if err != nil {
		c.log.Error().Err(err).Send()
		return
	}
	c.sock.Write(r)
}

func (c *SocketClient) Disconnect() {
	c.sock.Close()
	c.log.Debug().Str(logger.DirectionField, "x").Msg("Close")
}

func (c *SocketClient) Id() Uid               { return c.id }
func (c *SocketClient) Listen() chan struct{} { return c.sock.Listen() }
func (c *SocketClient) String() string        { return c.Id().String() }
func (c *SocketClient) Log() *logger.Logger   { return c.log }
