package config

import (
	"time"

	"github.com/spf13/pflag"
)

type (
	// Peer is the root configuration of the peer agent.
	Peer struct {
		Signaler SignalerAddress
		Room     Room
		Webrtc   Webrtc
		Debug    bool
	}
	SignalerAddress struct {
		Address string
	}
	Room struct {
		Id       string
		Password string
	}
	Webrtc struct {
		IceServers []string
		Audio      bool
		Video      bool
		// NegotiationTimeout closes a peer session stuck in the
		// middle of an offer/answer exchange.
		NegotiationTimeout time.Duration
	}
)

func NewPeer() (conf Peer) {
	conf = Peer{
		Signaler: SignalerAddress{Address: "ws://localhost:8000/ws"},
		Webrtc: Webrtc{
			IceServers:         []string{"stun:stun.l.google.com:19302"},
			Audio:              true,
			NegotiationTimeout: 30 * time.Second,
		},
	}
	_ = LoadConfig(&conf, "")
	return
}

func (c *Peer) AddFlags(fs *pflag.FlagSet) *Peer {
	fs.StringVar(&c.Signaler.Address, "address", c.Signaler.Address, "Signaling server websocket URL")
	fs.StringVar(&c.Room.Id, "room", c.Room.Id, "Room to join")
	fs.StringVar(&c.Room.Password, "password", c.Room.Password, "Room password")
	fs.BoolVar(&c.Webrtc.Audio, "audio", c.Webrtc.Audio, "Attach a local audio track")
	fs.BoolVar(&c.Webrtc.Video, "video", c.Webrtc.Video, "Attach a local video track")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")
	return c
}

func (c *Peer) ParseFlags() {
	c.AddFlags(pflag.CommandLine)
	pflag.Parse()
}
