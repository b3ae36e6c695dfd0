package main

import (
	"net/url"

	"github.com/ekinols/roomrtc/pkg/api"
	"github.com/ekinols/roomrtc/pkg/config"
	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/ekinols/roomrtc/pkg/os"
	"github.com/ekinols/roomrtc/pkg/peer"
	"github.com/ekinols/roomrtc/pkg/rtc"
	"github.com/rs/zerolog"
)

var Version = "?"

// consoleSink prints room events, standing in for a real UI.
type consoleSink struct {
	log *logger.Logger
}

func (s consoleSink) RoomCreated(ev api.RoomCreatedEvent) {
	s.log.Info().Str(logger.RoomField, ev.RoomId).Msg("room created")
}
func (s consoleSink) RoomJoined(ev api.RoomJoinedEvent) {
	s.log.Info().Str(logger.RoomField, ev.RoomId).Msgf("joined, %d members", ev.MemberCount)
}
func (s consoleSink) RoomInfo(ev api.RoomInfoEvent) {
	s.log.Info().Str(logger.RoomField, ev.RoomId).Msgf("%d members", ev.MemberCount)
}
func (s consoleSink) JoinRejected(roomId string, reason error) {
	s.log.Error().Err(reason).Str(logger.RoomField, roomId).Msg("join rejected")
}
func (s consoleSink) UserConnected(id string)    { s.log.Info().Msgf("user %v connected", id) }
func (s consoleSink) UserDisconnected(id string) { s.log.Info().Msgf("user %v disconnected", id) }

func main() {
	conf := config.NewPeer()
	conf.ParseFlags()

	log := logger.NewConsole(conf.Debug, "peer", false)
	log.Info().Msgf("peer %v", Version)
	if log.GetLevel() < zerolog.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}
	if conf.Room.Id == "" {
		log.Fatal().Msg("--room is required")
	}

	engine, err := rtc.NewPionEngine(conf.Webrtc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc init fail")
	}
	address, err := url.Parse(conf.Signaler.Address)
	if err != nil {
		log.Fatal().Err(err).Msgf("bad server address: %v", conf.Signaler.Address)
	}

	client, err := peer.Dial(*address, engine, consoleSink{log: log},
		conf.Webrtc.NegotiationTimeout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect fail")
	}
	defer client.Close()

	if err = client.Join(conf.Room.Id, conf.Room.Password); err != nil {
		log.Fatal().Err(err).Msg("join fail")
	}
	<-os.ExpectTermination()
}
