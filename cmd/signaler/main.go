package main

import (
	"context"

	"github.com/ekinols/roomrtc/pkg/config"
	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/ekinols/roomrtc/pkg/os"
	"github.com/ekinols/roomrtc/pkg/signaler"
	"github.com/rs/zerolog"
)

var Version = "?"

func main() {
	conf := config.NewSignaler()
	conf.ParseFlags()

	log := logger.NewConsole(conf.Debug, "sig", false)
	log.Info().Msgf("signaler %v", Version)
	if log.GetLevel() < zerolog.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	s, err := signaler.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init fail")
	}
	s.Start()
	defer func() {
		if err := s.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("shutdown fail")
		}
	}()
	<-os.ExpectTermination()
}
