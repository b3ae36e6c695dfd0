// Package signaler implements the room-based signaling server: rooms
// with optional passwords and a capacity limit, membership fan-out,
// and point-to-point relay of WebRTC negotiation messages.
package signaler

import (
	"context"
	"sync"
	"time"

	"github.com/ekinols/roomrtc/pkg/config"
	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/ekinols/roomrtc/pkg/monitoring"
	"github.com/ekinols/roomrtc/pkg/service"
)

type Signaler struct {
	conf     config.Signaler
	hub      *Hub
	services service.Group
	log      *logger.Logger

	done chan struct{}
	stop sync.Once
}

const statsPeriod = 30 * time.Second

func New(conf config.Signaler, log *logger.Logger) (*Signaler, error) {
	s := &Signaler{conf: conf, log: log, done: make(chan struct{})}

	metrics := NewMetrics(func() float64 { return float64(s.hub.registry.RoomCount()) })
	s.hub = NewHub(conf, metrics, log)

	srv, err := NewHTTPServer(conf, s.hub, log)
	if err != nil {
		return nil, err
	}
	s.services.Add(srv)
	if conf.Monitoring.IsEnabled() {
		mon := monitoring.New(conf.Monitoring, "sig", metrics.Registry, log)
		s.services.AddIf(mon != nil, mon)
	}
	return s, nil
}

func (s *Signaler) Start() {
	s.services.Start()
	go s.heartbeat()
}

func (s *Signaler) Shutdown(ctx context.Context) error {
	s.stop.Do(func() { close(s.done) })
	s.hub.DisconnectAll()
	return s.services.Shutdown(ctx)
}

func (s *Signaler) heartbeat() {
	tick := time.NewTicker(statsPeriod)
	defer tick.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-tick.C:
			s.log.Info().Msgf("%d connections, %d rooms, %d packets relayed",
				s.hub.stats.connActive.Load(),
				s.hub.registry.RoomCount(),
				s.hub.stats.relayed.Load(),
			)
		}
	}
}
