package signaler

import (
	"net/http"
	"time"

	"github.com/ekinols/roomrtc/pkg/config"
	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/ekinols/roomrtc/pkg/network/httpx"
	"github.com/goccy/go-json"
)

func NewHTTPServer(conf config.Signaler, hub *Hub, log *logger.Logger) (*httpx.Server, error) {
	return httpx.NewServer(
		conf.Server.Address,
		func(s *httpx.Server) httpx.Handler {
			h := s.Mux()
			h.HandleFunc("/ws", hub.handleUserConnection)
			h.HandleW("/health", hub.handleHealth)
			h.HandleW("/api/rooms", hub.handleRooms)
			return h
		},
		httpx.WithLogger(log),
	)
}

type healthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
	Stats  struct {
		Connections      int64 `json:"connections"`
		ConnectionsTotal int64 `json:"connectionsTotal"`
		Rooms            int   `json:"rooms"`
		RoomsTotal       int64 `json:"roomsTotal"`
		RelayedPackets   int64 `json:"relayedPackets"`
		DroppedPackets   int64 `json:"droppedPackets"`
	} `json:"stats"`
}

func (h *Hub) handleHealth(w http.ResponseWriter) {
	res := healthResponse{Status: "ok", Uptime: time.Since(h.stats.start).Seconds()}
	res.Stats.Connections = h.stats.connActive.Load()
	res.Stats.ConnectionsTotal = h.stats.connTotal.Load()
	res.Stats.Rooms = h.registry.RoomCount()
	res.Stats.RoomsTotal = h.stats.roomsTotal.Load()
	res.Stats.RelayedPackets = h.stats.relayed.Load()
	res.Stats.DroppedPackets = h.stats.relayDropped.Load()
	writeJSON(w, res, h.log)
}

// handleRooms lists active rooms for diagnostics. Member counts and
// the protection flag only, never passwords.
func (h *Hub) handleRooms(w http.ResponseWriter) {
	writeJSON(w, h.registry.Rooms(), h.log)
}

func writeJSON(w http.ResponseWriter, data any, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("response write fail")
	}
}
