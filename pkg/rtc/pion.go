package rtc

import (
	"github.com/ekinols/roomrtc/pkg/config"
	"github.com/ekinols/roomrtc/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"
)

// PionEngine builds peer connections over pion/webrtc with optional
// local audio/video sample tracks.
type PionEngine struct {
	api   *webrtc.API
	conf  webrtc.Configuration
	audio bool
	video bool
	log   *logger.Logger
}

func NewPionEngine(conf config.Webrtc, log *logger.Logger) (*PionEngine, error) {
	se := webrtc.SettingEngine{}
	se.LoggerFactory = logger.NewPionLogger(log, zerolog.WarnLevel)

	servers := make([]webrtc.ICEServer, 0, len(conf.IceServers))
	for _, url := range conf.IceServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{url}})
	}

	return &PionEngine{
		api:   webrtc.NewAPI(webrtc.WithSettingEngine(se)),
		conf:  webrtc.Configuration{ICEServers: servers},
		audio: conf.Audio,
		video: conf.Video,
		log:   log,
	}, nil
}

func (e *PionEngine) NewSession(onCandidate func(candidate []byte)) (Session, error) {
	conn, err := e.api.NewPeerConnection(e.conf)
	if err != nil {
		return nil, err
	}
	if e.audio {
		if err = addTrack(conn, webrtc.MimeTypeOpus, "audio", "mic"); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	if e.video {
		if err = addTrack(conn, webrtc.MimeTypeVP8, "video", "camera"); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	// trickle: candidates surface as they are gathered, the final nil
	// just means gathering is done
	conn.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		blob, err := json.Marshal(c.ToJSON())
		if err != nil {
			e.log.Error().Err(err).Msg("candidate encode fail")
			return
		}
		onCandidate(blob)
	})
	conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		e.log.Debug().Msgf("connection state: %v", state)
	})
	return &pionSession{conn: conn}, nil
}

func addTrack(conn *webrtc.PeerConnection, mime, kind, stream string) error {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mime}, kind, stream)
	if err != nil {
		return err
	}
	sender, err := conn.AddTrack(track)
	if err != nil {
		return err
	}
	go drainRTCP(sender)
	return nil
}

// drainRTCP reads and discards incoming RTCP packets, which is needed
// for interceptors to work.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

type pionSession struct {
	conn *webrtc.PeerConnection
}

func (s *pionSession) CreateOffer() ([]byte, error) {
	offer, err := s.conn.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err = s.conn.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return json.Marshal(offer)
}

func (s *pionSession) CreateAnswer() ([]byte, error) {
	answer, err := s.conn.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err = s.conn.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return json.Marshal(answer)
}

func (s *pionSession) SetRemoteDescription(sdp []byte) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sdp, &desc); err != nil {
		return err
	}
	return s.conn.SetRemoteDescription(desc)
}

func (s *pionSession) AddCandidate(candidate []byte) error {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &c); err != nil {
		return err
	}
	return s.conn.AddICECandidate(c)
}

func (s *pionSession) Close() error { return s.conn.Close() }
