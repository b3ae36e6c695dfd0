package config

import "github.com/spf13/pflag"

type (
	// Signaler is the root configuration of the signaling server.
	Signaler struct {
		Server     Server
		Rooms      Rooms
		Monitoring Monitoring
		Debug      bool
	}
	Server struct {
		Address string
	}
	Rooms struct {
		// Capacity limits the number of members in one room.
		Capacity int
	}
	Monitoring struct {
		Port             int
		URLPrefix        string
		MetricEnabled    bool
		ProfilingEnabled bool
	}
)

func NewSignaler() (conf Signaler) {
	conf = Signaler{
		Server: Server{Address: ":8000"},
		Rooms:  Rooms{Capacity: 10},
		Monitoring: Monitoring{
			Port:      6601,
			URLPrefix: "/signaler",
		},
	}
	_ = LoadConfig(&conf, "")
	return
}

func (m Monitoring) IsEnabled() bool {
	return m.Port > 0 && (m.MetricEnabled || m.ProfilingEnabled)
}

func (c *Signaler) AddFlags(fs *pflag.FlagSet) *Signaler {
	fs.StringVar(&c.Server.Address, "address", c.Server.Address, "HTTP server address")
	fs.IntVar(&c.Rooms.Capacity, "capacity", c.Rooms.Capacity, "Max number of members in one room")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")
	return c
}

func (c *Signaler) ParseFlags() {
	c.AddFlags(pflag.CommandLine)
	pflag.Parse()
}
