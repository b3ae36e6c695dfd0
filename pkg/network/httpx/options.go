package httpx

import (
	"time"

	"github.com/ekinols/roomrtc/pkg/logger"
)

type Options struct {
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *logger.Logger
}

type Option = func(*Options)

func WithLogger(log *logger.Logger) Option { return func(o *Options) { o.Logger = log } }

func (o *Options) override(options ...Option) {
	for _, opt := range options {
		opt(o)
	}
}
