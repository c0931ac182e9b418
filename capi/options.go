package capi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type options struct {
	log        *logrus.Entry
	registerer prometheus.Registerer
	handlers   map[Kind]Handler

	controller  int
	connections int
	bchannels   int
	buffers     int
	packetSize  int

	pollInterval     time.Duration
	reconnectBackoff time.Duration
	idleBackoff      time.Duration
	closeYield       time.Duration
}

func defaultOptions() options {
	return options{
		log:              logrus.NewEntry(logrus.StandardLogger()).WithField("name", "capi"),
		handlers:         make(map[Kind]Handler),
		connections:      5,
		bchannels:        2,
		buffers:          7,
		packetSize:       2048,
		pollInterval:     time.Second,
		reconnectBackoff: time.Second,
		idleBackoff:      time.Second,
		closeYield:       25 * time.Microsecond,
	}
}

// Option configures Open.
type Option func(*options)

func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

// WithRegisterer registers the session metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithHandler binds h to its kind.
func WithHandler(h Handler) Option {
	return func(o *options) { o.handlers[h.Kind()] = h }
}

// WithController restricts listening to one controller. Zero listens on all.
func WithController(n int) Option {
	return func(o *options) { o.controller = n }
}

func WithConnections(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.connections = n
		}
	}
}

// WithBuffers sets the registration parameters.
func WithBuffers(bchannels, buffers, packetSize int) Option {
	return func(o *options) {
		o.bchannels, o.buffers, o.packetSize = bchannels, buffers, packetSize
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithReconnectBackoff sets the pause before re-registering after a desync,
// and while no registration is held.
func WithReconnectBackoff(d time.Duration) Option {
	return func(o *options) {
		o.reconnectBackoff = d
		o.idleBackoff = d
	}
}
