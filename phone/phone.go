// Package phone binds voice calls to a local audio device.
package phone

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"capictl/capi"
	"capictl/capi20"
)

// Stream is an open audio device. Reads return one frame of B-channel
// samples and pace the caller.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Device opens audio streams.
type Device interface {
	Open() (Stream, error)
}

// Handler is the capi.Handler of voice calls.
type Handler struct {
	dev         Device
	log         *logrus.Entry
	frameSize   int
	stopTimeout time.Duration
}

type Option func(*Handler)

// WithFrameSize sets the number of bytes read from the device per frame.
func WithFrameSize(n int) Option {
	return func(h *Handler) { h.frameSize = n }
}

// WithStopTimeout bounds the wait for the input worker on hangup.
func WithStopTimeout(d time.Duration) Option {
	return func(h *Handler) { h.stopTimeout = d }
}

func New(dev Device, log *logrus.Entry, opts ...Option) *Handler {
	h := &Handler{dev: dev, log: log, frameSize: 160, stopTimeout: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// call is the per-connection state kept in Connection.Private.
type call struct {
	stream Stream
	worker *inputWorker
	closed bool
}

func (c *call) close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.stream.Close()
}

func private(c *capi.Connection) *call {
	p, _ := c.Private().(*call)
	return p
}

func (h *Handler) Kind() capi.Kind         { return capi.KindPhone }
func (h *Handler) CIP() uint16             { return capi20.CIPAudio31 }
func (h *Handler) Protocol() capi20.Bearer { return capi20.Transparent }
func (h *Handler) EarlyB3() bool           { return true }

// Activate opens the audio device once the line is up.
func (h *Handler) Activate(c *capi.Connection) error {
	stream, err := h.dev.Open()
	if err != nil {
		return errors.Wrap(err, "could not open audio")
	}
	c.SetPrivate(&call{stream: stream})
	return nil
}

// Init starts feeding device input into the data channel.
func (h *Handler) Init(c *capi.Connection) error {
	p := private(c)
	if p == nil {
		return errors.New("audio not open")
	}
	p.worker = startInputWorker(p.stream, c, h.frameSize, h.log.WithField("call", c.ID()))
	return nil
}

// Data plays a received frame.
func (h *Handler) Data(c *capi.Connection, frame []byte) {
	p := private(c)
	if p == nil || p.closed {
		return
	}
	if _, err := p.stream.Write(frame); err != nil {
		h.log.WithError(err).Debugf("call %d: audio write", c.ID())
	}
}

// Deactivate stops the input worker, waiting for its acknowledgment, and
// closes the device.
func (h *Handler) Deactivate(c *capi.Connection) {
	p := private(c)
	if p == nil {
		return
	}
	if p.worker != nil && !p.worker.stop(h.stopTimeout) {
		h.log.Warnf("call %d: input worker did not stop within %s", c.ID(), h.stopTimeout)
	}
	if err := p.close(); err != nil {
		h.log.WithError(err).Debugf("call %d: audio close", c.ID())
	}
}

func (h *Handler) Cleanup(c *capi.Connection) {
	p := private(c)
	if p == nil {
		return
	}
	if p.worker != nil {
		p.worker.stop(h.stopTimeout)
	}
	_ = p.close()
	c.SetPrivate(nil)
}
