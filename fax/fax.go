// Package fax runs G3 fax calls over a transparent B-channel through a
// software modem.
package fax

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"capictl/capi"
	"capictl/capi20"
)

// Modem converts between B-channel samples and fax pages. Receive is fed
// every frame from the line; Transmit returns n samples to send back.
type Modem interface {
	Receive(frame []byte) error
	Transmit(n int) []byte
	Close() error
}

// Factory creates the modem of a call once its data channel is up.
type Factory func(call capi.CallInfo) (Modem, error)

// Handler is the capi.Handler of fax calls.
type Handler struct {
	newModem Factory
	log      *logrus.Entry
}

func New(newModem Factory, log *logrus.Entry) *Handler {
	return &Handler{newModem: newModem, log: log}
}

func (h *Handler) Kind() capi.Kind { return capi.KindFax }

func (h *Handler) CIP() uint16 { return capi20.CIPFaxG23 }

func (h *Handler) Protocol() capi20.Bearer { return capi20.Transparent }

// EarlyB3 is false: the fax session starts after the line is connected.
func (h *Handler) EarlyB3() bool { return false }

func (h *Handler) Init(c *capi.Connection) error {
	m, err := h.newModem(c.Info())
	if err != nil {
		return errors.Wrap(err, "could not start fax modem")
	}
	c.SetPrivate(m)
	return nil
}

func (h *Handler) Data(c *capi.Connection, frame []byte) {
	m, ok := c.Private().(Modem)
	if !ok {
		return
	}
	if err := m.Receive(frame); err != nil {
		h.log.WithError(err).Warnf("call %d: fax receive", c.ID())
	}
	out := m.Transmit(len(frame))
	if len(out) == 0 {
		return
	}
	if err := c.SendData(out); err != nil && !errors.Is(err, capi.ErrFlowControl) {
		h.log.WithError(err).Debugf("call %d: fax transmit", c.ID())
	}
}

func (h *Handler) Cleanup(c *capi.Connection) {
	m, ok := c.Private().(Modem)
	if !ok {
		return
	}
	if err := m.Close(); err != nil {
		h.log.WithError(err).Warnf("call %d: fax close", c.ID())
	}
	c.SetPrivate(nil)
}
