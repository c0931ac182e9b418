package capi

import (
	"github.com/pkg/errors"

	"capictl/capi20"
)

// CallRequest describes an outbound call.
type CallRequest struct {
	// Controller to dial on; zero uses the session controller, or 1.
	Controller int
	Source     string
	Target     string
	Anonymous  bool
	Kind       Kind
}

// Call allocates a slot and issues the connect request. It returns the
// connection id; progress is reported through Events.
func (s *Session) Call(req CallRequest) (uint32, error) {
	if req.Source == "" || req.Target == "" {
		return 0, ErrInvalidNumber
	}
	h, ok := s.opts.handlers[req.Kind]
	if !ok {
		return 0, errors.Wrap(ErrUnknownKind, req.Kind.String())
	}
	if s.applID.Load() == 0 {
		return 0, ErrNotRegistered
	}
	ctrl := req.Controller
	if ctrl <= 0 {
		ctrl = s.opts.controller
	}
	if ctrl <= 0 {
		ctrl = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.pool.allocate()
	if err != nil {
		return 0, err
	}
	c.bind(h)
	c.dir = Outgoing
	c.source = req.Source
	c.target = req.Target

	internal := isInternal(req.Target)
	bc, llc, hlc := bearerElements(h.CIP(), internal)
	m := capi20.ConnectReq(uint32(ctrl), h.CIP(),
		encodeCalledNumber(req.Target),
		encodeCallingNumber(req.Source, req.Anonymous, internal),
		h.Protocol(), bc, llc, hlc)

	s.log.Debugf("REQ: CONNECT (%s->%s) kind %s", req.Source, req.Target, req.Kind)
	info := s.request(m)
	if info != capi20.InfoOK {
		s.pool.release(c)
		return 0, errors.Wrapf(info, "connect to %s", req.Target)
	}
	c.number = m.Number
	s.metrics.calls.WithLabelValues(Outgoing.String()).Inc()
	return c.id, nil
}

// Pickup accepts a ringing inbound call and binds it to kind.
func (s *Session) Pickup(id uint32, kind Kind) error {
	h, ok := s.opts.handlers[kind]
	if !ok {
		return errors.Wrap(ErrUnknownKind, kind.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.pool.byID(id)
	if c == nil {
		return ErrNoConnection
	}
	if c.State() != StateRinging {
		s.log.Warnf("connection %d: pickup in state %s", id, c.State())
		return ErrNotRinging
	}
	c.bind(h)

	s.log.Debugf("RESP: CONNECT - plci 0x%x accept as %s", c.plci.Load(), kind)
	if info := s.respond(c.number, capi20.ConnectResp(c.plci.Load(), capi20.RejectAccept, h.Protocol(), nil)); info != capi20.InfoOK {
		s.status(c, info)
		return nil
	}
	c.setState(StateIncomingWait)
	return nil
}

// Hangup tears down the call. Unknown ids are ignored.
func (s *Session) Hangup(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.pool.byID(id); c != nil {
		s.hangup(c)
	}
}

// hangup advances teardown from the current state; mu is held.
func (s *Session) hangup(c *Connection) {
	switch st := c.State(); st {
	case StateConnectWait, StateConnectActive, StateDisconnectB3Req,
		StateDisconnectB3Wait, StateDisconnectActive, StateIncomingWait:
		s.disconnect(c)
	case StateConnectB3Wait, StateConnected:
		s.log.Debugf("REQ: DISCONNECT_B3 - ncci 0x%x", c.ncci.Load())
		if info := s.request(capi20.DisconnectB3Req(c.ncci.Load())); info != capi20.InfoOK {
			s.disconnect(c)
			return
		}
		c.setState(StateDisconnectB3Req)
	case StateRinging:
		s.log.Debugf("RESP: CONNECT - plci 0x%x reject", c.plci.Load())
		info := s.respond(c.number, capi20.ConnectResp(c.plci.Load(), capi20.RejectUserBusy, capi20.Bearer{}, nil))
		c.setState(StateIdle)
		if info != capi20.InfoOK {
			s.status(c, info)
		}
	case StateIdle:
	default:
		s.log.Debugf("connection %d: hangup in unexpected state %s", c.id, st)
	}
}

// disconnect issues the physical disconnect.
func (s *Session) disconnect(c *Connection) {
	s.log.Debugf("REQ: DISCONNECT - plci 0x%x", c.plci.Load())
	if info := s.request(capi20.DisconnectReq(c.plci.Load())); info != capi20.InfoOK {
		c.setState(StateIdle)
		s.status(c, info)
		return
	}
	c.setState(StateDisconnectActive)
}

// SendDTMF plays one tone to the remote side of a connected call.
func (s *Session) SendDTMF(id uint32, tone byte) error {
	if !validSendTone(tone) {
		return ErrInvalidTone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.pool.byID(id)
	if c == nil {
		return ErrNoConnection
	}
	ncci := c.ncci.Load()
	if ncci == 0 {
		return ErrNotConnected
	}
	s.log.Debugf("REQ: FACILITY - ncci 0x%x, DTMF %c", ncci, tone)
	if info := s.request(capi20.FacilityReq(ncci, facilityDTMF, dtmfSendParam(tone))); info != capi20.InfoOK {
		s.status(c, info)
	}
	return nil
}

// SendDisplay sends a display text, cut to 31 characters.
func (s *Session) SendDisplay(id uint32, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.pool.byID(id)
	if c == nil {
		return ErrNoConnection
	}
	plci := c.plci.Load()
	if plci == 0 {
		return ErrNotConnected
	}
	if info := s.request(capi20.InfoReq(plci, displayElement(text))); info != capi20.InfoOK {
		s.status(c, info)
	}
	return nil
}

// SendData queues a B3 frame on the call's data channel.
func (s *Session) SendData(id uint32, frame []byte) error {
	s.mu.Lock()
	c := s.pool.byID(id)
	s.mu.Unlock()
	if c == nil {
		return ErrNoConnection
	}
	return c.SendData(frame)
}
