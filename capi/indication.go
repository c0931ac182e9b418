package capi

import (
	"strings"
	"time"

	"capictl/capi20"
)

func acceptCIP(cip uint16) bool {
	switch cip {
	case capi20.CIPSpeech, capi20.CIPAudio31, capi20.CIPTelephony, capi20.CIPFaxG23:
		return true
	}
	return false
}

// indication handles one indication; mu is held.
func (s *Session) indication(m *capi20.Message) {
	switch m.Command {
	case capi20.CmdConnect:
		s.onConnect(m)
	case capi20.CmdConnectActive:
		s.onConnectActive(m)
	case capi20.CmdConnectB3:
		s.onConnectB3(m)
	case capi20.CmdConnectB3Active:
		s.onConnectB3Active(m)
	case capi20.CmdDataB3:
		s.onData(m)
	case capi20.CmdFacility:
		s.onFacility(m)
	case capi20.CmdInfo:
		s.onInfo(m)
	case capi20.CmdDisconnectB3:
		s.onDisconnectB3(m)
	case capi20.CmdDisconnect:
		s.onDisconnect(m)
	default:
		s.log.Debugf("IND: unhandled command %s", m.Command)
	}
}

func (s *Session) onConnect(m *capi20.Message) {
	plci := m.Addr
	source := decodeSourceNumber(m.CallingPartyNumber, m.InfoElement)
	target := decodeTargetNumber(m.CalledPartyNumber, m.InfoElement)
	s.log.Debugf("IND: CONNECT - plci 0x%x, cip %d, %s -> %s", plci, m.CIP, source, target)

	if !acceptCIP(m.CIP) && !(acceptInternal && strings.HasPrefix(source, "**")) {
		s.log.Debugf("IND: CONNECT - plci 0x%x - ignoring cip %d", plci, m.CIP)
		s.respond(m.Number, capi20.ConnectResp(plci, capi20.RejectIgnore, capi20.Bearer{}, nil))
		s.metrics.ignored.Inc()
		return
	}

	c, err := s.pool.allocate()
	if err != nil {
		s.respond(m.Number, capi20.ConnectResp(plci, capi20.RejectIgnore, capi20.Bearer{}, nil))
		s.metrics.ignored.Inc()
		return
	}
	c.plci.Store(plci)
	c.dir = Incoming
	c.source = source
	c.target = localTarget(target)
	c.number = m.Number
	c.setState(StateRinging)
	s.metrics.calls.WithLabelValues(Incoming.String()).Inc()
	s.post(EventIncoming, c)

	s.log.Debugf("REQ: ALERT - plci 0x%x", plci)
	s.request(capi20.AlertReq(plci))
}

func (s *Session) onConnectActive(m *capi20.Message) {
	plci := m.Addr
	s.respond(m.Number, capi20.ConnectActiveResp(plci))

	c := s.pool.byPLCI(plci)
	if c == nil {
		s.log.Debugf("IND: CONNECT_ACTIVE - unknown plci 0x%x", plci)
		return
	}
	switch c.State() {
	case StateIncomingWait:
		c.connected = time.Now()
		c.setState(StateConnectActive)
		s.activate(c)
	case StateConnectWait:
		// Early-B3 kinds also land here when no progress indicator came
		// first. Whichever indication arrives first requests B3.
		s.log.Debugf("REQ: CONNECT_B3 - plci 0x%x", plci)
		if info := s.request(capi20.ConnectB3Req(plci, nil)); info != capi20.InfoOK {
			s.status(c, info)
			s.hangup(c)
			return
		}
		c.connected = time.Now()
		c.setState(StateConnectActive)
		s.activate(c)
	default:
		s.log.Debugf("IND: CONNECT_ACTIVE - plci 0x%x already %s", plci, c.State())
	}
}

// activate opens the local media device of kinds that have one. A failure
// hangs the call up.
func (s *Session) activate(c *Connection) {
	a, ok := c.handler.(Activator)
	if !ok || c.activated {
		return
	}
	if err := a.Activate(c); err != nil {
		s.log.WithError(err).Warnf("connection %d: activation failed", c.id)
		s.message("Device error", err.Error()+". Hangup")
		s.hangup(c)
		return
	}
	c.activated = true
}

func (s *Session) onConnectB3(m *capi20.Message) {
	ncci := m.Addr
	c := s.pool.byPLCI(m.PLCI())
	if c == nil {
		s.log.Debugf("IND: CONNECT_B3 - unknown ncci 0x%x", ncci)
		s.respond(m.Number, capi20.ConnectB3Resp(ncci, capi20.RejectNormal))
		return
	}
	s.respond(m.Number, capi20.ConnectB3Resp(ncci, capi20.RejectAccept))
	if c.State() != StateConnectActive {
		s.hangup(c)
		return
	}
	c.ncci.Store(ncci)
	c.setState(StateConnectB3Wait)
}

func (s *Session) onConnectB3Active(m *capi20.Message) {
	ncci := m.Addr
	s.respond(m.Number, capi20.ConnectB3ActiveResp(ncci))

	c := s.pool.byPLCI(m.PLCI())
	if c == nil {
		s.log.Debugf("IND: CONNECT_B3_ACTIVE - unknown ncci 0x%x", ncci)
		return
	}
	switch c.State() {
	case StateDisconnectB3Req, StateDisconnectB3Wait, StateDisconnectActive:
		// already hung up locally; keep the ncci so DISCONNECT_B3 matches
		c.ncci.Store(ncci)
		s.log.Debugf("IND: CONNECT_B3_ACTIVE - ncci 0x%x, connection %d already %s", ncci, c.id, c.State())
		return
	}
	c.ncci.Store(ncci)
	c.ncpi = append([]byte(nil), m.NCPI...)

	if !c.initialized && c.handler != nil {
		c.initialized = true
		if err := c.handler.Init(c); err != nil {
			s.log.WithError(err).Warnf("connection %d: init failed", c.id)
			s.message("Device error", err.Error()+". Hangup")
			s.hangup(c)
			return
		}
	}

	s.log.Debugf("REQ: FACILITY - plci 0x%x, enable DTMF", c.plci.Load())
	s.request(capi20.FacilityReq(c.plci.Load(), facilityDTMF, dtmfListenParam))

	c.setState(StateConnected)
	if !c.announced {
		c.announced = true
		s.post(EventConnect, c)
	}
}

func (s *Session) onData(m *capi20.Message) {
	ncci := m.Addr
	s.log.Tracef("IND: DATA_B3 - ncci 0x%x, %d bytes, handle %d", ncci, len(m.Data), m.DataHandle)
	c := s.pool.byNCCI(ncci)
	if c == nil {
		s.log.Warnf("IND: DATA_B3 - unknown ncci 0x%x", ncci)
	} else if c.State() == StateConnected && c.handler != nil {
		s.metrics.bytes.WithLabelValues("rx").Add(float64(len(m.Data)))
		c.handler.Data(c, m.Data)
	}
	s.respond(m.Number, capi20.DataB3Resp(ncci, m.DataHandle))
}

func (s *Session) onFacility(m *capi20.Message) {
	s.respond(m.Number, capi20.FacilityResp(m.Addr, m.FacilitySelector, m.FacilityParameter))

	c := s.pool.byPLCI(m.PLCI())
	if c == nil {
		s.log.Debugf("IND: FACILITY - unknown plci 0x%x", m.PLCI())
		return
	}
	switch m.FacilitySelector {
	case facilityDTMF:
		for _, tone := range dtmfTones(m.FacilityParameter) {
			s.events.post(Event{Type: EventCode, Call: c.Info(), Tone: tone})
		}
	case facilitySupplementary:
		switch code := suppServiceCode(m.FacilityParameter); code {
		case suppRetrieve:
			s.log.Debugf("IND: FACILITY - plci 0x%x retrieved", m.PLCI())
			if info := s.request(capi20.ConnectB3Req(c.plci.Load(), nil)); info != capi20.InfoOK {
				s.status(c, info)
				s.hangup(c)
				return
			}
			c.setState(StateConnectActive)
		case suppHold:
			s.log.Debugf("IND: FACILITY - plci 0x%x on hold", m.PLCI())
		default:
			s.log.Debugf("IND: FACILITY - supplementary service 0x%04x", code)
		}
	default:
		s.log.Debugf("IND: FACILITY - unhandled selector %d", m.FacilitySelector)
	}
}

func (s *Session) onInfo(m *capi20.Message) {
	s.respond(m.Number, capi20.InfoResp(m.Addr))
	s.log.Debugf("IND: INFO - addr 0x%x, %s", m.Addr, describeInfo(m.InfoNumber, m.InfoElement))

	c := s.pool.byPLCI(m.PLCI())
	if c == nil {
		return
	}
	switch m.InfoNumber {
	case infoDisconnect:
		if c.State() == StateConnected && c.kind == KindFax {
			s.log.Debugf("connection %d: fax connected, waiting for remote disconnect", c.id)
			return
		}
		s.hangup(c)
	case infoProgressIndicator:
		if c.handler == nil || !c.handler.EarlyB3() || c.State() != StateConnectWait {
			return
		}
		s.log.Debugf("REQ: CONNECT_B3 - plci 0x%x, early B3", c.plci.Load())
		if info := s.request(capi20.ConnectB3Req(c.plci.Load(), nil)); info != capi20.InfoOK {
			s.status(c, info)
			s.hangup(c)
			return
		}
		c.connected = time.Now()
		c.setState(StateConnectActive)
		s.activate(c)
	}
}

func (s *Session) onDisconnectB3(m *capi20.Message) {
	ncci := m.Addr
	s.respond(m.Number, capi20.DisconnectB3Resp(ncci))

	c := s.pool.byNCCI(ncci)
	if c == nil {
		s.log.Debugf("IND: DISCONNECT_B3 - unknown ncci 0x%x", ncci)
		return
	}
	c.reasonB3 = m.ReasonB3
	c.ncpi = append([]byte(nil), m.NCPI...)
	c.ncci.Store(0)
	switch c.State() {
	case StateConnected, StateConnectB3Wait:
		c.setState(StateDisconnectActive)
	default:
		s.hangup(c)
	}
}

// onDisconnect finishes a call: kind teardown with the table unlocked, the
// terminal notification, then release of the slot.
func (s *Session) onDisconnect(m *capi20.Message) {
	plci := m.Addr
	s.respond(m.Number, capi20.DisconnectResp(plci))

	c := s.pool.byPLCI(plci)
	if c == nil {
		s.log.Debugf("IND: DISCONNECT - unknown plci 0x%x", plci)
		return
	}
	c.reason = m.Reason
	c.setState(StateIdle)
	c.plci.Store(0)
	c.ncci.Store(0)

	if a, ok := c.handler.(Activator); ok && c.activated {
		s.mu.Unlock()
		a.Deactivate(c)
		s.mu.Lock()
		c.activated = false
	}

	s.post(EventDisconnect, c)
	s.pool.release(c)
}
