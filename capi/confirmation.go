package capi

import "capictl/capi20"

// confirmation handles one confirmation; mu is held.
func (s *Session) confirmation(m *capi20.Message) {
	switch m.Command {
	case capi20.CmdConnect:
		s.onConnectConf(m)
	case capi20.CmdAlert:
		s.onAlertConf(m)
	case capi20.CmdDataB3:
		if c := s.pool.byNCCI(m.Addr); c != nil && c.outstanding.Load() > 0 {
			c.outstanding.Dec()
		}
	case capi20.CmdConnectB3:
		if m.Info == capi20.InfoOK {
			return
		}
		if c := s.pool.byPLCI(m.PLCI()); c != nil {
			s.status(c, m.Info)
			s.hangup(c)
		}
	case capi20.CmdDisconnectB3:
		s.onDisconnectB3Conf(m)
	case capi20.CmdFacility, capi20.CmdInfo, capi20.CmdListen, capi20.CmdDisconnect:
		if m.Info != capi20.InfoOK {
			s.log.Debugf("CNF: %s - addr 0x%x: %v", m.Command, m.Addr, m.Info)
		}
	default:
		s.log.Debugf("CNF: unhandled command %s", m.Command)
	}
}

func (s *Session) onConnectConf(m *capi20.Message) {
	c := s.pool.pending(m)
	if c == nil {
		s.log.Warnf("CNF: CONNECT - plci 0x%x without a pending call", m.Addr)
		return
	}
	if m.Info != capi20.InfoOK {
		s.log.Debugf("CNF: CONNECT - connection %d failed: %v", c.id, m.Info)
		c.setState(StateIdle)
		s.status(c, m.Info)
		s.pool.release(c)
		return
	}
	c.plci.Store(m.Addr)
	c.setState(StateConnectWait)
}

func (s *Session) onAlertConf(m *capi20.Message) {
	c := s.pool.byPLCI(m.Addr)
	if c == nil {
		return
	}
	if m.Info != capi20.InfoOK && m.Info != capi20.InfoAlertAlreadySent {
		s.log.Debugf("CNF: ALERT - plci 0x%x: %v", m.Addr, m.Info)
		c.setState(StateIdle)
		s.status(c, m.Info)
		return
	}
	s.post(EventRinging, c)
}

func (s *Session) onDisconnectB3Conf(m *capi20.Message) {
	c := s.pool.byNCCI(m.Addr)
	if c == nil {
		return
	}
	if m.Info != capi20.InfoOK {
		s.status(c, m.Info)
		s.disconnect(c)
		return
	}
	if c.State() == StateDisconnectB3Req {
		c.setState(StateDisconnectB3Wait)
	}
}
