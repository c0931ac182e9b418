package capi

import (
	"time"

	"capictl/capi20"
)

const firstConnectionID = 1024

// pool is the fixed connection table. A slot is free when its id is zero.
type pool struct {
	s      *Session
	slots  []*Connection
	nextID uint32
}

func newPool(s *Session, size int) *pool {
	p := &pool{s: s, slots: make([]*Connection, size), nextID: firstConnectionID}
	for i := range p.slots {
		c := &Connection{s: s}
		c.fsm = newStateMachine(c)
		p.slots[i] = c
	}
	return p
}

// allocate reserves the first free slot under a fresh identifier.
func (p *pool) allocate() (*Connection, error) {
	for _, c := range p.slots {
		if c.id != 0 {
			continue
		}
		c.id = p.nextID
		p.nextID++
		if p.nextID == 0 {
			p.nextID = firstConnectionID
		}
		c.created = time.Now()
		p.s.metrics.occupied.Inc()
		return c, nil
	}
	p.s.log.Warnf("no free connection slot (%d in use)", len(p.slots))
	return nil, ErrNoFreeConnection
}

// release runs the kind cleanup and frees the slot.
func (p *pool) release(c *Connection) {
	if c == nil || c.id == 0 {
		return
	}
	if cl, ok := c.handler.(Cleaner); ok {
		cl.Cleanup(c)
	} else if c.handler != nil {
		p.s.log.Warnf("connection %d: no cleanup for kind %s", c.id, c.kind)
	}
	c.reset()
	p.s.metrics.occupied.Dec()
}

func (p *pool) byID(id uint32) *Connection {
	if id == 0 {
		return nil
	}
	for _, c := range p.slots {
		if c.id == id {
			return c
		}
	}
	return nil
}

func (p *pool) byPLCI(plci uint32) *Connection {
	if plci == 0 {
		return nil
	}
	for _, c := range p.slots {
		if c.id != 0 && c.plci.Load() == plci {
			return c
		}
	}
	return nil
}

func (p *pool) byNCCI(ncci uint32) *Connection {
	if ncci == 0 {
		return nil
	}
	for _, c := range p.slots {
		if c.id != 0 && c.ncci.Load() == ncci {
			return c
		}
	}
	return nil
}

// pending finds the outbound call awaiting its CONNECT_CONF. A slot whose
// request carried the confirmation's message number wins.
func (p *pool) pending(m *capi20.Message) *Connection {
	var first *Connection
	for _, c := range p.slots {
		if c.id == 0 || c.dir != Outgoing || c.plci.Load() != 0 || c.State() != StateIdle {
			continue
		}
		if c.number == m.Number {
			return c
		}
		if first == nil {
			first = c
		}
	}
	return first
}

// occupied returns snapshots of every slot in use.
func (p *pool) occupied() []CallInfo {
	var out []CallInfo
	for _, c := range p.slots {
		if c.id != 0 {
			out = append(out, c.Info())
		}
	}
	return out
}
