package capi

import (
	"time"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"capictl/capi20"
)

// Kind selects the media handler bound to a connection.
type Kind int

const (
	KindNone Kind = iota
	KindPhone
	KindFax
)

func (k Kind) String() string {
	switch k {
	case KindPhone:
		return "phone"
	case KindFax:
		return "fax"
	}
	return "none"
}

// ParseKind maps "phone" and "fax" to their kinds.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "phone":
		return KindPhone, nil
	case "fax":
		return KindFax, nil
	}
	return KindNone, errors.Wrap(ErrUnknownKind, s)
}

type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// CallInfo is a point in time copy of a connection.
type CallInfo struct {
	ID          uint32
	Kind        Kind
	Direction   Direction
	State       State
	PLCI        uint32
	NCCI        uint32
	Source      string
	Target      string
	CreatedAt   time.Time
	ConnectedAt time.Time
	Reason      uint16
	ReasonB3    uint16
	NCPI        []byte
}

// Connection is one slot of the connection table. Fields other than the
// wire identifiers are guarded by the session mutex.
type Connection struct {
	s   *Session
	fsm *fsm.FSM

	id   uint32
	plci atomic.Uint32
	ncci atomic.Uint32

	kind    Kind
	handler Handler
	dir     Direction
	source  string
	target  string

	created   time.Time
	connected time.Time
	reason    uint16
	reasonB3  uint16
	ncpi      []byte

	// number of the CONNECT_REQ or CONNECT_IND that opened the call
	number uint16

	activated   bool
	initialized bool
	announced   bool

	private     any
	outstanding atomic.Int32
	handle      atomic.Uint32
}

func (c *Connection) ID() uint32   { return c.id }
func (c *Connection) PLCI() uint32 { return c.plci.Load() }
func (c *Connection) NCCI() uint32 { return c.ncci.Load() }
func (c *Connection) Kind() Kind   { return c.kind }

// Private returns the handler data attached with SetPrivate.
func (c *Connection) Private() any     { return c.private }
func (c *Connection) SetPrivate(v any) { c.private = v }

// Info returns a snapshot of the connection.
func (c *Connection) Info() CallInfo {
	return CallInfo{
		ID:          c.id,
		Kind:        c.kind,
		Direction:   c.dir,
		State:       c.State(),
		PLCI:        c.plci.Load(),
		NCCI:        c.ncci.Load(),
		Source:      c.source,
		Target:      c.target,
		CreatedAt:   c.created,
		ConnectedAt: c.connected,
		Reason:      c.reason,
		ReasonB3:    c.reasonB3,
		NCPI:        append([]byte(nil), c.ncpi...),
	}
}

func (c *Connection) bind(h Handler) {
	c.handler = h
	c.kind = h.Kind()
}

// SendData queues one B3 frame on the data channel. It does not take the
// session mutex, so media workers and handlers may both call it.
func (c *Connection) SendData(frame []byte) error {
	ncci := c.ncci.Load()
	if ncci == 0 {
		return ErrNotConnected
	}
	if c.outstanding.Inc() > int32(c.s.opts.buffers) {
		c.outstanding.Dec()
		return ErrFlowControl
	}
	handle := uint16(c.handle.Inc())
	c.s.log.Tracef("REQ: DATA_B3 - ncci 0x%x, %d bytes, handle %d", ncci, len(frame), handle)
	if info := c.s.request(capi20.DataB3Req(ncci, frame, handle)); info != capi20.InfoOK {
		c.outstanding.Dec()
		return errors.Wrapf(info, "data request on ncci 0x%x", ncci)
	}
	c.s.metrics.bytes.WithLabelValues("tx").Add(float64(len(frame)))
	return nil
}

func (c *Connection) reset() {
	c.id = 0
	c.plci.Store(0)
	c.ncci.Store(0)
	c.fsm.SetState(string(StateIdle))
	c.kind = KindNone
	c.handler = nil
	c.dir = Outgoing
	c.source, c.target = "", ""
	c.created, c.connected = time.Time{}, time.Time{}
	c.reason, c.reasonB3 = 0, 0
	c.ncpi = nil
	c.number = 0
	c.activated, c.initialized, c.announced = false, false, false
	c.private = nil
	c.outstanding.Store(0)
	c.handle.Store(0)
}
