// Package capi implements ISDN call control on a CAPI 2.0 transport: a fixed
// connection table, a per-call state machine and a dispatch loop that turns
// wire messages into application events.
package capi

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"capictl/capi20"
)

const (
	listenInfoMask = 0x3FF
	listenCIPMask  = 0x1FFF03FF
)

var (
	activeMu sync.Mutex
	active   *Session
)

// Session owns the CAPI registration, the connection table and the dispatch
// loop. Lock order is mu before wire.
type Session struct {
	tr      capi20.Transport
	opts    options
	log     *logrus.Entry
	metrics *metrics

	applID atomic.Uint32
	number atomic.Uint32

	// wire serializes transport calls other than WaitForMessage.
	wire sync.Mutex
	mu   sync.Mutex
	pool *pool

	events *notifier

	closeMu sync.Mutex
	closed  bool

	cancel context.CancelFunc
	done   chan struct{}
	errMu  sync.Mutex
	err    error
}

func newSession(tr capi20.Transport, o options) *Session {
	s := &Session{
		tr:      tr,
		opts:    o,
		log:     o.log,
		metrics: newMetrics(o.registerer),
		events:  newNotifier(),
		done:    make(chan struct{}),
	}
	s.pool = newPool(s, o.connections)
	return s
}

// Open returns the process wide session, registering with the stack and
// starting the dispatch loop on first use. Later calls return the running
// session and ignore their arguments. Cancelling ctx ends the session the
// way Close does.
func Open(ctx context.Context, tr capi20.Transport, opts ...Option) (*Session, error) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active != nil {
		return active, nil
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := newSession(tr, o)
	id, err := s.register()
	if err != nil {
		return nil, err
	}
	s.applID.Store(uint32(id))

	ctx, s.cancel = context.WithCancel(ctx)
	go s.events.run()
	go s.loop(ctx)

	active = s
	s.log.Infof("session registered (appl %d, %d slots)", id, o.connections)
	return s, nil
}

// Current returns the running session or nil.
func Current() *Session {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active
}

func (s *Session) deactivate() {
	activeMu.Lock()
	if active == s {
		active = nil
	}
	activeMu.Unlock()
}

// register checks the stack, registers the application and listens on the
// configured controllers.
func (s *Session) register() (uint16, error) {
	s.wire.Lock()
	defer s.wire.Unlock()

	if err := s.tr.IsInstalled(); err != nil {
		return 0, errors.Wrapf(ErrStackUnavailable, "%v", err)
	}
	profile, err := s.tr.Profile(0)
	if err != nil {
		return 0, errors.Wrapf(ErrProfile, "%v", err)
	}
	if profile.Controllers == 0 {
		return 0, ErrNoControllers
	}
	s.log.Debugf("controllers: %d, dtmf: %v, supplementary services: %v",
		profile.Controllers, profile.DTMF(), profile.SupplementaryServices())

	id, err := s.tr.Register(s.opts.bchannels, s.opts.buffers, s.opts.packetSize)
	if err != nil {
		return 0, errors.Wrapf(ErrRegister, "%v", err)
	}
	if id == 0 {
		return 0, ErrRegister
	}

	first, last := 1, int(profile.Controllers)
	if s.opts.controller > 0 {
		first, last = s.opts.controller, s.opts.controller
	}
	for ctrl := first; ctrl <= last; ctrl++ {
		m := capi20.ListenReq(uint32(ctrl), listenInfoMask, listenCIPMask)
		m.ApplID = id
		m.Number = uint16(s.number.Inc())
		if err := s.tr.PutMessage(m); err != nil {
			if rerr := s.tr.Release(id); rerr != nil {
				s.log.WithError(rerr).Warn("release after failed listen")
			}
			return 0, errors.Wrapf(ErrListen, "controller %d: %v", ctrl, err)
		}
	}
	return id, nil
}

// ApplID returns the current registration, zero when unregistered.
func (s *Session) ApplID() uint16 {
	return uint16(s.applID.Load())
}

// Close hangs up every call, releases the registration and stops the
// dispatch loop. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeMu.Lock()
	if !s.closed {
		s.closed = true
		s.shutdown()
	}
	s.closeMu.Unlock()

	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.events.close()
	s.deactivate()
	return nil
}

// abandon releases a session whose context ended without Close and stops
// the event pump.
func (s *Session) abandon() {
	s.closeMu.Lock()
	if !s.closed {
		s.closed = true
		s.log.Info("session context done, releasing registration")
		s.shutdown()
	}
	s.closeMu.Unlock()
	s.events.close()
}

// shutdown hangs up occupied slots and releases the registration. closeMu
// must be held.
func (s *Session) shutdown() {
	id := uint16(s.applID.Load())
	if id == 0 {
		return
	}
	s.mu.Lock()
	for _, c := range s.pool.slots {
		if c.plci.Load() == 0 && c.ncci.Load() == 0 {
			continue
		}
		s.hangup(c)
		s.mu.Unlock()
		time.Sleep(s.opts.closeYield)
		s.mu.Lock()
	}
	s.mu.Unlock()

	s.wire.Lock()
	err := s.tr.Release(id)
	s.wire.Unlock()
	if err != nil {
		s.log.WithError(err).Warnf("release of appl %d", id)
	}
	s.applID.Store(0)
}

// Done is closed when the dispatch loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that stopped the dispatch loop, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Events delivers notifications in order. The channel is closed by Close.
func (s *Session) Events() <-chan Event { return s.events.out }

// Connection returns a snapshot of the call with the given id.
func (s *Session) Connection(id uint32) (CallInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.pool.byID(id)
	if c == nil {
		return CallInfo{}, false
	}
	return c.Info(), true
}

// Connections returns snapshots of all occupied slots.
func (s *Session) Connections() []CallInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.occupied()
}

// request puts a request under a fresh message number.
func (s *Session) request(m *capi20.Message) capi20.Info {
	m.ApplID = uint16(s.applID.Load())
	m.Number = uint16(s.number.Inc())
	return s.put(m)
}

// respond answers an indication, echoing its message number.
func (s *Session) respond(number uint16, m *capi20.Message) capi20.Info {
	m.ApplID = uint16(s.applID.Load())
	m.Number = number
	return s.put(m)
}

func (s *Session) put(m *capi20.Message) capi20.Info {
	s.wire.Lock()
	err := s.tr.PutMessage(m)
	s.wire.Unlock()

	info := capi20.InfoOf(err)
	s.metrics.request(m.Command, info)
	if info != capi20.InfoOK {
		s.log.Warnf("%s_%s addr 0x%x: %v", m.Command, m.Subcommand, m.Addr, info)
	}
	return info
}

func (s *Session) post(t EventType, c *Connection) {
	s.events.post(Event{Type: t, Call: c.Info()})
}

func (s *Session) status(c *Connection, info capi20.Info) {
	s.events.post(Event{Type: EventStatus, Call: c.Info(), Status: uint16(info)})
}

func (s *Session) message(title, body string) {
	s.events.post(Event{Type: EventMessage, Title: title, Body: body})
}
