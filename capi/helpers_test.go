package capi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"capictl/capi20"
	"capictl/capi20/fake"
)

const waitTimeout = 2 * time.Second

// testHandler records what the session does to it. It has no Cleanup.
type testHandler struct {
	kind  Kind
	early bool

	mu      sync.Mutex
	inits   int
	frames  [][]byte
	initErr error
}

func newTestHandler(kind Kind, early bool) *testHandler {
	return &testHandler{kind: kind, early: early}
}

func (h *testHandler) Kind() Kind              { return h.kind }
func (h *testHandler) CIP() uint16             { return capi20.CIPAudio31 }
func (h *testHandler) Protocol() capi20.Bearer { return capi20.Transparent }
func (h *testHandler) EarlyB3() bool           { return h.early }

func (h *testHandler) Init(*Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inits++
	return h.initErr
}

func (h *testHandler) Data(_ *Connection, frame []byte) {
	h.mu.Lock()
	h.frames = append(h.frames, append([]byte(nil), frame...))
	h.mu.Unlock()
}

func (h *testHandler) initCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inits
}

// cleaningHandler adds Cleanup and activation to testHandler.
type cleaningHandler struct {
	*testHandler
	cleanups    int
	activations int
	teardowns   int
	activateErr error
}

func (h *cleaningHandler) Cleanup(*Connection) {
	h.mu.Lock()
	h.cleanups++
	h.mu.Unlock()
}

func (h *cleaningHandler) Activate(*Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activations++
	return h.activateErr
}

func (h *cleaningHandler) Deactivate(*Connection) {
	h.mu.Lock()
	h.teardowns++
	h.mu.Unlock()
}

func (h *cleaningHandler) counts() (cleanups, activations, teardowns int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cleanups, h.activations, h.teardowns
}

func nullLogger() (*logrus.Entry, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

// openSession opens the singleton on a fake transport with fast timers.
func openSession(t *testing.T, opts ...Option) (*Session, *fake.Transport) {
	t.Helper()
	tr := fake.New()
	log, _ := nullLogger()
	base := []Option{
		WithLogger(log),
		WithPollInterval(5 * time.Millisecond),
		WithReconnectBackoff(5 * time.Millisecond),
		WithHandler(newTestHandler(KindPhone, true)),
		WithHandler(newTestHandler(KindFax, false)),
	}
	s, err := Open(context.Background(), tr, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, tr
}

// newTestSession builds a session without registration or dispatch loop.
func newTestSession(t *testing.T, opts ...Option) (*Session, *fake.Transport, *logtest.Hook) {
	t.Helper()
	o := defaultOptions()
	log, hook := nullLogger()
	o.log = log
	for _, opt := range opts {
		opt(&o)
	}
	tr := fake.New()
	s := newSession(tr, o)
	s.applID.Store(1)
	return s, tr, hook
}

func nextEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(waitTimeout):
		require.FailNow(t, "no event")
	}
	return Event{}
}

// expectEvent skips events of other types until one of type typ arrives.
func expectEvent(t *testing.T, s *Session, typ EventType) Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-s.Events():
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			require.FailNowf(t, "missing event", "no %s event", typ)
		}
	}
}

// noEvent asserts that no event of type typ arrives within d.
func noEvent(t *testing.T, s *Session, typ EventType, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case ev := <-s.Events():
			require.NotEqual(t, typ, ev.Type, "unexpected %s event", typ)
		case <-deadline:
			return
		}
	}
}

func waitState(t *testing.T, s *Session, id uint32, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		info, ok := s.Connection(id)
		return ok && info.State == want
	}, waitTimeout, time.Millisecond, "connection %d never reached %s", id, want)
}

func waitSent(t *testing.T, tr *fake.Transport, cmd capi20.Command, sub capi20.Subcommand, n int) []*capi20.Message {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(tr.SentMatching(cmd, sub)) >= n
	}, waitTimeout, time.Millisecond, "%s_%s not sent %d times", cmd, sub, n)
	return tr.SentMatching(cmd, sub)
}

func ind(cmd capi20.Command, addr uint32) *capi20.Message {
	return &capi20.Message{Command: cmd, Subcommand: capi20.Ind, Addr: addr}
}

func conf(cmd capi20.Command, addr uint32, info capi20.Info) *capi20.Message {
	return &capi20.Message{Command: cmd, Subcommand: capi20.Conf, Addr: addr, Info: info}
}

// dialConnected drives an outbound call to CONNECTED on plci and returns
// its id.
func dialConnected(t *testing.T, s *Session, tr *fake.Transport, plci uint32) uint32 {
	t.Helper()
	id, err := s.Call(CallRequest{Source: "100", Target: "200", Kind: KindPhone})
	require.NoError(t, err)
	req := tr.Last(capi20.CmdConnect, capi20.Req)
	require.NotNil(t, req)

	c := conf(capi20.CmdConnect, plci, capi20.InfoOK)
	c.Number = req.Number
	tr.Deliver(c)
	waitState(t, s, id, StateConnectWait)

	tr.Deliver(ind(capi20.CmdConnectActive, plci))
	waitState(t, s, id, StateConnectActive)
	ncci := plci | 0x10000
	tr.Deliver(ind(capi20.CmdConnectB3, ncci))
	waitState(t, s, id, StateConnectB3Wait)
	tr.Deliver(ind(capi20.CmdConnectB3Active, ncci))
	waitState(t, s, id, StateConnected)
	return id
}

// ringing delivers an inbound call on plci and returns its id.
func ringing(t *testing.T, s *Session, tr *fake.Transport, plci uint32, source, target string) uint32 {
	t.Helper()
	m := ind(capi20.CmdConnect, plci)
	m.CIP = capi20.CIPTelephony
	m.CallingPartyNumber = encodeCallingNumber(source, false, false)
	m.CalledPartyNumber = encodeCalledNumber(target)
	m.Number = 77
	tr.Deliver(m)
	ev := expectEvent(t, s, EventIncoming)
	return ev.Call.ID
}
