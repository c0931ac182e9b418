// Package fake provides a scriptable capi20.Transport for tests.
package fake

import (
	"sync"
	"time"

	"capictl/capi20"
)

type key struct {
	cmd capi20.Command
	sub capi20.Subcommand
}

// Transport records every message put on it and hands out queued messages.
type Transport struct {
	mu sync.Mutex

	installed   error
	profile     capi20.Profile
	profileErr  error
	registerErr error
	getErr      error
	failures    map[key]capi20.Info

	nextID        uint16
	registrations []uint16
	releases      []uint16

	inbox     []*capi20.Message
	anomalies int
	sent      []*capi20.Message

	wake chan struct{}
}

// New returns a transport with one controller and two B channels.
func New() *Transport {
	return &Transport{
		profile:  capi20.Profile{Controllers: 1, BChannels: 2, GlobalOptions: 0x19},
		failures: make(map[key]capi20.Info),
		nextID:   1,
		wake:     make(chan struct{}, 1),
	}
}

func (t *Transport) SetInstalled(err error) {
	t.mu.Lock()
	t.installed = err
	t.mu.Unlock()
}

func (t *Transport) SetProfile(p capi20.Profile, err error) {
	t.mu.Lock()
	t.profile, t.profileErr = p, err
	t.mu.Unlock()
}

func (t *Transport) SetRegisterError(err error) {
	t.mu.Lock()
	t.registerErr = err
	t.mu.Unlock()
}

// SetGetError makes every following GetMessage fail with err.
func (t *Transport) SetGetError(err error) {
	t.mu.Lock()
	t.getErr = err
	t.mu.Unlock()
	t.signal()
}

// Fail makes PutMessage return info for messages of the given type.
// InfoOK clears the failure.
func (t *Transport) Fail(cmd capi20.Command, sub capi20.Subcommand, info capi20.Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if info == capi20.InfoOK {
		delete(t.failures, key{cmd, sub})
		return
	}
	t.failures[key{cmd, sub}] = info
}

// Deliver queues m for the receiver.
func (t *Transport) Deliver(m *capi20.Message) {
	t.mu.Lock()
	t.inbox = append(t.inbox, m)
	t.mu.Unlock()
	t.signal()
}

// InjectQueueEmpty signals a message that is not there.
func (t *Transport) InjectQueueEmpty() {
	t.mu.Lock()
	t.anomalies++
	t.mu.Unlock()
	t.signal()
}

func (t *Transport) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Sent returns a copy of everything put so far.
func (t *Transport) Sent() []*capi20.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*capi20.Message(nil), t.sent...)
}

// SentMatching returns the messages put with the given command and subcommand.
func (t *Transport) SentMatching(cmd capi20.Command, sub capi20.Subcommand) []*capi20.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*capi20.Message
	for _, m := range t.sent {
		if m.Command == cmd && m.Subcommand == sub {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message of the given type, or nil.
func (t *Transport) Last(cmd capi20.Command, sub capi20.Subcommand) *capi20.Message {
	ms := t.SentMatching(cmd, sub)
	if len(ms) == 0 {
		return nil
	}
	return ms[len(ms)-1]
}

func (t *Transport) ClearSent() {
	t.mu.Lock()
	t.sent = nil
	t.mu.Unlock()
}

func (t *Transport) Registrations() []uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]uint16(nil), t.registrations...)
}

func (t *Transport) Releases() []uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]uint16(nil), t.releases...)
}

func (t *Transport) IsInstalled() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.installed
}

func (t *Transport) Profile(uint32) (capi20.Profile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.profile, t.profileErr
}

func (t *Transport) Register(int, int, int) (uint16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.registerErr != nil {
		return 0, t.registerErr
	}
	id := t.nextID
	t.nextID++
	t.registrations = append(t.registrations, id)
	return id, nil
}

func (t *Transport) Release(applID uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releases = append(t.releases, applID)
	return nil
}

func (t *Transport) ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inbox) > 0 || t.anomalies > 0 || t.getErr != nil
}

func (t *Transport) WaitForMessage(_ uint16, timeout time.Duration) error {
	if t.ready() {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.wake:
		if t.ready() {
			return nil
		}
	case <-timer.C:
	}
	return capi20.ErrTimeout
}

func (t *Transport) GetMessage(uint16) (*capi20.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.getErr != nil {
		return nil, t.getErr
	}
	if t.anomalies > 0 {
		t.anomalies--
		return nil, capi20.ErrQueueEmpty
	}
	if len(t.inbox) == 0 {
		return nil, capi20.ErrQueueEmpty
	}
	m := t.inbox[0]
	t.inbox = t.inbox[1:]
	return m, nil
}

func (t *Transport) PutMessage(m *capi20.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := *m
	t.sent = append(t.sent, &cp)
	if info, ok := t.failures[key{m.Command, m.Subcommand}]; ok {
		return info
	}
	return nil
}
