package main

import (
	"strings"
	"sync"
	"time"

	"capictl/capi"
	"capictl/cdr"
)

// CallContext holds what the gateway tracks about one call until it ends.
type CallContext struct {
	ID        uint32
	Kind      capi.Kind
	Direction capi.Direction
	Source    string
	Target    string
	Answered  bool
	Started   time.Time
	Connected time.Time

	digits strings.Builder
}

func newCallContext(info capi.CallInfo) *CallContext {
	started := info.CreatedAt
	if started.IsZero() {
		started = time.Now()
	}
	return &CallContext{
		ID:        info.ID,
		Kind:      info.Kind,
		Direction: info.Direction,
		Source:    info.Source,
		Target:    info.Target,
		Started:   started,
	}
}

// Digits returns the DTMF tones received so far.
func (c *CallContext) Digits() string { return c.digits.String() }

func (c *CallContext) addDigit(tone byte) { c.digits.WriteByte(tone) }

// record builds the detail record of the finished call from its final snapshot.
func (c *CallContext) record(final capi.CallInfo, ended time.Time) cdr.Record {
	kind := c.Kind
	if final.Kind != capi.KindNone {
		kind = final.Kind
	}
	connected := c.Connected
	if !final.ConnectedAt.IsZero() {
		connected = final.ConnectedAt
	}
	return cdr.Record{
		CallID:      c.ID,
		Kind:        kind.String(),
		Direction:   c.Direction.String(),
		Source:      c.Source,
		Target:      c.Target,
		Digits:      c.Digits(),
		Answered:    c.Answered,
		StartedAt:   c.Started,
		ConnectedAt: connected,
		EndedAt:     ended,
		Reason:      final.Reason,
		ReasonB3:    final.ReasonB3,
	}
}

// callTable maps connection ids to their contexts.
type callTable struct {
	mu    sync.Mutex
	calls map[uint32]*CallContext
}

func newCallTable() *callTable {
	return &callTable{calls: make(map[uint32]*CallContext)}
}

// get returns the context of info, creating it on first sight.
func (t *callTable) get(info capi.CallInfo) *CallContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[info.ID]
	if !ok {
		c = newCallContext(info)
		t.calls[info.ID] = c
	}
	return c
}

func (t *callTable) remove(id uint32) (*CallContext, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[id]
	delete(t.calls, id)
	return c, ok
}

func (t *callTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
