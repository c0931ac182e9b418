package capi

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"
)

// State is the lifecycle state of a connection slot.
type State string

const (
	StateIdle             State = "IDLE"
	StateConnectWait      State = "CONNECT_WAIT"
	StateConnectActive    State = "CONNECT_ACTIVE"
	StateConnectB3Wait    State = "CONNECT_B3_WAIT"
	StateConnected        State = "CONNECTED"
	StateDisconnectB3Req  State = "DISCONNECT_B3_REQ"
	StateDisconnectB3Wait State = "DISCONNECT_B3_WAIT"
	StateDisconnectActive State = "DISCONNECT_ACTIVE"
	StateIncomingWait     State = "INCOMING_WAIT"
	StateRinging          State = "RINGING"
)

// States lists every state in declaration order.
var States = []State{
	StateIdle,
	StateConnectWait,
	StateConnectActive,
	StateConnectB3Wait,
	StateConnected,
	StateDisconnectB3Req,
	StateDisconnectB3Wait,
	StateDisconnectActive,
	StateIncomingWait,
	StateRinging,
}

func src(states ...State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

// Events are named after their destination state.
var transitions = fsm.Events{
	{Name: string(StateConnectWait), Src: src(StateIdle), Dst: string(StateConnectWait)},
	{Name: string(StateRinging), Src: src(StateIdle), Dst: string(StateRinging)},
	{Name: string(StateIncomingWait), Src: src(StateRinging), Dst: string(StateIncomingWait)},
	{
		Name: string(StateConnectActive),
		Src:  src(StateConnectWait, StateIncomingWait, StateConnected, StateConnectB3Wait, StateDisconnectActive),
		Dst:  string(StateConnectActive),
	},
	{Name: string(StateConnectB3Wait), Src: src(StateConnectActive), Dst: string(StateConnectB3Wait)},
	{Name: string(StateConnected), Src: src(StateConnectActive, StateConnectB3Wait), Dst: string(StateConnected)},
	{Name: string(StateDisconnectB3Req), Src: src(StateConnectB3Wait, StateConnected), Dst: string(StateDisconnectB3Req)},
	{Name: string(StateDisconnectB3Wait), Src: src(StateDisconnectB3Req), Dst: string(StateDisconnectB3Wait)},
	{
		Name: string(StateDisconnectActive),
		Src: src(StateConnectWait, StateConnectActive, StateConnectB3Wait, StateConnected,
			StateDisconnectB3Req, StateDisconnectB3Wait, StateIncomingWait),
		Dst: string(StateDisconnectActive),
	},
	{Name: string(StateIdle), Src: src(States[1:]...), Dst: string(StateIdle)},
}

func newStateMachine(c *Connection) *fsm.FSM {
	return fsm.NewFSM(string(StateIdle), transitions, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			c.enterState(State(e.Src), State(e.Dst))
		},
	})
}

// State returns the current state of the slot.
func (c *Connection) State() State {
	return State(c.fsm.Current())
}

// setState moves the slot to the target state. Transitions missing from the
// table are logged and forced.
func (c *Connection) setState(to State) {
	from := c.State()
	if from == to {
		return
	}
	err := c.fsm.Event(context.Background(), string(to))
	if err == nil {
		return
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return
	}
	c.s.log.WithError(err).Warnf("connection %d: forcing %s -> %s", c.id, from, to)
	c.fsm.SetState(string(to))
	c.enterState(from, to)
}

func (c *Connection) enterState(from, to State) {
	c.s.metrics.transitions.WithLabelValues(string(from), string(to)).Inc()
	c.s.log.Debugf("connection %d: %s -> %s", c.id, from, to)
}
