package capi

import "capictl/capi20"

// Handler attaches media behavior to a call kind. All methods run on the
// dispatch goroutine with the connection table locked; they must not call
// back into Session methods. Connection.SendData is safe to use.
type Handler interface {
	Kind() Kind
	// CIP is the service indicator used for outbound calls.
	CIP() uint16
	Protocol() capi20.Bearer
	// EarlyB3 requests the data channel on the first progress indicator,
	// before the remote side answers.
	EarlyB3() bool
	// Init runs once when the data channel first becomes active.
	Init(c *Connection) error
	// Data receives every inbound B3 frame while connected.
	Data(c *Connection, frame []byte)
}

// Cleaner releases per-connection handler data when a slot is freed.
type Cleaner interface {
	Cleanup(c *Connection)
}

// Activator opens and closes a local media device around the physical
// connection. Deactivate runs with the connection table unlocked.
type Activator interface {
	Activate(c *Connection) error
	Deactivate(c *Connection)
}
