//go:build !capi20

package capi20

import "time"

// transport is used when the capi20 build tag is disabled. It reports the
// stack as missing.
type transport struct{}

func newTransport(Config) Transport { return transport{} }

func (transport) IsInstalled() error                     { return ErrNotInstalled }
func (transport) Profile(uint32) (Profile, error)        { return Profile{}, ErrNotInstalled }
func (transport) Register(int, int, int) (uint16, error) { return 0, ErrNotInstalled }
func (transport) Release(uint16) error                   { return nil }
func (transport) GetMessage(uint16) (*Message, error)    { return nil, ErrNotInstalled }
func (transport) PutMessage(*Message) error              { return ErrNotInstalled }

func (transport) WaitForMessage(_ uint16, timeout time.Duration) error {
	time.Sleep(timeout)
	return ErrTimeout
}
