// Package capi20 models CAPI 2.0 messages and binds the libcapi20 driver.
package capi20

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Command is a CAPI 2.0 message command.
type Command uint8

const (
	CmdAlert           Command = 0x01
	CmdConnect         Command = 0x02
	CmdConnectActive   Command = 0x03
	CmdDisconnect      Command = 0x04
	CmdListen          Command = 0x05
	CmdInfo            Command = 0x08
	CmdSelectB         Command = 0x41
	CmdFacility        Command = 0x80
	CmdConnectB3       Command = 0x82
	CmdConnectB3Active Command = 0x83
	CmdDisconnectB3    Command = 0x84
	CmdDataB3          Command = 0x86
	CmdResetB3         Command = 0x87
	CmdManufacturer    Command = 0xff
)

var commandNames = map[Command]string{
	CmdAlert:           "ALERT",
	CmdConnect:         "CONNECT",
	CmdConnectActive:   "CONNECT_ACTIVE",
	CmdDisconnect:      "DISCONNECT",
	CmdListen:          "LISTEN",
	CmdInfo:            "INFO",
	CmdSelectB:         "SELECT_B_PROTOCOL",
	CmdFacility:        "FACILITY",
	CmdConnectB3:       "CONNECT_B3",
	CmdConnectB3Active: "CONNECT_B3_ACTIVE",
	CmdDisconnectB3:    "DISCONNECT_B3",
	CmdDataB3:          "DATA_B3",
	CmdResetB3:         "RESET_B3",
	CmdManufacturer:    "MANUFACTURER",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("0x%02x", uint8(c))
}

// Subcommand distinguishes requests, confirmations, indications and responses.
type Subcommand uint8

const (
	Req  Subcommand = 0x80
	Conf Subcommand = 0x81
	Ind  Subcommand = 0x82
	Resp Subcommand = 0x83
)

func (s Subcommand) String() string {
	switch s {
	case Req:
		return "REQ"
	case Conf:
		return "CNF"
	case Ind:
		return "IND"
	case Resp:
		return "RESP"
	}
	return fmt.Sprintf("0x%02x", uint8(s))
}

// CIP values used by the call kinds.
const (
	CIPSpeech    uint16 = 1
	CIPAudio31   uint16 = 4
	CIPTelephony uint16 = 16
	CIPFaxG23    uint16 = 17
)

// Bearer selects the B-channel protocol stack of a connection.
type Bearer struct {
	B1, B2, B3                   uint16
	B1Config, B2Config, B3Config []byte
}

// Transparent is 64 kbit/s bit-transparent B1 with transparent B2 and B3.
var Transparent = Bearer{B1: 1, B2: 1, B3: 0}

// Message is a decoded CAPI message. Struct fields hold CAPI structs including
// their leading length octet; nil encodes an empty struct.
type Message struct {
	ApplID     uint16
	Command    Command
	Subcommand Subcommand
	Number     uint16

	// Addr is the controller, PLCI or NCCI the message refers to.
	Addr uint32
	Info Info

	CIP                uint16
	CalledPartyNumber  []byte
	CallingPartyNumber []byte
	ConnectedNumber    []byte
	BC, LLC, HLC       []byte
	Bearer             Bearer
	Reject             uint16

	InfoMask uint32
	CIPMask  uint32

	InfoNumber  uint16
	InfoElement []byte

	Reason   uint16
	ReasonB3 uint16

	FacilitySelector  uint16
	FacilityParameter []byte
	FacilityData      []byte

	Data       []byte
	DataHandle uint16
	Flags      uint16

	NCPI []byte
}

// PLCI returns the physical connection part of Addr.
func (m *Message) PLCI() uint32 { return m.Addr & 0xffff }

func (m *Message) String() string {
	return fmt.Sprintf("%s_%s appl=%d num=%d addr=0x%x", m.Command, m.Subcommand, m.ApplID, m.Number, m.Addr)
}

// Profile is the host-format controller profile.
type Profile struct {
	Controllers   uint16
	BChannels     uint16
	GlobalOptions uint32
	B1Support     uint32
	B2Support     uint32
	B3Support     uint32
}

// ParseProfile decodes the 64 byte wire profile returned by CAPI_GET_PROFILE.
func ParseProfile(b []byte) (Profile, error) {
	if len(b) < 20 {
		return Profile{}, fmt.Errorf("capi20: short profile (%d bytes)", len(b))
	}
	return Profile{
		Controllers:   binary.LittleEndian.Uint16(b[0:]),
		BChannels:     binary.LittleEndian.Uint16(b[2:]),
		GlobalOptions: binary.LittleEndian.Uint32(b[4:]),
		B1Support:     binary.LittleEndian.Uint32(b[8:]),
		B2Support:     binary.LittleEndian.Uint32(b[12:]),
		B3Support:     binary.LittleEndian.Uint32(b[16:]),
	}, nil
}

func (p Profile) Internal() bool              { return p.GlobalOptions&0x01 != 0 }
func (p Profile) External() bool              { return p.GlobalOptions&0x02 != 0 }
func (p Profile) DTMF() bool                  { return p.GlobalOptions&0x08 != 0 }
func (p Profile) SupplementaryServices() bool { return p.GlobalOptions&0x10 != 0 }
func (p Profile) EchoCancellation() bool      { return p.GlobalOptions&0x200 != 0 }

func (p Profile) Transparent() bool {
	return p.B1Support&0x02 != 0 && p.B2Support&0x02 != 0 && p.B3Support&0x01 != 0
}

func (p Profile) Fax() bool {
	return p.B1Support&0x10 != 0 && p.B2Support&0x10 != 0 && p.B3Support&0x10 != 0
}

func (p Profile) FaxExtended() bool {
	return p.B1Support&0x10 != 0 && p.B2Support&0x10 != 0 && p.B3Support&0x20 != 0
}

// ErrTimeout is returned by WaitForMessage when nothing arrived in time.
var ErrTimeout = errors.New("capi20: no message pending")

// ErrQueueEmpty is reported by GetMessage when a message was signaled but the
// receive queue turned out to be empty.
var ErrQueueEmpty error = InfoReceiveQueueEmpty

// ErrNotInstalled is reported when no CAPI driver is available.
var ErrNotInstalled error = InfoNotInstalled

// Transport is the controller driver. WaitForMessage may block concurrently
// with the other methods; callers serialize everything else.
type Transport interface {
	IsInstalled() error
	Profile(controller uint32) (Profile, error)
	Register(bchannels, buffers, packetSize int) (uint16, error)
	Release(applID uint16) error
	WaitForMessage(applID uint16, timeout time.Duration) error
	GetMessage(applID uint16) (*Message, error)
	PutMessage(m *Message) error
}

// Config selects the driver backend.
type Config struct {
	// Host of a remote CAPI (fritzbox driver); empty uses local controllers.
	Host string
	Port int
}

// New creates a transport for cfg.
func New(cfg Config) Transport {
	return newTransport(cfg)
}
