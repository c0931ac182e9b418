//go:build capi20

package capi20

/*
#cgo LDFLAGS: -lcapi20
#include <stdlib.h>
#include <string.h>
#include <sys/time.h>
#include <capi20.h>
#include <capiutils.h>

static void cmsg_set_adr(_cmsg *m, _cdword adr) { m->adr.adrController = adr; }
static _cdword cmsg_adr(_cmsg *m) { return m->adr.adrController; }

static void cmsg_set_data(_cmsg *m, void *p, _cword len, _cword handle, _cword flags) {
    DATA_B3_REQ_DATA(m) = p;
    DATA_B3_REQ_DATALENGTH(m) = len;
    DATA_B3_REQ_DATAHANDLE(m) = handle;
    DATA_B3_REQ_FLAGS(m) = flags;
}

static void *cmsg_data(_cmsg *m) { return (void *) DATA_B3_IND_DATA(m); }

static unsigned cmsg_wait(unsigned appl, long usec) {
    struct timeval tv;
    tv.tv_sec = usec / 1000000;
    tv.tv_usec = usec % 1000000;
    return capi20_waitformessage(appl, &tv);
}

static unsigned cmsg_register(unsigned b3, unsigned blocks, unsigned size, unsigned *appl) {
    return capi20_register(b3, blocks, size, appl);
}

static void set_remote(char *host, int port) {
    capi20ext_set_driver("fritzbox");
    capi20ext_set_host(host);
    capi20ext_set_port(port);
}
*/
import "C"

import (
	"time"
	"unsafe"
)

// lib binds libcapi20. One _cmsg buffer is reused for each direction.
type lib struct {
	in  C._cmsg
	out C._cmsg
}

func newTransport(cfg Config) Transport {
	if cfg.Host != "" {
		host := C.CString(cfg.Host)
		defer C.free(unsafe.Pointer(host))
		port := cfg.Port
		if port == 0 {
			port = 5031
		}
		C.set_remote(host, C.int(port))
	}
	return &lib{}
}

func result(rc C.uint) error {
	if rc == 0 {
		return nil
	}
	return Info(rc)
}

func (l *lib) IsInstalled() error {
	return result(C.capi20_isinstalled())
}

func (l *lib) Profile(controller uint32) (Profile, error) {
	var buf [64]byte
	if err := result(C.capi20_get_profile(C.uint(controller), (*C.uchar)(unsafe.Pointer(&buf[0])))); err != nil {
		return Profile{}, err
	}
	return ParseProfile(buf[:])
}

func (l *lib) Register(bchannels, buffers, packetSize int) (uint16, error) {
	var appl C.uint
	if err := result(C.cmsg_register(C.uint(bchannels), C.uint(buffers), C.uint(packetSize), &appl)); err != nil {
		return 0, err
	}
	return uint16(appl), nil
}

func (l *lib) Release(applID uint16) error {
	return result(C.capi20_release(C.uint(applID)))
}

func (l *lib) WaitForMessage(applID uint16, timeout time.Duration) error {
	if C.cmsg_wait(C.uint(applID), C.long(timeout/time.Microsecond)) != 0 {
		return ErrTimeout
	}
	return nil
}

func goStruct(p *C.uchar) []byte {
	if p == nil {
		return nil
	}
	n := int(*p)
	return C.GoBytes(unsafe.Pointer(p), C.int(n+1))
}

func (l *lib) GetMessage(applID uint16) (*Message, error) {
	if err := result(C.capi_get_cmsg(&l.in, C.uint(applID))); err != nil {
		return nil, err
	}
	c := &l.in
	m := &Message{
		ApplID:     uint16(c.ApplId),
		Command:    Command(c.Command),
		Subcommand: Subcommand(c.Subcommand),
		Number:     uint16(c.Messagenumber),
		Addr:       uint32(C.cmsg_adr(c)),
		Info:       Info(c.Info),
		CIP:        uint16(c.CIPValue),
		InfoNumber: uint16(c.InfoNumber),
		Reason:     uint16(c.Reason),
		ReasonB3:   uint16(c.Reason_B3),
		DataHandle: uint16(c.DataHandle),
		Flags:      uint16(c.Flags),

		FacilitySelector: uint16(c.FacilitySelector),
	}
	switch {
	case m.Command == CmdConnect && m.Subcommand == Ind:
		m.CalledPartyNumber = goStruct(c.CalledPartyNumber)
		m.CallingPartyNumber = goStruct(c.CallingPartyNumber)
		m.BC = goStruct(c.BC)
		m.LLC = goStruct(c.LLC)
		m.HLC = goStruct(c.HLC)
	case m.Command == CmdInfo && m.Subcommand == Ind:
		m.InfoElement = goStruct(c.InfoElement)
	case m.Command == CmdFacility && m.Subcommand == Ind:
		m.FacilityParameter = goStruct(c.FacilityIndicationParameter)
	case m.Command == CmdFacility && m.Subcommand == Conf:
		m.FacilityParameter = goStruct(c.FacilityConfirmationParameter)
	case m.Command == CmdConnectB3Active && m.Subcommand == Ind,
		m.Command == CmdDisconnectB3 && m.Subcommand == Ind:
		m.NCPI = goStruct(c.NCPI)
	case m.Command == CmdDataB3 && m.Subcommand == Ind:
		m.Data = C.GoBytes(C.cmsg_data(c), C.int(c.DataLength))
	}
	return m, nil
}

type cAlloc []unsafe.Pointer

func (a *cAlloc) bytes(b []byte) *C.uchar {
	if len(b) == 0 {
		return nil
	}
	p := C.CBytes(b)
	*a = append(*a, p)
	return (*C.uchar)(p)
}

func (a cAlloc) free() {
	for _, p := range a {
		C.free(p)
	}
}

func (l *lib) PutMessage(m *Message) error {
	var mem cAlloc
	defer mem.free()

	c := &l.out
	C.memset(unsafe.Pointer(c), 0, C.sizeof__cmsg)
	C.capi_cmsg_header(c, C._cword(m.ApplID), C._cbyte(m.Command), C._cbyte(m.Subcommand), C._cword(m.Number), 0)
	C.cmsg_set_adr(c, C._cdword(m.Addr))

	c.CIPValue = C._cword(m.CIP)
	c.CIPmask = C._cdword(m.CIPMask)
	c.InfoMask = C._cdword(m.InfoMask)
	c.Reject = C._cword(m.Reject)
	c.B1protocol = C._cword(m.Bearer.B1)
	c.B2protocol = C._cword(m.Bearer.B2)
	c.B3protocol = C._cword(m.Bearer.B3)
	c.B1configuration = mem.bytes(m.Bearer.B1Config)
	c.B2configuration = mem.bytes(m.Bearer.B2Config)
	c.B3configuration = mem.bytes(m.Bearer.B3Config)
	c.CalledPartyNumber = mem.bytes(m.CalledPartyNumber)
	c.CallingPartyNumber = mem.bytes(m.CallingPartyNumber)
	c.ConnectedNumber = mem.bytes(m.ConnectedNumber)
	c.BC = mem.bytes(m.BC)
	c.LLC = mem.bytes(m.LLC)
	c.HLC = mem.bytes(m.HLC)
	c.NCPI = mem.bytes(m.NCPI)
	c.FacilitySelector = C._cword(m.FacilitySelector)
	c.Facilitydataarray = mem.bytes(m.FacilityData)
	if m.Subcommand == Req {
		c.FacilityRequestParameter = mem.bytes(m.FacilityParameter)
	} else {
		c.FacilityResponseParameters = mem.bytes(m.FacilityParameter)
	}
	if m.Command == CmdDataB3 {
		if m.Subcommand == Req {
			var p unsafe.Pointer
			if len(m.Data) > 0 {
				p = C.CBytes(m.Data)
				mem = append(mem, p)
			}
			C.cmsg_set_data(c, p, C._cword(len(m.Data)), C._cword(m.DataHandle), C._cword(m.Flags))
		} else {
			c.DataHandle = C._cword(m.DataHandle)
		}
	}
	return result(C.capi_put_cmsg(c))
}
