package capi20

// Builders for the messages the call layer puts on the wire. ApplID and
// Number are filled in by the sender.

func ListenReq(controller, infoMask, cipMask uint32) *Message {
	return &Message{Command: CmdListen, Subcommand: Req, Addr: controller, InfoMask: infoMask, CIPMask: cipMask}
}

func ConnectReq(controller uint32, cip uint16, called, calling []byte, b Bearer, bc, llc, hlc []byte) *Message {
	return &Message{
		Command:            CmdConnect,
		Subcommand:         Req,
		Addr:               controller,
		CIP:                cip,
		CalledPartyNumber:  called,
		CallingPartyNumber: calling,
		Bearer:             b,
		BC:                 bc,
		LLC:                llc,
		HLC:                hlc,
	}
}

// Reject values of CONNECT_RESP.
const (
	RejectAccept   uint16 = 0
	RejectIgnore   uint16 = 1
	RejectNormal   uint16 = 2
	RejectUserBusy uint16 = 3
)

func ConnectResp(plci uint32, reject uint16, b Bearer, connected []byte) *Message {
	return &Message{Command: CmdConnect, Subcommand: Resp, Addr: plci, Reject: reject, Bearer: b, ConnectedNumber: connected}
}

func ConnectActiveResp(plci uint32) *Message {
	return &Message{Command: CmdConnectActive, Subcommand: Resp, Addr: plci}
}

func AlertReq(plci uint32) *Message {
	return &Message{Command: CmdAlert, Subcommand: Req, Addr: plci}
}

func ConnectB3Req(plci uint32, ncpi []byte) *Message {
	return &Message{Command: CmdConnectB3, Subcommand: Req, Addr: plci, NCPI: ncpi}
}

func ConnectB3Resp(ncci uint32, reject uint16) *Message {
	return &Message{Command: CmdConnectB3, Subcommand: Resp, Addr: ncci, Reject: reject}
}

func ConnectB3ActiveResp(ncci uint32) *Message {
	return &Message{Command: CmdConnectB3Active, Subcommand: Resp, Addr: ncci}
}

func DataB3Req(ncci uint32, data []byte, handle uint16) *Message {
	return &Message{Command: CmdDataB3, Subcommand: Req, Addr: ncci, Data: data, DataHandle: handle}
}

func DataB3Resp(ncci uint32, handle uint16) *Message {
	return &Message{Command: CmdDataB3, Subcommand: Resp, Addr: ncci, DataHandle: handle}
}

func DisconnectB3Req(ncci uint32) *Message {
	return &Message{Command: CmdDisconnectB3, Subcommand: Req, Addr: ncci}
}

func DisconnectB3Resp(ncci uint32) *Message {
	return &Message{Command: CmdDisconnectB3, Subcommand: Resp, Addr: ncci}
}

func DisconnectReq(plci uint32) *Message {
	return &Message{Command: CmdDisconnect, Subcommand: Req, Addr: plci}
}

func DisconnectResp(plci uint32) *Message {
	return &Message{Command: CmdDisconnect, Subcommand: Resp, Addr: plci}
}

func FacilityReq(addr uint32, selector uint16, param []byte) *Message {
	return &Message{Command: CmdFacility, Subcommand: Req, Addr: addr, FacilitySelector: selector, FacilityParameter: param}
}

func FacilityResp(addr uint32, selector uint16, param []byte) *Message {
	return &Message{Command: CmdFacility, Subcommand: Resp, Addr: addr, FacilitySelector: selector, FacilityParameter: param}
}

// InfoReq carries additional information such as a display element in the
// facility data array.
func InfoReq(plci uint32, facility []byte) *Message {
	return &Message{Command: CmdInfo, Subcommand: Req, Addr: plci, FacilityData: facility}
}

func InfoResp(addr uint32) *Message {
	return &Message{Command: CmdInfo, Subcommand: Resp, Addr: addr}
}
