package capi20

import (
	"fmt"

	"github.com/pkg/errors"
)

// Info is a CAPI result code. Non-zero values are errors.
type Info uint16

const (
	InfoOK                  Info = 0x0000
	InfoNCPINotSupported    Info = 0x0001
	InfoFlagsNotSupported   Info = 0x0002
	InfoAlertAlreadySent    Info = 0x0003
	InfoTooManyApplications Info = 0x1001
	InfoBlockSizeTooSmall   Info = 0x1002
	InfoOSResourceError     Info = 0x1008
	InfoNotInstalled        Info = 0x1009
	InfoIllegalApplication  Info = 0x1101
	InfoIllegalCommand      Info = 0x1102
	InfoSendQueueFull       Info = 0x1103
	InfoReceiveQueueEmpty   Info = 0x1104
	InfoReceiveOverflow     Info = 0x1105
	InfoUnknownNotification Info = 0x1106
	InfoNotSupportedInState Info = 0x2001
	InfoIllegalIdentifier   Info = 0x2002
	InfoOutOfPLCI           Info = 0x2003
	InfoOutOfNCCI           Info = 0x2004
	InfoOutOfListen         Info = 0x2005
	InfoIllegalParameter    Info = 0x2007
	InfoB1NotSupported      Info = 0x3001
	InfoB2NotSupported      Info = 0x3002
	InfoB3NotSupported      Info = 0x3003
	InfoProtocolErrorL1     Info = 0x3301
	InfoProtocolErrorL2     Info = 0x3302
	InfoProtocolErrorL3     Info = 0x3303
	InfoNoCauseAvailable    Info = 0x3400
)

var infoText = map[Info]string{
	InfoNCPINotSupported:    "NCPI not supported",
	InfoFlagsNotSupported:   "Flags not supported",
	InfoAlertAlreadySent:    "Alert already sent by another application",
	InfoTooManyApplications: "Too many applications",
	InfoBlockSizeTooSmall:   "Logical block size too small",
	InfoOSResourceError:     "OS resource error",
	InfoNotInstalled:        "CAPI not installed",
	InfoIllegalApplication:  "Illegal application number",
	InfoIllegalCommand:      "Illegal command or subcommand",
	InfoSendQueueFull:       "Send queue full",
	InfoReceiveQueueEmpty:   "Receive queue empty",
	InfoReceiveOverflow:     "Receive queue overflow",
	InfoUnknownNotification: "Unknown notification parameter",
	InfoNotSupportedInState: "Message not supported in current state",
	InfoIllegalIdentifier:   "Illegal Controller/PLCI/NCCI",
	InfoOutOfPLCI:           "Out of PLCI",
	InfoOutOfNCCI:           "Out of NCCI",
	InfoOutOfListen:         "Out of LISTEN",
	InfoIllegalParameter:    "Illegal message parameter coding",
	InfoB1NotSupported:      "B1 protocol not supported",
	InfoB2NotSupported:      "B2 protocol not supported",
	InfoB3NotSupported:      "B3 protocol not supported",
	InfoProtocolErrorL1:     "Protocol Error Layer 1",
	InfoProtocolErrorL2:     "Protocol Error Layer 2",
	InfoProtocolErrorL3:     "Protocol Error Layer 3",
	InfoNoCauseAvailable:    "No cause available",
}

// Text returns a human readable description of the code.
func (i Info) Text() string {
	if i == InfoOK {
		return "No error"
	}
	if t, ok := infoText[i]; ok {
		return t
	}
	if i&0xff00 == 0x3400 {
		return fmt.Sprintf("Network cause 0x%02x", uint8(i))
	}
	return "Unknown error"
}

func (i Info) Error() string {
	return fmt.Sprintf("capi info 0x%04x: %s", uint16(i), i.Text())
}

// InfoOf extracts the CAPI result from err. Errors that carry no code map to
// InfoOSResourceError.
func InfoOf(err error) Info {
	if err == nil {
		return InfoOK
	}
	var info Info
	if errors.As(err, &info) {
		return info
	}
	return InfoOSResourceError
}
