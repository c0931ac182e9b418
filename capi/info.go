package capi

import "fmt"

// Info numbers of INFO_IND: information elements below 0x4000, charge
// information at 0x4000, network message types with bit 15 set.
const (
	infoCause             uint16 = 0x0008
	infoCallState         uint16 = 0x0014
	infoChannelID         uint16 = 0x0018
	infoFacility          uint16 = 0x001C
	infoProgressIndicator uint16 = 0x001E
	infoNotification      uint16 = 0x0027
	infoDisplay           uint16 = 0x0028
	infoDateTime          uint16 = 0x0029
	infoKeypad            uint16 = 0x002C
	infoCallingNumber     uint16 = 0x006C
	infoCalledNumber      uint16 = 0x0070
	infoRedirectingNumber uint16 = 0x0074
	infoSendingComplete   uint16 = 0x00A1
	infoChargeUnits       uint16 = 0x4000
	infoChargeCurrency    uint16 = 0x4001
	infoAlerting          uint16 = 0x8001
	infoCallProceeding    uint16 = 0x8002
	infoProgress          uint16 = 0x8003
	infoSetup             uint16 = 0x8005
	infoConnect           uint16 = 0x8007
	infoSetupAck          uint16 = 0x800D
	infoConnectAck        uint16 = 0x800F
	infoDisconnect        uint16 = 0x8045
	infoRelease           uint16 = 0x804D
	infoReleaseComplete   uint16 = 0x805A
	infoFacilityMessage   uint16 = 0x8062
	infoNotify            uint16 = 0x806E
	infoInformation       uint16 = 0x807B
	infoStatus            uint16 = 0x807D
)

var infoNames = map[uint16]string{
	infoCause:             "CAUSE",
	infoCallState:         "CALL STATE",
	infoChannelID:         "CHANNEL IDENTIFICATION",
	infoFacility:          "FACILITY Q.932",
	infoProgressIndicator: "PROGRESS INDICATOR",
	infoNotification:      "NOTIFICATION INDICATOR",
	infoDisplay:           "DISPLAY",
	infoDateTime:          "DATE/TIME",
	infoKeypad:            "KEYPAD FACILITY",
	infoCallingNumber:     "CALLING PARTY NUMBER",
	infoCalledNumber:      "CALLED PARTY NUMBER",
	infoRedirectingNumber: "REDIRECTING NUMBER",
	infoSendingComplete:   "SENDING COMPLETE",
	infoChargeUnits:       "CHARGE IN UNITS",
	infoChargeCurrency:    "CHARGE IN CURRENCY",
	infoAlerting:          "ALERTING",
	infoCallProceeding:    "CALL PROCEEDING",
	infoProgress:          "PROGRESS",
	infoSetup:             "SETUP",
	infoConnect:           "CONNECT",
	infoSetupAck:          "SETUP ACKNOWLEDGE",
	infoConnectAck:        "CONNECT ACKNOWLEDGE",
	infoDisconnect:        "DISCONNECT",
	infoRelease:           "RELEASE",
	infoReleaseComplete:   "RELEASE COMPLETE",
	infoFacilityMessage:   "FACILITY",
	infoNotify:            "NOTIFY",
	infoInformation:       "INFORMATION",
	infoStatus:            "STATUS",
}

var progressText = map[byte]string{
	1: "Call is not end-to-end ISDN",
	2: "Destination address is non ISDN",
	3: "Origination address is non ISDN",
	4: "Call has returned to the ISDN",
	5: "Interworking has occurred",
	8: "In-band information or appropriate pattern now available",
}

var notificationText = map[byte]string{
	0x00: "User suspended",
	0x01: "User resume",
	0x02: "Bearer service changed",
	0x79: "Remote hold",
	0x7A: "Remote retrieval",
}

// describeInfo renders an INFO_IND for the debug log.
func describeInfo(number uint16, ie []byte) string {
	name, ok := infoNames[number]
	if !ok {
		return fmt.Sprintf("unhandled info 0x%04x", number)
	}
	b := body(ie)
	switch number {
	case infoCause:
		if len(b) >= 2 {
			return fmt.Sprintf("%s: 0x%02x", name, b[1]&0x7f)
		}
	case infoProgressIndicator:
		if len(b) < 2 {
			return name + ": description missing"
		}
		if t, ok := progressText[b[1]&0x7f]; ok {
			return fmt.Sprintf("%s: %s", name, t)
		}
		return fmt.Sprintf("%s: unknown description 0x%02x", name, b[1]&0x7f)
	case infoNotification:
		if len(b) >= 1 {
			if t, ok := notificationText[b[0]&0x7f]; ok {
				return fmt.Sprintf("%s: %s", name, t)
			}
		}
	case infoDisplay, infoKeypad, infoCallingNumber, infoCalledNumber:
		return fmt.Sprintf("%s: %q", name, b)
	case infoDateTime:
		if len(b) >= 5 {
			return fmt.Sprintf("%s: %02d.%02d.%02d %02d:%02d", name, b[2], b[1], b[0], b[3], b[4])
		}
	case infoChargeUnits:
		if len(b) >= 4 {
			units := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
			return fmt.Sprintf("%s: %d", name, units)
		}
	}
	if len(b) > 0 {
		return fmt.Sprintf("%s: % x", name, b)
	}
	return name
}
