package capi

const (
	facilityDTMF          uint16 = 1
	facilitySupplementary uint16 = 3

	suppHold     uint16 = 0x0202
	suppRetrieve uint16 = 0x0203

	ieDisplay      = 0x28
	maxDisplayText = 31
)

// start DTMF listen, 64ms tone and gap, no digits, default characteristics
var dtmfListenParam = []byte{10, 0x01, 0x00, 0x40, 0x00, 0x40, 0x00, 0x00, 0x02, 0x00, 0x00}

func dtmfSendParam(tone byte) []byte {
	return []byte{8, 0x03, 0x00, 0x30, 0x00, 0x30, 0x00, 0x01, tone}
}

func validTone(t byte) bool {
	return t >= '0' && t <= '9' || t == '*' || t == '#'
}

// validSendTone also admits the A-D column.
func validSendTone(t byte) bool {
	return validTone(t) || t >= 'A' && t <= 'D'
}

// dtmfTones returns the reportable tones of a DTMF facility indication.
func dtmfTones(param []byte) []byte {
	var out []byte
	for _, t := range body(param) {
		if validTone(t) {
			out = append(out, t)
		}
	}
	return out
}

// suppServiceCode extracts the supplementary service notification code.
func suppServiceCode(param []byte) uint16 {
	if len(param) < 4 {
		return 0
	}
	return uint16(param[1]) | uint16(param[3])<<8
}

// displayElement wraps text into a display information element.
func displayElement(text string) []byte {
	if len(text) > maxDisplayText {
		text = text[:maxDisplayText]
	}
	b := make([]byte, 0, len(text)+3)
	b = append(b, byte(len(text)+2), ieDisplay, byte(len(text)))
	return append(b, text...)
}
