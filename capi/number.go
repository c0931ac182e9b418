package capi

import (
	"strings"

	"capictl/capi20"
)

const (
	maxDigits = 66

	// calling number presented to the local PBX for internal targets
	internalCallingNumber = "**981"
)

// isInternal reports whether target addresses a PBX internal extension.
func isInternal(target string) bool {
	return strings.HasPrefix(target, "*") || strings.HasPrefix(target, "#")
}

func clip(s string) string {
	if len(s) > maxDigits {
		return s[:maxDigits]
	}
	return s
}

// encodeCalledNumber builds the called party number struct: unknown type,
// ISDN numbering plan.
func encodeCalledNumber(target string) []byte {
	target = clip(target)
	b := make([]byte, 0, len(target)+2)
	b = append(b, byte(1+len(target)), 0x80)
	return append(b, target...)
}

// encodeCallingNumber builds the calling party number struct with the
// presentation octet.
func encodeCallingNumber(source string, anonymous, internal bool) []byte {
	if internal {
		source = internalCallingNumber
	}
	source = clip(source)
	presentation := byte(0x80)
	if anonymous {
		presentation = 0xA0
	}
	b := make([]byte, 0, len(source)+3)
	b = append(b, byte(2+len(source)), 0x00, presentation)
	return append(b, source...)
}

// body returns the content octets of a struct, bounded by the buffer.
func body(pn []byte) []byte {
	if len(pn) == 0 {
		return nil
	}
	n := int(pn[0])
	if n > len(pn)-1 {
		n = len(pn) - 1
	}
	return pn[1 : 1+n]
}

func pick(explicit, ie []byte) []byte {
	if len(explicit) > 0 {
		return explicit
	}
	return ie
}

// decodeSourceNumber reads the calling number of a CONNECT_IND, falling back
// to the info element.
func decodeSourceNumber(explicit, ie []byte) string {
	b := body(pick(explicit, ie))
	if len(b) <= 1 {
		return "unknown"
	}
	digits := b[1:]
	if b[1]&0x80 != 0 {
		// presentation octet
		digits = b[2:]
	}
	if len(digits) == 0 {
		return "anonymous"
	}
	return string(digits)
}

// decodeTargetNumber reads the called number of a CONNECT_IND.
func decodeTargetNumber(explicit, ie []byte) string {
	b := body(pick(explicit, ie))
	if len(b) <= 1 {
		return "unknown"
	}
	return string(b[1:])
}

// localTarget strips a PBX routing prefix up to the first '#'.
func localTarget(target string) string {
	if i := strings.IndexByte(target, '#'); i >= 0 && i < len(target)-1 {
		return target[i+1:]
	}
	return target
}

// bearerElements returns BC, LLC and HLC for an outbound call.
func bearerElements(cip uint16, internal bool) (bc, llc, hlc []byte) {
	if internal {
		bc = []byte{0x03, 0xE0, 0x90, 0xA3}
	}
	llc = []byte{0x02, 0x80, 0x90}
	switch cip {
	case capi20.CIPAudio31:
		hlc = []byte{0x02, 0x91, 0x81}
	case capi20.CIPFaxG23:
		return nil, nil, nil
	}
	return bc, llc, hlc
}
