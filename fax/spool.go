package fax

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"capictl/capi"
)

// A-law silence
const silence = 0xD5

// Spool returns a Factory whose modems record the received line signal to
// <dir>/<call id>-<source>.raw and answer with silence. The raw files are
// handed to an external demodulator.
func Spool(dir string) Factory {
	return func(call capi.CallInfo) (Modem, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "spool directory")
		}
		name := filepath.Join(dir, fmt.Sprintf("%d-%s.raw", call.ID, sanitize(call.Source)))
		f, err := os.Create(name)
		if err != nil {
			return nil, errors.Wrap(err, "spool file")
		}
		return &spoolModem{f: f, w: bufio.NewWriter(f)}, nil
	}
}

func sanitize(s string) string {
	if s == "" {
		return "anonymous"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '*', r == '#', r == '+':
			return r
		}
		return '_'
	}, s)
}

type spoolModem struct {
	f *os.File
	w *bufio.Writer
}

func (m *spoolModem) Receive(frame []byte) error {
	_, err := m.w.Write(frame)
	return err
}

func (m *spoolModem) Transmit(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = silence
	}
	return out
}

func (m *spoolModem) Close() error {
	if err := m.w.Flush(); err != nil {
		_ = m.f.Close()
		return err
	}
	return m.f.Close()
}
