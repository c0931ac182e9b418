package fax

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capictl/capi"
	"capictl/capi20"
	"capictl/capi20/fake"
)

func testLog() *logrus.Entry {
	logger, _ := logtest.NewNullLogger()
	return logrus.NewEntry(logger)
}

func open(t *testing.T, h capi.Handler) (*capi.Session, *fake.Transport) {
	t.Helper()
	tr := fake.New()
	s, err := capi.Open(context.Background(), tr,
		capi.WithLogger(testLog()),
		capi.WithPollInterval(5*time.Millisecond),
		capi.WithHandler(h))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, tr
}

func msg(cmd capi20.Command, sub capi20.Subcommand, addr uint32) *capi20.Message {
	return &capi20.Message{Command: cmd, Subcommand: sub, Addr: addr}
}

func connectFax(t *testing.T, s *capi.Session, tr *fake.Transport) uint32 {
	t.Helper()
	id, err := s.Call(capi.CallRequest{Source: "555", Target: "200", Kind: capi.KindFax})
	require.NoError(t, err)
	tr.Deliver(msg(capi20.CmdConnect, capi20.Conf, 0x101))
	tr.Deliver(msg(capi20.CmdConnectActive, capi20.Ind, 0x101))
	tr.Deliver(msg(capi20.CmdConnectB3, capi20.Ind, 0x10101))
	tr.Deliver(msg(capi20.CmdConnectB3Active, capi20.Ind, 0x10101))
	require.Eventually(t, func() bool {
		info, ok := s.Connection(id)
		return ok && info.State == capi.StateConnected
	}, 2*time.Second, time.Millisecond)
	return id
}

func TestFaxSpoolsReceivedSignal(t *testing.T) {
	dir := t.TempDir()
	s, tr := open(t, New(Spool(dir), testLog()))
	id := connectFax(t, s, tr)

	req := tr.Last(capi20.CmdConnect, capi20.Req)
	require.NotNil(t, req)
	assert.Equal(t, uint16(capi20.CIPFaxG23), req.CIP)

	for _, frame := range [][]byte{{1, 2}, {3, 4, 5}} {
		m := msg(capi20.CmdDataB3, capi20.Ind, 0x10101)
		m.Data = frame
		tr.Deliver(m)
	}
	require.Eventually(t, func() bool {
		return len(tr.SentMatching(capi20.CmdDataB3, capi20.Req)) == 2
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []byte{silence, silence, silence}, tr.Last(capi20.CmdDataB3, capi20.Req).Data)

	tr.Deliver(msg(capi20.CmdDisconnectB3, capi20.Ind, 0x10101))
	tr.Deliver(msg(capi20.CmdDisconnect, capi20.Ind, 0x101))
	require.Eventually(t, func() bool {
		_, ok := s.Connection(id)
		return !ok
	}, 2*time.Second, time.Millisecond)

	raw, err := os.ReadFile(filepath.Join(dir, "1024-555.raw"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, raw)
}

func TestFaxModemFailureHangsUp(t *testing.T) {
	failing := func(capi.CallInfo) (Modem, error) { return nil, errors.New("no modem") }
	s, tr := open(t, New(failing, testLog()))

	id, err := s.Call(capi.CallRequest{Source: "555", Target: "200", Kind: capi.KindFax})
	require.NoError(t, err)
	tr.Deliver(msg(capi20.CmdConnect, capi20.Conf, 0x101))
	tr.Deliver(msg(capi20.CmdConnectActive, capi20.Ind, 0x101))
	tr.Deliver(msg(capi20.CmdConnectB3, capi20.Ind, 0x10101))
	tr.Deliver(msg(capi20.CmdConnectB3Active, capi20.Ind, 0x10101))

	require.Eventually(t, func() bool {
		return len(tr.SentMatching(capi20.CmdDisconnectB3, capi20.Req)) == 1
	}, 2*time.Second, time.Millisecond)
	info, ok := s.Connection(id)
	require.True(t, ok)
	assert.Equal(t, capi.StateDisconnectB3Req, info.State)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "anonymous", sanitize(""))
	assert.Equal(t, "+49_30*1#", sanitize("+49/30*1#"))
}
