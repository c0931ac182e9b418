package phone

import (
	"context"
	"io"
	"sync"
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

type recordingSender struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (r *recordingSender) SendData(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return r.err
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// blockingReader signals entered on each Read and never returns until
// released.
type blockingReader struct{ entered, release chan struct{} }

func (b blockingReader) Read([]byte) (int, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return 0, io.EOF
}

func testLog() *logrus.Entry {
	logger, _ := logtest.NewNullLogger()
	return logrus.NewEntry(logger)
}

func TestInputWorkerStopAcknowledged(t *testing.T) {
	stream, err := NullDevice{Frame: time.Millisecond}.Open()
	require.NoError(t, err)
	tx := &recordingSender{}

	w := startInputWorker(stream, tx, 160, testLog())
	require.Eventually(t, func() bool { return tx.count() >= 3 }, time.Second, time.Millisecond)

	require.True(t, w.stop(time.Second))
	n := tx.count()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, tx.count())

	tx.mu.Lock()
	defer tx.mu.Unlock()
	assert.Len(t, tx.frames[0], 160)
	assert.Equal(t, byte(silence), tx.frames[0][0])
}

func TestInputWorkerStopIsBounded(t *testing.T) {
	r := blockingReader{entered: make(chan struct{}, 1), release: make(chan struct{})}
	defer close(r.release)

	w := startInputWorker(r, &recordingSender{}, 160, testLog())
	select {
	case <-r.entered:
	case <-time.After(time.Second):
		t.Fatal("worker never read")
	}
	start := time.Now()
	assert.False(t, w.stop(20*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)
}

func TestInputWorkerSurvivesFlowControl(t *testing.T) {
	stream, err := NullDevice{Frame: time.Millisecond}.Open()
	require.NoError(t, err)
	tx := &recordingSender{err: capi.ErrFlowControl}

	w := startInputWorker(stream, tx, 8, testLog())
	require.Eventually(t, func() bool { return tx.count() >= 5 }, time.Second, time.Millisecond)
	assert.True(t, w.stop(time.Second))
}

func TestNullStreamClose(t *testing.T) {
	stream, err := NullDevice{Frame: time.Hour}.Open()
	require.NoError(t, err)
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = stream.Close()
	}()
	_, err = stream.Read(make([]byte, 4))
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, stream.Close())
}

// tapDevice hands out one stream and records playback.
type tapDevice struct {
	mu      sync.Mutex
	played  [][]byte
	closed  bool
	openErr error
	frames  chan []byte
}

func (d *tapDevice) Open() (Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d, nil
}

func (d *tapDevice) Read(p []byte) (int, error) {
	f, ok := <-d.frames
	if !ok {
		return 0, io.EOF
	}
	return copy(p, f), nil
}

func (d *tapDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.played = append(d.played, append([]byte(nil), p...))
	return len(p), nil
}

func (d *tapDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.frames)
	}
	return nil
}

func (d *tapDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestPhoneCallMedia(t *testing.T) {
	dev := &tapDevice{frames: make(chan []byte, 4)}
	tr := fake.New()
	s, err := capi.Open(context.Background(), tr,
		capi.WithLogger(testLog()),
		capi.WithPollInterval(5*time.Millisecond),
		capi.WithHandler(New(dev, testLog(), WithStopTimeout(100*time.Millisecond))))
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Call(capi.CallRequest{Source: "100", Target: "200", Kind: capi.KindPhone})
	require.NoError(t, err)
	deliver := func(cmd capi20.Command, sub capi20.Subcommand, addr uint32) *capi20.Message {
		m := &capi20.Message{Command: cmd, Subcommand: sub, Addr: addr}
		return m
	}
	tr.Deliver(deliver(capi20.CmdConnect, capi20.Conf, 0x101))
	tr.Deliver(deliver(capi20.CmdConnectActive, capi20.Ind, 0x101))
	tr.Deliver(deliver(capi20.CmdConnectB3, capi20.Ind, 0x10101))
	tr.Deliver(deliver(capi20.CmdConnectB3Active, capi20.Ind, 0x10101))
	waitFor(t, func() bool {
		info, ok := s.Connection(id)
		return ok && info.State == capi.StateConnected
	})

	rx := deliver(capi20.CmdDataB3, capi20.Ind, 0x10101)
	rx.Data = []byte{9, 9, 9}
	tr.Deliver(rx)
	waitFor(t, func() bool {
		dev.mu.Lock()
		defer dev.mu.Unlock()
		return len(dev.played) == 1
	})

	dev.frames <- []byte{1, 2, 3, 4}
	waitFor(t, func() bool { return len(tr.SentMatching(capi20.CmdDataB3, capi20.Req)) == 1 })
	assert.Equal(t, []byte{1, 2, 3, 4}, tr.Last(capi20.CmdDataB3, capi20.Req).Data)

	tr.Deliver(deliver(capi20.CmdDisconnectB3, capi20.Ind, 0x10101))
	tr.Deliver(deliver(capi20.CmdDisconnect, capi20.Ind, 0x101))
	waitFor(t, func() bool {
		_, ok := s.Connection(id)
		return !ok
	})
	assert.True(t, dev.isClosed())
}

func TestPhoneActivationFailure(t *testing.T) {
	h := New(&tapDevice{openErr: errors.New("no card")}, testLog())
	tr := fake.New()
	s, err := capi.Open(context.Background(), tr,
		capi.WithLogger(testLog()),
		capi.WithPollInterval(5*time.Millisecond),
		capi.WithHandler(h))
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Call(capi.CallRequest{Source: "100", Target: "200", Kind: capi.KindPhone})
	require.NoError(t, err)
	tr.Deliver(&capi20.Message{Command: capi20.CmdConnect, Subcommand: capi20.Conf, Addr: 0x101})
	tr.Deliver(&capi20.Message{Command: capi20.CmdConnectActive, Subcommand: capi20.Ind, Addr: 0x101})

	for ev := range s.Events() {
		if ev.Type == capi.EventMessage {
			assert.Contains(t, ev.Body, "could not open audio")
			break
		}
	}
	waitFor(t, func() bool {
		info, _ := s.Connection(id)
		return info.State == capi.StateDisconnectActive
	})
}
