package phone

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"capictl/capi"
)

type sender interface {
	SendData(frame []byte) error
}

// inputWorker reads device frames and sends them until stopped. done is
// closed as its acknowledgment.
type inputWorker struct {
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func startInputWorker(r io.Reader, tx sender, frameSize int, log *logrus.Entry) *inputWorker {
	w := &inputWorker{quit: make(chan struct{}), done: make(chan struct{})}
	go w.run(r, tx, frameSize, log)
	return w
}

func (w *inputWorker) run(r io.Reader, tx sender, frameSize int, log *logrus.Entry) {
	defer close(w.done)
	buf := make([]byte, frameSize)
	for {
		select {
		case <-w.quit:
			return
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			frame := append([]byte(nil), buf[:n]...)
			if err := tx.SendData(frame); err != nil && !errors.Is(err, capi.ErrFlowControl) && !errors.Is(err, capi.ErrNotConnected) {
				log.WithError(err).Debug("send frame")
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Warn("audio read")
			}
			return
		}
	}
}

// stop asks the worker to finish and waits up to timeout for it.
func (w *inputWorker) stop(timeout time.Duration) bool {
	w.once.Do(func() { close(w.quit) })
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-w.done:
		return true
	case <-t.C:
		return false
	}
}
