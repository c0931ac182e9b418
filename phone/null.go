package phone

import (
	"io"
	"sync"
	"time"
)

// A-law silence
const silence = 0xD5

// NullDevice discards playback and records silence at the B-channel rate.
// It is used when no sound card is configured.
type NullDevice struct {
	// Frame is the pacing interval of reads; 20ms when zero.
	Frame time.Duration
}

func (d NullDevice) Open() (Stream, error) {
	frame := d.Frame
	if frame == 0 {
		frame = 20 * time.Millisecond
	}
	return &nullStream{frame: frame, closing: make(chan struct{})}, nil
}

type nullStream struct {
	frame   time.Duration
	closing chan struct{}
	once    sync.Once
}

func (s *nullStream) Read(p []byte) (int, error) {
	t := time.NewTimer(s.frame)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.closing:
		return 0, io.EOF
	}
	for i := range p {
		p[i] = silence
	}
	return len(p), nil
}

func (s *nullStream) Write(p []byte) (int, error) { return len(p), nil }

func (s *nullStream) Close() error {
	s.once.Do(func() { close(s.closing) })
	return nil
}
