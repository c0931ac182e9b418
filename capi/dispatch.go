package capi

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"capictl/capi20"
)

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// loop waits for inbound messages and dispatches them until ctx is done or
// the transport fails. A cancelled ctx ends the session as Close would.
func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	defer s.deactivate()
	defer func() {
		if ctx.Err() != nil {
			s.abandon()
		}
	}()

	for ctx.Err() == nil {
		id := uint16(s.applID.Load())
		if id == 0 {
			sleep(ctx, s.opts.idleBackoff)
			continue
		}
		if err := s.tr.WaitForMessage(id, s.opts.pollInterval); err != nil {
			if !errors.Is(err, capi20.ErrTimeout) {
				sleep(ctx, time.Millisecond)
			}
			continue
		}
		if !s.receive(ctx, id) {
			return
		}
	}
}

// receive fetches and dispatches one message. It returns false when the
// loop must stop.
func (s *Session) receive(ctx context.Context, id uint16) bool {
	s.wire.Lock()
	m, err := s.tr.GetMessage(id)
	s.wire.Unlock()

	switch {
	case err == nil:
		s.dispatch(m)
		return true
	case errors.Is(err, capi20.ErrQueueEmpty):
		s.log.Warn("message signaled but queue empty, re-registering")
		sleep(ctx, s.opts.reconnectBackoff)
		if ctx.Err() != nil {
			return false
		}
		if err := s.reconnect(); err != nil {
			s.fail(err)
			return false
		}
		return true
	default:
		s.fail(err)
		return false
	}
}

// reconnect releases and re-creates the registration. Occupied slots are
// kept as they are and get no notification.
func (s *Session) reconnect() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.metrics.reconnects.Inc()
	s.shutdown()
	id, err := s.register()
	if err != nil {
		return errors.Wrap(err, "re-register")
	}
	s.applID.Store(uint32(id))
	s.log.Infof("re-registered as appl %d", id)
	return nil
}

func (s *Session) fail(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
	s.metrics.failures.Inc()
	s.log.WithError(err).Error("dispatch stopped")
	s.message("CAPI error", err.Error())
}

// dispatch routes one message under the session mutex.
func (s *Session) dispatch(m *capi20.Message) {
	s.metrics.messages.WithLabelValues(m.Command.String(), m.Subcommand.String()).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Subcommand {
	case capi20.Ind:
		s.indication(m)
	case capi20.Conf:
		s.confirmation(m)
	default:
		s.log.Debugf("unexpected %s", m)
	}
}
