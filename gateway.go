package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"capictl/capi"
	"capictl/capi20"
	"capictl/cdr"
)

// callSession is the part of capi.Session the gateway consumes.
type callSession interface {
	Events() <-chan capi.Event
	Pickup(id uint32, kind capi.Kind) error
	Hangup(id uint32)
	Done() <-chan struct{}
	Err() error
}

// Gateway turns session events into answered calls and call records.
type Gateway struct {
	session    callSession
	store      cdr.Store
	autoAnswer bool
	answerKind capi.Kind
	calls      *callTable
	log        *logrus.Entry
	now        func() time.Time
}

// NewGateway creates a new Gateway instance.
func NewGateway(s callSession, store cdr.Store, settings *Settings, log *logrus.Entry) *Gateway {
	return &Gateway{
		session:    s,
		store:      store,
		autoAnswer: settings.AutoAnswer(),
		answerKind: settings.AnswerKind(),
		calls:      newCallTable(),
		log:        log,
		now:        time.Now,
	}
}

// Start runs the gateway until ctx is canceled or the session ends.
func (g *Gateway) Start(ctx context.Context) error {
	events := g.session.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return g.session.Err()
			}
			g.handle(ctx, ev)
		case <-g.session.Done():
			return g.session.Err()
		case <-ctx.Done():
			return nil
		}
	}
}

func (g *Gateway) handle(ctx context.Context, ev capi.Event) {
	call := ev.Call
	log := g.log.WithField("call", call.ID)

	switch ev.Type {
	case capi.EventIncoming:
		g.calls.get(call)
		log.Infof("incoming call %s -> %s", call.Source, call.Target)
		if g.autoAnswer {
			if err := g.session.Pickup(call.ID, g.answerKind); err != nil {
				log.WithError(err).Warn("auto answer failed")
			}
		}
	case capi.EventRinging:
		g.calls.get(call)
		log.Infof("ringing at %s", call.Target)
	case capi.EventConnect:
		c := g.calls.get(call)
		c.Answered = true
		c.Connected = call.ConnectedAt
		if c.Connected.IsZero() {
			c.Connected = g.now()
		}
		log.Infof("connected %s <-> %s (%s)", call.Source, call.Target, call.Kind)
	case capi.EventCode:
		c := g.calls.get(call)
		c.addDigit(ev.Tone)
		log.Debugf("DTMF %c", ev.Tone)
	case capi.EventDisconnect:
		g.finish(ctx, call)
	case capi.EventStatus:
		log.Warnf("CAPI status 0x%04x: %s", ev.Status, capi20.Info(ev.Status).Text())
	case capi.EventMessage:
		log.Warnf("%s: %s", ev.Title, ev.Body)
	default:
		log.Debugf("unhandled event %s", ev.Type)
	}
}

// finish stores the record of an ended call.
func (g *Gateway) finish(ctx context.Context, call capi.CallInfo) {
	c, ok := g.calls.remove(call.ID)
	if !ok {
		c = newCallContext(call)
	}
	rec := c.record(call, g.now())
	g.log.WithField("call", call.ID).Infof("disconnected after %s (reason 0x%04x/0x%04x)",
		rec.Duration().Round(time.Second), rec.Reason, rec.ReasonB3)
	if g.store == nil {
		return
	}
	if err := g.store.Save(ctx, rec); err != nil {
		g.log.WithError(err).Warnf("call %d: could not store record", call.ID)
	}
}

// startGateway runs the gateway until interrupted.
func startGateway(gw *Gateway) error {
	coreLog.Info("starting gateway")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return gw.Start(ctx)
}
