package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/ini.v1"

	"capictl/api"
	"capictl/capi"
	"capictl/capi20"
	"capictl/cdr"
	"capictl/fax"
	"capictl/phone"
)

// openSession registers with the CAPI stack, retrying once after a delay.
// Each attempt gets a fresh registry so a failed attempt leaves nothing
// registered.
func openSession(settings *Settings, tr capi20.Transport) (*capi.Session, *prometheus.Registry, error) {
	handlers := []capi.Handler{
		phone.New(phone.NullDevice{}, mediaLog, phone.WithFrameSize(settings.FrameSize())),
		fax.New(fax.Spool(settings.FaxSpool()), mediaLog),
	}

	attempt := func() (*capi.Session, *prometheus.Registry, error) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts := []capi.Option{
			capi.WithLogger(capiLog),
			capi.WithRegisterer(reg),
			capi.WithController(settings.Controller()),
			capi.WithConnections(settings.Connections()),
			capi.WithPollInterval(settings.PollInterval()),
			capi.WithReconnectBackoff(settings.ReconnectBackoff()),
		}
		for _, h := range handlers {
			opts = append(opts, capi.WithHandler(h))
		}
		s, err := capi.Open(context.Background(), tr, opts...)
		return s, reg, err
	}

	s, reg, err := attempt()
	if err == nil {
		return s, reg, nil
	}
	coreLog.Warnf("CAPI not available (%v), retrying in %s", err, settings.OpenRetryDelay())
	time.Sleep(settings.OpenRetryDelay())
	return attempt()
}

func openStore(settings *Settings) (cdr.Store, error) {
	if settings.CDRDSN() == "" {
		coreLog.Info("no cdr dsn configured, keeping call records in memory")
		return cdr.NewMemoryStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := cdr.OpenPostgres(ctx, settings.CDRDSN(), cdr.PoolConfig{})
	if err != nil {
		return nil, fmt.Errorf("cdr store: %w", err)
	}
	return store, nil
}

func startAPI(settings *Settings, s *capi.Session, store cdr.Store, reg *prometheus.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              settings.APIListen(),
		Handler:           api.NewRouter(api.Config{Controller: s, Records: store, Gatherer: reg, Log: apiLog}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		apiLog.Infof("control API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiLog.WithError(err).Error("control API stopped")
		}
	}()
	return srv
}

func main() {
	cfg, err := ini.Load("settings.ini")
	if err != nil {
		fmt.Printf("failed to load settings: %v\n", err)
		return
	}

	settings, err := LoadSettings(cfg)
	if err != nil {
		fmt.Printf("failed to parse settings: %v\n", err)
		return
	}

	if err := initLogging(cfg); err != nil {
		fmt.Printf("failed to init logging: %v\n", err)
		return
	}
	defer closeLogging()
	coreLog.Info("settings loaded")

	waitCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = waitOnline(waitCtx, newReachability(settings), settings.ReconnectBackoff())
	stop()
	if err != nil {
		coreLog.Info("interrupted while waiting for network")
		return
	}

	tr := capi20.New(capi20.Config{Host: settings.CAPIHost(), Port: settings.CAPIPort()})
	session, reg, err := openSession(settings, tr)
	if err != nil {
		coreLog.Fatalf("failed to open CAPI session: %v", err)
	}

	store, err := openStore(settings)
	if err != nil {
		_ = session.Close()
		coreLog.Fatalf("failed to open call records: %v", err)
	}
	defer store.Close()

	srv := startAPI(settings, session, store, reg)

	gw := NewGateway(session, store, settings, coreLog)
	if err := startGateway(gw); err != nil {
		coreLog.Errorf("gateway stopped: %v", err)
	}

	coreLog.Info("performing a graceful shutdown...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if err := session.Close(); err != nil {
		coreLog.Warnf("session close: %v", err)
	}
}
