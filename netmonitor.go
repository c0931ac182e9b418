package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// detectHostIP returns the first non-loopback IPv4 address of the host.
func detectHostIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			if ip4.IsLoopback() {
				continue
			}
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("no non-loopback IPv4 address found")
}

// reachability reports whether the CAPI stack can be reached. Local controllers
// need no network; a remote stack needs a host address and an open port.
type reachability struct {
	host    string
	port    int
	timeout time.Duration
	hostIP  func() (string, error)
}

func newReachability(settings *Settings) *reachability {
	return &reachability{host: settings.CAPIHost(), port: settings.CAPIPort(), timeout: 2 * time.Second, hostIP: detectHostIP}
}

func (p *reachability) online(ctx context.Context) error {
	if p.host == "" {
		return nil
	}
	ip, err := p.hostIP()
	if err != nil {
		return err
	}
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.host, strconv.Itoa(p.port)))
	if err != nil {
		return fmt.Errorf("remote CAPI from %s: %w", ip, err)
	}
	return conn.Close()
}

// waitOnline blocks until the stack is reachable or ctx ends.
func waitOnline(ctx context.Context, p *reachability, interval time.Duration) error {
	logged := false
	for {
		err := p.online(ctx)
		if err == nil {
			if logged {
				coreLog.Info("network online")
			}
			return nil
		}
		if !logged {
			coreLog.Warnf("waiting for network: %v", err)
			logged = true
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
