package main

import (
	"fmt"
	"time"

	ini "gopkg.in/ini.v1"

	"capictl/capi"
)

// Settings holds application configuration loaded from settings.ini.
type Settings struct {
	capiHost         string
	capiPort         int
	controller       int
	connections      int
	pollInterval     int
	reconnectBackoff int
	openRetryDelay   int

	autoAnswer bool
	answerKind capi.Kind
	audio      string
	frameSize  int

	faxSpool string

	apiListen string

	cdrDSN string
}

// LoadSettings reads configuration from ini file and validates it.
func LoadSettings(cfg *ini.File) (*Settings, error) {
	s := &Settings{}

	sec := cfg.Section("capi")
	// Key creates missing keys, so presence is checked first.
	hasPort := sec.HasKey("port")
	s.capiHost = sec.Key("host").String()
	s.capiPort = sec.Key("port").MustInt(5031)
	s.controller = sec.Key("controller").MustInt(0)
	s.connections = sec.Key("connections").MustInt(5)
	s.pollInterval = sec.Key("poll_interval_ms").MustInt(1000)
	s.reconnectBackoff = sec.Key("reconnect_backoff_ms").MustInt(1000)
	s.openRetryDelay = sec.Key("open_retry_ms").MustInt(2000)

	sec = cfg.Section("phone")
	s.autoAnswer = sec.Key("auto_answer").MustBool(false)
	s.audio = sec.Key("audio").MustString("null")
	s.frameSize = sec.Key("frame_size").MustInt(160)
	kind, err := capi.ParseKind(sec.Key("answer_kind").MustString("phone"))
	if err != nil {
		return nil, fmt.Errorf("phone.answer_kind: %w", err)
	}
	s.answerKind = kind

	s.faxSpool = cfg.Section("fax").Key("spool").MustString("spool")
	s.apiListen = cfg.Section("api").Key("listen").MustString("127.0.0.1:8080")
	s.cdrDSN = cfg.Section("cdr").Key("dsn").String()

	if s.capiHost == "" && hasPort {
		return nil, fmt.Errorf("capi.port requires capi.host")
	}
	if s.controller < 0 {
		return nil, fmt.Errorf("capi.controller must not be negative")
	}
	if s.connections <= 0 {
		return nil, fmt.Errorf("capi.connections must be positive")
	}
	if s.pollInterval <= 0 || s.reconnectBackoff <= 0 {
		return nil, fmt.Errorf("capi intervals must be positive")
	}
	if s.audio != "null" {
		return nil, fmt.Errorf("phone.audio: unsupported device %q", s.audio)
	}

	return s, nil
}

func (s *Settings) CAPIHost() string      { return s.capiHost }
func (s *Settings) CAPIPort() int         { return s.capiPort }
func (s *Settings) Controller() int       { return s.controller }
func (s *Settings) Connections() int      { return s.connections }
func (s *Settings) AutoAnswer() bool      { return s.autoAnswer }
func (s *Settings) AnswerKind() capi.Kind { return s.answerKind }
func (s *Settings) Audio() string         { return s.audio }
func (s *Settings) FrameSize() int        { return s.frameSize }
func (s *Settings) FaxSpool() string      { return s.faxSpool }
func (s *Settings) APIListen() string     { return s.apiListen }
func (s *Settings) CDRDSN() string        { return s.cdrDSN }

func (s *Settings) PollInterval() time.Duration {
	return time.Duration(s.pollInterval) * time.Millisecond
}

func (s *Settings) ReconnectBackoff() time.Duration {
	return time.Duration(s.reconnectBackoff) * time.Millisecond
}

func (s *Settings) OpenRetryDelay() time.Duration {
	return time.Duration(s.openRetryDelay) * time.Millisecond
}
