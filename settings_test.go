package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"

	"capictl/capi"
)

func loadSettings(t *testing.T, text string) (*Settings, error) {
	t.Helper()
	cfg, err := ini.Load([]byte(text))
	require.NoError(t, err)
	return LoadSettings(cfg)
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := loadSettings(t, "")
	require.NoError(t, err)
	assert.Empty(t, s.CAPIHost())
	assert.Equal(t, 0, s.Controller())
	assert.Equal(t, 5, s.Connections())
	assert.Equal(t, time.Second, s.PollInterval())
	assert.Equal(t, 2*time.Second, s.OpenRetryDelay())
	assert.False(t, s.AutoAnswer())
	assert.Equal(t, capi.KindPhone, s.AnswerKind())
	assert.Equal(t, "127.0.0.1:8080", s.APIListen())
	assert.Empty(t, s.CDRDSN())
}

func TestLoadSettings(t *testing.T) {
	s, err := loadSettings(t, `
[capi]
host = fritz.box
port = 5032
controller = 2
connections = 8
poll_interval_ms = 250

[phone]
auto_answer = true
answer_kind = fax

[cdr]
dsn = postgres://localhost/capictl
`)
	require.NoError(t, err)
	assert.Equal(t, "fritz.box", s.CAPIHost())
	assert.Equal(t, 5032, s.CAPIPort())
	assert.Equal(t, 2, s.Controller())
	assert.Equal(t, 8, s.Connections())
	assert.Equal(t, 250*time.Millisecond, s.PollInterval())
	assert.True(t, s.AutoAnswer())
	assert.Equal(t, capi.KindFax, s.AnswerKind())
	assert.Equal(t, "postgres://localhost/capictl", s.CDRDSN())
}

func TestLoadSettingsRejects(t *testing.T) {
	tests := map[string]string{
		"port without host": "[capi]\nport = 5031\n",
		"no connections":    "[capi]\nconnections = 0\n",
		"negative ctrl":     "[capi]\ncontroller = -1\n",
		"zero poll":         "[capi]\npoll_interval_ms = 0\n",
		"unknown kind":      "[phone]\nanswer_kind = modem\n",
		"unknown audio":     "[phone]\naudio = alsa\n",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadSettings(t, text)
			assert.Error(t, err)
		})
	}
}

func TestLoadShippedSettings(t *testing.T) {
	cfg, err := ini.Load("settings.ini")
	require.NoError(t, err)
	s, err := LoadSettings(cfg)
	require.NoError(t, err)
	assert.Empty(t, s.CAPIHost())
	assert.Equal(t, 5031, s.CAPIPort())
	assert.Equal(t, 5, s.Connections())
}
