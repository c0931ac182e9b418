package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capictl/capi"
	"capictl/capi20"
	"capictl/cdr"
)

type stubController struct {
	calls    []capi.CallRequest
	callErr  error
	pickups  map[uint32]capi.Kind
	hangups  []uint32
	tones    []byte
	toneErr  error
	displays []string
	infos    []capi.CallInfo
}

func (s *stubController) Call(req capi.CallRequest) (uint32, error) {
	if s.callErr != nil {
		return 0, s.callErr
	}
	s.calls = append(s.calls, req)
	return 1024, nil
}

func (s *stubController) Pickup(id uint32, kind capi.Kind) error {
	if id != 1024 {
		return capi.ErrNoConnection
	}
	s.pickups[id] = kind
	return nil
}

func (s *stubController) Hangup(id uint32) { s.hangups = append(s.hangups, id) }

func (s *stubController) SendDTMF(id uint32, tone byte) error {
	if s.toneErr != nil {
		return s.toneErr
	}
	s.tones = append(s.tones, tone)
	return nil
}

func (s *stubController) SendDisplay(id uint32, text string) error {
	s.displays = append(s.displays, text)
	return nil
}

func (s *stubController) Connections() []capi.CallInfo { return s.infos }

func newTestRouter(t *testing.T, ctl Controller, store cdr.Store) (*gin.Engine, *logtest.Hook) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "capi_test_total", Help: "test"}))
	return NewRouter(Config{Controller: ctl, Records: store, Gatherer: reg, Log: logrus.NewEntry(logger)}), hook
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDial(t *testing.T) {
	ctl := &stubController{}
	r, _ := newTestRouter(t, ctl, nil)

	w := do(r, http.MethodPost, "/calls", `{"source":"100","target":"200","kind":"fax","anonymous":true}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1024}`, w.Body.String())
	require.Len(t, ctl.calls, 1)
	assert.Equal(t, capi.KindFax, ctl.calls[0].Kind)
	assert.True(t, ctl.calls[0].Anonymous)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestDialErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"missing target", `{"source":"100"}`, nil, http.StatusBadRequest},
		{"unknown kind", `{"source":"100","target":"200","kind":"modem"}`, nil, http.StatusBadRequest},
		{"pool full", `{"source":"100","target":"200"}`, capi.ErrNoFreeConnection, http.StatusServiceUnavailable},
		{"wire refused", `{"source":"100","target":"200"}`, errors.Wrap(capi20.InfoOutOfPLCI, "connect to 200"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, &stubController{callErr: tt.err}, nil)
			w := do(r, http.MethodPost, "/calls", tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestListCalls(t *testing.T) {
	ctl := &stubController{infos: []capi.CallInfo{{
		ID:        1024,
		Kind:      capi.KindPhone,
		Direction: capi.Incoming,
		State:     capi.StateRinging,
		Source:    "0301234",
		Target:    "55",
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}}}
	r, _ := newTestRouter(t, ctl, nil)

	w := do(r, http.MethodGet, "/calls", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Calls []callView `json:"calls"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Calls, 1)
	assert.Equal(t, "RINGING", body.Calls[0].State)
	assert.Equal(t, "incoming", body.Calls[0].Direction)
	assert.Nil(t, body.Calls[0].ConnectedAt)
}

func TestPickupAndHangup(t *testing.T) {
	ctl := &stubController{pickups: map[uint32]capi.Kind{}}
	r, _ := newTestRouter(t, ctl, nil)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/calls/1024/pickup", "").Code)
	assert.Equal(t, capi.KindPhone, ctl.pickups[1024])
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/calls/7/pickup", `{"kind":"fax"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/calls/abc/pickup", "").Code)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/calls/1024", "").Code)
	assert.Equal(t, []uint32{1024}, ctl.hangups)
}

func TestDTMF(t *testing.T) {
	ctl := &stubController{}
	r, _ := newTestRouter(t, ctl, nil)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/calls/1024/dtmf", `{"digits":"12#"}`).Code)
	assert.Equal(t, []byte("12#"), ctl.tones)

	ctl.toneErr = capi.ErrNotConnected
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/calls/1024/dtmf", `{"digits":"5"}`).Code)
}

func TestDisplay(t *testing.T) {
	ctl := &stubController{}
	r, _ := newTestRouter(t, ctl, nil)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/calls/1024/display", `{"text":"hello"}`).Code)
	assert.Equal(t, []string{"hello"}, ctl.displays)
}

func TestRecords(t *testing.T) {
	store := cdr.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), cdr.Record{CallID: 1024, Source: "100", EndedAt: time.Now()}))
	r, _ := newTestRouter(t, &stubController{}, store)

	w := do(r, http.MethodGet, "/records?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"CallID":1024`)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/records?limit=x", "").Code)
}

func TestMetricsAndHealth(t *testing.T) {
	r, hook := newTestRouter(t, &stubController{}, nil)

	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "capi_test_total"))

	w = do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/healthz", hook.LastEntry().Data["path"])
}
