// Package api serves the HTTP control interface of the daemon.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"capictl/capi"
	"capictl/capi20"
	"capictl/cdr"
)

// Controller is the call control surface of a capi.Session.
type Controller interface {
	Call(req capi.CallRequest) (uint32, error)
	Pickup(id uint32, kind capi.Kind) error
	Hangup(id uint32)
	SendDTMF(id uint32, tone byte) error
	SendDisplay(id uint32, text string) error
	Connections() []capi.CallInfo
}

type Config struct {
	Controller Controller
	Records    cdr.Store
	Gatherer   prometheus.Gatherer
	Log        *logrus.Entry
}

type handlers struct {
	ctl     Controller
	records cdr.Store
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(cfg.Log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	h := handlers{ctl: cfg.Controller, records: cfg.Records}
	calls := r.Group("/calls")
	{
		calls.GET("", h.list)
		calls.POST("", h.dial)
		calls.POST("/:id/pickup", h.pickup)
		calls.DELETE("/:id", h.hangup)
		calls.POST("/:id/dtmf", h.dtmf)
		calls.POST("/:id/display", h.display)
	}
	if cfg.Records != nil {
		r.GET("/records", h.listRecords)
	}
	return r
}

type callView struct {
	ID          uint32     `json:"id"`
	Kind        string     `json:"kind"`
	Direction   string     `json:"direction"`
	State       string     `json:"state"`
	Source      string     `json:"source"`
	Target      string     `json:"target"`
	CreatedAt   time.Time  `json:"created_at"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

func viewOf(info capi.CallInfo) callView {
	v := callView{
		ID:        info.ID,
		Kind:      info.Kind.String(),
		Direction: info.Direction.String(),
		State:     string(info.State),
		Source:    info.Source,
		Target:    info.Target,
		CreatedAt: info.CreatedAt,
	}
	if !info.ConnectedAt.IsZero() {
		t := info.ConnectedAt
		v.ConnectedAt = &t
	}
	return v
}

func (h handlers) list(c *gin.Context) {
	infos := h.ctl.Connections()
	out := make([]callView, 0, len(infos))
	for _, info := range infos {
		out = append(out, viewOf(info))
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

type dialRequest struct {
	Source     string `json:"source" binding:"required"`
	Target     string `json:"target" binding:"required"`
	Kind       string `json:"kind"`
	Controller int    `json:"controller"`
	Anonymous  bool   `json:"anonymous"`
}

func (h handlers) dial(c *gin.Context) {
	var req dialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Kind == "" {
		req.Kind = capi.KindPhone.String()
	}
	kind, err := capi.ParseKind(req.Kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	id, err := h.ctl.Call(capi.CallRequest{
		Controller: req.Controller,
		Source:     req.Source,
		Target:     req.Target,
		Anonymous:  req.Anonymous,
		Kind:       kind,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	logger(c).Infof("dialing %s from %s as call %d", req.Target, req.Source, id)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type pickupRequest struct {
	Kind string `json:"kind"`
}

func (h handlers) pickup(c *gin.Context) {
	id, ok := callID(c)
	if !ok {
		return
	}
	var req pickupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}
	if req.Kind == "" {
		req.Kind = capi.KindPhone.String()
	}
	kind, err := capi.ParseKind(req.Kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.ctl.Pickup(id, kind); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h handlers) hangup(c *gin.Context) {
	id, ok := callID(c)
	if !ok {
		return
	}
	h.ctl.Hangup(id)
	c.Status(http.StatusNoContent)
}

type dtmfRequest struct {
	Digits string `json:"digits" binding:"required"`
}

func (h handlers) dtmf(c *gin.Context) {
	id, ok := callID(c)
	if !ok {
		return
	}
	var req dtmfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	for i := 0; i < len(req.Digits); i++ {
		if err := h.ctl.SendDTMF(id, req.Digits[i]); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

type displayRequest struct {
	Text string `json:"text"`
}

func (h handlers) display(c *gin.Context) {
	id, ok := callID(c)
	if !ok {
		return
	}
	var req displayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.ctl.SendDisplay(id, req.Text); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h handlers) listRecords(c *gin.Context) {
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	recs, err := h.records.List(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "records unavailable"})
		return
	}
	if recs == nil {
		recs = []cdr.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func callID(c *gin.Context) (uint32, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || n == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return 0, false
	}
	return uint32(n), true
}

// fail maps a capi error onto an HTTP status.
func (h handlers) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	var info capi20.Info
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, capi.ErrInvalidNumber), errors.Is(err, capi.ErrInvalidTone), errors.Is(err, capi.ErrUnknownKind):
		status = http.StatusBadRequest
	case errors.Is(err, capi.ErrNoConnection):
		status = http.StatusNotFound
	case errors.Is(err, capi.ErrNotRinging), errors.Is(err, capi.ErrNotConnected):
		status = http.StatusConflict
	case errors.Is(err, capi.ErrNoFreeConnection), errors.Is(err, capi.ErrNotRegistered):
		status = http.StatusServiceUnavailable
	case errors.As(err, &info):
		status = http.StatusBadGateway
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
