// Monitor and cache HTTP handlers.
//
//   - GET  /monitor            watcher status
//   - POST /monitor/poll       run one cycle of every watcher now
//   - GET  /cache              cache size and TTL
//   - POST /cache/invalidate   drop every cached Grocy response
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/monitor"
	"github.com/tbourn/go-grocy-bot/internal/repo"
)

// MonitorService is the part of *monitor.Monitor the API needs.
type MonitorService interface {
	Status() []monitor.Status
	PollAll(ctx context.Context) error
}

// CacheService is the part of *grocy.CachedClient the API needs.
type CacheService interface {
	Len() int
	TTL() time.Duration
	Invalidate(reason string)
}

// JournalService reads the delivery journal.
type JournalService interface {
	ListPage(ctx context.Context, f repo.DeliveryFilter, page, pageSize int) ([]domain.Delivery, int64, error)
	Version(ctx context.Context, f repo.DeliveryFilter) (int64, *time.Time, error)
	Summary(ctx context.Context) ([]repo.StatusCount, error)
}

// Handlers groups the admin endpoints. mon is nil when no destination chat
// is configured; the monitor endpoints then answer 503.
type Handlers struct {
	mon     MonitorService
	cache   CacheService
	journal JournalService
}

// New constructs Handlers. Pass a nil mon to disable the monitor endpoints.
func New(mon MonitorService, cache CacheService, journal JournalService) *Handlers {
	return &Handlers{mon: mon, cache: cache, journal: journal}
}

// WatcherStatus is the JSON form of one watcher.
type WatcherStatus struct {
	Name            string     `json:"name" example:"chores"`
	Running         bool       `json:"running"`
	Primed          bool       `json:"primed"`
	Items           int        `json:"items" example:"12"`
	Changes         uint64     `json:"changes" example:"3"`
	Runs            uint64     `json:"runs" example:"40"`
	IntervalSeconds float64    `json:"interval_seconds" example:"61"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

// MonitorStatusResponse lists every watcher in a fixed order.
type MonitorStatusResponse struct {
	Watchers []WatcherStatus `json:"watchers"`
}

// CacheResponse describes the Grocy response cache.
type CacheResponse struct {
	Entries    int     `json:"entries" example:"5"`
	TTLSeconds float64 `json:"ttl_seconds" example:"60"`
}

// InvalidateRequest optionally names why the cache is dropped.
type InvalidateRequest struct {
	Reason string `json:"reason" example:"products imported"`
}

func toWatcherStatus(s monitor.Status) WatcherStatus {
	out := WatcherStatus{
		Name:            s.Name,
		Running:         s.Running,
		Primed:          s.Primed,
		Items:           s.Items,
		Changes:         s.Changes,
		Runs:            s.Runs,
		IntervalSeconds: s.Interval.Seconds(),
		LastError:       s.LastError,
	}
	if !s.LastRun.IsZero() {
		t := s.LastRun.UTC()
		out.LastRun = &t
	}
	return out
}

func (h *Handlers) monitorStatus() MonitorStatusResponse {
	st := h.mon.Status()
	resp := MonitorStatusResponse{Watchers: make([]WatcherStatus, 0, len(st))}
	for _, s := range st {
		resp.Watchers = append(resp.Watchers, toWatcherStatus(s))
	}
	return resp
}

func (h *Handlers) requireMonitor(c *gin.Context) bool {
	if h.mon == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeMonitorDisabled, "monitor disabled: no notification chats configured")
		return false
	}
	return true
}

// MonitorStatus godoc
// @ID          monitorStatus
// @Summary     Watcher status
// @Description Returns the state of every entity watcher.
// @Tags        Monitor
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.MonitorStatusResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     503  {object}  handlers.ErrorResponse  "Monitor disabled"
// @Router      /monitor [get]
func (h *Handlers) MonitorStatus(c *gin.Context) {
	if !h.requireMonitor(c) {
		return
	}
	ok(c, http.StatusOK, h.monitorStatus())
}

// PollNow godoc
// @ID          pollNow
// @Summary     Poll Grocy now
// @Description Runs one cycle of every watcher, sending notifications for new items, and returns the resulting status.
// @Tags        Monitor
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.MonitorStatusResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     502  {object}  handlers.ErrorResponse  "A watcher failed"
// @Failure     503  {object}  handlers.ErrorResponse  "Monitor disabled"
// @Router      /monitor/poll [post]
func (h *Handlers) PollNow(c *gin.Context) {
	if !h.requireMonitor(c) {
		return
	}
	if err := h.mon.PollAll(c.Request.Context()); err != nil {
		fail(c, http.StatusBadGateway, ErrCodePollFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, h.monitorStatus())
}

// CacheInfo godoc
// @ID          cacheInfo
// @Summary     Cache state
// @Tags        Cache
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.CacheResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Router      /cache [get]
func (h *Handlers) CacheInfo(c *gin.Context) {
	ok(c, http.StatusOK, CacheResponse{Entries: h.cache.Len(), TTLSeconds: h.cache.TTL().Seconds()})
}

// InvalidateCache godoc
// @ID          invalidateCache
// @Summary     Drop cached Grocy responses
// @Description The next read of every entity goes to Grocy.
// @Tags        Cache
// @Accept      json
// @Security    AdminToken
// @Param       body  body  handlers.InvalidateRequest  false  "Optional reason, logged"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Router      /cache/invalidate [post]
func (h *Handlers) InvalidateCache(c *gin.Context) {
	var req InvalidateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "admin api"
	}
	h.cache.Invalidate(reason)
	noContent(c)
}
