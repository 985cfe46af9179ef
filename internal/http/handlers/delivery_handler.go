// Delivery journal HTTP handlers.
//
//   - GET /deliveries          paginated, newest first, weak ETag
//   - GET /deliveries/summary  totals per status
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/repo"
	"github.com/tbourn/go-grocy-bot/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListDeliveriesResponse wraps a page of deliveries.
type ListDeliveriesResponse struct {
	Deliveries []domain.Delivery `json:"deliveries"`
	Pagination Pagination        `json:"pagination"`
}

// StatusTotal is one row of the summary.
type StatusTotal struct {
	Status string `json:"status" example:"sent"`
	Total  int64  `json:"total" example:"42"`
}

// SummaryResponse lists totals per delivery status.
type SummaryResponse struct {
	Statuses []StatusTotal `json:"statuses"`
}

// clampPagination bounds page and page_size to [1,∞) and [1,100].
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	return utils.PageParams(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
}

// deliveryFilter parses chat_id and status. An error names the bad
// parameter.
func deliveryFilter(c *gin.Context) (repo.DeliveryFilter, error) {
	var f repo.DeliveryFilter
	if s := strings.TrimSpace(c.Query("chat_id")); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, fmt.Errorf("chat_id must be an integer")
		}
		f.ChatID = id
	}
	switch s := strings.TrimSpace(c.Query("status")); s {
	case "", domain.DeliverySent, domain.DeliveryFailed, domain.DeliverySuppressed:
		f.Status = s
	default:
		return f, fmt.Errorf("status must be one of %s, %s, %s",
			domain.DeliverySent, domain.DeliveryFailed, domain.DeliverySuppressed)
	}
	return f, nil
}

// ListDeliveries godoc
// @ID          listDeliveries
// @Summary     List notification deliveries (paginated)
// @Description Returns delivery attempts newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Deliveries
// @Produce     json
// @Security    AdminToken
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"deliveries:0::3:1715342400\")
// @Param       chat_id        query   int     false "Destination chat"
// @Param       status         query   string  false "sent, failed or suppressed"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListDeliveriesResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid token"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /deliveries [get]
func (h *Handlers) ListDeliveries(c *gin.Context) {
	ctx := c.Request.Context()
	f, err := deliveryFilter(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, latest, err := h.journal.Version(ctx, f); err == nil {
		var ts int64
		if latest != nil {
			ts = latest.Unix()
		}
		etag := fmt.Sprintf(`W/"deliveries:%d:%s:%d:%d"`, f.ChatID, f.Status, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.journal.ListPage(ctx, f, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListDeliveriesResponse{
		Deliveries: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// DeliverySummary godoc
// @ID          deliverySummary
// @Summary     Delivery totals per status
// @Tags        Deliveries
// @Produce     json
// @Security    AdminToken
// @Success     200  {object} handlers.SummaryResponse
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid token"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /deliveries/summary [get]
func (h *Handlers) DeliverySummary(c *gin.Context) {
	rows, err := h.journal.Summary(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	resp := SummaryResponse{Statuses: make([]StatusTotal, 0, len(rows))}
	for _, r := range rows {
		resp.Statuses = append(resp.Statuses, StatusTotal{Status: r.Status, Total: r.Total})
	}
	ok(c, http.StatusOK, resp)
}
