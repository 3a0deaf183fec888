package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"zns-gateway/internal/middleware"
	"zns-gateway/internal/service"
)

// PortalHandler serves a partner's own messages under /my/zns.
type PortalHandler struct {
	Svc *service.Service
}

func NewPortalHandler(svc *service.Service) *PortalHandler {
	return &PortalHandler{Svc: svc}
}

func parsePortalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

func (h *PortalHandler) Home(c *gin.Context) {
	n, err := h.Svc.PortalCount(c.Request.Context(), middleware.Env(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"zns_count": n})
}

func (h *PortalHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	res, err := h.Svc.PortalMessages(c.Request.Context(), middleware.Env(c), service.PortalQuery{
		Page:      page,
		SortBy:    c.Query("sortby"),
		FilterBy:  c.Query("filterby"),
		DateBegin: parsePortalDate(c.Query("date_begin")),
		DateEnd:   parsePortalDate(c.Query("date_end")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PortalHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	row, err := h.Svc.PortalMessage(c.Request.Context(), middleware.Env(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
