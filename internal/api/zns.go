package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zns-gateway/internal/middleware"
	"zns-gateway/internal/service"
	"zns-gateway/internal/ws"
)

// ZNSHandler serves the /bom/zns routes used by the back office.
type ZNSHandler struct {
	Svc *service.Service
	Hub *ws.Hub
	Log *logrus.Logger
}

func NewZNSHandler(svc *service.Service, hub *ws.Hub, log *logrus.Logger) *ZNSHandler {
	return &ZNSHandler{Svc: svc, Hub: hub, Log: log}
}

// CheckStatus polls BOM and redirects to the updated history row.
func (h *ZNSHandler) CheckStatus(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.Log.WithField("panic", r).Error("error checking message status")
			c.String(http.StatusInternalServerError, fmt.Sprint(r))
		}
	}()

	res := h.Svc.Check(c.Request.Context(), middleware.Env(c), c.Param("message_id"))
	if res.HistoryID != 0 {
		c.Redirect(http.StatusFound, fmt.Sprintf("/api/history/%d", res.HistoryID))
		return
	}
	msg := res.Error
	if msg == "" {
		msg = "Unknown error"
	}
	c.String(http.StatusBadRequest, "Error checking message status: "+msg)
}

func (h *ZNSHandler) DashboardData(c *gin.Context) {
	data, err := h.Svc.Dashboard(c.Request.Context(), middleware.Env(c))
	if err != nil {
		h.Log.WithError(err).Error("error getting dashboard data")
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}

// Live upgrades to a websocket streaming the company's history updates.
func (h *ZNSHandler) Live(c *gin.Context) {
	h.Hub.ServeWs(c.Writer, c.Request, middleware.Env(c).CompanyID)
}
