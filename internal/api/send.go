package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zns-gateway/internal/middleware"
	"zns-gateway/internal/service"
)

type SendHandler struct {
	Svc *service.Service
}

func NewSendHandler(svc *service.Service) *SendHandler {
	return &SendHandler{Svc: svc}
}

// Send submits the manual send form. Delivery failures are reported in the
// body with a 200; only invalid forms are rejected.
func (h *SendHandler) Send(c *gin.Context) {
	var req service.ManualSend
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.Svc.SendManual(c.Request.Context(), middleware.Env(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SendRaw sends already-resolved parameters, bypassing variant defaults.
func (h *SendHandler) SendRaw(c *gin.Context) {
	var req service.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TemplateID == 0 || req.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template_id and phone are required"})
		return
	}
	c.JSON(http.StatusOK, h.Svc.Send(c.Request.Context(), middleware.Env(c), req))
}
