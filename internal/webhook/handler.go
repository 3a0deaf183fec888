package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zns-gateway/internal/service"
)

// StatusApplier records a status push. *service.Service satisfies it.
type StatusApplier interface {
	ApplyWebhook(ctx context.Context, payload map[string]any) service.WebhookResult
}

type Handler struct {
	Statuses StatusApplier
	Log      *logrus.Logger
}

func NewHandler(statuses StatusApplier, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Statuses: statuses, Log: log}
}

// HandleStatus is the unauthenticated BOM delivery webhook. It always answers
// 200; the outcome travels in the body.
func (h *Handler) HandleStatus(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Log.WithError(err).Warn("error reading ZNS webhook body")
	}

	payload := decodePayload(body)
	if payload == nil && len(body) > 0 {
		h.Log.WithField("body", string(body)).Warn("ZNS webhook body is not a JSON object")
	}

	res := h.Statuses.ApplyWebhook(c.Request.Context(), payload)
	if res.Status != "success" {
		h.Log.WithFields(logrus.Fields{"message_id": payload["message_id"], "reason": res.Message}).Warn("ZNS webhook rejected")
	}
	c.JSON(http.StatusOK, res)
}

// decodePayload accepts a bare JSON object or a JSON-RPC envelope carrying
// the object in "params".
func decodePayload(body []byte) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	if _, ok := payload["jsonrpc"]; ok {
		params, _ := payload["params"].(map[string]any)
		return params
	}
	return payload
}
