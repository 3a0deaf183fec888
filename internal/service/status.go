package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/metrics"
	"zns-gateway/internal/models"
)

const (
	msgDeliveryFailed = "Failed to deliver message"
	sweepBatchSize    = 100
	sweepWindow       = 24 * time.Hour
)

type CheckResult struct {
	Success   bool   `json:"success"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	HistoryID uint   `json:"history_id,omitempty"`
	Response  string `json:"response,omitempty"`
}

// Check polls BOM for the status of messageID and applies it to the matching
// History row of the caller's company.
func (s *Service) Check(ctx context.Context, env auth.Env, messageID string) CheckResult {
	h, err := s.FindByMessageID(ctx, env.CompanyID, messageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CheckResult{Error: "Message not found in history."}
		}
		return CheckResult{Error: fmt.Sprintf("Error checking message status: %v", err)}
	}
	return s.checkHistory(ctx, h)
}

func (s *Service) checkHistory(ctx context.Context, h *models.History) CheckResult {
	cfg, err := s.configFor(ctx, h.CompanyID, h.ConfigID)
	if err != nil {
		return CheckResult{Error: ErrConfigMissing.Error() + "."}
	}

	start := time.Now()
	resp, err := s.bom.MessageStatus(ctx, credentials(cfg), h.RemoteID())
	metrics.BOMRequestDuration.WithLabelValues("status").Observe(time.Since(start).Seconds())
	if err != nil {
		return s.checkFailed(h, err)
	}
	data, err := resp.Decode()
	if err != nil {
		return s.checkFailed(h, err)
	}

	h.BomResponse = resp.Text()
	if resp.StatusCode != http.StatusOK {
		msg := s.recordFailure(ctx, h, stringValue(data["message"], msgUnknownError))
		return CheckResult{Error: msg, Response: resp.Text(), HistoryID: h.ID}
	}

	status := stringValue(data["status"], "unknown")
	s.applyStatus(h, status, data["message"])
	if err := s.saveHistory(ctx, h); err != nil {
		return s.checkFailed(h, err)
	}
	return CheckResult{Success: true, Status: status, Response: resp.Text(), HistoryID: h.ID}
}

func (s *Service) checkFailed(h *models.History, err error) CheckResult {
	msg := fmt.Sprintf("Error checking message status: %v", err)
	s.log.WithFields(logrus.Fields{"history_id": h.ID, "message_id": h.RemoteID()}).Error(msg)
	return CheckResult{Error: msg, HistoryID: h.ID}
}

// applyStatus maps a BOM status onto the row. Unknown statuses and moves the
// lifecycle forbids leave the state untouched.
func (s *Service) applyStatus(h *models.History, status string, message any) {
	var to models.State
	switch status {
	case "delivered":
		to = models.StateDelivered
	case "read":
		to = models.StateRead
	case "failed":
		to = models.StateFailed
	default:
		return
	}
	if !models.CanTransition(h.State, to) {
		s.log.WithFields(logrus.Fields{"history_id": h.ID, "from": h.State, "to": to}).Debug("ignoring status update")
		return
	}

	now := s.now()
	h.State = to
	switch to {
	case models.StateDelivered:
		h.DeliveryDate = &now
	case models.StateRead:
		if h.DeliveryDate == nil {
			h.DeliveryDate = &now
		}
		h.ReadDate = &now
	case models.StateFailed:
		h.ErrorMessage = stringValue(message, msgDeliveryFailed)
	}
}

// Sweep checks recent sent messages one at a time and returns how many were
// polled. Rows older than the window are never polled.
func (s *Service) Sweep(ctx context.Context) int {
	var pending []models.History
	err := s.db.WithContext(ctx).
		Where("state = ? AND created_at >= ? AND message_id IS NOT NULL AND message_id <> ''",
			models.StateSent, s.now().Add(-sweepWindow)).
		Order("id").
		Limit(sweepBatchSize).
		Find(&pending).Error
	if err != nil {
		s.log.WithError(err).Error("failed to load pending messages")
		return 0
	}

	checked := 0
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		res := s.checkHistory(ctx, &pending[i])
		if !res.Success {
			s.log.WithFields(logrus.Fields{"history_id": pending[i].ID, "error": res.Error}).Warn("status check failed")
		}
		checked++
	}
	metrics.SweepChecked.Add(float64(checked))
	if checked > 0 {
		s.log.WithField("checked", checked).Info("status sweep finished")
	}
	return checked
}

type WebhookResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func webhookError(msg string) WebhookResult {
	return WebhookResult{Status: "error", Message: msg}
}

// ApplyWebhook records a status pushed by BOM.
func (s *Service) ApplyWebhook(ctx context.Context, payload map[string]any) WebhookResult {
	if len(payload) == 0 {
		return webhookError("No data received")
	}
	messageID := stringValue(payload["message_id"], "")
	if messageID == "" {
		return webhookError("No message_id provided")
	}
	status := stringValue(payload["status"], "")
	if status == "" {
		return webhookError("No status provided")
	}

	h, err := s.FindByMessageID(ctx, 0, messageID)
	if errors.Is(err, ErrNotFound) {
		return webhookError("Message not found")
	}
	if err != nil {
		s.log.WithError(err).Error("error processing ZNS webhook")
		return webhookError(err.Error())
	}

	if cfg, err := s.configFor(ctx, h.CompanyID, h.ConfigID); err == nil && cfg.DebugMode {
		s.log.WithField("payload", toJSON(payload)).Info("ZNS webhook data")
	}

	h.BomResponse = toJSON(payload)
	s.applyStatus(h, status, payload["message"])
	if err := s.saveHistory(ctx, h); err != nil {
		return webhookError(err.Error())
	}
	return WebhookResult{Status: "success", Message: "Status updated"}
}
