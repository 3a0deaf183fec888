package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/bom"
	"zns-gateway/internal/metrics"
	"zns-gateway/internal/models"
)

const (
	msgTemplateNotFound = "Template not found."
	msgUnknownError     = "Unknown error"
)

type SendRequest struct {
	TemplateID uint              `json:"template_id"`
	Phone      string            `json:"phone"`
	Params     map[string]string `json:"params"`
	PartnerID  uint              `json:"partner_id,omitempty"`
	Model      string            `json:"model,omitempty"`
	ResID      uint              `json:"res_id,omitempty"`
	IsTest     bool              `json:"is_test"`
}

// SendResult is returned on every path; failures never surface as errors.
type SendResult struct {
	Success     bool   `json:"success"`
	MessageID   string `json:"message_id,omitempty"`
	Error       string `json:"error,omitempty"`
	HistoryID   uint   `json:"history_id,omitempty"`
	Response    string `json:"response,omitempty"`
	RequestData string `json:"request_data,omitempty"`
	DebugInfo   string `json:"debug_info,omitempty"`
}

type debugInfo struct {
	TemplateID   uint   `json:"template_id"`
	TemplateCode string `json:"template_code"`
	PartnerID    uint   `json:"partner_id,omitempty"`
	Model        string `json:"model,omitempty"`
	ResID        uint   `json:"res_id,omitempty"`
	IsTest       bool   `json:"is_test"`
	Timestamp    string `json:"timestamp"`
}

// Send records a draft History row and submits the template message to BOM.
// Exactly one History row is created per call.
func (s *Service) Send(ctx context.Context, env auth.Env, req SendRequest) SendResult {
	phone := strings.ReplaceAll(req.Phone, "+", "")
	params := req.Params
	if params == nil {
		params = map[string]string{}
	}

	h := &models.History{
		CompanyID:     env.CompanyID,
		UserID:        env.UserID,
		PartnerID:     uintPtr(req.PartnerID),
		Model:         req.Model,
		ResID:         req.ResID,
		Phone:         phone,
		MessageParams: toJSON(params),
		IsTest:        req.IsTest,
		State:         models.StateDraft,
	}

	tpl, err := s.sendableTemplate(ctx, env.CompanyID, req.TemplateID)
	if err != nil {
		return s.abortDraft(ctx, h, msgTemplateNotFound, "template_not_found")
	}
	h.TemplateID = &tpl.ID
	h.TemplateCode = tpl.TemplateCode

	payload := bom.SendTemplateRequest{TemplateID: tpl.TemplateCode, Phone: phone, Params: params}
	h.RequestData = toJSON(payload)
	h.DebugInformation = toJSON(debugInfo{
		TemplateID:   tpl.ID,
		TemplateCode: tpl.TemplateCode,
		PartnerID:    req.PartnerID,
		Model:        req.Model,
		ResID:        req.ResID,
		IsTest:       req.IsTest,
		Timestamp:    s.now().Format(time.RFC3339),
	})

	cfg, err := s.configFor(ctx, env.CompanyID, tpl.ConfigID)
	if err != nil {
		msg := ErrConfigMissing.Error() + "."
		if !errors.Is(err, ErrConfigMissing) {
			msg = fmt.Sprintf("Error sending ZNS message: %v", err)
		}
		return s.abortDraft(ctx, h, msg, "config_missing")
	}
	h.ConfigID = &cfg.ID

	if err := s.saveHistory(ctx, h); err != nil {
		return SendResult{Error: fmt.Sprintf("Error sending ZNS message: %v", err)}
	}
	return s.deliver(ctx, h, cfg, payload)
}

// abortDraft stores the attempt as a draft carrying the reason it never
// reached BOM.
func (s *Service) abortDraft(ctx context.Context, h *models.History, msg, outcome string) SendResult {
	h.ErrorMessage = msg
	metrics.SendTotal.WithLabelValues(outcome).Inc()
	s.log.WithFields(logrus.Fields{"phone": h.Phone, "template_code": h.TemplateCode}).Warn(msg)
	if err := s.saveHistory(ctx, h); err != nil {
		return SendResult{Error: msg}
	}
	return SendResult{Error: msg, HistoryID: h.ID, RequestData: h.RequestData, DebugInfo: h.DebugInformation}
}

// deliver performs the BOM call for an existing History row and records the
// outcome on that same row.
func (s *Service) deliver(ctx context.Context, h *models.History, cfg *models.Config, payload bom.SendTemplateRequest) SendResult {
	result := SendResult{HistoryID: h.ID, RequestData: h.RequestData, DebugInfo: h.DebugInformation}

	start := time.Now()
	resp, err := s.bom.SendTemplate(ctx, credentials(cfg), payload)
	metrics.BOMRequestDuration.WithLabelValues("send").Observe(time.Since(start).Seconds())
	if err != nil {
		return s.failSend(ctx, h, result, fmt.Sprintf("Error sending ZNS message: %v", err))
	}

	h.BomResponse = resp.Text()
	result.Response = resp.Text()

	data, err := resp.Decode()
	if err != nil {
		return s.failSend(ctx, h, result, fmt.Sprintf("Error sending ZNS message: %v", err))
	}

	if resp.StatusCode == http.StatusOK && data["status"] == "success" {
		messageID := stringValue(data["message_id"], "Unknown")
		h.MessageID = &messageID
		h.MessageContent = stringValue(data["content"], "")
		h.ErrorMessage = ""
		h.State = models.StateSent
		if err := s.saveHistory(ctx, h); err != nil {
			result.Error = err.Error()
			return result
		}
		metrics.SendTotal.WithLabelValues("sent").Inc()
		result.Success = true
		result.MessageID = messageID
		result.DebugInfo = ""
		return result
	}

	return s.failSend(ctx, h, result, stringValue(data["message"], msgUnknownError))
}

func (s *Service) failSend(ctx context.Context, h *models.History, result SendResult, msg string) SendResult {
	s.log.WithFields(logrus.Fields{"history_id": h.ID, "phone": h.Phone}).Error(msg)
	h.State = models.StateFailed
	h.ErrorMessage = msg
	result.Error = s.recordFailure(ctx, h, msg)
	metrics.SendTotal.WithLabelValues("failed").Inc()
	return result
}

func (s *Service) sendableTemplate(ctx context.Context, companyID uint, id uint) (*models.Template, error) {
	var tpl models.Template
	err := s.db.WithContext(ctx).
		Preload("Variants", orderedVariants).
		Where("company_id = ?", companyID).
		First(&tpl, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("template")
	}
	return &tpl, err
}

// ManualSend is the operator's send form.
type ManualSend struct {
	TemplateID uint              `json:"template_id"`
	PartnerID  uint              `json:"partner_id"`
	Phone      string            `json:"phone"`
	Model      string            `json:"model"`
	ResID      uint              `json:"res_id"`
	IsTest     bool              `json:"is_test"`
	Values     map[string]string `json:"values"`
}

// SendManual validates the form before any network call, then sends. Values
// missing from the form fall back to the variant default.
func (s *Service) SendManual(ctx context.Context, env auth.Env, in ManualSend) (SendResult, error) {
	if in.TemplateID == 0 {
		return SendResult{}, validationError("Please select a template.")
	}
	tpl, err := s.GetTemplate(ctx, env, in.TemplateID)
	if err != nil {
		return SendResult{}, err
	}
	if !tpl.Active {
		return SendResult{}, validationError("Template %s is archived.", tpl.Name)
	}

	phone := strings.TrimSpace(in.Phone)
	if phone == "" && in.PartnerID != 0 {
		p, err := s.GetPartner(ctx, env, in.PartnerID)
		if err != nil {
			return SendResult{}, err
		}
		phone = p.MessagingPhone()
	}
	if phone == "" {
		return SendResult{}, validationError("Please provide a phone number.")
	}

	params := make(map[string]string)
	for _, v := range tpl.Variants {
		if !v.Active {
			continue
		}
		value, ok := in.Values[v.ParamName]
		if !ok {
			value = v.DefaultValue
		}
		if v.Required && strings.TrimSpace(value) == "" {
			return SendResult{}, validationError("Please provide a value for required parameter: %s", v.ParamName)
		}
		params[v.ParamName] = value
	}

	return s.Send(ctx, env, SendRequest{
		TemplateID: tpl.ID,
		Phone:      phone,
		Params:     params,
		PartnerID:  in.PartnerID,
		Model:      in.Model,
		ResID:      in.ResID,
		IsTest:     in.IsTest,
	}), nil
}

// Retry re-runs a failed send against the same History row.
func (s *Service) Retry(ctx context.Context, env auth.Env, historyID uint) (SendResult, error) {
	h, err := s.GetHistory(ctx, env, historyID)
	if err != nil {
		return SendResult{}, err
	}
	if h.State != models.StateFailed {
		return SendResult{}, validationError("only failed messages can be retried")
	}
	if h.TemplateID == nil || h.MessageParams == "" {
		return SendResult{}, validationError("message has no template or parameters to resend")
	}
	h.Template, h.Partner = nil, nil

	result := SendResult{HistoryID: h.ID}

	var params map[string]string
	if err := json.Unmarshal([]byte(h.MessageParams), &params); err != nil {
		h.ErrorMessage = fmt.Sprintf("Failed to parse message parameters: %v", err)
		result.Error = s.recordFailure(ctx, h, h.ErrorMessage)
		return result, nil
	}

	tpl, err := s.sendableTemplate(ctx, h.CompanyID, *h.TemplateID)
	if err != nil {
		h.ErrorMessage = msgTemplateNotFound
		result.Error = s.recordFailure(ctx, h, h.ErrorMessage)
		return result, nil
	}
	cfg, err := s.configFor(ctx, h.CompanyID, tpl.ConfigID)
	if err != nil {
		h.ErrorMessage = ErrConfigMissing.Error() + "."
		result.Error = s.recordFailure(ctx, h, h.ErrorMessage)
		return result, nil
	}

	payload := bom.SendTemplateRequest{TemplateID: tpl.TemplateCode, Phone: strings.ReplaceAll(h.Phone, "+", ""), Params: params}
	h.ConfigID = &cfg.ID
	h.TemplateCode = tpl.TemplateCode
	h.RequestData = toJSON(payload)
	return s.deliver(ctx, h, cfg, payload), nil
}
