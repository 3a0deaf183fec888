// Package hooks sends the automatic ZNS notifications tied to business
// document transitions: posted customer invoices, confirmed sales orders and
// leads moved to a won stage.
package hooks

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/models"
	"zns-gateway/internal/service"
	"zns-gateway/internal/settings"
)

// Skip reasons reported in Outcome.
const (
	SkipDisabled    = "auto send disabled"
	SkipNotEligible = "document not eligible"
	SkipNoTemplate  = "no template configured"
	SkipArchived    = "template archived"
	SkipNoPartner   = "no partner"
	SkipNoOptIn     = "partner has not opted in"
	SkipNoPhone     = "partner has no phone"
	SkipAlreadySent = "already sent"
)

// Outcome describes what a hook did. Either Skipped is set or Result holds
// the send result.
type Outcome struct {
	Skipped string              `json:"skipped,omitempty"`
	Result  *service.SendResult `json:"result,omitempty"`
}

func (o Outcome) Sent() bool {
	return o.Result != nil && o.Result.Success
}

func skipped(reason string) Outcome {
	return Outcome{Skipped: reason}
}

type Hooks struct {
	svc *service.Service
	log *logrus.Logger
}

func New(svc *service.Service, log *logrus.Logger) *Hooks {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hooks{svc: svc, log: log}
}

func (h *Hooks) db(ctx context.Context) *gorm.DB {
	return h.svc.DB().WithContext(ctx)
}

// InvoicePosted notifies the customer of a posted out_invoice.
func (h *Hooks) InvoicePosted(ctx context.Context, env auth.Env, invoiceID uint) (Outcome, error) {
	if !h.svc.Settings().Bool(ctx, env.CompanyID, settings.AutoSendInvoice) {
		return skipped(SkipDisabled), nil
	}
	doc, err := h.svc.LoadDocument(ctx, env, models.ModelInvoice, invoiceID)
	if err != nil {
		return Outcome{}, err
	}
	inv := doc.(*models.Invoice)
	if inv.MoveType != "out_invoice" || inv.State != "posted" {
		return skipped(SkipNotEligible), nil
	}
	return h.fire(ctx, env, doc, settings.InvoiceTemplateID)
}

// SaleOrderConfirmed notifies the customer of a confirmed order.
func (h *Hooks) SaleOrderConfirmed(ctx context.Context, env auth.Env, orderID uint) (Outcome, error) {
	if !h.svc.Settings().Bool(ctx, env.CompanyID, settings.AutoSendSO) {
		return skipped(SkipDisabled), nil
	}
	doc, err := h.svc.LoadDocument(ctx, env, models.ModelSaleOrder, orderID)
	if err != nil {
		return Outcome{}, err
	}
	return h.fire(ctx, env, doc, settings.SOTemplateID)
}

// LeadStageChanged fires only when the lead enters a won stage from a stage
// that was not won.
func (h *Hooks) LeadStageChanged(ctx context.Context, env auth.Env, leadID uint, oldStageID *uint) (Outcome, error) {
	if !h.svc.Settings().Bool(ctx, env.CompanyID, settings.AutoSendCRM) {
		return skipped(SkipDisabled), nil
	}
	doc, err := h.svc.LoadDocument(ctx, env, models.ModelLead, leadID)
	if err != nil {
		return Outcome{}, err
	}
	lead := doc.(*models.Lead)
	if lead.Stage == nil || !lead.Stage.IsWon {
		return skipped(SkipNotEligible), nil
	}
	if oldStageID != nil {
		var old models.Stage
		err := h.db(ctx).First(&old, *oldStageID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return Outcome{}, err
		}
		if err == nil && old.IsWon {
			return skipped(SkipNotEligible), nil
		}
	}
	return h.fire(ctx, env, doc, settings.CRMTemplateID)
}

// fire resolves the configured template and recipient, claims the document's
// zns_sent flag and sends. A failed send releases the claim.
func (h *Hooks) fire(ctx context.Context, env auth.Env, doc models.Document, templateKey string) (Outcome, error) {
	fields := logrus.Fields{"model": doc.DocumentModel(), "res_id": doc.DocumentID()}

	templateID := h.svc.Settings().Int(ctx, env.CompanyID, templateKey)
	if templateID <= 0 {
		return skipped(SkipNoTemplate), nil
	}
	tpl, err := h.svc.GetTemplate(ctx, env, uint(templateID))
	if errors.Is(err, service.ErrNotFound) {
		h.log.WithFields(fields).WithField("template_id", templateID).Warn("configured template no longer exists")
		return skipped(SkipNoTemplate), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	if !tpl.Active {
		h.log.WithFields(fields).WithField("template_id", templateID).Warn("configured template is archived")
		return skipped(SkipArchived), nil
	}

	partner := doc.Recipient()
	switch {
	case partner == nil:
		return skipped(SkipNoPartner), nil
	case !partner.ZaloOptIn:
		return skipped(SkipNoOptIn), nil
	}
	phone := partner.MessagingPhone()
	if phone == "" {
		return skipped(SkipNoPhone), nil
	}

	claimed, err := h.claim(ctx, doc)
	if err != nil {
		return Outcome{}, err
	}
	if !claimed {
		return skipped(SkipAlreadySent), nil
	}

	params := h.svc.Formatter(ctx, env.CompanyID).BuildParams(tpl.Variants, doc.Record())
	result := h.svc.Send(ctx, env, service.SendRequest{
		TemplateID: tpl.ID,
		Phone:      phone,
		Params:     params,
		PartnerID:  partner.ID,
		Model:      doc.DocumentModel(),
		ResID:      doc.DocumentID(),
	})

	if !result.Success {
		h.log.WithFields(fields).WithField("error", result.Error).Warn("automatic ZNS send failed, releasing claim")
		if err := h.release(ctx, doc); err != nil {
			h.log.WithFields(fields).WithError(err).Error("failed to release zns_sent claim")
		}
	} else {
		h.log.WithFields(fields).WithField("message_id", result.MessageID).Info("automatic ZNS sent")
	}
	return Outcome{Result: &result}, nil
}

// claim flips zns_sent from false to true. Only one concurrent caller wins.
func (h *Hooks) claim(ctx context.Context, doc models.Document) (bool, error) {
	res := h.db(ctx).Model(doc).Where("zns_sent = ?", false).Update("zns_sent", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (h *Hooks) release(ctx context.Context, doc models.Document) error {
	return h.db(ctx).Model(doc).Update("zns_sent", false).Error
}
