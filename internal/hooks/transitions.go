package hooks

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/models"
	"zns-gateway/internal/service"
)

// PostInvoice moves an invoice to posted and runs the invoice hook.
func (h *Hooks) PostInvoice(ctx context.Context, env auth.Env, id uint) (*models.Invoice, Outcome, error) {
	var inv models.Invoice
	if err := h.find(ctx, env, &inv, id); err != nil {
		return nil, Outcome{}, err
	}
	if inv.State == "posted" {
		return nil, Outcome{}, fmt.Errorf("%w: invoice %d is already posted", service.ErrValidation, id)
	}
	if err := h.db(ctx).Model(&inv).Update("state", "posted").Error; err != nil {
		return nil, Outcome{}, err
	}

	out, err := h.InvoicePosted(ctx, env, id)
	_ = h.find(ctx, env, &inv, id)
	return &inv, out, err
}

// ConfirmSaleOrder moves a quotation to sale and runs the sales order hook.
func (h *Hooks) ConfirmSaleOrder(ctx context.Context, env auth.Env, id uint) (*models.SaleOrder, Outcome, error) {
	var so models.SaleOrder
	if err := h.find(ctx, env, &so, id); err != nil {
		return nil, Outcome{}, err
	}
	if so.State == "sale" {
		return nil, Outcome{}, fmt.Errorf("%w: sales order %d is already confirmed", service.ErrValidation, id)
	}
	if err := h.db(ctx).Model(&so).Update("state", "sale").Error; err != nil {
		return nil, Outcome{}, err
	}

	out, err := h.SaleOrderConfirmed(ctx, env, id)
	_ = h.find(ctx, env, &so, id)
	return &so, out, err
}

// ChangeLeadStage moves a lead to stageID and runs the lead hook with the
// previous stage.
func (h *Hooks) ChangeLeadStage(ctx context.Context, env auth.Env, id, stageID uint) (*models.Lead, Outcome, error) {
	var lead models.Lead
	if err := h.find(ctx, env, &lead, id); err != nil {
		return nil, Outcome{}, err
	}
	var stage models.Stage
	if err := h.find(ctx, env, &stage, stageID); err != nil {
		return nil, Outcome{}, err
	}

	var oldStageID *uint
	if lead.StageID != nil {
		old := *lead.StageID
		oldStageID = &old
	}
	if err := h.db(ctx).Model(&lead).Update("stage_id", stage.ID).Error; err != nil {
		return nil, Outcome{}, err
	}

	out, err := h.LeadStageChanged(ctx, env, id, oldStageID)
	_ = h.find(ctx, env, &lead, id)
	lead.Stage = &stage
	return &lead, out, err
}

func (h *Hooks) find(ctx context.Context, env auth.Env, dest any, id uint) error {
	err := h.db(ctx).Where("company_id = ?", env.CompanyID).First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("record %d %w", id, service.ErrNotFound)
	}
	return err
}
