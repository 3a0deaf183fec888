package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/formatter"
	"zns-gateway/internal/models"
)

// LoadDocument fetches a business document of the company with its partner
// (and stage, for leads) preloaded.
func (s *Service) LoadDocument(ctx context.Context, env auth.Env, model string, id uint) (models.Document, error) {
	var doc models.Document
	q := s.db.WithContext(ctx).Preload("Partner").Where("company_id = ?", env.CompanyID)
	var err error
	switch model {
	case models.ModelInvoice:
		var inv models.Invoice
		err = q.First(&inv, id).Error
		doc = &inv
	case models.ModelSaleOrder:
		var so models.SaleOrder
		err = q.First(&so, id).Error
		doc = &so
	case models.ModelLead:
		var lead models.Lead
		err = q.Preload("Stage").First(&lead, id).Error
		doc = &lead
	default:
		return nil, validationError("unsupported document model %q", model)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(model)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) GetPartner(ctx context.Context, env auth.Env, id uint) (*models.Partner, error) {
	var p models.Partner
	err := s.db.WithContext(ctx).Where("company_id = ?", env.CompanyID).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("partner")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadRecord returns the field map of a document or partner for parameter
// resolution.
func (s *Service) LoadRecord(ctx context.Context, env auth.Env, model string, id uint) (formatter.Record, error) {
	if model == models.ModelPartner {
		p, err := s.GetPartner(ctx, env, id)
		if err != nil {
			return nil, err
		}
		return p.Record(), nil
	}
	doc, err := s.LoadDocument(ctx, env, model, id)
	if err != nil {
		return nil, err
	}
	return doc.Record(), nil
}

// PrefillLine is one wizard row: a variant with its suggested value.
type PrefillLine struct {
	VariantID uint   `json:"variant_id"`
	ParamName string `json:"param_name"`
	ParamType string `json:"param_type"`
	Required  bool   `json:"required"`
	Value     string `json:"value"`
}

type Prefill struct {
	TemplateID uint          `json:"template_id"`
	PartnerID  uint          `json:"partner_id,omitempty"`
	Phone      string        `json:"phone"`
	Model      string        `json:"model,omitempty"`
	ResID      uint          `json:"res_id,omitempty"`
	Lines      []PrefillLine `json:"lines"`
}

// Prefill suggests wizard values: variants bound to the related document's
// model read from it, partner-bound variants read from the recipient, and the
// rest use their default.
func (s *Service) Prefill(ctx context.Context, env auth.Env, templateID uint, model string, resID, partnerID uint) (*Prefill, error) {
	tpl, err := s.GetTemplate(ctx, env, templateID)
	if err != nil {
		return nil, err
	}
	out := &Prefill{TemplateID: tpl.ID, PartnerID: partnerID, Model: model, ResID: resID, Lines: []PrefillLine{}}

	var docRecord, partnerRecord formatter.Record
	if model != "" && resID != 0 {
		rec, err := s.LoadRecord(ctx, env, model, resID)
		if err != nil {
			s.log.WithError(err).WithField("model", model).Warn("error getting field value")
		}
		docRecord = rec
	}
	if partnerID != 0 {
		p, err := s.GetPartner(ctx, env, partnerID)
		if err != nil {
			return nil, err
		}
		out.Phone = p.MessagingPhone()
		partnerRecord = p.Record()
	}

	f := s.Formatter(ctx, env.CompanyID)
	for _, v := range tpl.Variants {
		if !v.Active {
			continue
		}
		value := v.DefaultValue
		switch {
		case docRecord != nil && v.FieldModel == model:
			value = f.Format(v, docRecord, nil)
		case partnerRecord != nil && v.FieldModel == models.ModelPartner:
			value = f.Format(v, partnerRecord, nil)
		}
		out.Lines = append(out.Lines, PrefillLine{
			VariantID: v.ID,
			ParamName: v.ParamName,
			ParamType: v.ParamType,
			Required:  v.Required,
			Value:     value,
		})
	}
	return out, nil
}

// RelatedDocument resolves the document a history row was sent for.
func (s *Service) RelatedDocument(ctx context.Context, env auth.Env, historyID uint) (formatter.Record, error) {
	h, err := s.GetHistory(ctx, env, historyID)
	if err != nil {
		return nil, err
	}
	if h.Model == "" || h.ResID == 0 {
		return nil, notFound("related document")
	}
	return s.LoadRecord(ctx, env, h.Model, h.ResID)
}
