package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/models"
)

func orderedVariants(db *gorm.DB) *gorm.DB {
	return db.Order("sequence, id")
}

func (s *Service) ListTemplates(ctx context.Context, env auth.Env, activeOnly bool) ([]models.Template, error) {
	q := s.db.WithContext(ctx).Where("company_id = ?", env.CompanyID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var templates []models.Template
	err := q.Order("name, id").Find(&templates).Error
	return templates, err
}

// GetTemplate loads a template of the caller's company with its variants.
func (s *Service) GetTemplate(ctx context.Context, env auth.Env, id uint) (*models.Template, error) {
	var tpl models.Template
	err := s.db.WithContext(ctx).
		Preload("Variants", orderedVariants).
		Where("company_id = ?", env.CompanyID).
		First(&tpl, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("template")
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// CreateTemplate inserts a template, defaulting its configuration to the
// company's active one.
func (s *Service) CreateTemplate(ctx context.Context, env auth.Env, tpl *models.Template) error {
	if strings.TrimSpace(tpl.Name) == "" || strings.TrimSpace(tpl.TemplateCode) == "" {
		return validationError("template name and code are required")
	}
	tpl.ID = 0
	tpl.CompanyID = env.CompanyID
	if tpl.TemplateType == "" {
		tpl.TemplateType = models.TemplateTransaction
	}
	if tpl.ConfigID == nil {
		if cfg, err := s.ActiveConfig(ctx, env.CompanyID); err == nil {
			tpl.ConfigID = &cfg.ID
		}
	}
	if err := s.ensureUniqueCode(ctx, env.CompanyID, tpl.TemplateCode, 0); err != nil {
		return err
	}

	variants := tpl.Variants
	tpl.Variants = nil
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active := tpl.Active
		if err := createWithZeroes(tx, tpl, map[string]any{"active": active}); err != nil {
			return err
		}
		tpl.Active = active
		for i := range variants {
			variants[i].TemplateID = tpl.ID
			if err := insertVariant(tx, &variants[i]); err != nil {
				return err
			}
		}
		tpl.Variants = variants
		return nil
	})
}

func (s *Service) UpdateTemplate(ctx context.Context, env auth.Env, id uint, in models.Template) (*models.Template, error) {
	tpl, err := s.GetTemplate(ctx, env, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.TemplateCode) == "" {
		return nil, validationError("template name and code are required")
	}
	if in.TemplateCode != tpl.TemplateCode {
		if err := s.ensureUniqueCode(ctx, env.CompanyID, in.TemplateCode, id); err != nil {
			return nil, err
		}
	}

	tpl.Name = in.Name
	tpl.TemplateCode = in.TemplateCode
	tpl.Description = in.Description
	tpl.Active = in.Active
	if in.TemplateType != "" {
		tpl.TemplateType = in.TemplateType
	}
	tpl.TemplateContent = in.TemplateContent
	if in.ConfigID != nil {
		tpl.ConfigID = in.ConfigID
	}
	if err := s.db.WithContext(ctx).Omit("Variants").Save(tpl).Error; err != nil {
		return nil, err
	}
	return tpl, nil
}

// DeleteTemplate removes the template and its variants. History rows keep
// their template code.
func (s *Service) DeleteTemplate(ctx context.Context, env auth.Env, id uint) error {
	tpl, err := s.GetTemplate(ctx, env, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.History{}).Where("template_id = ?", tpl.ID).Update("template_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", tpl.ID).Delete(&models.Variant{}).Error; err != nil {
			return err
		}
		return tx.Delete(tpl).Error
	})
}

func (s *Service) ensureUniqueCode(ctx context.Context, companyID uint, code string, exceptID uint) error {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.Template{}).Where("company_id = ? AND template_code = ?", companyID, code)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return validationError("template code %q must be unique per company", code)
	}
	return nil
}

// SyncTemplate refreshes a template from GET /template/{code} and upserts its
// variants from the returned parameter list.
func (s *Service) SyncTemplate(ctx context.Context, env auth.Env, id uint) (*models.Template, error) {
	tpl, err := s.GetTemplate(ctx, env, id)
	if err != nil {
		return nil, err
	}
	if tpl.TemplateCode == "" {
		return nil, validationError("template code is required to sync from BOM")
	}
	cfg, err := s.configFor(ctx, env.CompanyID, tpl.ConfigID)
	if err != nil {
		return nil, err
	}

	info, resp, err := s.bom.Template(ctx, credentials(cfg), tpl.TemplateCode)
	if err != nil {
		s.log.WithError(err).WithField("template_code", tpl.TemplateCode).Error("failed to sync template")
		return nil, fmt.Errorf("%w: failed to sync template: %v", ErrRemote, err)
	}

	if info.Name != "" {
		tpl.Name = info.Name
	}
	if info.Description != "" {
		tpl.Description = info.Description
	}
	if info.Type != "" {
		tpl.TemplateType = info.Type
	}
	if info.Content != "" {
		tpl.TemplateContent = info.Content
	}
	tpl.TemplateJSON = resp.Text()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Variants").Save(tpl).Error; err != nil {
			return err
		}
		existing := make(map[string]*models.Variant, len(tpl.Variants))
		for i := range tpl.Variants {
			existing[tpl.Variants[i].ParamName] = &tpl.Variants[i]
		}
		for _, p := range info.Parameters {
			if p.Name == "" {
				continue
			}
			paramType := p.Type
			if paramType == "" {
				paramType = models.ParamText
			}
			if v, ok := existing[p.Name]; ok {
				err := tx.Model(v).Updates(map[string]any{
					"param_type":  paramType,
					"required":    p.Required,
					"description": p.Description,
				}).Error
				if err != nil {
					return err
				}
				continue
			}
			v := models.Variant{
				TemplateID:        tpl.ID,
				Name:              p.Name,
				ParamName:         p.Name,
				ParamType:         paramType,
				Required:          p.Required,
				Description:       p.Description,
				Active:            true,
				Sequence:          10,
				DecimalPlaces:     2,
				ThousandSeparator: true,
			}
			if err := insertVariant(tx, &v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, env, id)
}

func (s *Service) ListVariants(ctx context.Context, env auth.Env, templateID uint) ([]models.Variant, error) {
	tpl, err := s.GetTemplate(ctx, env, templateID)
	if err != nil {
		return nil, err
	}
	return tpl.Variants, nil
}

func (s *Service) AddVariant(ctx context.Context, env auth.Env, templateID uint, v *models.Variant) error {
	if _, err := s.GetTemplate(ctx, env, templateID); err != nil {
		return err
	}
	if err := validateVariant(v); err != nil {
		return err
	}
	var count int64
	s.db.WithContext(ctx).Model(&models.Variant{}).Where("template_id = ? AND param_name = ?", templateID, v.ParamName).Count(&count)
	if count > 0 {
		return validationError("parameter name %q must be unique per template", v.ParamName)
	}
	v.ID = 0
	v.TemplateID = templateID
	return insertVariant(s.db.WithContext(ctx), v)
}

func (s *Service) GetVariant(ctx context.Context, env auth.Env, templateID, variantID uint) (*models.Variant, error) {
	if _, err := s.GetTemplate(ctx, env, templateID); err != nil {
		return nil, err
	}
	var v models.Variant
	err := s.db.WithContext(ctx).Where("template_id = ?", templateID).First(&v, variantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("variant")
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Service) UpdateVariant(ctx context.Context, env auth.Env, templateID, variantID uint, in models.Variant) (*models.Variant, error) {
	v, err := s.GetVariant(ctx, env, templateID, variantID)
	if err != nil {
		return nil, err
	}
	if err := validateVariant(&in); err != nil {
		return nil, err
	}
	in.ID = v.ID
	in.TemplateID = templateID
	if err := s.db.WithContext(ctx).Save(&in).Error; err != nil {
		return nil, err
	}
	return &in, nil
}

func (s *Service) DeleteVariant(ctx context.Context, env auth.Env, templateID, variantID uint) error {
	if _, err := s.GetTemplate(ctx, env, templateID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("template_id = ?", templateID).Delete(&models.Variant{}, variantID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("variant")
	}
	return nil
}

func validateVariant(v *models.Variant) error {
	if strings.TrimSpace(v.ParamName) == "" {
		return validationError("parameter name is required")
	}
	if v.Name == "" {
		v.Name = v.ParamName
	}
	switch v.ParamType {
	case "":
		v.ParamType = models.ParamText
	case models.ParamText, models.ParamNumber, models.ParamDate, models.ParamCurrency, models.ParamURL:
	default:
		return validationError("unknown parameter type %q", v.ParamType)
	}
	switch v.CurrencyPosition {
	case "":
		v.CurrencyPosition = "before"
	case "before", "after":
	default:
		return validationError("currency position must be before or after")
	}
	if v.FieldModel == "" {
		v.FieldModel = models.ModelCustom
	}
	if v.DateFormat == "" {
		v.DateFormat = "%d/%m/%Y"
	}
	if v.CurrencySymbol == "" {
		v.CurrencySymbol = "₫"
	}
	if v.DecimalPlaces < 0 {
		return validationError("decimal places must not be negative")
	}
	return nil
}

func insertVariant(tx *gorm.DB, v *models.Variant) error {
	if v.Name == "" {
		v.Name = v.ParamName
	}
	active, sep, places, required := v.Active, v.ThousandSeparator, v.DecimalPlaces, v.Required
	err := createWithZeroes(tx, v, map[string]any{
		"active":             active,
		"thousand_separator": sep,
		"decimal_places":     places,
		"required":           required,
	})
	if err != nil {
		return err
	}
	v.Active, v.ThousandSeparator, v.DecimalPlaces, v.Required = active, sep, places, required
	return nil
}
