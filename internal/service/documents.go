package service

import (
	"context"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/models"
)

// Documents are created in their initial state; posting, confirming and
// stage moves go through the hooks package so auto-send runs.

func (s *Service) CreateInvoice(ctx context.Context, env auth.Env, inv *models.Invoice) error {
	if err := s.checkPartnerRef(ctx, env, inv.PartnerID); err != nil {
		return err
	}
	inv.ID = 0
	inv.CompanyID = env.CompanyID
	inv.State = "draft"
	inv.ZnsSent = false
	return s.db.WithContext(ctx).Create(inv).Error
}

func (s *Service) CreateSaleOrder(ctx context.Context, env auth.Env, so *models.SaleOrder) error {
	if err := s.checkPartnerRef(ctx, env, so.PartnerID); err != nil {
		return err
	}
	so.ID = 0
	so.CompanyID = env.CompanyID
	so.State = "draft"
	so.ZnsSent = false
	return s.db.WithContext(ctx).Create(so).Error
}

func (s *Service) CreateLead(ctx context.Context, env auth.Env, lead *models.Lead) error {
	if err := s.checkPartnerRef(ctx, env, lead.PartnerID); err != nil {
		return err
	}
	if lead.StageID != nil {
		if _, err := s.GetStage(ctx, env, *lead.StageID); err != nil {
			return err
		}
	}
	lead.ID = 0
	lead.CompanyID = env.CompanyID
	lead.ZnsSent = false
	return s.db.WithContext(ctx).Create(lead).Error
}

func (s *Service) ListStages(ctx context.Context, env auth.Env) ([]models.Stage, error) {
	var stages []models.Stage
	err := s.db.WithContext(ctx).Where("company_id = ?", env.CompanyID).Order("id").Find(&stages).Error
	return stages, err
}

func (s *Service) GetStage(ctx context.Context, env auth.Env, id uint) (*models.Stage, error) {
	var st models.Stage
	res := s.db.WithContext(ctx).Where("company_id = ?", env.CompanyID).Limit(1).Find(&st, id)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, notFound("stage")
	}
	return &st, nil
}

func (s *Service) CreateStage(ctx context.Context, env auth.Env, st *models.Stage) error {
	if st.Name == "" {
		return validationError("Stage name is required.")
	}
	st.ID = 0
	st.CompanyID = env.CompanyID
	return s.db.WithContext(ctx).Create(st).Error
}

func (s *Service) checkPartnerRef(ctx context.Context, env auth.Env, id *uint) error {
	if id == nil || *id == 0 {
		return nil
	}
	_, err := s.GetPartner(ctx, env, *id)
	return err
}
