package service

import (
	"context"
	"strings"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/models"
)

// PartnerInput is the editable part of a contact. A nil ZaloOptIn leaves the
// stored preference untouched.
type PartnerInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Mobile    string `json:"mobile"`
	ZaloPhone string `json:"zalo_phone"`
	ZaloID    string `json:"zalo_id"`
	ZaloOptIn *bool  `json:"zalo_opt_in"`
}

func (s *Service) ListPartners(ctx context.Context, env auth.Env, search string) ([]models.Partner, error) {
	q := s.db.WithContext(ctx).Where("company_id = ?", env.CompanyID)
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + search + "%"
		q = q.Where("name LIKE ? OR phone LIKE ? OR mobile LIKE ? OR zalo_phone LIKE ?", like, like, like, like)
	}
	var partners []models.Partner
	err := q.Order("name, id").Find(&partners).Error
	return partners, err
}

func (s *Service) CreatePartner(ctx context.Context, env auth.Env, in PartnerInput) (*models.Partner, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, validationError("Partner name is required.")
	}
	p := &models.Partner{CompanyID: env.CompanyID}
	s.applyPartner(p, in)
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdatePartner(ctx context.Context, env auth.Env, id uint, in PartnerInput) (*models.Partner, error) {
	p, err := s.GetPartner(ctx, env, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		in.Name = p.Name
	}
	s.applyPartner(p, in)
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePartner(ctx context.Context, env auth.Env, id uint) error {
	res := s.db.WithContext(ctx).Where("company_id = ?", env.CompanyID).Delete(&models.Partner{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("partner")
	}
	return nil
}

func (s *Service) applyPartner(p *models.Partner, in PartnerInput) {
	p.Name = strings.TrimSpace(in.Name)
	p.Email = in.Email
	p.Phone = in.Phone
	p.Mobile = in.Mobile
	p.ZaloPhone = in.ZaloPhone
	p.ZaloID = in.ZaloID
	if in.ZaloOptIn != nil {
		p.SetOptIn(*in.ZaloOptIn, s.now())
	}
}
