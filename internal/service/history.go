package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/models"
)

type HistoryFilter struct {
	State      string
	TemplateID uint
	PartnerID  uint
	Model      string
	ResID      uint
	Page       int
	Limit      int
}

func (s *Service) ListHistory(ctx context.Context, env auth.Env, f HistoryFilter) ([]models.History, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.History{}).Where("company_id = ?", env.CompanyID)
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	if f.TemplateID != 0 {
		q = q.Where("template_id = ?", f.TemplateID)
	}
	if f.PartnerID != 0 {
		q = q.Where("partner_id = ?", f.PartnerID)
	}
	if f.Model != "" {
		q = q.Where("model = ?", f.Model)
	}
	if f.ResID != 0 {
		q = q.Where("res_id = ?", f.ResID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	var rows []models.History
	err := q.Preload("Template").Preload("Partner").
		Order("created_at desc, id desc").
		Limit(limit).Offset((page - 1) * limit).
		Find(&rows).Error
	return rows, total, err
}

func (s *Service) GetHistory(ctx context.Context, env auth.Env, id uint) (*models.History, error) {
	var h models.History
	err := s.db.WithContext(ctx).
		Preload("Template").Preload("Partner").
		Where("company_id = ?", env.CompanyID).
		First(&h, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("message")
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// FindByMessageID returns the newest row carrying the BOM message id. A zero
// company id searches every company (inbound webhooks carry no tenant).
func (s *Service) FindByMessageID(ctx context.Context, companyID uint, messageID string) (*models.History, error) {
	q := s.db.WithContext(ctx).Where("message_id = ?", messageID)
	if companyID != 0 {
		q = q.Where("company_id = ?", companyID)
	}
	var h models.History
	err := q.Order("id desc").First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("message")
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// MarkState is the operator's manual state action. It obeys the same
// transition table as automatic updates.
func (s *Service) MarkState(ctx context.Context, env auth.Env, id uint, to models.State, errMsg string) (*models.History, error) {
	h, err := s.GetHistory(ctx, env, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(h.State, to) {
		return nil, validationError("cannot move message from %s to %s", h.State, to)
	}

	now := s.now()
	h.State = to
	switch to {
	case models.StateDelivered:
		h.DeliveryDate = &now
	case models.StateRead:
		h.ReadDate = &now
	case models.StateFailed:
		if errMsg != "" {
			h.ErrorMessage = errMsg
		}
	}
	if err := s.saveHistory(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// PortalQuery mirrors the customer portal's listing parameters.
type PortalQuery struct {
	Page      int
	SortBy    string
	FilterBy  string
	DateBegin *time.Time
	DateEnd   *time.Time
}

const PortalPageSize = 20

var portalSortings = map[string]string{
	"date":   "created_at desc, id desc",
	"name":   "template_id, id desc",
	"status": "state, id desc",
}

var portalFilters = map[string]models.State{
	"read":      models.StateRead,
	"delivered": models.StateDelivered,
	"failed":    models.StateFailed,
}

type PortalPage struct {
	Messages  []models.History `json:"messages"`
	Total     int64            `json:"total"`
	Page      int              `json:"page"`
	PageCount int              `json:"page_count"`
	SortBy    string           `json:"sortby"`
	FilterBy  string           `json:"filterby"`
}

// PortalMessages lists the authenticated partner's own messages.
func (s *Service) PortalMessages(ctx context.Context, env auth.Env, pq PortalQuery) (*PortalPage, error) {
	if env.PartnerID == 0 {
		return nil, validationError("portal access requires a partner")
	}
	sortBy := pq.SortBy
	order, ok := portalSortings[sortBy]
	if !ok {
		sortBy, order = "date", portalSortings["date"]
	}
	filterBy := pq.FilterBy
	if _, ok := portalFilters[filterBy]; !ok {
		filterBy = "all"
	}

	q := s.db.WithContext(ctx).Model(&models.History{}).
		Where("company_id = ? AND partner_id = ?", env.CompanyID, env.PartnerID)
	if pq.DateBegin != nil && pq.DateEnd != nil {
		q = q.Where("created_at > ? AND created_at <= ?", *pq.DateBegin, *pq.DateEnd)
	}
	if st, ok := portalFilters[filterBy]; ok {
		q = q.Where("state = ?", st)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	pageCount := int((total + PortalPageSize - 1) / PortalPageSize)
	if pageCount < 1 {
		pageCount = 1
	}
	page := pq.Page
	if page < 1 {
		page = 1
	}
	if page > pageCount {
		page = pageCount
	}

	var rows []models.History
	err := q.Preload("Template").
		Order(order).
		Limit(PortalPageSize).Offset((page - 1) * PortalPageSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return &PortalPage{Messages: rows, Total: total, Page: page, PageCount: pageCount, SortBy: sortBy, FilterBy: filterBy}, nil
}

// PortalMessage returns one of the partner's messages, marking a delivered
// message read on open.
func (s *Service) PortalMessage(ctx context.Context, env auth.Env, id uint) (*models.History, error) {
	var h models.History
	err := s.db.WithContext(ctx).
		Preload("Template").
		Where("company_id = ? AND partner_id = ?", env.CompanyID, env.PartnerID).
		First(&h, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("message")
	}
	if err != nil {
		return nil, err
	}

	if h.State == models.StateDelivered {
		now := s.now()
		h.State = models.StateRead
		h.ReadDate = &now
		if err := s.saveHistory(ctx, &h); err != nil {
			return nil, err
		}
	}
	return &h, nil
}

// PortalCount is the partner's message count for the portal home.
func (s *Service) PortalCount(ctx context.Context, env auth.Env) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.History{}).
		Where("company_id = ? AND partner_id = ?", env.CompanyID, env.PartnerID).
		Count(&n).Error
	return n, err
}
