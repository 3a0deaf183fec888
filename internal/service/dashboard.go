package service

import (
	"context"
	"time"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/models"
)

type TemplateUsage struct {
	TemplateName string `json:"template_name"`
	Count        int64  `json:"count"`
}

type RecentMessage struct {
	ID           uint         `json:"id"`
	MessageID    *string      `json:"message_id"`
	TemplateName string       `json:"template_name"`
	Recipient    string       `json:"recipient"`
	State        models.State `json:"state"`
	CreateDate   time.Time    `json:"create_date"`
}

type MonthlyStat struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

type DashboardData struct {
	StateCounts    map[models.State]int64 `json:"state_counts"`
	TemplateUsage  []TemplateUsage        `json:"template_usage"`
	RecentMessages []RecentMessage        `json:"recent_messages"`
	MonthlyStats   []MonthlyStat          `json:"monthly_stats"`
	TotalMessages  int64                  `json:"total_messages"`
}

// Dashboard aggregates the company's message history.
func (s *Service) Dashboard(ctx context.Context, env auth.Env) (*DashboardData, error) {
	db := s.db.WithContext(ctx)
	out := &DashboardData{
		StateCounts:    make(map[models.State]int64),
		TemplateUsage:  []TemplateUsage{},
		RecentMessages: []RecentMessage{},
		MonthlyStats:   []MonthlyStat{},
	}

	for _, st := range models.States {
		var n int64
		err := db.Model(&models.History{}).
			Where("company_id = ? AND state = ?", env.CompanyID, st).
			Count(&n).Error
		if err != nil {
			return nil, err
		}
		out.StateCounts[st] = n
		out.TotalMessages += n
	}

	err := db.Model(&models.History{}).
		Select("zns_templates.name AS template_name, COUNT(zns_histories.id) AS count").
		Joins("JOIN zns_templates ON zns_templates.id = zns_histories.template_id").
		Where("zns_histories.company_id = ?", env.CompanyID).
		Group("zns_templates.id, zns_templates.name").
		Order("zns_templates.id").
		Scan(&out.TemplateUsage).Error
	if err != nil {
		return nil, err
	}

	var recent []models.History
	err = db.Preload("Template").Preload("Partner").
		Where("company_id = ?", env.CompanyID).
		Order("created_at desc, id desc").
		Limit(10).
		Find(&recent).Error
	if err != nil {
		return nil, err
	}
	for _, h := range recent {
		rm := RecentMessage{
			ID:           h.ID,
			MessageID:    h.MessageID,
			TemplateName: "Unknown",
			Recipient:    h.Phone,
			State:        h.State,
			CreateDate:   h.CreatedAt,
		}
		if h.Template != nil {
			rm.TemplateName = h.Template.Name
		}
		if h.Partner != nil {
			rm.Recipient = h.Partner.Name
		}
		out.RecentMessages = append(out.RecentMessages, rm)
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for i := 5; i >= 0; i-- {
		start := addMonths(today, -i)
		end := addMonths(today, -i+1)
		var n int64
		err := db.Model(&models.History{}).
			Where("company_id = ? AND created_at >= ? AND created_at < ?", env.CompanyID, start, end).
			Count(&n).Error
		if err != nil {
			return nil, err
		}
		out.MonthlyStats = append(out.MonthlyStats, MonthlyStat{Month: start.Format("January 2006"), Count: n})
	}
	return out, nil
}

// addMonths shifts t by n calendar months, clamping the day to the target
// month's length (Jan 31 + 1 month = Feb 28).
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	last := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
