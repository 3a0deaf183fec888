package models

import "time"

// Document is a business record that can trigger a ZNS message.
type Document interface {
	DocumentModel() string
	DocumentID() uint
	Recipient() *Partner
	// Record exposes the document's fields, with related records nested, for
	// parameter resolution.
	Record() map[string]any
}

// Invoice mirrors the host's account.move
type Invoice struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CompanyID   uint       `gorm:"index;not null" json:"company_id"`
	Name        string     `gorm:"type:varchar(255)" json:"name"`
	MoveType    string     `gorm:"type:varchar(30);default:'out_invoice'" json:"move_type"`
	State       string     `gorm:"type:varchar(20);default:'draft'" json:"state"`
	AmountTotal float64    `json:"amount_total"`
	InvoiceDate *time.Time `json:"invoice_date"`
	PartnerID   *uint      `gorm:"index" json:"partner_id"`
	Partner     *Partner   `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	ZnsSent     bool       `gorm:"default:false" json:"zns_sent"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Invoice) TableName() string {
	return "account_moves"
}

func (i *Invoice) DocumentModel() string { return ModelInvoice }
func (i *Invoice) DocumentID() uint      { return i.ID }
func (i *Invoice) Recipient() *Partner   { return i.Partner }

func (i *Invoice) Record() map[string]any {
	return map[string]any{
		"id":           i.ID,
		"name":         i.Name,
		"move_type":    i.MoveType,
		"state":        i.State,
		"amount_total": i.AmountTotal,
		"invoice_date": timeValue(i.InvoiceDate),
		"partner_id":   partnerRecord(i.Partner),
	}
}

// SaleOrder mirrors the host's sale.order
type SaleOrder struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CompanyID   uint       `gorm:"index;not null" json:"company_id"`
	Name        string     `gorm:"type:varchar(255)" json:"name"`
	State       string     `gorm:"type:varchar(20);default:'draft'" json:"state"`
	AmountTotal float64    `json:"amount_total"`
	DateOrder   *time.Time `json:"date_order"`
	PartnerID   *uint      `gorm:"index" json:"partner_id"`
	Partner     *Partner   `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	ZnsSent     bool       `gorm:"default:false" json:"zns_sent"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (SaleOrder) TableName() string {
	return "sale_orders"
}

func (o *SaleOrder) DocumentModel() string { return ModelSaleOrder }
func (o *SaleOrder) DocumentID() uint      { return o.ID }
func (o *SaleOrder) Recipient() *Partner   { return o.Partner }

func (o *SaleOrder) Record() map[string]any {
	return map[string]any{
		"id":           o.ID,
		"name":         o.Name,
		"state":        o.State,
		"amount_total": o.AmountTotal,
		"date_order":   timeValue(o.DateOrder),
		"partner_id":   partnerRecord(o.Partner),
	}
}

// Stage is a CRM pipeline stage
type Stage struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	CompanyID uint   `gorm:"index;not null" json:"company_id"`
	Name      string `gorm:"type:varchar(255);not null" json:"name"`
	IsWon     bool   `gorm:"default:false" json:"is_won"`
}

func (Stage) TableName() string {
	return "crm_stages"
}

// Lead mirrors the host's crm.lead
type Lead struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CompanyID       uint      `gorm:"index;not null" json:"company_id"`
	Name            string    `gorm:"type:varchar(255)" json:"name"`
	ExpectedRevenue float64   `json:"expected_revenue"`
	StageID         *uint     `gorm:"index" json:"stage_id"`
	Stage           *Stage    `gorm:"foreignKey:StageID" json:"stage,omitempty"`
	PartnerID       *uint     `gorm:"index" json:"partner_id"`
	Partner         *Partner  `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	ZnsSent         bool      `gorm:"default:false" json:"zns_sent"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Lead) TableName() string {
	return "crm_leads"
}

func (l *Lead) DocumentModel() string { return ModelLead }
func (l *Lead) DocumentID() uint      { return l.ID }
func (l *Lead) Recipient() *Partner   { return l.Partner }

func (l *Lead) Record() map[string]any {
	var stage map[string]any
	if l.Stage != nil {
		stage = map[string]any{"id": l.Stage.ID, "name": l.Stage.Name, "is_won": l.Stage.IsWon}
	}
	return map[string]any{
		"id":               l.ID,
		"name":             l.Name,
		"expected_revenue": l.ExpectedRevenue,
		"stage_id":         stage,
		"partner_id":       partnerRecord(l.Partner),
	}
}

// Record exposes a partner for parameter resolution.
func (p *Partner) Record() map[string]any {
	return partnerRecord(p)
}

func partnerRecord(p *Partner) map[string]any {
	if p == nil {
		return nil
	}
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"email":       p.Email,
		"phone":       p.Phone,
		"mobile":      p.Mobile,
		"zalo_phone":  p.ZaloPhone,
		"zalo_id":     p.ZaloID,
		"zalo_opt_in": p.ZaloOptIn,
	}
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
