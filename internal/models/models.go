package models

import (
	"fmt"
	"time"
)

const DefaultBaseURL = "https://zns.bom.asia/api"

// Template types as reported by BOM
const (
	TemplateTransaction = "transaction"
	TemplateOTP         = "otp"
	TemplatePromotion   = "promotion"
)

// Parameter types for a Variant
const (
	ParamText     = "text"
	ParamNumber   = "number"
	ParamDate     = "date"
	ParamCurrency = "currency"
	ParamURL      = "url"
)

// Source models a Variant can pull its value from
const (
	ModelPartner   = "res.partner"
	ModelSaleOrder = "sale.order"
	ModelInvoice   = "account.move"
	ModelLead      = "crm.lead"
	ModelCustom    = "custom"
)

// Config holds the BOM API credentials of one company
type Config struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CompanyID    uint       `gorm:"index;not null" json:"company_id"`
	Name         string     `gorm:"type:varchar(255);not null;default:'BOM ZNS Configuration'" json:"name"`
	APIKey       string     `gorm:"type:varchar(255);not null" json:"api_key"`
	APISecret    string     `gorm:"type:varchar(255);not null" json:"-"`
	BaseURL      string     `gorm:"type:varchar(255);not null" json:"base_url"`
	Active       bool       `gorm:"default:true" json:"active"`
	DebugMode    bool       `gorm:"default:false" json:"debug_mode"`
	ZaloOAID     string     `gorm:"type:varchar(255)" json:"zalo_oa_id"`
	ZaloOAName   string     `gorm:"type:varchar(255)" json:"zalo_oa_name"`
	LastSyncDate *time.Time `json:"last_sync_date"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Config) TableName() string {
	return "zns_configs"
}

// Template is a remote ZNS template known locally by its code
type Template struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CompanyID       uint      `gorm:"uniqueIndex:idx_template_code_company;not null" json:"company_id"`
	ConfigID        *uint     `gorm:"index" json:"config_id"`
	Name            string    `gorm:"type:varchar(255);not null" json:"name"`
	TemplateCode    string    `gorm:"type:varchar(255);uniqueIndex:idx_template_code_company;not null" json:"template_code"`
	Description     string    `gorm:"type:text" json:"description"`
	Active          bool      `gorm:"default:true" json:"active"`
	TemplateType    string    `gorm:"type:varchar(20);not null;default:'transaction'" json:"template_type"`
	TemplateContent string    `gorm:"type:text" json:"template_content"`
	TemplateJSON    string    `gorm:"type:text" json:"template_json"`
	Variants        []Variant `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE;" json:"variants,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Template) TableName() string {
	return "zns_templates"
}

// Variant binds one template parameter to a value source and a format
type Variant struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	TemplateID        uint   `gorm:"uniqueIndex:idx_param_name_template;not null" json:"template_id"`
	Name              string `gorm:"type:varchar(255);not null" json:"name"`
	ParamName         string `gorm:"type:varchar(255);uniqueIndex:idx_param_name_template;not null" json:"param_name"`
	Description       string `gorm:"type:text" json:"description"`
	Active            bool   `gorm:"default:true" json:"active"`
	Sequence          int    `gorm:"default:10" json:"sequence"`
	ParamType         string `gorm:"type:varchar(20);not null;default:'text'" json:"param_type"`
	Required          bool   `gorm:"default:false" json:"required"`
	DefaultValue      string `gorm:"type:varchar(255)" json:"default_value"`
	FieldModel        string `gorm:"type:varchar(50);default:'custom'" json:"field_model"`
	FieldName         string `gorm:"type:varchar(255)" json:"field_name"`
	FieldFormat       string `gorm:"type:varchar(255)" json:"field_format"`
	DecimalPlaces     int    `gorm:"default:2" json:"decimal_places"`
	ThousandSeparator bool   `gorm:"default:true" json:"thousand_separator"`
	DateFormat        string `gorm:"type:varchar(50);default:'%d/%m/%Y'" json:"date_format"`
	CurrencySymbol    string `gorm:"type:varchar(10);default:'₫'" json:"currency_symbol"`
	CurrencyPosition  string `gorm:"type:varchar(10);default:'before'" json:"currency_position"`
}

func (Variant) TableName() string {
	return "zns_variants"
}

// History is the audit row of one send attempt
type History struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	MessageID        *string    `gorm:"type:varchar(255);index" json:"message_id"`
	TemplateID       *uint      `gorm:"index" json:"template_id"`
	Template         *Template  `gorm:"foreignKey:TemplateID;constraint:OnDelete:SET NULL;" json:"template,omitempty"`
	PartnerID        *uint      `gorm:"index" json:"partner_id"`
	Partner          *Partner   `gorm:"foreignKey:PartnerID;constraint:OnDelete:SET NULL;" json:"partner,omitempty"`
	CompanyID        uint       `gorm:"index;not null" json:"company_id"`
	ConfigID         *uint      `json:"config_id"`
	UserID           uint       `json:"user_id"`
	Model            string     `gorm:"type:varchar(50);index:idx_history_document" json:"model"`
	ResID            uint       `gorm:"index:idx_history_document" json:"res_id"`
	Phone            string     `gorm:"type:varchar(50)" json:"phone"`
	TemplateCode     string     `gorm:"type:varchar(255)" json:"template_code"`
	MessageParams    string     `gorm:"type:text" json:"message_params"`
	MessageContent   string     `gorm:"type:text" json:"message_content"`
	State            State      `gorm:"type:varchar(20);index;not null;default:'draft'" json:"state"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message"`
	DeliveryDate     *time.Time `json:"delivery_date"`
	ReadDate         *time.Time `json:"read_date"`
	IsTest           bool       `gorm:"default:false" json:"is_test"`
	BomResponse      string     `gorm:"type:text" json:"bom_response"`
	RequestData      string     `gorm:"type:text" json:"request_data"`
	DebugInformation string     `gorm:"type:text" json:"debug_information"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (History) TableName() string {
	return "zns_histories"
}

// RemoteID returns the BOM message id or "" when the send was never accepted.
func (h *History) RemoteID() string {
	if h.MessageID == nil {
		return ""
	}
	return *h.MessageID
}

// DisplayName renders "message_id (template) - partner".
func (h *History) DisplayName() string {
	name := h.RemoteID()
	if name == "" {
		name = "New Message"
	}
	if h.Template != nil {
		name = fmt.Sprintf("%s (%s)", name, h.Template.Name)
	}
	if h.Partner != nil {
		name = fmt.Sprintf("%s - %s", name, h.Partner.Name)
	}
	return name
}

// Partner is a recipient contact with its Zalo messaging preferences
type Partner struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CompanyID     uint       `gorm:"index;not null" json:"company_id"`
	Name          string     `gorm:"type:varchar(255);not null" json:"name"`
	Email         string     `gorm:"type:varchar(255)" json:"email"`
	Phone         string     `gorm:"type:varchar(50)" json:"phone"`
	Mobile        string     `gorm:"type:varchar(50)" json:"mobile"`
	ZaloPhone     string     `gorm:"type:varchar(50)" json:"zalo_phone"`
	ZaloID        string     `gorm:"type:varchar(255)" json:"zalo_id"`
	ZaloOptIn     bool       `gorm:"default:false" json:"zalo_opt_in"`
	ZaloOptInDate *time.Time `json:"zalo_opt_in_date"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Partner) TableName() string {
	return "partners"
}

// MessagingPhone picks the Zalo phone, then mobile, then phone.
func (p *Partner) MessagingPhone() string {
	switch {
	case p.ZaloPhone != "":
		return p.ZaloPhone
	case p.Mobile != "":
		return p.Mobile
	default:
		return p.Phone
	}
}

// SetOptIn stamps the opt-in date the first time opt-in becomes true.
func (p *Partner) SetOptIn(optIn bool, now time.Time) {
	if optIn && !p.ZaloOptIn && p.ZaloOptInDate == nil {
		p.ZaloOptInDate = &now
	}
	p.ZaloOptIn = optIn
}

// SystemSetting is a per-company key/value parameter
type SystemSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID uint      `gorm:"uniqueIndex:idx_setting_company_key;not null" json:"company_id"`
	Key       string    `gorm:"type:varchar(100);uniqueIndex:idx_setting_company_key;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Config{},
		&Template{},
		&Variant{},
		&Partner{},
		&History{},
		&SystemSetting{},
		&Stage{},
		&Invoice{},
		&SaleOrder{},
		&Lead{},
	}
}
