// Package settings stores per-company ZNS runtime parameters in the
// system_settings table.
package settings

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"zns-gateway/internal/models"
)

const (
	AutoSendInvoice   = "auto_send_invoice"
	InvoiceTemplateID = "invoice_template_id"
	AutoSendSO        = "auto_send_so"
	SOTemplateID      = "so_template_id"
	AutoSendCRM       = "auto_send_crm"
	CRMTemplateID     = "crm_template_id"
	AutoCheck         = "auto_check"
	CheckInterval     = "check_interval"
	SafeEval          = "safe_eval"
)

var defaults = map[string]string{
	AutoCheck:     "true",
	CheckInterval: "60",
	SafeEval:      "false",
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the raw value for key, falling back to the built-in default.
func (s *Store) Get(ctx context.Context, companyID uint, key string) (string, error) {
	var row models.SystemSetting
	err := s.db.WithContext(ctx).Where("company_id = ? AND key = ?", companyID, key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaults[key], nil
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

func (s *Store) Bool(ctx context.Context, companyID uint, key string) bool {
	v, err := s.Get(ctx, companyID, key)
	if err != nil {
		return false
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}

// Int returns 0 when the value is unset or not a number.
func (s *Store) Int(ctx context.Context, companyID uint, key string) int {
	v, err := s.Get(ctx, companyID, key)
	if err != nil {
		return 0
	}
	i, _ := strconv.Atoi(strings.TrimSpace(v))
	return i
}

func (s *Store) Set(ctx context.Context, companyID uint, key, value string) error {
	row := models.SystemSetting{CompanyID: companyID, Key: key, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// Values is the settings surface of one company.
type Values struct {
	AutoSendInvoice   bool `json:"auto_send_invoice"`
	InvoiceTemplateID uint `json:"invoice_template_id"`
	AutoSendSO        bool `json:"auto_send_so"`
	SOTemplateID      uint `json:"so_template_id"`
	AutoSendCRM       bool `json:"auto_send_crm"`
	CRMTemplateID     uint `json:"crm_template_id"`
	AutoCheck         bool `json:"auto_check"`
	CheckInterval     int  `json:"check_interval"`
	SafeEval          bool `json:"safe_eval"`
}

func (s *Store) Load(ctx context.Context, companyID uint) Values {
	return Values{
		AutoSendInvoice:   s.Bool(ctx, companyID, AutoSendInvoice),
		InvoiceTemplateID: uint(s.Int(ctx, companyID, InvoiceTemplateID)),
		AutoSendSO:        s.Bool(ctx, companyID, AutoSendSO),
		SOTemplateID:      uint(s.Int(ctx, companyID, SOTemplateID)),
		AutoSendCRM:       s.Bool(ctx, companyID, AutoSendCRM),
		CRMTemplateID:     uint(s.Int(ctx, companyID, CRMTemplateID)),
		AutoCheck:         s.Bool(ctx, companyID, AutoCheck),
		CheckInterval:     s.Int(ctx, companyID, CheckInterval),
		SafeEval:          s.Bool(ctx, companyID, SafeEval),
	}
}

func (s *Store) Save(ctx context.Context, companyID uint, v Values) error {
	if v.CheckInterval <= 0 {
		v.CheckInterval = 60
	}
	pairs := map[string]string{
		AutoSendInvoice:   strconv.FormatBool(v.AutoSendInvoice),
		InvoiceTemplateID: idString(v.InvoiceTemplateID),
		AutoSendSO:        strconv.FormatBool(v.AutoSendSO),
		SOTemplateID:      idString(v.SOTemplateID),
		AutoSendCRM:       strconv.FormatBool(v.AutoSendCRM),
		CRMTemplateID:     idString(v.CRMTemplateID),
		AutoCheck:         strconv.FormatBool(v.AutoCheck),
		CheckInterval:     strconv.Itoa(v.CheckInterval),
		SafeEval:          strconv.FormatBool(v.SafeEval),
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := &Store{db: tx}
		for k, val := range pairs {
			if err := txStore.Set(ctx, companyID, k, val); err != nil {
				return err
			}
		}
		return nil
	})
}

func idString(id uint) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(id), 10)
}
