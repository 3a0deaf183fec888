package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/bom"
	"zns-gateway/internal/metrics"
	"zns-gateway/internal/models"
	"zns-gateway/internal/settings"
)

func credentials(cfg *models.Config) bom.Credentials {
	return bom.Credentials{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Debug:     cfg.DebugMode,
	}
}

// ActiveConfig returns the company's single active configuration.
func (s *Service) ActiveConfig(ctx context.Context, companyID uint) (*models.Config, error) {
	var cfg models.Config
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND active = ?", companyID, true).
		Order("id").
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConfigMissing
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// configFor resolves the template's own config, else the company's active one.
func (s *Service) configFor(ctx context.Context, companyID uint, configID *uint) (*models.Config, error) {
	if configID != nil {
		var cfg models.Config
		err := s.db.WithContext(ctx).First(&cfg, *configID).Error
		if err == nil {
			return &cfg, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return s.ActiveConfig(ctx, companyID)
}

func (s *Service) ListConfigs(ctx context.Context, env auth.Env) ([]models.Config, error) {
	var configs []models.Config
	err := s.db.WithContext(ctx).Where("company_id = ?", env.CompanyID).Order("id").Find(&configs).Error
	return configs, err
}

func (s *Service) GetConfig(ctx context.Context, env auth.Env, id uint) (*models.Config, error) {
	var cfg models.Config
	err := s.db.WithContext(ctx).Where("company_id = ?", env.CompanyID).First(&cfg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("configuration")
	}
	return &cfg, err
}

// SaveConfig creates or updates a configuration. Activating one deactivates
// every other configuration of the company.
func (s *Service) SaveConfig(ctx context.Context, env auth.Env, cfg *models.Config) error {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return validationError("API key and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = models.DefaultBaseURL
	}
	if cfg.Name == "" {
		cfg.Name = "BOM ZNS Configuration"
	}
	cfg.CompanyID = env.CompanyID

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cfg.Active {
			q := tx.Model(&models.Config{}).Where("company_id = ? AND active = ?", env.CompanyID, true)
			if cfg.ID != 0 {
				q = q.Where("id <> ?", cfg.ID)
			}
			if err := q.Update("active", false).Error; err != nil {
				return err
			}
		}
		if cfg.ID == 0 {
			active, debug := cfg.Active, cfg.DebugMode
			if err := createWithZeroes(tx, cfg, map[string]any{"active": active, "debug_mode": debug}); err != nil {
				return err
			}
			cfg.Active, cfg.DebugMode = active, debug
			return nil
		}
		return tx.Save(cfg).Error
	})
}

func (s *Service) DeleteConfig(ctx context.Context, env auth.Env, id uint) error {
	res := s.db.WithContext(ctx).Where("company_id = ?", env.CompanyID).Delete(&models.Config{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("configuration")
	}
	return nil
}

// TestConnection probes GET /status. The returned message is meant for the
// operator either way.
func (s *Service) TestConnection(ctx context.Context, env auth.Env, id uint) (bool, string, error) {
	cfg, err := s.configOrActive(ctx, env, id)
	if err != nil {
		return false, "", err
	}

	start := time.Now()
	resp, err := s.bom.Ping(ctx, credentials(cfg))
	metrics.BOMRequestDuration.WithLabelValues("ping").Observe(time.Since(start).Seconds())
	if err != nil {
		msg := fmt.Sprintf("Connection test failed: %v", err)
		s.log.WithField("config_id", cfg.ID).Error(msg)
		return false, msg, nil
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("Connection test failed. Status code: %d. Response: %s", resp.StatusCode, resp.Text())
		s.log.WithField("config_id", cfg.ID).Error(msg)
		return false, msg, nil
	}
	return true, "Connection to BOM ZNS API successful!", nil
}

// SyncOAInfo pulls the Zalo OA id and name into the configuration.
func (s *Service) SyncOAInfo(ctx context.Context, env auth.Env, id uint) (*models.Config, error) {
	cfg, err := s.configOrActive(ctx, env, id)
	if err != nil {
		return nil, err
	}

	info, _, err := s.bom.OAInfo(ctx, credentials(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sync Zalo OA information: %v", ErrRemote, err)
	}

	now := s.now()
	cfg.ZaloOAID = info.OAID
	cfg.ZaloOAName = info.OAName
	cfg.LastSyncDate = &now
	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireConfig is the setup gate: it fails with ErrConfigMissing until the
// company has an active configuration.
func (s *Service) RequireConfig(ctx context.Context, env auth.Env) (*models.Config, error) {
	return s.ActiveConfig(ctx, env.CompanyID)
}

func (s *Service) configOrActive(ctx context.Context, env auth.Env, id uint) (*models.Config, error) {
	if id == 0 {
		return s.RequireConfig(ctx, env)
	}
	return s.GetConfig(ctx, env, id)
}

// SettingsForm is the settings surface: credentials of the active
// configuration plus the company's runtime toggles.
type SettingsForm struct {
	ConfigID  uint   `json:"config_id"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret,omitempty"`
	BaseURL   string `json:"base_url"`
	DebugMode bool   `json:"debug_mode"`
	settings.Values
}

func (s *Service) LoadSettings(ctx context.Context, env auth.Env) SettingsForm {
	form := SettingsForm{Values: s.settings.Load(ctx, env.CompanyID)}
	if cfg, err := s.ActiveConfig(ctx, env.CompanyID); err == nil {
		form.ConfigID = cfg.ID
		form.APIKey = cfg.APIKey
		form.BaseURL = cfg.BaseURL
		form.DebugMode = cfg.DebugMode
	}
	return form
}

// SaveSettings updates (or creates) the active configuration and stores the
// runtime toggles.
func (s *Service) SaveSettings(ctx context.Context, env auth.Env, form SettingsForm) (SettingsForm, error) {
	cfg, err := s.ActiveConfig(ctx, env.CompanyID)
	switch {
	case errors.Is(err, ErrConfigMissing):
		cfg = &models.Config{Name: "BOM ZNS Configuration", Active: true, BaseURL: models.DefaultBaseURL}
	case err != nil:
		return SettingsForm{}, err
	}

	cfg.APIKey = form.APIKey
	if form.APISecret != "" {
		cfg.APISecret = form.APISecret
	}
	if form.BaseURL != "" {
		cfg.BaseURL = form.BaseURL
	}
	cfg.DebugMode = form.DebugMode
	if err := s.SaveConfig(ctx, env, cfg); err != nil {
		return SettingsForm{}, err
	}

	if err := s.settings.Save(ctx, env.CompanyID, form.Values); err != nil {
		return SettingsForm{}, err
	}
	return s.LoadSettings(ctx, env), nil
}
