package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zns-gateway/internal/middleware"
	"zns-gateway/internal/models"
	"zns-gateway/internal/service"
)

type ConfigHandler struct {
	Svc *service.Service
}

func NewConfigHandler(svc *service.Service) *ConfigHandler {
	return &ConfigHandler{Svc: svc}
}

// ConfigRequest carries the secret, which models.Config never serialises.
type ConfigRequest struct {
	Name      string `json:"name"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	BaseURL   string `json:"base_url"`
	Active    *bool  `json:"active"`
	DebugMode bool   `json:"debug_mode"`
}

func (h *ConfigHandler) List(c *gin.Context) {
	configs, err := h.Svc.ListConfigs(c.Request.Context(), middleware.Env(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, configs)
}

func (h *ConfigHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cfg, err := h.Svc.GetConfig(c.Request.Context(), middleware.Env(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *ConfigHandler) Create(c *gin.Context) {
	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg := &models.Config{
		Name:      req.Name,
		APIKey:    req.APIKey,
		APISecret: req.APISecret,
		BaseURL:   req.BaseURL,
		Active:    req.Active == nil || *req.Active,
		DebugMode: req.DebugMode,
	}
	if err := h.Svc.SaveConfig(c.Request.Context(), middleware.Env(c), cfg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

// Update keeps the stored secret when the request leaves it empty.
func (h *ConfigHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	env := middleware.Env(c)
	cfg, err := h.Svc.GetConfig(c.Request.Context(), env, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.Name != "" {
		cfg.Name = req.Name
	}
	cfg.APIKey = req.APIKey
	if req.APISecret != "" {
		cfg.APISecret = req.APISecret
	}
	if req.BaseURL != "" {
		cfg.BaseURL = req.BaseURL
	}
	if req.Active != nil {
		cfg.Active = *req.Active
	}
	cfg.DebugMode = req.DebugMode
	if err := h.Svc.SaveConfig(c.Request.Context(), env, cfg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *ConfigHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Svc.DeleteConfig(c.Request.Context(), middleware.Env(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Configuration deleted"})
}

func (h *ConfigHandler) TestConnection(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	success, msg, err := h.Svc.TestConnection(c.Request.Context(), middleware.Env(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	kind := "success"
	if !success {
		kind = "danger"
	}
	c.JSON(http.StatusOK, gin.H{"success": success, "type": kind, "message": msg})
}

func (h *ConfigHandler) SyncOA(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cfg, err := h.Svc.SyncOAInfo(c.Request.Context(), middleware.Env(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
