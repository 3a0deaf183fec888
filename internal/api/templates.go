package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zns-gateway/internal/middleware"
	"zns-gateway/internal/models"
	"zns-gateway/internal/service"
)

type TemplateHandler struct {
	Svc *service.Service
}

func NewTemplateHandler(svc *service.Service) *TemplateHandler {
	return &TemplateHandler{Svc: svc}
}

// TemplateRequest is the create/update body. A nil Active keeps the base
// value: true for new templates, the stored value on update.
type TemplateRequest struct {
	Name            string           `json:"name"`
	TemplateCode    string           `json:"template_code"`
	Description     string           `json:"description"`
	Active          *bool            `json:"active"`
	TemplateType    string           `json:"template_type"`
	TemplateContent string           `json:"template_content"`
	ConfigID        *uint            `json:"config_id"`
	Variants        []VariantRequest `json:"variants"`
}

func (r TemplateRequest) apply(base models.Template) models.Template {
	base.Name = r.Name
	base.TemplateCode = r.TemplateCode
	base.Description = r.Description
	base.TemplateContent = r.TemplateContent
	if r.TemplateType != "" {
		base.TemplateType = r.TemplateType
	}
	if r.ConfigID != nil {
		base.ConfigID = r.ConfigID
	}
	if r.Active != nil {
		base.Active = *r.Active
	}
	return base
}

// VariantRequest mirrors models.Variant with pointers for the fields whose
// zero value differs from the default.
type VariantRequest struct {
	Name              string `json:"name"`
	ParamName         string `json:"param_name"`
	Description       string `json:"description"`
	Active            *bool  `json:"active"`
	Sequence          *int   `json:"sequence"`
	ParamType         string `json:"param_type"`
	Required          bool   `json:"required"`
	DefaultValue      string `json:"default_value"`
	FieldModel        string `json:"field_model"`
	FieldName         string `json:"field_name"`
	FieldFormat       string `json:"field_format"`
	DecimalPlaces     *int   `json:"decimal_places"`
	ThousandSeparator *bool  `json:"thousand_separator"`
	DateFormat        string `json:"date_format"`
	CurrencySymbol    string `json:"currency_symbol"`
	CurrencyPosition  string `json:"currency_position"`
}

func newVariant() models.Variant {
	return models.Variant{Active: true, Sequence: 10, DecimalPlaces: 2, ThousandSeparator: true}
}

func (r VariantRequest) apply(base models.Variant) models.Variant {
	base.Name = r.Name
	base.ParamName = r.ParamName
	base.Description = r.Description
	base.ParamType = r.ParamType
	base.Required = r.Required
	base.DefaultValue = r.DefaultValue
	base.FieldModel = r.FieldModel
	base.FieldName = r.FieldName
	base.FieldFormat = r.FieldFormat
	base.DateFormat = r.DateFormat
	base.CurrencySymbol = r.CurrencySymbol
	base.CurrencyPosition = r.CurrencyPosition
	if r.Active != nil {
		base.Active = *r.Active
	}
	if r.Sequence != nil {
		base.Sequence = *r.Sequence
	}
	if r.DecimalPlaces != nil {
		base.DecimalPlaces = *r.DecimalPlaces
	}
	if r.ThousandSeparator != nil {
		base.ThousandSeparator = *r.ThousandSeparator
	}
	return base
}

// List returns the company's templates; ?active=true limits it to selectable ones.
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.Svc.ListTemplates(c.Request.Context(), middleware.Env(c), c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	if templates == nil {
		templates = []models.Template{}
	}
	c.JSON(http.StatusOK, templates)
}

func (h *TemplateHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tpl, err := h.Svc.GetTemplate(c.Request.Context(), middleware.Env(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *TemplateHandler) Create(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tpl := req.apply(models.Template{Active: true})
	for _, v := range req.Variants {
		tpl.Variants = append(tpl.Variants, v.apply(newVariant()))
	}
	if err := h.Svc.CreateTemplate(c.Request.Context(), middleware.Env(c), &tpl); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *TemplateHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	env := middleware.Env(c)
	current, err := h.Svc.GetTemplate(c.Request.Context(), env, id)
	if err != nil {
		respondError(c, err)
		return
	}
	tpl, err := h.Svc.UpdateTemplate(c.Request.Context(), env, id, req.apply(*current))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *TemplateHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Svc.DeleteTemplate(c.Request.Context(), middleware.Env(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Template deleted"})
}

// Sync refreshes the template and its parameters from BOM.
func (h *TemplateHandler) Sync(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tpl, err := h.Svc.SyncTemplate(c.Request.Context(), middleware.Env(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// Prefill suggests wizard values for ?model=&res_id=&partner_id=.
func (h *TemplateHandler) Prefill(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pre, err := h.Svc.Prefill(c.Request.Context(), middleware.Env(c), id,
		c.Query("model"), queryUint(c, "res_id"), queryUint(c, "partner_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pre)
}

func (h *TemplateHandler) ListVariants(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	variants, err := h.Svc.ListVariants(c.Request.Context(), middleware.Env(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if variants == nil {
		variants = []models.Variant{}
	}
	c.JSON(http.StatusOK, variants)
}

func (h *TemplateHandler) AddVariant(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req VariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v := req.apply(newVariant())
	if err := h.Svc.AddVariant(c.Request.Context(), middleware.Env(c), id, &v); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *TemplateHandler) UpdateVariant(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	variantID, ok := paramID(c, "variantId")
	if !ok {
		return
	}
	var req VariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	env := middleware.Env(c)
	current, err := h.Svc.GetVariant(c.Request.Context(), env, id, variantID)
	if err != nil {
		respondError(c, err)
		return
	}
	v, err := h.Svc.UpdateVariant(c.Request.Context(), env, id, variantID, req.apply(*current))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *TemplateHandler) DeleteVariant(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	variantID, ok := paramID(c, "variantId")
	if !ok {
		return
	}
	if err := h.Svc.DeleteVariant(c.Request.Context(), middleware.Env(c), id, variantID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Variant deleted"})
}
