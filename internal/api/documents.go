package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zns-gateway/internal/hooks"
	"zns-gateway/internal/middleware"
	"zns-gateway/internal/models"
	"zns-gateway/internal/service"
)

// DocumentHandler exposes the business documents that trigger automatic
// messages. State changes run through the hooks.
type DocumentHandler struct {
	Svc   *service.Service
	Hooks *hooks.Hooks
}

func NewDocumentHandler(svc *service.Service, h *hooks.Hooks) *DocumentHandler {
	return &DocumentHandler{Svc: svc, Hooks: h}
}

func outcomeJSON(out hooks.Outcome) gin.H {
	body := gin.H{"sent": out.Sent()}
	if out.Skipped != "" {
		body["skipped"] = out.Skipped
	}
	if out.Result != nil {
		body["result"] = out.Result
	}
	return body
}

func (h *DocumentHandler) get(c *gin.Context, model string) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	doc, err := h.Svc.LoadDocument(c.Request.Context(), middleware.Env(c), model, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) GetInvoice(c *gin.Context)   { h.get(c, models.ModelInvoice) }
func (h *DocumentHandler) GetSaleOrder(c *gin.Context) { h.get(c, models.ModelSaleOrder) }
func (h *DocumentHandler) GetLead(c *gin.Context)      { h.get(c, models.ModelLead) }

func (h *DocumentHandler) CreateInvoice(c *gin.Context) {
	var inv models.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Svc.CreateInvoice(c.Request.Context(), middleware.Env(c), &inv); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *DocumentHandler) PostInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	inv, out, err := h.Hooks.PostInvoice(c.Request.Context(), middleware.Env(c), id)
	if err != nil && inv == nil {
		respondError(c, err)
		return
	}
	body := outcomeJSON(out)
	body["invoice"] = inv
	c.JSON(http.StatusOK, body)
}

func (h *DocumentHandler) CreateSaleOrder(c *gin.Context) {
	var so models.SaleOrder
	if err := c.ShouldBindJSON(&so); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Svc.CreateSaleOrder(c.Request.Context(), middleware.Env(c), &so); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, so)
}

func (h *DocumentHandler) ConfirmSaleOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	so, out, err := h.Hooks.ConfirmSaleOrder(c.Request.Context(), middleware.Env(c), id)
	if err != nil && so == nil {
		respondError(c, err)
		return
	}
	body := outcomeJSON(out)
	body["sale_order"] = so
	c.JSON(http.StatusOK, body)
}

func (h *DocumentHandler) ListStages(c *gin.Context) {
	stages, err := h.Svc.ListStages(c.Request.Context(), middleware.Env(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if stages == nil {
		stages = []models.Stage{}
	}
	c.JSON(http.StatusOK, stages)
}

func (h *DocumentHandler) CreateStage(c *gin.Context) {
	var st models.Stage
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Svc.CreateStage(c.Request.Context(), middleware.Env(c), &st); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *DocumentHandler) CreateLead(c *gin.Context) {
	var lead models.Lead
	if err := c.ShouldBindJSON(&lead); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Svc.CreateLead(c.Request.Context(), middleware.Env(c), &lead); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

type stageRequest struct {
	StageID uint `json:"stage_id" binding:"required"`
}

func (h *DocumentHandler) ChangeLeadStage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lead, out, err := h.Hooks.ChangeLeadStage(c.Request.Context(), middleware.Env(c), id, req.StageID)
	if err != nil && lead == nil {
		respondError(c, err)
		return
	}
	body := outcomeJSON(out)
	body["lead"] = lead
	c.JSON(http.StatusOK, body)
}
