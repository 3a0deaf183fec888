package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"zns-gateway/internal/cache"
	"zns-gateway/internal/middleware"
	"zns-gateway/internal/models"
	"zns-gateway/internal/service"
)

// StatusLookup reads the cached delivery state of a BOM message.
type StatusLookup interface {
	LookupStatus(ctx context.Context, messageID string) (*cache.Status, bool, error)
}

type HistoryHandler struct {
	Svc   *service.Service
	Cache StatusLookup
}

func NewHistoryHandler(svc *service.Service, statuses StatusLookup) *HistoryHandler {
	return &HistoryHandler{Svc: svc, Cache: statuses}
}

func (h *HistoryHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, total, err := h.Svc.ListHistory(c.Request.Context(), middleware.Env(c), service.HistoryFilter{
		State:      c.Query("state"),
		TemplateID: queryUint(c, "template_id"),
		PartnerID:  queryUint(c, "partner_id"),
		Model:      c.Query("model"),
		ResID:      queryUint(c, "res_id"),
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []models.History{}
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": total, "page": page})
}

func (h *HistoryHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	row, err := h.Svc.GetHistory(c.Request.Context(), middleware.Env(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": row.DisplayName(), "history": row})
}

// ByMessage answers from the status cache when it holds the message, and
// from the database otherwise.
func (h *HistoryHandler) ByMessage(c *gin.Context) {
	env := middleware.Env(c)
	messageID := c.Param("message_id")

	if h.Cache != nil {
		st, found, err := h.Cache.LookupStatus(c.Request.Context(), messageID)
		if err == nil && found && st.CompanyID == env.CompanyID {
			c.JSON(http.StatusOK, gin.H{"source": "cache", "status": st})
			return
		}
	}

	row, err := h.Svc.FindByMessageID(c.Request.Context(), env.CompanyID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": "database", "status": cache.Status{
		HistoryID:    row.ID,
		CompanyID:    row.CompanyID,
		State:        row.State,
		ErrorMessage: row.ErrorMessage,
		DeliveryDate: row.DeliveryDate,
		ReadDate:     row.ReadDate,
		UpdatedAt:    row.UpdatedAt,
	}})
}

func (h *HistoryHandler) Retry(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.Svc.Retry(c.Request.Context(), middleware.Env(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type markRequest struct {
	ErrorMessage string `json:"error_message"`
}

// Mark applies a manual state action: /api/history/:id/mark/:state.
func (h *HistoryHandler) Mark(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	state, known := models.ParseState(c.Param("state"))
	if !known || state == models.StateDraft {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown state " + c.Param("state")})
		return
	}
	var req markRequest
	_ = c.ShouldBindJSON(&req)

	row, err := h.Svc.MarkState(c.Request.Context(), middleware.Env(c), id, state, req.ErrorMessage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// Check polls BOM for the row's message status.
func (h *HistoryHandler) Check(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	env := middleware.Env(c)
	row, err := h.Svc.GetHistory(c.Request.Context(), env, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if row.RemoteID() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message has not been accepted by BOM yet"})
		return
	}
	c.JSON(http.StatusOK, h.Svc.Check(c.Request.Context(), env, row.RemoteID()))
}

// Related returns the business document the message was sent for.
func (h *HistoryHandler) Related(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rec, err := h.Svc.RelatedDocument(c.Request.Context(), middleware.Env(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
