package api

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"zns-gateway/internal/middleware"
	"zns-gateway/internal/models"
	"zns-gateway/internal/service"
)

// ContactHandler manages the partners messages are sent to.
type ContactHandler struct {
	Svc *service.Service
}

func NewContactHandler(svc *service.Service) *ContactHandler {
	return &ContactHandler{Svc: svc}
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	partners, err := h.Svc.ListPartners(c.Request.Context(), middleware.Env(c), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}

	// Return empty array instead of null
	if partners == nil {
		partners = []models.Partner{}
	}

	c.JSON(http.StatusOK, partners)
}

func (h *ContactHandler) GetContact(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.Svc.GetPartner(c.Request.Context(), middleware.Env(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req service.PartnerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.Svc.CreatePartner(c.Request.Context(), middleware.Env(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.PartnerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.Svc.UpdatePartner(c.Request.Context(), middleware.Env(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ContactHandler) DeleteContact(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Svc.DeletePartner(c.Request.Context(), middleware.Env(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Contact deleted"})
}

func (h *ContactHandler) ExportContacts(c *gin.Context) {
	partners, err := h.Svc.ListPartners(c.Request.Context(), middleware.Env(c), "")
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"ID", "Name", "Zalo Phone", "Opt-in", "Created At"})
	for _, p := range partners {
		_ = w.Write([]string{
			strconv.FormatUint(uint64(p.ID), 10),
			p.Name,
			p.MessagingPhone(),
			strconv.FormatBool(p.ZaloOptIn),
			p.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	w.Flush()
}
