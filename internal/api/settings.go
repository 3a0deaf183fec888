package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zns-gateway/internal/middleware"
	"zns-gateway/internal/service"
)

// SweepScheduler drives the periodic status sweep.
type SweepScheduler interface {
	Start() bool
	Stop() bool
	Reset(interval time.Duration) error
	IsRunning() bool
	Interval() time.Duration
}

type SettingsHandler struct {
	Svc       *service.Service
	Scheduler SweepScheduler
	// SchedulerCompany owns the sweep's auto_check and check_interval settings.
	SchedulerCompany uint
	Log              *logrus.Logger
}

func NewSettingsHandler(svc *service.Service, sched SweepScheduler, companyID uint, log *logrus.Logger) *SettingsHandler {
	return &SettingsHandler{Svc: svc, Scheduler: sched, SchedulerCompany: companyID, Log: log}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.Svc.LoadSettings(c.Request.Context(), middleware.Env(c)))
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var form service.SettingsForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	env := middleware.Env(c)
	saved, err := h.Svc.SaveSettings(c.Request.Context(), env, form)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.Scheduler != nil && env.CompanyID == h.SchedulerCompany {
		h.reschedule(saved.AutoCheck, saved.CheckInterval)
	}
	c.JSON(http.StatusOK, saved)
}

// reschedule applies the sweep settings; check_interval is in minutes.
func (h *SettingsHandler) reschedule(autoCheck bool, minutes int) {
	if !autoCheck {
		if h.Scheduler.Stop() {
			h.Log.Info("status sweep stopped")
		}
		return
	}
	if minutes <= 0 {
		minutes = 60
	}
	interval := time.Duration(minutes) * time.Minute
	if interval != h.Scheduler.Interval() {
		if err := h.Scheduler.Reset(interval); err != nil {
			h.Log.WithError(err).Warn("failed to reset sweep interval")
		}
	}
	if h.Scheduler.Start() {
		h.Log.WithField("interval", interval).Info("status sweep started")
	}
}

func (h *SettingsHandler) schedulerStatus() gin.H {
	return gin.H{
		"running":          h.Scheduler.IsRunning(),
		"interval_minutes": int(h.Scheduler.Interval() / time.Minute),
	}
}

func (h *SettingsHandler) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.schedulerStatus())
}

func (h *SettingsHandler) StartScheduler(c *gin.Context) {
	h.Scheduler.Start()
	c.JSON(http.StatusOK, h.schedulerStatus())
}

func (h *SettingsHandler) StopScheduler(c *gin.Context) {
	h.Scheduler.Stop()
	c.JSON(http.StatusOK, h.schedulerStatus())
}
