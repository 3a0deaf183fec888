package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"zns-gateway/internal/hooks"
	"zns-gateway/internal/middleware"
	"zns-gateway/internal/service"
	"zns-gateway/internal/webhook"
	"zns-gateway/internal/ws"
)

// Deps is everything the router wires into handlers. Cache and Scheduler
// are optional.
type Deps struct {
	Svc       *service.Service
	Hooks     *hooks.Hooks
	Hub       *ws.Hub
	Cache     StatusLookup
	Scheduler SweepScheduler
	// SchedulerCompany is the company whose settings drive the sweep.
	SchedulerCompany uint
	JWTSecret        string
	Log              *logrus.Logger
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(d.Log), middleware.Metrics(), gin.Recovery(), cors())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhookHandler := webhook.NewHandler(d.Svc, d.Log)
	configHandler := NewConfigHandler(d.Svc)
	templateHandler := NewTemplateHandler(d.Svc)
	historyHandler := NewHistoryHandler(d.Svc, d.Cache)
	sendHandler := NewSendHandler(d.Svc)
	contactHandler := NewContactHandler(d.Svc)
	documentHandler := NewDocumentHandler(d.Svc, d.Hooks)
	settingsHandler := NewSettingsHandler(d.Svc, d.Scheduler, d.SchedulerCompany, d.Log)
	znsHandler := NewZNSHandler(d.Svc, d.Hub, d.Log)
	portalHandler := NewPortalHandler(d.Svc)

	authed := middleware.AuthRequired(d.JWTSecret)

	// BOM callbacks carry no token
	r.POST("/bom/zns/webhook", webhookHandler.HandleStatus)

	znsGroup := r.Group("/bom/zns", authed)
	{
		znsGroup.GET("/status/:message_id", znsHandler.CheckStatus)
		znsGroup.GET("/dashboard/data", znsHandler.DashboardData)
	}
	if d.Hub != nil {
		r.GET("/ws", authed, znsHandler.Live)
	}

	portal := r.Group("/my", authed, middleware.PartnerRequired())
	{
		portal.GET("/home", portalHandler.Home)
		portal.GET("/zns", portalHandler.List)
		portal.GET("/zns/:id", portalHandler.Get)
	}

	apiGroup := r.Group("/api", authed)
	{
		apiGroup.GET("/configs", configHandler.List)
		apiGroup.POST("/configs", configHandler.Create)
		apiGroup.GET("/configs/:id", configHandler.Get)
		apiGroup.PUT("/configs/:id", configHandler.Update)
		apiGroup.DELETE("/configs/:id", configHandler.Delete)
		apiGroup.POST("/configs/:id/test-connection", configHandler.TestConnection)
		apiGroup.POST("/configs/:id/sync-oa", configHandler.SyncOA)

		apiGroup.GET("/templates", templateHandler.List)
		apiGroup.POST("/templates", templateHandler.Create)
		apiGroup.GET("/templates/:id", templateHandler.Get)
		apiGroup.PUT("/templates/:id", templateHandler.Update)
		apiGroup.DELETE("/templates/:id", templateHandler.Delete)
		apiGroup.POST("/templates/:id/sync", templateHandler.Sync)
		apiGroup.GET("/templates/:id/prefill", templateHandler.Prefill)
		apiGroup.GET("/templates/:id/variants", templateHandler.ListVariants)
		apiGroup.POST("/templates/:id/variants", templateHandler.AddVariant)
		apiGroup.PUT("/templates/:id/variants/:variantId", templateHandler.UpdateVariant)
		apiGroup.DELETE("/templates/:id/variants/:variantId", templateHandler.DeleteVariant)

		apiGroup.GET("/history", historyHandler.List)
		apiGroup.GET("/history/:id", historyHandler.Get)
		apiGroup.GET("/history/:id/related", historyHandler.Related)
		apiGroup.POST("/history/:id/retry", historyHandler.Retry)
		apiGroup.POST("/history/:id/mark/:state", historyHandler.Mark)
		apiGroup.POST("/history/:id/check", historyHandler.Check)
		apiGroup.GET("/messages/:message_id", historyHandler.ByMessage)

		apiGroup.POST("/send", sendHandler.Send)
		apiGroup.POST("/send/raw", sendHandler.SendRaw)

		apiGroup.GET("/contacts", contactHandler.GetContacts)
		apiGroup.POST("/contacts", contactHandler.CreateContact)
		apiGroup.GET("/contacts/export", contactHandler.ExportContacts)
		apiGroup.GET("/contacts/:id", contactHandler.GetContact)
		apiGroup.PUT("/contacts/:id", contactHandler.UpdateContact)
		apiGroup.DELETE("/contacts/:id", contactHandler.DeleteContact)

		apiGroup.GET("/settings", settingsHandler.Get)
		apiGroup.PUT("/settings", settingsHandler.Update)
		if d.Scheduler != nil {
			apiGroup.GET("/scheduler", settingsHandler.SchedulerStatus)
			apiGroup.POST("/scheduler/start", settingsHandler.StartScheduler)
			apiGroup.POST("/scheduler/stop", settingsHandler.StopScheduler)
		}

		apiGroup.POST("/invoices", documentHandler.CreateInvoice)
		apiGroup.GET("/invoices/:id", documentHandler.GetInvoice)
		apiGroup.POST("/invoices/:id/post", documentHandler.PostInvoice)
		apiGroup.POST("/sale-orders", documentHandler.CreateSaleOrder)
		apiGroup.GET("/sale-orders/:id", documentHandler.GetSaleOrder)
		apiGroup.POST("/sale-orders/:id/confirm", documentHandler.ConfirmSaleOrder)
		apiGroup.GET("/stages", documentHandler.ListStages)
		apiGroup.POST("/stages", documentHandler.CreateStage)
		apiGroup.POST("/leads", documentHandler.CreateLead)
		apiGroup.GET("/leads/:id", documentHandler.GetLead)
		apiGroup.PUT("/leads/:id/stage", documentHandler.ChangeLeadStage)
	}

	return r
}
