package hooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/bom"
	"zns-gateway/internal/database"
	"zns-gateway/internal/models"
	"zns-gateway/internal/service"
	"zns-gateway/internal/settings"
)

var env = auth.Env{CompanyID: 1, UserID: 1}

type fakeSender struct {
	mu    sync.Mutex
	code  int
	calls []bom.SendTemplateRequest
}

func (f *fakeSender) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var req bom.SendTemplateRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.calls = append(f.calls, req)
	w.WriteHeader(f.code)
	if f.code == http.StatusOK {
		_, _ = w.Write([]byte(`{"status":"success","message_id":"auto-1"}`))
		return
	}
	_, _ = w.Write([]byte(`{"message":"rejected"}`))
}

type suite struct {
	hooks   *Hooks
	svc     *service.Service
	sender  *fakeSender
	tpl     *models.Template
	partner *models.Partner
}

func setup(t *testing.T) *suite {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	sender := &fakeSender{code: http.StatusOK}
	server := httptest.NewServer(sender)
	t.Cleanup(server.Close)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	store := settings.NewStore(db)
	svc := service.New(db, bom.NewClient(5*time.Second, log), store, log)
	ctx := context.Background()

	require.NoError(t, svc.SaveConfig(ctx, env, &models.Config{APIKey: "k", APISecret: "s", BaseURL: server.URL, Active: true}))
	tpl := &models.Template{Name: "Invoice posted", TemplateCode: "INV_POSTED", Active: true, Variants: []models.Variant{
		{ParamName: "invoice", FieldModel: models.ModelInvoice, FieldName: "name", Active: true},
		{ParamName: "customer", FieldModel: models.ModelPartner, FieldName: "partner_id.name", Active: true},
		{ParamName: "total", ParamType: models.ParamCurrency, FieldModel: models.ModelInvoice, FieldName: "amount_total", CurrencySymbol: "₫", CurrencyPosition: "after", DecimalPlaces: 2, Active: true},
	}}
	require.NoError(t, svc.CreateTemplate(ctx, env, tpl))

	partner := &models.Partner{CompanyID: 1, Name: "Tran Thi B", ZaloPhone: "+84911111111", ZaloOptIn: true}
	require.NoError(t, db.Create(partner).Error)

	for k, v := range map[string]string{
		settings.AutoSendInvoice:   "true",
		settings.InvoiceTemplateID: "1",
		settings.AutoSendSO:        "true",
		settings.SOTemplateID:      "1",
		settings.AutoSendCRM:       "true",
		settings.CRMTemplateID:     "1",
	} {
		require.NoError(t, store.Set(ctx, 1, k, v))
	}
	require.EqualValues(t, 1, tpl.ID)

	return &suite{hooks: New(svc, log), svc: svc, sender: sender, tpl: tpl, partner: partner}
}

func (s *suite) invoice(t *testing.T, moveType string) *models.Invoice {
	t.Helper()
	inv := &models.Invoice{CompanyID: 1, Name: "INV/001", MoveType: moveType, AmountTotal: 250000, PartnerID: &s.partner.ID}
	require.NoError(t, s.svc.DB().Create(inv).Error)
	return inv
}

func (s *suite) historyCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.svc.DB().Model(&models.History{}).Count(&n).Error)
	return n
}

func TestPostInvoice_SendsOnce(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	inv := s.invoice(t, "out_invoice")

	got, out, err := s.hooks.PostInvoice(ctx, env, inv.ID)
	require.NoError(t, err)
	require.True(t, out.Sent(), out.Skipped)
	assert.Equal(t, "posted", got.State)
	assert.True(t, got.ZnsSent)

	require.Len(t, s.sender.calls, 1)
	call := s.sender.calls[0]
	assert.Equal(t, "84911111111", call.Phone)
	assert.Equal(t, "INV_POSTED", call.TemplateID)
	assert.Equal(t, map[string]string{
		"invoice":  "INV/001",
		"customer": "Tran Thi B",
		"total":    "250 000.00₫",
	}, call.Params)

	var h models.History
	require.NoError(t, s.svc.DB().First(&h).Error)
	assert.Equal(t, models.ModelInvoice, h.Model)
	assert.Equal(t, inv.ID, h.ResID)
	assert.Equal(t, s.partner.ID, *h.PartnerID)

	out, err = s.hooks.InvoicePosted(ctx, env, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, SkipAlreadySent, out.Skipped)
	assert.Len(t, s.sender.calls, 1)

	_, _, err = s.hooks.PostInvoice(ctx, env, inv.ID)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestInvoicePosted_SkipsVendorBills(t *testing.T) {
	s := setup(t)
	inv := s.invoice(t, "in_invoice")

	_, out, err := s.hooks.PostInvoice(context.Background(), env, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, SkipNotEligible, out.Skipped)
	assert.Zero(t, s.historyCount(t))
}

func TestInvoicePosted_FailedSendReleasesClaim(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	inv := s.invoice(t, "out_invoice")
	s.sender.code = http.StatusBadRequest

	got, out, err := s.hooks.PostInvoice(ctx, env, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.False(t, out.Sent())
	assert.Equal(t, "rejected", out.Result.Error)
	assert.False(t, got.ZnsSent)

	s.sender.code = http.StatusOK
	out, err = s.hooks.InvoicePosted(ctx, env, inv.ID)
	require.NoError(t, err)
	assert.True(t, out.Sent())
	assert.EqualValues(t, 2, s.historyCount(t))
}

func TestFire_SkipReasons(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		s := setup(t)
		require.NoError(t, s.svc.Settings().Set(ctx, 1, settings.AutoSendInvoice, "false"))
		inv := s.invoice(t, "out_invoice")
		_, out, err := s.hooks.PostInvoice(ctx, env, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, SkipDisabled, out.Skipped)
	})

	t.Run("unknown template", func(t *testing.T) {
		s := setup(t)
		require.NoError(t, s.svc.Settings().Set(ctx, 1, settings.InvoiceTemplateID, "99"))
		inv := s.invoice(t, "out_invoice")
		_, out, err := s.hooks.PostInvoice(ctx, env, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, SkipNoTemplate, out.Skipped)
	})

	t.Run("archived template", func(t *testing.T) {
		s := setup(t)
		require.NoError(t, s.svc.DB().Model(s.tpl).Update("active", false).Error)
		inv := s.invoice(t, "out_invoice")
		got, out, err := s.hooks.PostInvoice(ctx, env, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, SkipArchived, out.Skipped)
		assert.False(t, got.ZnsSent)
		assert.Empty(t, s.sender.calls)
	})

	t.Run("not opted in", func(t *testing.T) {
		s := setup(t)
		require.NoError(t, s.svc.DB().Model(s.partner).Update("zalo_opt_in", false).Error)
		inv := s.invoice(t, "out_invoice")
		_, out, err := s.hooks.PostInvoice(ctx, env, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, SkipNoOptIn, out.Skipped)
	})

	t.Run("no phone", func(t *testing.T) {
		s := setup(t)
		require.NoError(t, s.svc.DB().Model(s.partner).Update("zalo_phone", "").Error)
		inv := s.invoice(t, "out_invoice")
		_, out, err := s.hooks.PostInvoice(ctx, env, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, SkipNoPhone, out.Skipped)
	})

	t.Run("no partner", func(t *testing.T) {
		s := setup(t)
		inv := &models.Invoice{CompanyID: 1, Name: "INV/002", MoveType: "out_invoice"}
		require.NoError(t, s.svc.DB().Create(inv).Error)
		_, out, err := s.hooks.PostInvoice(ctx, env, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, SkipNoPartner, out.Skipped)
	})
}

func TestConfirmSaleOrder(t *testing.T) {
	s := setup(t)
	so := &models.SaleOrder{CompanyID: 1, Name: "S00012", PartnerID: &s.partner.ID}
	require.NoError(t, s.svc.DB().Create(so).Error)

	got, out, err := s.hooks.ConfirmSaleOrder(context.Background(), env, so.ID)
	require.NoError(t, err)
	assert.True(t, out.Sent())
	assert.Equal(t, "sale", got.State)
	assert.True(t, got.ZnsSent)
}

func TestChangeLeadStage_OnlyIntoWon(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	db := s.svc.DB()

	newStage := &models.Stage{CompanyID: 1, Name: "New"}
	won := &models.Stage{CompanyID: 1, Name: "Won", IsWon: true}
	alsoWon := &models.Stage{CompanyID: 1, Name: "Won (archived)", IsWon: true}
	require.NoError(t, db.Create(newStage).Error)
	require.NoError(t, db.Create(won).Error)
	require.NoError(t, db.Create(alsoWon).Error)

	lead := &models.Lead{CompanyID: 1, Name: "Big deal", StageID: &newStage.ID, PartnerID: &s.partner.ID}
	require.NoError(t, db.Create(lead).Error)

	_, out, err := s.hooks.ChangeLeadStage(ctx, env, lead.ID, newStage.ID)
	require.NoError(t, err)
	assert.Equal(t, SkipNotEligible, out.Skipped)

	got, out, err := s.hooks.ChangeLeadStage(ctx, env, lead.ID, won.ID)
	require.NoError(t, err)
	assert.True(t, out.Sent())
	assert.Equal(t, won.ID, *got.StageID)

	require.NoError(t, db.Model(lead).Update("zns_sent", false).Error)
	_, out, err = s.hooks.ChangeLeadStage(ctx, env, lead.ID, alsoWon.ID)
	require.NoError(t, err)
	assert.Equal(t, SkipNotEligible, out.Skipped)
	assert.Len(t, s.sender.calls, 1)
}

func TestClaim_SingleWinner(t *testing.T) {
	s := setup(t)
	inv := s.invoice(t, "out_invoice")
	ctx := context.Background()

	first, err := s.hooks.claim(ctx, inv)
	require.NoError(t, err)
	second, err := s.hooks.claim(ctx, inv)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}
