package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/models"
)

func TestCheck_Delivered(t *testing.T) {
	f := newFixture(t).withConfig(t)
	h := f.insertHistory(t, models.History{MessageID: strPtr("m-1"), State: models.StateSent, ConfigID: &f.config.ID})
	f.bom.statuses["m-1"] = `{"status":"delivered"}`

	res := f.svc.Check(context.Background(), testEnv, "m-1")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "delivered", res.Status)
	assert.Equal(t, h.ID, res.HistoryID)

	got, err := f.svc.GetHistory(context.Background(), testEnv, h.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDelivered, got.State)
	assert.NotNil(t, got.DeliveryDate)
	assert.JSONEq(t, `{"status":"delivered"}`, got.BomResponse)
}

func TestCheck_ReadKeepsDeliveryDate(t *testing.T) {
	f := newFixture(t).withConfig(t)
	delivered := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	h := f.insertHistory(t, models.History{MessageID: strPtr("m-2"), State: models.StateDelivered, DeliveryDate: &delivered})
	f.bom.statuses["m-2"] = `{"status":"read"}`

	res := f.svc.Check(context.Background(), testEnv, "m-2")
	require.True(t, res.Success, res.Error)

	got, err := f.svc.GetHistory(context.Background(), testEnv, h.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateRead, got.State)
	require.NotNil(t, got.ReadDate)
	require.NotNil(t, got.DeliveryDate)
	assert.True(t, got.DeliveryDate.Equal(delivered))
}

func TestCheck_ReadWithoutDeliveryStampsBoth(t *testing.T) {
	f := newFixture(t).withConfig(t)
	h := f.insertHistory(t, models.History{MessageID: strPtr("m-3"), State: models.StateSent})
	f.bom.statuses["m-3"] = `{"status":"read"}`

	require.True(t, f.svc.Check(context.Background(), testEnv, "m-3").Success)

	got, err := f.svc.GetHistory(context.Background(), testEnv, h.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeliveryDate)
	assert.NotNil(t, got.ReadDate)
}

func TestCheck_FailedUsesDefaultMessage(t *testing.T) {
	f := newFixture(t).withConfig(t)
	h := f.insertHistory(t, models.History{MessageID: strPtr("m-4"), State: models.StateSent})
	f.bom.statuses["m-4"] = `{"status":"failed"}`

	require.True(t, f.svc.Check(context.Background(), testEnv, "m-4").Success)

	got, err := f.svc.GetHistory(context.Background(), testEnv, h.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, got.State)
	assert.Equal(t, "Failed to deliver message", got.ErrorMessage)
}

func TestCheck_UnknownStatusLeavesState(t *testing.T) {
	f := newFixture(t).withConfig(t)
	h := f.insertHistory(t, models.History{MessageID: strPtr("m-5"), State: models.StateSent})
	f.bom.statuses["m-5"] = `{"status":"pending"}`

	res := f.svc.Check(context.Background(), testEnv, "m-5")
	require.True(t, res.Success)
	assert.Equal(t, "pending", res.Status)

	got, err := f.svc.GetHistory(context.Background(), testEnv, h.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateSent, got.State)
}

func TestCheck_Non200(t *testing.T) {
	f := newFixture(t).withConfig(t)
	h := f.insertHistory(t, models.History{MessageID: strPtr("m-6"), State: models.StateSent})
	f.bom.statusCode = http.StatusNotFound
	f.bom.statuses["m-6"] = `{"message":"Unknown message"}`

	res := f.svc.Check(context.Background(), testEnv, "m-6")

	assert.False(t, res.Success)
	assert.Equal(t, "Unknown message", res.Error)
	assert.Equal(t, h.ID, res.HistoryID)

	got, err := f.svc.GetHistory(context.Background(), testEnv, h.ID)
	require.NoError(t, err)
	assert.Equal(t, `{"message":"Unknown message"}`, got.BomResponse)
	assert.Equal(t, models.StateSent, got.State)
}

func TestCheck_NotFoundAndConfigMissing(t *testing.T) {
	f := newFixture(t)

	res := f.svc.Check(context.Background(), testEnv, "nope")
	assert.False(t, res.Success)
	assert.Equal(t, "Message not found in history.", res.Error)

	f.insertHistory(t, models.History{MessageID: strPtr("m-7"), State: models.StateSent})
	res = f.svc.Check(context.Background(), testEnv, "m-7")
	assert.False(t, res.Success)
	assert.Equal(t, "ZNS Configuration not found.", res.Error)
	assert.Zero(t, res.HistoryID)
}

func TestCheck_ScopedToCompany(t *testing.T) {
	f := newFixture(t).withConfig(t)
	f.insertHistory(t, models.History{CompanyID: 2, MessageID: strPtr("m-8"), State: models.StateSent})

	res := f.svc.Check(context.Background(), testEnv, "m-8")
	assert.Equal(t, "Message not found in history.", res.Error)
}

func TestSweep_OnlyRecentSentRows(t *testing.T) {
	f := newFixture(t).withConfig(t)
	now := time.Now()

	recent := f.insertHistory(t, models.History{MessageID: strPtr("recent"), State: models.StateSent, CreatedAt: now.Add(-time.Hour)})
	stale := f.insertHistory(t, models.History{MessageID: strPtr("stale"), State: models.StateSent, CreatedAt: now.Add(-25 * time.Hour)})
	f.insertHistory(t, models.History{State: models.StateSent, CreatedAt: now.Add(-time.Hour)})
	f.insertHistory(t, models.History{MessageID: strPtr("done"), State: models.StateDelivered, CreatedAt: now.Add(-time.Hour)})
	f.bom.statuses["recent"] = `{"status":"delivered"}`
	f.bom.statuses["stale"] = `{"status":"delivered"}`

	checked := f.svc.Sweep(context.Background())

	assert.Equal(t, 1, checked)
	assert.Equal(t, []string{"recent"}, f.bom.checks)

	got, err := f.svc.GetHistory(context.Background(), testEnv, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDelivered, got.State)

	got, err = f.svc.GetHistory(context.Background(), testEnv, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateSent, got.State)
}

func TestApplyWebhook(t *testing.T) {
	f := newFixture(t).withConfig(t)
	h := f.insertHistory(t, models.History{MessageID: strPtr("X"), State: models.StateSent})
	ctx := context.Background()

	assert.Equal(t, WebhookResult{"error", "No data received"}, f.svc.ApplyWebhook(ctx, nil))
	assert.Equal(t, WebhookResult{"error", "No message_id provided"}, f.svc.ApplyWebhook(ctx, map[string]any{"status": "read"}))
	assert.Equal(t, WebhookResult{"error", "No status provided"}, f.svc.ApplyWebhook(ctx, map[string]any{"message_id": "X"}))
	assert.Equal(t, WebhookResult{"error", "Message not found"},
		f.svc.ApplyWebhook(ctx, map[string]any{"message_id": "Y", "status": "delivered"}))

	res := f.svc.ApplyWebhook(ctx, map[string]any{"message_id": "X", "status": "delivered"})
	assert.Equal(t, WebhookResult{"success", "Status updated"}, res)

	got, err := f.svc.GetHistory(ctx, testEnv, h.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDelivered, got.State)
	assert.NotNil(t, got.DeliveryDate)
	assert.JSONEq(t, `{"message_id":"X","status":"delivered"}`, got.BomResponse)
}

func TestApplyWebhook_ReadIsTerminal(t *testing.T) {
	f := newFixture(t)
	h := f.insertHistory(t, models.History{MessageID: strPtr("R"), State: models.StateRead})

	res := f.svc.ApplyWebhook(context.Background(), map[string]any{"message_id": "R", "status": "failed", "message": "late"})
	assert.Equal(t, "success", res.Status)

	got, err := f.svc.GetHistory(context.Background(), testEnv, h.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateRead, got.State)
	assert.Empty(t, got.ErrorMessage)
}

func TestMarkState(t *testing.T) {
	f := newFixture(t)
	h := f.insertHistory(t, models.History{MessageID: strPtr("M"), State: models.StateSent})
	ctx := context.Background()

	got, err := f.svc.MarkState(ctx, testEnv, h.ID, models.StateRead, "")
	require.NoError(t, err)
	assert.Equal(t, models.StateRead, got.State)
	assert.NotNil(t, got.ReadDate)
	assert.Nil(t, got.DeliveryDate)

	_, err = f.svc.MarkState(ctx, testEnv, h.ID, models.StateSent, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.MarkState(ctx, auth.Env{CompanyID: 2}, h.ID, models.StateFailed, "")
	assert.ErrorIs(t, err, ErrNotFound)
}
