package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"zns-gateway/internal/models"
)

func TestSend_Success(t *testing.T) {
	f := newFixture(t).withConfig(t)
	tpl := f.template(t, "ORDER_OK")
	listener := &recordingListener{}
	f.svc.AddListener(listener)

	res := f.svc.Send(context.Background(), testEnv, SendRequest{
		TemplateID: tpl.ID,
		Phone:      "+84901234567",
		Params:     map[string]string{"order": "SO001"},
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "msg-1", res.MessageID)
	assert.Empty(t, res.Error)

	rows := f.histories(t)
	require.Len(t, rows, 1)
	h := rows[0]
	assert.Equal(t, res.HistoryID, h.ID)
	assert.Equal(t, models.StateSent, h.State)
	assert.Equal(t, "msg-1", h.RemoteID())
	assert.Equal(t, "Hello", h.MessageContent)
	assert.Equal(t, "84901234567", h.Phone)
	assert.Equal(t, "ORDER_OK", h.TemplateCode)
	assert.Equal(t, f.config.ID, *h.ConfigID)
	assert.Equal(t, testEnv.UserID, h.UserID)
	assert.JSONEq(t, `{"order":"SO001"}`, h.MessageParams)
	assert.Contains(t, h.BomResponse, "msg-1")

	require.Equal(t, 1, f.bom.sendCount())
	assert.Equal(t, "84901234567", f.bom.sends[0].Phone)
	assert.Equal(t, "ORDER_OK", f.bom.sends[0].TemplateID)

	assert.Equal(t, []models.State{models.StateDraft, models.StateSent}, listener.states)
}

func TestSend_MissingMessageIDDefaultsToUnknown(t *testing.T) {
	f := newFixture(t).withConfig(t)
	tpl := f.template(t, "NO_ID")
	f.bom.setSend(http.StatusOK, `{"status":"success"}`)

	res := f.svc.Send(context.Background(), testEnv, SendRequest{TemplateID: tpl.ID, Phone: "0901"})

	require.True(t, res.Success)
	assert.Equal(t, "Unknown", res.MessageID)
}

func TestSend_RemoteRejection(t *testing.T) {
	f := newFixture(t).withConfig(t)
	tpl := f.template(t, "REJECT")
	f.bom.setSend(http.StatusBadRequest, `{"status":"error","message":"Invalid phone"}`)

	res := f.svc.Send(context.Background(), testEnv, SendRequest{TemplateID: tpl.ID, Phone: "123"})

	assert.False(t, res.Success)
	assert.Equal(t, "Invalid phone", res.Error)
	rows := f.histories(t)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StateFailed, rows[0].State)
	assert.Equal(t, "Invalid phone", rows[0].ErrorMessage)
	assert.Nil(t, rows[0].MessageID)
}

func TestSend_RejectionReportsUnsavedHistory(t *testing.T) {
	f := newFixture(t).withConfig(t)
	tpl := f.template(t, "UNSAVED")
	f.bom.setSend(http.StatusBadRequest, `{"status":"error","message":"Invalid phone"}`)
	err := f.svc.DB().Callback().Update().Before("gorm:update").Register("test:fail_update", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("disk full"))
	})
	require.NoError(t, err)

	res := f.svc.Send(context.Background(), testEnv, SendRequest{TemplateID: tpl.ID, Phone: "123"})

	assert.False(t, res.Success)
	assert.Equal(t, "Invalid phone (failed to save history: disk full)", res.Error)
	rows := f.histories(t)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StateDraft, rows[0].State)
}

func TestSend_SuccessStatusWithoutMessageIsUnknownError(t *testing.T) {
	f := newFixture(t).withConfig(t)
	tpl := f.template(t, "ODD")
	f.bom.setSend(http.StatusOK, `{"status":"queued"}`)

	res := f.svc.Send(context.Background(), testEnv, SendRequest{TemplateID: tpl.ID, Phone: "123"})

	assert.False(t, res.Success)
	assert.Equal(t, "Unknown error", res.Error)
}

func TestSend_UndecodableBody(t *testing.T) {
	f := newFixture(t).withConfig(t)
	tpl := f.template(t, "HTML")
	f.bom.setSend(http.StatusBadGateway, `<html>bad gateway</html>`)

	res := f.svc.Send(context.Background(), testEnv, SendRequest{TemplateID: tpl.ID, Phone: "123"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Error sending ZNS message:")
	rows := f.histories(t)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StateFailed, rows[0].State)
	assert.Equal(t, "<html>bad gateway</html>", rows[0].BomResponse)
}

func TestSend_TemplateNotFoundStillRecordsAttempt(t *testing.T) {
	f := newFixture(t).withConfig(t)

	res := f.svc.Send(context.Background(), testEnv, SendRequest{TemplateID: 999, Phone: "123"})

	assert.False(t, res.Success)
	assert.Equal(t, "Template not found.", res.Error)
	rows := f.histories(t)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StateDraft, rows[0].State)
	assert.Nil(t, rows[0].TemplateID)
	assert.Zero(t, f.bom.sendCount())
}

func TestSend_ConfigMissing(t *testing.T) {
	f := newFixture(t)
	tpl := f.template(t, "NOCFG")

	res := f.svc.Send(context.Background(), testEnv, SendRequest{TemplateID: tpl.ID, Phone: "123"})

	assert.False(t, res.Success)
	assert.Equal(t, "ZNS Configuration not found.", res.Error)
	rows := f.histories(t)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StateDraft, rows[0].State)
	assert.Equal(t, "ZNS Configuration not found.", rows[0].ErrorMessage)
	assert.NotEmpty(t, rows[0].RequestData)
	assert.Zero(t, f.bom.sendCount())
}

func TestSend_TransportError(t *testing.T) {
	f := newFixture(t).withConfig(t)
	tpl := f.template(t, "DOWN")
	f.server.Close()

	res := f.svc.Send(context.Background(), testEnv, SendRequest{TemplateID: tpl.ID, Phone: "123"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Error sending ZNS message:")
	rows := f.histories(t)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StateFailed, rows[0].State)
}

func TestSendManual_Validation(t *testing.T) {
	f := newFixture(t).withConfig(t)
	tpl := f.template(t, "WIZ", models.Variant{ParamName: "amount", ParamType: models.ParamText, Required: true, Active: true})
	ctx := context.Background()

	_, err := f.svc.SendManual(ctx, testEnv, ManualSend{})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Please select a template.", err.Error())

	_, err = f.svc.SendManual(ctx, testEnv, ManualSend{TemplateID: tpl.ID})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Please provide a phone number.", err.Error())

	_, err = f.svc.SendManual(ctx, testEnv, ManualSend{TemplateID: tpl.ID, Phone: "0901"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Please provide a value for required parameter: amount", err.Error())

	assert.Empty(t, f.histories(t))
	assert.Zero(t, f.bom.sendCount())
}

func TestSendManual_UsesPartnerPhoneAndDefaults(t *testing.T) {
	f := newFixture(t).withConfig(t)
	tpl := f.template(t, "WIZ2",
		models.Variant{ParamName: "name", Required: true, Active: true},
		models.Variant{ParamName: "shop", DefaultValue: "BOM Store", Active: true},
	)
	p := f.partner(t, true)

	res, err := f.svc.SendManual(context.Background(), testEnv, ManualSend{
		TemplateID: tpl.ID,
		PartnerID:  p.ID,
		Values:     map[string]string{"name": "Lan"},
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	require.Equal(t, 1, f.bom.sendCount())
	sent := f.bom.sends[0]
	assert.Equal(t, "84901234567", sent.Phone)
	assert.Equal(t, map[string]string{"name": "Lan", "shop": "BOM Store"}, sent.Params)
	assert.Equal(t, p.ID, *f.histories(t)[0].PartnerID)
}

func TestRetry_ReusesSameRow(t *testing.T) {
	f := newFixture(t).withConfig(t)
	tpl := f.template(t, "RETRY")
	ctx := context.Background()

	f.bom.setSend(http.StatusInternalServerError, `{"message":"Temporary outage"}`)
	first := f.svc.Send(ctx, testEnv, SendRequest{TemplateID: tpl.ID, Phone: "0901", Params: map[string]string{"a": "1"}})
	require.False(t, first.Success)

	f.bom.setSend(http.StatusInternalServerError, `{"message":"Still down"}`)
	second, err := f.svc.Retry(ctx, testEnv, first.HistoryID)
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, first.HistoryID, second.HistoryID)
	rows := f.histories(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "Still down", rows[0].ErrorMessage)
	assert.Equal(t, models.StateFailed, rows[0].State)

	f.bom.setSend(http.StatusOK, `{"status":"success","message_id":"msg-retry"}`)
	third, err := f.svc.Retry(ctx, testEnv, first.HistoryID)
	require.NoError(t, err)
	require.True(t, third.Success)
	assert.Equal(t, first.HistoryID, third.HistoryID)

	rows = f.histories(t)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StateSent, rows[0].State)
	assert.Equal(t, "msg-retry", rows[0].RemoteID())
	assert.Empty(t, rows[0].ErrorMessage)
	assert.Equal(t, map[string]string{"a": "1"}, f.bom.sends[2].Params)
}

func TestRetry_OnlyFailedRows(t *testing.T) {
	f := newFixture(t).withConfig(t)
	tpl := f.template(t, "R2")
	res := f.svc.Send(context.Background(), testEnv, SendRequest{TemplateID: tpl.ID, Phone: "0901"})
	require.True(t, res.Success)

	_, err := f.svc.Retry(context.Background(), testEnv, res.HistoryID)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.svc.Retry(context.Background(), testEnv, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}
