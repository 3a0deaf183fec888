package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zns-gateway/internal/database"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	return NewStore(db)
}

func TestStore_Defaults(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	v := s.Load(ctx, 1)
	assert.True(t, v.AutoCheck)
	assert.Equal(t, 60, v.CheckInterval)
	assert.False(t, v.SafeEval)
	assert.False(t, v.AutoSendInvoice)
	assert.Zero(t, v.InvoiceTemplateID)
}

func TestStore_SetOverwrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, 1, AutoSendSO, "true"))
	require.NoError(t, s.Set(ctx, 1, AutoSendSO, "false"))
	assert.False(t, s.Bool(ctx, 1, AutoSendSO))

	require.NoError(t, s.Set(ctx, 2, AutoSendSO, "true"))
	assert.True(t, s.Bool(ctx, 2, AutoSendSO))
	assert.False(t, s.Bool(ctx, 1, AutoSendSO))
}

func TestStore_SaveRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in := Values{
		AutoSendInvoice:   true,
		InvoiceTemplateID: 3,
		AutoSendCRM:       true,
		CRMTemplateID:     4,
		AutoCheck:         false,
		CheckInterval:     15,
		SafeEval:          true,
	}
	require.NoError(t, s.Save(ctx, 1, in))
	assert.Equal(t, in, s.Load(ctx, 1))

	in.CheckInterval = 0
	require.NoError(t, s.Save(ctx, 1, in))
	assert.Equal(t, 60, s.Load(ctx, 1).CheckInterval)
}
