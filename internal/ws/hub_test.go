package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zns-gateway/internal/models"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		company, _ := strconv.Atoi(r.URL.Query().Get("company"))
		hub.ServeWs(w, r, uint(company))
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, company int) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?company=" + strconv.Itoa(company)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastsToCompanyClients(t *testing.T) {
	hub, srv := startHub(t)
	mine := dial(t, srv, 1)
	other := dial(t, srv, 2)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	messageID := "bom-1"
	hub.HistoryChanged(context.Background(), &models.History{
		ID:        5,
		CompanyID: 1,
		MessageID: &messageID,
		Phone:     "84901234567",
		State:     models.StateDelivered,
	})

	require.NoError(t, mine.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := mine.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Type string        `json:"type"`
		Data HistoryUpdate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, "history_update", ev.Type)
	assert.EqualValues(t, 5, ev.Data.ID)
	assert.Equal(t, "bom-1", ev.Data.MessageID)
	assert.Equal(t, models.StateDelivered, ev.Data.State)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, 1)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.BroadcastEvent(1, "history_update", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastEvent blocked without a running hub")
	}
}
