package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/bom"
	"zns-gateway/internal/database"
	"zns-gateway/internal/models"
	"zns-gateway/internal/settings"
)

var testEnv = auth.Env{CompanyID: 1, UserID: 7}

// fakeBOM answers the BOM endpoints with canned responses.
type fakeBOM struct {
	mu         sync.Mutex
	sendCode   int
	sendBody   string
	statusCode int
	statuses   map[string]string
	templates  map[string]string
	sends      []bom.SendTemplateRequest
	checks     []string
}

func (f *fakeBOM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/send-template":
		var req bom.SendTemplateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.sends = append(f.sends, req)
		w.WriteHeader(f.sendCode)
		_, _ = w.Write([]byte(f.sendBody))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/status/"):
		id := strings.TrimPrefix(r.URL.Path, "/status/")
		f.checks = append(f.checks, id)
		code := f.statusCode
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(f.statuses[id]))
	case r.Method == http.MethodGet && r.URL.Path == "/status":
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/zalo-oa-info":
		_, _ = w.Write([]byte(`{"oa_id":"oa-42","oa_name":"BOM Shop"}`))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/template/"):
		body, ok := f.templates[strings.TrimPrefix(r.URL.Path, "/template/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Template not found"}`))
			return
		}
		_, _ = w.Write([]byte(body))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBOM) setSend(code int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCode, f.sendBody = code, body
}

func (f *fakeBOM) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type recordingListener struct {
	mu     sync.Mutex
	states []models.State
}

func (l *recordingListener) HistoryChanged(_ context.Context, h *models.History) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, h.State)
}

type fixture struct {
	svc    *Service
	bom    *fakeBOM
	server *httptest.Server
	config *models.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	fake := &fakeBOM{
		sendCode:  http.StatusOK,
		sendBody:  `{"status":"success","message_id":"msg-1","content":"Hello"}`,
		statuses:  map[string]string{},
		templates: map[string]string{},
	}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	svc := New(db, bom.NewClient(5*time.Second, log), settings.NewStore(db), log)
	return &fixture{svc: svc, bom: fake, server: server}
}

func (f *fixture) withConfig(t *testing.T) *fixture {
	t.Helper()
	cfg := &models.Config{APIKey: "key", APISecret: "secret", BaseURL: f.server.URL, Active: true}
	require.NoError(t, f.svc.SaveConfig(context.Background(), testEnv, cfg))
	f.config = cfg
	return f
}

func (f *fixture) template(t *testing.T, code string, variants ...models.Variant) *models.Template {
	t.Helper()
	tpl := &models.Template{Name: "Template " + code, TemplateCode: code, Active: true, Variants: variants}
	require.NoError(t, f.svc.CreateTemplate(context.Background(), testEnv, tpl))
	return tpl
}

func (f *fixture) partner(t *testing.T, optIn bool) *models.Partner {
	t.Helper()
	p := &models.Partner{CompanyID: testEnv.CompanyID, Name: "Nguyen Van A", Mobile: "+84901234567", ZaloOptIn: optIn}
	require.NoError(t, f.svc.DB().Create(p).Error)
	if !optIn {
		require.NoError(t, f.svc.DB().Model(p).Update("zalo_opt_in", false).Error)
	}
	return p
}

func (f *fixture) histories(t *testing.T) []models.History {
	t.Helper()
	var rows []models.History
	require.NoError(t, f.svc.DB().Order("id").Find(&rows).Error)
	return rows
}

func (f *fixture) insertHistory(t *testing.T, h models.History) *models.History {
	t.Helper()
	if h.CompanyID == 0 {
		h.CompanyID = testEnv.CompanyID
	}
	require.NoError(t, f.svc.DB().Create(&h).Error)
	return &h
}

func strPtr(s string) *string { return &s }
