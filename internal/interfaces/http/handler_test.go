package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"revenda_bot/internal/entities"
	"revenda_bot/internal/interfaces"
	"revenda_bot/internal/repository"
	"revenda_bot/internal/usecases"
)

const testSecret = "diag-secret"

type fakeConversations struct {
	mu       sync.Mutex
	received []entities.InboundMessage
	outcome  usecases.Outcome
	panicMsg string
}

func (f *fakeConversations) Handle(_ context.Context, msg entities.InboundMessage) usecases.Outcome {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, msg)
	return f.outcome
}

type fakeProvider struct {
	state    string
	stateErr error
	sent     []any
}

func (p *fakeProvider) Send(_ context.Context, endpoint, instance string, payload any) (interfaces.ProviderResponse, error) {
	p.sent = append(p.sent, payload)
	return interfaces.ProviderResponse{StatusCode: 201, Body: `{"key":{"id":"1"}}`}, nil
}

func (p *fakeProvider) ConnectionState(_ context.Context, instance string) (string, interfaces.ProviderResponse, error) {
	if p.stateErr != nil {
		return "", interfaces.ProviderResponse{StatusCode: 404}, p.stateErr
	}
	return p.state, interfaces.ProviderResponse{StatusCode: 200}, nil
}

func (p *fakeProvider) SendPresence(context.Context, string, string, time.Duration) error {
	return nil
}

type fakeUsage struct{}

func (fakeUsage) History(_ context.Context, tenantID string, days int, now time.Time) ([]repository.DailyUsage, error) {
	return []repository.DailyUsage{{Date: now.Truncate(24 * time.Hour), MessagesSent: 3, MessagesReceived: 5}}, nil
}

func newTestRouter(conv *fakeConversations, provider *fakeProvider) (*gin.Engine, *Middleware) {
	gin.SetMode(gin.TestMode)
	mw := NewMiddleware(testSecret)
	h := NewHandler(conv, provider, fakeUsage{}, mw, "http://evo.local", "supersecretkey", zerolog.Nop())
	r := gin.New()
	SetupRoutes(r, h, RouteOptions{
		CORSOrigins:  []string{"*"},
		MaxBodyBytes: 1 << 20,
		RateLimit:    rate.Inf,
		RateBurst:    1,
	})
	return r, mw
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func body(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

const upsert = `{"event":"messages.upsert","instance":"seller_abc","data":{"key":{"remoteJid":"5511999999999@s.whatsapp.net","id":"M1"},"message":{"conversation":"1"}}}`

func TestReceive_InvalidJSON(t *testing.T) {
	r, _ := newTestRouter(&fakeConversations{}, &fakeProvider{})

	w := do(r, http.MethodPost, "/webhook", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", body(t, w)["status"])
}

func TestReceive_DispatchesMessage(t *testing.T) {
	conv := &fakeConversations{outcome: usecases.Outcome{Status: "responded", Instance: "seller_abc", Source: "flow", Endpoint: "sendText"}}
	r, _ := newTestRouter(conv, &fakeProvider{})

	w := do(r, http.MethodPost, "/webhook", upsert)
	require.Equal(t, http.StatusOK, w.Code)
	resp := body(t, w)
	assert.Equal(t, "responded", resp["status"])
	assert.Equal(t, "flow", resp["source"])
	assert.NotEmpty(t, resp["trace_id"])

	require.Len(t, conv.received, 1)
	msg := conv.received[0]
	assert.Equal(t, "5511999999999", msg.Phone)
	assert.Equal(t, "1", msg.Text)
	assert.Equal(t, resp["trace_id"], msg.TraceID)
}

func TestReceive_EventSuffixRoute(t *testing.T) {
	conv := &fakeConversations{outcome: usecases.Outcome{Status: "ignored", Reason: "cooldown"}}
	r, _ := newTestRouter(conv, &fakeProvider{})

	payload := `{"instance":"seller_abc","data":{"key":{"remoteJid":"5511999999999@s.whatsapp.net"},"message":{"conversation":"oi"}}}`
	w := do(r, http.MethodPost, "/webhook/messages-upsert", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cooldown", body(t, w)["reason"])
	assert.Len(t, conv.received, 1)

	w = do(r, http.MethodPost, "/webhook/connection-update", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ignored", body(t, w)["status"])
	assert.Len(t, conv.received, 1)
}

func TestReceive_NotFoundIsOK(t *testing.T) {
	conv := &fakeConversations{outcome: usecases.Outcome{Status: "not_found", Instance: "seller_abc"}}
	r, _ := newTestRouter(conv, &fakeProvider{})

	w := do(r, http.MethodPost, "/webhook", upsert)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not_found", body(t, w)["status"])
}

func TestReceive_PanicRecovered(t *testing.T) {
	r, _ := newTestRouter(&fakeConversations{panicMsg: "boom"}, &fakeProvider{})

	w := do(r, http.MethodPost, "/webhook", upsert)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := body(t, w)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "internal error", resp["message"])
}

func TestDiagnostics_PingMasksSecrets(t *testing.T) {
	r, _ := newTestRouter(&fakeConversations{}, &fakeProvider{})

	w := do(r, http.MethodGet, "/webhook", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := body(t, w)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "su******ey", resp["api_key"])
	assert.NotContains(t, w.Body.String(), "supersecretkey")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestDiagnostics_RequiresToken(t *testing.T) {
	r, mw := newTestRouter(&fakeConversations{}, &fakeProvider{state: "open"})

	w := do(r, http.MethodGet, "/webhook?test=connection&instance=seller_abc", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := NewMiddleware("another-secret")
	forged, err := other.IssueDiagnosticToken(time.Minute)
	require.NoError(t, err)
	w = do(r, http.MethodGet, "/webhook?test=connection&instance=seller_abc&token="+forged, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := mw.IssueDiagnosticToken(time.Minute)
	require.NoError(t, err)
	w = do(r, http.MethodGet, "/webhook?test=connection&instance=seller_abc&token="+token, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := body(t, w)
	assert.Equal(t, "open", resp["state"])
	assert.Equal(t, true, resp["connected"])
}

func TestDiagnostics_ConnectionError(t *testing.T) {
	r, mw := newTestRouter(&fakeConversations{}, &fakeProvider{stateErr: errors.New("instance not found")})
	token, err := mw.IssueDiagnosticToken(time.Minute)
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/webhook?test=connection&instance=ghost&token="+token, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := body(t, w)
	assert.Equal(t, "error", resp["status"])
	assert.EqualValues(t, 404, resp["http_status"])
}

func TestDiagnostics_SendAndQR(t *testing.T) {
	provider := &fakeProvider{}
	r, mw := newTestRouter(&fakeConversations{}, provider)
	token, err := mw.IssueDiagnosticToken(time.Minute)
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/webhook?test=send&instance=seller_abc&phone=11999999999&token="+token, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := body(t, w)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "5511999999999", resp["phone"])
	require.Len(t, provider.sent, 1)

	w = do(r, http.MethodGet, "/webhook?test=qr&phone=5511999999999&text=oi&token="+token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "https://wa.me/5511999999999?text=oi", w.Header().Get("X-WA-Link"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))
}

func TestDiagnostics_DisabledWithoutSecret(t *testing.T) {
	mw := NewMiddleware("")
	_, err := mw.IssueDiagnosticToken(time.Minute)
	assert.Error(t, err)
	assert.Error(t, mw.VerifyDiagnosticToken("anything"))
}

func TestRateLimitPerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw := NewMiddleware(testSecret)
	r := gin.New()
	r.Use(mw.RateLimitPerClient(rate.Every(time.Hour), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/", "").Code)
}

func TestDiagnostics_Usage(t *testing.T) {
	r, mw := newTestRouter(&fakeConversations{}, &fakeProvider{})
	token, err := mw.IssueDiagnosticToken(time.Minute)
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/webhook?test=usage&tenant=t1&days=3&token="+token, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := body(t, w)
	assert.EqualValues(t, 3, resp["days"])
	usage := resp["usage"].([]any)
	require.Len(t, usage, 1)
	assert.EqualValues(t, 3, usage[0].(map[string]any)["messages_sent"])

	w = do(r, http.MethodGet, "/webhook?test=usage&token="+token, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
