package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"exclusivelink/internal/services"
)

const testAppSecret = "app-secret"

func newWebhookRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	svc := services.NewWebhookService(nil, nil, nil, testAppSecret, "verify-token", logger)
	handler := NewWebhookHandler(svc, logger)

	r := gin.New()
	RegisterWebhookRoutes(r.Group("/webhooks"), handler)
	return r
}

func signPayload(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testAppSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler_HandshakeOK(t *testing.T) {
	r := newWebhookRouter(t)

	q := url.Values{}
	q.Set("hub.mode", "subscribe")
	q.Set("hub.verify_token", "verify-token")
	q.Set("hub.challenge", "challenge-123")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/instagram?"+q.Encode(), nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "challenge-123" {
		t.Errorf("challenge must be echoed verbatim, got %q", w.Body.String())
	}
}

func TestWebhookHandler_HandshakeRejected(t *testing.T) {
	r := newWebhookRouter(t)

	for _, q := range []string{
		"hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=c",
		"hub.mode=unsubscribe&hub.verify_token=verify-token&hub.challenge=c",
		"",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/instagram?"+q, nil))
		if w.Code != http.StatusForbidden {
			t.Errorf("query %q: status = %d, want 403", q, w.Code)
		}
	}
}

func TestWebhookHandler_BadSignature(t *testing.T) {
	r := newWebhookRouter(t)
	body := []byte(`{"entry":[]}`)

	// 缺头
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body)))
	if w.Code != http.StatusForbidden {
		t.Errorf("missing signature: status = %d, want 403", w.Code)
	}

	// 错签名
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256="+strings.Repeat("00", 32))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("wrong signature: status = %d, want 403", w.Code)
	}
}

func TestWebhookHandler_ValidDeliveryAlways200(t *testing.T) {
	r := newWebhookRouter(t)

	// 空投递
	body := []byte(`{"entry":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signPayload(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":true`) {
		t.Errorf("body = %s", w.Body.String())
	}

	// 验签通过但 body 不是合法 JSON：仍然 200，success:false
	body = []byte("{broken")
	req = httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signPayload(body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("malformed body: status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":false`) {
		t.Errorf("malformed body should flag failure, got %s", w.Body.String())
	}
}
