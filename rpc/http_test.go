package rpc

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"farmmarket/crypto"
	"farmmarket/native/market"
)

func TestClientSourcePrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	if source := clientSource(req); source != "10.0.0.5" {
		t.Fatalf("expected remote address, got %q", source)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if source := clientSource(req); source != "203.0.113.9" {
		t.Fatalf("expected first forwarded hop, got %q", source)
	}
}

func TestHealthzAndRequestID(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK || recorder.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response %d %q", recorder.Code, recorder.Body.String())
	}
	if recorder.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	recorder = httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, req)
	if got := recorder.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected caller request id to be echoed, got %q", got)
	}
}

func TestMalformedRequests(t *testing.T) {
	env := newTestEnv(t)

	recorder, resp := env.post([]byte("{not json"), "")
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %d %+v", recorder.Code, resp.Error)
	}

	recorder, resp = env.post([]byte(`{"jsonrpc":"1.0","id":1,"method":"bank_totalSupply"}`), "")
	if recorder.Code != http.StatusBadRequest || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("expected invalid request, got %d %+v", recorder.Code, resp.Error)
	}

	recorder, resp = env.call("market_doesNotExist", "", nil)
	if recorder.Code != http.StatusNotFound || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %d %+v", recorder.Code, resp.Error)
	}
}

func TestMutationsRequireBearerToken(t *testing.T) {
	env := newTestEnv(t)
	params := map[string]interface{}{"name": "maize", "unitPrice": 10, "stock": 5}

	recorder, resp := env.call("market_listProduct", "", params)
	if recorder.Code != http.StatusUnauthorized || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %d %+v", recorder.Code, resp.Error)
	}

	forged, err := IssueToken("some-other-secret", testJWTIssuer, testJWTAudience, testFarmer, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	recorder, resp = env.call("market_listProduct", forged, params)
	if recorder.Code != http.StatusUnauthorized || resp.Error.Message != "invalid RPC credentials" {
		t.Fatalf("expected invalid credentials, got %d %+v", recorder.Code, resp.Error)
	}

	wrongAudience, err := IssueToken(testJWTSecret, testJWTIssuer, "someone-else", testFarmer, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	recorder, _ = env.call("market_listProduct", wrongAudience, params)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected audience mismatch to be rejected, got %d", recorder.Code)
	}

	products, err := env.engine.Products(nil)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("rejected calls must not list products")
	}
}

func TestAuthenticationNotConfigured(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.JWTSecret = ""
	env := newTestEnvWithConfig(t, cfg)
	recorder, resp := env.call("market_confirmDelivery", "anything", map[string]interface{}{"orderId": strings.Repeat("00", 32)})
	if recorder.Code != http.StatusUnauthorized || resp.Error.Message != "RPC authentication not configured" {
		t.Fatalf("expected auth not configured, got %d %+v", recorder.Code, resp.Error)
	}
}

func TestRateLimitRejectsBurst(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.RateLimitPerSecond = 0.001
	cfg.RateLimitBurst = 1
	env := newTestEnvWithConfig(t, cfg)

	recorder, _ := env.call("bank_totalSupply", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", recorder.Code)
	}
	recorder, resp := env.call("bank_totalSupply", "", nil)
	if recorder.Code != http.StatusTooManyRequests || resp.Error.Code != codeRateLimited {
		t.Fatalf("expected rate limit, got %d %+v", recorder.Code, resp.Error)
	}
}

func TestOverflowingOrderIsRejected(t *testing.T) {
	env := newTestEnv(t)
	var product productJSON
	env.mustCall("market_listProduct", env.token(testFarmer), map[string]interface{}{
		"name": "saffron", "unitPrice": uint64(math.MaxUint64), "stock": 10,
	}, &product)

	recorder, resp := env.call("market_createOrder", env.token(testBuyer), map[string]interface{}{
		"productId": product.ID, "quantity": 2, "deadlineHours": 1, "payment": 1,
	})
	if recorder.Code != http.StatusBadRequest || resp.Error.Code != codeMarketInvalidParams {
		t.Fatalf("expected invalid params, got %d %+v", recorder.Code, resp.Error)
	}
	orders, err := env.engine.Orders(market.OrderFilter{})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("overflowing order must not be stored")
	}
	stored, err := env.engine.Product(mustParseID(t, product.ID))
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	if stored.Stock != 10 {
		t.Fatalf("stock must be untouched, got %d", stored.Stock)
	}
}

func TestIssueTokenRoundTrip(t *testing.T) {
	auth := newAuthenticator(testJWTSecret, testJWTIssuer, testJWTAudience)
	token, err := IssueToken(testJWTSecret, testJWTIssuer, testJWTAudience, testBuyer, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	caller, err := auth.authenticate(token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if caller != testBuyer {
		t.Fatalf("expected %s got %s", crypto.FormatAddress(testBuyer), crypto.FormatAddress(caller))
	}

	expired, err := IssueToken(testJWTSecret, testJWTIssuer, testJWTAudience, testBuyer, time.Nanosecond)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	auth.skew = 0
	time.Sleep(1100 * time.Millisecond)
	if _, err := auth.authenticate(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func mustParseID(t *testing.T, value string) [32]byte {
	t.Helper()
	id, err := parseID("id", value)
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}
	return id
}
