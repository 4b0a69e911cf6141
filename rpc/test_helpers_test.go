package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"farmmarket/core/state"
	"farmmarket/native/market"
	"farmmarket/observability/eventlog"
	"farmmarket/storage"
)

const (
	testJWTSecret   = "rpc-test-secret"
	testJWTIssuer   = "farm-tests"
	testJWTAudience = "farm-rpc"
	testStartMillis = 1_700_000_000_000
	testHourMillis  = 3_600_000
)

var (
	testFarmer   = [20]byte{0xF0}
	testBuyer    = [20]byte{0xB0}
	testStranger = [20]byte{0x5A}
)

type testClock struct{ now atomic.Int64 }

func (c *testClock) Now() int64       { return c.now.Load() }
func (c *testClock) Advance(ms int64) { c.now.Add(ms) }

type testEnv struct {
	t       *testing.T
	server  *Server
	engine  *market.Engine
	journal *eventlog.Journal
	clock   *testClock
	handler http.Handler
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func defaultTestConfig() ServerConfig {
	return ServerConfig{
		JWTSecret:       testJWTSecret,
		JWTIssuer:       testJWTIssuer,
		JWTAudience:     testJWTAudience,
		FaucetEnabled:   true,
		FaucetMaxAmount: 1_000_000_000,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithConfig(t, defaultTestConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	journal, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })

	clock := &testClock{}
	clock.now.Store(testStartMillis)
	engine := market.NewEngine(state.NewManager(db))
	engine.SetClock(clock)
	engine.SetEmitter(journal)

	server := NewServer(engine, journal, cfg, nil)
	return &testEnv{
		t:       t,
		server:  server,
		engine:  engine,
		journal: journal,
		clock:   clock,
		handler: server.Handler(),
	}
}

func (e *testEnv) token(caller [20]byte) string {
	e.t.Helper()
	token, err := IssueToken(testJWTSecret, testJWTIssuer, testJWTAudience, caller, time.Hour)
	if err != nil {
		e.t.Fatalf("issue token: %v", err)
	}
	return token
}

// call posts a JSON-RPC request through the full handler stack.
func (e *testEnv) call(method, token string, params interface{}) (*httptest.ResponseRecorder, rpcEnvelope) {
	e.t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		e.t.Fatalf("marshal request: %v", err)
	}
	return e.post(body, token)
}

func (e *testEnv) post(body []byte, token string) (*httptest.ResponseRecorder, rpcEnvelope) {
	e.t.Helper()
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	httpReq.RemoteAddr = "192.0.2.10:4242"
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, httpReq)
	var env rpcEnvelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &env); err != nil {
		e.t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return recorder, env
}

func (e *testEnv) mustCall(method, token string, params interface{}, out interface{}) {
	e.t.Helper()
	recorder, env := e.call(method, token, params)
	if env.Error != nil {
		e.t.Fatalf("%s: unexpected error %d %s (%v)", method, env.Error.Code, env.Error.Message, env.Error.Data)
	}
	if recorder.Code != http.StatusOK {
		e.t.Fatalf("%s: unexpected status %d", method, recorder.Code)
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			e.t.Fatalf("%s: decode result: %v", method, err)
		}
	}
}
