package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"farmmarket/native/market"
	"farmmarket/observability"
	"farmmarket/observability/eventlog"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// ServerConfig carries the listener settings resolved from the node config.
type ServerConfig struct {
	ListenAddress      string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	RateLimitPerSecond float64
	RateLimitBurst     int
	FaucetEnabled      bool
	FaucetMaxAmount    uint64
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

// Server exposes the marketplace engine over JSON-RPC 2.0.
type Server struct {
	engine  *market.Engine
	journal *eventlog.Journal
	cfg     ServerConfig
	logger  *slog.Logger
	auth    *authenticator
	limiter *clientLimiter

	httpServer *http.Server
}

// NewServer wires the engine and optional event journal behind the RPC
// surface. A nil journal disables market_listEvents.
func NewServer(engine *market.Engine, journal *eventlog.Journal, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  engine,
		journal: journal,
		cfg:     cfg,
		logger:  logger,
		auth:    newAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		limiter: newClientLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	}
}

// Handler returns the routed HTTP handler. JSON-RPC is served on POST /.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(s.rateLimit).Post("/", s.handle)
	return otelhttp.NewHandler(r, "farm-rpc")
}

// Serve listens on cfg.ListenAddress until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", s.cfg.ListenAddress, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.logger.Info("starting JSON-RPC server", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// statusWriter remembers the status code for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (s *Server) handle(rw http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w := &statusWriter{ResponseWriter: rw}
	method := ""
	defer func() {
		observability.RPC().Observe(method, w.status, time.Since(start))
	}()

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	method = req.Method

	defer func() {
		if rec := recover(); rec != nil {
			if err, ok := rec.(error); ok && errors.Is(err, market.ErrArithmeticOverflow) {
				writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
				return
			}
			s.logger.Error("rpc handler panic", "method", method, "panic", fmt.Sprint(rec),
				"requestId", r.Header.Get(requestIDHeader))
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal_error", nil)
		}
	}()

	switch req.Method {
	case "market_listProduct":
		s.withCaller(w, r, req, s.handleListProduct)
	case "market_updateStock":
		s.withCaller(w, r, req, s.handleUpdateStock)
	case "market_deleteProduct":
		s.withCaller(w, r, req, s.handleDeleteProduct)
	case "market_createOrder":
		s.withCaller(w, r, req, s.handleCreateOrder)
	case "market_confirmDelivery":
		s.withCaller(w, r, req, s.handleConfirmDelivery)
	case "market_processExpiredOrder":
		s.withCaller(w, r, req, s.handleProcessExpiredOrder)
	case "market_createDispute":
		s.withCaller(w, r, req, s.handleCreateDispute)
	case "market_proposeCompensation":
		s.withCaller(w, r, req, s.handleProposeCompensation)
	case "market_acceptCompensation":
		s.withCaller(w, r, req, s.handleAcceptCompensation)
	case "market_voteOnDispute":
		s.handleVoteOnDispute(w, r, req)
	case "market_getProduct":
		s.handleGetProduct(w, r, req)
	case "market_getOrder":
		s.handleGetOrder(w, r, req)
	case "market_getDispute":
		s.handleGetDispute(w, r, req)
	case "market_getCap":
		s.handleGetCap(w, r, req)
	case "market_listProducts":
		s.handleListProducts(w, r, req)
	case "market_listOrders":
		s.handleListOrders(w, r, req)
	case "market_listDisputes":
		s.handleListDisputes(w, r, req)
	case "market_listEvents":
		s.handleListEvents(w, r, req)
	case "bank_balance":
		s.handleBalance(w, r, req)
	case "bank_totalSupply":
		s.handleTotalSupply(w, r, req)
	case "bank_faucet":
		s.handleFaucet(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method), nil)
	}
}

// callerHandler is a handler that acts on behalf of an authenticated address.
type callerHandler func(w http.ResponseWriter, r *http.Request, req *RPCRequest, caller [20]byte)

func (s *Server) withCaller(w http.ResponseWriter, r *http.Request, req *RPCRequest, next callerHandler) {
	caller, authErr := s.requireAuth(r)
	if authErr != nil {
		observability.RPC().RecordThrottle("unauthorized")
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	next(w, r, req, caller)
}

func (s *Server) requireAuth(r *http.Request) ([20]byte, *RPCError) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	caller, err := s.auth.authenticate(token)
	if err != nil {
		if errors.Is(err, errAuthNotConfigured) {
			return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "RPC authentication not configured"}
		}
		return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials", Data: err.Error()}
	}
	return caller, nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientSource(r)) {
			observability.RPC().RecordThrottle("rate_limit")
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestID tags every request with an id, honouring one supplied by the
// caller.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
