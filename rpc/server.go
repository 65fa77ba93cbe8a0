package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/punnkam/private-lending/core"
	"github.com/punnkam/private-lending/crypto"
	"github.com/punnkam/private-lending/observability"
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
	codeRateLimited    = -32020
)

// RPCRequest is a JSON-RPC 2.0 request. Methods take a single parameter
// object.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id,omitempty"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error object of a failed call.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ServerConfig tunes the JSON-RPC server.
type ServerConfig struct {
	Auth              AuthConfig
	RequestsPerSecond float64
	Burst             int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	// AllowedOrigins enables CORS for browser clients.
	AllowedOrigins []string
	Logger         *slog.Logger
}

type handlerFunc func(s *Server, w http.ResponseWriter, r *http.Request, req *RPCRequest)

type methodSpec struct {
	handler handlerFunc
	// write methods act on behalf of the authenticated caller
	write bool
	admin bool
}

// Server exposes a core.Node over JSON-RPC.
type Server struct {
	node    *core.Node
	cfg     ServerConfig
	auth    *Authenticator
	limiter *rateLimiter
	metrics interface {
		Observe(method string, status int, duration time.Duration)
		RecordThrottle(reason string)
	}
	logger  *slog.Logger
	methods map[string]methodSpec
	router  chi.Router
	httpSrv *http.Server
}

// NewServer builds the router for node. Nothing listens until Start.
func NewServer(node *core.Node, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		auth:    NewAuthenticator(cfg.Auth),
		limiter: newRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		metrics: observability.RPC(),
		logger:  logger,
	}
	s.methods = map[string]methodSpec{
		"escrow_issue":      {handler: (*Server).handleEscrowIssue, write: true},
		"escrow_settle":     {handler: (*Server).handleEscrowSettle, write: true},
		"escrow_get":        {handler: (*Server).handleEscrowGet},
		"escrow_isSettled":  {handler: (*Server).handleEscrowIsSettled},
		"escrow_status":     {handler: (*Server).handleEscrowStatus},
		"escrow_identity":   {handler: (*Server).handleEscrowIdentity},
		"escrow_listEvents": {handler: (*Server).handleEscrowListEvents},
		"claims_mint":       {handler: (*Server).handleClaimsMint, write: true, admin: true},
		"claims_transfer":   {handler: (*Server).handleClaimsTransfer, write: true},
		"claims_burn":       {handler: (*Server).handleClaimsBurn, write: true},
		"claims_ownerOf":    {handler: (*Server).handleClaimsOwnerOf},
		"bank_mint":         {handler: (*Server).handleBankMint, write: true, admin: true},
		"bank_approve":      {handler: (*Server).handleBankApprove, write: true},
		"bank_transfer":     {handler: (*Server).handleBankTransfer, write: true},
		"bank_balance":      {handler: (*Server).handleBankBalance},
		"bank_allowance":    {handler: (*Server).handleBankAllowance},
		"admin_setPaused":   {handler: (*Server).handleAdminSetPaused, write: true, admin: true},
	}

	router := chi.NewRouter()
	router.Use(requestID)
	router.Use(cors(cfg.AllowedOrigins))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "jsonrpc"))
	s.router = router
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type requestIDKey struct{}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	method := ""
	var caller string
	defer func() {
		s.metrics.Observe(method, rec.status, time.Since(start))
		s.logger.Info("rpc request",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("method", method),
			slog.String("caller", caller),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))
	}()
	w = rec

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
	entry, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	method = req.Method

	principal, err := s.auth.Authenticate(r.Header.Get("Authorization"))
	switch {
	case errors.Is(err, errMissingToken):
		principal = nil
	case err != nil:
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", err.Error())
		return
	}
	if entry.write && principal == nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", "bearer token required")
		return
	}
	if entry.admin && !principal.HasScope(ScopeAdmin) {
		writeError(w, http.StatusForbidden, req.ID, codeForbidden, "forbidden", "admin scope required")
		return
	}

	key := clientSource(r)
	if principal != nil {
		caller = crypto.FormatAddress(principal.Address)
		key = caller
	}
	if !s.limiter.allow(key) {
		s.metrics.RecordThrottle("rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	r = r.WithContext(withPrincipal(r.Context(), principal))
	entry.handler(s, w, r, req)
}

// decodeParams unmarshals the single parameter object of req into dst and
// writes an invalid params error when that fails.
func decodeParams(w http.ResponseWriter, req *RPCRequest, dst interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
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

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}
