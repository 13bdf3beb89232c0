// Package rpc exposes the custody service over localhost JSON-RPC 2.0 for the
// wallet UI and CLI tooling. Secrets arrive in request params and are never
// echoed back; the signing keypair never crosses this boundary.
package rpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"blink-wallet/go-backend/internal/custody"
	"blink-wallet/go-backend/internal/platform/ratelimiter"
)

type Server struct {
	addr    string
	svc     *custody.Service
	log     *slog.Logger
	token   string
	limiter *ratelimiter.MapLimiter
	metrics http.Handler
}

type ServerOption func(*Server)

// WithToken requires the given bearer token on every request.
func WithToken(token string) ServerOption {
	return func(s *Server) { s.token = strings.TrimSpace(token) }
}

// WithRateLimit throttles requests per caller; rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) { s.limiter = ratelimiter.New(rps, burst, 10*time.Minute) }
}

func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// WithMetricsHandler mounts a metrics endpoint at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

func NewServer(addr string, svc *custody.Service, opts ...ServerOption) *Server {
	s := &Server{
		addr: addr,
		svc:  svc,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler; exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.handleRPC)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	s.log.Info("rpc server listening", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.token == "" {
		return true
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if supplied == "" {
		supplied = strings.TrimSpace(r.Header.Get("X-Wallet-RPC-Token"))
	}
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.token)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func rateLimitKey(r *http.Request, token string) string {
	if strings.TrimSpace(token) != "" {
		return "token:" + token
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "ip:unknown"
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil || strings.TrimSpace(host) == "" {
		return "ip:" + remote
	}
	return "ip:" + host
}
