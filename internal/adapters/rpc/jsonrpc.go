package rpc

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"blink-wallet/go-backend/internal/custody"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

const maxRPCBodyBytes int64 = 64 << 10 // 64 KiB

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow(rateLimitKey(r, s.token), time.Now()) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32600, Message: "invalid request"}})
		return
	}

	result, err := s.dispatch(r, req)
	if err != nil {
		code, msg := mapError(err)
		s.log.Warn("rpc call failed", slog.String("rpc_method", req.Method), slog.Any("error", err))
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: code, Message: msg}})
		return
	}
	writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

type createParams struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

type secretParams struct {
	Secret string `json:"secret"`
}

type signParams struct {
	Secret  string `json:"secret"`
	Payload string `json:"payload"` // base64
}

type importParams struct {
	Username string `json:"username"`
	Mnemonic string `json:"mnemonic"`
	Secret   string `json:"secret"`
}

func (s *Server) dispatch(r *http.Request, req rpcRequest) (any, error) {
	ctx := r.Context()
	switch req.Method {
	case "wallet_create":
		var p createParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		publicKey, err := s.svc.Create(ctx, p.Username, p.Secret)
		if err != nil {
			return nil, err
		}
		return map[string]any{"publicKey": publicKey}, nil

	case "wallet_authenticate":
		var p secretParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		publicKey, kp, err := s.svc.Authenticate(ctx, p.Secret)
		if err != nil {
			return nil, err
		}
		// The keypair stays inside the daemon; callers get the address only.
		kp.Zero()
		return map[string]any{"publicKey": publicKey}, nil

	case "wallet_sign":
		var p signParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		payload, err := base64.StdEncoding.DecodeString(p.Payload)
		if err != nil {
			return nil, errInvalidParams
		}
		sig, err := s.svc.Sign(ctx, p.Secret, payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{"signature": base64.StdEncoding.EncodeToString(sig)}, nil

	case "wallet_delete":
		if err := s.svc.Delete(); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": true}, nil

	case "wallet_status":
		status := map[string]any{
			"exists":             s.svc.Has(),
			"biometricSupported": s.svc.IsBiometricSupported(),
		}
		if username, ok := s.svc.Username(); ok {
			status["username"] = username
		}
		if publicKey, ok := s.svc.PublicIdentifier(); ok {
			status["publicKey"] = publicKey
		}
		return status, nil

	case "wallet_exportPhrase":
		var p secretParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		mnemonic, err := s.svc.ExportRecoveryPhrase(ctx, p.Secret)
		if err != nil {
			return nil, err
		}
		return map[string]any{"mnemonic": mnemonic}, nil

	case "wallet_importPhrase":
		var p importParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		publicKey, err := s.svc.ImportFromRecoveryPhrase(ctx, p.Username, p.Mnemonic, p.Secret)
		if err != nil {
			return nil, err
		}
		return map[string]any{"publicKey": publicKey}, nil

	default:
		return nil, errMethodNotFound
	}
}

var (
	errMethodNotFound = errors.New("method not found")
	errInvalidParams  = errors.New("invalid params")
)

func decodeParams(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return errInvalidParams
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return errInvalidParams
	}
	return nil
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, errMethodNotFound):
		return -32601, "method not found"
	case errors.Is(err, errInvalidParams), errors.Is(err, custody.ErrInvalidInput):
		return -32602, "invalid params"
	case errors.Is(err, custody.ErrNotFound):
		return -32001, "no wallet found"
	case errors.Is(err, custody.ErrAlreadyExists):
		return -32002, "wallet already exists"
	case errors.Is(err, custody.ErrWrongSecret):
		return -32003, "wrong secret"
	case errors.Is(err, custody.ErrLocked):
		return -32004, "too many failed attempts"
	case errors.Is(err, custody.ErrCreationFailed):
		return -32005, "wallet creation failed"
	case errors.Is(err, custody.ErrUnsupportedEnvironment):
		return -32006, "unsupported environment"
	default:
		return -32000, "internal error"
	}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
