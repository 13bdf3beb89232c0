package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"blink-wallet/go-backend/internal/credstore"
	"blink-wallet/go-backend/internal/custody"
	"blink-wallet/go-backend/internal/kvstore"
)

func newTestServer(t *testing.T, opts ...ServerOption) *httptest.Server {
	t.Helper()
	svc := custody.NewService(credstore.New(kvstore.NewMemory()))
	srv := httptest.NewServer(NewServer("127.0.0.1:0", svc, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, url, method string, params any, headers map[string]string) rpcResponse {
	t.Helper()
	body := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		body["params"] = params
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url+"/rpc", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", httpResp.StatusCode)
	}
	var resp rpcResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func resultField(t *testing.T, resp rpcResponse, field string) string {
	t.Helper()
	m, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("result is not an object: %#v", resp.Result)
	}
	v, _ := m[field].(string)
	return v
}

func TestWalletLifecycleOverRPC(t *testing.T) {
	srv := newTestServer(t)

	resp := call(t, srv.URL, "wallet_create", map[string]string{"username": "satoshi", "secret": "correct-horse"}, nil)
	if resp.Error != nil {
		t.Fatalf("create failed: %+v", resp.Error)
	}
	pk1 := resultField(t, resp, "publicKey")
	if pk1 == "" {
		t.Fatal("create returned no public key")
	}

	resp = call(t, srv.URL, "wallet_authenticate", map[string]string{"secret": "correct-horse"}, nil)
	if resp.Error != nil {
		t.Fatalf("authenticate failed: %+v", resp.Error)
	}
	if got := resultField(t, resp, "publicKey"); got != pk1 {
		t.Fatalf("authenticate returned %s, want %s", got, pk1)
	}

	resp = call(t, srv.URL, "wallet_authenticate", map[string]string{"secret": "wrong-pass"}, nil)
	if resp.Error == nil || resp.Error.Code != -32003 {
		t.Fatalf("expected wrong secret error, got %+v", resp.Error)
	}

	resp = call(t, srv.URL, "wallet_delete", nil, nil)
	if resp.Error != nil {
		t.Fatalf("delete failed: %+v", resp.Error)
	}

	resp = call(t, srv.URL, "wallet_status", nil, nil)
	if resp.Error != nil {
		t.Fatalf("status failed: %+v", resp.Error)
	}
	status, _ := resp.Result.(map[string]any)
	if exists, _ := status["exists"].(bool); exists {
		t.Fatal("wallet still reported after delete")
	}

	resp = call(t, srv.URL, "wallet_authenticate", map[string]string{"secret": "correct-horse"}, nil)
	if resp.Error == nil || resp.Error.Code != -32001 {
		t.Fatalf("expected not found error, got %+v", resp.Error)
	}
}

func TestDuplicateCreateMapsToAlreadyExists(t *testing.T) {
	srv := newTestServer(t)
	params := map[string]string{"username": "satoshi", "secret": "one"}
	if resp := call(t, srv.URL, "wallet_create", params, nil); resp.Error != nil {
		t.Fatalf("create failed: %+v", resp.Error)
	}
	resp := call(t, srv.URL, "wallet_create", params, nil)
	if resp.Error == nil || resp.Error.Code != -32002 {
		t.Fatalf("expected already exists error, got %+v", resp.Error)
	}
}

func TestSignOverRPC(t *testing.T) {
	srv := newTestServer(t)
	if resp := call(t, srv.URL, "wallet_create", map[string]string{"username": "satoshi", "secret": "s"}, nil); resp.Error != nil {
		t.Fatalf("create failed: %+v", resp.Error)
	}
	resp := call(t, srv.URL, "wallet_sign", map[string]string{"secret": "s", "payload": "dHJhbnNmZXI="}, nil)
	if resp.Error != nil {
		t.Fatalf("sign failed: %+v", resp.Error)
	}
	if resultField(t, resp, "signature") == "" {
		t.Fatal("sign returned no signature")
	}
}

func TestSignRejectsBadPayloadEncoding(t *testing.T) {
	srv := newTestServer(t)
	if resp := call(t, srv.URL, "wallet_create", map[string]string{"username": "satoshi", "secret": "s"}, nil); resp.Error != nil {
		t.Fatalf("create failed: %+v", resp.Error)
	}
	resp := call(t, srv.URL, "wallet_sign", map[string]string{"secret": "s", "payload": "%%%"}, nil)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected invalid params, got %+v", resp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := newTestServer(t)
	resp := call(t, srv.URL, "wallet_doesNotExist", nil, nil)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestTokenAuthorization(t *testing.T) {
	srv := newTestServer(t, WithToken("hunter2"))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/rpc", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	out := call(t, srv.URL, "wallet_status", nil, map[string]string{"Authorization": "Bearer hunter2"})
	if out.Error != nil {
		t.Fatalf("status with token failed: %+v", out.Error)
	}
}

func TestRateLimitKicksIn(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(1, 2))

	for i := 0; i < 2; i++ {
		resp := call(t, srv.URL, "wallet_status", nil, nil)
		if resp.Error != nil {
			t.Fatalf("request %d failed: %+v", i, resp.Error)
		}
	}

	raw := []byte(`{"jsonrpc":"2.0","id":1,"method":"wallet_status"}`)
	httpResp, err := http.Post(srv.URL+"/rpc", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", httpResp.StatusCode)
	}
}
