package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler stands in for the RPC endpoint behind the auth gate.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestRequireToken_ValidToken(t *testing.T) {
	secret := "test-secret-12345"
	handler := requireToken(secret, okHandler)

	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Fatalf("expected 'ok' body, got %q", rr.Body.String())
	}
}

// TestRequireToken_Rejections covers every way a request can fail the
// gate, including the empty-secret case where the RPC is disabled
// outright rather than running open.
func TestRequireToken_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
	}{
		{"missing header", "test-secret", ""},
		{"wrong token", "test-secret", "Bearer wrong-token"},
		{"no bearer prefix", "test-secret", "test-secret"},
		{"empty secret", "", "Bearer anything"},
		{"empty secret empty header", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := requireToken(tt.secret, okHandler)
			req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
		})
	}
}

// TestRequireToken_ErrorEnvelope verifies rejected requests answer with
// a decodable JSON-RPC error body, not a bare HTTP error page.
func TestRequireToken_ErrorEnvelope(t *testing.T) {
	handler := requireToken("test-secret", okHandler)

	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}

	var resp struct {
		Jsonrpc string `json:"jsonrpc"`
		Error   struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Jsonrpc != "2.0" {
		t.Fatalf("expected jsonrpc 2.0, got %q", resp.Jsonrpc)
	}
	if resp.Error.Code != -32600 {
		t.Fatalf("expected error code -32600, got %d", resp.Error.Code)
	}
	if resp.Error.Message != "Unauthorized" {
		t.Fatalf("expected 'Unauthorized', got %q", resp.Error.Message)
	}
}

func TestValidToken(t *testing.T) {
	tests := []struct {
		secret string
		header string
		want   bool
	}{
		{"secret", "Bearer secret", true},
		{"secret", "Bearer wrong", false},
		{"secret", "", false},
		{"secret", "secret", false},
		{"", "Bearer anything", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := validToken(tt.secret, tt.header); got != tt.want {
			t.Errorf("validToken(%q, %q) = %v, want %v", tt.secret, tt.header, got, tt.want)
		}
	}
}
