package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// authFailure is the JSON-RPC 2.0 error envelope sent on rejected
// requests, so control clients decode auth failures the same way as any
// other RPC error.
type authFailure struct {
	Jsonrpc string        `json:"jsonrpc"`
	Error   authErrorBody `json:"error"`
	Id      any           `json:"id"`
}

type authErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// requireToken gates the control RPC behind a Bearer token. An empty
// secret rejects every request: the RPC stays disabled, not open, until
// a secret is configured.
func requireToken(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if validToken(secret, r.Header.Get("Authorization")) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(authFailure{
			Jsonrpc: "2.0",
			Error:   authErrorBody{Code: -32600, Message: "Unauthorized"},
		})
	})
}

// validToken compares the Authorization header against the secret in
// constant time. The "Bearer " prefix is required.
func validToken(secret, authHeader string) bool {
	if secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
