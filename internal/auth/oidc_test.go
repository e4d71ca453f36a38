package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGoogleOIDCProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewGoogleOIDCProvider(GoogleOIDCConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/auth/oidc/callback",
	})

	loginURL := provider.GetLoginURL("test-state-value")
	if loginURL == "" {
		t.Fatal("expected non-empty URL")
	}

	tests := []struct {
		name     string
		contains string
	}{
		{"client_id", "client_id=test-client-id"},
		{"redirect_uri", "redirect_uri="},
		{"state", "state=test-state-value"},
		{"response_type", "response_type=code"},
		{"scope openid", "openid"},
		{"scope email", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(loginURL, tt.contains) {
				t.Errorf("URL should contain %q, got %q", tt.contains, loginURL)
			}
		})
	}
}

func TestGoogleOIDCProvider_ExchangeCode_ReturnsIDToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want authorization_code", got)
		}
		if got := r.Form.Get("code"); got != "test-code" {
			t.Errorf("code = %q, want test-code", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
			"id_token":     "test-id-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOIDCProvider(GoogleOIDCConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/oidc/callback",
		TokenURL:     tokenServer.URL,
	})

	idToken, err := provider.ExchangeCode(context.Background(), "test-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idToken != "test-id-token" {
		t.Errorf("idToken = %q, want %q", idToken, "test-id-token")
	}
}

func TestGoogleOIDCProvider_ExchangeCode_EmptyIDToken_Fails(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOIDCProvider(GoogleOIDCConfig{TokenURL: tokenServer.URL})

	if _, err := provider.ExchangeCode(context.Background(), "test-code"); err == nil {
		t.Error("expected error for missing id_token")
	}
}

func TestGoogleOIDCProvider_ExchangeCode_ErrorStatus_Fails(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	defer tokenServer.Close()

	provider := NewGoogleOIDCProvider(GoogleOIDCConfig{TokenURL: tokenServer.URL})

	if _, err := provider.ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestGenerateState_Unique(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := GenerateState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a == b {
		t.Error("states should be unique")
	}
	if len(a) != 32 {
		t.Errorf("state length = %d, want 32 hex chars", len(a))
	}
}
