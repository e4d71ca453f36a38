// Package auth は外部IdPによるサインイン（OIDC認可コードフロー）を提供する。
// IdPから受け取ったIDトークンはこのサーバーでは検証せず、
// そのまま上流APIのsignInProviderへ渡して検証と引き換えを任せる。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGoogleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL = "https://oauth2.googleapis.com/token"
)

// OIDCProvider はOIDC認証プロバイダーのインターフェース。
// 将来的に複数IdPに対応するための抽象化。
type OIDCProvider interface {
	// GetLoginURL はIdPの認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをIDトークンに交換する。
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// GoogleOIDCConfig はGoogle OIDCプロバイダーの設定。
type GoogleOIDCConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
}

// GoogleOIDCProvider はGoogleによるOIDC認証を提供する。
type GoogleOIDCProvider struct {
	config GoogleOIDCConfig
}

// NewGoogleOIDCProvider はGoogleOIDCProviderを生成する。
func NewGoogleOIDCProvider(config GoogleOIDCConfig) *GoogleOIDCProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	return &GoogleOIDCProvider{config: config}
}

// GetLoginURL はGoogleの認証URLを生成する。スコープにはemail, profileを含む。
func (p *GoogleOIDCProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// googleTokenResponse はGoogleのトークンエンドポイントのレスポンス。
type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeCode は認可コードをIDトークンに交換する。
func (p *GoogleOIDCProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.IDToken == "" {
		return "", fmt.Errorf("empty ID token in response")
	}

	return tokenResp.IDToken, nil
}

// GenerateState はCSRF防止用のstateパラメータを生成する。
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// compile-time interface check
var _ OIDCProvider = (*GoogleOIDCProvider)(nil)
