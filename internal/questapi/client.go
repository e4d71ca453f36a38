// Package questapi はRun QuestのGraphQL APIへのクライアントを提供する。
// すべての操作は単一エンドポイントへのPOSTで、bearerトークンにより認証する。
package questapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/runquest/internal/metrics"
	"github.com/hitoshi/runquest/internal/model"
)

// 上流エラーにメッセージがない場合のフォールバック文言。
const fallbackErrorMessage = "API error"

// Client はGraphQLエンドポイントへのHTTPクライアント。
type Client struct {
	endpoint   string
	httpClient *http.Client
	metrics    metrics.MetricsCollector
}

// NewClient はClientを生成する。
func NewClient(endpoint string, timeout time.Duration, collector metrics.MetricsCollector) *Client {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    collector,
	}
}

// graphQLRequest はGraphQLリクエストボディ。
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLError は上流が返すエラーの1件。
type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// graphQLResponse はGraphQLレスポンスの外形。
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// do はGraphQL操作を実行し、dataフィールドをoutにデコードする。
// エラーの区別:
//   - トランスポート層の失敗          → model.ErrUpstreamUnavailable
//   - 上流が認証失効を通知            → model.ErrUnauthorized
//   - それ以外のGraphQLエラー         → model.APIError（先頭エラーメッセージを保持）
func (c *Client) do(ctx context.Context, token, operation, query string, variables map[string]any, out any) error {
	start := time.Now()

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamFailure(operation, "transport")
		slog.Warn("upstream request failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordHTTPStatus(resp.StatusCode)
	c.metrics.RecordUpstreamLatency(operation, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordUpstreamFailure(operation, "http_status")
		return fmt.Errorf("%w: unexpected status %d", model.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var gqlResp graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		c.metrics.RecordUpstreamFailure(operation, "decode")
		return fmt.Errorf("%w: failed to decode response: %v", model.ErrUpstreamUnavailable, err)
	}

	if len(gqlResp.Errors) > 0 {
		first := gqlResp.Errors[0]
		if isUnauthorized(first) {
			c.metrics.RecordUpstreamFailure(operation, "unauthorized")
			return model.ErrUnauthorized
		}
		c.metrics.RecordUpstreamFailure(operation, "graphql_error")
		message := first.Message
		if message == "" {
			message = fallbackErrorMessage
		}
		return model.NewUpstreamError(message)
	}

	// dataが空のレスポンスは成功として扱わない
	if isEmptyData(gqlResp.Data) {
		c.metrics.RecordUpstreamFailure(operation, "empty_data")
		return model.NewUpstreamError(fallbackErrorMessage)
	}

	if out != nil {
		if err := json.Unmarshal(gqlResp.Data, out); err != nil {
			c.metrics.RecordUpstreamFailure(operation, "decode")
			return fmt.Errorf("%w: failed to decode data: %v", model.ErrUpstreamUnavailable, err)
		}
	}

	c.metrics.RecordUpstreamSuccess(operation)
	return nil
}

// isUnauthorized は上流エラーが認証失効を表すかどうかを判定する。
// 拡張コードUNAUTHENTICATED、またはメッセージに"unauthorized"を含む場合に真。
func isUnauthorized(e graphQLError) bool {
	if e.Extensions.Code == "UNAUTHENTICATED" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "unauthorized")
}

// isEmptyData はdataフィールドが欠落・null・空オブジェクトかどうかを判定する。
func isEmptyData(data json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(data))
	return trimmed == "" || trimmed == "null" || trimmed == "{}"
}
