// Package news はホーム画面に表示するランニングニュースの取得とキャッシュを提供する。
// フィードURLは運用者が設定し、バックグラウンドで定期的に取り直す。
// 取得失敗時は前回のキャッシュを返し続ける。
package news

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/runquest/internal/metrics"
	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/security"
)

// ServiceConfig はニュースサービスの設定。
type ServiceConfig struct {
	FeedURLs     []string      // 取得対象のRSS/AtomフィードURL
	FetchTimeout time.Duration // 1フィードあたりの取得タイムアウト
	MaxItems     int           // キャッシュする記事数の上限
}

// Service はニュース記事のキャッシュを管理する。
type Service struct {
	config    ServiceConfig
	client    *http.Client
	guard     security.FetchGuardService
	sanitizer security.NewsSanitizerService
	parser    *gofeed.Parser
	metrics   metrics.MetricsCollector

	mu        sync.RWMutex
	items     []model.NewsItem
	fetchedAt time.Time
}

// NewService はServiceを生成する。
func NewService(
	config ServiceConfig,
	guard security.FetchGuardService,
	sanitizer security.NewsSanitizerService,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		config:    config,
		client:    guard.NewSafeClient(config.FetchTimeout),
		guard:     guard,
		sanitizer: sanitizer,
		parser:    gofeed.NewParser(),
		metrics:   collector,
	}
}

// Items はキャッシュ中の記事を返す。まだ1度も取得していない場合は空のスライス。
func (s *Service) Items() []model.NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.NewsItem, len(s.items))
	copy(items, s.items)
	return items
}

// FetchedAt は最後にキャッシュを更新した時刻を返す。
func (s *Service) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// Refresh は設定されたすべてのフィードを取得してキャッシュを入れ替える。
// 一部のフィードが失敗しても残りは反映する。全フィードが失敗した場合のみ
// エラーを返し、キャッシュは前回の内容を保持する。
func (s *Service) Refresh(ctx context.Context) error {
	var collected []model.NewsItem
	failures := 0

	for _, feedURL := range s.config.FeedURLs {
		items, err := s.fetchFeed(ctx, feedURL)
		if err != nil {
			failures++
			s.metrics.RecordNewsFetchFailure()
			slog.Warn("failed to fetch news feed",
				slog.String("url", feedURL),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.metrics.RecordNewsFetchSuccess()
		collected = append(collected, items...)
	}

	if len(s.config.FeedURLs) > 0 && failures == len(s.config.FeedURLs) {
		return fmt.Errorf("all %d news feeds failed", failures)
	}

	// 新しい記事順に並べ、上限で切る
	sort.Slice(collected, func(i, j int) bool {
		return collected[i].PublishedAt.After(collected[j].PublishedAt)
	})
	if s.config.MaxItems > 0 && len(collected) > s.config.MaxItems {
		collected = collected[:s.config.MaxItems]
	}

	s.mu.Lock()
	s.items = collected
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return nil
}

// fetchFeed は1フィードを取得して記事に変換する。
func (s *Service) fetchFeed(ctx context.Context, feedURL string) ([]model.NewsItem, error) {
	if err := s.guard.ValidateURL(feedURL); err != nil {
		return nil, fmt.Errorf("unsafe feed URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	parsed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]model.NewsItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		publishedAt := time.Now()
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		}

		items = append(items, model.NewsItem{
			Title:       s.sanitizer.Sanitize(item.Title),
			Link:        item.Link,
			Source:      parsed.Title,
			Summary:     s.sanitizer.Sanitize(item.Description),
			PublishedAt: publishedAt,
		})
	}
	return items, nil
}

// StartRefresher はバックグラウンドでキャッシュを定期更新するゴルーチンを起動する。
// 起動直後に1回取得し、以後intervalごとに取り直す。ctxのキャンセルで停止する。
func (s *Service) StartRefresher(ctx context.Context, interval time.Duration) {
	go func() {
		if err := s.Refresh(ctx); err != nil {
			slog.Error("initial news refresh failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Refresh(ctx); err != nil {
					slog.Error("news refresh failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
}
