package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/keyhub-dev/keyhub/internal/config"
	"github.com/keyhub-dev/keyhub/internal/repository"
)

// SubscriptionService aggregates a key's upstream subscription payloads
// into a single client-consumable response. Nothing fetched here is ever
// persisted; every request recomputes from live upstream state.
type SubscriptionService struct {
	keys    repository.KeyRepository
	servers repository.ServerRepository
	cfg     config.SubscriptionConfig
	client  *http.Client
	logger  *slog.Logger

	cutoverMs int64
	now       func() time.Time
	shuffle   func(n int, swap func(i, j int))
}

// NewSubscriptionService assembles the aggregator.
func NewSubscriptionService(keys repository.KeyRepository, servers repository.ServerRepository, cfg config.SubscriptionConfig, logger *slog.Logger) (*SubscriptionService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cutover, err := cfg.LegacyCutoverMillis()
	if err != nil {
		return nil, fmt.Errorf("parse legacy cutover: %w", err)
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SubscriptionService{
		keys:      keys,
		servers:   servers,
		cfg:       cfg,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		cutoverMs: cutover,
		now:       time.Now,
		shuffle:   rand.Shuffle,
	}, nil
}

// SubscriptionRequest identifies one inbound subscription fetch.
type SubscriptionRequest struct {
	Email     string
	OwnerID   int64
	RawQuery  string
	UserAgent string
	// Legacy marks the old link format that carries no owner id.
	Legacy bool
}

// SubscriptionResult carries the response body and protocol headers.
type SubscriptionResult struct {
	Payload []byte
	Headers map[string]string
}

// Build resolves, fetches, merges and re-encodes the upstream payloads
// for one key.
func (s *SubscriptionService) Build(ctx context.Context, req SubscriptionRequest) (*SubscriptionResult, error) {
	key, err := s.keys.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if req.Legacy {
		if s.cutoverMs > 0 && key.CreatedAt >= s.cutoverMs {
			return nil, ErrLinkExpired
		}
	} else if key.TgID != req.OwnerID {
		s.logger.Warn("subscription owner mismatch", "email", req.Email, "tg_id", req.OwnerID)
		return nil, ErrOwnerMismatch
	}

	urls, err := s.resolveUpstreams(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, ErrNoUpstreams
	}

	query := ""
	if !req.Legacy {
		query = req.RawQuery
	}
	lines := s.combineUnique(ctx, urls, query, key.TgID)
	s.shuffle(len(lines), func(i, j int) {
		lines[i], lines[j] = lines[j], lines[i]
	})
	for i, line := range lines {
		lines[i] = rewriteLineMeta(line)
	}

	payload := base64.StdEncoding.EncodeToString([]byte(strings.Join(lines, "\n")))
	headers := s.buildHeaders(req.UserAgent, key, lines)

	s.logger.Info("subscription served", "email", req.Email, "upstreams", len(urls), "lines", len(lines))
	return &SubscriptionResult{Payload: []byte(payload), Headers: headers}, nil
}

// resolveUpstreams returns the upstream subscription URLs for the key's
// server reference: exactly one in country-selection mode, one per cluster
// member otherwise.
func (s *SubscriptionService) resolveUpstreams(ctx context.Context, key *repository.Key) ([]string, error) {
	if s.cfg.CountrySelection {
		server, err := s.servers.FindByName(ctx, key.ServerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.logger.Warn("server not in directory", "server", key.ServerID)
				return nil, nil
			}
			return nil, err
		}
		return []string{subscriptionURL(server, key.Email)}, nil
	}

	members, err := s.servers.ListByCluster(ctx, key.ServerID)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(members))
	for _, server := range members {
		urls = append(urls, subscriptionURL(server, key.Email))
	}
	return urls, nil
}

func subscriptionURL(server *repository.Server, email string) string {
	return strings.TrimRight(server.SubscriptionURL, "/") + "/" + email
}

// combineUnique fetches every URL concurrently and merges the decoded
// lines into a de-duplicated set. In single-upstream mode only the first
// URL is fetched. One upstream failing, timing out or answering non-200
// contributes zero lines without disturbing its siblings.
func (s *SubscriptionService) combineUnique(ctx context.Context, urls []string, query string, tgID int64) []string {
	withQuery := func(u string) string {
		if query == "" {
			return u
		}
		return u + "?" + query
	}

	if s.cfg.SingleUpstream {
		return dedupLines([][]string{s.fetchLines(ctx, withQuery(urls[0]), tgID)})
	}

	results := make([][]string, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(index int, target string) {
			defer wg.Done()
			results[index] = s.fetchLines(ctx, target, tgID)
		}(i, withQuery(u))
	}
	wg.Wait()
	return dedupLines(results)
}

// fetchLines downloads and decodes one upstream payload. Any failure
// yields an empty result.
func (s *SubscriptionService) fetchLines(ctx context.Context, target string, tgID int64) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		s.logger.Warn("upstream request invalid", "url", target, "error", err)
		return nil
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("upstream fetch failed", "url", target, "tg_id", tgID, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("upstream fetch rejected", "url", target, "tg_id", tgID, "status", resp.StatusCode)
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.Warn("upstream read failed", "url", target, "tg_id", tgID, "error", err)
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		s.logger.Warn("upstream payload not base64", "url", target, "tg_id", tgID, "error", err)
		return nil
	}
	return strings.Split(string(decoded), "\n")
}

func dedupLines(batches [][]string) []string {
	seen := make(map[string]struct{})
	var merged []string
	for _, lines := range batches {
		for _, line := range lines {
			if line == "" {
				continue
			}
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			merged = append(merged, line)
		}
	}
	return merged
}

// rewriteLineMeta normalizes the human-readable fragment after `#` to
// `country - <traffic>` (or bare country when no traffic token is found).
func rewriteLineMeta(line string) string {
	base, meta, found := strings.Cut(line, "#")
	if !found {
		return line
	}
	parts := strings.Split(meta, "-")
	country := strings.TrimSpace(parts[0])

	traffic := ""
	for _, part := range parts[1:] {
		decoded := part
		if unescaped, err := url.QueryUnescape(part); err == nil {
			decoded = unescaped
		}
		decoded = strings.TrimSpace(decoded)
		if trafficTokenRe.MatchString(decoded) {
			traffic = decoded
			break
		}
	}
	if traffic == "" {
		return base + "#" + country
	}
	return base + "#" + country + " - " + traffic
}

// buildHeaders selects the response header set by client app family.
func (s *SubscriptionService) buildHeaders(userAgent string, key *repository.Key, lines []string) map[string]string {
	userInfo := TrafficSummary(lines, key.ExpiryTime, s.cfg.QuotaBytes())
	subscriptionInfo := fmt.Sprintf("Subscription: %s - %s", key.Email, s.timeLeft(key.ExpiryTime))

	b64 := func(v string) string {
		return "base64:" + base64.StdEncoding.EncodeToString([]byte(v))
	}

	switch {
	case strings.Contains(userAgent, "Happ"):
		announce := fmt.Sprintf("Bot | %s | Support", subscriptionInfo)
		return map[string]string{
			"Content-Type":            "text/plain; charset=utf-8",
			"Content-Disposition":     "inline",
			"profile-update-interval": "3",
			"profile-title":           b64(s.cfg.ProjectName),
			"support-url":             s.cfg.SupportURL,
			"announce":                b64(announce),
			"profile-web-page-url":    "https://t.me/" + s.cfg.BotUsername,
			"subscription-userinfo":   userInfo,
		}
	case strings.Contains(userAgent, "Hiddify"):
		return map[string]string{
			"profile-update-interval": "3",
			"profile-title":           b64(s.cfg.ProjectName + "\n" + "Subscription: " + key.Email),
			"subscription-userinfo":   userInfo,
		}
	default:
		return map[string]string{
			"Content-Type":            "text/plain; charset=utf-8",
			"Content-Disposition":     "inline",
			"profile-update-interval": "3",
			"profile-title":           b64(s.cfg.ProjectName + "\n" + subscriptionInfo),
		}
	}
}

// timeLeft renders the remaining validity like "3D,7H".
func (s *SubscriptionService) timeLeft(expiryMs int64) string {
	if expiryMs == 0 {
		return "N/A"
	}
	remaining := time.Duration(expiryMs-s.now().UnixMilli()) * time.Millisecond
	if remaining < 0 {
		remaining = 0
	}
	days := int(remaining.Hours()) / 24
	hours := int(remaining.Hours()) % 24
	if days > 0 {
		return fmt.Sprintf("%dD,%dH", days, hours)
	}
	return fmt.Sprintf("%dH", hours)
}
