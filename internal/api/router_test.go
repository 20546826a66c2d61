package api

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhub-dev/keyhub/internal/cache"
	"github.com/keyhub-dev/keyhub/internal/config"
	"github.com/keyhub-dev/keyhub/internal/repository"
	"github.com/keyhub-dev/keyhub/internal/security"
	"github.com/keyhub-dev/keyhub/internal/service"
)

type staticKeyRepo struct {
	key *repository.Key
}

func (r *staticKeyRepo) FindByEmail(_ context.Context, email string) (*repository.Key, error) {
	if r.key != nil && r.key.Email == email {
		copied := *r.key
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *staticKeyRepo) Insert(context.Context, *repository.Key) error { return nil }
func (r *staticKeyRepo) Reassign(context.Context, int64, string, string, string) error {
	return nil
}
func (r *staticKeyRepo) CountByEmail(context.Context, string) (int, error) { return 0, nil }
func (r *staticKeyRepo) ListExpiringBetween(context.Context, int64, int64) ([]*repository.Key, error) {
	return nil, nil
}

type staticServerRepo struct {
	servers []*repository.Server
}

func (r *staticServerRepo) FindByName(_ context.Context, name string) (*repository.Server, error) {
	for _, server := range r.servers {
		if server.Name == name {
			return server, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *staticServerRepo) ListByCluster(_ context.Context, cluster string) ([]*repository.Server, error) {
	var out []*repository.Server
	for _, server := range r.servers {
		if server.ClusterName == cluster {
			out = append(out, server)
		}
	}
	return out, nil
}

func (r *staticServerRepo) ListByClusterExcluding(ctx context.Context, cluster, exclude string) ([]*repository.Server, error) {
	members, _ := r.ListByCluster(ctx, cluster)
	var out []*repository.Server
	for _, server := range members {
		if server.Name != exclude {
			out = append(out, server)
		}
	}
	return out, nil
}

func (r *staticServerRepo) ClusterOf(context.Context, string) (string, error) {
	return "", repository.ErrNotFound
}

func (r *staticServerRepo) LeastLoadedCluster(context.Context) (string, error) {
	return "", repository.ErrNotFound
}

func newTestRouter(t *testing.T, key *repository.Key, upstreamLines ...string) http.Handler {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := ""
		for i, line := range upstreamLines {
			if i > 0 {
				payload += "\n"
			}
			payload += line
		}
		_, _ = w.Write([]byte(base64.StdEncoding.EncodeToString([]byte(payload))))
	}))
	t.Cleanup(upstream.Close)

	cfg := config.SubscriptionConfig{
		ProjectName:   "KeyHub",
		FetchTimeout:  2 * time.Second,
		LegacyCutover: "2025-06-01 12:00:00",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	subs, err := service.NewSubscriptionService(&staticKeyRepo{key: key}, &staticServerRepo{
		servers: []*repository.Server{{Name: "de-1", ClusterName: "eu", SubscriptionURL: upstream.URL}},
	}, cfg, logger)
	require.NoError(t, err)

	limiter, err := security.NewRateLimiter(cache.NewStore(cache.Options{DefaultTTL: time.Minute}))
	require.NoError(t, err)

	return NewRouter(RouterConfig{
		Logger:        logger,
		Subscriptions: subs,
		RateLimiter:   limiter,
		RateLimit:     1000,
		RateWindow:    time.Minute,
	})
}

func cutoverMillis(t *testing.T) int64 {
	t.Helper()
	cutover, err := time.Parse("2006-01-02 15:04:05", "2025-06-01 12:00:00")
	require.NoError(t, err)
	return cutover.UnixMilli()
}

func TestModernLinkServesPayload(t *testing.T) {
	key := &repository.Key{TgID: 42, Email: "alpha", ServerID: "eu"}
	router := newTestRouter(t, key, "vless://a#Germany-5GB")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscription/alpha/42", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	decoded, err := base64.StdEncoding.DecodeString(rec.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "vless://a#Germany - 5GB", string(decoded))
}

func TestModernLinkOwnerMismatch(t *testing.T) {
	key := &repository.Key{TgID: 42, Email: "alpha", ServerID: "eu"}
	router := newTestRouter(t, key)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscription/alpha/999", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestModernLinkBadOwnerID(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscription/alpha/notanumber", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownEmailReturns404(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscription/ghost/1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLegacyLinkPreCutover(t *testing.T) {
	key := &repository.Key{TgID: 42, Email: "alpha", ServerID: "eu", CreatedAt: cutoverMillis(t) - 1000}
	router := newTestRouter(t, key, "vless://a#Germany-5GB")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sub/alpha", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLegacyLinkPostCutoverRejected(t *testing.T) {
	key := &repository.Key{TgID: 42, Email: "alpha", ServerID: "eu", CreatedAt: cutoverMillis(t) + 1000}
	router := newTestRouter(t, key)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sub/alpha", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRateLimitHeadersPresent(t *testing.T) {
	key := &repository.Key{TgID: 42, Email: "alpha", ServerID: "eu"}
	router := newTestRouter(t, key, "vless://a#Germany-5GB")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscription/alpha/42", nil))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
}
