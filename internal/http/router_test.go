package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-grocy-bot/internal/config"
	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/monitor"
	"github.com/tbourn/go-grocy-bot/internal/repo"
)

// --- fakes ---

type fakeMonitor struct{ polls int }

func (m *fakeMonitor) Status() []monitor.Status {
	return []monitor.Status{{Name: monitor.WatchChores, Running: true}}
}

func (m *fakeMonitor) PollAll(context.Context) error { m.polls++; return nil }

type fakeCache struct{ invalidated int }

func (c *fakeCache) Len() int           { return 2 }
func (c *fakeCache) TTL() time.Duration { return time.Minute }
func (c *fakeCache) Invalidate(string)  { c.invalidated++ }

type fakeJournal struct{}

func (fakeJournal) ListPage(context.Context, repo.DeliveryFilter, int, int) ([]domain.Delivery, int64, error) {
	return []domain.Delivery{}, 0, nil
}

func (fakeJournal) Version(context.Context, repo.DeliveryFilter) (int64, *time.Time, error) {
	return 0, nil, nil
}

func (fakeJournal) Summary(context.Context) ([]repo.StatusCount, error) { return nil, nil }

func baseCfg() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(cfg config.Config, deps Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, cfg, deps)
	return r
}

func serve(r http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newRouter(baseCfg(), Deps{Cache: &fakeCache{}, Journal: fakeJournal{}})

	w := serve(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("pipeline headers missing: %#v", w.Header())
	}

	w = serve(r, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	if w := serve(r, http.MethodGet, "/nope", nil); w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"not_found"`) {
		t.Fatalf("GET /nope expected 404 envelope, got %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodPost, "/health", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseCfg()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r := newRouter(cfg, Deps{Cache: &fakeCache{}, Journal: fakeJournal{}})

	w := serve(r, http.MethodGet, "/health", map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_AdminRoutes(t *testing.T) {
	mon, cache := &fakeMonitor{}, &fakeCache{}
	r := newRouter(baseCfg(), Deps{Monitor: mon, Cache: cache, Journal: fakeJournal{}})

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/v1/monitor", http.StatusOK},
		{http.MethodPost, "/api/v1/monitor/poll", http.StatusOK},
		{http.MethodGet, "/api/v1/cache", http.StatusOK},
		{http.MethodPost, "/api/v1/cache/invalidate", http.StatusNoContent},
		{http.MethodGet, "/api/v1/deliveries", http.StatusOK},
		{http.MethodGet, "/api/v1/deliveries/summary", http.StatusOK},
	} {
		if w := serve(r, tc.method, tc.path, nil); w.Code != tc.want {
			t.Fatalf("%s %s = %d, want %d (%s)", tc.method, tc.path, w.Code, tc.want, w.Body.String())
		}
	}
	if mon.polls != 1 || cache.invalidated != 1 {
		t.Fatalf("polls=%d invalidated=%d", mon.polls, cache.invalidated)
	}
}

func TestRegisterRoutes_AdminToken(t *testing.T) {
	cfg := baseCfg()
	cfg.Security.AdminToken = "s3cret"
	r := newRouter(cfg, Deps{Monitor: &fakeMonitor{}, Cache: &fakeCache{}, Journal: fakeJournal{}})

	if w := serve(r, http.MethodGet, "/api/v1/monitor", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/monitor", map[string]string{"Authorization": "Bearer s3cret"}); w.Code != http.StatusOK {
		t.Fatalf("valid token = %d", w.Code)
	}
	// Health endpoints stay public.
	if w := serve(r, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Fatalf("health with token configured = %d", w.Code)
	}
}

func TestRegisterRoutes_RateLimitExemptsHealthEndpoints(t *testing.T) {
	cfg := baseCfg()
	cfg.RateRPS, cfg.RateBurst = 0.001, 1
	r := newRouter(cfg, Deps{Cache: &fakeCache{}, Journal: fakeJournal{}})

	if w := serve(r, http.MethodGet, "/api/v1/cache", nil); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/cache", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d", w.Code)
	}
	for i := 0; i < 3; i++ {
		if w := serve(r, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
			t.Fatalf("health %d = %d", i, w.Code)
		}
	}
}

func TestRegisterRoutes_SwaggerToggle(t *testing.T) {
	off := newRouter(baseCfg(), Deps{Cache: &fakeCache{}, Journal: fakeJournal{}})
	if w := serve(off, http.MethodGet, "/swagger/doc.json", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger disabled = %d", w.Code)
	}

	cfg := baseCfg()
	cfg.SwaggerEnabled = true
	on := newRouter(cfg, Deps{Cache: &fakeCache{}, Journal: fakeJournal{}})
	w := serve(on, http.MethodGet, "/swagger/doc.json", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/deliveries") {
		t.Fatalf("swagger enabled = %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_Gzip(t *testing.T) {
	r := newRouter(baseCfg(), Deps{Monitor: &fakeMonitor{}, Cache: &fakeCache{}, Journal: fakeJournal{}})
	w := serve(r, http.MethodGet, "/api/v1/monitor", map[string]string{"Accept-Encoding": "gzip"})
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, headers=%#v", w.Header())
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, http.MethodGet, path, nil)
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}
