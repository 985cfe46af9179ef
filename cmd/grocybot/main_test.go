package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-grocy-bot/internal/config"
	httpapi "github.com/tbourn/go-grocy-bot/internal/http"
)

type stubCache struct{}

func (stubCache) Len() int           { return 0 }
func (stubCache) TTL() time.Duration { return time.Minute }
func (stubCache) Invalidate(string)  {}

func TestConfigCommand_FromEnvFile(t *testing.T) {
	for _, k := range []string{"TELEGRAM_BOT_TOKEN", "GROCY_API_KEY", "GROCY_HOST", "NOTIFICATION_CHAT_IDS", "ADMIN_API_TOKEN"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	env := filepath.Join(t.TempDir(), "test.env")
	content := "TELEGRAM_BOT_TOKEN=123:abc\nGROCY_API_KEY=key\nGROCY_HOST=grocy.lan\nNOTIFICATION_CHAT_IDS=1,2\n"
	if err := os.WriteFile(env, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "--env-file", env})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"http://grocy.lan:80",
		"grocy api key:   set",
		"every 1m1s to 2 chat(s)",
		"admin token:     unset",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "123:abc") || strings.Contains(got, "=key") {
		t.Fatalf("secret leaked:\n%s", got)
	}
}

func TestConfigCommand_MissingFileIsIgnored(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("GROCY_API_KEY", "")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "--env-file", filepath.Join(t.TempDir(), "nope.env")})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "TELEGRAM_BOT_TOKEN") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewHTTPServer(t *testing.T) {
	cfg := config.Config{
		Port:              "8123",
		GinMode:           "test",
		APIBasePath:       "/api/v1",
		RateRPS:           10,
		RateBurst:         10,
		ReadTimeout:       time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      time.Second,
		IdleTimeout:       time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	srv := newHTTPServer(cfg, httpapi.Deps{Cache: stubCache{}})
	if srv.Addr != ":8123" || srv.MaxHeaderBytes != 1<<20 {
		t.Fatalf("server = %+v", srv)
	}

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
}
