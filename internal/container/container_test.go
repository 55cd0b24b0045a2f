package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anime-shed/weld-inspector-go/internal/config"
)

func TestNewContainer_Local(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:               "127.0.0.1",
			Port:               "8080",
			RequestTimeout:     time.Second,
			MaxRequestBodySize: 1 << 20,
		},
		Storage: config.StorageConfig{Type: "local", LocalDir: t.TempDir()},
	}

	c, err := NewContainer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer c.Close()

	if c.Config() != cfg {
		t.Error("Expected the container to keep its config")
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", rec.Code)
	}
}

func TestNewContainer_BadStorage(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Type: "tape"}}

	if _, err := NewContainer(context.Background(), cfg); err == nil {
		t.Error("Expected error for unsupported storage")
	}
}
