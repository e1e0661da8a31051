package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lmslight/lms-core/internal/config"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func TestConfigureRejectsInvalidValues(t *testing.T) {
	logger := log.New()
	if err := Configure(logger, nil, config.LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if err := Configure(logger, nil, config.LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Fatalf("expected invalid format error")
	}
	if err := Configure(logger, nil, config.LogConfig{Level: "warn", Format: "json"}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if logger.GetLevel() != log.WarnLevel {
		t.Fatalf("expected warn level, got %s", logger.GetLevel())
	}
}

func TestGinLoggerAssignsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := log.New()
	if err := Configure(logger, &buf, config.LogConfig{Level: "debug", Format: "json"}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	r := gin.New()
	r.Use(GinLogger(logger))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	if generated == "" || w.Body.String() != generated {
		t.Fatalf("expected generated request id echoed, header=%q body=%q", generated, w.Body.String())
	}

	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if line["request_id"] != generated || line["path"] != "/ping" {
		t.Fatalf("unexpected log fields %v", line)
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) != "client-id" {
		t.Fatalf("expected client request id preserved, got %q", w.Header().Get(RequestIDHeader))
	}
}

func TestGinRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := log.New()
	logger.SetOutput(&bytes.Buffer{})

	r := gin.New()
	r.Use(GinLogger(logger), GinRecovery(logger))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
