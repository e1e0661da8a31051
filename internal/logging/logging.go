// Package logging configures the process logger and HTTP request logging.
package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lmslight/lms-core/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request id in and out of the server.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key holding the request id.
const requestIDKey = "request_id"

// Setup applies level and format to the standard logger.
func Setup(cfg config.LogConfig) error {
	return Configure(log.StandardLogger(), os.Stderr, cfg)
}

// Configure applies cfg to logger and directs it to out.
func Configure(logger *log.Logger, out io.Writer, cfg config.LogConfig) error {
	levelRaw := strings.TrimSpace(cfg.Level)
	if levelRaw == "" {
		levelRaw = "info"
	}
	level, errParse := log.ParseLevel(levelRaw)
	if errParse != nil {
		return fmt.Errorf("invalid log level: %w", errParse)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}
	logger.SetLevel(level)
	if out != nil {
		logger.SetOutput(out)
	}
	return nil
}

// RequestID returns the request id assigned by GinLogger.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// GinLogger assigns a request id and logs each request after it completes.
func GinLogger(logger *log.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(log.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Info("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}

// GinRecovery converts panics into 500 responses and logs them with the request id.
func GinRecovery(logger *log.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.WithFields(log.Fields{
					"request_id": RequestID(c),
					"panic":      recovered,
				}).Error("panic while serving request")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
