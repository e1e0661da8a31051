// Package app wires configuration, storage, rate limiting and the HTTP API into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lmslight/lms-core/internal/access"
	"github.com/lmslight/lms-core/internal/config"
	"github.com/lmslight/lms-core/internal/db"
	"github.com/lmslight/lms-core/internal/history"
	"github.com/lmslight/lms-core/internal/http/api"
	"github.com/lmslight/lms-core/internal/http/api/admin"
	"github.com/lmslight/lms-core/internal/http/api/front"
	"github.com/lmslight/lms-core/internal/logging"
	"github.com/lmslight/lms-core/internal/metrics"
	"github.com/lmslight/lms-core/internal/models"
	"github.com/lmslight/lms-core/internal/quota"
	"github.com/lmslight/lms-core/internal/ratelimit"
	"github.com/lmslight/lms-core/internal/security"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Services holds the long-lived components built from configuration.
type Services struct {
	DB       *gorm.DB
	Metrics  *metrics.Metrics
	Limits   *ratelimit.Manager
	Scoped   *ratelimit.Manager
	Gate     *quota.Gate
	Recorder *history.Recorder
	Sweeper  *ratelimit.Sweeper
	JWT      config.JWTConfig
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := db.Close(conn); errClose != nil {
			log.WithError(errClose).Warn("close database failed")
		}
	}()
	return db.Migrate(conn.WithContext(ctx))
}

// Build opens storage and constructs every service for the config at configPath.
func Build(configPath string) (*Services, error) {
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	built := false
	defer func() {
		if built {
			return
		}
		if errClose := db.Close(conn); errClose != nil {
			log.WithError(errClose).Warn("close database failed")
		}
	}()
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	log.WithField("dsn", db.DescribeDSN(dsn)).Info("database ready")

	m, errMetrics := metrics.New()
	if errMetrics != nil {
		return nil, errMetrics
	}

	rlCfg := config.LoadRateLimitConfig(configPath)
	settings := rlCfg.Settings
	limits := ratelimit.NewManager(func() ratelimit.SettingsConfig { return settings }, nil, nil)
	limits.SetObserver(m)
	scoped := ratelimit.NewManager(func() ratelimit.SettingsConfig { return settings.Scoped() }, nil, nil)
	scoped.SetObserver(m)
	gate, errGate := quota.NewGate(limits, scoped)
	if errGate != nil {
		return nil, errGate
	}
	log.WithFields(log.Fields{
		"backend":            settings.Backend,
		"ai_request_limit":   settings.Policies.AIRequest.Limit,
		"reading_text_limit": settings.Policies.AIReadingText.Limit,
	}).Info("rate limiting configured")

	recorder := history.NewRecorder(history.NewGormStore(conn))
	recorder.SetObserver(m)

	jwtCfg, _ := config.LoadJWTConfig(configPath)
	if strings.TrimSpace(jwtCfg.Secret) == "" {
		return nil, errors.New("jwt secret is not configured (set `jwt.secret` or JWT_SECRET)")
	}

	hasAdmin, errAdmin := HasAdminUser(conn)
	if errAdmin != nil {
		return nil, errAdmin
	}
	if !hasAdmin {
		log.Warn("no admin user exists; admin routes are unreachable")
	}

	built = true
	return &Services{
		DB:       conn,
		Metrics:  m,
		Limits:   limits,
		Scoped:   scoped,
		Gate:     gate,
		Recorder: recorder,
		Sweeper:  ratelimit.NewSweeper(rlCfg.SweepInterval, nil, limits, scoped),
		JWT:      jwtCfg,
	}, nil
}

// Close releases the database and any Redis clients.
func (s *Services) Close() {
	for _, m := range []*ratelimit.Manager{s.Limits, s.Scoped} {
		if m == nil {
			continue
		}
		if errClose := m.Close(); errClose != nil {
			log.WithError(errClose).Warn("close rate limiter failed")
		}
	}
	if errClose := db.Close(s.DB); errClose != nil {
		log.WithError(errClose).Warn("close database failed")
	}
}

// Router builds the HTTP router over the services.
func (s *Services) Router() *gin.Engine {
	return api.NewRouter(api.RouterDeps{
		DB:      s.DB,
		Metrics: s.Metrics.Handler(),
		Front: front.Deps{
			JWT:           s.JWT,
			Limits:        s.Limits,
			Gate:          s.Gate,
			Recorder:      s.Recorder,
			Classes:       access.NewGormClassChecker(s.DB),
			QuotaObserver: s.Metrics,
		},
		Admin: admin.Deps{
			JWT:      s.JWT,
			Limits:   s.Limits,
			Gate:     s.Gate,
			Recorder: s.Recorder,
		},
	})
}

// RunServer boots the API server and blocks until ctx is cancelled or the listener fails.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	if errSetup := logging.Setup(config.LoadLogConfig(configPath)); errSetup != nil {
		return errSetup
	}

	services, errBuild := Build(configPath)
	if errBuild != nil {
		return errBuild
	}
	defer services.Close()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           services.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return services.Sweeper.Run(groupCtx)
	})
	group.Go(func() error {
		log.Infof("starting server on %s", srv.Addr)
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			return errListen
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
			return errShutdown
		}
		log.Info("server stopped")
		return nil
	})
	return group.Wait()
}

// IssueToken signs a bearer token for an existing user.
func IssueToken(ctx context.Context, cfg config.AppConfig, userID string) (string, error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return "", err
	}
	jwtCfg, _ := config.LoadJWTConfig(configPath)
	if strings.TrimSpace(jwtCfg.Secret) == "" {
		return "", errors.New("jwt secret is not configured")
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return "", err
	}
	defer func() {
		if errClose := db.Close(conn); errClose != nil {
			log.WithError(errClose).Warn("close database failed")
		}
	}()

	var user models.User
	if errFind := conn.WithContext(ctx).Where("id = ?", strings.TrimSpace(userID)).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("user %q not found", userID)
		}
		return "", fmt.Errorf("load user: %w", errFind)
	}
	return security.IssueUserToken(jwtCfg.Secret, user.ID, user.Role, jwtCfg.Expiry, time.Now())
}
