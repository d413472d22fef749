// Package httpapi is the HTTP transport of the verification server. It maps
// JSON requests onto the service layer and service sentinels back onto HTTP
// statuses; no business decisions are made here.
package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/logging"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/dmitrijs2005/voicegate/internal/server/repositories/phrases"
	"github.com/dmitrijs2005/voicegate/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The transport depends on narrow views of the service layer so handlers can
// be exercised against fakes.
type (
	VerificationAPI interface {
		Start(ctx context.Context, userID, difficulty string, phraseCount int) (*services.Session, error)
		SubmitPhrase(ctx context.Context, userID, sessionID, challengeID string, phraseNumber int, audio []byte) (*services.PhraseOutcome, error)
	}

	VoiceprintAPI interface {
		Enroll(ctx context.Context, userID string, embedding []byte, modelVersion string) (*models.Voiceprint, error)
	}

	RuleAPI interface {
		List(ctx context.Context) ([]*models.QualityRule, error)
		Get(ctx context.Context, name string) (*models.QualityRule, error)
		Bounds(name string) (min, max float64, err error)
		SetValue(ctx context.Context, actorID, name string, value float64) error
		Toggle(ctx context.Context, actorID, name string, active bool) error
	}

	PhraseAPI interface {
		Create(ctx context.Context, actorID, text, difficulty string) (*models.Phrase, error)
		Deactivate(ctx context.Context, actorID, phraseID string) error
		Stats(ctx context.Context, phraseID string) (*models.Phrase, *phrases.UsageStats, error)
	}

	PolicyAPI interface {
		Get(ctx context.Context, userID string) (*models.UserPolicy, error)
		Set(ctx context.Context, userID string, keepAudio bool, retentionDays *int) (*models.UserPolicy, error)
	}

	AttemptAPI interface {
		Get(ctx context.Context, attemptID string) (*models.AuthAttempt, *models.Scores, error)
	}

	AuditAPI interface {
		ByEntity(ctx context.Context, entityID string, limit int) ([]*models.AuditLog, error)
		Recent(ctx context.Context, limit int) ([]*models.AuditLog, error)
	}
)

type Server struct {
	addr      string
	secretKey []byte
	rps       float64
	logger    logging.Logger
	db        *sql.DB

	verification VerificationAPI
	voiceprints  VoiceprintAPI
	rules        RuleAPI
	phrases      PhraseAPI
	policies     PolicyAPI
	attempts     AttemptAPI
	audit        AuditAPI
}

func NewServer(addr string, secretKey []byte, rps float64, logger logging.Logger, db *sql.DB,
	verification VerificationAPI, voiceprints VoiceprintAPI, rules RuleAPI,
	phrases PhraseAPI, policies PolicyAPI, attempts AttemptAPI, audit AuditAPI) *Server {
	return &Server{
		addr:         addr,
		secretKey:    secretKey,
		rps:          rps,
		logger:       logger.With("component", "httpapi"),
		db:           db,
		verification: verification,
		voiceprints:  voiceprints,
		rules:        rules,
		phrases:      phrases,
		policies:     policies,
		attempts:     attempts,
		audit:        audit,
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), metricsMiddleware())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Use(rateLimitMiddleware(s.rps), authMiddleware(s.secretKey))
	{
		api.POST("/verification/start", s.handleStart)
		api.POST("/verification/phrase", s.handleSubmitPhrase)
		api.POST("/voiceprint", s.handleEnroll)
		api.GET("/policy", s.handleGetPolicy)
		api.PUT("/policy", s.handleSetPolicy)
	}

	admin := api.Group("/admin")
	admin.Use(adminOnly())
	{
		admin.GET("/rules", s.handleListRules)
		admin.GET("/rules/:name", s.handleGetRule)
		admin.PATCH("/rules/:name", s.handleUpdateRule)
		admin.POST("/rules/:name/toggle", s.handleToggleRule)
		admin.POST("/phrases", s.handleCreatePhrase)
		admin.POST("/phrases/:id/deactivate", s.handleDeactivatePhrase)
		admin.GET("/phrases/:id/stats", s.handlePhraseStats)
		admin.GET("/attempts/:id", s.handleGetAttempt)
		admin.GET("/audit", s.handleAudit)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
