package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/models"
	"go.uber.org/zap"
)

// Analyzer is the analysis surface the handlers serve
type Analyzer interface {
	ScoreAddress(ctx context.Context, address string) (*core.RiskReport, error)
	ProfileAddress(ctx context.Context, address string) (*core.ProfileReport, error)
	AnalyzeAddress(ctx context.Context, address string) (*core.FullAnalysis, error)
	NarrateAddress(ctx context.Context, address string) (*core.FullAnalysis, error)
}

// ModelAdmin reports and reloads model availability
type ModelAdmin interface {
	Reload() models.Status
	Status() models.Status
}

// Pinger is implemented by dependencies with a reachability check
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the risk analysis API
type Handler struct {
	analyzer     Analyzer
	models       ModelAdmin
	cache        core.CacheRepository
	providerName string
	logger       *zap.Logger
}

// NewHandler creates a new API handler. cache may be nil.
func NewHandler(analyzer Analyzer, models ModelAdmin, cache core.CacheRepository, providerName string, logger *zap.Logger) *Handler {
	return &Handler{
		analyzer:     analyzer,
		models:       models,
		cache:        cache,
		providerName: providerName,
		logger:       logger,
	}
}

// RegisterRoutes mounts the analysis routes
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	risk := r.Group("/risk")
	risk.GET("/score/:address", h.Score)
	risk.GET("/profile/:address", h.Profile)
	risk.GET("/analyze/:address", h.Analyze)
	risk.GET("/narrate/:address", h.Narrate)

	r.GET("/health", h.Health)
}

// RegisterAdminRoutes mounts the operator routes
func (h *Handler) RegisterAdminRoutes(r gin.IRouter) {
	r.POST("/models/reload", h.ReloadModels)
}

// Score handles GET /risk/score/:address
func (h *Handler) Score(c *gin.Context) {
	report, err := h.analyzer.ScoreAddress(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Profile handles GET /risk/profile/:address
func (h *Handler) Profile(c *gin.Context) {
	profile, err := h.analyzer.ProfileAddress(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Analyze handles GET /risk/analyze/:address
func (h *Handler) Analyze(c *gin.Context) {
	full, err := h.analyzer.AnalyzeAddress(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, full)
}

// Narrate handles GET /risk/narrate/:address
func (h *Handler) Narrate(c *gin.Context) {
	full, err := h.analyzer.NarrateAddress(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, full)
}

// ReloadModels handles POST /admin/models/reload
func (h *Handler) ReloadModels(c *gin.Context) {
	status := h.models.Reload()
	h.logger.Info("Models reloaded",
		zap.Bool("risk_model", status.RiskModel),
		zap.Bool("cluster_model", status.ClusterModel))
	c.JSON(http.StatusOK, gin.H{"models": status})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	status := h.models.Status()
	healthy := status.RiskModel && status.ClusterModel

	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "ok"
		if p, ok := h.cache.(Pinger); ok {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				cacheStatus = "unreachable"
				healthy = false
				h.logger.Warn("Cache health check failed", zap.Error(err))
			}
		}
	}

	code := http.StatusOK
	overall := "healthy"
	if !healthy {
		code = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(code, gin.H{
		"status":   overall,
		"models":   status,
		"cache":    cacheStatus,
		"provider": h.providerName,
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	code, kind := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Warn("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("error_kind", kind),
			zap.Error(err))
	}

	body := gin.H{
		"error":   kind,
		"message": err.Error(),
	}
	var aerr *core.AnalysisError
	if errors.As(err, &aerr) {
		body["component"] = aerr.Component
		body["address"] = aerr.Address
	}
	var missing *core.MissingFeaturesError
	if errors.As(err, &missing) {
		body["missing_features"] = missing.Missing
	}
	c.JSON(code, body)
}

func statusFor(err error) (int, string) {
	kind := core.ErrorKind(err)
	switch kind {
	case "invalid_address":
		return http.StatusBadRequest, kind
	case "data_unavailable":
		return http.StatusBadGateway, kind
	case "model_not_trained":
		return http.StatusServiceUnavailable, kind
	case "narrator_unavailable":
		return http.StatusNotImplemented, kind
	default:
		return http.StatusInternalServerError, kind
	}
}
