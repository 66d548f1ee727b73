package handler

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"churn-predictor/internal/middleware"
	"churn-predictor/internal/models"
	"churn-predictor/internal/repository"
	"churn-predictor/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultListLimit = 100

// Handler handles HTTP requests
type Handler struct {
	predictor *service.Predictor
	repo      repository.PredictionRepository
	auth      *service.AuthService
	templates *template.Template
	logger    *zap.Logger
}

// NewHandler creates a new handler. repo and auth may be nil, in which case
// the admin endpoints are not registered.
func NewHandler(
	predictor *service.Predictor,
	repo repository.PredictionRepository,
	auth *service.AuthService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		predictor: predictor,
		repo:      repo,
		auth:      auth,
		templates: parseTemplates(),
		logger:    logger,
	}
}

// RegisterRoutes registers all routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(h.templates)

	r.GET("/", h.HomePage)
	r.POST("/", h.SubmitForm)

	api := r.Group("/api/v1")
	{
		api.POST("/predict", h.Predict)
		api.GET("/model", h.ModelInfo)
	}

	if h.auth != nil && h.repo != nil {
		r.POST("/api/auth/login", h.Login)

		admin := api.Group("", middleware.AuthMiddleware(h.auth, h.logger))
		{
			admin.GET("/predictions", h.ListPredictions)
			admin.GET("/predictions/stats", h.GetStats)
			admin.GET("/predictions/:id", h.GetPrediction)
			admin.GET("/export/csv", h.ExportCSV)
		}
	}

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Predict scores one JSON-encoded customer
func (h *Handler) Predict(c *gin.Context) {
	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.predictor.Predict(c.Request.Context(), req.Fields)
	if err != nil {
		h.logger.Error("Failed to predict", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
		return
	}

	if outcome.Rejected() {
		c.JSON(http.StatusUnprocessableEntity, outcome)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// ModelInfo describes the loaded model and its feature layout
func (h *Handler) ModelInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"model":    h.predictor.ModelInfo(),
		"features": h.predictor.Features(),
	})
}

// Login exchanges admin credentials for a token
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, expiresAt, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// ListPredictions returns the most recent predictions
func (h *Handler) ListPredictions(c *gin.Context) {
	limit := defaultListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	predictions, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list predictions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get predictions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"predictions": predictions,
		"total":       len(predictions),
	})
}

// GetPrediction returns a single stored prediction
func (h *Handler) GetPrediction(c *gin.Context) {
	p, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "prediction not found"})
			return
		}
		h.logger.Error("Failed to get prediction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get prediction"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// GetStats returns prediction statistics
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	modelName := "unknown"
	if m, ok := h.predictor.ModelInfo()["model"].(string); ok && m != "" {
		modelName = m
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "churn-predictor",
		"model":   modelName,
	})
}
