package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/filedeck/internal/api/middleware"
	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/domain/service"
	"github.com/GriffinCanCode/filedeck/internal/domain/workspace"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/filedeck/internal/providers/auth"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
)

// Version is reported by the root and health endpoints
var Version = "dev"

// Options wires the handler dependencies
type Options struct {
	Registry  *service.Registry
	Auth      *auth.Provider
	Tree      doctree.Tree
	Workspace *workspace.Manager
	Metrics   *MetricsAggregator
	Logger    *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	registry  *service.Registry
	auth      *auth.Provider
	tree      doctree.Tree
	workspace *workspace.Manager
	metrics   *MetricsAggregator
	log       *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(opts Options) *Handlers {
	h := &Handlers{
		registry:  opts.Registry,
		auth:      opts.Auth,
		tree:      opts.Tree,
		workspace: opts.Workspace,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "FileDeck",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":           "healthy",
		"version":          Version,
		"service_registry": h.registry.Stats(),
	}
	if h.tree != nil {
		body["document_roots"] = len(h.tree.Roots())
	}
	if h.workspace != nil {
		body["edit_sessions"] = h.workspace.Count()
	}
	if h.metrics != nil {
		body["cloud"] = h.metrics.cloudStatus()
	}
	c.JSON(http.StatusOK, body)
}

// ListServices lists registered services, optionally filtered by category
func (h *Handlers) ListServices(c *gin.Context) {
	var category *types.Category
	if categoryStr := c.Query("category"); categoryStr != "" {
		cat := types.Category(categoryStr)
		if !knownCategory(cat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category: " + categoryStr})
			return
		}
		category = &cat
	}

	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(category),
		"stats":    h.registry.Stats(),
	})
}

func knownCategory(cat types.Category) bool {
	switch cat {
	case types.CategoryDocuments, types.CategoryEditor, types.CategorySheets,
		types.CategoryCloud, types.CategoryAuth, types.CategorySearch, types.CategorySystem:
		return true
	}
	return false
}

// DiscoverServices ranks services for a free-text intent
func (h *Handlers) DiscoverServices(c *gin.Context) {
	var req types.DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateString(req.Intent, "intent", 1, 1000, true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"intent":   req.Intent,
		"services": h.registry.Discover(req.Intent, req.Limit),
	})
}

// ExecuteService executes a service tool as the calling user
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, middleware.AppContext(c))
	switch {
	case errors.Is(err, service.ErrInvalidToolID):
		c.JSON(http.StatusBadRequest, result)
		return
	case errors.Is(err, service.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, result)
		return
	case err != nil:
		tracing.Logger(c.Request.Context(), h.log).Error("tool execution failed",
			zap.String("tool", req.ToolID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Register creates an account
func (h *Handlers) Register(c *gin.Context) {
	var req types.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.Register(req.Username, req.Password, req.Email)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// Login exchanges credentials for a bearer token
func (h *Handlers) Login(c *gin.Context) {
	var req types.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, session, err := h.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		tracing.Logger(c.Request.Context(), h.log).Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"user_id":    session.UserID,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout revokes the bearer token in the Authorization header
func (h *Handlers) Logout(c *gin.Context) {
	token, ok := auth.ParseBearer(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
		return
	}
	if err := h.auth.Logout(token); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}
