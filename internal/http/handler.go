package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"crowd-dashboard/internal/auth"
	"crowd-dashboard/internal/http/middleware"
	"crowd-dashboard/internal/service"
	"crowd-dashboard/internal/upstream"
)

type Handler struct {
	dashboard *service.DashboardService
	log       zerolog.Logger
}

func NewHandler(dashboard *service.DashboardService, log zerolog.Logger) *Handler {
	return &Handler{dashboard: dashboard, log: log}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.POST("/api/auth/login", h.login)

	protected := r.Group("/api")
	protected.Use(authMiddleware)

	protected.POST("/auth/logout", h.logout)
	protected.GET("/auth/me", h.currentUser)
	protected.GET("/sites", h.listSites)
	protected.GET("/dashboard", h.getOverview)
	protected.GET("/alerts", h.listAlerts)
	protected.GET("/entries", h.listEntries)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("email and password are required"))
		return
	}

	session, err := h.dashboard.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrTokenExpired) {
			c.JSON(http.StatusUnauthorized, errorResponse("invalid credentials"))
			return
		}
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"token": session.Token,
		"user":  session.User,
	}))
}

func (h *Handler) logout(c *gin.Context) {
	h.dashboard.Logout()
	c.JSON(http.StatusOK, successResponse(gin.H{"loggedOut": true}))
}

func (h *Handler) currentUser(c *gin.Context) {
	user, ok := middleware.MustUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing user"))
		return
	}
	c.JSON(http.StatusOK, successResponse(user))
}

func (h *Handler) listSites(c *gin.Context) {
	sites := h.dashboard.Sites(c.Request.Context())
	c.JSON(http.StatusOK, successResponse(sites))
}

func (h *Handler) getOverview(c *gin.Context) {
	siteID := strings.TrimSpace(c.Query("siteId"))
	date := strings.TrimSpace(c.Query("date"))

	overview, err := h.dashboard.Overview(c.Request.Context(), siteID, date)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(overview))
}

func (h *Handler) listAlerts(c *gin.Context) {
	siteID := strings.TrimSpace(c.Query("siteId"))
	if siteID == "" {
		c.JSON(http.StatusBadRequest, errorResponse("siteId is required"))
		return
	}

	feed := h.dashboard.Alerts(c.Request.Context(), siteID)
	c.JSON(http.StatusOK, successResponse(feed))
}

func (h *Handler) listEntries(c *gin.Context) {
	siteID := strings.TrimSpace(c.Query("siteId"))
	date := strings.TrimSpace(c.Query("date"))
	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "pageSize", 0)

	entries, err := h.dashboard.Entries(c.Request.Context(), siteID, date, page, pageSize)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(entries))
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSiteMissing), errors.Is(err, service.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, upstream.ErrUnauthorized):
		// Upstream rejected the token; drop the session so the client is
		// forced back through login.
		h.dashboard.Logout()
		c.JSON(http.StatusUnauthorized, errorResponse("session expired"))
	case errors.Is(err, upstream.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not found"))
	case errors.Is(err, upstream.ErrUnavailable):
		c.JSON(http.StatusBadGateway, errorResponse("upstream unavailable"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{"data": data}
}

func errorResponse(message string) gin.H {
	return gin.H{"error": message}
}
