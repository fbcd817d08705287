package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/appminic/kamera/internal/mapscreen"
	"github.com/appminic/kamera/internal/models"
	"github.com/appminic/kamera/internal/repository"
	"github.com/appminic/kamera/internal/store"
	"github.com/appminic/kamera/internal/viewstate"
)

const maxListLimit = 1000

type Handler struct {
	repo     repository.CameraRepository
	store    *store.Client
	sessions *mapscreen.Sessions
	log      *zap.Logger
}

func NewHandler(repo repository.CameraRepository, client *store.Client, sessions *mapscreen.Sessions, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		repo:     repo,
		store:    client,
		sessions: sessions,
		log:      log.Named("api"),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.GET("/dashboard", h.dashboard)
	api.GET("/report", h.reportScreen)
	api.GET("/camera-types", h.cameraTypes)

	api.GET("/cameras", h.getCameras)
	api.POST("/cameras", h.createCamera)
	api.GET("/cameras/:id", h.getCamera)
	api.POST("/cameras/:id/votes", h.voteCamera)
	api.POST("/cameras/:id/flags", h.flagCamera)

	if h.sessions != nil {
		h.registerSessionRoutes(api.Group("/sessions"))
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// dashboard and reportScreen back the two placeholder screens of the app.
func (h *Handler) dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"title": "Dashboard", "text": "This is dashboard Fragment"})
}

func (h *Handler) reportScreen(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"title": "Report", "text": "This is report Fragment"})
}

func (h *Handler) cameraTypes(c *gin.Context) {
	types := make([]gin.H, 0, len(models.CameraTypes))
	for _, t := range models.CameraTypes {
		types = append(types, gin.H{
			"type":  t.String(),
			"label": t.Label(),
			"icon":  t.Icon(),
		})
	}
	c.JSON(http.StatusOK, types)
}

func (h *Handler) getCameras(c *gin.Context) {
	var filter repository.Filter

	if t := c.Query("type"); t != "" {
		ct, err := models.ParseCameraType(t)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Type = &ct
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxListLimit {
			filter.Limit = lim
		}
	}

	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	zoom, zoomErr := strconv.ParseFloat(c.Query("zoom"), 64)
	if latErr == nil && lngErr == nil && zoomErr == nil {
		b := viewstate.BoundsAround(models.Coordinates{Latitude: lat, Longitude: lng}, zoom)
		filter.Bounds = &b
	}

	reports, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("failed to list cameras", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch cameras",
		})
		return
	}

	fc := toGeoJSON(reports)
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) getCamera(c *gin.Context) {
	report, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type createCameraRequest struct {
	Type        string   `json:"type"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	ReportedBy  string   `json:"reported_by"`
	Description string   `json:"description"`
}

func (h *Handler) createCamera(c *gin.Context) {
	var req createCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required"})
		return
	}
	camType, err := models.ParseCameraType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := models.NewCameraReport(camType,
		models.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude},
		req.ReportedBy, req.Description)

	saved, err := h.store.Create(c.Request.Context(), report)
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

type voteRequest struct {
	Direction string `json:"direction" binding:"required"`
}

func (h *Handler) voteCamera(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction is required"})
		return
	}
	dir, err := models.ParseVoteDirection(req.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.IncrementVote(c.Request.Context(), c.Param("id"), dir); err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) flagCamera(c *gin.Context) {
	if err := h.store.IncrementFlag(c.Request.Context(), c.Param("id")); err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) respondStoreError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": verrs.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store request failed"})
	}
}
