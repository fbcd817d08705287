package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/appminic/kamera/internal/mapscreen"
	"github.com/appminic/kamera/internal/models"
)

const sessionKey = "session"

func (h *Handler) registerSessionRoutes(g *gin.RouterGroup) {
	g.POST("", h.openSession)

	s := g.Group("/:id", h.loadSession)
	s.DELETE("", h.closeSession)
	s.POST("/permission", h.setPermission)
	s.PUT("/camera", h.cameraIdle)
	s.PUT("/location", h.pushLocation)
	s.DELETE("/location", h.clearLocation)
	s.POST("/locate", h.centerOnMyLocation)
	s.POST("/selection", h.selectLocation)
	s.DELETE("/selection", h.cancelSelection)
	s.POST("/reports", h.submitReport)
	s.GET("/markers", h.sessionMarkers)
	s.GET("/markers/:marker", h.markerDetails)
	s.POST("/markers/:marker/votes", h.sessionVote)
	s.POST("/markers/:marker/flags", h.sessionFlag)
	s.GET("/events", h.sessionEvents)
}

func (h *Handler) loadSession(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Set(sessionKey, sess)
	c.Next()
}

func session(c *gin.Context) *mapscreen.Session {
	return c.MustGet(sessionKey).(*mapscreen.Session)
}

type openSessionRequest struct {
	LocationPermission string                 `json:"location_permission"`
	Camera             *models.CameraPosition `json:"camera"`
	Location           *models.Coordinates    `json:"location"`
}

type sessionResponse struct {
	SessionID       string               `json:"session_id"`
	Camera          mapscreen.CameraMove `json:"camera"`
	LocationEnabled bool                 `json:"location_enabled"`
	Overlays        []mapscreen.Overlay  `json:"overlays"`
}

func (h *Handler) openSession(c *gin.Context) {
	// The body is optional; an empty one (including chunked) decodes to io.EOF.
	var req openSessionRequest
	if c.Request.Body != nil {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
			return
		}
	}

	sess := h.sessions.Create()
	if req.Location != nil {
		sess.Location.Set(*req.Location)
	}
	move := sess.Screen.OnMapReady(c.Request.Context(), req.Camera, mapscreen.ParsePermission(req.LocationPermission))

	h.log.Info("map session opened", zap.String("session_id", sess.ID))
	c.JSON(http.StatusCreated, sessionResponse{
		SessionID:       sess.ID,
		Camera:          move,
		LocationEnabled: sess.Screen.LocationEnabled(),
		Overlays:        sess.Screen.Overlays(),
	})
}

func (h *Handler) closeSession(c *gin.Context) {
	if err := h.sessions.Delete(session(c).ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type permissionRequest struct {
	LocationPermission string `json:"location_permission" binding:"required"`
}

func (h *Handler) setPermission(c *gin.Context) {
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location_permission is required"})
		return
	}
	sess := session(c)
	move := sess.Screen.OnPermissionResult(mapscreen.ParsePermission(req.LocationPermission))
	c.JSON(http.StatusOK, gin.H{
		"camera":           move,
		"location_enabled": sess.Screen.LocationEnabled(),
	})
}

type pointRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

func (p pointRequest) coordinates() models.Coordinates {
	return models.Coordinates{Latitude: *p.Latitude, Longitude: *p.Longitude}
}

type cameraIdleRequest struct {
	pointRequest
	Zoom *float64 `json:"zoom" binding:"required"`
}

func (h *Handler) cameraIdle(c *gin.Context) {
	var req cameraIdleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude, longitude and zoom are required"})
		return
	}
	overlays := session(c).Screen.OnCameraIdle(req.coordinates(), *req.Zoom)
	c.JSON(http.StatusOK, gin.H{"overlays": overlays})
}

func (h *Handler) pushLocation(c *gin.Context) {
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required"})
		return
	}
	session(c).Location.Set(req.coordinates())
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearLocation(c *gin.Context) {
	session(c).Location.Clear()
	c.Status(http.StatusNoContent)
}

func (h *Handler) centerOnMyLocation(c *gin.Context) {
	move, err := session(c).Screen.CenterOnMyLocation(c.Request.Context())
	if err != nil {
		h.respondNotice(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera": move})
}

func (h *Handler) selectLocation(c *gin.Context) {
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required"})
		return
	}
	session(c).Screen.OnLongPress(req.coordinates())
	c.Status(http.StatusNoContent)
}

func (h *Handler) cancelSelection(c *gin.Context) {
	session(c).Screen.CancelReport()
	c.Status(http.StatusNoContent)
}

type submitReportRequest struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	ReportedBy  string `json:"reported_by"`
}

func (h *Handler) submitReport(c *gin.Context) {
	var req submitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}

	saved, err := session(c).Screen.SubmitReport(c.Request.Context(), req.Type, req.Description, req.ReportedBy)
	if err != nil {
		h.respondNotice(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"notice": mapscreen.NoticeReported,
		"report": saved,
	})
}

func (h *Handler) sessionMarkers(c *gin.Context) {
	screen := session(c).Screen
	c.JSON(http.StatusOK, gin.H{
		"loading":  screen.Holder().IsLoading(),
		"overlays": screen.Overlays(),
	})
}

func (h *Handler) markerDetails(c *gin.Context) {
	details, err := session(c).Screen.MarkerDetails(c.Param("marker"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "marker not found"})
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) sessionVote(c *gin.Context) {
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

	screen := session(c).Screen
	if err := screen.Vote(c.Request.Context(), c.Param("marker"), dir); err != nil {
		h.respondStoreError(c, err)
		return
	}
	h.respondDetails(c, screen, c.Param("marker"))
}

func (h *Handler) sessionFlag(c *gin.Context) {
	screen := session(c).Screen
	if err := screen.Flag(c.Request.Context(), c.Param("marker")); err != nil {
		h.respondStoreError(c, err)
		return
	}
	h.respondDetails(c, screen, c.Param("marker"))
}

func (h *Handler) respondDetails(c *gin.Context, screen *mapscreen.Screen, id string) {
	details, err := screen.MarkerDetails(id)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, details)
}

// sessionEvents streams the session's marker state as Server-Sent Events
// until the client goes away or the session closes.
func (h *Handler) sessionEvents(c *gin.Context) {
	holder := session(c).Screen.Holder()
	id, ch := holder.Subscribe()
	defer holder.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("snapshot", holder.Snapshot())
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent("snapshot", snap)
			c.Writer.Flush()
		}
	}
}

// respondNotice answers a failed screen action with the user facing notice.
func (h *Handler) respondNotice(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, mapscreen.ErrNoCameraType):
		status = http.StatusBadRequest
	case errors.Is(err, mapscreen.ErrPermissionRequired):
		status = http.StatusForbidden
	case errors.Is(err, mapscreen.ErrLocationUnavailable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, mapscreen.ErrLocationFailed):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"notice": mapscreen.NoticeFor(err)})
}
