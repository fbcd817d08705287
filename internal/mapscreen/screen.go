// Package mapscreen drives one client's map: permission handling, marker
// overlays, the report flow and marker details. The device surfaces it needs
// (last known location) come in through small interfaces.
package mapscreen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/appminic/kamera/internal/models"
	"github.com/appminic/kamera/internal/viewstate"
)

// MyLocationZoom is the zoom used when centering on the device.
const MyLocationZoom = 15

var (
	ErrNoCameraType        = errors.New("no camera type selected")
	ErrLocationUnavailable = errors.New("location not available")
	ErrPermissionRequired  = errors.New("location permission required")
	ErrLocationFailed      = errors.New("failed to get location")
	ErrReportFailed        = errors.New("failed to report camera")
	ErrMarkerNotFound      = errors.New("marker not found")
)

// NoticeFor maps a screen error to the short message shown to the user.
func NoticeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoCameraType):
		return "Please select a camera type"
	case errors.Is(err, ErrLocationUnavailable):
		return "Location not available"
	case errors.Is(err, ErrPermissionRequired):
		return "Location permission required"
	case errors.Is(err, ErrLocationFailed):
		return "Failed to get location"
	case errors.Is(err, ErrReportFailed):
		return "Failed to report camera"
	default:
		return "Error: " + err.Error()
	}
}

const NoticeReported = "Camera reported successfully"

type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

func ParsePermission(s string) Permission {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "granted", "fine", "coarse", "true":
		return PermissionGranted
	case "denied", "false":
		return PermissionDenied
	default:
		return PermissionUnknown
	}
}

// LocationProvider is the device's one-shot last known location. ok is false
// when the device has no fix.
type LocationProvider interface {
	LastLocation(ctx context.Context) (c models.Coordinates, ok bool, err error)
}

// CameraMove tells the client where to point the map: either a position at a
// zoom or a region to fit.
type CameraMove struct {
	Position *models.CameraPosition `json:"position,omitempty"`
	Region   *models.Bounds         `json:"region,omitempty"`
}

type Overlay struct {
	ID       string             `json:"id"`
	Position models.Coordinates `json:"position"`
	Icon     string             `json:"icon"`
	Title    string             `json:"title"`
	Snippet  string             `json:"snippet"`
}

type MarkerDetails struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	ReportedBy  string `json:"reported_by"`
	Description string `json:"description"`
	ThumbsUp    int    `json:"thumbs_up"`
	ThumbsDown  int    `json:"thumbs_down"`
	Flags       int    `json:"flags"`
}

type Screen struct {
	holder        *viewstate.Holder
	location      LocationProvider
	defaultRegion models.Bounds
	log           *zap.Logger

	mu              sync.Mutex
	permission      Permission
	locationEnabled bool
	selected        *models.Coordinates
	camera          CameraMove
}

func NewScreen(holder *viewstate.Holder, location LocationProvider, defaultRegion models.Bounds, log *zap.Logger) *Screen {
	if log == nil {
		log = zap.NewNop()
	}
	return &Screen{
		holder:        holder,
		location:      location,
		defaultRegion: defaultRegion,
		log:           log.Named("mapscreen"),
	}
}

func (s *Screen) Holder() *viewstate.Holder {
	return s.holder
}

// OnMapReady loads markers, applies the map's starting viewport when known,
// and runs the permission branch.
func (s *Screen) OnMapReady(ctx context.Context, current *models.CameraPosition, perm Permission) CameraMove {
	s.holder.Load(ctx)
	if current != nil {
		s.holder.UpdateVisibleMarkers(current.Target, current.Zoom)
	}
	return s.OnPermissionResult(perm)
}

// OnPermissionResult enables the location layer when granted. Either way the
// camera goes to the saved position, or to the default region if there is none.
func (s *Screen) OnPermissionResult(perm Permission) CameraMove {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.permission = perm
	s.locationEnabled = perm == PermissionGranted

	if pos, ok := s.holder.LastCameraPosition(); ok {
		s.camera = CameraMove{Position: &pos}
	} else {
		region := s.defaultRegion
		s.camera = CameraMove{Region: &region}
	}
	s.log.Debug("permission result", zap.Bool("location_enabled", s.locationEnabled))
	return s.camera
}

func (s *Screen) LocationEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locationEnabled
}

// Camera is the last camera move the screen issued.
func (s *Screen) Camera() CameraMove {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// OnCameraIdle records where the map came to rest and returns the overlays to
// draw for it.
func (s *Screen) OnCameraIdle(center models.Coordinates, zoom float64) []Overlay {
	s.holder.SaveCameraPosition(center, zoom)
	s.holder.UpdateVisibleMarkers(center, zoom)
	return s.Overlays()
}

func (s *Screen) Overlays() []Overlay {
	visible := s.holder.VisibleMarkers()
	overlays := make([]Overlay, 0, len(visible))
	for _, m := range visible {
		overlays = append(overlays, Overlay{
			ID:       m.ID,
			Position: m.Coordinates(),
			Icon:     m.Type.Icon(),
			Title:    m.Type.String(),
			Snippet:  "Reported by: " + m.ReportedBy,
		})
	}
	return overlays
}

func (s *Screen) OnLongPress(at models.Coordinates) {
	s.mu.Lock()
	s.selected = &at
	s.mu.Unlock()
}

func (s *Screen) CancelReport() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

func (s *Screen) SelectedLocation() (models.Coordinates, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return models.Coordinates{}, false
	}
	return *s.selected, true
}

// SubmitReport reports a camera at the long-pressed point, or at the device
// location when nothing was selected. typeName may be a label ("Red light")
// or an enum name.
func (s *Screen) SubmitReport(ctx context.Context, typeName, description, reportedBy string) (models.CameraReport, error) {
	if strings.TrimSpace(typeName) == "" {
		return models.CameraReport{}, ErrNoCameraType
	}
	camType, err := models.ParseCameraType(typeName)
	if err != nil {
		return models.CameraReport{}, fmt.Errorf("%w: %w", ErrNoCameraType, err)
	}

	at, ok := s.SelectedLocation()
	if !ok {
		at, err = s.deviceLocation(ctx)
		if err != nil {
			return models.CameraReport{}, err
		}
	}

	saved, err := s.holder.AddCameraMarker(ctx, camType, at, reportedBy, description)
	if err != nil {
		return models.CameraReport{}, fmt.Errorf("%w: %w", ErrReportFailed, err)
	}

	s.CancelReport()
	return saved, nil
}

// CenterOnMyLocation moves the camera to the device at MyLocationZoom.
func (s *Screen) CenterOnMyLocation(ctx context.Context) (CameraMove, error) {
	at, err := s.deviceLocation(ctx)
	if err != nil {
		return CameraMove{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = CameraMove{Position: &models.CameraPosition{Target: at, Zoom: MyLocationZoom}}
	return s.camera, nil
}

func (s *Screen) deviceLocation(ctx context.Context) (models.Coordinates, error) {
	s.mu.Lock()
	granted := s.permission == PermissionGranted
	s.mu.Unlock()
	if !granted {
		return models.Coordinates{}, ErrPermissionRequired
	}
	if s.location == nil {
		return models.Coordinates{}, ErrLocationUnavailable
	}

	at, ok, err := s.location.LastLocation(ctx)
	if err != nil {
		s.log.Warn("last location lookup failed", zap.Error(err))
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrLocationFailed, err)
	}
	if !ok {
		return models.Coordinates{}, ErrLocationUnavailable
	}
	return at, nil
}

// MarkerDetails looks a marker up by ID among the loaded markers.
func (s *Screen) MarkerDetails(id string) (MarkerDetails, error) {
	m, ok := s.holder.Marker(id)
	if !ok {
		return MarkerDetails{}, ErrMarkerNotFound
	}
	desc := m.Description
	if strings.TrimSpace(desc) == "" {
		desc = "No description provided"
	}
	return MarkerDetails{
		ID:          m.ID,
		Type:        m.Type.Label(),
		ReportedBy:  "Reported by: " + m.ReportedBy,
		Description: desc,
		ThumbsUp:    m.ThumbsUp,
		ThumbsDown:  m.ThumbsDown,
		Flags:       m.Flags,
	}, nil
}

func (s *Screen) Vote(ctx context.Context, id string, dir models.VoteDirection) error {
	return s.holder.UpdateVotes(ctx, id, dir)
}

func (s *Screen) Flag(ctx context.Context, id string) error {
	return s.holder.FlagCamera(ctx, id)
}

func (s *Screen) Close() {
	s.holder.Close()
}
