// Package viewstate holds what a map client is looking at: the marker list,
// a loading flag, and the last camera viewport. Nothing here is persisted.
package viewstate

import (
	"context"
	"math"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/appminic/kamera/internal/models"
	"github.com/appminic/kamera/internal/stream"
)

// Store is the subset of store.Client the holder drives.
type Store interface {
	Create(ctx context.Context, report models.CameraReport) (models.CameraReport, error)
	ListAll(ctx context.Context) []models.CameraReport
	IncrementVote(ctx context.Context, id string, dir models.VoteDirection) error
	IncrementFlag(ctx context.Context, id string) error
}

// Snapshot is the observable state published after every change.
type Snapshot struct {
	Markers []models.CameraReport `json:"markers"`
	Loading bool                  `json:"loading"`
	Bounds  *models.Bounds        `json:"bounds,omitempty"`
}

type Holder struct {
	store   Store
	log     *zap.Logger
	changes *stream.Broadcaster[Snapshot]

	mu       sync.RWMutex
	markers  []models.CameraReport
	inflight int
	loadGen  uint64 // last Load started
	shownGen uint64 // Load whose result is in markers
	bounds   *models.Bounds
	position *models.CameraPosition
}

func NewHolder(store Store, log *zap.Logger) *Holder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Holder{
		store:   store,
		log:     log.Named("viewstate"),
		changes: stream.NewBroadcaster[Snapshot](),
		markers: []models.CameraReport{},
	}
}

// Radius is the half width, in coordinate degrees, of the area considered
// visible at zoom: 0.01 at zoom 15, doubling per zoom level out. There is no
// correction for latitude.
func Radius(zoom float64) float64 {
	return 0.01 * math.Pow(2, 15-zoom)
}

func BoundsAround(center models.Coordinates, zoom float64) models.Bounds {
	r := Radius(zoom)
	return models.Bounds{
		Southwest: models.Coordinates{Latitude: center.Latitude - r, Longitude: center.Longitude - r},
		Northeast: models.Coordinates{Latitude: center.Latitude + r, Longitude: center.Longitude + r},
	}
}

// Load replaces the marker list with a fresh listing of the store. A listing
// that finishes after a later-started Load already applied is discarded.
func (h *Holder) Load(ctx context.Context) {
	h.mu.Lock()
	h.inflight++
	h.loadGen++
	gen := h.loadGen
	h.mu.Unlock()
	h.publish()

	markers := h.store.ListAll(ctx)
	h.log.Debug("received markers", zap.Int("count", len(markers)), zap.Uint64("gen", gen))

	h.mu.Lock()
	if gen > h.shownGen {
		h.markers = markers
		h.shownGen = gen
	}
	h.inflight--
	h.mu.Unlock()
	h.publish()
}

func (h *Holder) Markers() []models.CameraReport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.markers)
}

func (h *Holder) Marker(id string) (models.CameraReport, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, m := range h.markers {
		if m.ID == id {
			return m, true
		}
	}
	return models.CameraReport{}, false
}

func (h *Holder) IsLoading() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.inflight > 0
}

func (h *Holder) UpdateVisibleMarkers(center models.Coordinates, zoom float64) models.Bounds {
	b := BoundsAround(center, zoom)

	h.mu.Lock()
	h.bounds = &b
	h.mu.Unlock()

	h.log.Debug("updated visible bounds",
		zap.Float64("radius", Radius(zoom)),
		zap.Any("bounds", b),
	)
	h.publish()
	return b
}

func (h *Holder) VisibleBounds() (models.Bounds, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.bounds == nil {
		return models.Bounds{}, false
	}
	return *h.bounds, true
}

// VisibleMarkers returns the markers inside the visible bounds, or none
// before the first viewport update.
func (h *Holder) VisibleMarkers() []models.CameraReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	visible := make([]models.CameraReport, 0, len(h.markers))
	if h.bounds == nil {
		return visible
	}
	for _, m := range h.markers {
		if h.bounds.Contains(m.Coordinates()) {
			visible = append(visible, m)
		}
	}
	return visible
}

func (h *Holder) SaveCameraPosition(center models.Coordinates, zoom float64) {
	h.mu.Lock()
	h.position = &models.CameraPosition{Target: center, Zoom: zoom}
	h.mu.Unlock()
}

func (h *Holder) HasSavedPosition() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.position != nil
}

func (h *Holder) LastCameraPosition() (models.CameraPosition, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.position == nil {
		return models.CameraPosition{}, false
	}
	return *h.position, true
}

// AddCameraMarker creates a report and reloads the marker list on success.
func (h *Holder) AddCameraMarker(ctx context.Context, t models.CameraType, at models.Coordinates, reportedBy, description string) (models.CameraReport, error) {
	h.log.Debug("adding camera marker", zap.String("type", t.String()), zap.Any("location", at))

	saved, err := h.store.Create(ctx, models.NewCameraReport(t, at, reportedBy, description))
	if err != nil {
		h.log.Error("failed to add marker", zap.Error(err))
		return models.CameraReport{}, err
	}

	h.Load(ctx)
	return saved, nil
}

// UpdateVotes and FlagCamera always reload, so a failed increment still
// shows the store's current counts.
func (h *Holder) UpdateVotes(ctx context.Context, id string, dir models.VoteDirection) error {
	err := h.store.IncrementVote(ctx, id, dir)
	h.Load(ctx)
	return err
}

func (h *Holder) FlagCamera(ctx context.Context, id string) error {
	err := h.store.IncrementFlag(ctx, id)
	h.Load(ctx)
	return err
}

func (h *Holder) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := Snapshot{
		Markers: slices.Clone(h.markers),
		Loading: h.inflight > 0,
	}
	if h.bounds != nil {
		b := *h.bounds
		s.Bounds = &b
	}
	return s
}

// Subscribe streams a Snapshot after each change. The channel closes on
// Unsubscribe or Close.
func (h *Holder) Subscribe() (uint64, <-chan Snapshot) {
	return h.changes.Subscribe()
}

func (h *Holder) Unsubscribe(id uint64) {
	h.changes.Unsubscribe(id)
}

func (h *Holder) Close() {
	h.changes.Close()
}

func (h *Holder) publish() {
	h.changes.Broadcast(h.Snapshot())
}
