package mapscreen

import (
	"context"
	"sync"

	"github.com/appminic/kamera/internal/models"
)

// ReportedLocation is a LocationProvider fed by the client, which pushes its
// last known fix whenever it has one.
type ReportedLocation struct {
	mu  sync.RWMutex
	fix *models.Coordinates
}

func (l *ReportedLocation) Set(c models.Coordinates) {
	l.mu.Lock()
	l.fix = &c
	l.mu.Unlock()
}

func (l *ReportedLocation) Clear() {
	l.mu.Lock()
	l.fix = nil
	l.mu.Unlock()
}

func (l *ReportedLocation) LastLocation(ctx context.Context) (models.Coordinates, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.fix == nil {
		return models.Coordinates{}, false, nil
	}
	return *l.fix, true, nil
}
