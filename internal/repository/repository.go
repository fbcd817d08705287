package repository

import (
	"context"
	"errors"

	"github.com/appminic/kamera/internal/models"
)

var ErrNotFound = errors.New("camera report not found")

type Filter struct {
	Limit  int
	Bounds *models.Bounds     // only reports inside the box
	Type   *models.CameraType // only reports of this category
}

// CameraRepository is the document collection holding camera reports. Reports
// are created once and afterwards only change through counter increments.
type CameraRepository interface {
	Create(ctx context.Context, r *models.CameraReport) error
	GetByID(ctx context.Context, id string) (*models.CameraReport, error)
	List(ctx context.Context, opts Filter) ([]models.CameraReport, error)
	IncrementVote(ctx context.Context, id string, dir models.VoteDirection) error
	IncrementFlag(ctx context.Context, id string) error
}

type Backend interface {
	CameraRepository
	Close() error
}
