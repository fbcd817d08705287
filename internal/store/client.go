// Package store is the client side contract for the cameras collection: one
// network round trip per call, no retries, no caching.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/appminic/kamera/internal/models"
	"github.com/appminic/kamera/internal/repository"
)

// ErrStoreFailure wraps every failure reported by the backend.
var ErrStoreFailure = errors.New("store failure")

type Client struct {
	repo repository.CameraRepository
	log  *zap.Logger
}

func NewClient(repo repository.CameraRepository, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		repo: repo,
		log:  log.Named("store"),
	}
}

// Create persists report and returns it with the store assigned ID. The
// argument is not modified.
func (c *Client) Create(ctx context.Context, report models.CameraReport) (models.CameraReport, error) {
	if err := report.Validate(); err != nil {
		return models.CameraReport{}, fmt.Errorf("invalid camera report: %w", err)
	}

	c.log.Debug("creating camera marker", zap.String("type", report.Type.String()))
	saved := report
	saved.ID = ""
	if err := c.repo.Create(ctx, &saved); err != nil {
		c.log.Error("error saving camera marker", zap.Error(err))
		return models.CameraReport{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	c.log.Info("saved camera marker", zap.String("id", saved.ID), zap.String("type", saved.Type.String()))
	return saved, nil
}

// ListAll re-fetches the whole collection. Failures are logged and yield an
// empty list.
func (c *Client) ListAll(ctx context.Context) []models.CameraReport {
	markers, err := c.repo.List(ctx, repository.Filter{})
	if err != nil {
		c.log.Error("error fetching camera markers", zap.Error(err))
		return []models.CameraReport{}
	}
	if markers == nil {
		markers = []models.CameraReport{}
	}
	c.log.Debug("retrieved camera markers", zap.Int("count", len(markers)))
	return markers
}

func (c *Client) IncrementVote(ctx context.Context, id string, dir models.VoteDirection) error {
	if err := c.repo.IncrementVote(ctx, id, dir); err != nil {
		c.log.Error("error updating votes", zap.String("id", id), zap.Stringer("direction", dir), zap.Error(err))
		return wrap(err)
	}
	return nil
}

func (c *Client) IncrementFlag(ctx context.Context, id string) error {
	if err := c.repo.IncrementFlag(ctx, id); err != nil {
		c.log.Error("error flagging camera", zap.String("id", id), zap.Error(err))
		return wrap(err)
	}
	return nil
}

// wrap keeps ErrNotFound matchable alongside ErrStoreFailure.
func wrap(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}
