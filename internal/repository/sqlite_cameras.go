package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/appminic/kamera/internal/models"
)

const cameraColumns = `id, type, latitude, longitude, reported_by, timestamp, thumbs_up, thumbs_down, flags, description`

// Create stores r under a freshly generated ID and writes the ID back into r.
// Any ID already set by the caller is replaced.
func (s *SQLiteDB) Create(ctx context.Context, r *models.CameraReport) error {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cameras (`+cameraColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(r.Type), r.Latitude, r.Longitude, r.ReportedBy, r.Timestamp.UnixMilli(),
		r.ThumbsUp, r.ThumbsDown, r.Flags, r.Description,
	)
	if err != nil {
		return fmt.Errorf("error inserting camera: %w", err)
	}
	r.ID = id
	return nil
}

func (s *SQLiteDB) GetByID(ctx context.Context, id string) (*models.CameraReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cameraColumns+` FROM cameras WHERE id = ?`, id)
	r, err := scanCamera(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading camera %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteDB) List(ctx context.Context, opts Filter) ([]models.CameraReport, error) {
	var (
		where []string
		args  []any
	)
	if opts.Bounds != nil {
		where = append(where, "latitude BETWEEN ? AND ?", "longitude BETWEEN ? AND ?")
		args = append(args,
			opts.Bounds.Southwest.Latitude, opts.Bounds.Northeast.Latitude,
			opts.Bounds.Southwest.Longitude, opts.Bounds.Northeast.Longitude,
		)
	}
	if opts.Type != nil {
		where = append(where, "type = ?")
		args = append(args, string(*opts.Type))
	}

	query := `SELECT ` + cameraColumns + ` FROM cameras`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing cameras: %w", err)
	}
	defer rows.Close()

	reports := make([]models.CameraReport, 0)
	for rows.Next() {
		r, err := scanCamera(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning camera: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func (s *SQLiteDB) IncrementVote(ctx context.Context, id string, dir models.VoteDirection) error {
	column, err := voteField(dir)
	if err != nil {
		return err
	}
	return s.increment(ctx, id, column)
}

func (s *SQLiteDB) IncrementFlag(ctx context.Context, id string) error {
	return s.increment(ctx, id, "flags")
}

// increment bumps a single counter column in one statement so concurrent
// voters never lose updates.
func (s *SQLiteDB) increment(ctx context.Context, id, column string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE cameras SET `+column+` = `+column+` + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error incrementing %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCamera(row rowScanner) (*models.CameraReport, error) {
	var (
		r      models.CameraReport
		typ    string
		millis int64
	)
	if err := row.Scan(&r.ID, &typ, &r.Latitude, &r.Longitude, &r.ReportedBy, &millis,
		&r.ThumbsUp, &r.ThumbsDown, &r.Flags, &r.Description); err != nil {
		return nil, err
	}
	r.Type = models.CameraType(typ)
	r.Timestamp = time.UnixMilli(millis).UTC()
	return &r, nil
}
