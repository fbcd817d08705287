package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/appminic/kamera/internal/models"
)

const camerasCollection = "cameras"

// MongoDB keeps reports as documents in the "cameras" collection, keyed by a
// store generated ObjectID hex string.
type MongoDB struct {
	client  *mongo.Client
	col     *mongo.Collection
	timeout time.Duration
}

func NewMongoDB(ctx context.Context, uri, dbName string, timeout time.Duration) (*MongoDB, error) {
	start := time.Now()
	zap.L().Info("mongo: connecting", zap.String("uri", redactURI(uri)), zap.String("db", dbName))

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(dctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(dctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	m := &MongoDB{
		client:  client,
		col:     client.Database(dbName).Collection(camerasCollection),
		timeout: timeout,
	}
	if err := m.createIndexes(ctx); err != nil {
		zap.L().Warn("mongo: index creation warnings", zap.Error(err))
	}

	zap.L().Info("mongo: connected", zap.Duration("took", time.Since(start).Round(time.Millisecond)))
	return m, nil
}

func (m *MongoDB) createIndexes(ctx context.Context) error {
	ictx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.col.Indexes().CreateMany(ictx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "latitude", Value: 1}, {Key: "longitude", Value: 1}}},
	})
	return err
}

func (m *MongoDB) Create(ctx context.Context, r *models.CameraReport) error {
	doc := *r
	doc.ID = primitive.NewObjectID().Hex()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("error inserting camera: %w", err)
	}
	r.ID = doc.ID
	return nil
}

func (m *MongoDB) GetByID(ctx context.Context, id string) (*models.CameraReport, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var r models.CameraReport
	err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading camera %s: %w", id, err)
	}
	r.Timestamp = r.Timestamp.UTC()
	return &r, nil
}

func (m *MongoDB) List(ctx context.Context, opts Filter) ([]models.CameraReport, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	findOpts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := m.col.Find(ctx, mongoFilter(opts), findOpts)
	if err != nil {
		return nil, fmt.Errorf("error listing cameras: %w", err)
	}
	defer cur.Close(ctx)

	reports := make([]models.CameraReport, 0)
	if err := cur.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("error decoding cameras: %w", err)
	}
	for i := range reports {
		reports[i].Timestamp = reports[i].Timestamp.UTC()
	}
	return reports, nil
}

func (m *MongoDB) IncrementVote(ctx context.Context, id string, dir models.VoteDirection) error {
	field, err := voteField(dir)
	if err != nil {
		return err
	}
	return m.increment(ctx, id, field)
}

func (m *MongoDB) IncrementFlag(ctx context.Context, id string) error {
	return m.increment(ctx, id, "flags")
}

func (m *MongoDB) increment(ctx context.Context, id, field string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	res, err := m.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: 1}})
	if err != nil {
		return fmt.Errorf("error incrementing %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func mongoFilter(opts Filter) bson.M {
	filter := bson.M{}
	if opts.Bounds != nil {
		filter["latitude"] = bson.M{"$gte": opts.Bounds.Southwest.Latitude, "$lte": opts.Bounds.Northeast.Latitude}
		filter["longitude"] = bson.M{"$gte": opts.Bounds.Southwest.Longitude, "$lte": opts.Bounds.Northeast.Longitude}
	}
	if opts.Type != nil {
		filter["type"] = string(*opts.Type)
	}
	return filter
}

func voteField(dir models.VoteDirection) (string, error) {
	switch dir {
	case models.VoteUp:
		return "thumbs_up", nil
	case models.VoteDown:
		return "thumbs_down", nil
	default:
		return "", fmt.Errorf("invalid vote direction: %d", dir)
	}
}

func redactURI(raw string) string {
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.UserPassword("****", "****")
	return u.String()
}
