package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iago/review-radar-back/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoCollection = "analyses"

// MongoJobsRepository keeps one document per analysis, keyed by _id.
type MongoJobsRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoJobsRepository(ctx context.Context, uri, database string) (*MongoJobsRepository, error) {
	if database == "" {
		database = "review_radar"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	collection := client.Database(database).Collection(mongoCollection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure mongo index: %w", err)
	}

	return &MongoJobsRepository{client: client, collection: collection}, nil
}

func (r *MongoJobsRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoJobsRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *MongoJobsRepository) CreateJob(ctx context.Context, job *domain.AnalysisJob) error {
	if _, err := r.collection.InsertOne(ctx, job); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *MongoJobsRepository) UpdateJob(ctx context.Context, jobID string, update domain.JobUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	set := bson.M{
		"status":     update.Status,
		"notes":      update.StageNote,
		"updated_at": update.At,
	}
	if update.Result != nil {
		set["result"] = update.Result
	}

	filter := bson.M{
		"_id":    jobID,
		"status": bson.M{"$in": update.Status.Predecessors()},
	}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	current, err := r.GetJobStatus(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, update.Status)
}

func (r *MongoJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.AnalysisJob, error) {
	var job domain.AnalysisJob
	if err := r.collection.FindOne(ctx, bson.M{"_id": jobID}).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find analysis: %w", err)
	}
	normalizeTimes(&job)
	return &job, nil
}

func (r *MongoJobsRepository) GetJobStatus(ctx context.Context, jobID string) (*domain.JobStatusView, error) {
	opts := options.FindOne().SetProjection(bson.M{"result": 0})

	var job domain.AnalysisJob
	if err := r.collection.FindOne(ctx, bson.M{"_id": jobID}, opts).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find analysis status: %w", err)
	}
	normalizeTimes(&job)
	view := job.StatusView()
	return &view, nil
}

func (r *MongoJobsRepository) ListRecent(ctx context.Context, limit int) ([]domain.JobSummary, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{
			"_id":                      1,
			"url":                      1,
			"status":                   1,
			"created_at":               1,
			"result.product.name":      1,
			"result.sentiment_summary": 1,
		})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}

	var jobs []domain.AnalysisJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("decode analyses: %w", err)
	}

	items := make([]domain.JobSummary, 0, len(jobs))
	for i := range jobs {
		normalizeTimes(&jobs[i])
		items = append(items, jobs[i].Summary())
	}
	return items, nil
}

func (r *MongoJobsRepository) FailUnfinished(ctx context.Context, note string, at time.Time) (int, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"status": bson.M{"$in": domain.JobStatusFailed.Predecessors()}},
		bson.M{"$set": bson.M{
			"status":     domain.JobStatusFailed,
			"notes":      note,
			"updated_at": at,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("fail unfinished analyses: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func normalizeTimes(job *domain.AnalysisJob) {
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
}
