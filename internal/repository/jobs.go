package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iago/review-radar-back/internal/domain"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateID       = errors.New("analysis id already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// DefaultRecentLimit bounds ListRecent when callers pass a non-positive limit.
const DefaultRecentLimit = 10

// JobsRepository abstracts analysis job persistence and query operations.
//
// UpdateJob must apply the update as one unit and only when the stored status
// can transition to update.Status; otherwise it returns ErrInvalidTransition.
type JobsRepository interface {
	CreateJob(ctx context.Context, job *domain.AnalysisJob) error
	UpdateJob(ctx context.Context, jobID string, update domain.JobUpdate) error
	GetJob(ctx context.Context, jobID string) (*domain.AnalysisJob, error)
	GetJobStatus(ctx context.Context, jobID string) (*domain.JobStatusView, error)
	ListRecent(ctx context.Context, limit int) ([]domain.JobSummary, error)
	// FailUnfinished marks every pending or processing job as failed. It is
	// only safe before any pipeline task is dispatched, and only while a single
	// service instance uses the store: it also fails jobs owned by other
	// running processes.
	FailUnfinished(ctx context.Context, note string, at time.Time) (int, error)
}

// HealthChecker is implemented by repositories backed by a remote engine.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// MemoryJobsRepository stores jobs in memory for local development and tests.
type MemoryJobsRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.AnalysisJob
}

func NewMemoryJobsRepository() *MemoryJobsRepository {
	return &MemoryJobsRepository{
		jobs: make(map[string]*domain.AnalysisJob),
	}
}

func (r *MemoryJobsRepository) CreateJob(_ context.Context, job *domain.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return ErrDuplicateID
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryJobsRepository) UpdateJob(_ context.Context, jobID string, update domain.JobUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if !job.Status.CanTransitionTo(update.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, update.Status)
	}

	next := cloneJob(job)
	update.Apply(next)
	if update.Result != nil {
		next.Result = cloneResult(update.Result)
	}
	r.jobs[jobID] = next
	return nil
}

func (r *MemoryJobsRepository) GetJob(_ context.Context, jobID string) (*domain.AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryJobsRepository) GetJobStatus(_ context.Context, jobID string) (*domain.JobStatusView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	view := job.StatusView()
	return &view, nil
}

func (r *MemoryJobsRepository) ListRecent(_ context.Context, limit int) ([]domain.JobSummary, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	r.mu.RLock()
	items := make([]domain.JobSummary, 0, len(r.jobs))
	for _, job := range r.jobs {
		items = append(items, job.Summary())
	}
	r.mu.RUnlock()

	sortSummaries(items)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *MemoryJobsRepository) FailUnfinished(_ context.Context, note string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, job := range r.jobs {
		if job.Status.IsTerminal() {
			continue
		}
		next := cloneJob(job)
		domain.JobUpdate{Status: domain.JobStatusFailed, StageNote: note, At: at}.Apply(next)
		r.jobs[id] = next
		count++
	}
	return count, nil
}

// sortSummaries orders newest first; equal timestamps fall back to id so
// listings are stable across calls.
func sortSummaries(items []domain.JobSummary) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func cloneJob(job *domain.AnalysisJob) *domain.AnalysisJob {
	if job == nil {
		return nil
	}
	clone := *job
	clone.Result = cloneResult(job.Result)
	return &clone
}

func cloneResult(result *domain.AnalysisResult) *domain.AnalysisResult {
	if result == nil {
		return nil
	}
	clone := *result
	clone.RatingDistribution = append([]domain.RatingBucket(nil), result.RatingDistribution...)
	clone.Attributes = make([]domain.AttributeScore, len(result.Attributes))
	for i, attribute := range result.Attributes {
		attribute.TopPositivePhrases = append([]string(nil), attribute.TopPositivePhrases...)
		attribute.TopNegativePhrases = append([]string(nil), attribute.TopNegativePhrases...)
		clone.Attributes[i] = attribute
	}
	clone.KeywordInsights.PositiveKeywords = append([]domain.KeywordWeight(nil), result.KeywordInsights.PositiveKeywords...)
	clone.KeywordInsights.NegativeKeywords = append([]domain.KeywordWeight(nil), result.KeywordInsights.NegativeKeywords...)
	clone.IssuesOverview.MostMentioned = append([]domain.IssueMention(nil), result.IssuesOverview.MostMentioned...)
	clone.SampleReviews = make([]domain.AnnotatedReview, len(result.SampleReviews))
	for i, review := range result.SampleReviews {
		review.ExtractedKeywords = append([]string(nil), review.ExtractedKeywords...)
		review.DetectedAttributes = append([]string(nil), review.DetectedAttributes...)
		clone.SampleReviews[i] = review
	}
	clone.AreasImprovement = append([]domain.ImprovementArea(nil), result.AreasImprovement...)
	clone.DashboardHints.RecommendedActions = append([]string(nil), result.DashboardHints.RecommendedActions...)
	return &clone
}
