package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iago/review-radar-back/internal/domain"
	"github.com/iago/review-radar-back/internal/repository"
	"github.com/iago/review-radar-back/internal/worker"
	"go.uber.org/zap"
)

const (
	msgURLRequired    = "Product URL is required"
	msgURLInvalid     = "Invalid URL format"
	failureNotePrefix = "Error: "
)

// Dispatcher hands a persisted job to background execution without waiting
// for it.
type Dispatcher interface {
	Dispatch(jobID, productURL string) error
}

type JobsService struct {
	repo       repository.JobsRepository
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewJobsService(repo repository.JobsRepository, dispatcher Dispatcher, logger *zap.Logger) *JobsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobsService{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the product URL, records a pending job and starts its
// pipeline in the background. It returns as soon as the job is stored.
func (s *JobsService) Submit(ctx context.Context, rawURL string) (*domain.AnalysisJob, error) {
	productURL, err := validateProductURL(rawURL)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &domain.AnalysisJob{
		ID:        uuid.NewString(),
		SourceURL: productURL,
		Status:    domain.JobStatusPending,
		StageNote: worker.NoteQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, &domain.PersistenceError{Op: "create analysis", Err: err}
	}

	if err := s.dispatcher.Dispatch(job.ID, job.SourceURL); err != nil {
		update := domain.JobUpdate{
			Status:    domain.JobStatusFailed,
			StageNote: failureNotePrefix + err.Error(),
			At:        s.now(),
		}
		if updateErr := s.repo.UpdateJob(context.WithoutCancel(ctx), job.ID, update); updateErr != nil {
			s.logger.Error("failed to record refused analysis",
				zap.String("analysis_id", job.ID),
				zap.Error(updateErr),
			)
		}
		return nil, fmt.Errorf("dispatch analysis: %w", err)
	}

	s.logger.Info("analysis submitted", zap.String("analysis_id", job.ID), zap.String("url", job.SourceURL))
	return job, nil
}

func (s *JobsService) GetJob(ctx context.Context, jobID string) (*domain.AnalysisJob, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, translateLookupError(jobID, "load analysis", err)
	}
	return job, nil
}

func (s *JobsService) GetStatus(ctx context.Context, jobID string) (*domain.JobStatusView, error) {
	view, err := s.repo.GetJobStatus(ctx, jobID)
	if err != nil {
		return nil, translateLookupError(jobID, "load analysis status", err)
	}
	return view, nil
}

// ListRecent returns at most repository.DefaultRecentLimit summaries, newest
// first.
func (s *JobsService) ListRecent(ctx context.Context, limit int) ([]domain.JobSummary, error) {
	if limit <= 0 || limit > repository.DefaultRecentLimit {
		limit = repository.DefaultRecentLimit
	}
	items, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list recent analyses", Err: err}
	}
	return items, nil
}

func translateLookupError(jobID, op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.NotFoundError{ID: jobID}
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

func validateProductURL(rawURL string) (string, error) {
	value := strings.TrimSpace(rawURL)
	if value == "" {
		return "", &domain.ValidationError{Message: msgURLRequired}
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Host == "" {
		return "", &domain.ValidationError{Message: msgURLInvalid}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", &domain.ValidationError{Message: msgURLInvalid}
	}
	return value, nil
}
