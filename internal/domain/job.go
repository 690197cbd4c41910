package domain

import (
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces pending -> processing -> {completed | failed}.
// processing -> processing is allowed so stage notes can be refreshed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusProcessing || next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Predecessors lists the stored statuses from which s may be written.
// Stores use it to guard conditional updates.
func (s JobStatus) Predecessors() []JobStatus {
	out := make([]JobStatus, 0, 2)
	for _, candidate := range []JobStatus{JobStatusPending, JobStatusProcessing} {
		if candidate.CanTransitionTo(s) {
			out = append(out, candidate)
		}
	}
	return out
}

// AnalysisJob is one tracked execution of the analysis pipeline for a URL.
type AnalysisJob struct {
	ID        string          `json:"analysis_id" bson:"_id"`
	SourceURL string          `json:"url" bson:"url"`
	Status    JobStatus       `json:"status" bson:"status"`
	StageNote string          `json:"notes" bson:"notes"`
	Result    *AnalysisResult `json:"result,omitempty" bson:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" bson:"updated_at"`
}

// JobUpdate is a single state transition applied by the owning pipeline task.
type JobUpdate struct {
	Status    JobStatus
	StageNote string
	Result    *AnalysisResult
	At        time.Time
}

// Validate checks that the update respects the result/status coupling.
func (u JobUpdate) Validate() error {
	if !u.Status.Valid() {
		return &ValidationError{Message: "unknown status " + string(u.Status)}
	}
	if u.Status == JobStatusCompleted && u.Result == nil {
		return &ValidationError{Message: "completed update requires a result"}
	}
	if u.Status != JobStatusCompleted && u.Result != nil {
		return &ValidationError{Message: "result is only allowed with completed status"}
	}
	return nil
}

// Apply mutates job in place. Callers check the transition first.
func (u JobUpdate) Apply(job *AnalysisJob) {
	job.Status = u.Status
	job.StageNote = u.StageNote
	if u.Result != nil {
		job.Result = u.Result
	}
	job.UpdatedAt = u.At
}

// JobStatusView is the lightweight projection served to polling clients.
type JobStatusView struct {
	ID        string    `json:"analysis_id"`
	Status    JobStatus `json:"status"`
	StageNote string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobSummary is a row of the recent analyses listing.
type JobSummary struct {
	ID               string            `json:"analysis_id"`
	SourceURL        string            `json:"url"`
	ProductName      string            `json:"product_name,omitempty"`
	Status           JobStatus         `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	SentimentSummary *SentimentSummary `json:"sentiment_summary,omitempty"`
}

func (j *AnalysisJob) StatusView() JobStatusView {
	return JobStatusView{
		ID:        j.ID,
		Status:    j.Status,
		StageNote: j.StageNote,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

func (j *AnalysisJob) Summary() JobSummary {
	summary := JobSummary{
		ID:        j.ID,
		SourceURL: j.SourceURL,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
	}
	if j.Result != nil {
		summary.ProductName = j.Result.Product.Name
		sentiment := j.Result.SentimentSummary
		summary.SentimentSummary = &sentiment
	}
	return summary
}
