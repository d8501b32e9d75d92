package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
)

const (
	// MaxRetries is the maximum number of attempts for a failed job
	MaxRetries = 3

	// claimBatchSize bounds how many jobs one poll claims.
	claimBatchSize = 20
)

// IndexJobRepository defines the interface for index job persistence
type IndexJobRepository interface {
	// ClaimPending retrieves and claims pending index jobs
	ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error)

	// UpdateStatus updates the status of an index job
	UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error

	// RequeueForRetry puts a failed job back in the pending queue
	RequeueForRetry(ctx context.Context, id string, errMsg string) error
}

// Indexer defines the interface for running the document index pipeline
type Indexer interface {
	Index(ctx context.Context, documentID string) (int, error)
}

// IndexWorker processes index jobs. It owns retry scheduling: the indexer
// itself never retries, so this worker decides which failures get requeued.
type IndexWorker struct {
	repo    IndexJobRepository
	indexer Indexer
}

// NewIndexWorker creates a new IndexWorker instance
func NewIndexWorker(repo IndexJobRepository, indexer Indexer) *IndexWorker {
	return &IndexWorker{
		repo:    repo,
		indexer: indexer,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending index jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IndexWorker) processJob(ctx context.Context, job *domain.IndexJob) error {
	log.Printf("Processing job %s for document %s", job.ID, job.DocumentID)

	chunkCount, err := w.indexer.Index(ctx, job.DocumentID)
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed: %d chunks indexed", job.ID, chunkCount)
	return nil
}

// handleJobFailure decides between retry and permanent failure. Failures the
// provider marked permanent, and input problems no retry can fix, fail
// immediately; everything else is retried up to MaxRetries.
func (w *IndexWorker) handleJobFailure(ctx context.Context, job *domain.IndexJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if isPermanentFailure(jobErr) {
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, jobErr.Error()); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.RequeueForRetry(ctx, job.ID, errMsg); err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	return nil
}

func isPermanentFailure(err error) bool {
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		return !ue.Transient
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		switch de.Code {
		case domain.ErrCodeInvalidArgument, domain.ErrCodeNotFound:
			return true
		}
	}

	return false
}
