package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"feedback-media-worker/config"
	"feedback-media-worker/constant"
	"feedback-media-worker/entities"
	"feedback-media-worker/repository"
	"feedback-media-worker/transcriber"
)

// fakeRepo is an in-memory MediaJobRepository. Jobs keep insertion order
// so candidate iteration is deterministic.
type fakeRepo struct {
	jobs   []*entities.MediaJob
	owners map[uuid.UUID]*repository.OwnerAnalytics
	// contended marks jobs another pass claims between the candidate
	// fetch and our claim, so ClaimJob loses the compare-and-set.
	contended map[uuid.UUID]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		owners:    make(map[uuid.UUID]*repository.OwnerAnalytics),
		contended: make(map[uuid.UUID]bool),
	}
}

func (f *fakeRepo) addJob(job *entities.MediaJob) *entities.MediaJob {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.OwnerId == uuid.Nil {
		job.OwnerId = uuid.New()
	}
	if job.OwnerType == "" {
		job.OwnerType = constant.OwnerTypeSurveyResponse
	}
	if _, ok := f.owners[job.OwnerId]; !ok {
		f.owners[job.OwnerId] = &repository.OwnerAnalytics{}
	}
	f.jobs = append(f.jobs, job)
	return job
}

func (f *fakeRepo) job(id uuid.UUID) *entities.MediaJob {
	for _, j := range f.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (f *fakeRepo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return callback(ctx)
}

func (f *fakeRepo) GetDB() *gorm.DB {
	return nil
}

func (f *fakeRepo) FindStaleProcessing(ctx context.Context, mediaType constant.MediaType, cutoff time.Time) ([]*entities.MediaJob, error) {
	var out []*entities.MediaJob
	for _, j := range f.jobs {
		if j.MediaType == mediaType && j.Status == constant.JobStatusProcessing &&
			j.LastAttemptAt != nil && j.LastAttemptAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeRepo) FindUploadedCandidates(ctx context.Context, mediaType constant.MediaType, limit int) ([]*entities.MediaJob, error) {
	var out []*entities.MediaJob
	for _, j := range f.jobs {
		if len(out) >= limit {
			break
		}
		if j.MediaType == mediaType && j.Status == constant.JobStatusUploaded {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeRepo) ClaimJob(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	j := f.job(id)
	if j == nil || j.Status != constant.JobStatusUploaded {
		return false, nil
	}
	if f.contended[id] {
		j.Status = constant.JobStatusProcessing
		attempt := now
		j.LastAttemptAt = &attempt
		return false, nil
	}
	j.Status = constant.JobStatusProcessing
	attempt := now
	j.LastAttemptAt = &attempt
	return true, nil
}

func (f *fakeRepo) MarkJobReady(ctx context.Context, id uuid.UUID, transcriptText, originalLanguage string) error {
	j := f.job(id)
	if j == nil {
		return fmt.Errorf("job not found: %s", id)
	}
	j.Status = constant.JobStatusReady
	j.TranscriptText = transcriptText
	j.OriginalLanguage = originalLanguage
	j.ErrorCode = ""
	j.ErrorDetail = ""
	j.LastErrorAt = nil
	return nil
}

func (f *fakeRepo) MarkJobFailed(ctx context.Context, id uuid.UUID, code constant.ErrorCode, detail string, now time.Time) error {
	j := f.job(id)
	if j == nil {
		return fmt.Errorf("job not found: %s", id)
	}
	j.Status = constant.JobStatusFailed
	j.RetryCount++
	j.ErrorCode = string(code)
	j.ErrorDetail = detail
	errAt := now
	j.LastErrorAt = &errAt
	return nil
}

func (f *fakeRepo) FailJobPermanently(ctx context.Context, id uuid.UUID, now time.Time) error {
	j := f.job(id)
	if j == nil {
		return fmt.Errorf("job not found: %s", id)
	}
	j.Status = constant.JobStatusFailed
	j.ErrorCode = string(constant.ErrorCodeMaxRetriesExceeded)
	j.ErrorDetail = "retry limit reached"
	errAt := now
	j.LastErrorAt = &errAt
	return nil
}

func (f *fakeRepo) RequeueStaleJob(ctx context.Context, id uuid.UUID, now time.Time) error {
	j := f.job(id)
	if j == nil || j.Status != constant.JobStatusProcessing {
		return nil
	}
	j.Status = constant.JobStatusUploaded
	j.RetryCount++
	j.ErrorCode = string(constant.ErrorCodeProcessingTimeoutRequeue)
	j.ErrorDetail = "worker timed out while processing"
	errAt := now
	j.LastErrorAt = &errAt
	return nil
}

func (f *fakeRepo) GetOwnerAnalytics(ctx context.Context, ownerType constant.OwnerType, ownerId uuid.UUID) (*repository.OwnerAnalytics, error) {
	owner, ok := f.owners[ownerId]
	if !ok {
		return nil, fmt.Errorf("owner not found: %s", ownerId)
	}
	copied := *owner
	return &copied, nil
}

func (f *fakeRepo) UpdateOwnerStatus(ctx context.Context, ownerType constant.OwnerType, ownerId uuid.UUID, status constant.ProcessingStatus) error {
	owner, ok := f.owners[ownerId]
	if !ok {
		return fmt.Errorf("owner not found: %s", ownerId)
	}
	owner.ProcessingStatus = status
	return nil
}

func (f *fakeRepo) UpdateOwnerAnalytics(ctx context.Context, ownerType constant.OwnerType, ownerId uuid.UUID, fields repository.OwnerAnalytics) error {
	owner, ok := f.owners[ownerId]
	if !ok {
		return fmt.Errorf("owner not found: %s", ownerId)
	}
	*owner = fields
	return nil
}

// fakeTranscriber returns canned outcomes keyed by storage key.
type fakeTranscriber struct {
	results  map[string]*transcriber.Result
	failures map[string]*transcriber.Failure
	calls    []string
}

func newFakeTranscriber() *fakeTranscriber {
	return &fakeTranscriber{
		results:  make(map[string]*transcriber.Result),
		failures: make(map[string]*transcriber.Failure),
	}
}

func (f *fakeTranscriber) TranscribeAndNormalize(ctx context.Context, storageKey string) (*transcriber.Result, error) {
	f.calls = append(f.calls, storageKey)
	if failure, ok := f.failures[storageKey]; ok {
		return nil, failure
	}
	if result, ok := f.results[storageKey]; ok {
		return result, nil
	}
	return nil, transcriber.NewFailure(constant.ErrorCodeProcessingError, "no fixture for "+storageKey)
}

func testPipelineConfig() config.Pipeline {
	return config.Pipeline{
		MaxRetries:         3,
		RetryBackoffBase:   time.Minute,
		ProcessingTimeout:  15 * time.Minute,
		NormalizedLanguage: "en",
		DefaultBatchLimit:  10,
		OverFetchFactor:    5,
	}
}

func newTestPipeline(repo *fakeRepo, tr transcriber.Transcriber, now time.Time) *pipeline {
	cfg := testPipelineConfig()
	reflector := NewReflector(repo)
	clock := func() time.Time { return now }
	reclaimer := NewReclaimer(repo, reflector, cfg)
	reclaimer.clock = clock
	return &pipeline{
		repo:        repo,
		transcriber: tr,
		reflector:   reflector,
		reclaimer:   reclaimer,
		cfg:         cfg,
		clock:       clock,
	}
}
