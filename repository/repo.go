package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"feedback-media-worker/constant"
	"feedback-media-worker/entities"
)

// OwnerAnalytics is the slice of an owner record this worker is allowed
// to author: the processing status plus the analytics payload.
type OwnerAnalytics struct {
	ProcessingStatus   constant.ProcessingStatus
	TranscriptText     string
	NormalizedText     string
	NormalizedLanguage string
	OriginalLanguage   string
	Sentiment          string
}

// Empty reports whether none of the analytics fields are populated.
// The processing status does not count; it is a scalar the worker always
// owns.
func (a OwnerAnalytics) Empty() bool {
	return a.TranscriptText == "" &&
		a.NormalizedText == "" &&
		a.NormalizedLanguage == "" &&
		a.OriginalLanguage == "" &&
		a.Sentiment == ""
}

type MediaJobRepository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	GetDB() *gorm.DB
	FindStaleProcessing(ctx context.Context, mediaType constant.MediaType, cutoff time.Time) ([]*entities.MediaJob, error)
	FindUploadedCandidates(ctx context.Context, mediaType constant.MediaType, limit int) ([]*entities.MediaJob, error)
	ClaimJob(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkJobReady(ctx context.Context, id uuid.UUID, transcriptText, originalLanguage string) error
	MarkJobFailed(ctx context.Context, id uuid.UUID, code constant.ErrorCode, detail string, now time.Time) error
	FailJobPermanently(ctx context.Context, id uuid.UUID, now time.Time) error
	RequeueStaleJob(ctx context.Context, id uuid.UUID, now time.Time) error
	GetOwnerAnalytics(ctx context.Context, ownerType constant.OwnerType, ownerId uuid.UUID) (*OwnerAnalytics, error)
	UpdateOwnerStatus(ctx context.Context, ownerType constant.OwnerType, ownerId uuid.UUID, status constant.ProcessingStatus) error
	UpdateOwnerAnalytics(ctx context.Context, ownerType constant.OwnerType, ownerId uuid.UUID, fields OwnerAnalytics) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) MediaJobRepository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

type txKey struct{}

// Transaction runs callback inside a database transaction. The tx handle
// travels in the context so repository calls made from the callback join
// the same transaction.
func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return callback(context.WithValue(ctx, txKey{}, tx))
	}, opts...)
}

func (r *repo) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *repo) FindStaleProcessing(ctx context.Context, mediaType constant.MediaType, cutoff time.Time) ([]*entities.MediaJob, error) {
	var jobs []*entities.MediaJob
	err := r.conn(ctx).
		Where("media_type = ? AND status = ? AND last_attempt_at < ?", mediaType, constant.JobStatusProcessing, cutoff).
		Order("last_attempt_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) FindUploadedCandidates(ctx context.Context, mediaType constant.MediaType, limit int) ([]*entities.MediaJob, error) {
	var jobs []*entities.MediaJob
	err := r.conn(ctx).
		Where("media_type = ? AND status = ?", mediaType, constant.JobStatusUploaded).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ClaimJob moves a job from uploaded to processing. The status predicate
// makes the claim a compare-and-set, so two overlapping polling passes
// cannot both claim the same row.
func (r *repo) ClaimJob(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.conn(ctx).Model(&entities.MediaJob{}).
		Where("id = ? AND status = ?", id, constant.JobStatusUploaded).
		Updates(map[string]interface{}{
			"status":          constant.JobStatusProcessing,
			"last_attempt_at": now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkJobReady(ctx context.Context, id uuid.UUID, transcriptText, originalLanguage string) error {
	return r.conn(ctx).Model(&entities.MediaJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            constant.JobStatusReady,
			"transcript_text":   transcriptText,
			"original_language": originalLanguage,
			"error_code":        "",
			"error_detail":      "",
			"last_error_at":     nil,
		}).Error
}

// MarkJobFailed records one failed attempt: failed status, bumped retry
// count, error bookkeeping for the backoff gate.
func (r *repo) MarkJobFailed(ctx context.Context, id uuid.UUID, code constant.ErrorCode, detail string, now time.Time) error {
	return r.conn(ctx).Model(&entities.MediaJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        constant.JobStatusFailed,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_code":    string(code),
			"error_detail":  detail,
			"last_error_at": now,
		}).Error
}

// FailJobPermanently is the terminal transition once retries are
// exhausted. The retry count is left alone; it already records the number
// of attempts made.
func (r *repo) FailJobPermanently(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.conn(ctx).Model(&entities.MediaJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        constant.JobStatusFailed,
			"error_code":    string(constant.ErrorCodeMaxRetriesExceeded),
			"error_detail":  "retry limit reached",
			"last_error_at": now,
		}).Error
}

// RequeueStaleJob returns an abandoned processing job to the queue.
func (r *repo) RequeueStaleJob(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.conn(ctx).Model(&entities.MediaJob{}).
		Where("id = ? AND status = ?", id, constant.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":        constant.JobStatusUploaded,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_code":    string(constant.ErrorCodeProcessingTimeoutRequeue),
			"error_detail":  "worker timed out while processing",
			"last_error_at": now,
		}).Error
}

func (r *repo) GetOwnerAnalytics(ctx context.Context, ownerType constant.OwnerType, ownerId uuid.UUID) (*OwnerAnalytics, error) {
	switch ownerType {
	case constant.OwnerTypeSurveyResponse:
		owner := &entities.SurveyResponse{}
		if err := r.conn(ctx).First(owner, "id = ?", ownerId).Error; err != nil {
			return nil, err
		}
		return &OwnerAnalytics{
			ProcessingStatus:   owner.ProcessingStatus,
			TranscriptText:     owner.TranscriptText,
			NormalizedText:     owner.NormalizedText,
			NormalizedLanguage: owner.NormalizedLanguage,
			OriginalLanguage:   owner.OriginalLanguage,
			Sentiment:          owner.Sentiment,
		}, nil
	case constant.OwnerTypeFeedback:
		owner := &entities.Feedback{}
		if err := r.conn(ctx).First(owner, "id = ?", ownerId).Error; err != nil {
			return nil, err
		}
		return &OwnerAnalytics{
			ProcessingStatus:   owner.ProcessingStatus,
			TranscriptText:     owner.TranscriptText,
			NormalizedText:     owner.NormalizedText,
			NormalizedLanguage: owner.NormalizedLanguage,
			OriginalLanguage:   owner.OriginalLanguage,
			Sentiment:          owner.Sentiment,
		}, nil
	default:
		return nil, fmt.Errorf("unknown owner type: %s", ownerType)
	}
}

func (r *repo) UpdateOwnerStatus(ctx context.Context, ownerType constant.OwnerType, ownerId uuid.UUID, status constant.ProcessingStatus) error {
	model, err := ownerModel(ownerType)
	if err != nil {
		return err
	}
	return r.conn(ctx).Model(model).
		Where("id = ?", ownerId).
		Update("processing_status", string(status)).Error
}

func (r *repo) UpdateOwnerAnalytics(ctx context.Context, ownerType constant.OwnerType, ownerId uuid.UUID, fields OwnerAnalytics) error {
	model, err := ownerModel(ownerType)
	if err != nil {
		return err
	}
	return r.conn(ctx).Model(model).
		Where("id = ?", ownerId).
		Updates(map[string]interface{}{
			"processing_status":   string(fields.ProcessingStatus),
			"transcript_text":     fields.TranscriptText,
			"normalized_text":     fields.NormalizedText,
			"normalized_language": fields.NormalizedLanguage,
			"original_language":   fields.OriginalLanguage,
			"sentiment":           fields.Sentiment,
		}).Error
}

func ownerModel(ownerType constant.OwnerType) (interface{}, error) {
	switch ownerType {
	case constant.OwnerTypeSurveyResponse:
		return &entities.SurveyResponse{}, nil
	case constant.OwnerTypeFeedback:
		return &entities.Feedback{}, nil
	default:
		return nil, fmt.Errorf("unknown owner type: %s", ownerType)
	}
}
