package entities

import (
	"time"

	"feedback-media-worker/constant"
	"github.com/google/uuid"
)

// MediaJob is one row per uploaded media attachment. Jobs are created by
// the upload endpoint in "uploaded" state; this worker only mutates status
// and result fields, never creates or deletes rows.
type MediaJob struct {
	ID               uuid.UUID          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OwnerType        constant.OwnerType `json:"owner_type" gorm:"type:varchar(32);not null;index:idx_media_jobs_owner"`
	OwnerId          uuid.UUID          `json:"owner_id" gorm:"type:uuid;not null;index:idx_media_jobs_owner"`
	MediaType        constant.MediaType `json:"media_type" gorm:"type:varchar(16);not null;index:idx_media_jobs_type_status"`
	StorageKey       string             `json:"storage_key" gorm:"type:varchar(500);not null"`
	Status           constant.JobStatus `json:"status" gorm:"type:varchar(20);not null;default:'uploaded';index:idx_media_jobs_type_status"`
	RetryCount       int                `json:"retry_count" gorm:"not null;default:0"`
	LastAttemptAt    *time.Time         `json:"last_attempt_at" gorm:"type:timestamptz"`
	LastErrorAt      *time.Time         `json:"last_error_at" gorm:"type:timestamptz"`
	ErrorCode        string             `json:"error_code" gorm:"type:varchar(64)"`
	ErrorDetail      string             `json:"error_detail" gorm:"type:text"`
	TranscriptText   string             `json:"transcript_text" gorm:"type:text"`
	OriginalLanguage string             `json:"original_language" gorm:"type:varchar(16)"`
	CreatedAt        time.Time          `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time          `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (MediaJob) TableName() string {
	return "media_jobs"
}
