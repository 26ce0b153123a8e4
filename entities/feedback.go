package entities

import (
	"time"

	"feedback-media-worker/constant"
	"github.com/google/uuid"
)

// Feedback is the owner record for standalone feedback entries. Same
// ownership rule as SurveyResponse: the worker touches processing_status
// and the analytics fields only.
type Feedback struct {
	ID                 uuid.UUID                 `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductId          uuid.UUID                 `json:"product_id" gorm:"type:uuid;not null;index:idx_feedback_product"`
	UserId             *uuid.UUID                `json:"user_id" gorm:"type:uuid"`
	Message            string                    `json:"message" gorm:"type:text"`
	ProcessingStatus   constant.ProcessingStatus `json:"processing_status" gorm:"type:varchar(20)"`
	TranscriptText     string                    `json:"transcript_text" gorm:"type:text"`
	NormalizedText     string                    `json:"normalized_text" gorm:"type:text"`
	NormalizedLanguage string                    `json:"normalized_language" gorm:"type:varchar(16)"`
	OriginalLanguage   string                    `json:"original_language" gorm:"type:varchar(16)"`
	Sentiment          string                    `json:"sentiment" gorm:"type:varchar(16)"`
	CreatedAt          time.Time                 `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time                 `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Feedback) TableName() string {
	return "feedback"
}
