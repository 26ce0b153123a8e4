package entities

import (
	"time"

	"feedback-media-worker/constant"
	"github.com/google/uuid"
)

// SurveyResponse is the owner record for survey answers. The worker only
// writes processing_status and the analytics fields; everything else
// belongs to the API.
type SurveyResponse struct {
	ID                 uuid.UUID                 `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SurveyId           uuid.UUID                 `json:"survey_id" gorm:"type:uuid;not null;index:idx_survey_responses_survey"`
	QuestionId         *uuid.UUID                `json:"question_id" gorm:"type:uuid"`
	AnswerText         string                    `json:"answer_text" gorm:"type:text"`
	ProcessingStatus   constant.ProcessingStatus `json:"processing_status" gorm:"type:varchar(20)"`
	TranscriptText     string                    `json:"transcript_text" gorm:"type:text"`
	NormalizedText     string                    `json:"normalized_text" gorm:"type:text"`
	NormalizedLanguage string                    `json:"normalized_language" gorm:"type:varchar(16)"`
	OriginalLanguage   string                    `json:"original_language" gorm:"type:varchar(16)"`
	Sentiment          string                    `json:"sentiment" gorm:"type:varchar(16)"`
	CreatedAt          time.Time                 `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time                 `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (SurveyResponse) TableName() string {
	return "survey_responses"
}
