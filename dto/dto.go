package dto

import (
	"feedback-media-worker/constant"
	"github.com/google/uuid"
)

type ProcessRequest struct {
	Limit int `json:"limit"`
}

type JobResult struct {
	Id      uuid.UUID `json:"id"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

type ProcessResult struct {
	Processed int         `json:"processed"`
	Results   []JobResult `json:"results"`
}

type ProcessResponse struct {
	Success   bool        `json:"success"`
	Processed int         `json:"processed"`
	Results   []JobResult `json:"results"`
}

// ProcessTriggerMessage asks the worker to run one polling pass for a
// media type. Published by the backend scheduler instead of calling the
// HTTP surface directly.
type ProcessTriggerMessage struct {
	MediaType constant.MediaType `json:"mediaType"`
	Limit     int                `json:"limit"`
}
