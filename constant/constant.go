package constant

type JobStatus string

const (
	JobStatusUploaded   JobStatus = "uploaded"
	JobStatusProcessing JobStatus = "processing"
	JobStatusReady      JobStatus = "ready"
	JobStatusFailed     JobStatus = "failed"
)

type MediaType string

const (
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
)

func (m MediaType) Valid() bool {
	return m == MediaTypeAudio || m == MediaTypeVideo
}

type OwnerType string

const (
	OwnerTypeSurveyResponse OwnerType = "survey_response"
	OwnerTypeFeedback       OwnerType = "feedback"
)

// ProcessingStatus is the owner-facing analytics state. It stays
// "processing" while a retry is still possible and only becomes
// "failed" once retries are exhausted.
type ProcessingStatus string

const (
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusReady      ProcessingStatus = "ready"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

type ErrorCode string

const (
	ErrorCodeMissingCredentials       ErrorCode = "missing_credentials"
	ErrorCodeEmptyTranscript          ErrorCode = "empty_transcript"
	ErrorCodeProcessingError          ErrorCode = "processing_error"
	ErrorCodeProcessingTimeoutRequeue ErrorCode = "processing_timeout_requeued"
	ErrorCodeMaxRetriesExceeded       ErrorCode = "max_retries_exceeded"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNeutral || s == SentimentNegative
}

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
