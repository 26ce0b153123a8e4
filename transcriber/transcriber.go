package transcriber

import (
	"context"
	"errors"
	"fmt"

	"feedback-media-worker/constant"
)

// Result is the successful outcome of one media attachment: the raw
// transcript plus the payload normalized to the analytics language.
type Result struct {
	TranscriptText     string
	OriginalLanguage   string
	NormalizedText     string
	NormalizedLanguage string
	Sentiment          constant.Sentiment
}

// Failure is the typed error every adapter failure mode surfaces as, so
// the pipeline's retry bookkeeping never has to guess at error shapes.
type Failure struct {
	Code   constant.ErrorCode
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Detail)
}

func NewFailure(code constant.ErrorCode, detail string) *Failure {
	return &Failure{Code: code, Detail: detail}
}

// AsFailure maps any error to a Failure, folding untyped errors into
// processing_error.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Code: constant.ErrorCodeProcessingError, Detail: err.Error()}
}

// Transcriber turns a stored media blob into normalized analytics. An
// implementation must return either a Result with a non-empty transcript
// or a *Failure; an empty transcript is a failure, not a blank success.
type Transcriber interface {
	TranscribeAndNormalize(ctx context.Context, storageKey string) (*Result, error)
}
