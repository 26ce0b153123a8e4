package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"feedback-media-worker/constant"
	"feedback-media-worker/entities"
	"feedback-media-worker/repository"
	"feedback-media-worker/transcriber"
)

// Reflector propagates a job's state onto the record that owns it.
// Status changes overwrite unconditionally; analytics payloads go through
// the modality merge policy.
type Reflector interface {
	ReflectStatus(ctx context.Context, ownerType constant.OwnerType, ownerId uuid.UUID, status constant.ProcessingStatus) error
	ReflectSuccess(ctx context.Context, job *entities.MediaJob, result *transcriber.Result) error
}

type reflector struct {
	repo repository.MediaJobRepository
}

func NewReflector(repo repository.MediaJobRepository) Reflector {
	return &reflector{repo: repo}
}

func (r *reflector) ReflectStatus(ctx context.Context, ownerType constant.OwnerType, ownerId uuid.UUID, status constant.ProcessingStatus) error {
	return r.repo.UpdateOwnerStatus(ctx, ownerType, ownerId, status)
}

// ReflectSuccess applies the merge policy. Audio is the canonical
// modality and always overwrites. Video writes only when the owner's
// analytics fields are all empty; if a faster audio or typed-text path
// already populated them, video just marks the owner ready. The
// read-then-write runs in one transaction so concurrent modalities cannot
// interleave a partial merge.
func (r *reflector) ReflectSuccess(ctx context.Context, job *entities.MediaJob, result *transcriber.Result) error {
	payload := repository.OwnerAnalytics{
		ProcessingStatus:   constant.ProcessingStatusReady,
		TranscriptText:     result.TranscriptText,
		NormalizedText:     result.NormalizedText,
		NormalizedLanguage: result.NormalizedLanguage,
		OriginalLanguage:   result.OriginalLanguage,
		Sentiment:          string(result.Sentiment),
	}

	switch job.MediaType {
	case constant.MediaTypeAudio:
		return r.repo.Transaction(ctx, func(ctx context.Context) error {
			return r.repo.UpdateOwnerAnalytics(ctx, job.OwnerType, job.OwnerId, payload)
		})
	case constant.MediaTypeVideo:
		return r.repo.Transaction(ctx, func(ctx context.Context) error {
			current, err := r.repo.GetOwnerAnalytics(ctx, job.OwnerType, job.OwnerId)
			if err != nil {
				return err
			}
			if !current.Empty() {
				zerolog.Ctx(ctx).Info().
					Str("job_id", job.ID.String()).
					Str("owner_id", job.OwnerId.String()).
					Msg("owner analytics already populated, keeping existing payload")
				return r.repo.UpdateOwnerStatus(ctx, job.OwnerType, job.OwnerId, constant.ProcessingStatusReady)
			}
			return r.repo.UpdateOwnerAnalytics(ctx, job.OwnerType, job.OwnerId, payload)
		})
	default:
		return fmt.Errorf("unknown media type: %s", job.MediaType)
	}
}
