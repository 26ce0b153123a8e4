package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"feedback-media-worker/config"
	"feedback-media-worker/constant"
	"feedback-media-worker/repository"
)

// Reclaimer repairs jobs abandoned mid-flight by a crashed or hung
// worker: anything sitting in processing past the timeout is either
// requeued or, once retries are exhausted, terminally failed. Re-running
// a sweep is harmless because the timeout predicate stops matching as
// soon as a job leaves processing.
type Reclaimer struct {
	repo      repository.MediaJobRepository
	reflector Reflector
	cfg       config.Pipeline
	clock     func() time.Time
}

func NewReclaimer(repo repository.MediaJobRepository, reflector Reflector, cfg config.Pipeline) *Reclaimer {
	return &Reclaimer{
		repo:      repo,
		reflector: reflector,
		cfg:       cfg,
		clock:     time.Now,
	}
}

func (rc *Reclaimer) Reclaim(ctx context.Context, mediaType constant.MediaType) error {
	now := rc.clock()
	cutoff := now.Add(-rc.cfg.ProcessingTimeout)

	stale, err := rc.repo.FindStaleProcessing(ctx, mediaType, cutoff)
	if err != nil {
		return err
	}

	for _, job := range stale {
		logger := zerolog.Ctx(ctx).With().
			Str("job_id", job.ID.String()).
			Int("retry_count", job.RetryCount).
			Logger()

		if job.RetryCount >= rc.cfg.MaxRetries {
			if err := rc.repo.FailJobPermanently(ctx, job.ID, now); err != nil {
				logger.Error().Err(err).Msg("failed to fail stale job")
				continue
			}
			if err := rc.reflector.ReflectStatus(ctx, job.OwnerType, job.OwnerId, constant.ProcessingStatusFailed); err != nil {
				logger.Error().Err(err).Msg("failed to reflect failure to owner")
			}
			logger.Warn().Msg("stale job failed permanently")
			continue
		}

		if err := rc.repo.RequeueStaleJob(ctx, job.ID, now); err != nil {
			logger.Error().Err(err).Msg("failed to requeue stale job")
			continue
		}
		// The owner stays non-terminal while a retry is still possible.
		if err := rc.reflector.ReflectStatus(ctx, job.OwnerType, job.OwnerId, constant.ProcessingStatusProcessing); err != nil {
			logger.Error().Err(err).Msg("failed to reflect requeue to owner")
		}
		logger.Info().Msg("stale job requeued")
	}

	return nil
}
