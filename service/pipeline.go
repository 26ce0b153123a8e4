package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"feedback-media-worker/config"
	"feedback-media-worker/constant"
	"feedback-media-worker/dto"
	"feedback-media-worker/entities"
	"feedback-media-worker/repository"
	"feedback-media-worker/transcriber"
)

// Pipeline is the polling entry point of the media worker: one pass
// sweeps stale jobs, then claims and processes up to limit uploaded jobs
// of one media type.
type Pipeline interface {
	ProcessPendingMedia(ctx context.Context, mediaType constant.MediaType, limit int) (*dto.ProcessResult, error)
}

type pipeline struct {
	repo        repository.MediaJobRepository
	transcriber transcriber.Transcriber
	reflector   Reflector
	reclaimer   *Reclaimer
	cfg         config.Pipeline
	clock       func() time.Time
}

func NewPipeline(repo repository.MediaJobRepository, tr transcriber.Transcriber, cfg config.Pipeline) Pipeline {
	reflector := NewReflector(repo)
	return &pipeline{
		repo:        repo,
		transcriber: tr,
		reflector:   reflector,
		reclaimer:   NewReclaimer(repo, reflector, cfg),
		cfg:         cfg,
		clock:       time.Now,
	}
}

func (p *pipeline) ProcessPendingMedia(ctx context.Context, mediaType constant.MediaType, limit int) (*dto.ProcessResult, error) {
	if !mediaType.Valid() {
		return nil, fmt.Errorf("unknown media type: %s", mediaType)
	}
	if limit <= 0 {
		limit = p.cfg.DefaultBatchLimit
	}

	logger := zerolog.Ctx(ctx).With().Str("media_type", string(mediaType)).Logger()

	if err := p.reclaimer.Reclaim(ctx, mediaType); err != nil {
		// A failed sweep should not block the batch; stale jobs stay
		// eligible for the next pass.
		logger.Error().Err(err).Msg("stale job sweep failed")
	}

	overFetch := p.cfg.OverFetchFactor
	if overFetch <= 0 {
		overFetch = 5
	}
	candidates, err := p.repo.FindUploadedCandidates(ctx, mediaType, limit*overFetch)
	if err != nil {
		return nil, err
	}

	result := &dto.ProcessResult{Results: make([]dto.JobResult, 0, limit)}
	for _, job := range candidates {
		if result.Processed >= limit {
			break
		}
		p.processCandidate(ctx, job, result)
	}

	logger.Info().
		Int("candidates", len(candidates)).
		Int("processed", result.Processed).
		Msg("media pass finished")

	return result, nil
}

// processCandidate runs one job to a recorded outcome. Every failure is
// caught and recorded in the batch result; nothing a single job does can
// abort the rest of the pass.
func (p *pipeline) processCandidate(ctx context.Context, job *entities.MediaJob, result *dto.ProcessResult) {
	logger := zerolog.Ctx(ctx).With().
		Str("job_id", job.ID.String()).
		Int("retry_count", job.RetryCount).
		Logger()
	now := p.clock()

	if job.RetryCount >= p.cfg.MaxRetries {
		if err := p.repo.FailJobPermanently(ctx, job.ID, now); err != nil {
			logger.Error().Err(err).Msg("failed to fail exhausted job")
			return
		}
		if err := p.reflector.ReflectStatus(ctx, job.OwnerType, job.OwnerId, constant.ProcessingStatusFailed); err != nil {
			logger.Error().Err(err).Msg("failed to reflect failure to owner")
		}
		logger.Warn().Msg("job exhausted its retries")
		p.record(result, job, false, string(constant.ErrorCodeMaxRetriesExceeded))
		return
	}

	if !retryEligible(job, p.cfg.RetryBackoffBase, now) {
		// Still inside the backoff window; the skip does not count
		// against the batch limit.
		logger.Debug().Msg("job not yet eligible for retry")
		return
	}

	claimed, err := p.repo.ClaimJob(ctx, job.ID, now)
	if err != nil {
		logger.Error().Err(err).Msg("failed to claim job")
		return
	}
	if !claimed {
		// Another pass got there first.
		logger.Debug().Msg("job already claimed")
		return
	}

	if err := p.reflector.ReflectStatus(ctx, job.OwnerType, job.OwnerId, constant.ProcessingStatusProcessing); err != nil {
		logger.Error().Err(err).Msg("failed to reflect processing to owner")
	}

	res, terr := p.transcriber.TranscribeAndNormalize(ctx, job.StorageKey)
	if terr != nil {
		failure := transcriber.AsFailure(terr)
		if err := p.repo.MarkJobFailed(ctx, job.ID, failure.Code, failure.Detail, p.clock()); err != nil {
			logger.Error().Err(err).Msg("failed to record job failure")
		}
		if err := p.reflector.ReflectStatus(ctx, job.OwnerType, job.OwnerId, constant.ProcessingStatusFailed); err != nil {
			logger.Error().Err(err).Msg("failed to reflect failure to owner")
		}
		logger.Warn().Str("error_code", string(failure.Code)).Str("error_detail", failure.Detail).Msg("job failed")
		p.record(result, job, false, string(failure.Code))
		return
	}

	if err := p.repo.MarkJobReady(ctx, job.ID, res.TranscriptText, res.OriginalLanguage); err != nil {
		logger.Error().Err(err).Msg("failed to mark job ready")
		p.record(result, job, false, string(constant.ErrorCodeProcessingError))
		return
	}
	if err := p.reflector.ReflectSuccess(ctx, job, res); err != nil {
		logger.Error().Err(err).Msg("failed to reflect success to owner")
		p.record(result, job, false, string(constant.ErrorCodeProcessingError))
		return
	}

	logger.Info().Str("original_language", res.OriginalLanguage).Msg("job completed")
	p.record(result, job, true, "")
}

func (p *pipeline) record(result *dto.ProcessResult, job *entities.MediaJob, success bool, errCode string) {
	result.Processed++
	result.Results = append(result.Results, dto.JobResult{
		Id:      job.ID,
		Success: success,
		Error:   errCode,
	})
}
