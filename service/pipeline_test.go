package service

import (
	"context"
	"testing"
	"time"

	"feedback-media-worker/constant"
	"feedback-media-worker/entities"
	"feedback-media-worker/transcriber"
)

func audioResult(sentiment constant.Sentiment) *transcriber.Result {
	return &transcriber.Result{
		TranscriptText:     "das Produkt ist großartig",
		OriginalLanguage:   "de",
		NormalizedText:     "the product is great",
		NormalizedLanguage: "en",
		Sentiment:          sentiment,
	}
}

func TestProcessSuccess(t *testing.T) {
	repo := newFakeRepo()
	tr := newFakeTranscriber()
	now := time.Now()

	job := repo.addJob(&entities.MediaJob{
		MediaType:  constant.MediaTypeAudio,
		Status:     constant.JobStatusUploaded,
		StorageKey: "feedback/voice-1.ogg",
	})
	tr.results["feedback/voice-1.ogg"] = audioResult(constant.SentimentPositive)

	result, err := newTestPipeline(repo, tr, now).ProcessPendingMedia(context.Background(), constant.MediaTypeAudio, 10)
	if err != nil {
		t.Fatalf("ProcessPendingMedia: %v", err)
	}

	if result.Processed != 1 || len(result.Results) != 1 || !result.Results[0].Success {
		t.Fatalf("result = %+v, want one successful job", result)
	}
	if job.Status != constant.JobStatusReady {
		t.Errorf("status = %s, want ready", job.Status)
	}
	if job.TranscriptText == "" || job.OriginalLanguage != "de" {
		t.Errorf("job result fields not stored: %+v", job)
	}
	if job.LastErrorAt != nil || job.ErrorCode != "" {
		t.Errorf("error fields should be cleared on success: %+v", job)
	}
	if job.LastAttemptAt == nil || !job.LastAttemptAt.Equal(now) {
		t.Errorf("last_attempt_at = %v, want claim time %v", job.LastAttemptAt, now)
	}

	owner := repo.owners[job.OwnerId]
	if owner.ProcessingStatus != constant.ProcessingStatusReady || owner.NormalizedText != "the product is great" {
		t.Errorf("owner not updated: %+v", owner)
	}
}

func TestProcessEmptyTranscriptFailure(t *testing.T) {
	repo := newFakeRepo()
	tr := newFakeTranscriber()
	now := time.Now()

	job := repo.addJob(&entities.MediaJob{
		MediaType:  constant.MediaTypeAudio,
		Status:     constant.JobStatusUploaded,
		StorageKey: "feedback/silence.ogg",
	})
	tr.failures["feedback/silence.ogg"] = transcriber.NewFailure(constant.ErrorCodeEmptyTranscript, "transcription produced no text")

	result, err := newTestPipeline(repo, tr, now).ProcessPendingMedia(context.Background(), constant.MediaTypeAudio, 10)
	if err != nil {
		t.Fatalf("ProcessPendingMedia: %v", err)
	}

	if result.Processed != 1 || result.Results[0].Success {
		t.Fatalf("result = %+v, want one failed job", result)
	}
	if result.Results[0].Error != string(constant.ErrorCodeEmptyTranscript) {
		t.Errorf("result error = %s, want empty_transcript", result.Results[0].Error)
	}
	if job.Status != constant.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if job.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", job.RetryCount)
	}
	if job.ErrorCode != string(constant.ErrorCodeEmptyTranscript) {
		t.Errorf("error_code = %s, want empty_transcript", job.ErrorCode)
	}
	if job.LastErrorAt == nil {
		t.Error("last_error_at should be set on failure")
	}
	if got := repo.owners[job.OwnerId].ProcessingStatus; got != constant.ProcessingStatusFailed {
		t.Errorf("owner status = %s, want failed", got)
	}
}

func TestProcessSkipsJobInBackoffWindow(t *testing.T) {
	repo := newFakeRepo()
	tr := newFakeTranscriber()
	now := time.Now()

	errAt := now.Add(-30 * time.Second)
	job := repo.addJob(&entities.MediaJob{
		MediaType:   constant.MediaTypeAudio,
		Status:      constant.JobStatusUploaded,
		StorageKey:  "feedback/retry-later.ogg",
		RetryCount:  1,
		LastErrorAt: &errAt,
	})

	result, err := newTestPipeline(repo, tr, now).ProcessPendingMedia(context.Background(), constant.MediaTypeAudio, 10)
	if err != nil {
		t.Fatalf("ProcessPendingMedia: %v", err)
	}

	// retry_count 1 with a one minute base means a 2 minute window
	if result.Processed != 0 || len(result.Results) != 0 {
		t.Fatalf("result = %+v, want nothing processed", result)
	}
	if job.Status != constant.JobStatusUploaded {
		t.Errorf("status = %s, want uploaded (skipped)", job.Status)
	}
	if len(tr.calls) != 0 {
		t.Errorf("transcriber called %d times, want 0", len(tr.calls))
	}
}

func TestProcessTerminallyFailsExhaustedCandidate(t *testing.T) {
	repo := newFakeRepo()
	tr := newFakeTranscriber()
	now := time.Now()

	job := repo.addJob(&entities.MediaJob{
		MediaType:  constant.MediaTypeAudio,
		Status:     constant.JobStatusUploaded,
		StorageKey: "feedback/exhausted.ogg",
		RetryCount: 3,
	})

	result, err := newTestPipeline(repo, tr, now).ProcessPendingMedia(context.Background(), constant.MediaTypeAudio, 10)
	if err != nil {
		t.Fatalf("ProcessPendingMedia: %v", err)
	}

	if result.Processed != 1 || result.Results[0].Error != string(constant.ErrorCodeMaxRetriesExceeded) {
		t.Fatalf("result = %+v, want one max_retries_exceeded entry", result)
	}
	if job.Status != constant.JobStatusFailed || job.ErrorCode != string(constant.ErrorCodeMaxRetriesExceeded) {
		t.Errorf("job = %+v, want terminal failure", job)
	}
	if len(tr.calls) != 0 {
		t.Errorf("transcriber called %d times, want 0", len(tr.calls))
	}
	if got := repo.owners[job.OwnerId].ProcessingStatus; got != constant.ProcessingStatusFailed {
		t.Errorf("owner status = %s, want failed", got)
	}
}

func TestProcessRespectsBatchLimit(t *testing.T) {
	repo := newFakeRepo()
	tr := newFakeTranscriber()
	now := time.Now()

	for i := 0; i < 3; i++ {
		key := string(rune('a'+i)) + ".ogg"
		repo.addJob(&entities.MediaJob{
			MediaType:  constant.MediaTypeAudio,
			Status:     constant.JobStatusUploaded,
			StorageKey: key,
		})
		tr.results[key] = audioResult(constant.SentimentNeutral)
	}

	result, err := newTestPipeline(repo, tr, now).ProcessPendingMedia(context.Background(), constant.MediaTypeAudio, 2)
	if err != nil {
		t.Fatalf("ProcessPendingMedia: %v", err)
	}

	if result.Processed != 2 {
		t.Fatalf("processed = %d, want 2", result.Processed)
	}
	if repo.jobs[2].Status != constant.JobStatusUploaded {
		t.Errorf("third job status = %s, want uploaded (left for next pass)", repo.jobs[2].Status)
	}
}

func TestProcessSweepsStaleJobsFirst(t *testing.T) {
	repo := newFakeRepo()
	tr := newFakeTranscriber()
	now := time.Now()

	attempt := now.Add(-time.Hour)
	stale := repo.addJob(&entities.MediaJob{
		MediaType:     constant.MediaTypeAudio,
		Status:        constant.JobStatusProcessing,
		StorageKey:    "feedback/stale.ogg",
		RetryCount:    0,
		LastAttemptAt: &attempt,
	})

	result, err := newTestPipeline(repo, tr, now).ProcessPendingMedia(context.Background(), constant.MediaTypeAudio, 10)
	if err != nil {
		t.Fatalf("ProcessPendingMedia: %v", err)
	}

	// The sweep requeues the stale job, and the backoff gate (its
	// last_error_at is now) keeps it out of this same pass.
	if stale.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1 after requeue", stale.RetryCount)
	}
	if stale.Status != constant.JobStatusUploaded {
		t.Errorf("status = %s, want uploaded after requeue", stale.Status)
	}
	if result.Processed != 0 {
		t.Errorf("processed = %d, want 0 (requeued job is inside its backoff window)", result.Processed)
	}
}

func TestProcessVideoDoesNotClobberAudioResult(t *testing.T) {
	repo := newFakeRepo()
	tr := newFakeTranscriber()
	now := time.Now()

	owner := repo.addJob(&entities.MediaJob{
		MediaType:  constant.MediaTypeAudio,
		Status:     constant.JobStatusUploaded,
		StorageKey: "feedback/voice.ogg",
	})
	repo.addJob(&entities.MediaJob{
		MediaType:  constant.MediaTypeVideo,
		Status:     constant.JobStatusUploaded,
		StorageKey: "feedback/clip.mp4",
		OwnerId:    owner.OwnerId,
	})

	tr.results["feedback/voice.ogg"] = audioResult(constant.SentimentPositive)
	videoRes := audioResult(constant.SentimentNegative)
	videoRes.TranscriptText = "video transcript"
	tr.results["feedback/clip.mp4"] = videoRes

	p := newTestPipeline(repo, tr, now)
	if _, err := p.ProcessPendingMedia(context.Background(), constant.MediaTypeAudio, 10); err != nil {
		t.Fatalf("audio pass: %v", err)
	}
	if _, err := p.ProcessPendingMedia(context.Background(), constant.MediaTypeVideo, 10); err != nil {
		t.Fatalf("video pass: %v", err)
	}

	got := repo.owners[owner.OwnerId]
	if got.Sentiment != string(constant.SentimentPositive) {
		t.Errorf("owner sentiment = %s, want positive (audio wins)", got.Sentiment)
	}
	if got.TranscriptText == "video transcript" {
		t.Error("video result clobbered the audio transcript")
	}
	if got.ProcessingStatus != constant.ProcessingStatusReady {
		t.Errorf("owner status = %s, want ready", got.ProcessingStatus)
	}
}

func TestProcessSkipsJobLostToConcurrentClaim(t *testing.T) {
	repo := newFakeRepo()
	tr := newFakeTranscriber()
	now := time.Now()

	lost := repo.addJob(&entities.MediaJob{
		MediaType:  constant.MediaTypeAudio,
		Status:     constant.JobStatusUploaded,
		StorageKey: "feedback/contended.ogg",
	})
	repo.contended[lost.ID] = true

	won := repo.addJob(&entities.MediaJob{
		MediaType:  constant.MediaTypeAudio,
		Status:     constant.JobStatusUploaded,
		StorageKey: "feedback/next.ogg",
	})
	tr.results["feedback/next.ogg"] = audioResult(constant.SentimentNeutral)

	// limit 1: the lost claim must not count, leaving room for the
	// second candidate in the same pass.
	result, err := newTestPipeline(repo, tr, now).ProcessPendingMedia(context.Background(), constant.MediaTypeAudio, 1)
	if err != nil {
		t.Fatalf("ProcessPendingMedia: %v", err)
	}

	if result.Processed != 1 || len(result.Results) != 1 {
		t.Fatalf("result = %+v, want exactly the second job processed", result)
	}
	if result.Results[0].Id != won.ID {
		t.Errorf("recorded job = %s, want %s (lost claim must not be recorded)", result.Results[0].Id, won.ID)
	}
	for _, key := range tr.calls {
		if key == "feedback/contended.ogg" {
			t.Error("transcriber called for a job another pass claimed")
		}
	}
	if lost.Status != constant.JobStatusProcessing {
		t.Errorf("lost job status = %s, want processing (owned by the other pass)", lost.Status)
	}
	if lost.ErrorCode != "" || lost.RetryCount != 0 {
		t.Errorf("lost job must not be touched, got %+v", lost)
	}
	if won.Status != constant.JobStatusReady {
		t.Errorf("second job status = %s, want ready", won.Status)
	}
}

func TestProcessUnknownMediaType(t *testing.T) {
	p := newTestPipeline(newFakeRepo(), newFakeTranscriber(), time.Now())
	if _, err := p.ProcessPendingMedia(context.Background(), constant.MediaType("image"), 10); err == nil {
		t.Fatal("expected error for unknown media type")
	}
}

func TestProcessZeroLimitUsesDefault(t *testing.T) {
	repo := newFakeRepo()
	tr := newFakeTranscriber()
	now := time.Now()

	job := repo.addJob(&entities.MediaJob{
		MediaType:  constant.MediaTypeAudio,
		Status:     constant.JobStatusUploaded,
		StorageKey: "feedback/default.ogg",
	})
	tr.results["feedback/default.ogg"] = audioResult(constant.SentimentNeutral)

	result, err := newTestPipeline(repo, tr, now).ProcessPendingMedia(context.Background(), constant.MediaTypeAudio, 0)
	if err != nil {
		t.Fatalf("ProcessPendingMedia: %v", err)
	}
	if result.Processed != 1 || job.Status != constant.JobStatusReady {
		t.Errorf("default limit pass should process the job, got %+v", result)
	}
}
