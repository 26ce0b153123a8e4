package service

import (
	"time"

	"feedback-media-worker/entities"
)

// Exponent cap keeps the delay bounded: base * 2^8 at most.
const maxBackoffExponent = 8

func backoffDelay(base time.Duration, retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	exp := retryCount
	if exp > maxBackoffExponent {
		exp = maxBackoffExponent
	}
	return base * time.Duration(1<<uint(exp))
}

// retryEligible is the advisory backoff gate: a job that has never failed
// is always eligible, otherwise it must sit out the full backoff window
// measured from its last error. This is a read-check before claiming, not
// a lock; the claim itself is the compare-and-set.
func retryEligible(job *entities.MediaJob, base time.Duration, now time.Time) bool {
	if job.LastErrorAt == nil {
		return true
	}
	return !now.Before(job.LastErrorAt.Add(backoffDelay(base, job.RetryCount)))
}
