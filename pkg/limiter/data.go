package limiter

import "time"

// pacing state tracked per provider host
type hostTiming struct {
	lastRequestAt time.Time
	backoffDelay  time.Duration
	retryAfter    time.Duration
	backoffCount  int
}

func (h *hostTiming) RetryAfter() time.Duration {
	return h.retryAfter
}

func (h *hostTiming) BackOffDelay() time.Duration {
	return h.backoffDelay
}

func (h *hostTiming) LastRequestAt() time.Time {
	return h.lastRequestAt
}

func (h *hostTiming) BackoffCount() int {
	return h.backoffCount
}
