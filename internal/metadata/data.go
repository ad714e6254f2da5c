package metadata

import (
	"time"
)

/*
sweepStats
  - Terminal, derived summary of one destination sweep
  - Aggregate counts and durations only
  - Computed by the crawler after the sweep ends (completed, rate-limited or cancelled)
  - Recorded exactly once
  - Must not influence pacing, retries or termination
*/
type sweepStats struct {
	origin      string
	date        string
	queries     int
	skipped     int
	legs        int
	rateLimited bool
	durationMs  int64
}

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, reporting).

	Rules:
	 - ErrorCause MUST NOT influence control flow.
	 - ErrorCause MUST NOT be used for retry, continuation, or abort decisions.
	 - Packages MAY map their local errors to ErrorCause but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown
  - Fallback for failures that map to no other category.

# CauseNetworkFailure
  - Transport failures: timeouts, DNS, connection resets, bridge socket errors.

# CauseRateLimited
  - The provider refused service because of request volume (HTTP 429 and friends).

# CauseProviderRejected
  - The provider answered with a non-2xx status other than a rate limit.

# CauseContentInvalid
  - A reply was received but could not be understood: malformed JSON, HTML block
    pages, bridge replies missing fields, corrupt cache payloads.

# CauseSessionUnavailable
  - Session data (routes, endpoint, headers) could not be obtained: wrong page,
    unknown origin, missing endpoint.

# CauseStorageFailure
  - Failure while persisting cache entries or export artifacts.
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CauseRateLimited
	CauseProviderRejected
	CauseContentInvalid
	CauseSessionUnavailable
	CauseStorageFailure
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CauseRateLimited:
		return "rate_limited"
	case CauseProviderRejected:
		return "provider_rejected"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseSessionUnavailable:
		return "session_unavailable"
	case CauseStorageFailure:
		return "storage_failure"
	default:
		return "unknown"
	}
}

type CacheEventKind string

const (
	CacheHit        CacheEventKind = "hit"
	CacheMiss       CacheEventKind = "miss"
	CacheStore      CacheEventKind = "store"
	CacheExpired    CacheEventKind = "expired"
	CacheInvalidate CacheEventKind = "invalidate"
)

type ArtifactKind string

const (
	ArtifactJSON ArtifactKind = "json"
	ArtifactCSV  ArtifactKind = "csv"
	ArtifactHTML ArtifactKind = "html"
)

type QueryEvent struct {
	Endpoint    string
	Origin      string
	Destination string
	Date        string
	HTTPStatus  int
	Duration    time.Duration
	Legs        int
}

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrURL         AttributeKey = "url"
	AttrHost        AttributeKey = "host"
	AttrOrigin      AttributeKey = "origin"
	AttrDestination AttributeKey = "destination"
	AttrDate        AttributeKey = "date"
	AttrKey         AttributeKey = "key"
	AttrHTTPStatus  AttributeKey = "http_status"
	AttrField       AttributeKey = "field"
	AttrWritePath   AttributeKey = "write_path"
	AttrRoute       AttributeKey = "route"
	AttrCount       AttributeKey = "count"
)
