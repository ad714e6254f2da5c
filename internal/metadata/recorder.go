package metadata

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/go-logfmt/logfmt"
)

/*
Metadata Collected
- Provider query timings and HTTP status codes
- Cache hits, misses, stores and expiries
- Export artifacts
- Per-sweep summaries

Metadata is write-only.
No component may read metadata to influence pacing, retries or termination.
*/

/*
Recorder writes structured events as logfmt records, one record per line.
It must not:
- affect control flow
- fail the caller (encoding errors are swallowed)
Ordering guarantees:
- Records are written in the order the calls are received.
*/
type Recorder struct {
	mu    sync.Mutex
	enc   *logfmt.Encoder
	runID string
	now   func() time.Time
}

func NewRecorder(w io.Writer, runID string) *Recorder {
	return &Recorder{
		enc:   logfmt.NewEncoder(w),
		runID: runID,
		now:   time.Now,
	}
}

// SetNowFunc replaces the timestamp source; observedAt arguments are used as given.
func (r *Recorder) SetNowFunc(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *Recorder) RunID() string {
	return r.runID
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	r.write(observedAt, "error", attrs,
		"pkg", packageName,
		"action", action,
		"cause", cause.String(),
		"err", errorString,
	)
}

func (r *Recorder) RecordQuery(event QueryEvent) {
	r.write(r.timestamp(), "query", nil,
		"endpoint", event.Endpoint,
		"origin", event.Origin,
		"destination", event.Destination,
		"date", event.Date,
		"status", event.HTTPStatus,
		"duration_ms", event.Duration.Milliseconds(),
		"legs", event.Legs,
	)
}

func (r *Recorder) RecordCacheEvent(kind CacheEventKind, key string, attrs []Attribute) {
	r.write(r.timestamp(), "cache", attrs,
		"kind", string(kind),
		"key", key,
	)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	r.write(r.timestamp(), "artifact", attrs,
		"kind", string(kind),
		"path", path,
	)
}

/*
RecordFinalSweepStats records the terminal summary of one sweep.

Contract:
  - MUST be called exactly once per sweep execution, after it ends.
  - The values MUST be derived from crawler state, not from earlier records.
*/
func (r *Recorder) RecordFinalSweepStats(
	origin string,
	date string,
	queries int,
	skipped int,
	legs int,
	rateLimited bool,
	duration time.Duration,
) {
	stats := sweepStats{
		origin:      origin,
		date:        date,
		queries:     queries,
		skipped:     skipped,
		legs:        legs,
		rateLimited: rateLimited,
		durationMs:  duration.Milliseconds(),
	}
	r.append(stats)
}

func (r *Recorder) append(stats sweepStats) {
	r.write(r.timestamp(), "sweep", nil,
		"origin", stats.origin,
		"date", stats.date,
		"queries", stats.queries,
		"skipped", stats.skipped,
		"legs", stats.legs,
		"rate_limited", strconv.FormatBool(stats.rateLimited),
		"duration_ms", stats.durationMs,
	)
}

func (r *Recorder) timestamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now()
}

func (r *Recorder) write(at time.Time, event string, attrs []Attribute, keyvals ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.enc.EncodeKeyval("ts", at.UTC().Format(time.RFC3339Nano))
	_ = r.enc.EncodeKeyval("run", r.runID)
	_ = r.enc.EncodeKeyval("event", event)
	for i := 0; i+1 < len(keyvals); i += 2 {
		_ = r.enc.EncodeKeyval(keyvals[i], fmt.Sprint(keyvals[i+1]))
	}
	for _, attr := range attrs {
		_ = r.enc.EncodeKeyval(string(attr.Key), attr.Value)
	}
	_ = r.enc.EndRecord()
}

type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)
	RecordQuery(event QueryEvent)
	RecordCacheEvent(kind CacheEventKind, key string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

type SweepFinalizer interface {
	RecordFinalSweepStats(
		origin string,
		date string,
		queries int,
		skipped int,
		legs int,
		rateLimited bool,
		duration time.Duration,
	)
}

// NoopSink implements MetadataSink and SweepFinalizer but does nothing.
// Callers (or tests) decide whether to inject a Recorder or a NoopSink.
type NoopSink struct{}

func (n *NoopSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
}

func (n *NoopSink) RecordQuery(event QueryEvent) {}

func (n *NoopSink) RecordCacheEvent(kind CacheEventKind, key string, attrs []Attribute) {}

func (n *NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {}

func (n *NoopSink) RecordFinalSweepStats(
	origin string,
	date string,
	queries int,
	skipped int,
	legs int,
	rateLimited bool,
	duration time.Duration,
) {
}
