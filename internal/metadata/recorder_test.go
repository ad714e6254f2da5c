package metadata_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/go-logfmt/logfmt"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecorder(buf *bytes.Buffer) *metadata.Recorder {
	r := metadata.NewRecorder(buf, "run-1")
	r.SetNowFunc(func() time.Time { return fixedNow })
	return r
}

// decode returns one map per logfmt record.
func decode(t *testing.T, data []byte) []map[string]string {
	t.Helper()
	dec := logfmt.NewDecoder(bytes.NewReader(data))
	var records []map[string]string
	for dec.ScanRecord() {
		rec := map[string]string{}
		for dec.ScanKeyval() {
			rec[string(dec.Key())] = string(dec.Value())
		}
		records = append(records, rec)
	}
	require.NoError(t, dec.Err())
	return records
}

func TestRecorder_RecordError(t *testing.T) {
	var buf bytes.Buffer
	r := newRecorder(&buf)

	r.RecordError(fixedNow, "provider", "Query", metadata.CauseRateLimited, "429 Too Many Requests",
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrDestination, "BER")})

	records := decode(t, buf.Bytes())
	require.Len(t, records, 1)
	assert.Equal(t, "error", records[0]["event"])
	assert.Equal(t, "run-1", records[0]["run"])
	assert.Equal(t, "provider", records[0]["pkg"])
	assert.Equal(t, "rate_limited", records[0]["cause"])
	assert.Equal(t, "429 Too Many Requests", records[0]["err"])
	assert.Equal(t, "BER", records[0]["destination"])
	assert.Equal(t, "2025-03-01T12:00:00Z", records[0]["ts"])
}

func TestRecorder_RecordsInCallOrder(t *testing.T) {
	var buf bytes.Buffer
	r := newRecorder(&buf)

	r.RecordQuery(metadata.QueryEvent{Origin: "LTN", Destination: "BUD", Date: "2025-03-01", HTTPStatus: 200, Duration: 150 * time.Millisecond, Legs: 2})
	r.RecordCacheEvent(metadata.CacheStore, "LTN-2025-03-01", nil)
	r.RecordArtifact(metadata.ArtifactCSV, "/tmp/flights.csv", nil)
	r.RecordFinalSweepStats("LTN", "2025-03-01", 10, 1, 2, false, 12*time.Second)

	records := decode(t, buf.Bytes())
	require.Len(t, records, 4)
	assert.Equal(t, "query", records[0]["event"])
	assert.Equal(t, "150", records[0]["duration_ms"])
	assert.Equal(t, "2", records[0]["legs"])
	assert.Equal(t, "cache", records[1]["event"])
	assert.Equal(t, "store", records[1]["kind"])
	assert.Equal(t, "artifact", records[2]["event"])
	assert.Equal(t, "csv", records[2]["kind"])
	assert.Equal(t, "sweep", records[3]["event"])
	assert.Equal(t, "false", records[3]["rate_limited"])
	assert.Equal(t, "12000", records[3]["duration_ms"])
}

func TestRecorder_QuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	r := newRecorder(&buf)

	r.RecordCacheEvent(metadata.CacheHit, "LTN-2025-03-01-return-LTN (London Luton) to BUD (Budapest) - W6 2202", nil)

	assert.True(t, strings.Contains(buf.String(), `key="LTN-2025-03-01-return-LTN (London Luton) to BUD (Budapest) - W6 2202"`))
}

func TestErrorCause_String(t *testing.T) {
	assert.Equal(t, "unknown", metadata.CauseUnknown.String())
	assert.Equal(t, "network_failure", metadata.CauseNetworkFailure.String())
	assert.Equal(t, "storage_failure", metadata.CauseStorageFailure.String())
	assert.Equal(t, "unknown", metadata.ErrorCause(99).String())
}
