package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestEvent_CarriesNodeScopedID(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)
	seq := 0
	var counters Counters

	log.Event("datetime_detection", &seq, &counters, "datetime_detected",
		slog.String("from", "alice@example.com"))

	entry := lastLine(t, &buf)
	assert.Equal(t, "datetime_detected", entry["msg"])
	assert.Equal(t, "datetime_detection-1", entry["msg_id"])
	assert.Equal(t, "datetime_detection", entry["node"])

	details, ok := entry["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", details["from"])
}

func TestEvent_SequenceAndCountersAdvance(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)
	seq := 0
	var counters Counters

	log.Event("n", &seq, &counters, EventBooked)
	log.Event("n", &seq, &counters, EventProcessed)
	log.Event("n", &seq, &counters, EventProcessed)
	log.Event("n", &seq, &counters, "datetime_detected")

	assert.Equal(t, 4, seq)
	assert.Equal(t, 1, counters.Booked)
	assert.Equal(t, 2, counters.Processed)
	assert.Equal(t, 0, counters.Drafted)

	entry := lastLine(t, &buf)
	assert.Equal(t, "n-4", entry["msg_id"])
	got, ok := entry["counters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), got["processed"])
	assert.Equal(t, float64(1), got["booked"])
}

func TestError_UsesErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)
	seq := 0
	var counters Counters

	log.Error("n", &seq, &counters, "error", slog.String("exception", "boom"))

	entry := lastLine(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
}

func TestMain_KeepsOwnSequence(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Main("start", slog.Int("count", 2))
	log.Main("done")

	entry := lastLine(t, &buf)
	assert.Equal(t, "main-2", entry["msg_id"])
	assert.Equal(t, "main", entry["node"])
	_, hasCounters := entry["counters"]
	assert.False(t, hasCounters)
}
