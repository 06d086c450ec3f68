package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentspace/internal/domain/shared/events"
)

type sampleEvent struct {
	ID string `json:"id"`
	At time.Time
}

func (e sampleEvent) EventName() string     { return "sample.happened" }
func (e sampleEvent) AggregateID() string   { return e.ID }
func (e sampleEvent) OccurredAt() time.Time { return e.At }

type captureBox struct{ records []EventRecord }

func (b *captureBox) Add(_ context.Context, r EventRecord) error {
	b.records = append(b.records, r)
	return nil
}
func (b *captureBox) Flush(context.Context) error { return nil }

func TestDrainEncodesAndClears(t *testing.T) {
	var rec events.EventRecorder
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec.Record(sampleEvent{ID: "agg-1", At: at})
	rec.Record(sampleEvent{ID: "agg-1", At: at})

	box := &captureBox{}
	n := 0
	enc := JSONEventEncoder{IDGenerator: func() string { n++; return "evt-" + string(rune('0'+n)) }}
	require.NoError(t, Drain(context.Background(), box, enc, &rec))

	require.Len(t, box.records, 2)
	assert.Equal(t, "evt-1", box.records[0].ID)
	assert.Equal(t, "sample.happened", box.records[0].Name)
	assert.Equal(t, "agg-1", box.records[0].Aggregate)
	assert.Equal(t, at, box.records[0].OccurredAt)
	assert.JSONEq(t, `{"id":"agg-1","At":"2026-01-02T03:04:05Z"}`, string(box.records[0].Payload))
	assert.Equal(t, "application/json", box.records[0].Headers[ContentTypeHeader])
	assert.Empty(t, rec.PendingEvents())
}

func TestDrainDefaultsToJSONEncoder(t *testing.T) {
	var rec events.EventRecorder
	rec.Record(sampleEvent{ID: "agg-2", At: time.Now()})

	box := &captureBox{}
	require.NoError(t, Drain(context.Background(), box, nil, nil, &rec))
	require.Len(t, box.records, 1)
	assert.NotEmpty(t, box.records[0].ID)
	assert.NoError(t, Drain(context.Background(), nil, nil, &rec))
}
