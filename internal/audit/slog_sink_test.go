package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogSink_Append(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := NewSlogSink(logger)

	event := NewEvent(EventConflictResolved)
	event.DeviceID = "device-a"
	event.DocumentID = "p1"
	event.Details = map[string]string{"field": "stage"}

	err := sink.Append(context.Background(), event)
	require.NoError(t, err)

	var logged map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logged))
	assert.Equal(t, "audit event", logged["msg"])
	assert.Equal(t, string(EventConflictResolved), logged["event_type"])
	assert.Equal(t, "p1", logged["document_id"])
	assert.Equal(t, "stage", logged["field"])
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, NewEvent(EventKeyDerived)))
	require.NoError(t, sink.Append(ctx, NewEvent(EventSessionLocked)))
	require.NoError(t, sink.Append(ctx, NewEvent(EventKeyDerived)))

	assert.Len(t, sink.Events(), 3)
	assert.Len(t, sink.EventsOfType(EventKeyDerived), 2)
	assert.Len(t, sink.EventsOfType(EventDecryptFailed), 0)
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventKeyExpired)

	assert.Equal(t, EventKeyExpired, event.Type)
	assert.NotEqual(t, [16]byte{}, [16]byte(event.ID))
	assert.False(t, event.OccurredAt.IsZero())
}
