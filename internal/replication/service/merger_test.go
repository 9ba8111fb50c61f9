package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() FieldRules {
	return FieldRules{
		StageOrder:          []string{"registration", "assessment", "treatment", "discharge"},
		SeverityOrder:       []string{"green", "yellow", "red"},
		StageFields:         []string{"stage"},
		SeverityFields:      []string{"severity"},
		StatusFields:        []string{"status"},
		ReferenceListFields: []string{"attachments"},
	}
}

func mergeInput(payload map[string]any, revision uint64, deviceID string, updatedAt time.Time) *MergeInput {
	return &MergeInput{
		Payload:   payload,
		Revision:  revision,
		DeviceID:  deviceID,
		UpdatedAt: updatedAt,
	}
}

func TestMergerStageTakesMoreAdvanced(t *testing.T) {
	merger := NewMerger(testRules())
	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	// The less advanced stage was written later; advancement still wins.
	a := mergeInput(map[string]any{"stage": "discharge"}, 3, "device-a", earlier)
	b := mergeInput(map[string]any{"stage": "treatment"}, 4, "device-b", later)

	result := merger.Merge(a, b)
	assert.Equal(t, "discharge", result.Payload["stage"])
	assert.Equal(t, []string{"stage"}, result.ConflictFields)
}

func TestMergerSeverityTakesMoreSevere(t *testing.T) {
	merger := NewMerger(testRules())
	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	a := mergeInput(map[string]any{"severity": "red"}, 2, "device-a", earlier)
	b := mergeInput(map[string]any{"severity": "yellow"}, 2, "device-b", later)

	result := merger.Merge(a, b)
	assert.Equal(t, "red", result.Payload["severity"])
}

func TestMergerStatusLastWriteWins(t *testing.T) {
	merger := NewMerger(testRules())
	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	a := mergeInput(map[string]any{"status": "open"}, 2, "device-a", later)
	b := mergeInput(map[string]any{"status": "closed"}, 2, "device-b", earlier)

	result := merger.Merge(a, b)
	assert.Equal(t, "open", result.Payload["status"])
}

func TestMergerReferenceListsUnion(t *testing.T) {
	merger := NewMerger(testRules())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	a := mergeInput(map[string]any{"attachments": []any{"xray-1", "note-2"}}, 2, "device-a", now)
	b := mergeInput(map[string]any{"attachments": []any{"note-2", "lab-3"}}, 2, "device-b", now)

	result := merger.Merge(a, b)
	merged, ok := result.Payload["attachments"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"xray-1", "note-2", "lab-3"}, merged)
}

func TestMergerDefaultLastWriteWinsWithTiebreak(t *testing.T) {
	merger := NewMerger(testRules())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Identical timestamps: the lexicographically smaller fingerprint wins.
	a := mergeInput(map[string]any{"notes": "from a"}, 2, "device-a", now)
	b := mergeInput(map[string]any{"notes": "from b"}, 2, "device-b", now)

	result := merger.Merge(a, b)
	assert.Equal(t, "from a", result.Payload["notes"])
}

func TestMergerDisjointFieldsNoConflict(t *testing.T) {
	merger := NewMerger(testRules())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	a := mergeInput(map[string]any{"name": "Ada"}, 2, "device-a", now)
	b := mergeInput(map[string]any{"allergies": []any{"penicillin"}}, 3, "device-b", now.Add(time.Minute))

	result := merger.Merge(a, b)
	assert.Empty(t, result.ConflictFields)
	assert.Equal(t, "Ada", result.Payload["name"])
	assert.Equal(t, []any{"penicillin"}, result.Payload["allergies"])
}

func TestMergerMarkers(t *testing.T) {
	merger := NewMerger(testRules())
	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	a := mergeInput(map[string]any{"status": "open"}, 3, "device-b", earlier)
	b := mergeInput(map[string]any{"status": "closed"}, 7, "device-a", later)

	result := merger.Merge(a, b)
	assert.Equal(t, uint64(8), result.Revision)
	assert.Equal(t, "device-a", result.DeviceID)
	assert.Equal(t, later, result.UpdatedAt)
}

func TestMergerCommutative(t *testing.T) {
	merger := NewMerger(testRules())
	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	a := mergeInput(map[string]any{
		"stage":       "treatment",
		"severity":    "red",
		"status":      "open",
		"attachments": []any{"xray-1"},
		"notes":       "seen at clinic",
	}, 4, "device-a", later)
	b := mergeInput(map[string]any{
		"stage":       "discharge",
		"severity":    "yellow",
		"status":      "closed",
		"attachments": []any{"lab-3"},
		"notes":       "phone followup",
	}, 5, "device-b", earlier)

	ab := merger.Merge(a, b)
	ba := merger.Merge(b, a)

	assert.True(t, EqualPayloads(ab.Payload, ba.Payload), "merge must be commutative")
	assert.Equal(t, ab.Revision, ba.Revision)
	assert.Equal(t, ab.DeviceID, ba.DeviceID)
	assert.ElementsMatch(t, ab.ConflictFields, ba.ConflictFields)
}

func TestMergerUnknownStageFallsBackToLastWrite(t *testing.T) {
	merger := NewMerger(testRules())
	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	a := mergeInput(map[string]any{"stage": "unknown-stage"}, 2, "device-a", later)
	b := mergeInput(map[string]any{"stage": "treatment"}, 2, "device-b", earlier)

	result := merger.Merge(a, b)
	assert.Equal(t, "unknown-stage", result.Payload["stage"])
}

func TestEqualPayloads(t *testing.T) {
	a := map[string]any{"name": "Ada", "tags": []any{"x", "y"}}
	b := map[string]any{"tags": []any{"x", "y"}, "name": "Ada"}
	c := map[string]any{"name": "Ada", "tags": []any{"y", "x"}}

	assert.True(t, EqualPayloads(a, b))
	assert.False(t, EqualPayloads(a, c))
}
