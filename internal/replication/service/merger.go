// Package service implements the replication services: the field-level merge
// engine and the HTTP client used to exchange documents with peers.
package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// MergeInput is one side of a merge: a document's plaintext payload plus the
// markers the merge rules consult.
type MergeInput struct {
	Payload   map[string]any
	Revision  uint64
	DeviceID  string
	UpdatedAt time.Time
}

// MergeResult is the outcome of merging two versions of a document.
type MergeResult struct {
	// Payload is the merged plaintext payload.
	Payload map[string]any
	// Revision is the merged revision marker, one past the larger input.
	Revision uint64
	// DeviceID is the merged origin marker, chosen deterministically so both
	// replicas converge on the same value.
	DeviceID string
	// UpdatedAt is the later of the two input timestamps.
	UpdatedAt time.Time
	// ConflictFields lists the payload fields where the inputs disagreed.
	// Empty means the versions were compatible and no conflict was resolved.
	ConflictFields []string
}

// FieldRules configures which merge rule applies to each payload field.
// Fields not covered by any rule fall back to last-write-wins.
type FieldRules struct {
	// StageOrder ranks care stage values, least advanced first.
	StageOrder []string
	// SeverityOrder ranks severity values, least severe first.
	SeverityOrder []string
	// StageFields are merged by taking the more advanced stage.
	StageFields []string
	// SeverityFields are merged by taking the more severe value.
	SeverityFields []string
	// StatusFields are merged last-write-wins.
	StatusFields []string
	// ReferenceListFields are merged by set union.
	ReferenceListFields []string
}

// Merger resolves divergent versions of a document field by field. The merge
// is deterministic and commutative: both replicas produce the identical result
// regardless of which side runs it.
type Merger struct {
	stageRank      map[string]int
	severityRank   map[string]int
	stageFields    map[string]bool
	severityFields map[string]bool
	statusFields   map[string]bool
	refListFields  map[string]bool
}

// NewMerger creates a Merger from the configured field rules.
func NewMerger(rules FieldRules) *Merger {
	return &Merger{
		stageRank:      rankOf(rules.StageOrder),
		severityRank:   rankOf(rules.SeverityOrder),
		stageFields:    setOf(rules.StageFields),
		severityFields: setOf(rules.SeverityFields),
		statusFields:   setOf(rules.StatusFields),
		refListFields:  setOf(rules.ReferenceListFields),
	}
}

// Merge combines two versions of the same document. Fields present on only
// one side are kept. Fields present on both sides with equal values pass
// through; unequal values are resolved by the field's rule and reported in
// ConflictFields.
func (m *Merger) Merge(a, b *MergeInput) *MergeResult {
	merged := make(map[string]any, len(a.Payload))
	var conflicts []string

	for _, field := range unionKeys(a.Payload, b.Payload) {
		av, aok := a.Payload[field]
		bv, bok := b.Payload[field]

		switch {
		case !bok:
			merged[field] = av
		case !aok:
			merged[field] = bv
		case equalValues(av, bv):
			merged[field] = av
		default:
			merged[field] = m.resolveField(field, a, b, av, bv)
			conflicts = append(conflicts, field)
		}
	}

	return &MergeResult{
		Payload:        merged,
		Revision:       maxRevision(a.Revision, b.Revision) + 1,
		DeviceID:       minDeviceID(a.DeviceID, b.DeviceID),
		UpdatedAt:      laterTime(a.UpdatedAt, b.UpdatedAt),
		ConflictFields: conflicts,
	}
}

// resolveField applies the configured rule for a single disagreeing field.
func (m *Merger) resolveField(field string, a, b *MergeInput, av, bv any) any {
	switch {
	case m.stageFields[field]:
		return m.moreAdvanced(av, bv, a, b)
	case m.severityFields[field]:
		return m.moreSevere(av, bv, a, b)
	case m.refListFields[field]:
		return unionLists(av, bv)
	case m.statusFields[field]:
		return lastWrite(av, bv, a, b)
	default:
		return lastWrite(av, bv, a, b)
	}
}

// moreAdvanced picks the value ranked further along the stage progression.
// Values outside the configured order fall back to last-write-wins.
func (m *Merger) moreAdvanced(av, bv any, a, b *MergeInput) any {
	return pickByRank(m.stageRank, av, bv, a, b)
}

// moreSevere picks the value ranked higher on the severity scale.
// Values outside the configured order fall back to last-write-wins.
func (m *Merger) moreSevere(av, bv any, a, b *MergeInput) any {
	return pickByRank(m.severityRank, av, bv, a, b)
}

func pickByRank(rank map[string]int, av, bv any, a, b *MergeInput) any {
	as, aok := av.(string)
	bs, bok := bv.(string)
	if !aok || !bok {
		return lastWrite(av, bv, a, b)
	}

	ar, aKnown := rank[as]
	br, bKnown := rank[bs]
	if !aKnown || !bKnown {
		return lastWrite(av, bv, a, b)
	}

	if ar >= br {
		return av
	}
	return bv
}

// lastWrite picks the value written later. On identical timestamps the value
// from the lexicographically smaller device fingerprint wins, so both sides
// of a merge agree without coordination.
func lastWrite(av, bv any, a, b *MergeInput) any {
	switch {
	case a.UpdatedAt.After(b.UpdatedAt):
		return av
	case b.UpdatedAt.After(a.UpdatedAt):
		return bv
	case a.DeviceID <= b.DeviceID:
		return av
	default:
		return bv
	}
}

// unionLists merges two reference lists as a set, deduplicating by canonical
// JSON form and ordering the result deterministically. Non-list values fall
// back to keeping the longer canonical form to stay commutative.
func unionLists(av, bv any) any {
	al, aok := av.([]any)
	bl, bok := bv.([]any)
	if !aok || !bok {
		ac, bc := canonical(av), canonical(bv)
		if ac >= bc {
			return av
		}
		return bv
	}

	seen := make(map[string]any, len(al)+len(bl))
	for _, item := range al {
		seen[canonical(item)] = item
	}
	for _, item := range bl {
		key := canonical(item)
		if _, ok := seen[key]; !ok {
			seen[key] = item
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]any, 0, len(keys))
	for _, key := range keys {
		out = append(out, seen[key])
	}
	return out
}

// EqualPayloads reports whether two payloads are structurally identical.
func EqualPayloads(a, b map[string]any) bool {
	return canonical(a) == canonical(b)
}

// equalValues compares two payload values structurally via their canonical
// JSON form. Payloads round-trip through JSON, so this matches what peers
// actually see on the wire.
func equalValues(a, b any) bool {
	return canonical(a) == canonical(b)
}

// canonical renders a value as deterministic JSON. encoding/json sorts map
// keys, so equal structures always produce equal strings.
func canonical(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for key := range a {
		keys = append(keys, key)
	}
	for key := range b {
		if _, ok := a[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func rankOf(order []string) map[string]int {
	rank := make(map[string]int, len(order))
	for i, value := range order {
		rank[value] = i
	}
	return rank
}

func setOf(fields []string) map[string]bool {
	set := make(map[string]bool, len(fields))
	for _, field := range fields {
		set[field] = true
	}
	return set
}

func maxRevision(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minDeviceID(a, b string) string {
	if a <= b {
		return a
	}
	return b
}

func laterTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
