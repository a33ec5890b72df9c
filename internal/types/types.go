// Package types holds the shared vocabulary of the field-index core: point
// identifiers, filter conditions, cardinality estimations and the flusher
// contract. Everything here is plain data; behavior lives in the index
// packages.
package types

import (
	"math"
	"time"
)

// PointOffsetType is the 32-bit unsigned identifier for a point within a
// segment. Ids are monotonically dense but not necessarily contiguous.
type PointOffsetType = uint32

const (
	// PointIDMin is the smallest possible point identifier.
	PointIDMin PointOffsetType = 0

	// PointIDMax is the largest possible point identifier.
	PointIDMax PointOffsetType = math.MaxUint32
)

// Flusher persists pending state to stable storage. The closure captures a
// snapshot of the dirty state at creation time and must be safe to run on a
// background thread while readers are active.
type Flusher func() error

// NoopFlusher returns a flusher with nothing to persist.
func NoopFlusher() Flusher {
	return func() error { return nil }
}

// MatchValue is an exact-match clause of a filter condition. Exactly one of
// the fields is set.
type MatchValue struct {
	Keyword *string
	Integer *int64
}

// Range bounds a numeric interval. Nil means unbounded on that side; GTE
// overrides GT and LTE overrides LT when both are present.
type Range struct {
	GT  *float64
	GTE *float64
	LT  *float64
	LTE *float64
}

// DateTimeRange is a Range over wall-clock timestamps.
type DateTimeRange struct {
	GT  *time.Time
	GTE *time.Time
	LT  *time.Time
	LTE *time.Time
}

// RangeInterface carries either a float range or a date-time range, mirroring
// the two shapes a range condition can take at the query boundary.
type RangeInterface struct {
	Float    *Range
	DateTime *DateTimeRange
}

// FieldCondition is the filter clause handed to an index by the query
// planner: an exact match, a range, or both (in which case match wins).
type FieldCondition struct {
	Key   string
	Match *MatchValue
	Range *RangeInterface
}

// NewRangeCondition builds a float-range condition for the given payload key.
func NewRangeCondition(key string, r Range) FieldCondition {
	return FieldCondition{Key: key, Range: &RangeInterface{Float: &r}}
}

// PrimaryCondition marks a condition as the primary clause of an estimation,
// letting the planner re-resolve it against this index directly.
type PrimaryCondition struct {
	Condition *FieldCondition
}

// CardinalityEstimation describes the expected result size of a filter:
// a lower bound, an expectation and an upper bound, plus the clauses the
// planner may use to drive the scan.
type CardinalityEstimation struct {
	PrimaryClauses []PrimaryCondition
	Min            int
	Exp            int
	Max            int
}

// Exact builds an estimation whose bounds collapse to a known count.
func Exact(count int) CardinalityEstimation {
	return CardinalityEstimation{Min: count, Exp: count, Max: count}
}

// WithPrimaryClause attaches the condition as a primary clause.
func (c CardinalityEstimation) WithPrimaryClause(cond *FieldCondition) CardinalityEstimation {
	c.PrimaryClauses = append(c.PrimaryClauses, PrimaryCondition{Condition: cond})
	return c
}

// PayloadBlockCondition is one block of a domain partition produced for the
// planner's block-scan strategy: a covering condition plus its expected
// cardinality.
type PayloadBlockCondition struct {
	Condition   FieldCondition
	Cardinality int
}

// PayloadIndexTelemetry is the point-in-time snapshot an index exposes for
// the hosting engine's reporting.
type PayloadIndexTelemetry struct {
	PointsCount         int
	PointsValuesCount   int
	HistogramBucketSize int
	IndexType           string
}
