package types

import (
	"fmt"
	"strings"
	"time"
)

// UndefinedQuality marks a level whose quality cannot be computed
// (no elements on any process, or the calling process is not involved).
const UndefinedQuality = -1.0

// Quality returns minCount/maxCount, or UndefinedQuality when maxCount is zero.
func Quality(minCount, maxCount float64) float64 {
	if maxCount <= 0 {
		return UndefinedQuality
	}

	return minCount / maxCount
}

// IsDefinedQuality reports whether q is a real quality value.
func IsDefinedQuality(q float64) bool {
	return q >= 0
}

// QualityRecord is a snapshot of the distribution quality.
type QualityRecord struct {
	// Label describes what triggered the snapshot (e.g. "rebalance").
	Label string `json:"label" yaml:"label"`

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// LevelQualities holds one entry per grid level, UndefinedQuality where unavailable.
	LevelQualities []float64 `json:"levelQualities" yaml:"levelQualities"`

	// MinQuality is the global minimum over all defined level qualities.
	MinQuality float64 `json:"minQuality" yaml:"minQuality"`
}

// String formats the record on one line.
func (r QualityRecord) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: min %s |", r.Label, FormatQuality(r.MinQuality))
	for lvl, q := range r.LevelQualities {
		fmt.Fprintf(&sb, " lvl %d: %s", lvl, FormatQuality(q))
	}

	return sb.String()
}

// FormatQuality renders q with two decimals, or "undefined".
func FormatQuality(q float64) string {
	if !IsDefinedQuality(q) {
		return "undefined"
	}

	return fmt.Sprintf("%.2f", q)
}
