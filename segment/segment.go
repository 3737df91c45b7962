// Package segment implements the segmentation controller (spec.md §4.5):
// the online decision authority that partitions a metered run's retired
// instructions into Segments under multi-axis capacity constraints.
package segment

import "fmt"

// Segment is a contiguous run of retired instructions whose resource
// footprint fits under the segmentation limits.
type Segment struct {
	InstretStart uint64   `json:"instret_start"`
	NumInsns     uint64   `json:"num_insns"`
	TraceHeights []uint32 `json:"trace_heights"`
}

// SegmentInvariantViolatedError reports an internal invariant failure:
// committing a segment with zero instructions.
type SegmentInvariantViolatedError struct {
	InstretStart uint64
}

func (e *SegmentInvariantViolatedError) Error() string {
	return fmt.Sprintf("segment: invariant violated: num_insns == 0 committing at instret_start=%d", e.InstretStart)
}

// Limits are the triple of inclusive upper bounds a segment's resource
// footprint must not exceed.
type Limits struct {
	MaxTraceHeight  uint64
	MaxCells        uint64
	MaxInteractions uint64
}

// DefaultMaxTraceHeight, DefaultMaxCells, DefaultMaxInteractions are
// spec.md §3's defaults, matching
// original_source/crates/vm/src/arch/execution_mode/metered/segment_ctx.rs's
// DEFAULT_MAX_TRACE_HEIGHT, DEFAULT_MAX_CELLS, and DEFAULT_MAX_INTERACTIONS.
const (
	DefaultMaxTraceHeight = (1 << 23) - 10000
	DefaultMaxCells       = 2_000_000_000
	// DefaultMaxInteractions is BabyBear::ORDER_U32, the STARK field
	// modulus segment_ctx.rs:10 uses as DEFAULT_MAX_INTERACTIONS; callers
	// targeting a different field size override it via config.
	DefaultMaxInteractions = (1 << 31) - (1 << 27) + 1
)

// DefaultLimits returns spec.md §3's default Limits.
func DefaultLimits() Limits {
	return Limits{
		MaxTraceHeight:  DefaultMaxTraceHeight,
		MaxCells:        DefaultMaxCells,
		MaxInteractions: DefaultMaxInteractions,
	}
}

// DefaultSegmentCheckInsns is the default cadence (in retired instructions)
// at which the metered interpreter consults the controller.
const DefaultSegmentCheckInsns = 1000

// AIRMetadata is the parallel per-AIR metadata fixed for a controller's
// lifetime: names, cells-per-row widths, and interactions-per-row counts.
type AIRMetadata struct {
	Names        []string
	Widths       []uint32
	Interactions []uint32
}

// Validate checks the three parallel sequences have equal length, per
// spec.md §3's "Per-AIR metadata" invariant.
func (m AIRMetadata) Validate() error {
	n := len(m.Names)
	if len(m.Widths) != n || len(m.Interactions) != n {
		return fmt.Errorf("segment: AIR metadata sequences have unequal length: names=%d widths=%d interactions=%d",
			n, len(m.Widths), len(m.Interactions))
	}
	return nil
}

// Len returns the fixed number of configured AIRs.
func (m AIRMetadata) Len() int {
	return len(m.Names)
}
