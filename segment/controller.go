package segment

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

var controllerLog *log.Logger

func init() {
	// RV32AOT_DEBUG gates a debug log file, the same opt-in pattern the
	// teacher's service package uses for its own gated logger.
	if os.Getenv("RV32AOT_DEBUG") != "" {
		logPath := filepath.Join(os.TempDir(), "rv32aot-segment-debug.log")
		f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) // #nosec G304 -- fixed filename in temp dir
		if err != nil {
			controllerLog = log.New(os.Stderr, "SEGMENT: ", log.Ltime|log.Lmicroseconds)
		} else {
			controllerLog = log.New(f, "SEGMENT: ", log.Ltime|log.Lmicroseconds)
		}
	} else {
		controllerLog = log.New(io.Discard, "", 0)
	}
}

// Controller consumes (instret, trace_heights, is_trace_height_constant)
// samples at a configurable cadence and decides when to close a segment.
// It is owned by exactly one metered interpreter at a time and is not
// thread-safe (spec.md §5).
type Controller struct {
	limits       Limits
	airs         AIRMetadata
	checkCadence uint64

	segments []Segment

	instretLastSegmentCheck uint64
}

// NewController creates a Controller. airs must satisfy AIRMetadata.Validate.
func NewController(limits Limits, airs AIRMetadata, checkCadence uint64) (*Controller, error) {
	if err := airs.Validate(); err != nil {
		return nil, err
	}
	if checkCadence == 0 {
		checkCadence = DefaultSegmentCheckInsns
	}
	return &Controller{limits: limits, airs: airs, checkCadence: checkCadence}, nil
}

// CheckCadence returns the configured consultation cadence.
func (c *Controller) CheckCadence() uint64 {
	return c.checkCadence
}

// Segments returns the segments committed so far, in order.
func (c *Controller) Segments() []Segment {
	return append([]Segment(nil), c.segments...)
}

// instretStart returns the instret at which the next (not-yet-committed)
// segment would begin.
func (c *Controller) instretStart() uint64 {
	if len(c.segments) == 0 {
		return 0
	}
	last := c.segments[len(c.segments)-1]
	return last.InstretStart + last.NumInsns
}

// Consult implements spec.md §4.5's decision function. instret is the
// interpreter's current retired-instruction count; traceHeights and
// isConstant are parallel sequences of the same length as the configured
// AIRMetadata. It returns whether a segment was just committed.
func (c *Controller) Consult(instret uint64, traceHeights []uint32, isConstant []bool) (bool, error) {
	n := c.airs.Len()
	if len(traceHeights) != n || len(isConstant) != n {
		return false, fmt.Errorf("segment: consult sample has %d trace heights and %d constant flags, want %d of each",
			len(traceHeights), len(isConstant), n)
	}

	start := c.instretStart()
	c.instretLastSegmentCheck = instret

	if instret-start == 0 {
		return false, nil // a segment must contain >= 1 instruction
	}

	trigger := ""
	segmentNow := false

	for i := 0; i < n; i++ {
		if !isConstant[i] && uint64(traceHeights[i]) > c.limits.MaxTraceHeight {
			segmentNow = true
			trigger = "trace_height:" + c.airs.Names[i]
			break
		}
	}

	var totalCells uint64
	var totalInteractions uint64
	for i := 0; i < n; i++ {
		totalCells += uint64(traceHeights[i]) * uint64(c.airs.Widths[i])
		totalInteractions += (uint64(traceHeights[i]) + 1) * uint64(c.airs.Interactions[i])
	}

	if !segmentNow && totalCells > c.limits.MaxCells {
		segmentNow = true
		trigger = "cells"
	}
	if !segmentNow && totalInteractions > c.limits.MaxInteractions {
		segmentNow = true
		trigger = "interactions"
	}

	if !segmentNow {
		return false, nil
	}

	seg := Segment{
		InstretStart: start,
		NumInsns:     instret - start,
		TraceHeights: append([]uint32(nil), traceHeights...),
	}
	if seg.NumInsns == 0 {
		return false, &SegmentInvariantViolatedError{InstretStart: start}
	}
	c.segments = append(c.segments, seg)
	controllerLog.Printf("segment closed: trigger=%s instret_start=%d num_insns=%d", trigger, seg.InstretStart, seg.NumInsns)
	return true, nil
}

// Close forces a final segment covering any instructions retired since the
// last commit, if any. The metered interpreter calls this once after the
// guest program halts, so that spec.md §8's "Σ segments[i].num_insns ==
// final_instret" holds even when the last chunk never crossed a limit.
func (c *Controller) Close(finalInstret uint64) error {
	start := c.instretStart()
	if finalInstret == start {
		return nil
	}
	seg := Segment{InstretStart: start, NumInsns: finalInstret - start}
	if n := c.airs.Len(); n > 0 {
		seg.TraceHeights = make([]uint32, n)
	}
	c.segments = append(c.segments, seg)
	controllerLog.Printf("segment closed: trigger=final instret_start=%d num_insns=%d", seg.InstretStart, seg.NumInsns)
	return nil
}
