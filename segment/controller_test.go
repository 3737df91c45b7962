package segment_test

import (
	"testing"

	"github.com/rv32aot/core/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func airs(n int) segment.AIRMetadata {
	names := make([]string, n)
	widths := make([]uint32, n)
	interactions := make([]uint32, n)
	for i := range names {
		names[i] = "air"
		widths[i] = 4
		interactions[i] = 2
	}
	return segment.AIRMetadata{Names: names, Widths: widths, Interactions: interactions}
}

func TestConsult_NoSegmentWhenZeroInstructionsRetired(t *testing.T) {
	c, err := segment.NewController(segment.DefaultLimits(), airs(1), 1000)
	require.NoError(t, err)

	segmented, err := c.Consult(0, []uint32{10}, []bool{false})
	require.NoError(t, err)
	assert.False(t, segmented)
	assert.Empty(t, c.Segments())
}

func TestConsult_StaysBelowLimitsNeverSegments(t *testing.T) {
	c, err := segment.NewController(segment.DefaultLimits(), airs(2), 1000)
	require.NoError(t, err)

	segmented, err := c.Consult(1000, []uint32{100, 50}, []bool{false, false})
	require.NoError(t, err)
	assert.False(t, segmented)
}

func TestConsult_HeightAxisTrigger(t *testing.T) {
	limits := segment.Limits{MaxTraceHeight: 100, MaxCells: 1 << 40, MaxInteractions: 1 << 40}
	c, err := segment.NewController(limits, airs(1), 1000)
	require.NoError(t, err)

	segmented, err := c.Consult(1000, []uint32{101}, []bool{false})
	require.NoError(t, err)
	assert.True(t, segmented)

	got := c.Segments()
	require.Len(t, got, 1)
	assert.EqualValues(t, 0, got[0].InstretStart)
	assert.EqualValues(t, 1000, got[0].NumInsns)
}

func TestConsult_ConstantAIRExemptFromHeightAxis(t *testing.T) {
	limits := segment.Limits{MaxTraceHeight: 100, MaxCells: 1 << 40, MaxInteractions: 1 << 40}
	c, err := segment.NewController(limits, airs(1), 1000)
	require.NoError(t, err)

	segmented, err := c.Consult(1000, []uint32{1 << 20}, []bool{true})
	require.NoError(t, err)
	assert.False(t, segmented, "a constant-flagged AIR must not trigger the height axis")
}

func TestConsult_ConstantAIRStillContributesToCells(t *testing.T) {
	limits := segment.Limits{MaxTraceHeight: 1 << 30, MaxCells: 100, MaxInteractions: 1 << 40}
	airMeta := segment.AIRMetadata{Names: []string{"a"}, Widths: []uint32{2}, Interactions: []uint32{1}}
	c, err := segment.NewController(limits, airMeta, 1000)
	require.NoError(t, err)

	// height*width = 1000*2 = 2000 > MaxCells even though the AIR is constant.
	segmented, err := c.Consult(1000, []uint32{1000}, []bool{true})
	require.NoError(t, err)
	assert.True(t, segmented)
}

func TestConsult_CellsAxisTrigger(t *testing.T) {
	limits := segment.Limits{MaxTraceHeight: 1 << 30, MaxCells: 100, MaxInteractions: 1 << 40}
	airMeta := segment.AIRMetadata{Names: []string{"a"}, Widths: []uint32{10}, Interactions: []uint32{0}}
	c, err := segment.NewController(limits, airMeta, 1000)
	require.NoError(t, err)

	segmented, err := c.Consult(500, []uint32{20}, []bool{false}) // 20*10=200 > 100
	require.NoError(t, err)
	assert.True(t, segmented)
}

func TestConsult_InteractionsAxisTrigger(t *testing.T) {
	limits := segment.Limits{MaxTraceHeight: 1 << 30, MaxCells: 1 << 40, MaxInteractions: 100}
	airMeta := segment.AIRMetadata{Names: []string{"a"}, Widths: []uint32{0}, Interactions: []uint32{10}}
	c, err := segment.NewController(limits, airMeta, 1000)
	require.NoError(t, err)

	// (height+1)*interactions = (9+1)*10 = 100, not > 100: no segment.
	segmented, err := c.Consult(500, []uint32{9}, []bool{false})
	require.NoError(t, err)
	assert.False(t, segmented)

	// (10+1)*10 = 110 > 100: segments.
	segmented, err = c.Consult(600, []uint32{10}, []bool{false})
	require.NoError(t, err)
	assert.True(t, segmented)
}

func TestConsult_SequentialSegmentsDoNotOverlap(t *testing.T) {
	limits := segment.Limits{MaxTraceHeight: 100, MaxCells: 1 << 40, MaxInteractions: 1 << 40}
	c, err := segment.NewController(limits, airs(1), 1000)
	require.NoError(t, err)

	segmented, err := c.Consult(1000, []uint32{200}, []bool{false})
	require.NoError(t, err)
	require.True(t, segmented)

	segmented, err = c.Consult(1000, []uint32{10}, []bool{false})
	require.NoError(t, err)
	assert.False(t, segmented, "no instructions retired since the last segment")

	segmented, err = c.Consult(1500, []uint32{200}, []bool{false})
	require.NoError(t, err)
	require.True(t, segmented)

	got := c.Segments()
	require.Len(t, got, 2)
	assert.Equal(t, got[0].InstretStart+got[0].NumInsns, got[1].InstretStart)
}

func TestClose_CommitsTrailingInstructions(t *testing.T) {
	c, err := segment.NewController(segment.DefaultLimits(), airs(1), 1000)
	require.NoError(t, err)

	segmented, err := c.Consult(1000, []uint32{10}, []bool{false})
	require.NoError(t, err)
	require.False(t, segmented)

	require.NoError(t, c.Close(1000))
	got := c.Segments()
	require.Len(t, got, 1)
	assert.EqualValues(t, 0, got[0].InstretStart)
	assert.EqualValues(t, 1000, got[0].NumInsns)

	require.NoError(t, c.Close(1000), "closing again with nothing new retired is a no-op")
	assert.Len(t, c.Segments(), 1)
}

func TestArenaHandoff_PublishOnceConsumeOnce(t *testing.T) {
	h := segment.NewArenaHandoff[int]()
	_, err := h.Take()
	assert.ErrorIs(t, err, segment.ErrArenaEmpty)

	require.NoError(t, h.Publish(42))
	err = h.Publish(43)
	assert.ErrorIs(t, err, segment.ErrArenaAlreadyPublished)

	v, err := h.Take()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = h.Take()
	assert.ErrorIs(t, err, segment.ErrArenaEmpty)
}
