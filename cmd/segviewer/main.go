// Command segviewer is a read-only terminal inspector for a serialized
// segment log: the JSON-encoded []segment.Segment a metered run produces
// (SPEC_FULL.md §3's "ambient TUI segment inspector" supplemental
// feature). It never drives execution itself; it only renders what a
// prior run already committed.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rv32aot/core/segment"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: segviewer <segment-log.json>\n")
		os.Exit(1)
	}

	segments, err := loadSegments(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "segviewer: %v\n", err)
		os.Exit(1)
	}

	v := newViewer(segments)
	if err := v.App.SetRoot(v.Pages, true).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "segviewer: %v\n", err)
		os.Exit(1)
	}
}

func loadSegments(path string) ([]segment.Segment, error) {
	f, err := os.Open(path) // #nosec G304 -- user-supplied segment log path, the command's entire purpose
	if err != nil {
		return nil, fmt.Errorf("opening segment log: %w", err)
	}
	defer f.Close()

	var segments []segment.Segment
	if err := json.NewDecoder(f).Decode(&segments); err != nil {
		return nil, fmt.Errorf("decoding segment log: %w", err)
	}
	return segments, nil
}

// viewer is the TUI: a scrollable list of committed segments on the left,
// and the selected segment's per-AIR trace heights on the right.
type viewer struct {
	Segments []segment.Segment

	App   *tview.Application
	Pages *tview.Pages

	List    *tview.List
	Detail  *tview.TextView
	Summary *tview.TextView
}

func newViewer(segments []segment.Segment) *viewer {
	v := &viewer{
		Segments: segments,
		App:      tview.NewApplication(),
	}

	v.initializeViews()
	v.buildLayout()
	v.setupKeyBindings()
	v.populateList()

	return v
}

func (v *viewer) initializeViews() {
	v.List = tview.NewList().ShowSecondaryText(true)
	v.List.SetBorder(true).SetTitle(fmt.Sprintf(" Segments (%d) ", len(v.Segments)))

	v.Detail = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	v.Detail.SetBorder(true).SetTitle(" Trace heights ")

	v.Summary = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	v.Summary.SetBorder(true).SetTitle(" Summary ")
	v.Summary.SetText(v.summaryText())
}

func (v *viewer) buildLayout() {
	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.Summary, 5, 0, false).
		AddItem(v.Detail, 0, 1, false)

	main := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(v.List, 0, 1, true).
		AddItem(right, 0, 2, false)

	v.Pages = tview.NewPages().AddPage("main", main, true, true)
}

func (v *viewer) setupKeyBindings() {
	v.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEscape:
			v.App.Stop()
			return nil
		}
		return event
	})
}

func (v *viewer) populateList() {
	for i, seg := range v.Segments {
		i, seg := i, seg
		primary := fmt.Sprintf("segment %d", i)
		secondary := fmt.Sprintf("instret_start=%d num_insns=%d", seg.InstretStart, seg.NumInsns)
		v.List.AddItem(primary, secondary, 0, func() {
			v.showDetail(seg)
		})
	}
	v.List.SetChangedFunc(func(index int, _, _ string, _ rune) {
		if index >= 0 && index < len(v.Segments) {
			v.showDetail(v.Segments[index])
		}
	})
	if len(v.Segments) > 0 {
		v.showDetail(v.Segments[0])
	}
}

func (v *viewer) showDetail(seg segment.Segment) {
	v.Detail.Clear()
	fmt.Fprintf(v.Detail, "instret_start: %d\n", seg.InstretStart)
	fmt.Fprintf(v.Detail, "num_insns:     %d\n", seg.NumInsns)
	fmt.Fprintf(v.Detail, "instret_end:   %d\n\n", seg.InstretStart+seg.NumInsns)
	if len(seg.TraceHeights) == 0 {
		fmt.Fprintln(v.Detail, "no per-AIR trace heights recorded")
		return
	}
	fmt.Fprintln(v.Detail, "trace heights by AIR index:")
	for i, h := range seg.TraceHeights {
		fmt.Fprintf(v.Detail, "  [%3d] %d\n", i, h)
	}
}

func (v *viewer) summaryText() string {
	var totalInsns uint64
	for _, seg := range v.Segments {
		totalInsns += seg.NumInsns
	}
	return fmt.Sprintf("segments: %d\ntotal retired instructions: %d", len(v.Segments), totalInsns)
}
