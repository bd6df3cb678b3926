package types

import "fmt"

// Segment is one spoken cue: a start/end window in seconds plus the text the
// narration speaks in that window. Index reflects arrival order (1-based) and
// pairs segments across the old and new alignment runs.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (s Segment) Duration() float64 { return s.End - s.Start }

// ClipAction is the re-timing decision for one segment's video slice.
type ClipAction int

const (
	ActionKeep ClipAction = iota
	ActionTrim
	ActionStretch
)

func (a ClipAction) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionTrim:
		return "trim"
	case ActionStretch:
		return "stretch"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ClipPlanEntry describes how one source slice is materialized. SpeedFactor is
// only meaningful for ActionStretch and is always in (0, 1): the clip plays
// back slower to absorb extra narration time.
type ClipPlanEntry struct {
	Index       int
	SourceStart float64
	SourceEnd   float64
	Action      ClipAction
	SpeedFactor float64
}

// TargetDuration is the on-timeline duration the materialized clip must have.
func (e ClipPlanEntry) TargetDuration() float64 {
	d := e.SourceEnd - e.SourceStart
	if e.Action == ActionStretch && e.SpeedFactor > 0 {
		return d / e.SpeedFactor
	}
	return d
}

// Clip is a materialized slice on disk, owned by the segmenter until the
// assembler consumes it.
type Clip struct {
	Index int
	Path  string
}

// MixTrack is one windowed, gain-adjusted background-music source in the mix
// plan. Order fixes its position in the cross-faded bed.
type MixTrack struct {
	Mood        string
	Path        string
	WindowStart float64
	WindowEnd   float64
	Volume      float64
	Order       int
}

func (t MixTrack) WindowDuration() float64 { return t.WindowEnd - t.WindowStart }

// MixPlan describes the final audio: a cross-faded background bed built from
// mood tracks, mixed under the dominant narration track.
type MixPlan struct {
	Tracks    []MixTrack
	Narration string
}

// Manifest is the per-run summary written next to the outputs.
type Manifest struct {
	Input string         `json:"input"`
	Final string         `json:"final"`
	Clips []ManifestClip `json:"clips"`
}

type ManifestClip struct {
	Index       int     `json:"index"`
	StartSec    float64 `json:"start_sec"`
	EndSec      float64 `json:"end_sec"`
	Action      string  `json:"action"`
	SpeedFactor float64 `json:"speed_factor,omitempty"`
	TargetSec   float64 `json:"target_sec"`
	File        string  `json:"file"`
}
