package timeline

import (
	"github.com/redubhq/redub/internal/errors"
	"github.com/redubhq/redub/internal/types"
)

// stretchThreshold is the slack, in seconds, a segment may run long before we
// slow its clip down instead of leaving it untouched. Below it the drift is
// accepted: per-segment, it is inaudible against a music bed, and trimming
// neighbors to compensate would couple segments that are otherwise independent.
const stretchThreshold = 0.8

// Plan applies the trim/stretch/keep policy to each old segment and its delta,
// independently per index:
//
//   - delta < 0: the new narration is shorter, so the slice end moves up by
//     |delta|. A negative result clamps to a zero-length clip rather than an
//     inverted range; materializing it is the segmenter's failure to report.
//   - delta > stretchThreshold: the slice keeps its source range but plays at
//     speedFactor = oldDur/(oldDur+delta), always in (0, 1).
//   - otherwise: source boundaries unchanged.
func Plan(oldSegs []types.Segment, deltas []float64) ([]types.ClipPlanEntry, error) {
	if len(oldSegs) != len(deltas) {
		return nil, errors.CountMismatch(
			"%d segments but %d deltas", len(oldSegs), len(deltas))
	}
	plan := make([]types.ClipPlanEntry, len(oldSegs))
	for i, seg := range oldSegs {
		entry := types.ClipPlanEntry{
			Index:       seg.Index,
			SourceStart: seg.Start,
			SourceEnd:   seg.End,
			Action:      types.ActionKeep,
		}
		delta := deltas[i]
		switch {
		case delta < 0:
			entry.Action = types.ActionTrim
			entry.SourceEnd = seg.End + delta
			if entry.SourceEnd <= entry.SourceStart {
				entry.SourceEnd = entry.SourceStart
			}
		case delta > stretchThreshold:
			entry.Action = types.ActionStretch
			entry.SpeedFactor = seg.Duration() / (seg.Duration() + delta)
		}
		plan[i] = entry
	}
	return plan, nil
}
