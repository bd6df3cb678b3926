// Package timeline holds the pure reconciliation core: it compares the two
// alignment runs of the same script and decides, per segment, how the video
// slice must be re-timed to match the new narration's pacing.
package timeline

import (
	"github.com/redubhq/redub/internal/errors"
	"github.com/redubhq/redub/internal/types"
)

// epsilon absorbs floating-point noise in duration deltas so equal-length
// segments never trigger a spurious re-encode.
const epsilon = 1e-6

// Reconcile pairs the old and new segment sequences by index and returns one
// duration delta per pair (new minus old, seconds). The sequences describe the
// same script, so a length mismatch is fatal.
func Reconcile(oldSegs, newSegs []types.Segment) ([]float64, error) {
	if len(oldSegs) != len(newSegs) {
		return nil, errors.CountMismatch(
			"old alignment has %d segments, new has %d", len(oldSegs), len(newSegs))
	}
	deltas := make([]float64, len(oldSegs))
	for i := range oldSegs {
		d := newSegs[i].Duration() - oldSegs[i].Duration()
		if d < epsilon && d > -epsilon {
			d = 0
		}
		deltas[i] = d
	}
	return deltas, nil
}
