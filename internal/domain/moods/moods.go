// Package moods resolves background-music selection. Moods are a closed
// enumeration; unknown values are rejected at configuration time instead of
// silently defaulting to some track.
package moods

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/redubhq/redub/internal/errors"
	"github.com/redubhq/redub/internal/types"
)

// Mood is an emotional category a background track is tagged with.
type Mood string

const (
	Upbeat Mood = "upbeat"
	Somber Mood = "somber"
	Calm   Mood = "calm"
	Tense  Mood = "tense"
)

var known = []Mood{Upbeat, Somber, Calm, Tense}

// ParseMood validates a free-text mood name against the closed set.
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if !lo.Contains(known, m) {
		return "", errors.Validation("unknown mood %q (supported: %s)", s, joinKnown())
	}
	return m, nil
}

func joinKnown() string {
	names := lo.Map(known, func(m Mood, _ int) string { return string(m) })
	return strings.Join(names, ", ")
}

// Track is a music source tagged with its mood.
type Track struct {
	Mood Mood   `yaml:"mood"`
	Path string `yaml:"path"`
}

// Window selects a slice of a mood's track for the background bed.
type Window struct {
	Mood   string  `yaml:"mood" json:"mood"`
	Start  float64 `yaml:"start" json:"start"`
	End    float64 `yaml:"end" json:"end"`
	Volume float64 `yaml:"volume" json:"volume"`
}

// Library maps moods to typed track descriptors.
type Library struct {
	tracks map[Mood]Track
}

// NewLibrary builds a library from configured tracks, rejecting unknown moods
// and duplicate entries.
func NewLibrary(tracks []Track) (*Library, error) {
	byMood := make(map[Mood]Track, len(tracks))
	for _, tr := range tracks {
		m, err := ParseMood(string(tr.Mood))
		if err != nil {
			return nil, err
		}
		if _, dup := byMood[m]; dup {
			return nil, errors.Validation("duplicate track for mood %q", m)
		}
		if tr.Path == "" {
			return nil, errors.Validation("track for mood %q has no path", m)
		}
		tr.Mood = m
		byMood[m] = tr
	}
	return &Library{tracks: byMood}, nil
}

// Resolve returns the track registered for a mood.
func (l *Library) Resolve(mood string) (Track, error) {
	m, err := ParseMood(mood)
	if err != nil {
		return Track{}, err
	}
	tr, ok := l.tracks[m]
	if !ok {
		return Track{}, errors.Validation("no track configured for mood %q", m)
	}
	return tr, nil
}

// BuildMixPlan resolves mood windows into an ordered mix plan over the given
// narration track. Windows are validated: start < end and positive volume.
func (l *Library) BuildMixPlan(windows []Window, narration string) (types.MixPlan, error) {
	if len(windows) == 0 {
		return types.MixPlan{}, errors.Validation("at least one mood window is required")
	}
	plan := types.MixPlan{Narration: narration}
	for i, w := range windows {
		tr, err := l.Resolve(w.Mood)
		if err != nil {
			return types.MixPlan{}, err
		}
		if w.End <= w.Start {
			return types.MixPlan{}, errors.Validation(
				"mood window %d: end %.3f must be after start %.3f", i, w.End, w.Start)
		}
		if w.Volume <= 0 {
			return types.MixPlan{}, errors.Validation("mood window %d: volume must be positive", i)
		}
		plan.Tracks = append(plan.Tracks, types.MixTrack{
			Mood:        string(tr.Mood),
			Path:        tr.Path,
			WindowStart: w.Start,
			WindowEnd:   w.End,
			Volume:      w.Volume,
			Order:       i,
		})
	}
	sort.SliceStable(plan.Tracks, func(a, b int) bool {
		return plan.Tracks[a].Order < plan.Tracks[b].Order
	})
	return plan, nil
}
