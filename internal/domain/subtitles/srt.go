// Package subtitles parses and serializes the timed-subtitle format the
// alignment collaborator emits: cue blocks of an index line, an
// `HH:MM:SS,mmm --> HH:MM:SS,mmm` timing line, and the spoken text.
package subtitles

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/redubhq/redub/internal/errors"
	"github.com/redubhq/redub/internal/types"
)

var timingRe = regexp.MustCompile(`(\d{1,2}:\d{2}:\d{2},\d{3})\s*-->\s*(\d{1,2}:\d{2}:\d{2},\d{3})`)

// Parse converts raw timed-subtitle text into an ordered segment sequence.
// Segment indices come from arrival order (1-based); the source's own index
// lines are cosmetic and ignored. A cue without text yields an empty Text.
// Input that contains no timing line at all is a format error.
func Parse(raw string) ([]types.Segment, error) {
	var out []types.Segment
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	for i := 0; i < len(lines); i++ {
		m := timingRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		start, err := ToSeconds(m[1])
		if err != nil {
			return nil, err
		}
		end, err := ToSeconds(m[2])
		if err != nil {
			return nil, err
		}

		var text []string
		for i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" && !timingRe.MatchString(lines[i+1]) {
			i++
			text = append(text, strings.TrimSpace(lines[i]))
		}

		out = append(out, types.Segment{
			Index: len(out) + 1,
			Start: start,
			End:   end,
			Text:  strings.Join(text, " "),
		})
	}

	if len(out) == 0 {
		return nil, errors.Format("no timing lines found in subtitle input")
	}
	return out, nil
}

// Format serializes segments back to the canonical cue-block form. Parsing the
// result yields field-equal segments.
func Format(segs []types.Segment) string {
	var b strings.Builder
	for i, s := range segs {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, FormatTimestamp(s.Start), FormatTimestamp(s.End), s.Text)
	}
	return b.String()
}

// ToJSON renders the flat `{index, start, end, text}` array consumed by
// downstream tools.
func ToJSON(segs []types.Segment) ([]byte, error) {
	return json.MarshalIndent(segs, "", "    ")
}

// ToSeconds converts an `HH:MM:SS,mmm` timestamp to seconds, exact to the
// millisecond. All components are parsed as integers.
func ToSeconds(ts string) (float64, error) {
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0, errors.Format("bad timestamp %q", ts)
	}
	sms := strings.Split(parts[2], ",")
	if len(sms) != 2 {
		return 0, errors.Format("bad timestamp %q", ts)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.Atoi(sms[0])
	ms, err4 := strconv.Atoi(sms[1])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return 0, errors.Format("bad timestamp %q", ts)
	}
	return float64(h)*3600 + float64(m)*60 + float64(s) + float64(ms)/1000, nil
}

// FormatTimestamp converts seconds to `HH:MM:SS,mmm`, rounding to the nearest
// millisecond so the round trip with ToSeconds is exact.
func FormatTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(math.Round(sec * 1000))
	ms := total % 1000
	s := total / 1000 % 60
	m := total / 60000 % 60
	h := total / 3600000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
