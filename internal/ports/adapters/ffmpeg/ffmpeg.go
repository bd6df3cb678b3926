// Package ffmpeg binds the Transcoder port to the ffmpeg and ffprobe
// binaries. All command syntax lives here; callers speak in typed operations.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/redubhq/redub/internal/errors"
	"github.com/redubhq/redub/internal/types"
)

const (
	// crossfadeSec is the fixed fade joining adjacent bed windows.
	crossfadeSec = 0.1
	// narrationGain and bedGain set the mix balance: narration dominant,
	// music ducked under it.
	narrationGain = 1.5
	bedGain       = 0.5
)

// clipCodecArgs pins frame rate and codecs so every clip the segmenter
// produces is concat-compatible via stream copy.
var clipCodecArgs = []string{
	"-c:v", "libx264",
	"-preset", "veryfast",
	"-crf", "18",
	"-pix_fmt", "yuv420p",
	"-r", "30",
	"-c:a", "aac",
	"-b:a", "192k",
	"-ar", "44100",
	"-ac", "2",
}

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (a *Adapter) run(ctx context.Context, op string, args ...string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return errors.ExternalProcess("ffmpeg %s failed", op).WithCause(
			fmt.Errorf("%w\n%s", err, string(b)))
	}
	return nil
}

func ensureOutput(op, path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.OutputMissing("ffmpeg %s reported success but %s is absent", op, path)
	}
	return nil
}

func (a *Adapter) ExtractAudio(ctx context.Context, inVideo, outAudio string) error {
	err := a.run(ctx, "extract audio",
		"-y",
		"-i", inVideo,
		"-q:a", "0",
		"-map", "a",
		outAudio,
	)
	if err != nil {
		return err
	}
	return ensureOutput("extract audio", outAudio)
}

func (a *Adapter) TrimSilence(ctx context.Context, inAudio, outAudio string) error {
	// Leading silence is removed directly; trailing silence by reversing,
	// removing, and reversing back.
	const edge = "silenceremove=start_periods=1:start_threshold=-50dB:start_silence=0.5"
	err := a.run(ctx, "trim silence",
		"-y",
		"-i", inAudio,
		"-af", edge+",areverse,"+edge+",areverse",
		outAudio,
	)
	if err != nil {
		return err
	}
	return ensureOutput("trim silence", outAudio)
}

func (a *Adapter) ChangeTempo(ctx context.Context, inAudio, outAudio string, factor float64) error {
	if factor <= 0 {
		return errors.Validation("tempo factor must be positive, got %v", factor)
	}
	err := a.run(ctx, "change tempo",
		"-y",
		"-i", inAudio,
		"-filter:a", atempoChain(factor),
		outAudio,
	)
	if err != nil {
		return err
	}
	return ensureOutput("change tempo", outAudio)
}

func (a *Adapter) CutClip(ctx context.Context, inVideo string, start, end float64, outVideo string) error {
	args := []string{
		"-y",
		"-ss", fmtSeconds(start),
		"-to", fmtSeconds(end),
		"-i", inVideo,
	}
	args = append(args, clipCodecArgs...)
	args = append(args, outVideo)
	if err := a.run(ctx, "cut clip", args...); err != nil {
		return err
	}
	return ensureOutput("cut clip", outVideo)
}

func (a *Adapter) StretchClip(ctx context.Context, inVideo string, start, end, speedFactor float64, outVideo string) error {
	if speedFactor <= 0 || speedFactor >= 1 {
		return errors.Validation("stretch speed factor must be in (0,1), got %v", speedFactor)
	}
	args := []string{
		"-y",
		"-ss", fmtSeconds(start),
		"-to", fmtSeconds(end),
		"-i", inVideo,
		"-vf", fmt.Sprintf("setpts=%s*PTS", fmtFactor(1/speedFactor)),
		"-af", atempoChain(speedFactor),
	}
	args = append(args, clipCodecArgs...)
	args = append(args, outVideo)
	if err := a.run(ctx, "stretch clip", args...); err != nil {
		return err
	}
	return ensureOutput("stretch clip", outVideo)
}

func (a *Adapter) FreezeClip(ctx context.Context, inVideo string, at, duration float64, outVideo string) error {
	args := []string{
		"-y",
		"-ss", fmtSeconds(at),
		"-i", inVideo,
		"-f", "lavfi",
		"-t", fmtSeconds(duration),
		"-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-vf", fmt.Sprintf(
			"select=eq(n\\,0),tpad=stop=-1:stop_mode=clone,trim=duration=%s,setpts=PTS-STARTPTS",
			fmtSeconds(duration)),
		"-t", fmtSeconds(duration),
		"-map", "0:v",
		"-map", "1:a",
	}
	args = append(args, clipCodecArgs...)
	args = append(args, outVideo)
	if err := a.run(ctx, "freeze clip", args...); err != nil {
		return err
	}
	return ensureOutput("freeze clip", outVideo)
}

// Concat stream-copies the ordered clips into one file via the concat
// demuxer. The generated list file is removed whether or not the call
// succeeds.
func (a *Adapter) Concat(ctx context.Context, clips []types.Clip, outVideo string) error {
	if len(clips) == 0 {
		return errors.Validation("no clips to concatenate")
	}
	listPath := filepath.Join(filepath.Dir(outVideo), "concat-list.txt")
	var b strings.Builder
	for _, c := range clips {
		abs, err := filepath.Abs(c.Path)
		if err != nil {
			return errors.Internal("resolve clip path %s", c.Path).WithCause(err)
		}
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(abs))
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return err
	}
	defer os.Remove(listPath)

	err := a.run(ctx, "concat",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outVideo,
	)
	if err != nil {
		return err
	}
	return ensureOutput("concat", outVideo)
}

// MusicBed windows, gains, loop-extends, and cross-fades the mood tracks into
// one continuous background bed.
func (a *Adapter) MusicBed(ctx context.Context, tracks []types.MixTrack, outAudio string) error {
	if len(tracks) == 0 {
		return errors.Validation("no tracks in mix plan")
	}
	args := []string{"-y"}
	for _, tr := range tracks {
		args = append(args, "-stream_loop", "-1", "-i", tr.Path)
	}
	filter, label := musicBedFilter(tracks)
	args = append(args,
		"-filter_complex", filter,
		"-map", label,
		"-c:a", "libmp3lame",
		"-q:a", "2",
		outAudio,
	)
	if err := a.run(ctx, "music bed", args...); err != nil {
		return err
	}
	return ensureOutput("music bed", outAudio)
}

func (a *Adapter) MixNarration(ctx context.Context, inVideo, narration, bed, outVideo string) error {
	err := a.run(ctx, "mix narration",
		"-y",
		"-i", inVideo,
		"-i", narration,
		"-i", bed,
		"-filter_complex", mixFilter(),
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		outVideo,
	)
	if err != nil {
		return err
	}
	return ensureOutput("mix narration", outVideo)
}

func (a *Adapter) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, errors.ExternalProcess("ffprobe duration failed").WithCause(
			fmt.Errorf("%w\n%s", err, string(b)))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.ExternalProcess("parse ffprobe duration %q", s).WithCause(err)
	}
	return sec, nil
}

// musicBedFilter builds the filter graph: per track, window out the requested
// slice, apply its gain, loop-extend to exactly the window length (loop then
// truncate, never resample), then cross-fade consecutive beds.
func musicBedFilter(tracks []types.MixTrack) (filter, outLabel string) {
	var b strings.Builder
	for i, tr := range tracks {
		fmt.Fprintf(&b,
			"[%d:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS,volume=%s,aloop=loop=-1:size=2147483647,atrim=duration=%s,asetpts=PTS-STARTPTS[b%d];",
			i,
			fmtSeconds(tr.WindowStart),
			fmtSeconds(tr.WindowEnd),
			fmtFactor(tr.Volume),
			fmtSeconds(tr.WindowDuration()),
			i,
		)
	}
	if len(tracks) == 1 {
		return strings.TrimSuffix(b.String(), ";"), "[b0]"
	}
	prev := "[b0]"
	for i := 1; i < len(tracks); i++ {
		out := fmt.Sprintf("[x%d]", i)
		if i == len(tracks)-1 {
			out = "[bed]"
		}
		fmt.Fprintf(&b, "%s[b%d]acrossfade=d=%s%s", prev, i, fmtSeconds(crossfadeSec), out)
		if i != len(tracks)-1 {
			b.WriteString(";")
		}
		prev = out
	}
	return b.String(), "[bed]"
}

func mixFilter() string {
	return fmt.Sprintf(
		"[1:a]volume=%s[nar];[2:a]volume=%s[bgm];[nar][bgm]amix=inputs=2:duration=first:dropout_transition=2[aout]",
		fmtFactor(narrationGain), fmtFactor(bedGain))
}

// bedDuration is the length of the cross-faded bed: each fade overlaps
// adjacent windows by crossfadeSec.
func bedDuration(tracks []types.MixTrack) float64 {
	var total float64
	for _, tr := range tracks {
		total += tr.WindowDuration()
	}
	return total - crossfadeSec*float64(len(tracks)-1)
}

// atempoChain expresses an arbitrary positive tempo factor as a chain of
// atempo filters, each within ffmpeg's supported [0.5, 2.0] range.
func atempoChain(factor float64) string {
	var parts []string
	f := factor
	for f < 0.5 {
		parts = append(parts, "atempo=0.500000")
		f *= 2
	}
	for f > 2 {
		parts = append(parts, "atempo=2.000000")
		f /= 2
	}
	parts = append(parts, "atempo="+fmtFactor(f))
	return strings.Join(parts, ",")
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func fmtFactor(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
