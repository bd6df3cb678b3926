// Package ports defines the collaborator boundaries of the re-dub pipeline.
// Adapters under ports/adapters implement them; the usecase depends only on
// these interfaces.
package ports

import (
	"context"

	"github.com/redubhq/redub/internal/types"
)

// Transcoder is the media-tool boundary. Each method is one typed operation;
// translating it to an actual process invocation is the adapter's concern.
// All operations are synchronous and block until the tool exits.
type Transcoder interface {
	// ExtractAudio pulls the audio track of a video into a standalone file.
	ExtractAudio(ctx context.Context, inVideo, outAudio string) error
	// TrimSilence removes leading/trailing silence from an audio file.
	TrimSilence(ctx context.Context, inAudio, outAudio string) error
	// ChangeTempo re-times an audio file by factor (>1 is faster).
	ChangeTempo(ctx context.Context, inAudio, outAudio string, factor float64) error
	// CutClip re-encodes the [start, end) window of a video with the fixed
	// codec parameters every clip shares.
	CutClip(ctx context.Context, inVideo string, start, end float64, outVideo string) error
	// StretchClip cuts the window like CutClip and slows both streams by
	// speedFactor in (0, 1).
	StretchClip(ctx context.Context, inVideo string, start, end, speedFactor float64, outVideo string) error
	// FreezeClip renders a still-frame placeholder of the given duration from
	// the frame at position at.
	FreezeClip(ctx context.Context, inVideo string, at, duration float64, outVideo string) error
	// Concat stream-copies the ordered clips into one video.
	Concat(ctx context.Context, clips []types.Clip, outVideo string) error
	// MusicBed builds the windowed, gain-adjusted, loop-extended, cross-faded
	// background bed from the plan's tracks.
	MusicBed(ctx context.Context, tracks []types.MixTrack, outAudio string) error
	// MixNarration mixes the bed (attenuated) and the narration (dominant)
	// onto the video's audio channel, stream-copying the picture.
	MixNarration(ctx context.Context, inVideo, narration, bed, outVideo string) error
	// ProbeDuration reports a media file's duration in seconds.
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Aligner runs forced alignment of a script against an audio track and
// returns the resulting segment sequence.
type Aligner interface {
	Align(ctx context.Context, audioPath, scriptPath, workDir string) ([]types.Segment, error)
}

// SpeechSynth generates narration audio from script text.
type SpeechSynth interface {
	Synthesize(ctx context.Context, text, voiceID, outPath string) error
}

// SubtitleRenderer burns a subtitle file into a video via the remote
// rendering service.
type SubtitleRenderer interface {
	Render(ctx context.Context, videoPath, subtitlePath, outPath string) error
}
