// Package usecase drives the re-timing engine: parse both alignments,
// reconcile durations, plan per-segment actions, materialize and assemble the
// clips, burn subtitles, and mix the background bed. Stages run strictly in
// order; each blocks on its predecessor's complete output.
package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redubhq/redub/internal/domain/subtitles"
	"github.com/redubhq/redub/internal/domain/timeline"
	"github.com/redubhq/redub/internal/errors"
	"github.com/redubhq/redub/internal/ports"
	"github.com/redubhq/redub/internal/types"
)

// FailurePolicy decides what happens when one clip's transcode fails.
// Dropping the clip and concatenating a shorter sequence is deliberately not
// an option: that desynchronizes the assembly against the narration.
type FailurePolicy string

const (
	// FailAbort fails the whole request on the first bad clip.
	FailAbort FailurePolicy = "abort"
	// FailFreeze substitutes a freeze-frame placeholder of the planned
	// duration so the timeline stays consistent.
	FailFreeze FailurePolicy = "freeze"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case FailAbort, FailFreeze:
		return FailurePolicy(s), nil
	case "":
		return FailAbort, nil
	default:
		return "", errors.Validation("unknown clip failure policy %q (abort or freeze)", s)
	}
}

type Deps struct {
	Transcoder ports.Transcoder
	Renderer   ports.SubtitleRenderer
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Input struct {
	VideoPath  string
	OldSRTPath string
	NewSRTPath string

	// Mix carries the resolved background tracks plus the narration file.
	Mix types.MixPlan

	BurnSubtitles bool
	OnClipFailure FailurePolicy

	// WorkDir is owned exclusively by this request; cleanup belongs to the
	// caller.
	WorkDir string
	OutDir  string
	Logf    func(format string, args ...any)
}

type Result struct {
	FinalPath     string
	AssembledPath string
	Plan          []types.ClipPlanEntry
	Manifest      types.Manifest
}

func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	logf := in.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	oldSegs, err := parseSRTFile(in.OldSRTPath)
	if err != nil {
		return Result{}, fmt.Errorf("old subtitles: %w", err)
	}
	newSegs, err := parseSRTFile(in.NewSRTPath)
	if err != nil {
		return Result{}, fmt.Errorf("new subtitles: %w", err)
	}

	deltas, err := timeline.Reconcile(oldSegs, newSegs)
	if err != nil {
		return Result{}, err
	}
	plan, err := timeline.Plan(oldSegs, deltas)
	if err != nil {
		return Result{}, err
	}
	logf("planned %d clips", len(plan))

	clips, err := u.segment(ctx, in, plan, logf)
	if err != nil {
		return Result{}, err
	}

	assembled := filepath.Join(in.WorkDir, "assembled.mp4")
	if err := u.d.Transcoder.Concat(ctx, clips, assembled); err != nil {
		return Result{}, err
	}
	logf("assembled %d clips", len(clips))

	subtitled := assembled
	if in.BurnSubtitles {
		if u.d.Renderer == nil {
			return Result{}, errors.Validation("subtitle burning requested but no renderer configured")
		}
		subtitled = filepath.Join(in.WorkDir, "subtitled.mp4")
		if err := u.d.Renderer.Render(ctx, assembled, in.NewSRTPath, subtitled); err != nil {
			return Result{}, err
		}
		logf("subtitles rendered")
	}

	bed := filepath.Join(in.WorkDir, "bed.mp3")
	if err := u.d.Transcoder.MusicBed(ctx, in.Mix.Tracks, bed); err != nil {
		return Result{}, err
	}
	final := filepath.Join(in.OutDir, "final.mp4")
	if err := u.d.Transcoder.MixNarration(ctx, subtitled, in.Mix.Narration, bed, final); err != nil {
		return Result{}, err
	}
	logf("final video: %s", final)

	m := buildManifest(in.VideoPath, final, plan, clips)
	return Result{FinalPath: final, AssembledPath: assembled, Plan: plan, Manifest: m}, nil
}

// segment materializes one clip per plan entry. Every entry yields a clip:
// a failed transcode either aborts the request or produces a freeze-frame
// placeholder, per the configured policy.
func (u Usecase) segment(ctx context.Context, in Input, plan []types.ClipPlanEntry, logf func(string, ...any)) ([]types.Clip, error) {
	clipsDir := filepath.Join(in.WorkDir, "clips")
	if err := os.MkdirAll(clipsDir, 0o755); err != nil {
		return nil, err
	}

	clips := make([]types.Clip, 0, len(plan))
	for _, entry := range plan {
		out := filepath.Join(clipsDir, fmt.Sprintf("clip_%03d.mp4", entry.Index))

		var err error
		switch entry.Action {
		case types.ActionStretch:
			err = u.d.Transcoder.StretchClip(ctx, in.VideoPath, entry.SourceStart, entry.SourceEnd, entry.SpeedFactor, out)
		default:
			err = u.d.Transcoder.CutClip(ctx, in.VideoPath, entry.SourceStart, entry.SourceEnd, out)
		}
		if err != nil {
			if in.OnClipFailure != FailFreeze {
				return nil, fmt.Errorf("segment %d (%s): %w", entry.Index, entry.Action, err)
			}
			logf("segment %d failed, substituting freeze frame: %v", entry.Index, err)
			if ferr := u.d.Transcoder.FreezeClip(ctx, in.VideoPath, entry.SourceStart, entry.TargetDuration(), out); ferr != nil {
				return nil, fmt.Errorf("segment %d freeze placeholder: %w", entry.Index, ferr)
			}
		}
		clips = append(clips, types.Clip{Index: entry.Index, Path: out})
	}
	return clips, nil
}

func parseSRTFile(path string) ([]types.Segment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return subtitles.Parse(string(b))
}

func buildManifest(input, final string, plan []types.ClipPlanEntry, clips []types.Clip) types.Manifest {
	m := types.Manifest{Input: input, Final: final}
	for i, entry := range plan {
		m.Clips = append(m.Clips, types.ManifestClip{
			Index:       entry.Index,
			StartSec:    entry.SourceStart,
			EndSec:      entry.SourceEnd,
			Action:      entry.Action.String(),
			SpeedFactor: entry.SpeedFactor,
			TargetSec:   entry.TargetDuration(),
			File:        filepath.ToSlash(filepath.Join("clips", filepath.Base(clips[i].Path))),
		})
	}
	return m
}
