// Package pipeline wires the adapters together and runs one complete re-dub
// request: extract the original narration, synthesize the new one, align
// both against the script, then hand the two alignments to the re-timing
// engine and bundle its outputs.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/redubhq/redub/internal/domain/moods"
	"github.com/redubhq/redub/internal/domain/subtitles"
	"github.com/redubhq/redub/internal/errors"
	"github.com/redubhq/redub/internal/ports"
	"github.com/redubhq/redub/internal/ports/adapters/aeneas"
	"github.com/redubhq/redub/internal/ports/adapters/elevenlabs"
	"github.com/redubhq/redub/internal/ports/adapters/ffmpeg"
	"github.com/redubhq/redub/internal/ports/adapters/subrender"
	"github.com/redubhq/redub/internal/types"
	"github.com/redubhq/redub/internal/usecase"
)

type Config struct {
	VideoPath  string
	ScriptPath string
	OutDir     string
	// WorkDir is the base directory for per-run scratch space. If empty,
	// defaults to ".cache".
	WorkDir string
	Logf    func(format string, args ...any)

	VoiceID     string
	TTSAPIKey   string
	TTSModel    string
	TTSBaseURL  string
	SpeechTempo float64 // 1.0 leaves the synthesized narration untouched
	TrimSilence bool

	Language   string
	PythonPath string

	FFmpegPath  string
	FFprobePath string

	BurnSubtitles bool
	Subtitles     subrender.Config

	Moods             []moods.Track
	MixWindows        []moods.Window
	ClipFailurePolicy string
}

func (c Config) Validate() error {
	if c.VideoPath == "" {
		return errors.Validation("video path is empty")
	}
	if _, err := os.Stat(c.VideoPath); err != nil {
		return errors.Validation("stat video: %v", err)
	}
	if c.ScriptPath == "" {
		return errors.Validation("script path is empty")
	}
	if _, err := os.Stat(c.ScriptPath); err != nil {
		return errors.Validation("stat script: %v", err)
	}
	if c.VoiceID == "" {
		return errors.Validation("voice id is required")
	}
	if c.TTSAPIKey == "" {
		return errors.Validation("tts api key is required")
	}
	if c.SpeechTempo < 0 {
		return errors.Validation("speech tempo must be positive")
	}
	if c.BurnSubtitles && c.Subtitles.BaseURL == "" {
		return errors.Validation("subtitle service url is required when burning subtitles")
	}
	if len(c.MixWindows) == 0 {
		return errors.Validation("at least one mood window is required")
	}
	if _, err := usecase.ParseFailurePolicy(c.ClipFailurePolicy); err != nil {
		return err
	}
	return nil
}

type Result struct {
	RunDir     string
	FinalPath  string
	BundlePath string
	OldSRTPath string
	NewSRTPath string
	Manifest   types.Manifest
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	// adapters
	tc := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	aligner := aeneas.New(cfg.PythonPath, cfg.Language)
	tts := elevenlabs.New(cfg.TTSAPIKey, cfg.TTSModel, cfg.TTSBaseURL)
	var renderer ports.SubtitleRenderer
	if cfg.BurnSubtitles {
		renderer = subrender.New(cfg.Subtitles)
	}

	lib, err := moods.NewLibrary(cfg.Moods)
	if err != nil {
		return Result{}, err
	}
	policy, err := usecase.ParseFailurePolicy(cfg.ClipFailurePolicy)
	if err != nil {
		return Result{}, err
	}

	baseCache := cfg.WorkDir
	if baseCache == "" {
		baseCache = ".cache"
	}
	workDir := filepath.Join(baseCache, "runs", uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Result{}, err
	}
	logf("workspace: %s", workDir)

	outRoot := cfg.OutDir
	if outRoot == "" {
		outRoot = "out"
	}
	runDir := buildRunOutDir(outRoot, cfg.VideoPath, time.Now().UTC())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return Result{}, err
	}
	logf("output run dir: %s", runDir)

	narration, err := prepareNarration(ctx, cfg, tc, tts, workDir, logf)
	if err != nil {
		return Result{}, err
	}

	oldAudio := filepath.Join(workDir, "original.mp3")
	if err := tc.ExtractAudio(ctx, cfg.VideoPath, oldAudio); err != nil {
		return Result{}, err
	}

	logf("aligning script against new narration")
	newSegs, err := aligner.Align(ctx, narration, cfg.ScriptPath, workDir)
	if err != nil {
		return Result{}, err
	}
	logf("aligning script against original narration")
	oldSegs, err := aligner.Align(ctx, oldAudio, cfg.ScriptPath, workDir)
	if err != nil {
		return Result{}, err
	}

	oldSRT := filepath.Join(runDir, "old.srt")
	newSRT := filepath.Join(runDir, "new.srt")
	if err := writeAlignment(oldSRT, oldSegs); err != nil {
		return Result{}, err
	}
	if err := writeAlignment(newSRT, newSegs); err != nil {
		return Result{}, err
	}

	mix, err := lib.BuildMixPlan(cfg.MixWindows, narration)
	if err != nil {
		return Result{}, err
	}

	uc := usecase.New(usecase.Deps{Transcoder: tc, Renderer: renderer})
	res, err := uc.Run(ctx, usecase.Input{
		VideoPath:     cfg.VideoPath,
		OldSRTPath:    oldSRT,
		NewSRTPath:    newSRT,
		Mix:           mix,
		BurnSubtitles: cfg.BurnSubtitles,
		OnClipFailure: policy,
		WorkDir:       workDir,
		OutDir:        runDir,
		Logf:          logf,
	})
	if err != nil {
		return Result{}, err
	}

	b, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "manifest.json"), b, 0o644); err != nil {
		return Result{}, err
	}

	bundle := filepath.Join(runDir, "bundle.zip")
	if err := writeBundle(bundle, res.FinalPath, oldSRT, newSRT); err != nil {
		return Result{}, err
	}
	logf("bundle written: %s", bundle)

	return Result{
		RunDir:     runDir,
		FinalPath:  res.FinalPath,
		BundlePath: bundle,
		OldSRTPath: oldSRT,
		NewSRTPath: newSRT,
		Manifest:   res.Manifest,
	}, nil
}

// prepareNarration synthesizes the new narration and applies the optional
// tempo change and silence trim. Returns the path of the track to align and
// mix against.
func prepareNarration(ctx context.Context, cfg Config, tc ports.Transcoder, tts ports.SpeechSynth, workDir string, logf func(string, ...any)) (string, error) {
	script, err := os.ReadFile(cfg.ScriptPath)
	if err != nil {
		return "", err
	}

	cur := filepath.Join(workDir, "narration.gen.mp3")
	logf("synthesizing narration (voice %s)", cfg.VoiceID)
	if err := tts.Synthesize(ctx, string(script), cfg.VoiceID, cur); err != nil {
		return "", err
	}

	if cfg.SpeechTempo != 0 && cfg.SpeechTempo != 1 {
		next := filepath.Join(workDir, "narration.tempo.mp3")
		if err := tc.ChangeTempo(ctx, cur, next, cfg.SpeechTempo); err != nil {
			return "", err
		}
		cur = next
	}
	if cfg.TrimSilence {
		next := filepath.Join(workDir, "narration.mp3")
		if err := tc.TrimSilence(ctx, cur, next); err != nil {
			return "", err
		}
		cur = next
	}
	return cur, nil
}

func writeAlignment(srtPath string, segs []types.Segment) error {
	if err := os.WriteFile(srtPath, []byte(subtitles.Format(segs)), 0o644); err != nil {
		return err
	}
	jb, err := subtitles.ToJSON(segs)
	if err != nil {
		return err
	}
	return os.WriteFile(strings.TrimSuffix(srtPath, ".srt")+".json", jb, 0o644)
}

func buildRunOutDir(outRoot, videoPath string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", videoPath, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}
