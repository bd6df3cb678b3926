package usecase

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/redubhq/redub/internal/errors"
	"github.com/redubhq/redub/internal/types"
)

type cutCall struct {
	start, end float64
}

type stretchCall struct {
	start, end, speed float64
}

type freezeCall struct {
	at, duration float64
}

type fakeTranscoder struct {
	cuts      []cutCall
	stretches []stretchCall
	freezes   []freezeCall
	concats   [][]types.Clip
	beds      [][]types.MixTrack
	mixes     int

	failCutIndex int // 1-based call number to fail on; 0 = never
}

func (f *fakeTranscoder) ExtractAudio(context.Context, string, string) error   { return nil }
func (f *fakeTranscoder) TrimSilence(context.Context, string, string) error    { return nil }
func (f *fakeTranscoder) ChangeTempo(context.Context, string, string, float64) error {
	return nil
}

func (f *fakeTranscoder) CutClip(_ context.Context, _ string, start, end float64, out string) error {
	f.cuts = append(f.cuts, cutCall{start, end})
	if f.failCutIndex > 0 && len(f.cuts) == f.failCutIndex {
		return errors.ExternalProcess("boom")
	}
	return os.WriteFile(out, []byte("clip"), 0o644)
}

func (f *fakeTranscoder) StretchClip(_ context.Context, _ string, start, end, speed float64, out string) error {
	f.stretches = append(f.stretches, stretchCall{start, end, speed})
	return os.WriteFile(out, []byte("clip"), 0o644)
}

func (f *fakeTranscoder) FreezeClip(_ context.Context, _ string, at, duration float64, out string) error {
	f.freezes = append(f.freezes, freezeCall{at, duration})
	return os.WriteFile(out, []byte("freeze"), 0o644)
}

func (f *fakeTranscoder) Concat(_ context.Context, clips []types.Clip, out string) error {
	f.concats = append(f.concats, clips)
	return os.WriteFile(out, []byte("assembled"), 0o644)
}

func (f *fakeTranscoder) MusicBed(_ context.Context, tracks []types.MixTrack, out string) error {
	f.beds = append(f.beds, tracks)
	return os.WriteFile(out, []byte("bed"), 0o644)
}

func (f *fakeTranscoder) MixNarration(_ context.Context, _, _, _, out string) error {
	f.mixes++
	return os.WriteFile(out, []byte("final"), 0o644)
}

func (f *fakeTranscoder) ProbeDuration(context.Context, string) (float64, error) {
	return 0, nil
}

type fakeRenderer struct {
	calls []string
	err   error
}

func (f *fakeRenderer) Render(_ context.Context, _, subtitlePath, out string) error {
	f.calls = append(f.calls, subtitlePath)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(out, []byte("subtitled"), 0o644)
}

func writeSRT(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const (
	// old: three segments of 2.0s, 2.0s, 2.0s
	oldSRT = "1\n00:00:01,000 --> 00:00:03,000\nhello\n\n" +
		"2\n00:00:03,000 --> 00:00:05,000\nmiddle\n\n" +
		"3\n00:00:05,000 --> 00:00:07,000\nbye\n\n"
	// new: 1.5s (trim -0.5), 3.2s (stretch +1.2), 2.0s (keep)
	newSRT = "1\n00:00:01,000 --> 00:00:02,500\nhello\n\n" +
		"2\n00:00:02,500 --> 00:00:05,700\nmiddle\n\n" +
		"3\n00:00:05,700 --> 00:00:07,700\nbye\n\n"
)

func testInput(t *testing.T, tr *fakeTranscoder) (Usecase, Input) {
	t.Helper()
	tmp := t.TempDir()
	in := Input{
		VideoPath:  filepath.Join(tmp, "in.mp4"),
		OldSRTPath: writeSRT(t, tmp, "old.srt", oldSRT),
		NewSRTPath: writeSRT(t, tmp, "new.srt", newSRT),
		Mix: types.MixPlan{
			Narration: filepath.Join(tmp, "narration.mp3"),
			Tracks: []types.MixTrack{
				{Mood: "upbeat", Path: "/music/upbeat.mp3", WindowStart: 0, WindowEnd: 10, Volume: 0.2},
			},
		},
		WorkDir: tmp,
		OutDir:  tmp,
	}
	return New(Deps{Transcoder: tr, Renderer: &fakeRenderer{}}), in
}

func TestRun_PlansTrimStretchKeep(t *testing.T) {
	tr := &fakeTranscoder{}
	uc, in := testInput(t, tr)

	res, err := uc.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Segments 1 and 3 are window cuts; segment 2 is a stretch.
	if len(tr.cuts) != 2 || len(tr.stretches) != 1 {
		t.Fatalf("expected 2 cuts and 1 stretch, got %d and %d", len(tr.cuts), len(tr.stretches))
	}
	if tr.cuts[0].start != 1 || tr.cuts[0].end != 2.5 {
		t.Fatalf("trim boundaries: %+v", tr.cuts[0])
	}
	if tr.cuts[1].start != 5 || tr.cuts[1].end != 7 {
		t.Fatalf("keep boundaries: %+v", tr.cuts[1])
	}
	st := tr.stretches[0]
	if st.start != 3 || st.end != 5 {
		t.Fatalf("stretch must keep source boundaries: %+v", st)
	}
	if math.Abs(st.speed-0.625) > 1e-9 {
		t.Fatalf("expected speed factor 0.625, got %v", st.speed)
	}

	if len(tr.concats) != 1 || len(tr.concats[0]) != 3 {
		t.Fatalf("expected one concat of 3 clips, got %+v", tr.concats)
	}
	if len(tr.beds) != 1 || tr.mixes != 1 {
		t.Fatalf("expected one bed and one mix, got %d and %d", len(tr.beds), tr.mixes)
	}

	if len(res.Manifest.Clips) != 3 {
		t.Fatalf("expected 3 manifest clips, got %d", len(res.Manifest.Clips))
	}
	actions := []string{res.Manifest.Clips[0].Action, res.Manifest.Clips[1].Action, res.Manifest.Clips[2].Action}
	if actions[0] != "trim" || actions[1] != "stretch" || actions[2] != "keep" {
		t.Fatalf("unexpected actions: %v", actions)
	}
	if _, err := os.Stat(res.FinalPath); err != nil {
		t.Fatalf("final video missing: %v", err)
	}
}

func TestRun_CountMismatchAbortsBeforeSegmenting(t *testing.T) {
	tr := &fakeTranscoder{}
	uc, in := testInput(t, tr)
	in.NewSRTPath = writeSRT(t, t.TempDir(), "short.srt",
		"1\n00:00:01,000 --> 00:00:02,000\na\n\n2\n00:00:02,000 --> 00:00:03,000\nb\n\n")

	_, err := uc.Run(context.Background(), in)
	if !errors.Is(err, errors.ErrCountMismatch) {
		t.Fatalf("expected count mismatch, got %v", err)
	}
	if len(tr.cuts)+len(tr.stretches)+len(tr.concats) != 0 {
		t.Fatalf("no transcoder work may happen on mismatch")
	}
}

func TestRun_AbortPolicyFailsRequest(t *testing.T) {
	tr := &fakeTranscoder{failCutIndex: 1}
	uc, in := testInput(t, tr)
	in.OnClipFailure = FailAbort

	_, err := uc.Run(context.Background(), in)
	if !errors.Is(err, errors.ErrExternalProcess) {
		t.Fatalf("expected external process error, got %v", err)
	}
	if len(tr.concats) != 0 {
		t.Fatalf("no assembly may happen after an aborted segmenting pass")
	}
	if len(tr.freezes) != 0 {
		t.Fatalf("abort policy must not substitute placeholders")
	}
}

func TestRun_FreezePolicyKeepsClipCount(t *testing.T) {
	tr := &fakeTranscoder{failCutIndex: 1}
	uc, in := testInput(t, tr)
	in.OnClipFailure = FailFreeze

	_, err := uc.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(tr.freezes) != 1 {
		t.Fatalf("expected one freeze placeholder, got %d", len(tr.freezes))
	}
	// Placeholder covers the trimmed segment's planned duration (1.5s at 1s).
	fz := tr.freezes[0]
	if fz.at != 1 || math.Abs(fz.duration-1.5) > 1e-9 {
		t.Fatalf("unexpected placeholder window: %+v", fz)
	}
	if len(tr.concats[0]) != 3 {
		t.Fatalf("assembly must still see 3 clips, got %d", len(tr.concats[0]))
	}
}

func TestRun_BurnSubtitlesToggle(t *testing.T) {
	for _, burn := range []bool{false, true} {
		t.Run(fmt.Sprintf("burn=%v", burn), func(t *testing.T) {
			tr := &fakeTranscoder{}
			uc, in := testInput(t, tr)
			rend := &fakeRenderer{}
			uc.d.Renderer = rend
			in.BurnSubtitles = burn

			if _, err := uc.Run(context.Background(), in); err != nil {
				t.Fatalf("run: %v", err)
			}
			if burn && len(rend.calls) != 1 {
				t.Fatalf("expected renderer call, got %d", len(rend.calls))
			}
			if !burn && len(rend.calls) != 0 {
				t.Fatalf("expected no renderer call, got %d", len(rend.calls))
			}
			if burn && rend.calls[0] != in.NewSRTPath {
				t.Fatalf("renderer must receive the new-timing subtitles, got %s", rend.calls[0])
			}
		})
	}
}

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FailurePolicy
		wantErr bool
	}{
		{"", FailAbort, false},
		{"abort", FailAbort, false},
		{"freeze", FailFreeze, false},
		{"drop", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFailurePolicy(tt.in)
		if tt.wantErr {
			if !errors.Is(err, errors.ErrValidation) {
				t.Fatalf("%q: expected validation error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%q: got %v, %v", tt.in, got, err)
		}
	}
}
