package ffmpeg

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/redubhq/redub/internal/types"
)

func TestAtempoChain(t *testing.T) {
	tests := []struct {
		factor float64
		want   string
	}{
		{0.625, "atempo=0.625000"},
		{1.15, "atempo=1.150000"},
		{0.3, "atempo=0.500000,atempo=0.600000"},
		{0.2, "atempo=0.500000,atempo=0.500000,atempo=0.800000"},
		{3, "atempo=2.000000,atempo=1.500000"},
	}
	for _, tt := range tests {
		if got := atempoChain(tt.factor); got != tt.want {
			t.Fatalf("atempoChain(%v) = %q, want %q", tt.factor, got, tt.want)
		}
	}
}

func TestAtempoChain_ProductEqualsFactor(t *testing.T) {
	for _, factor := range []float64{0.05, 0.15, 0.49, 0.5, 0.625, 1, 1.99, 2, 5.7} {
		product := 1.0
		for _, part := range strings.Split(atempoChain(factor), ",") {
			f, err := strconv.ParseFloat(strings.TrimPrefix(part, "atempo="), 64)
			if err != nil {
				t.Fatalf("bad chain part %q: %v", part, err)
			}
			if f < 0.5-1e-9 || f > 2+1e-9 {
				t.Fatalf("factor %v: chain part %v outside [0.5, 2]", factor, f)
			}
			product *= f
		}
		if math.Abs(product-factor) > 1e-4 {
			t.Fatalf("factor %v: chain product %v", factor, product)
		}
	}
}

func TestMusicBedFilter_TwoTracks(t *testing.T) {
	tracks := []types.MixTrack{
		{Path: "a.mp3", WindowStart: 0, WindowEnd: 10, Volume: 0.2, Order: 0},
		{Path: "b.mp3", WindowStart: 30, WindowEnd: 38, Volume: 0.15, Order: 1},
	}
	filter, label := musicBedFilter(tracks)
	if label != "[bed]" {
		t.Fatalf("unexpected output label: %s", label)
	}
	for _, want := range []string{
		"[0:a]atrim=start=0.000:end=10.000",
		"volume=0.200000",
		"aloop=loop=-1:size=2147483647",
		"atrim=duration=10.000",
		"[1:a]atrim=start=30.000:end=38.000",
		"atrim=duration=8.000",
		"[b0][b1]acrossfade=d=0.100[bed]",
	} {
		if !strings.Contains(filter, want) {
			t.Fatalf("expected %q in filter:\n%s", want, filter)
		}
	}
}

func TestMusicBedFilter_SingleTrack(t *testing.T) {
	filter, label := musicBedFilter([]types.MixTrack{
		{Path: "a.mp3", WindowStart: 0, WindowEnd: 5, Volume: 0.3},
	})
	if label != "[b0]" {
		t.Fatalf("unexpected label: %s", label)
	}
	if strings.Contains(filter, "acrossfade") {
		t.Fatalf("single track must not cross-fade:\n%s", filter)
	}
	if strings.HasSuffix(filter, ";") {
		t.Fatalf("dangling separator in filter:\n%s", filter)
	}
}

func TestBedDuration_CrossfadeOverlap(t *testing.T) {
	// Two windows of 10s and 8s joined by a 0.1s fade yield a 17.9s bed,
	// regardless of the source tracks' own durations.
	tracks := []types.MixTrack{
		{WindowStart: 0, WindowEnd: 10},
		{WindowStart: 30, WindowEnd: 38},
	}
	if got := bedDuration(tracks); math.Abs(got-17.9) > 1e-9 {
		t.Fatalf("expected 17.9s bed, got %v", got)
	}
}

func TestMixFilter_NarrationDominant(t *testing.T) {
	f := mixFilter()
	for _, want := range []string{
		"[1:a]volume=1.500000[nar]",
		"[2:a]volume=0.500000[bgm]",
		"amix=inputs=2:duration=first",
	} {
		if !strings.Contains(f, want) {
			t.Fatalf("expected %q in mix filter: %s", want, f)
		}
	}
}

func TestFmtSeconds(t *testing.T) {
	if got := fmtSeconds(2.5); got != "2.500" {
		t.Fatalf("fmtSeconds: %s", got)
	}
	if got := fmtSeconds(0); got != "0.000" {
		t.Fatalf("fmtSeconds: %s", got)
	}
}

func TestEscapeConcatPath(t *testing.T) {
	if got := escapeConcatPath(`/tmp/it's here.mp4`); got != `/tmp/it'\''s here.mp4` {
		t.Fatalf("escape: %s", got)
	}
}
