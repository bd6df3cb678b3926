package subrender

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redubhq/redub/internal/errors"
)

func fixtureFiles(t *testing.T) (video, subtitle string) {
	t.Helper()
	dir := t.TempDir()
	video = filepath.Join(dir, "in.mp4")
	subtitle = filepath.Join(dir, "new.srt")
	if err := os.WriteFile(video, []byte("video-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(subtitle, []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return video, subtitle
}

func TestRender_Success(t *testing.T) {
	var gotFields map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotFields = r.MultipartForm.Value
		if r.MultipartForm.File["video"] == nil || r.MultipartForm.File["subtitle"] == nil {
			t.Errorf("missing file parts: %v", r.MultipartForm.File)
		}
		_, _ = w.Write([]byte("rendered-bytes"))
	}))
	defer srv.Close()

	video, subtitle := fixtureFiles(t)
	out := filepath.Join(t.TempDir(), "out.mp4")
	a := New(Config{BaseURL: srv.URL, Wait: time.Millisecond})
	if err := a.Render(context.Background(), video, subtitle, out); err != nil {
		t.Fatalf("render: %v", err)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(b) != "rendered-bytes" {
		t.Fatalf("unexpected output: %q", b)
	}
	for _, field := range []string{"font", "font_size", "box_width", "box_height", "bottom_pad", "max_text_width"} {
		if len(gotFields[field]) == 0 {
			t.Fatalf("expected form field %s, got %v", field, gotFields)
		}
	}
}

func TestRender_RetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	video, subtitle := fixtureFiles(t)
	a := New(Config{BaseURL: srv.URL, Retries: 3, Wait: time.Millisecond})
	if err := a.Render(context.Background(), video, subtitle, filepath.Join(t.TempDir(), "o.mp4")); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRender_ExhaustsRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	video, subtitle := fixtureFiles(t)
	a := New(Config{BaseURL: srv.URL, Retries: 2, Wait: time.Millisecond})
	err := a.Render(context.Background(), video, subtitle, filepath.Join(t.TempDir(), "o.mp4"))
	if !errors.Is(err, errors.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d calls", calls)
	}
}

func TestRender_MissingInputIsNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, Retries: 3, Wait: time.Millisecond})
	err := a.Render(context.Background(), "/nope/in.mp4", "/nope/new.srt", filepath.Join(t.TempDir(), "o.mp4"))
	if err == nil {
		t.Fatalf("expected error for missing inputs")
	}
	if calls != 0 {
		t.Fatalf("expected no HTTP calls, got %d", calls)
	}
}

func TestRender_ContextCancelStopsWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	video, subtitle := fixtureFiles(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(Config{BaseURL: srv.URL, Retries: 5, Wait: time.Hour})
	err := a.Render(ctx, video, subtitle, filepath.Join(t.TempDir(), "o.mp4"))
	if err == nil {
		t.Fatalf("expected error from canceled context")
	}
}
