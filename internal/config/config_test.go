package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redubhq/redub/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "redub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":8080"
transcoder:
  ffmpeg_path: /usr/bin/ffmpeg
subtitles:
  base_url: http://subs.local
  retries: 5
  wait_seconds: 2
music:
  tracks:
    - mood: upbeat
      path: /music/upbeat.mp3
    - mood: somber
      path: /music/somber.mp3
  default_windows:
    - mood: upbeat
      start: 0
      end: 10
      volume: 0.2
pipeline:
  clip_failure_policy: freeze
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "/usr/bin/ffmpeg", cfg.Transcoder.FFmpegPath)
	assert.Equal(t, 5, cfg.Subtitles.Retries)
	assert.Equal(t, 2, cfg.Subtitles.WaitSeconds)
	assert.Len(t, cfg.Music.Tracks, 2)
	assert.Equal(t, "freeze", cfg.Pipeline.ClipFailurePolicy)
	// defaults still applied
	assert.Equal(t, int64(1024), cfg.Server.MaxUploadMB)
	assert.Equal(t, "eng", cfg.Alignment.Language)
}

func TestLoad_UnknownMoodRejected(t *testing.T) {
	path := writeConfig(t, `
music:
  tracks:
    - mood: mysterious
      path: /music/x.mp3
`)
	_, err := Load(path)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLoad_BadWindowRejected(t *testing.T) {
	path := writeConfig(t, `
music:
  tracks:
    - mood: calm
      path: /music/calm.mp3
  default_windows:
    - mood: calm
      start: 10
      end: 5
      volume: 0.2
`)
	_, err := Load(path)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":5000", cfg.Server.Address)
	assert.Equal(t, "abort", cfg.Pipeline.ClipFailurePolicy)
}
