// Package config loads the YAML application configuration: service
// endpoints, transcoder binaries, the mood track library, and defaults for
// re-dub requests.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/redubhq/redub/internal/domain/moods"
	"github.com/redubhq/redub/internal/errors"
)

type Config struct {
	Server struct {
		Address        string   `yaml:"address"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		MaxUploadMB    int64    `yaml:"max_upload_mb"`
	} `yaml:"server"`

	Transcoder struct {
		FFmpegPath  string `yaml:"ffmpeg_path"`
		FFprobePath string `yaml:"ffprobe_path"`
	} `yaml:"transcoder"`

	Alignment struct {
		PythonPath string `yaml:"python_path"`
		Language   string `yaml:"language"`
	} `yaml:"alignment"`

	TTS struct {
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"tts"`

	Subtitles struct {
		BaseURL      string `yaml:"base_url"`
		Font         string `yaml:"font"`
		FontSize     int    `yaml:"font_size"`
		BoxWidth     int    `yaml:"box_width"`
		BoxHeight    int    `yaml:"box_height"`
		BottomPad    int    `yaml:"bottom_pad"`
		MaxTextWidth int    `yaml:"max_text_width"`
		Retries      int    `yaml:"retries"`
		WaitSeconds  int    `yaml:"wait_seconds"`
	} `yaml:"subtitles"`

	Music struct {
		Tracks         []moods.Track  `yaml:"tracks"`
		DefaultWindows []moods.Window `yaml:"default_windows"`
	} `yaml:"music"`

	Pipeline struct {
		WorkDir           string `yaml:"work_dir"`
		OutDir            string `yaml:"out_dir"`
		ClipFailurePolicy string `yaml:"clip_failure_policy"`
		TrimSilence       bool   `yaml:"trim_silence"`
	} `yaml:"pipeline"`
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, errors.Validation("parse config %s: %v", path, err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":5000"
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 1024
	}
	if c.Alignment.Language == "" {
		c.Alignment.Language = "eng"
	}
	if c.Pipeline.ClipFailurePolicy == "" {
		c.Pipeline.ClipFailurePolicy = "abort"
	}
}

func (c *Config) validate() error {
	// Track moods are validated eagerly so a bad library fails at startup,
	// not mid-request.
	if _, err := moods.NewLibrary(c.Music.Tracks); err != nil {
		return err
	}
	for _, w := range c.Music.DefaultWindows {
		if _, err := moods.ParseMood(w.Mood); err != nil {
			return err
		}
		if w.End <= w.Start {
			return errors.Validation("default window for mood %q: end must be after start", w.Mood)
		}
	}
	return nil
}
