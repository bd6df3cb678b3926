// Package subrender binds the SubtitleRenderer port to the remote
// subtitle-burning service: a multipart upload of video plus subtitle file,
// answered with the rendered video bytes. Transient failures are retried a
// bounded number of times with a fixed delay, then become fatal.
package subrender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redubhq/redub/internal/errors"
)

type Config struct {
	BaseURL string

	Font         string
	FontSize     int
	BoxWidth     int
	BoxHeight    int
	BottomPad    int
	MaxTextWidth int

	// Retries is the number of attempts after the first; Wait is the fixed
	// delay between attempts.
	Retries int
	Wait    time.Duration
}

func (c *Config) applyDefaults() {
	if c.Font == "" {
		c.Font = "Inter"
	}
	if c.FontSize == 0 {
		c.FontSize = 42
	}
	if c.BoxWidth == 0 {
		c.BoxWidth = 1080
	}
	if c.BoxHeight == 0 {
		c.BoxHeight = 160
	}
	if c.BottomPad == 0 {
		c.BottomPad = 60
	}
	if c.MaxTextWidth == 0 {
		c.MaxTextWidth = 38
	}
	if c.Retries == 0 {
		c.Retries = 3
	}
	if c.Wait == 0 {
		c.Wait = 5 * time.Second
	}
}

type Adapter struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Adapter{cfg: cfg, client: &http.Client{Timeout: 10 * time.Minute}}
}

// Render submits the video and subtitle file and writes the rendered result
// to outPath. Network errors and non-2xx responses are retried up to
// cfg.Retries times with cfg.Wait between attempts; exhaustion aborts the
// request with a network error.
func (a *Adapter) Render(ctx context.Context, videoPath, subtitlePath, outPath string) error {
	var lastErr error
	for attempt := 0; attempt <= a.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.cfg.Wait):
			}
		}
		lastErr = a.renderOnce(ctx, videoPath, subtitlePath, outPath)
		if lastErr == nil {
			return nil
		}
		// Request-building and disk errors will not get better on retry.
		if !errors.Is(lastErr, errors.ErrNetwork) {
			return lastErr
		}
	}
	return errors.Network("subtitle render failed after %d attempts", a.cfg.Retries+1).WithCause(lastErr)
}

func (a *Adapter) renderOnce(ctx context.Context, videoPath, subtitlePath, outPath string) error {
	body, contentType, err := a.buildPayload(videoPath, subtitlePath)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/render", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Network("subtitle service unreachable").WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return errors.Network("subtitle service status %d: %s", resp.StatusCode, truncate(string(rb), 400))
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return errors.Network("stream rendered video to %s", outPath).WithCause(err)
	}
	return nil
}

func (a *Adapter) buildPayload(videoPath, subtitlePath string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for field, path := range map[string]string{
		"video":    videoPath,
		"subtitle": subtitlePath,
	} {
		if err := attachFile(w, field, path); err != nil {
			return nil, "", err
		}
	}

	fields := map[string]string{
		"font":           a.cfg.Font,
		"font_size":      strconv.Itoa(a.cfg.FontSize),
		"box_width":      strconv.Itoa(a.cfg.BoxWidth),
		"box_height":     strconv.Itoa(a.cfg.BoxHeight),
		"bottom_pad":     strconv.Itoa(a.cfg.BottomPad),
		"max_text_width": strconv.Itoa(a.cfg.MaxTextWidth),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s upload: %w", field, err)
	}
	defer f.Close()
	part, err := w.CreateFormFile(field, f.Name())
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
