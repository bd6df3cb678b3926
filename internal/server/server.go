// Package server exposes the re-dub pipeline over HTTP: one multipart upload
// endpoint that runs a full request and answers with the output bundle.
package server

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/redubhq/redub/internal/config"
	"github.com/redubhq/redub/internal/errors"
	"github.com/redubhq/redub/internal/logger"
	"github.com/redubhq/redub/internal/pipeline"
	"github.com/redubhq/redub/internal/ports/adapters/subrender"
)

// Runner executes one pipeline request. Injected so handler tests do not need
// real collaborators.
type Runner func(ctx context.Context, cfg pipeline.Config) (pipeline.Result, error)

type Server struct {
	cfg config.Config
	run Runner
	log *logger.Logger
}

func New(cfg config.Config, run Runner, log *logger.Logger) *Server {
	if run == nil {
		run = pipeline.Run
	}
	return &Server{cfg: cfg, run: run, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.Server.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.Server.AllowedOrigins
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleUpload accepts {text, video} files plus voice/api-key/speed form
// fields, runs the pipeline in a request-owned temp directory, and streams
// the zip bundle back.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := s.log.With("request_id", uuid.NewString())

	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadMB << 20); err != nil {
		s.writeError(w, log, errors.Validation("parse multipart form: %v", err))
		return
	}

	tmpDir, err := os.MkdirTemp("", "redub-req-")
	if err != nil {
		s.writeError(w, log, err)
		return
	}
	defer os.RemoveAll(tmpDir)

	scriptPath, err := saveUpload(r, "text", tmpDir)
	if err != nil {
		s.writeError(w, log, err)
		return
	}
	videoPath, err := saveUpload(r, "video", tmpDir)
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	req, err := s.buildRequest(r, tmpDir, scriptPath, videoPath)
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	log.Info("request accepted",
		"video", filepath.Base(videoPath),
		"script", filepath.Base(scriptPath),
		"voice", req.VoiceID,
	)

	res, err := s.run(r.Context(), req)
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="redub_bundle.zip"`)
	f, err := os.Open(res.BundlePath)
	if err != nil {
		s.writeError(w, log, errors.OutputMissing("bundle missing after run: %v", err))
		return
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		log.Error("stream bundle", "error", err)
	}
}

func (s *Server) buildRequest(r *http.Request, tmpDir, scriptPath, videoPath string) (pipeline.Config, error) {
	speed := 1.15
	if v := r.FormValue("speed"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return pipeline.Config{}, errors.Validation("bad speed %q", v)
		}
		speed = parsed
	}
	if r.FormValue("set_speed_up") != "on" {
		speed = 1
	}

	windows := s.cfg.Music.DefaultWindows
	if v := r.FormValue("moods"); v != "" {
		windows = nil
		if err := json.Unmarshal([]byte(v), &windows); err != nil {
			return pipeline.Config{}, errors.Validation("bad moods field: %v", err)
		}
	}

	cfg := pipeline.Config{
		VideoPath:  videoPath,
		ScriptPath: scriptPath,
		OutDir:     filepath.Join(tmpDir, "out"),
		WorkDir:    filepath.Join(tmpDir, "work"),
		Logf:       s.log.Logf,

		VoiceID:     r.FormValue("voice_id"),
		TTSAPIKey:   r.FormValue("api_key"),
		TTSModel:    s.cfg.TTS.Model,
		TTSBaseURL:  s.cfg.TTS.BaseURL,
		SpeechTempo: speed,
		TrimSilence: s.cfg.Pipeline.TrimSilence,

		Language:   s.cfg.Alignment.Language,
		PythonPath: s.cfg.Alignment.PythonPath,

		FFmpegPath:  s.cfg.Transcoder.FFmpegPath,
		FFprobePath: s.cfg.Transcoder.FFprobePath,

		Moods:             s.cfg.Music.Tracks,
		MixWindows:        windows,
		ClipFailurePolicy: s.cfg.Pipeline.ClipFailurePolicy,
	}
	cfg.BurnSubtitles = s.cfg.Subtitles.BaseURL != ""
	cfg.Subtitles = s.subtitleConfig()
	return cfg, nil
}

func (s *Server) subtitleConfig() subrender.Config {
	sc := s.cfg.Subtitles
	return subrender.Config{
		BaseURL:      sc.BaseURL,
		Font:         sc.Font,
		FontSize:     sc.FontSize,
		BoxWidth:     sc.BoxWidth,
		BoxHeight:    sc.BoxHeight,
		BottomPad:    sc.BottomPad,
		MaxTextWidth: sc.MaxTextWidth,
		Retries:      sc.Retries,
		Wait:         time.Duration(sc.WaitSeconds) * time.Second,
	}
}

func (s *Server) writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := http.StatusInternalServerError
	code := errors.CodeInternal
	var derr *errors.Error
	if errors.As(err, &derr) {
		status = derr.HTTPStatus()
		code = derr.Code
	}
	log.Error("request failed", "code", string(code), "error", err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}

func saveUpload(r *http.Request, field, dir string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", errors.Validation("missing %q upload", field)
	}
	defer file.Close()
	return persistUpload(file, header, dir)
}

func persistUpload(file multipart.File, header *multipart.FileHeader, dir string) (string, error) {
	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		return "", errors.Validation("upload has no filename")
	}
	dst := filepath.Join(dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return "", err
	}
	return dst, nil
}
