package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/redubhq/redub/internal/config"
	"github.com/redubhq/redub/internal/logger"
	"github.com/redubhq/redub/internal/pipeline"
)

func newProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <video> <script>",
		Short: "Re-dub a local video with narration synthesized from a script",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args[0], args[1])
		},
	}

	cmd.Flags().String("out", "out", "Output directory")
	cmd.Flags().String("voice", "", "ElevenLabs voice ID")
	cmd.Flags().Float64("speed", 1, "Narration tempo factor (1 leaves it untouched)")
	cmd.Flags().Bool("subtitles", false, "Burn rendered subtitles into the final video")
	return cmd
}

func runProcess(cmd *cobra.Command, video, script string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("out")
	if !cmd.Flags().Changed("out") && cfg.Pipeline.OutDir != "" {
		outDir = cfg.Pipeline.OutDir
	}
	voice, _ := cmd.Flags().GetString("voice")
	speed, _ := cmd.Flags().GetFloat64("speed")
	burn, _ := cmd.Flags().GetBool("subtitles")

	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		return errors.New("ELEVENLABS_API_KEY is required (set it in .env)")
	}
	if voice == "" {
		voice = os.Getenv("ELEVENLABS_VOICE_ID")
	}

	absVideo, err := filepath.Abs(video)
	if err != nil {
		return err
	}
	absScript, err := filepath.Abs(script)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Environment: os.Getenv("ENVIRONMENT")})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Hour)
	defer cancel()

	pcfg := buildPipelineConfig(cfg, absVideo, absScript, outDir, voice, apiKey, speed, burn)
	pcfg.Logf = log.Logf

	if err := pcfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	res, err := pipeline.Run(ctx, pcfg)
	if err != nil {
		return err
	}
	log.Info("done", "final", res.FinalPath, "bundle", res.BundlePath)
	return nil
}

func buildPipelineConfig(cfg config.Config, video, script, outDir, voice, apiKey string, speed float64, burn bool) pipeline.Config {
	pcfg := pipeline.Config{
		VideoPath:  video,
		ScriptPath: script,
		OutDir:     outDir,
		WorkDir:    cfg.Pipeline.WorkDir,

		VoiceID:     voice,
		TTSAPIKey:   apiKey,
		TTSModel:    cfg.TTS.Model,
		TTSBaseURL:  cfg.TTS.BaseURL,
		SpeechTempo: speed,
		TrimSilence: cfg.Pipeline.TrimSilence,

		Language:   cfg.Alignment.Language,
		PythonPath: getenvDefault("AENEAS_PYTHON", cfg.Alignment.PythonPath),

		FFmpegPath:  cfg.Transcoder.FFmpegPath,
		FFprobePath: cfg.Transcoder.FFprobePath,

		Moods:             cfg.Music.Tracks,
		MixWindows:        cfg.Music.DefaultWindows,
		ClipFailurePolicy: cfg.Pipeline.ClipFailurePolicy,
	}
	if burn {
		pcfg.BurnSubtitles = true
		pcfg.Subtitles = subtitleConfig(cfg)
	}
	return pcfg
}
