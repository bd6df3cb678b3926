package cli

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/redubhq/redub/internal/config"
	"github.com/redubhq/redub/internal/logger"
	"github.com/redubhq/redub/internal/ports/adapters/subrender"
	"github.com/redubhq/redub/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the re-dub upload server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Address = addr
	}

	log := logger.New(logger.Config{Environment: os.Getenv("ENVIRONMENT")})
	srv := server.New(cfg, nil, log)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("listening", "addr", cfg.Server.Address)
	return httpSrv.ListenAndServe()
}

func subtitleConfig(cfg config.Config) subrender.Config {
	sc := cfg.Subtitles
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
