package cli

import (
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ferplaru/ai-playground/internal/app"
	"github.com/ferplaru/ai-playground/internal/config"
	"github.com/ferplaru/ai-playground/pkg/logger"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deployment service",
		Long:  `Start the HTTP API, connect to the container engine and run the idle reaper.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine; the environment may already be set.
			if err := godotenv.Load(); err == nil {
				log.Debug("loaded environment from .env")
			}
			logger.GetLogger().ConfigureFromEnv()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return app.Run(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "Path to config file")

	return cmd
}
