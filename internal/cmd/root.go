package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calfsync/calf-scraper/internal/config"
	"github.com/calfsync/calf-scraper/internal/logger"
	"github.com/calfsync/calf-scraper/internal/report"
	"github.com/calfsync/calf-scraper/internal/scraper"
)

var (
	flagHeadless      bool
	flagJSON          bool
	flagOutput        string
	flagManualCaptcha bool
)

var rootCmd = &cobra.Command{
	Use:           "calfscan",
	Short:         "Extracts account and debt data from the CALF customer portal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in, extract every account and its debt detail, and report",
	RunE:  runScrape,
}

func init() {
	runCmd.Flags().BoolVar(&flagHeadless, "headless", false, "run the browser without a window (manual captcha needs a window)")
	runCmd.Flags().BoolVar(&flagJSON, "json", false, "print the result as JSON instead of the console report")
	runCmd.Flags().StringVar(&flagOutput, "output", "", "CSV export path (default calf_<tipo>_<nro>.csv)")
	runCmd.Flags().BoolVar(&flagManualCaptcha, "manual-captcha", false, "wait for an operator even when a solver key is configured")
	rootCmd.AddCommand(runCmd)
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = flagHeadless
	}
	if flagManualCaptcha {
		cfg.Captcha.ForceManual = true
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.WithFields(map[string]interface{}{
		"tipo": cfg.Portal.TipoNombre(),
		"nro":  cfg.Portal.NroID,
	}).Info("Starting CALF portal run")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	person, err := scraper.New(cfg, log).Run(ctx)
	if err != nil {
		log.WithError(err).Error("Run failed")
		return err
	}

	if flagJSON {
		if err := report.WriteJSON(os.Stdout, person); err != nil {
			return err
		}
	} else {
		report.WriteConsole(os.Stdout, person)
	}

	output := flagOutput
	if output == "" {
		output = report.DefaultCSVName(cfg.Portal.TipoID, cfg.Portal.NroID)
	}
	if err := report.ExportCSV(output, person); err != nil {
		log.WithError(err).Error("CSV export failed")
		return err
	}
	log.WithField("file", output).Info("CSV exported")

	return nil
}
