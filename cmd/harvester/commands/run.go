package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"harvester/internal/config"
	"harvester/internal/credentials"
	"harvester/internal/logger"
	"harvester/internal/pipeline"
	"harvester/internal/sink"
)

var (
	runPlatforms []string
	runLogLevel  string
)

func init() {
	runCmd.Flags().StringSliceVarP(&runPlatforms, "platform", "p", nil,
		"Run only these platforms ("+strings.Join(config.PlatformNames, ", ")+").")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "Override logging.level.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--config <path>] [--platform <name>...]",
	Short: "Harvests every enabled platform and saves the result tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		if err := cfg.Only(runPlatforms...); err != nil {
			return err
		}

		if len(cfg.EnabledPlatforms()) == 0 {
			return config.ErrNoEnabledPlatforms
		}

		level := cfg.Harvester.Logging.Level
		if runLogLevel != "" {
			level = runLogLevel
		}

		log := logger.New(os.Stderr, level, cfg.Harvester.Logging.Format)

		creds, err := credentials.FromConfig(cfg.Harvester.Credentials)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		out, err := sink.FromConfig(ctx, cfg.Harvester.Sink, sink.Options{
			Logger:      log,
			Credentials: creds,
			Retry:       cfg.Harvester.Retry,
		})
		if err != nil {
			return err
		}
		defer out.Close()

		runner := pipeline.NewRunner(cfg, out, pipeline.NewBuilder(cfg, creds, log).Build, pipeline.Options{Logger: log})

		report, err := runner.Run(ctx)
		printReport(cmd.OutOrStdout(), report)

		if err != nil {
			return err
		}

		if failed := report.Failed(); len(failed) > 0 {
			return fmt.Errorf("platforms failed: %s", strings.Join(failed, ", "))
		}

		return nil
	},
}

func printReport(w io.Writer, r *pipeline.Report) {
	if r == nil {
		return
	}

	fmt.Fprintln(w, "------------------------------------------------")
	fmt.Fprintf(w, "Run %s\n", r.RunID)
	fmt.Fprintln(w, "------------------------------------------------")

	for _, p := range r.Platforms {
		status := "ok"
		if p.Err != nil {
			status = "FAILED: " + p.Err.Error()
		}

		fmt.Fprintf(w, "%-9s %s (%v)\n", p.Platform, status, p.Duration.Round(time.Millisecond))

		for _, t := range p.Tables {
			fmt.Fprintf(w, "  %s: %d records\n", t.Name, t.Records)
		}
	}

	fmt.Fprintf(w, "Total records: %d\n", r.Records())
}
