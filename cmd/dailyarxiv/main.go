package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/app"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/config"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/logging"
)

var version = "dev"

var (
	configPath string
	runDate    string
)

var rootCmd = &cobra.Command{
	Use:   "dailyarxiv",
	Short: "Daily arXiv digest generator",
	Long: `dailyarxiv fetches newly announced arXiv papers, scores each one for
relevance with an LLM, and persists the papers that clear the threshold
as a daily digest.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a single digest run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		application, err := buildApp()
		if err != nil {
			return err
		}
		defer application.Close()

		day := time.Now().UTC()
		if runDate != "" {
			day, err = time.Parse(domain.RunDateLayout, runDate)
			if err != nil {
				return fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", runDate, err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := application.RunOnce(ctx, day)
		if err != nil {
			return err
		}

		cmd.Printf("run %s for %s: kept %d papers", summary.RunID, summary.RunDate, summary.Kept)
		if summary.Location != "" {
			cmd.Printf(" -> %s", summary.Location)
		}
		cmd.Println()
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the digest web server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		application, err := buildApp()
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return application.Serve(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("dailyarxiv version %s\n", version)
	},
}

func buildApp() (*app.Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logging.New(cfg.Logging.Level))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	runCmd.Flags().StringVar(&runDate, "date", "", "run date (YYYY-MM-DD, defaults to today)")
	rootCmd.AddCommand(runCmd, serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
