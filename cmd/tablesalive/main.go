// Command tablesalive fetches a Google Sheet, waits for its data to settle
// and prints it as records, a summary or CSV.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tablesalive/pkg/config"
	"tablesalive/pkg/logging"
	"tablesalive/pkg/sheets"
)

var (
	configPath string
	verbose    bool

	gid        string
	noHeaders  bool
	format     string
	outputPath string

	initPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tablesalive",
		Short:         "Read live Google Sheets as structured data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("TABLESALIVE_CONFIG"), "Path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	fetchCmd := &cobra.Command{
		Use:   "fetch [sheet-url]",
		Short: "Fetch a sheet and print it",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetch,
	}
	fetchCmd.Flags().StringVar(&gid, "gid", "", "Sheet (tab) id within the spreadsheet")
	fetchCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "Treat the first row as data")
	fetchCmd.Flags().StringVar(&format, "format", formatRecords, "Output format: records, summary, csv")
	fetchCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration as TOML",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	initCmd.Flags().StringVar(&initPath, "path", "tablesalive.toml", "Where to write the file")
	configCmd.AddCommand(initCmd)

	rootCmd.AddCommand(fetchCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	if !validFormat(format) {
		return fmt.Errorf("invalid format: %s (must be records, summary, or csv)", format)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	// Keep stdout for the data.
	log.SetOutput(os.Stderr)

	src, err := sheets.NewSourceFromConfig(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	log.WithField("privileged", src.Privileged()).Debug("sheet source ready")

	t, err := src.FetchTable(cmd.Context(), sheets.Reference{
		Locator:    args[0],
		SheetID:    gid,
		HasHeaders: !noHeaders,
	})
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return render(out, t, format)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(initPath); err == nil {
		return fmt.Errorf("%s already exists", initPath)
	}
	if err := config.Default().Save(initPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", initPath)
	return nil
}
