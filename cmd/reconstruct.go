package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"pron-dist/internal/loader"
	"pron-dist/internal/manifest"
	"pron-dist/internal/pipeline"
	"pron-dist/internal/resolver"
	"pron-dist/internal/validator"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	outputPath string
	batchSize  int
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct",
	Short: "Rebuild the SQLite database from the Parquet distribution",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := GetDistConfig()
		if err != nil {
			return err
		}
		settings, err := GetSettings()
		if err != nil {
			return err
		}
		if !config.Offline && config.Repo == "" {
			return fmt.Errorf("distribution.repo is required for remote fetches (via config or --repo, or use --offline)")
		}

		output := config.Output
		if outputPath != "" {
			output = outputPath
		}

		// Read the manifest up front to size the progress bar; the
		// pipeline re-reads and fully validates it.
		m, err := manifest.Load(filepath.Join(config.Root, "schema", "table_manifest.json"))
		if err != nil {
			return err
		}
		fmt.Printf("🔊 Reconstructing %s from %s (%d tables, release %s)\n",
			output, config.Root, len(m.Tables), config.Release)

		start := time.Now()
		uiprogress.Start()
		bar := uiprogress.AddBar(len(m.Tables)).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "Loading: "
		})

		out := pipeline.Run(cmd.Context(), pipeline.Options{
			Root:       config.Root,
			OutputPath: output,
			Resolver: resolver.Options{
				Repo:        config.Repo,
				Release:     config.Release,
				Offline:     config.Offline,
				Timeout:     settings.FetchTimeout,
				Concurrency: settings.Concurrency,
			},
			Load: loader.Options{BatchSize: settings.BatchSize},
			OnTable: func(res loader.Result) {
				bar.Incr()
			},
		}, logger)

		uiprogress.Stop()

		elapsed := time.Since(start)
		printLoadReport(out.Loaded)
		printValidationReport(out.Reports)

		if out.Err != nil {
			fmt.Printf("\n❌ Reconstruction %s after %s\n", out.State, elapsed.Round(time.Millisecond))
			return out.Err
		}
		fmt.Printf("\n✅ Reconstruction succeeded: %s (%s)\n", output, elapsed.Round(time.Millisecond))
		return nil
	},
}

func printLoadReport(results []loader.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Println("\n📊 Load Report (Dependency Order):")
	var totalRows, totalBytes int64
	for i, r := range results {
		fmt.Printf("[%02d/%02d] %-28s : %d rows (%s) - %s\n",
			i+1, len(results), r.Table, r.Inserted,
			humanize.Bytes(uint64(r.Bytes)), r.Elapsed.Round(time.Millisecond))
		totalRows += r.Inserted
		totalBytes += r.Bytes
	}
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Total: %d rows from %s\n", totalRows, humanize.Bytes(uint64(totalBytes)))
}

func printValidationReport(reports []validator.Report) {
	if len(reports) == 0 {
		return
	}
	fmt.Println("\n🔎 Validation Report:")
	for _, r := range reports {
		icon := "✓"
		if !r.Passed {
			icon = "!"
		}
		fmt.Printf("[%s] %-14s : %d checked, %d failed\n", icon, r.Suite, r.Checked, r.Failed)
		for _, d := range r.Details {
			fmt.Printf("    └ %s\n", d)
		}
	}
}

func init() {
	RootCmd.AddCommand(reconstructCmd)

	reconstructCmd.Flags().StringVarP(&outputPath, "output", "o", "", "path of the SQLite artifact to produce (overrides config)")
	reconstructCmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per committed transaction (overrides config)")

	viper.BindPFlag("settings.batch_size", reconstructCmd.Flags().Lookup("batch-size"))
	viper.SetDefault("settings.batch_size", loader.DefaultBatchSize)
	viper.SetDefault("settings.fetch_timeout", "5m")
	viper.SetDefault("settings.concurrency", 4)
}
