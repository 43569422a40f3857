package cmd

import (
	"database/sql"
	"fmt"

	"pron-dist/internal/export"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	exportDB   string
	exportOut  string
	sampleSize int
	skipLarge  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a source SQLite database into the Parquet distribution",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := GetDistConfig()
		if err != nil {
			return err
		}
		settings, err := GetSettings()
		if err != nil {
			return err
		}
		outRoot := config.Root
		if exportOut != "" {
			outRoot = exportOut
		}

		db, err := sql.Open("sqlite3", exportDB)
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to db: %w", err)
		}

		fmt.Printf("📦 Exporting %s into %s\n", exportDB, outRoot)
		res, err := export.Run(db, export.Options{
			SourceDB:        exportDB,
			OutRoot:         outRoot,
			SampleSize:      settings.SampleSize,
			LookupThreshold: settings.LookupThreshold,
			SkipLarge:       skipLarge,
		}, logger)
		if err != nil {
			return err
		}

		fmt.Println("--------------------------------------------------")
		fmt.Printf("Exported %d lookup + %d large tables (%s)\n",
			res.LookupCount, res.LargeCount, humanize.Bytes(uint64(res.TotalBytes)))
		fmt.Println("Manifest: schema/table_manifest.json")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportDB, "db", "", "source SQLite database to export (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "distribution root to write into (defaults to distribution.root)")
	exportCmd.Flags().IntVar(&sampleSize, "sample-size", 0, "rows per sample file (overrides config)")
	exportCmd.Flags().BoolVar(&skipLarge, "skip-large", false, "export lookup tables only, for fast iteration")
	exportCmd.MarkFlagRequired("db")

	viper.BindPFlag("settings.sample_size", exportCmd.Flags().Lookup("sample-size"))
	viper.SetDefault("settings.sample_size", export.DefaultSampleSize)
	viper.SetDefault("settings.lookup_threshold", export.DefaultLookupThreshold)
}
