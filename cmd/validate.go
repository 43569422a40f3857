package cmd

import (
	"fmt"

	"pron-dist/internal/pipeline"
	"pron-dist/internal/validator"

	"github.com/spf13/cobra"
)

var validateDB string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the validation suites against an existing database",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := GetDistConfig()
		if err != nil {
			return err
		}
		dbPath := config.Output
		if validateDB != "" {
			dbPath = validateDB
		}

		fmt.Printf("🔎 Validating %s against %s\n", dbPath, config.Root)
		out, err := pipeline.Validate(dbPath, config.Root, validator.Options{})
		if out != nil {
			printValidationReport(out.Reports)
		}
		if err != nil {
			return err
		}
		fmt.Println("\n✅ All validation suites passed")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateDB, "db", "", "SQLite database to validate (defaults to distribution.output)")
}
