package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile    string
	rootDir    string
	repo       string
	releaseTag string
	offline    bool
	verbose    bool

	logger *zap.SugaredLogger
)

var RootCmd = &cobra.Command{
	Use:   "pron-dist",
	Short: "Pronunciation database distribution toolkit",
	Long: `
  ____  ____   ___  _   _       ____ ___ ____ _____
 |  _ \|  _ \ / _ \| \ | |     |  _ \_ _/ ___|_   _|
 | |_) | |_) | | | |  \| |_____| | | | |\___ \ | |
 |  __/|  _ <| |_| | |\  |_____| |_| | | ___) || |
 |_|   |_| \_\\___/|_| \_|     |____/___|____/ |_|

PRON-DIST 🔊 - Parquet ⇄ SQLite pronunciation DB pipeline
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zapcore.InfoLevel
		if verbose {
			level = zapcore.DebugLevel
		}
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		zcfg.DisableStacktrace = true
		l, err := zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		logger = l.Sugar()
		return nil
	},
}

// Execute runs the CLI and returns the error for exit-code mapping.
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pron-dist.yaml)")
	RootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "distribution root directory")
	RootCmd.PersistentFlags().StringVar(&repo, "repo", "", "release repository (owner/name)")
	RootCmd.PersistentFlags().StringVar(&releaseTag, "release", "", "release tag to fetch assets from")
	RootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "resolve large tables from data/release/ instead of fetching")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	viper.BindPFlag("distribution.root", RootCmd.PersistentFlags().Lookup("root"))
	viper.BindPFlag("distribution.repo", RootCmd.PersistentFlags().Lookup("repo"))
	viper.BindPFlag("distribution.release", RootCmd.PersistentFlags().Lookup("release"))
	viper.BindPFlag("distribution.offline", RootCmd.PersistentFlags().Lookup("offline"))

	viper.SetDefault("distribution.root", ".")
	viper.SetDefault("distribution.release", "latest")
	viper.SetDefault("distribution.output", filepath.Join("dist", "pronunciation.db"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("pron-dist")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
