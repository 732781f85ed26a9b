package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TheMichaelB/synoexport/internal/client"
	"github.com/TheMichaelB/synoexport/internal/config"
	"github.com/TheMichaelB/synoexport/internal/events"
)

var rootCmd = &cobra.Command{
	Use:   "synoexport",
	Short: "Export Synology Office files to Microsoft Office formats",
	Long: `Synoexport walks a Synology Drive (My Drive, team folders, and files
shared with you), converts Synology Office documents to their Microsoft
Office equivalents (.osheet -> .xlsx, .odoc -> .docx, .oslides -> .pptx),
and mirrors them into a local directory.

A download history keeps repeat runs incremental: unchanged files are
skipped and locally mirrored files whose originals were removed from the
Drive are cleaned up.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initRuntime()
	},
}

var (
	cfg       *config.Config
	logger    *events.Logger
	apiClient *client.Client

	configPath string
	logLevel   string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output results as JSON")

	viper.SetEnvPrefix("SYNOEXPORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initRuntime loads .env, configuration, the logger, and the client.
func initRuntime() error {
	// A local .env is optional; missing is the normal case.
	_ = godotenv.Load()

	var err error
	cfg, err = config.NewLoader(configPath).Load()
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	} else if lvl := viper.GetString("log.level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	events.SetDefault(logger)

	return nil
}

// buildClient creates the API client once configuration is final.
func buildClient() error {
	var err error
	apiClient, err = client.New(cfg, logger)
	return err
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Output helpers shared by all commands.

var (
	successColor = color.New(color.FgGreen).SprintfFunc()
	errorColor   = color.New(color.FgRed).SprintfFunc()
	warnColor    = color.New(color.FgYellow).SprintfFunc()
	infoColor    = color.New(color.FgCyan).SprintfFunc()
)

func printSuccess(format string, args ...interface{}) {
	fmt.Fprintln(os.Stdout, successColor(format, args...))
}

func printError(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, errorColor(format, args...))
}

func printWarning(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, warnColor(format, args...))
}

func printInfo(format string, args ...interface{}) {
	fmt.Fprintln(os.Stdout, infoColor(format, args...))
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError("marshal JSON: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, string(data))
}
