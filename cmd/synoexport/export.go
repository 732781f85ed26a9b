package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/synoexport/internal/creds"
	"github.com/TheMichaelB/synoexport/internal/models"
	"github.com/TheMichaelB/synoexport/internal/services/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export office files from the NAS to a local directory",
	Long: `Export signs in to the NAS, walks My Drive, all team folders, and
files shared with you, and downloads every Synology Office document in
its Microsoft Office format.

Files whose content is unchanged since the previous run are skipped.
Encrypted documents cannot be converted and are always skipped, even
with --force.`,
	Example: `  synoexport export -s nas.example.com -u alice -o ./exported
  synoexport export --force
  synoexport export --otp 123456 --history-backend sqlite`,
	RunE: runExport,
}

var (
	exportServer    string
	exportUsername  string
	exportPassword  string
	exportOTP       string
	exportOutput    string
	exportForce     bool
	exportSkipHist  bool
	exportBackend   string
	exportCredsFile string
	exportNoPrompt  bool
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportServer, "server", "s", "",
		"NAS host, e.g. nas.example.com or https://nas:5001")
	exportCmd.Flags().StringVarP(&exportUsername, "username", "u", "",
		"NAS account (will prompt if not provided)")
	exportCmd.Flags().StringVarP(&exportPassword, "password", "p", "",
		"NAS password (will prompt if not provided)")
	exportCmd.Flags().StringVar(&exportOTP, "otp", "",
		"OTP code or TOTP secret for accounts with 2FA")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"Output directory for exported files")
	exportCmd.Flags().BoolVarP(&exportForce, "force", "f", false,
		"Re-download files even when unchanged")
	exportCmd.Flags().BoolVar(&exportSkipHist, "skip-history", false,
		"Ignore the download history for this run")
	exportCmd.Flags().StringVar(&exportBackend, "history-backend", "",
		"History backend: json or sqlite")
	exportCmd.Flags().StringVar(&exportCredsFile, "credentials", "",
		"JSON credentials file")
	exportCmd.Flags().BoolVar(&exportNoPrompt, "no-prompt", false,
		"Never prompt for credentials (for scripted runs)")
}

func runExport(cmd *cobra.Command, args []string) error {
	applyExportFlags()

	if cfg.NAS.Host == "" {
		return fmt.Errorf("NAS host required (use --server or SYNOEXPORT_HOST)")
	}

	resolver := creds.NewResolver(exportCredsFile)
	resolver.AllowPrompt = !exportNoPrompt && !jsonOutput

	// Flags win over the config file; the resolver fills in the rest
	// from the environment, the credentials file, and prompts.
	explicit := creds.Credentials{
		Username: exportUsername,
		Password: exportPassword,
		OTP:      exportOTP,
	}
	if explicit.Username == "" {
		explicit.Username = cfg.NAS.Username
	}
	if explicit.Password == "" {
		explicit.Password = cfg.NAS.Password
	}
	if explicit.OTP == "" {
		explicit.OTP = cfg.NAS.OTP
	}

	credentials, err := resolver.Resolve(explicit)
	if err != nil {
		return err
	}

	if err := buildClient(); err != nil {
		return err
	}
	defer func() {
		if err := apiClient.Close(); err != nil {
			logger.WithError(err).Warn("Close failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		printWarning("\nExport interrupted, cancelling...")
		cancel()
	}()

	if err := apiClient.Login(ctx, credentials); err != nil {
		if errors.Is(err, models.ErrOTPRequired) {
			printError("This account requires a one-time code. Re-run with --otp.")
		}
		return err
	}
	defer apiClient.Logout(context.Background())

	stats, err := apiClient.Export(ctx, export.Options{Force: exportForce})

	if jsonOutput {
		result := map[string]interface{}{
			"success": err == nil,
			"stats":   stats,
		}
		if err != nil {
			result["error"] = err.Error()
		}
		printJSON(result)
		return err
	}

	if stats != nil {
		fmt.Println(export.RenderSummary(stats))
	}

	if err != nil {
		if errors.Is(err, models.ErrExportInProgress) {
			printError("Another export is already running against this output directory.")
			return err
		}
		printError("Export finished with errors: %v", err)
		return err
	}

	printSuccess("Export completed successfully")
	return nil
}

// applyExportFlags overlays command-line flags onto the loaded config.
func applyExportFlags() {
	if exportServer != "" {
		cfg.NAS.Host = exportServer
	}
	if exportOutput != "" {
		cfg.Export.OutputDir = exportOutput
	}
	if exportBackend != "" {
		cfg.Export.HistoryBackend = exportBackend
	}
	if exportForce {
		cfg.Export.Force = true
	}
	if exportSkipHist {
		cfg.Export.SkipHistory = true
	}
}
