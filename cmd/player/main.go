package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/lumen/internal/config"
	"github.com/Nixie-Tech-LLC/lumen/internal/logging"
)

var (
	logger zerolog.Logger
	cfg    *config.PlayerConfig

	identityPath string
)

var rootCmd = &cobra.Command{
	Use:   "player",
	Short: "Lumen signage player",
	Long:  "Runs one signage screen: follows its schedule, plays the resolved playlist and reports presence.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&identityPath, "identity-file", "", "where the device identity is stored (default $DEVICE_ID_PATH or ./device-id)")
	rootCmd.AddCommand(runCmd, resetCmd, whoamiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.LoadPlayer()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if identityPath != "" {
		cfg.DeviceIDPath = identityPath
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func resolveIdentityPath() string {
	if identityPath != "" {
		return identityPath
	}
	return config.DeviceIDPath()
}
