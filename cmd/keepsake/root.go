package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PabloGalante/keepsake/internal/config"
	"github.com/PabloGalante/keepsake/internal/configutil"
	"github.com/PabloGalante/keepsake/internal/observability"
)

const envPrefix = "KEEPSAKE"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "keepsake",
		Short:         "Turn a memory into a letter, an image and a voice",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cobra.OnInitialize(initConfig)

	cmd.PersistentFlags().String("config", "", "Config file path (optional).")
	_ = viper.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))

	cmd.PersistentFlags().String("log-level", "info", "Logging level: debug|info|warn|error.")
	cmd.PersistentFlags().Bool("mock", false, "Use the offline mock generator instead of Gemini.")
	cmd.PersistentFlags().String("storage", "memory", "Archive backend: memory|sqlite|firestore.")
	cmd.PersistentFlags().String("sqlite-path", "keepsake.db", "SQLite archive file.")
	cmd.PersistentFlags().String("gcp-project", "", "GCP project for the firestore archive.")

	cmd.AddCommand(newComposeCmd())
	cmd.AddCommand(newArchiveCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	cfgFile := strings.TrimSpace(viper.GetString("config"))
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
	}
}

// loadConfig reads the KEEPSAKE_* environment and lets flags and the config
// file override it before validating.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Process()
	if err != nil {
		return nil, err
	}

	if viper.IsSet("api_key") {
		cfg.APIKey = viper.GetString("api_key")
	}
	if configutil.Changed(cmd, "log-level", "log_level") {
		cfg.LogLevel = configutil.FlagOrViperString(cmd, "log-level", "log_level")
	}
	if configutil.Changed(cmd, "mock", "use_mock_llm") {
		cfg.UseMockLLM = configutil.FlagOrViperBool(cmd, "mock", "use_mock_llm")
	}
	if configutil.Changed(cmd, "storage", "storage_backend") {
		cfg.StorageBackend = configutil.FlagOrViperString(cmd, "storage", "storage_backend")
	}
	if configutil.Changed(cmd, "sqlite-path", "sqlite_path") {
		cfg.SQLitePath = configutil.FlagOrViperString(cmd, "sqlite-path", "sqlite_path")
	}
	if configutil.Changed(cmd, "gcp-project", "gcp_project") {
		cfg.GCPProjectID = configutil.FlagOrViperString(cmd, "gcp-project", "gcp_project")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	observability.SetLevel(cfg.LogLevel)
	return cfg, nil
}
