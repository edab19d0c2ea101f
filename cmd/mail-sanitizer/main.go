package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-sanitizer/internal/config"
	"github.com/mikey/mail-sanitizer/internal/core"
	"github.com/mikey/mail-sanitizer/internal/di"
	"github.com/mikey/mail-sanitizer/internal/logging"
	"github.com/mikey/mail-sanitizer/internal/ports"
)

// defaultConfigFile is reported when no configuration file was found
const defaultConfigFile = "/etc/mail/sanitizer.properties"

// cliFlags holds the command line flags
type cliFlags struct {
	configFile string
	source     string
	target     string
	logLevel   string
	jsonLog    bool
	verbose    bool
}

func main() {
	flags := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:           "mail-sanitizer",
		Short:         "Rewrite a directory of email messages as minimal plain-text messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, flags)
		},
	}

	rootCmd.Flags().StringVar(&flags.configFile, "config", "", "Path to config file (default searches "+defaultConfigFile+")")
	rootCmd.Flags().StringVar(&flags.source, "source", "", "Directory holding the messages to clean")
	rootCmd.Flags().StringVar(&flags.target, "target", "", "Directory receiving the cleaned messages")
	rootCmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&flags.jsonLog, "json-log", false, "Output logs in JSON format")
	rootCmd.Flags().BoolVar(&flags.verbose, "verbose", false, "Enable verbose logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func execute(cmd *cobra.Command, flags *cliFlags) error {
	// Bootstrap logger for failures before the configured one exists
	bootstrap, err := logging.InitConsoleLogger(flags.verbose, flags.jsonLog)
	if err != nil {
		return err
	}
	defer bootstrap.Sync()
	bootstrap.Info("Initializing mail sanitizer")

	container, err := di.BuildContainer(di.Options{
		ConfigFile: flags.configFile,
		Overrides:  overrides(cmd, flags),
	})
	if err != nil {
		bootstrap.Error("Failed to build dependency container", zap.Error(err))
		return err
	}

	var (
		cfg    *config.Config
		logger *zap.Logger
	)
	if err := container.Invoke(func(c *config.Config, l *zap.Logger) {
		cfg, logger = c, l
	}); err != nil {
		bootstrap.Error("Failed to load configuration", zap.Error(err))
		return err
	}
	defer logger.Sync()

	if err := validate(cfg, logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := container.Invoke(func(runner ports.BatchRunner, ledger core.Ledger) error {
		return run(ctx, cfg, logger, runner, ledger)
	}); err != nil {
		logger.Error("Batch aborted", zap.Error(err))
		return err
	}
	return nil
}

// overrides maps the flags given on the command line onto configuration keys
func overrides(cmd *cobra.Command, flags *cliFlags) map[string]interface{} {
	values := make(map[string]interface{})
	if cmd.Flags().Changed("source") {
		values["source.directory"] = flags.source
	}
	if cmd.Flags().Changed("target") {
		values["target.directory"] = flags.target
	}
	if cmd.Flags().Changed("log-level") {
		values["logging.level"] = flags.logLevel
	}
	if flags.verbose {
		values["logging.level"] = "debug"
	}
	if flags.jsonLog {
		values["logging.format"] = "json"
	}
	return values
}

// validate reports blank or malformed settings against the file they came from
func validate(cfg *config.Config, logger *zap.Logger) error {
	configFile := cfg.ConfigFileUsed()
	if configFile == "" {
		configFile = defaultConfigFile
	}
	logger.Info("Configuration loaded", zap.String("config", configFile))

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration",
			zap.String("config", configFile),
			zap.Error(err))
		return err
	}
	return nil
}

// run drives one batch and closes the ledger afterwards
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, runner ports.BatchRunner, ledger core.Ledger) error {
	if ledger != nil {
		defer func() {
			if err := ledger.Close(); err != nil {
				logger.Error("Failed to close ledger", zap.Error(err))
			}
		}()
	}

	dirs := cfg.GetDirectories()
	_, err := runner.Run(ctx, dirs.Source, dirs.Target)
	return err
}
