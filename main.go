package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	configFile string
	debug      bool
	settings   = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "webwindow",
	Short: "HomeKit bridge for HTTP-controlled windows",
	Long: `Exposes a window device with an HTTP API as a HomeKit accessory.

The device is polled for its status on a fixed interval and may also push
single characteristic changes to the embedded HTTP server:

  GET /currentPosition?value=42`,
	Version:       versioninfo.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBridge,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(settings, configFile)
		if err != nil {
			return err
		}

		if cfg.Password != "" {
			cfg.Password = "********"
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()

		return enc.Encode(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "webwindow %s (revision %s, %s)\n", versioninfo.Version, versioninfo.Revision, versioninfo.LastCommit.Format("2006-01-02"))
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file (JSON, YAML or TOML).")
	flags.BoolVar(&debug, "debug", false, "Debug logging.")
	flags.String("apiroute", "", "Base URL of the device HTTP API.")
	flags.Int("port", 0, "Port for device push updates.")
	flags.String("homekit-dir", "", "Location on disk to store HomeKit pairing state.")
	flags.String("pin", "", "HomeKit setup pin (8 digits).")
	flags.String("mqtt-url", "", "URL of MQTT server to mirror state to.")

	for key, name := range map[string]string{
		"apiroute":    "apiroute",
		"port":        "port",
		"homekit.dir": "homekit-dir",
		"homekit.pin": "pin",
		"mqtt.url":    "mqtt-url",
	} {
		if err := settings.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger(level string, debug bool) *slog.Logger {
	lvl := &slog.HandlerOptions{Level: slog.LevelInfo}

	switch level {
	case "debug":
		lvl.Level = slog.LevelDebug
	case "warn":
		lvl.Level = slog.LevelWarn
	case "error":
		lvl.Level = slog.LevelError
	}

	if debug {
		lvl.Level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stdout, lvl))
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(settings, configFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level, debug)
	logger.Info("Starting webwindow.", "version", versioninfo.Short(), "config", settings.ConfigFileUsed(), "debug", debug)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := NewBridge(cfg, logger)
	if err != nil {
		return err
	}

	if err := b.Run(ctx); err != nil {
		logger.Error("Bridge stopped with error.", "err", err)
		return err
	}

	logger.Info("Stopping program.")
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
