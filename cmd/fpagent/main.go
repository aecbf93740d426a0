// Package main provides the fpagent binary entry point. Fpagent is a
// conversational FP&A assistant that answers budget and actuals
// questions over an Aleph workbook export using LLM tool calling.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/finsight/fpagent/llm/providers"
)

const (
	Version = "0.1.0"
	appName = "fpagent"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// API keys and DATABASE_URL commonly live in a local .env file.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Conversational FP&A assistant",
		Long: `Fpagent answers budget and actuals questions over an Aleph workbook
export. An LLM drives exploration, aggregation, variance analysis and
chart generation through a small set of tools; headline metrics are
precomputed into Postgres on a schedule.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	newApp := func() (*app, error) {
		logger := newLogger(logLevel)
		cfg, err := loadConfig(configPath, logger)
		if err != nil {
			return nil, err
		}
		return &app{cfg: cfg, logger: logger}, nil
	}

	cmd.AddCommand(serveCmd(newApp))
	cmd.AddCommand(askCmd(newApp))
	cmd.AddCommand(refreshMetricsCmd(newApp))
	cmd.AddCommand(sourcesCmd(newApp))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
