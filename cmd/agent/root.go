package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"stationagent/internal/config"
	"stationagent/internal/logger"
	"stationagent/internal/service/backend"
)

var cfgFile string
var jsonOutput bool

// rootCmd runs the agent when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "station-agent",
	Short: "Edge agent for the vehicle inspection station cameras",
	Long: `Streams annotated frames from the backend-selected camera, sends periodic
captures from every station and follows the backend's active camera choice.`,
	SilenceUsage: true,
	RunE:         runAgent,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./agent.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
}

// backendClient builds a client for one-shot commands. They never encode
// frames, so no encoder is needed.
func backendClient() (*backend.Client, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewWithWriter(os.Stderr, slog.LevelWarn)
	return backend.New(cfg.Backend, nil, log), cfg, nil
}

// printJSON writes v indented. Raw documents are indented as received.
func printJSON(v any) error {
	if raw, ok := v.(json.RawMessage); ok {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return fmt.Errorf("error formatting JSON: %w", err)
		}
		fmt.Println(buf.String())
		return nil
	}

	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding JSON: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
