package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"stationagent/internal/app"
	"stationagent/internal/config"
	"stationagent/internal/logger"
	"stationagent/internal/service/vision"
)

var serviceAction string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent until interrupted",
	Long: `Runs the agent in the foreground until SIGINT or SIGTERM. With --service the
agent is controlled as an OS service instead.`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(runCmd)
	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		c.Flags().StringVar(&serviceAction, "service", "", "Service action: install, uninstall, start, stop, restart")
	}
}

// program implements service.Interface around the agent.
type program struct {
	cfg    *config.Config
	logger *logger.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// Start builds the agent and runs it in the background. It must not block.
func (p *program) Start(s service.Service) error {
	log, err := logger.New(p.cfg.Log)
	if err != nil {
		return err
	}
	p.logger = log

	vis, err := newVision(p.cfg, log)
	if err != nil {
		log.Close()
		return err
	}

	agent, err := app.New(p.cfg, vis, log)
	if err != nil {
		vis.Close()
		log.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := agent.Run(ctx); err != nil {
			log.Error("Agent failed: %v", err)
			// Exit so the service manager restarts us.
			os.Exit(1)
		}
	}()
	return nil
}

// Stop cancels the agent and waits until it has released the device and
// flushed the journal.
func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	<-p.done
	return p.logger.Close()
}

func newVision(cfg *config.Config, log *logger.Logger) (app.Vision, error) {
	models, err := vision.LoadModels(cfg.Inference, log.With("vision"))
	if err != nil {
		return app.Vision{}, err
	}
	return app.Vision{
		Opener:    vision.DeviceOpener{},
		Detectors: models.Detectors,
		Renderer:  vision.Renderer{},
		Encoder:   vision.JPEGEncoder{Quality: cfg.Stream.JPEGQuality},
		Close:     models.Close,
	}, nil
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	svcConfig := &service.Config{
		Name:        "station-agent",
		DisplayName: "Station Camera Agent",
		Description: "Streams and captures inspection station cameras for the backend",
		Arguments:   []string{"run"},
	}
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return err
		}
		svcConfig.Arguments = append(svcConfig.Arguments, "--config", abs)
	}

	s, err := service.New(&program{cfg: cfg}, svcConfig)
	if err != nil {
		return err
	}

	if serviceAction != "" {
		if err := service.Control(s, serviceAction); err != nil {
			return fmt.Errorf("failed to %s service: %w", serviceAction, err)
		}
		fmt.Printf("Service action '%s' completed successfully.\n", serviceAction)
		return nil
	}

	// Blocks until the service manager stops us, or until SIGINT/SIGTERM when
	// run interactively.
	return s.Run()
}
