// Command roibotd hosts the warehouse robot simulation: it loads
// configuration, drives the tick loop, serves the push channel over
// websockets, and exposes an interactive command line for local control.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"roibot/internal/config"
	"roibot/internal/engine"
	"roibot/internal/input"
	"roibot/internal/logging"
	"roibot/internal/networking"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		return 1
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Error("engine init failed", logging.Error(err))
		return 1
	}

	gate := input.NewGate(input.Config{MaxAge: 2 * time.Second, MinInterval: 50 * time.Millisecond}, logger)
	validator := input.NewCommandValidator(input.DefaultCommandConstraints, logger)
	bandwidth := networking.NewBandwidthRegulator(0, nil)
	hub := networking.NewHub(eng, logger, gate, validator, bandwidth)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	server := &http.Server{Addr: ":8765", Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("push adapter server stopped", logging.Error(err))
		}
	}()

	go func() {
		if err := eng.Run(ctx, 0); err != nil && err != context.Canceled {
			logger.Warn("tick loop stopped", logging.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		_ = server.Close()
	}()

	code := runREPL(eng)
	cancel()
	_ = server.Close()
	return code
}

// runREPL reads commands from stdin and applies them to eng until `quit` or
// EOF, mirroring the teacher's interactive-mode cobra dispatch loop.
func runREPL(eng *engine.Engine) int {
	root := &cobra.Command{Use: "roibotd", Short: "warehouse robot simulation host"}

	root.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "begin the simulation",
		Run:   func(cmd *cobra.Command, args []string) { eng.Start(); fmt.Println("simulation started") },
	})
	root.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "halt the simulation",
		Run:   func(cmd *cobra.Command, args []string) { eng.Stop(); fmt.Println("simulation stopped") },
	})
	root.AddCommand(&cobra.Command{
		Use:   "pause",
		Short: "freeze the simulation clock",
		Run:   func(cmd *cobra.Command, args []string) { eng.Pause(); fmt.Println("simulation paused") },
	})
	root.AddCommand(&cobra.Command{
		Use:   "resume",
		Short: "lift a prior pause",
		Run:   func(cmd *cobra.Command, args []string) { eng.Resume(); fmt.Println("simulation resumed") },
	})
	root.AddCommand(&cobra.Command{
		Use:   "speed [x]",
		Short: "scale simulation speed, clamped to [0.1,10.0]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid speed: %w", err)
			}
			eng.SetSpeed(x)
			fmt.Printf("speed set to %.2f\n", eng.Snapshot().Speed)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "discard all simulation state and rebuild from configuration",
		Run:   func(cmd *cobra.Command, args []string) { eng.Reset(); fmt.Println("simulation reset") },
	})
	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "print the current run status and robot state",
		Run: func(cmd *cobra.Command, args []string) {
			snap := eng.Snapshot()
			fmt.Printf("status=%s tick=%d robot=%s position=(%.1f,%.1f) order=%s\n",
				snap.Status, snap.Tick, snap.Robot.State, snap.Robot.Position.Aisle, snap.Robot.Position.Rack, snap.Robot.OrderID)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "print queue and KPI statistics",
		Run: func(cmd *cobra.Command, args []string) {
			snap := eng.Snapshot()
			fmt.Printf("active=%d completed=%d failed=%d avg_completion=%s avg_efficiency=%.2f\n",
				snap.Queue.Active, snap.Queue.Completed, snap.Queue.Failed,
				snap.KPI.Tracker.AverageCompletionTime, snap.KPI.Tracker.AverageEfficiency)
		},
	})

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("roibotd interactive host. Type 'help' for commands, 'quit' to exit.")
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" {
			fmt.Println("shutting down")
			return 0
		}
		root.SetArgs(strings.Fields(line))
		if err := root.Execute(); err != nil {
			fmt.Println(err)
		}
	}
}
