// main.go - IntuitionRSX command line: offload workload runner, replay and feature report

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine

License: GPLv3 or later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	configFile   string
	logLevelFlag string
	cfg          Config
)

func boilerPlate() {
	fmt.Println("\nIntuitionRSX - RSX command offload core")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/IntuitionAmiga/IntuitionEngine")
	fmt.Println("License: GPLv3 or later")
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "intuition_rsx",
		Short:         "RSX DMA offload core",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			if logLevelFlag != "" {
				loaded.Logging.Level = logLevelFlag
			}
			if err := initLogger(loaded.Logging); err != nil {
				return err
			}
			if err := watchLoggingConfig(configFile, logLevelFlag); err != nil {
				logWarn("config watch disabled", "error", err)
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file (RSX_* environment variables override it)")
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: DEBUG, INFO, WARN, ERROR")

	root.AddCommand(newRunCmd(), newReplayCmd(), newFeaturesCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		wl             workloadConfig
		backend        string
		statusInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a synthetic frame workload through the offload worker",
		Long: `Run stages vertex uploads and index emulation for every frame, submits a
command buffer per frame and, with --verify, checks guest memory against a
sequential reference after each submission.

Examples:
  # Software queue, 600 verified frames
  intuition_rsx run --frames 600 --verify

  # Vulkan queue with offload disabled
  RSX_VIDEO_MULTITHREADED_RSX=false intuition_rsx run --backend vulkan`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(cmd.Context(), wl, backend, statusInterval)
		},
	}
	cmd.Flags().IntVar(&wl.Frames, "frames", 600, "Number of frames to run")
	cmd.Flags().IntVar(&wl.DrawsPerFrame, "draws", 64, "Draws per frame")
	cmd.Flags().IntVar(&wl.MaxUpload, "max-upload", 256*1024, "Largest single vertex upload in bytes")
	cmd.Flags().Uint64Var(&wl.Seed, "seed", 1, "Workload random seed")
	cmd.Flags().BoolVar(&wl.Verify, "verify", true, "Compare guest memory with a sequential reference every frame")
	cmd.Flags().StringVar(&backend, "backend", "auto", "Command queue backend: auto, software, vulkan")
	cmd.Flags().DurationVar(&statusInterval, "status-interval", 2*time.Second, "Status report interval (0 disables)")
	return cmd
}

func newReplayCmd() *cobra.Command {
	var memSize int
	cmd := &cobra.Command{
		Use:   "replay <script.lua>",
		Short: "Replay a Lua upload script through the offload worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics, stop := startMetrics(cfg.Metrics.Listen)
			defer stop()

			dma := NewDMAManager(cfg, WithOffloadMetrics(metrics))
			replay := newOffloadReplay(dma, NewGuestMemory(memSize))
			defer replay.Close()

			if err := replay.RunFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			stats := dma.Stats()
			logInfo("replay finished", "script", args[0],
				"enqueued", stats.Enqueued, "processed", stats.Processed, "immediate", stats.Immediate)
			return nil
		},
	}
	cmd.Flags().IntVar(&memSize, "memory", DEFAULT_GUEST_MEMORY_SIZE, "Guest memory size in bytes")
	return cmd
}

func newFeaturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "Print compiled features and the effective offload configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			printFeatures(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

// startMetrics serves a private Prometheus registry on listen. An empty
// address disables metrics and returns nil.
func startMetrics(listen string) (*offloadMetrics, func()) {
	if listen == "" {
		return nil, func() {}
	}
	reg := prometheus.NewRegistry()
	metrics := newOffloadMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logError("metrics server failed", "listen", listen, "error", err)
		}
	}()
	logInfo("metrics listening", "listen", listen)

	return metrics, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func openCommandQueue(backend string) (CommandQueue, error) {
	switch backend {
	case "software":
		return NewSoftwareCommandQueue(false), nil
	case "vulkan":
		return NewVulkanCommandQueue()
	case "auto", "":
		if !cfg.Vulkan.Enabled {
			return NewSoftwareCommandQueue(false), nil
		}
		q, err := NewVulkanCommandQueue()
		if errors.Is(err, ErrVulkanUnavailable) {
			logWarn("vulkan unavailable, using software command queue", "error", err)
			return NewSoftwareCommandQueue(false), nil
		}
		return q, err
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}

func runWorkload(ctx context.Context, wl workloadConfig, backend string, statusInterval time.Duration) error {
	metrics, stop := startMetrics(cfg.Metrics.Listen)
	defer stop()

	queue, err := openCommandQueue(backend)
	if err != nil {
		return err
	}

	dma := NewDMAManager(cfg, WithOffloadMetrics(metrics))
	dma.Init()
	defer dma.Join()

	ring, err := NewCommandBufferRing(queue, dma, MAX_ASYNC_COMMAND_BUFFERS, cfg.Vulkan.PresentTimeout, metrics)
	if err != nil {
		queue.Destroy()
		return err
	}
	defer func() {
		if err := ring.Destroy(); err != nil {
			logWarn("command buffer ring teardown", "error", err)
		}
	}()

	runtimeStatus.setSession(queue.Name(), dma)
	defer runtimeStatus.clear()

	if statusInterval > 0 {
		reportCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go reportRuntimeStatus(reportCtx, runtimeStatus, statusInterval)
	}

	logInfo("workload starting", "backend", queue.Name(), "frames", wl.Frames,
		"draws", wl.DrawsPerFrame, "multithreaded", cfg.Video.MultithreadedRSX,
		"immediate_transfer", cfg.Video.ImmediateTransferSize)

	res, err := newFrameWorkload(wl, dma, ring).Run(ctx)
	stats := dma.Stats()
	logInfo("workload finished",
		"frames", res.Frames,
		"draws", res.Draws,
		"uploaded_bytes", res.Uploaded,
		"indices", res.Indices,
		"submitted", res.Submitted,
		"elapsed", res.Elapsed.Round(time.Millisecond),
		"enqueued", stats.Enqueued,
		"immediate", stats.Immediate)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	boilerPlate()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	_ = closeLogOutput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
