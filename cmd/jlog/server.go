package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/gourav-shinde/jlog/internal/config"
	"github.com/gourav-shinde/jlog/internal/httpapi"
	"github.com/gourav-shinde/jlog/internal/logsource"
	"github.com/gourav-shinde/jlog/internal/logstore"
	"github.com/gourav-shinde/jlog/internal/pipeline"
	"github.com/gourav-shinde/jlog/internal/socketrpc"
)

// runServer starts headless log analysis with the HTTP API and socket RPC.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	pipeCfg, err := buildPipelineConfig(cfg)
	if err != nil {
		return err
	}

	// Initialize the entry store for scroll-back queries
	var store *logstore.Store
	if cfg.StoreEnabled {
		store, err = logstore.NewStore(cfg.DBPath, cfg.QueryTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize entry store: %w", err)
		}
		defer store.Close()

		insertBuffer := logstore.NewInsertBuffer(store, logstore.InsertBufferConfig{
			BatchSize:      cfg.InsertBatchSize,
			FlushInterval:  cfg.InsertFlushInterval,
			FlushQueueSize: cfg.InsertFlushQueue,
		})
		defer insertBuffer.Stop()
		pipeCfg.Sink = insertBuffer
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now - not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	// Build input plugins and source multiplexer
	plugins := buildInputPlugins(InputPluginConfig{
		FilePath:   cfg.Input,
		Follow:     cfg.Follow,
		TCPEnabled: cfg.TCPEnabled,
		TCPAddr:    cfg.TCPAddr,
	})

	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		return fmt.Errorf("no input sources available: provide -config input, enable tcp, or pipe stdin")
	}

	// A persistent listener keeps the run in tailing mode even when the
	// file input is batch.
	pipeCfg.Tail = cfg.Follow || cfg.TCPEnabled
	pipeCfg.Cadence = cfg.DetectCadence

	controller, err := pipeline.New(pipeCfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	// Progress reporting is only meaningful for known-size file inputs.
	var progress *logsource.ProgressTracker
	for _, src := range sources {
		if fs, ok := src.(*logsource.FileSource); ok {
			progress = logsource.NewProgressTracker(fs.Progress())
			break
		}
	}

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		var entryStore httpapi.EntryStore
		if store != nil {
			entryStore = store
		}
		apiServer := httpapi.NewServer(cfg.APIAddr, controller, entryStore)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start socket RPC server for local consumers
	var rpcStore socketrpc.EntryStore
	if store != nil {
		rpcStore = store
	}
	var rpcProgress socketrpc.ProgressProvider
	if progress != nil {
		rpcProgress = progress
	}
	sockServer := socketrpc.NewServer(cfg.SocketPath, controller, rpcStore, rpcProgress)
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	printStartupBanner(cfg, mux.Name())

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return controller.Run(gctx, mux)
	})

	// Wait for either signal or end of analysis.
	if err := g.Wait(); err != nil {
		log.Printf("server: analysis exited with error: %v", err)
		cancel()
		mux.Stop()
		return err
	}

	cancel()
	mux.Stop()

	// If we reach here, graceful shutdown succeeded within the deadline.
	// The signal goroutine (if active) dies with the process.
	signal.Stop(sigCh)

	return nil
}

// buildPipelineConfig merges the app config with an optional named
// profile. Profile settings win for the fields they set.
func buildPipelineConfig(cfg appConfig) (pipeline.Config, error) {
	pipeCfg := pipeline.Config{
		Granularity: cfg.Granularity,
		TopN:        cfg.TopN,
	}

	if cfg.Profile == "" {
		return pipeCfg, nil
	}

	pf, err := config.Load(cfg.ProfilesPath)
	if err != nil {
		return pipeCfg, err
	}
	p, err := pf.Profile(cfg.Profile)
	if err != nil {
		return pipeCfg, err
	}
	spec, err := p.FilterSpec()
	if err != nil {
		return pipeCfg, err
	}

	pipeCfg.Filter = spec
	pipeCfg.Thresholds = p.Thresholds
	if p.Granularity > 0 {
		pipeCfg.Granularity = p.Granularity
	}
	if p.TopN > 0 {
		pipeCfg.TopN = p.TopN
	}
	return pipeCfg, nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "jlog")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "jlog.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, primarySource string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦╔═╗╔═╗╔═╗
    ║║  ║ ║║ ╦
   ╚╝╩═╝╚═╝╚═╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Inputs
	lines = append(lines, bold.Render("    Inputs"))
	lines = append(lines, "")

	if cfg.Input != "" {
		mode := "batch"
		if cfg.Follow {
			mode = "follow"
		}
		lines = append(lines, fmt.Sprintf("    %s  File           %s %s", check, cyan.Render(shortenPath(cfg.Input)), dim.Render("("+mode+")")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  File           %s", dot, dim.Render("none")))
	}
	if cfg.TCPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", check, cyan.Render(cfg.TCPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Primary        %s", check, dim.Render(primarySource)))
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", check, cyan.Render(shortenPath(cfg.SocketPath))))
	lines = append(lines, "")

	// Storage
	lines = append(lines, bold.Render("    Storage"))
	lines = append(lines, "")

	if cfg.StoreEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Entry Store    %s", check, dim.Render(shortenPath(cfg.DBPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Entry Store    %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	// Analysis
	lines = append(lines, bold.Render("    Analysis"))
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("    %s  Granularity    %s", check, dim.Render(cfg.Granularity.String())))
	if cfg.Profile != "" {
		lines = append(lines, fmt.Sprintf("    %s  Profile        %s", check, cyan.Render(cfg.Profile)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Profile        %s", dot, dim.Render("none")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
