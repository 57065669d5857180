package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/maximewewer/ntp-offset/internal/collector"
	"github.com/maximewewer/ntp-offset/internal/config"
	"github.com/maximewewer/ntp-offset/internal/display"
	"github.com/maximewewer/ntp-offset/internal/ntp"
	"github.com/maximewewer/ntp-offset/internal/server"
	"github.com/maximewewer/ntp-offset/pkg/logger"
	"github.com/maximewewer/ntp-offset/pkg/metrics"
)

var (
	// Build information
	version = "dev"
)

const shutdownTimeout = 15 * time.Second

// Run modes
const (
	modeInteractive = "interactive"
	modeOnce        = "once"
	modeWatch       = "watch"
)

func main() {
	// Parse command-line flags
	configFile := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	serverName := flag.String("server", "", "Query this server once and exit")
	watch := flag.Bool("watch", false, "Query the configured servers periodically and serve Prometheus metrics")
	verify := flag.Bool("verify", false, "Cross-check every offset against the reference client")
	flag.Parse()

	if *showVersion {
		// Use println for version output (user-facing, not logging)
		println("ntp-offset version", version)
		os.Exit(0)
	}

	// Load configuration (before logger is initialized)
	cfg, err := loadConfig(*configFile)
	if err != nil {
		// Cannot use logger yet, write to stderr
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verify {
		cfg.NTP.Verify = true
	}

	if err := logger.InitLogger(cfg.Logging.LoggerConfig()); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	mode := selectMode(*watch, *serverName)
	logger.Startup(version, mode, map[string]interface{}{
		"go_version": runtime.Version(),
		"config":     cfg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case modeWatch:
		err = runWatch(ctx, cfg)
	case modeOnce:
		stack := collector.NewStack(cfg, nil)
		err = runOnce(ctx, stack.Querier, display.NewPrinter(os.Stdout), *serverName)
	default:
		stack := collector.NewStack(cfg, nil)
		selector := display.NewSelector(cfg.NTP.Servers, nil)
		err = runInteractive(ctx, stack.Querier, display.NewPrinter(os.Stdout), selector, os.Stdin)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("main", "ntp-offset failed", err)
		logger.Shutdown("error")
		os.Exit(1)
	}

	logger.Shutdown("graceful")
}

func selectMode(watch bool, server string) string {
	switch {
	case watch:
		return modeWatch
	case server != "":
		return modeOnce
	default:
		return modeInteractive
	}
}

// loadConfig loads configuration based on whether a config file is specified
func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		// Priority: Environment Variables > YAML File > Defaults
		return config.LoadFromYamlWithEnvOverrides(configFile)
	}
	// Priority: Environment Variables > Defaults
	return config.LoadFromEnvVarsOnly()
}

// query runs one exchange and prints its outcome
func query(ctx context.Context, querier ntp.Querier, printer *display.Printer, server string) error {
	if err := printer.Announce(server); err != nil {
		return err
	}

	resp, err := querier.Query(ctx, server)
	if err != nil {
		if perr := printer.RenderError(server, err); perr != nil {
			return perr
		}
		return err
	}

	return printer.Render(server, resp)
}

// runOnce queries server a single time
func runOnce(ctx context.Context, querier ntp.Querier, printer *display.Printer, server string) error {
	return query(ctx, querier, printer, server)
}

// runInteractive prompts for a server name until input ends. A blank line
// queries a random configured server; failed exchanges do not stop the loop.
func runInteractive(ctx context.Context, querier ntp.Querier, printer *display.Printer, selector *display.Selector, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if err := printer.Prompt(); err != nil {
			return err
		}

		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = l
		}

		server, err := selector.Choose(line)
		if err != nil {
			if perr := printer.RenderError("", err); perr != nil {
				return perr
			}
			continue
		}

		if err := query(ctx, querier, printer, server); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.SafeDebug("main", "Interactive query failed", map[string]interface{}{
				"server": server,
				"error":  err.Error(),
			})
		}
	}
}

// runWatch serves metrics while querying the configured servers every
// scrape interval
func runWatch(ctx context.Context, cfg *config.Config) error {
	registry := metrics.NewRegistryWithConfig(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	if err := registry.Register(); err != nil {
		return err
	}

	m := registry.GetMetrics()
	m.BuildInfo.WithLabelValues(version, runtime.Version()).Set(1)

	stack := collector.NewStack(cfg, m)
	if stack.DNSCache != nil {
		go stack.DNSCache.StartCleanupWorker(ctx, cfg.NTP.DNSCache.CleanupInterval)
	}

	exchange := collector.NewExchangeCollector(cfg, stack, m)
	collectorRegistry := collector.NewRegistry()
	if err := collectorRegistry.Register(exchange); err != nil {
		return err
	}

	logger.SafeInfo("main", "Registered collectors", map[string]interface{}{
		"total":   collectorRegistry.Count(),
		"enabled": collectorRegistry.EnabledCount(),
		"servers": len(cfg.NTP.Servers),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := server.New(cfg, registry.GetRegistry(), m, exchange)
	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Start(ctx)
	}()

	collectorErrChan := make(chan error, 1)
	go func() {
		collectorErrChan <- collectorRegistry.Run(ctx, cfg.NTP.ScrapeInterval)
	}()

	var err error
	serverStopped := false
	select {
	case <-ctx.Done():
		logger.Info("main", "Received shutdown signal")
	case err = <-serverErrChan:
		serverStopped = true
		if err != nil {
			logger.Error("main", "Server error", err)
		}
	case err = <-collectorErrChan:
		if err != nil {
			logger.Error("main", "Collector error", err)
		}
	}
	cancel()

	// The server shuts itself down once ctx is cancelled
	if !serverStopped {
		select {
		case serr := <-serverErrChan:
			if serr != nil {
				logger.Error("main", "Server shutdown error", serr)
			}
		case <-time.After(shutdownTimeout):
			logger.Warn("main", "HTTP server did not stop in time")
		}
	}

	return err
}
