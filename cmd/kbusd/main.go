// Command kbusd is the KBUS daemon: it owns a Bus, exposes each
// configured device through internal/transport over a Unix domain
// socket, and serves Prometheus metrics for every device it owns.
//
// Grounded on go-ublk's cmd/ublk-mem main.go: flag-parsed configuration,
// logging.SetDefault wired up front, a context canceled on SIGINT/SIGTERM,
// and a deferred graceful-stop path — the parts that don't depend on a
// real block device translate directly onto serving KBUS devices.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	kbus "github.com/kbusd/kbus"
	"github.com/kbusd/kbus/internal/logging"
	"github.com/kbusd/kbus/internal/obsmetrics"
	"github.com/kbusd/kbus/internal/transport"
)

func main() {
	var (
		socketDir  = flag.String("socket-dir", "/run/kbus", "directory to create per-device Unix socket nodes in")
		numDevices = flag.Int("devices", 1, "number of devices to create and serve (device indices 0..n-1)")
		metricsAddr = flag.String("metrics-addr", ":9477", "address to serve /metrics on")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if *numDevices < 1 {
		logger.Error("devices must be >= 1")
		os.Exit(1)
	}

	if err := os.MkdirAll(*socketDir, 0755); err != nil {
		logger.Error("creating socket dir", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	params := kbus.DefaultParams()
	params.Verbose = *verbose
	bus := kbus.NewBus(params)

	reg := prometheus.NewRegistry()

	var listeners []net.Listener
	defer func() {
		for _, ln := range listeners {
			ln.Close()
		}
	}()

	for i := 1; i < *numDevices; i++ {
		bus.NewDevice()
	}

	for devIdx := 0; devIdx < *numDevices; devIdx++ {
		idx := uint32(devIdx)
		m, _ := bus.Metrics(idx)
		if err := reg.Register(obsmetrics.New(idx, m)); err != nil {
			logger.Error("registering collector", "device", idx, "error", err)
			os.Exit(1)
		}

		sockPath := filepath.Join(*socketDir, fmt.Sprintf("dev%d.sock", idx))
		os.Remove(sockPath)
		ln, err := net.Listen("unix", sockPath)
		if err != nil {
			logger.Error("listening", "socket", sockPath, "error", err)
			os.Exit(1)
		}
		listeners = append(listeners, ln)

		srv := transport.NewServer(bus, idx)
		go func() {
			if err := srv.Serve(ctx, ln); err != nil {
				logger.Warn("server stopped", "device", idx, "error", err)
			}
		}()
		logger.Info("device serving", "device", idx, "socket", sockPath)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		logger.Info("metrics serving", "addr", *metricsAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", "error", err)
		}
	}()

	logger.Info("kbusd ready", "devices", strconv.Itoa(*numDevices))
	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
