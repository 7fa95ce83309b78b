package commands

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"procwatch/internal/config"
	"procwatch/internal/logger"
	"procwatch/internal/monitor"
	"procwatch/internal/process"
	"procwatch/internal/service"
)

// NewDaemonCmd creates the daemon command: the foreground agent loop.
// It is what systemd (or the start command) actually executes.
func NewDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "daemon",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			runDaemon()
		},
	}
}

func runDaemon() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Error loading config: %v", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogFile)
	defer log.Close()

	defer func() {
		log.Info("=== DAEMON EXITING - PID: %d ===", os.Getpid())
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error("=== PANIC DETECTED ===")
			log.Error("Panic value: %v", r)
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			log.Error("Stack trace:\n%s", string(buf[:n]))
			service.NotifyStopping()
			os.Exit(1)
		}
	}()

	log.Info("=== DAEMON STARTING - PID: %d ===", os.Getpid())

	lock, err := process.Acquire()
	if err != nil {
		log.Error("Failed to acquire PID lock: %v", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	mon, err := monitor.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize agent: %v", err)
		os.Exit(1)
	}

	log.Info("Daemon initialized:")
	log.Info("  Pattern: %s", cfg.ProcessPattern)
	log.Info("  Service: %s", mon.Service().DisplayName)
	log.Info("  Collection interval: %ds", cfg.CollectionInterval)
	log.Info("  OTLP: %s (%s)", cfg.OTLPEndpoint, cfg.OTLPProtocol)

	if err := mon.Run(ctx); err != nil {
		log.Error("Agent stopped with error: %v", err)
		os.Exit(1)
	}
}
