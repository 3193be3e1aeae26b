package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"newsarchive/pipeline"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "run or control the background pipeline worker pool",
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "run the worker pool in the foreground until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := writePIDFile(); err != nil {
			return err
		}
		defer os.Remove(pidFilePath())

		engine := newOCREngine()
		registry := pipeline.NewRegistry()
		registry.Register(&pipeline.DownloadHandler{Archive: a.archive, Store: a.store})
		registry.Register(&pipeline.OCRHandler{Engine: engine, Store: a.store, Queue: a.q})
		registry.Register(&pipeline.SegmentHandler{Engine: engine, Store: a.store})
		registry.Register(&pipeline.EntityHandler{Store: a.store})

		ownerID := fmt.Sprintf("%s:%d", hostname(), os.Getpid())
		pool := pipeline.NewPool(a.q, registry, a.events, cfg.Queue, ownerID, log)

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
		go func() {
			for sig := range sigCh {
				switch sig {
				case syscall.SIGUSR1:
					pool.Pause()
					log.Info("worker pool paused")
				case syscall.SIGUSR2:
					pool.Resume()
					log.Info("worker pool resumed")
				default:
					log.Info("shutting down worker pool")
					cancel()
					return
				}
			}
		}()

		log.WithField("owner", ownerID).Info("worker pool starting")
		pool.Start(runCtx)
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "report whether a worker pool process is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := readPIDFile()
		if err != nil {
			fmt.Println("stopped")
			return nil
		}
		if processAlive(pid) {
			fmt.Printf("running (pid %d)\n", pid)
		} else {
			fmt.Println("stopped (stale pid file)")
		}
		return nil
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "send a graceful shutdown signal to the running worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalRunningService(syscall.SIGTERM)
	},
}

var servicePauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "pause task leasing in the running worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalRunningService(syscall.SIGUSR1)
	},
}

var serviceResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "resume task leasing in the running worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalRunningService(syscall.SIGUSR2)
	},
}

func signalRunningService(sig syscall.Signal) error {
	pid, err := readPIDFile()
	if err != nil {
		return fmt.Errorf("no running service found: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}

func pidFilePath() string {
	return strings.TrimSuffix(cfg.RepositoryPath, "/") + "/.service.pid"
}

func writePIDFile() error {
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}

func init() {
	serviceCmd.AddCommand(serviceStartCmd, serviceStopCmd, serviceStatusCmd, servicePauseCmd, serviceResumeCmd)
	RootCmd.AddCommand(serviceCmd)
}
