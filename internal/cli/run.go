package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/me/gokern/internal/config"
	"github.com/me/gokern/internal/kernel"
	"github.com/me/gokern/internal/monitor"
	"github.com/me/gokern/internal/swap"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var noMonitor bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workload from a config file",
		Long: `Builds a kernel from the given YAML config, forks the declared workload
threads, and drives the machine until every thread has finished. With the
monitor enabled the process keeps serving the diagnostic API afterwards
until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store, err := swap.NewSQLiteStore(cfg.SwapPath, logger)
			if err != nil {
				return fmt.Errorf("open swap store: %w", err)
			}
			defer store.Close()
			if err := store.Migrate(); err != nil {
				return fmt.Errorf("migrate swap store: %w", err)
			}

			k, err := kernel.New(cfg, store, logger)
			if err != nil {
				return err
			}

			if !noMonitor && cfg.MonitorAddr != "" {
				srv := monitor.New(k, logger)
				go func() {
					logger.Info("monitor listening", "addr", cfg.MonitorAddr)
					if err := http.ListenAndServe(cfg.MonitorAddr, srv.Handler()); err != nil {
						logger.Error("monitor stopped", "error", err)
					}
				}()
			}

			if err := k.RunWorkload(cfg.Workload, cmd.OutOrStdout()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workload complete at tick %d\n", k.Scheduler().Tick())

			if !noMonitor && cfg.MonitorAddr != "" {
				// Keep the monitor up for inspection until interrupted.
				sig := make(chan os.Signal, 1)
				signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
				<-sig
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "kernel.yaml", "Path to kernel config file")
	cmd.Flags().BoolVar(&noMonitor, "no-monitor", false, "Exit when the workload finishes instead of serving the monitor")

	return cmd
}
