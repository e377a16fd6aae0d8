package cli

import (
	"fmt"
	"strings"

	"github.com/me/gokern/internal/config"
	"github.com/me/gokern/internal/kernel"
	"github.com/me/gokern/internal/swap"
	"github.com/spf13/cobra"
)

func newSelfTestCmd() *cobra.Command {
	var policy string
	var testcase int

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run a scripted scheduler workload and print the completion order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultKernelConfig()
			cfg.Policy = policy

			store, err := swap.NewSQLiteStore(":memory:", logger)
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

			completed, err := k.SelfTest(testcase, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completion order: %s\n", strings.Join(completed, ", "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&policy, "policy", "p", "fifo", "Scheduling policy (fifo, sjf, priority)")
	cmd.Flags().IntVarP(&testcase, "testcase", "t", 0, "Scripted workload to run (0-2)")

	return cmd
}
