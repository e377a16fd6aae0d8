package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running kernel's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/status")
			if err != nil {
				return fmt.Errorf("get status: %w", err)
			}

			var data map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			status, _ := data["status"].(string)
			policy, _ := data["policy"].(string)
			uptime, _ := data["uptime"].(string)
			ram, _ := data["ram"].(string)
			swapSize, _ := data["swap"].(string)
			tick, _ := data["tick"].(float64)

			fmt.Printf("Status:  %s\n", status)
			fmt.Printf("  Policy: %s\n", policy)
			fmt.Printf("  Tick:   %d\n", int64(tick))
			fmt.Printf("  Uptime: %s\n", uptime)
			fmt.Printf("  RAM:    %s\n", ram)
			fmt.Printf("  Swap:   %s\n", swapSize)

			return nil
		},
	}
}
