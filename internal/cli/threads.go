package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newThreadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "threads",
		Short: "List the running kernel's threads",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/threads")
			if err != nil {
				return fmt.Errorf("get threads: %w", err)
			}

			var data struct {
				Current     string `json:"current"`
				LiveThreads int    `json:"live_threads"`
				Tick        int64  `json:"tick"`
				Ready       []struct {
					Name     string `json:"name"`
					Status   string `json:"status"`
					Priority int    `json:"priority"`
					Burst    int    `json:"burst"`
				} `json:"ready"`
				Sleeping []struct {
					Name     string `json:"name"`
					WakeTick int64  `json:"wake_tick"`
				} `json:"sleeping"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Current: %s (tick %d, %d live)\n", data.Current, data.Tick, data.LiveThreads)
			if len(data.Ready) > 0 {
				fmt.Println("Ready:")
				for _, t := range data.Ready {
					fmt.Printf("  - %s (priority %d, burst %d)\n", t.Name, t.Priority, t.Burst)
				}
			}
			if len(data.Sleeping) > 0 {
				fmt.Println("Sleeping:")
				for _, t := range data.Sleeping {
					fmt.Printf("  - %s (wakes at tick %d)\n", t.Name, t.WakeTick)
				}
			}

			return nil
		},
	}
}
