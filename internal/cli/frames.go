package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newFramesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frames",
		Short: "Show the running kernel's frame and swap directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/frames")
			if err != nil {
				return fmt.Errorf("get frames: %w", err)
			}

			var data struct {
				NumFrames    int        `json:"num_frames"`
				NumSwapSlots int        `json:"num_swap_slots"`
				Frames       []dirEntry `json:"frames"`
				SwapSlots    []dirEntry `json:"swap_slots"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Frames (%d):\n", data.NumFrames)
			printDir(data.Frames)
			fmt.Printf("Swap slots (%d):\n", data.NumSwapSlots)
			printDir(data.SwapSlots)

			return nil
		},
	}
}

type dirEntry struct {
	Index  int  `json:"index"`
	Valid  bool `json:"valid"`
	Locked bool `json:"locked"`
	VPN    int  `json:"vpn"`
	Count  int  `json:"count"`
}

func printDir(entries []dirEntry) {
	for _, e := range entries {
		if !e.Valid {
			fmt.Printf("  %3d: free\n", e.Index)
			continue
		}
		lock := ""
		if e.Locked {
			lock = " [locked]"
		}
		fmt.Printf("  %3d: vpn %d, count %d%s\n", e.Index, e.VPN, e.Count, lock)
	}
}
