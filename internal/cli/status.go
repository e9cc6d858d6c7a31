package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health snapshot of a running agent",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8080", "agent HTTP address")
	rootCmd.AddCommand(statusCmd)
}

type statusObserver struct {
	Name          string        `json:"name"`
	Enabled       bool          `json:"enabled"`
	LastRun       time.Time     `json:"last_run"`
	LastDuration  time.Duration `json:"last_duration"`
	ActiveWarning bool          `json:"active_warning"`
	Faulted       bool          `json:"faulted"`
}

type statusSnapshot struct {
	State     string           `json:"state"`
	Observers []statusObserver `json:"observers"`
}

func runStatus(cmd *cobra.Command, args []string) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(statusAddr + "/healthz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to reach agent: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var snap statusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		fmt.Fprintf(os.Stderr, "failed to decode snapshot: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("scheduler: %s\n", snap.State)
	for _, ob := range snap.Observers {
		last := "never"
		if !ob.LastRun.IsZero() {
			last = ob.LastRun.Format(time.RFC3339)
		}
		flags := ""
		if ob.ActiveWarning {
			flags += " [warning]"
		}
		if ob.Faulted {
			flags += " [faulted]"
		}
		fmt.Printf("  %-12s enabled=%-5v last_run=%s%s\n", ob.Name, ob.Enabled, last, flags)
	}
}
