package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mybrain/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push queued changes and pull the latest snapshot",
	Long: `Run one sync cycle: drain the pending-change queue, merge local
records into your account, then replace the local tables with the
remote result. Remote records win on conflict; records that only
exist locally survive because they are pushed first.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		if !a.cfg.Remote.Enabled {
			fatalf("remote sync is disabled; set remote.enabled in config")
		}
		if err := a.engine.SyncOnce(context.Background()); err != nil {
			fatalf("sync failed: %v", err)
		}
		fmt.Println(ui.Pass("Synced"))
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state and queue depth",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		ctx := context.Background()
		pending, err := a.engine.PendingCount(ctx)
		if err != nil {
			fatalf("reading queue: %v", err)
		}

		id := a.sessions.Current()
		if id.Anonymous() {
			fmt.Printf("Session:  %s\n", ui.Faint("logged out"))
		} else {
			fmt.Printf("Session:  %s\n", ui.Accent(id.UID))
		}
		if a.cfg.Remote.Enabled {
			fmt.Printf("Remote:   %s\n", a.cfg.Remote.DSN)
		} else {
			fmt.Printf("Remote:   %s\n", ui.Faint("disabled"))
		}
		switch {
		case pending == 0:
			fmt.Printf("Queue:    %s\n", ui.Pass("empty"))
		default:
			fmt.Printf("Queue:    %s\n", ui.Warn(fmt.Sprintf("%d pending changes", pending)))
		}
	},
}

func init() {
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
