package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mybrain/internal/dashboard"
	"mybrain/internal/inbox"
	"mybrain/internal/sync"
	"mybrain/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Run continuous sync with inbox watching and the dashboard",
	Long: `Run the long-lived mode: live sync subscriptions, the markdown
inbox watcher, and optionally the WebSocket dashboard.

While serving, edits from other devices stream into the local
database, markdown files dropped into the inbox become notes, and
connected dashboard clients see every sync event:

  mybrain serve
  mybrain serve --dashboard

Connect a WebSocket client to ws://<addr>/ws for the event feed.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var server *dashboard.Server
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		if withDashboard || a.cfg.Dashboard.Enabled {
			server = dashboard.NewServer(dashboard.Config{
				Addr: a.cfg.Dashboard.Addr,
				// Late-bound: the engine is recreated below with the
				// dashboard attached.
				Status: func() sync.Status { return a.engine.Status() },
				Logger: prefixed(a.logger, "[dashboard] "),
			})
			if err := server.Start(); err != nil {
				fatalf("starting dashboard: %v", err)
			}
			defer func() {
				if err := server.Stop(); err != nil {
					fmt.Fprintf(os.Stderr, "Error during dashboard shutdown: %v\n", err)
				}
			}()
			// Recreate the engine with the dashboard attached as its
			// event sink.
			mode := sync.ModePoll
			if a.cfg.Remote.Live {
				mode = sync.ModeLive
			}
			a.engine = sync.New(a.store, a.remote, a.state, a.sessions,
				prefixed(a.logger, "[sync] "), sync.WithMode(mode), sync.WithSink(server))
			fmt.Printf("Dashboard: http://%s/ (ws://%s/ws)\n", server.Addr(), server.Addr())
		}

		watcher, err := inbox.NewWatcher(a.cfg.InboxDir, a.state, prefixed(a.logger, "[inbox] "))
		if err != nil {
			fatalf("%v", err)
		}
		if err := watcher.Start(ctx); err != nil {
			fatalf("starting inbox watcher: %v", err)
		}
		defer watcher.Stop()

		if err := a.state.ReloadLocal(ctx); err != nil {
			fatalf("loading local data: %v", err)
		}
		if a.cfg.Remote.Enabled {
			a.engine.Start(ctx)
		}

		fmt.Printf("Inbox:     %s\n", a.cfg.InboxDir)
		if id := a.sessions.Current(); !id.Anonymous() {
			fmt.Printf("Session:   %s\n", ui.Accent(id.UID))
		} else {
			fmt.Printf("Session:   %s\n", ui.Faint("logged out, local-only"))
		}
		fmt.Println("\nPress Ctrl+C to stop...")

		<-ctx.Done()
		fmt.Println("\nShutting down...")
	},
}

func init() {
	serveCmd.Flags().Bool("dashboard", false, "Also serve the WebSocket dashboard")
	rootCmd.AddCommand(serveCmd)
}
