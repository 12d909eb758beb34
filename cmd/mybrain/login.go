package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mybrain/internal/sync"
	"mybrain/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:     "login [token]",
	GroupID: "sync",
	Short:   "Log in and merge local data into your account",
	Long: `Log in with a session token.

Pass the token as an argument or pipe it on stdin. On login every
record and queued change accumulated while logged out merges into
your account, keyed by its local id, so repeating a merge never
duplicates anything.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		if !a.cfg.Remote.Enabled {
			fatalf("remote sync is disabled; set remote.enabled in config")
		}

		token := ""
		if len(args) == 1 {
			token = args[0]
		} else {
			fmt.Fprint(os.Stderr, "Token: ")
			scanner := bufio.NewScanner(os.Stdin)
			if scanner.Scan() {
				token = strings.TrimSpace(scanner.Text())
			}
		}
		if token == "" {
			fatalf("no token given")
		}

		// Start the engine first so the login transition runs the
		// merge synchronously.
		a.engine.Start(context.Background())
		if err := a.sessions.SetToken(token); err != nil {
			fatalf("%v", err)
		}

		if err := saveToken(a.cfg.TokenPath, token); err != nil {
			fatalf("%v", err)
		}

		uid := a.sessions.Current().UID
		fmt.Printf("%s as %s\n", ui.Pass("Logged in"), ui.Accent(uid))
		if a.engine.Status() != sync.StatusSubscribed {
			fmt.Println(ui.Warn("Merge incomplete; run 'mybrain sync' to retry."))
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "sync",
	Short:   "Log out, keeping local data",
	Long: `Log out of your account.

Your data stays in the local database and keeps working offline.
Edits made from now on queue up for your next login.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		a.sessions.Clear()
		if err := os.Remove(a.cfg.TokenPath); err != nil && !os.IsNotExist(err) {
			fatalf("removing saved token: %v", err)
		}
		fmt.Println(ui.Pass("Logged out"))
	},
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
