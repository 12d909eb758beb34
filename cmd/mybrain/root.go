package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"mybrain/internal/config"
	"mybrain/internal/localstore"
	"mybrain/internal/remote"
	"mybrain/internal/session"
	"mybrain/internal/state"
	"mybrain/internal/sync"
)

var rootCmd = &cobra.Command{
	Use:   "mybrain",
	Short: "Offline-first tasks, notes, and focus timer",
	Long: `mybrain keeps your tasks and notes in a local SQLite database and
optionally syncs them to a CouchDB server when you log in.

Everything works offline. Edits made while logged out queue up and
merge into your account on the next login, keyed by their local ids,
so nothing is lost or duplicated.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Tasks and notes:"},
		&cobra.Group{ID: "sync", Title: "Account and sync:"},
		&cobra.Group{ID: "extras", Title: "Extras:"},
	)
}

// app bundles everything a command needs, wired from config.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    *localstore.Store
	remote   remote.Store
	sessions *session.Manager
	state    *state.State
	engine   *sync.Engine
}

// openApp loads config and opens the local store. If remote sync is
// enabled and a saved session token exists, the remote store and
// session come up too, but the engine is not started; commands that
// want continuous sync call engine.Start themselves.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	store, err := localstore.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: store}
	a.sessions = session.NewManager([]byte(cfg.Auth.Secret), prefixed(logger, "[session] "))

	if cfg.Remote.Enabled {
		couch, err := remote.NewCouch(cfg.Remote.DSN, prefixed(logger, "[remote] "))
		if err != nil {
			store.Close()
			return nil, err
		}
		a.remote = couch
	}

	a.state = state.New(store, a.remote, a.sessions, prefixed(logger, "[state] "),
		state.WithDraftDebounce(cfg.DraftDebounce))
	mode := sync.ModePoll
	if cfg.Remote.Live {
		mode = sync.ModeLive
	}
	a.engine = sync.New(store, a.remote, a.state, a.sessions, prefixed(logger, "[sync] "), sync.WithMode(mode))

	a.restoreSession()
	return a, nil
}

// restoreSession loads the saved token, if any. An invalid or expired
// token just means starting logged out.
func (a *app) restoreSession() {
	data, err := os.ReadFile(a.cfg.TokenPath)
	if err != nil {
		return
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return
	}
	if err := a.sessions.SetToken(token); err != nil {
		a.logger.Printf("saved session token rejected: %v", err)
	}
}

func (a *app) close() {
	a.state.Close()
	a.engine.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Printf("closing store: %v", err)
	}
}

func newLogger(cfg *config.Config) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		})
	}
	return log.New(w, "", log.LstdFlags)
}

func prefixed(base *log.Logger, prefix string) *log.Logger {
	return log.New(base.Writer(), prefix, base.Flags())
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
