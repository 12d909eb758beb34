package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mybrain/internal/config"
	"mybrain/internal/pomodoro"
	"mybrain/internal/ui"
)

var pomoCmd = &cobra.Command{
	Use:     "pomo",
	GroupID: "extras",
	Short:   "Work/break focus timer",
	Long: `A pomodoro timer that survives restarts.

The timer stores the absolute end time of the current phase, so the
countdown stays correct no matter how long the process is away:

  mybrain pomo start
  mybrain pomo status
  mybrain pomo pause`,
}

func loadTimer() (*pomodoro.Timer, string) {
	cfg, err := config.Load()
	if err != nil {
		fatalf("%v", err)
	}
	timer, err := pomodoro.Load(cfg.TimerPath, pomodoro.Config{
		Work:        cfg.Pomodoro.Work,
		Break:       cfg.Pomodoro.Break,
		AutoAdvance: cfg.Pomodoro.AutoAdvance,
	})
	if err != nil {
		fatalf("%v", err)
	}
	return timer, cfg.TimerPath
}

func saveTimer(timer *pomodoro.Timer, path string) {
	if err := timer.Save(path); err != nil {
		fatalf("%v", err)
	}
}

var pomoStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start or resume the countdown",
	Run: func(cmd *cobra.Command, args []string) {
		timer, path := loadTimer()
		timer.Start()
		saveTimer(timer, path)
		printTimer(timer)
	},
}

var pomoPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the countdown",
	Run: func(cmd *cobra.Command, args []string) {
		timer, path := loadTimer()
		timer.Pause()
		saveTimer(timer, path)
		printTimer(timer)
	},
}

var pomoSkipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Skip to the next phase",
	Run: func(cmd *cobra.Command, args []string) {
		timer, path := loadTimer()
		timer.Skip()
		saveTimer(timer, path)
		printTimer(timer)
	},
}

var pomoResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset to a fresh work phase",
	Run: func(cmd *cobra.Command, args []string) {
		timer, path := loadTimer()
		timer.Reset()
		saveTimer(timer, path)
		printTimer(timer)
	},
}

var pomoStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current phase and remaining time",
	Run: func(cmd *cobra.Command, args []string) {
		timer, path := loadTimer()
		// Reading may roll the timer over a phase boundary; persist
		// that.
		printTimer(timer)
		saveTimer(timer, path)
	},
}

func printTimer(t *pomodoro.Timer) {
	phase := string(t.Phase())
	remaining := t.Remaining().Round(time.Second)

	label := ui.Accent(phase)
	if t.Phase() == pomodoro.PhaseBreak {
		label = ui.Pass(phase)
	}
	running := ui.Faint("paused")
	if t.Running() {
		running = ui.Pass("running")
	}
	fmt.Printf("%s  %s  %s\n", label, remaining, running)
	if n := t.Completed(); n > 0 {
		fmt.Println(ui.Faint(fmt.Sprintf("%d work phases completed", n)))
	}
}

func init() {
	pomoCmd.AddCommand(pomoStartCmd, pomoPauseCmd, pomoSkipCmd, pomoResetCmd, pomoStatusCmd)
	rootCmd.AddCommand(pomoCmd)
}
