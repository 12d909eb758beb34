package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"mybrain/internal/model"
	"mybrain/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "data",
	Short:   "Manage tasks",
	Long: `Create, list, complete, and delete tasks.

Tasks live in the local database immediately. When you are logged in
with remote sync enabled they also push to your account; when the
push fails or you are logged out, the change queues for the next
sync.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Long: `Add a task.

The due date accepts natural language:
  mybrain task add "Water the plants" --due "tomorrow at 9am"
  mybrain task add "File taxes" --due "next friday" --tag home`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		task := &model.Task{Title: strings.Join(args, " ")}
		task.Tags, _ = cmd.Flags().GetStringSlice("tag")

		if due, _ := cmd.Flags().GetString("due"); due != "" {
			at, err := parseDue(due)
			if err != nil {
				fatalf("%v", err)
			}
			task.DueAt = &at
		}

		if err := a.state.AddTask(context.Background(), task); err != nil {
			fatalf("adding task: %v", err)
		}
		fmt.Printf("%s %s\n", ui.Pass("Added"), task.Title)
		if task.DueAt != nil {
			fmt.Printf("  due %s\n", ui.Faint(task.DueAt.Format("Mon Jan 2 15:04")))
		}
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks, newest first.

The query matches titles, or tags when it starts with '#':
  mybrain task list --query milk
  mybrain task list --query '#work'
  mybrain task list --tag home --tag urgent --sort oldest`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		ctx := context.Background()
		if err := a.state.ReloadLocal(ctx); err != nil {
			fatalf("loading tasks: %v", err)
		}

		q := model.Query{Sort: model.SortRecent}
		q.Text, _ = cmd.Flags().GetString("query")
		q.Tags, _ = cmd.Flags().GetStringSlice("tag")
		if sort, _ := cmd.Flags().GetString("sort"); sort == "oldest" {
			q.Sort = model.SortOldest
		}

		tasks := model.FilterTasks(a.state.Tasks(), q)
		if len(tasks) == 0 {
			fmt.Println(ui.Faint("No tasks."))
			return
		}
		showAll, _ := cmd.Flags().GetBool("all")
		for _, t := range tasks {
			if t.Completed && !showAll {
				continue
			}
			printTask(t)
		}
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Toggle a task's completion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		ctx := context.Background()
		if err := a.state.ReloadLocal(ctx); err != nil {
			fatalf("loading tasks: %v", err)
		}
		id, err := resolveTaskID(a, args[0])
		if err != nil {
			fatalf("%v", err)
		}
		if err := a.state.ToggleTask(ctx, id); err != nil {
			fatalf("toggling task: %v", err)
		}
		task, _ := a.state.Task(id)
		if task.Completed {
			fmt.Printf("%s %s\n", ui.Pass("Done"), task.Title)
		} else {
			fmt.Printf("%s %s\n", ui.Warn("Reopened"), task.Title)
		}
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		ctx := context.Background()
		if err := a.state.ReloadLocal(ctx); err != nil {
			fatalf("loading tasks: %v", err)
		}
		id, err := resolveTaskID(a, args[0])
		if err != nil {
			fatalf("%v", err)
		}
		if err := a.state.DeleteTask(ctx, id); err != nil {
			fatalf("deleting task: %v", err)
		}
		fmt.Println(ui.Pass("Deleted"))
	},
}

// resolveTaskID accepts a full id or an unambiguous prefix.
func resolveTaskID(a *app, arg string) (string, error) {
	var match string
	for _, t := range a.state.Tasks() {
		if t.ID == arg {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", arg)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no task matches %q", arg)
	}
	return match, nil
}

func printTask(t model.Task) {
	mark := "[ ]"
	title := t.Title
	if t.Completed {
		mark = "[x]"
		title = ui.Done(title)
	}
	fmt.Printf("%s %s %s", mark, ui.Faint(t.ID[:8]), title)
	for _, tag := range t.Tags {
		fmt.Printf(" %s", ui.Tag(tag))
	}
	if t.DueAt != nil {
		due := t.DueAt.Format("Jan 2 15:04")
		if t.DueAt.Before(time.Now()) && !t.Completed {
			fmt.Printf(" %s", ui.Err("due "+due))
		} else {
			fmt.Printf(" %s", ui.Faint("due "+due))
		}
	}
	fmt.Println()
}

func parseDue(text string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing due date %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand due date %q", text)
	}
	return r.Time, nil
}

func init() {
	taskAddCmd.Flags().String("due", "", "Due date in natural language")
	taskAddCmd.Flags().StringSlice("tag", nil, "Tag the task (repeatable)")

	taskListCmd.Flags().StringP("query", "q", "", "Filter by text, or by tag with '#'")
	taskListCmd.Flags().StringSlice("tag", nil, "Only tasks carrying every given tag")
	taskListCmd.Flags().String("sort", "recent", "Sort order: recent or oldest")
	taskListCmd.Flags().BoolP("all", "a", false, "Include completed tasks")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskDoneCmd, taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}
