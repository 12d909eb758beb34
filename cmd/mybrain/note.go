package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mybrain/internal/model"
	"mybrain/internal/ui"
)

var noteCmd = &cobra.Command{
	Use:     "note",
	GroupID: "data",
	Short:   "Manage notes",
	Long: `Create, list, and delete notes.

Notes can nest under a parent note to form an outline, and carry tags
just like tasks. For bulk capture, drop markdown files into the inbox
directory while 'mybrain serve' is running.`,
}

var noteAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a note",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		ctx := context.Background()
		note := &model.Note{Title: strings.Join(args, " ")}
		note.Content, _ = cmd.Flags().GetString("content")
		note.Tags, _ = cmd.Flags().GetStringSlice("tag")

		if parent, _ := cmd.Flags().GetString("parent"); parent != "" {
			if err := a.state.ReloadLocal(ctx); err != nil {
				fatalf("loading notes: %v", err)
			}
			parentID, err := resolveNoteID(a, parent)
			if err != nil {
				fatalf("%v", err)
			}
			note.ParentID = &parentID
		}

		if err := a.state.AddNote(ctx, note); err != nil {
			fatalf("adding note: %v", err)
		}
		fmt.Printf("%s %s\n", ui.Pass("Added"), note.Title)
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	Long: `List notes, newest first.

The query matches titles and content, or tags when it starts
with '#'.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		ctx := context.Background()
		if err := a.state.ReloadLocal(ctx); err != nil {
			fatalf("loading notes: %v", err)
		}

		q := model.Query{Sort: model.SortRecent}
		q.Text, _ = cmd.Flags().GetString("query")
		q.Tags, _ = cmd.Flags().GetStringSlice("tag")

		notes := model.FilterNotes(a.state.Notes(), q)
		if len(notes) == 0 {
			fmt.Println(ui.Faint("No notes."))
			return
		}
		for _, n := range notes {
			printNote(n)
		}
	},
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a note's full content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		if err := a.state.ReloadLocal(context.Background()); err != nil {
			fatalf("loading notes: %v", err)
		}
		id, err := resolveNoteID(a, args[0])
		if err != nil {
			fatalf("%v", err)
		}
		note, _ := a.state.Note(id)

		fmt.Println(ui.Accent(note.Title))
		if len(note.Tags) > 0 {
			for _, tag := range note.Tags {
				fmt.Printf("%s ", ui.Tag(tag))
			}
			fmt.Println()
		}
		if note.Content != "" {
			fmt.Println()
			fmt.Println(note.Content)
		}
		fmt.Println()
		fmt.Println(ui.Faint("updated " + note.UpdatedAt.Format("Mon Jan 2 15:04")))
	},
}

var noteRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		ctx := context.Background()
		if err := a.state.ReloadLocal(ctx); err != nil {
			fatalf("loading notes: %v", err)
		}
		id, err := resolveNoteID(a, args[0])
		if err != nil {
			fatalf("%v", err)
		}
		if err := a.state.DeleteNote(ctx, id); err != nil {
			fatalf("deleting note: %v", err)
		}
		fmt.Println(ui.Pass("Deleted"))
	},
}

func resolveNoteID(a *app, arg string) (string, error) {
	var match string
	for _, n := range a.state.Notes() {
		if n.ID == arg {
			return n.ID, nil
		}
		if strings.HasPrefix(n.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", arg)
			}
			match = n.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no note matches %q", arg)
	}
	return match, nil
}

func printNote(n model.Note) {
	indent := ""
	if n.ParentID != nil {
		indent = "  "
	}
	fmt.Printf("%s%s %s", indent, ui.Faint(n.ID[:8]), n.Title)
	for _, tag := range n.Tags {
		fmt.Printf(" %s", ui.Tag(tag))
	}
	if n.Content != "" {
		preview := n.Content
		if i := strings.IndexByte(preview, '\n'); i >= 0 {
			preview = preview[:i]
		}
		if len(preview) > 60 {
			preview = preview[:60] + "…"
		}
		fmt.Printf("  %s", ui.Faint(preview))
	}
	fmt.Println()
}

func init() {
	noteAddCmd.Flags().StringP("content", "c", "", "Note body")
	noteAddCmd.Flags().StringSlice("tag", nil, "Tag the note (repeatable)")
	noteAddCmd.Flags().String("parent", "", "Parent note id for nesting")

	noteListCmd.Flags().StringP("query", "q", "", "Filter by text, or by tag with '#'")
	noteListCmd.Flags().StringSlice("tag", nil, "Only notes carrying every given tag")

	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteShowCmd, noteRmCmd)
	rootCmd.AddCommand(noteCmd)
}
