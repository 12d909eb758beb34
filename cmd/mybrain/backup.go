package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mybrain/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export <file>",
	GroupID: "extras",
	Short:   "Export tasks and notes to a JSONL file",
	Long: `Write every task and note to a JSON Lines file, one record per
line. The file restores with 'mybrain import' and is stable enough to
keep in version control.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		if err := a.store.Export(context.Background(), args[0]); err != nil {
			fatalf("export failed: %v", err)
		}
		fmt.Printf("%s to %s\n", ui.Pass("Exported"), args[0])
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "extras",
	Short:   "Restore tasks and notes from a JSONL export",
	Long: `Load records from a JSON Lines export. Records merge by id, so
importing the same file twice changes nothing.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		n, err := a.store.Restore(context.Background(), args[0])
		if err != nil {
			fatalf("import failed: %v", err)
		}
		fmt.Printf("%s %d records from %s\n", ui.Pass("Imported"), n, args[0])
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}
