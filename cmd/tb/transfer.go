package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/taskboard/internal/transfer"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "data",
	Short:   "Write every project and task as JSON lines",
	Long: `Write every project and task, archived ones included, as JSON lines.
Projects come first so the file can be imported into an empty board.

Examples:
  tb export > board.jsonl
  tb export -o backup.jsonl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		var w io.Writer = os.Stdout
		output, _ := cmd.Flags().GetString("output")
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}

		result, err := transfer.Export(ctx, db, w)
		if err != nil {
			return err
		}
		if output != "" {
			fmt.Printf("%s Exported %d project(s) and %d task(s) to %s\n",
				renderPass("✓"), result.Projects, result.Tasks, output)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Short:   "Load projects and tasks from a JSON lines export",
	Long: `Load projects and tasks from a file written by tb export. Projects whose
slug already exists are reused. The whole file is checked before anything is
written; one bad line rejects the import. Use - to read stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()
			r = f
		}

		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := transfer.Import(ctx, db, r)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, result)
		}
		fmt.Printf("%s Imported %d task(s); %d project(s) created, %d reused\n",
			renderPass("✓"), result.TasksImported, result.ProjectsCreated, result.ProjectsReused)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	rootCmd.AddCommand(exportCmd, importCmd)
}
