package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/taskboard/internal/anchor"
	"github.com/mschirtzinger/taskboard/internal/lifecycle"
)

var anchorCmd = &cobra.Command{
	Use:     "anchor",
	GroupID: "tasks",
	Short:   "Inspect working-directory resolution",
}

var anchorResolveCmd = &cobra.Command{
	Use:   "resolve <task-id>",
	Short: "Print the directory an agent should use for a task",
	Long: `Print the directory an agent should use for a task and the rule that
produced it: the task's own anchor, its project, a tag category default, or
the scratch root. Exits non-zero when nothing applies.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			task, err := svc.GetTask(ctx, id, true)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, map[string]any{
					"id":              task.ID,
					"resolved_anchor": task.ResolvedAnchor,
					"anchor_source":   task.AnchorSource,
				})
			}
			if task.ResolvedAnchor == nil {
				return fmt.Errorf("task %d has no working directory", task.ID)
			}
			fmt.Println(*task.ResolvedAnchor)
			return nil
		})
	},
}

var anchorCheckCmd = &cobra.Command{
	Use:   "check <expression>",
	Short: "Show how a path expression normalizes",
	Long: `Expand ~ and $VAR in a path expression and make it absolute, the same way
task anchors and project paths are resolved.

Examples:
  tb anchor check '~/src/$PROJECT'
  tb anchor check ./relative/dir`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, ok := anchor.NewResolver(cfg.Workspace.Root).Normalize(args[0])
		if !ok {
			return fmt.Errorf("%q does not resolve to an absolute path", args[0])
		}
		fmt.Println(path)
		return nil
	},
}

var anchorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the active anchor configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loadAnchors()
		if err != nil {
			return err
		}
		current := loader.Current()
		if jsonOutput {
			return printJSON(os.Stdout, current)
		}
		fmt.Printf("%s %s\n", renderMuted("file:"), loader.Path())
		fmt.Printf("%s %s\n", renderMuted("scratch root:"), current.ScratchRoot)
		fmt.Printf("%s %t\n", renderMuted("scratch fallback:"), current.AllowScratchFallback)
		fmt.Printf("%s %t\n", renderMuted("scratch per task:"), current.ScratchPerTask)
		for _, category := range slices.Sorted(maps.Keys(current.CategoryDefaults)) {
			fmt.Printf("  %s → %s\n", renderAccent(category), current.CategoryDefaults[category])
		}
		return nil
	},
}

func init() {
	anchorCmd.AddCommand(anchorResolveCmd, anchorCheckCmd, anchorConfigCmd)
	rootCmd.AddCommand(anchorCmd)
}
