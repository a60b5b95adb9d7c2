package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/taskboard/internal/lifecycle"
	"github.com/mschirtzinger/taskboard/internal/types"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	GroupID: "tasks",
	Short:   "Manage projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			projects, err := svc.ListProjects(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, projects)
			}
			if len(projects) == 0 {
				fmt.Println(renderMuted("No projects"))
				return nil
			}
			for _, p := range projects {
				fmt.Printf("%s %-20s %s\n", renderAccent(fmt.Sprintf("%3d", p.ID)), p.Slug, renderMuted(p.Path))
			}
			return nil
		})
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name> <path>",
	Short: "Create a project rooted at a directory",
	Long: `Create a project. Tasks in the project without their own anchor run in
the project's path.

Examples:
  tb project add "Payments API" ~/src/payments
  tb project add Docs ./docs --slug docs --color "#8a2be2"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		in := &types.ProjectInput{
			Name:        args[0],
			Path:        args[1],
			Description: optionalString(flags, "description"),
			Icon:        optionalString(flags, "icon"),
			Color:       optionalString(flags, "color"),
		}
		in.Slug, _ = flags.GetString("slug")

		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			project, err := svc.CreateProject(ctx, in)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, project)
			}
			fmt.Printf("%s Created project %d (%s)\n", renderPass("✓"), project.ID, project.Slug)
			return nil
		})
	},
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		patch := &types.ProjectPatch{
			Slug:        stringPatch[string](flags, "slug"),
			Name:        stringPatch[string](flags, "name"),
			Path:        stringPatch[string](flags, "path"),
			Description: stringPatch[string](flags, "description"),
			Icon:        stringPatch[string](flags, "icon"),
			Color:       stringPatch[string](flags, "color"),
		}

		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			project, err := svc.UpdateProject(ctx, id, patch)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, project)
			}
			fmt.Printf("%s Updated project %d\n", renderPass("✓"), project.ID)
			return nil
		})
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project",
	Long: `Delete a project. Its tasks are detached and stay on the board unless
--cleanup-tasks is given, in which case they are deleted too.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		cleanup, _ := cmd.Flags().GetBool("cleanup-tasks")

		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			result, err := svc.DeleteProject(ctx, id, cleanup)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, result)
			}
			fmt.Printf("%s Deleted project %d", renderPass("✓"), id)
			switch {
			case result.TasksDeleted > 0:
				fmt.Printf(" and %d task(s)", result.TasksDeleted)
			case result.TasksDetached > 0:
				fmt.Printf(", detached %d task(s)", result.TasksDetached)
			}
			fmt.Println()
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{projectAddCmd, projectUpdateCmd} {
		c.Flags().String("slug", "", "url-safe identifier (derived from the name when omitted)")
		c.Flags().String("description", "", "description")
		c.Flags().String("icon", "", "icon")
		c.Flags().String("color", "", "color")
	}
	projectUpdateCmd.Flags().String("name", "", "display name")
	projectUpdateCmd.Flags().String("path", "", "project directory")
	projectDeleteCmd.Flags().Bool("cleanup-tasks", false, "delete the project's tasks instead of detaching them")

	projectCmd.AddCommand(projectListCmd, projectAddCmd, projectUpdateCmd, projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)
}
