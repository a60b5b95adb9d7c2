package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mschirtzinger/taskboard/internal/lifecycle"
	"github.com/mschirtzinger/taskboard/internal/tags"
	"github.com/mschirtzinger/taskboard/internal/types"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "tasks",
	Short:   "List, create and change tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the board",
	Long: `Show tasks as a board with one column per status.

Examples:
  tb task list
  tb task list --project 2 --anchors
  tb task list --assignee-type agent --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := taskFilterFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		anchors, _ := cmd.Flags().GetBool("anchors")

		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			tasks, err := svc.ListTasks(ctx, filter, anchors || jsonOutput)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, tasks)
			}
			fmt.Println(renderBoard(tasks))
			if anchors {
				fmt.Println()
				for _, t := range tasks {
					fmt.Printf("#%-4d %s\n", t.ID, anchorLine(t))
				}
			}
			return nil
		})
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task with its resolved working directory",
	Args:  cobra.ExactArgs(1),
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
				return printJSON(os.Stdout, task)
			}
			printTask(task)
			return nil
		})
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a task",
	Long: `Create a task. The title is required unless --interactive is set.

Due dates accept YYYY-MM-DD or plain language such as "tomorrow" or
"next friday".

Examples:
  tb task add "Fix login redirect" --priority high --tags auth,backend
  tb task add "Write release notes" --due "next friday" --assign-type human --assign-id sam
  tb task add -i`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		in := &types.TaskInput{}
		if len(args) == 1 {
			in.Title = args[0]
		}

		if interactive, _ := flags.GetBool("interactive"); interactive {
			if err := runTaskForm(in); err != nil {
				return err
			}
		}
		if err := applyInputFlags(in, flags, time.Now()); err != nil {
			return err
		}

		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			task, err := svc.CreateTask(ctx, in)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, task)
			}
			fmt.Printf("%s Created task #%d: %s\n", renderPass("✓"), task.ID, task.Title)
			return nil
		})
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a task",
	Long: `Change fields of a task. Only flags that are given are applied; an
empty value clears an optional field.

Examples:
  tb task update 12 --status review
  tb task update 12 --due ""            # clear the due date
  tb task update 12 --project 3 --position 0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		patch, err := patchFromFlags(cmd.Flags(), time.Now())
		if err != nil {
			return err
		}

		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			task, err := svc.UpdateTask(ctx, id, patch)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, task)
			}
			fmt.Printf("%s Updated task #%d\n", renderPass("✓"), task.ID)
			return nil
		})
	},
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <status> <id>...",
	Short: "Move tasks to another column",
	Long: `Move one or more tasks to another column. With --position a single task
is placed at that position; otherwise tasks go to the end of the column.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := types.ParseStatus(args[0])
		if err != nil {
			return err
		}
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		flags := cmd.Flags()

		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			if flags.Changed("position") {
				if len(ids) != 1 {
					return types.NewValidationError("position", "--position needs exactly one task")
				}
				position, _ := flags.GetInt64("position")
				if err := svc.Reorder(ctx, []types.ReorderItem{{ID: ids[0], Status: status, Position: position}}); err != nil {
					return err
				}
				fmt.Printf("%s Moved #%d to %s at %d\n", renderPass("✓"), ids[0], columnTitle(status), position)
				return nil
			}

			n, err := svc.BulkUpdateStatus(ctx, ids, status)
			if err != nil {
				return err
			}
			fmt.Printf("%s Moved %d task(s) to %s\n", renderPass("✓"), n, columnTitle(status))
			return nil
		})
	},
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign <id>...",
	Short: "Assign tasks to an agent or a human, or clear the assignment",
	Long: `Assign tasks in bulk.

Examples:
  tb task assign 4 5 6 --type agent --to coder-1
  tb task assign 4 --clear`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		flags := cmd.Flags()

		var assigneeType *types.AssigneeType
		var assigneeID *string
		if unassign, _ := flags.GetBool("clear"); !unassign {
			raw, _ := flags.GetString("type")
			typ, err := types.ParseAssigneeType(raw)
			if err != nil {
				return err
			}
			to, _ := flags.GetString("to")
			assigneeType = &typ
			if to != "" {
				assigneeID = &to
			}
		}

		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			n, err := svc.BulkAssign(ctx, ids, assigneeType, assigneeID)
			if err != nil {
				return err
			}
			fmt.Printf("%s Updated assignment on %d task(s)\n", renderPass("✓"), n)
			return nil
		})
	},
}

var taskSetProjectCmd = &cobra.Command{
	Use:   "set-project <project-id|none> <id>...",
	Short: "Move tasks into a project, or detach them with none",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var projectID *int64
		if args[0] != "none" {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			projectID = &id
		}
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}

		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			n, err := svc.BulkSetProject(ctx, ids, projectID)
			if err != nil {
				return err
			}
			fmt.Printf("%s Updated project on %d task(s)\n", renderPass("✓"), n)
			return nil
		})
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete tasks permanently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}

		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			if len(ids) == 1 {
				if err := svc.DeleteTask(ctx, ids[0]); err != nil {
					return err
				}
				fmt.Printf("%s Deleted task #%d\n", renderPass("✓"), ids[0])
				return nil
			}
			n, err := svc.BulkDelete(ctx, ids)
			if err != nil {
				return err
			}
			fmt.Printf("%s Deleted %d task(s)\n", renderPass("✓"), n)
			return nil
		})
	},
}

var taskArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Hide a task from the board without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setArchived(cmd, args[0], true)
	},
}

var taskUnarchiveCmd = &cobra.Command{
	Use:   "unarchive <id>",
	Short: "Bring an archived task back to the board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setArchived(cmd, args[0], false)
	},
}

var taskArchiveDoneCmd = &cobra.Command{
	Use:   "archive-done",
	Short: "Archive every finished task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var projectID *int64
		if cmd.Flags().Changed("project") {
			id, _ := cmd.Flags().GetInt64("project")
			projectID = &id
		}
		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			n, err := svc.ArchiveDone(ctx, projectID)
			if err != nil {
				return err
			}
			fmt.Printf("%s Archived %d finished task(s)\n", renderPass("✓"), n)
			return nil
		})
	},
}

func init() {
	listFlags := taskListCmd.Flags()
	listFlags.String("status", "", "only this status")
	listFlags.Int64("project", 0, "only tasks of this project")
	listFlags.String("assignee-type", "", "only tasks assigned to agent or human")
	listFlags.String("assignee", "", "only tasks assigned to this id")
	listFlags.String("context-key", "", "only tasks with this context key")
	listFlags.String("context-type", "", "only tasks with this context type")
	listFlags.Bool("all", false, "include archived tasks")
	listFlags.Bool("anchors", false, "print each task's resolved working directory")

	taskAddCmd.Flags().BoolP("interactive", "i", false, "fill the task in with a form")
	registerFieldFlags(taskAddCmd.Flags())
	registerFieldFlags(taskUpdateCmd.Flags())
	taskUpdateCmd.Flags().String("title", "", "new title")
	taskUpdateCmd.Flags().Bool("agent", false, "clear --non-agent")

	taskMoveCmd.Flags().Int64("position", 0, "position inside the column (single task only)")

	taskAssignCmd.Flags().String("type", "agent", "assignee type: agent or human")
	taskAssignCmd.Flags().String("to", "", "assignee id")
	taskAssignCmd.Flags().Bool("clear", false, "remove the assignment")

	taskArchiveDoneCmd.Flags().Int64("project", 0, "only tasks of this project")

	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskAddCmd, taskUpdateCmd, taskMoveCmd,
		taskAssignCmd, taskSetProjectCmd, taskDeleteCmd, taskArchiveCmd, taskUnarchiveCmd,
		taskArchiveDoneCmd)
	rootCmd.AddCommand(taskCmd)
}

// registerFieldFlags adds the flags shared by add and update.
func registerFieldFlags(flags *pflag.FlagSet) {
	flags.StringP("description", "d", "", "markdown description")
	flags.StringP("status", "s", "", "backlog, in_progress, review or done")
	flags.StringP("priority", "p", "", "low, medium, high or urgent")
	flags.String("due", "", `due date: YYYY-MM-DD or e.g. "next friday"`)
	flags.StringP("tags", "t", "", "comma-separated tags")
	flags.String("blocked-reason", "", "why the task is blocked")
	flags.String("assign-type", "", "agent or human")
	flags.String("assign-id", "", "assignee id")
	flags.Bool("non-agent", false, "never hand this task to an agent")
	flags.String("anchor", "", "working directory; may use ~ and $VAR")
	flags.Int64("position", 0, "position inside the column")
	flags.Int64("project", 0, "project id")
	flags.String("context-key", "", "external context key")
	flags.String("context-type", "", "external context type")
}

func taskFilterFromFlags(flags *pflag.FlagSet) (types.TaskFilter, error) {
	var filter types.TaskFilter
	if raw, _ := flags.GetString("status"); raw != "" {
		status, err := types.ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if raw, _ := flags.GetString("assignee-type"); raw != "" {
		typ, err := types.ParseAssigneeType(raw)
		if err != nil {
			return filter, err
		}
		filter.AssignedToType = typ
	}
	if flags.Changed("project") {
		id, _ := flags.GetInt64("project")
		filter.ProjectID = &id
	}
	filter.AssignedToID, _ = flags.GetString("assignee")
	filter.ContextKey, _ = flags.GetString("context-key")
	filter.ContextType, _ = flags.GetString("context-type")
	filter.IncludeArchived, _ = flags.GetBool("all")
	return filter, nil
}

func optionalString(flags *pflag.FlagSet, name string) *string {
	if !flags.Changed(name) {
		return nil
	}
	s, _ := flags.GetString(name)
	return &s
}

// applyInputFlags copies the changed flags onto in. Values from the form
// are kept unless a flag overrides them.
func applyInputFlags(in *types.TaskInput, flags *pflag.FlagSet, now time.Time) error {
	if s := optionalString(flags, "description"); s != nil {
		in.Description = s
	}
	if s := optionalString(flags, "status"); s != nil {
		in.Status = types.Status(*s)
	}
	if s := optionalString(flags, "priority"); s != nil {
		p := types.Priority(*s)
		in.Priority = &p
	}
	if s := optionalString(flags, "due"); s != nil {
		due, err := parseDue(*s, now)
		if err != nil {
			return err
		}
		if due != "" {
			in.DueDate = &due
		}
	}
	if s := optionalString(flags, "tags"); s != nil {
		raw, err := json.Marshal(tags.FromString(*s))
		if err != nil {
			return err
		}
		in.Tags = raw
	}
	if s := optionalString(flags, "blocked-reason"); s != nil {
		in.BlockedReason = s
	}
	if s := optionalString(flags, "assign-type"); s != nil {
		a := types.AssigneeType(*s)
		in.AssignedToType = &a
	}
	if s := optionalString(flags, "assign-id"); s != nil {
		in.AssignedToID = s
	}
	if s := optionalString(flags, "anchor"); s != nil {
		in.Anchor = s
	}
	if s := optionalString(flags, "context-key"); s != nil {
		in.ContextKey = s
	}
	if s := optionalString(flags, "context-type"); s != nil {
		in.ContextType = s
	}
	if flags.Changed("non-agent") {
		in.NonAgent, _ = flags.GetBool("non-agent")
	}
	if flags.Changed("position") {
		p, _ := flags.GetInt64("position")
		in.Position = &p
	}
	if flags.Changed("project") {
		p, _ := flags.GetInt64("project")
		in.ProjectID = &p
	}
	return nil
}

// stringPatch maps a changed string flag onto a patch field; "" means null.
func stringPatch[T ~string](flags *pflag.FlagSet, name string) types.Optional[T] {
	s := optionalString(flags, name)
	switch {
	case s == nil:
		return types.Optional[T]{}
	case *s == "":
		return types.Null[T]()
	default:
		return types.Some(T(*s))
	}
}

func patchFromFlags(flags *pflag.FlagSet, now time.Time) (*types.TaskPatch, error) {
	patch := &types.TaskPatch{
		Title:          stringPatch[string](flags, "title"),
		Description:    stringPatch[string](flags, "description"),
		Status:         stringPatch[types.Status](flags, "status"),
		Priority:       stringPatch[types.Priority](flags, "priority"),
		BlockedReason:  stringPatch[string](flags, "blocked-reason"),
		AssignedToType: stringPatch[types.AssigneeType](flags, "assign-type"),
		AssignedToID:   stringPatch[string](flags, "assign-id"),
		Anchor:         stringPatch[string](flags, "anchor"),
		ContextKey:     stringPatch[string](flags, "context-key"),
		ContextType:    stringPatch[string](flags, "context-type"),
	}

	if s := optionalString(flags, "due"); s != nil {
		due, err := parseDue(*s, now)
		if err != nil {
			return nil, err
		}
		if due == "" {
			patch.DueDate = types.Null[string]()
		} else {
			patch.DueDate = types.Some(due)
		}
	}
	if s := optionalString(flags, "tags"); s != nil {
		raw, err := json.Marshal(tags.FromString(*s))
		if err != nil {
			return nil, err
		}
		patch.Tags = types.Some(json.RawMessage(raw))
	}
	if flags.Changed("non-agent") {
		v, _ := flags.GetBool("non-agent")
		patch.NonAgent = types.Some(v)
	}
	if flags.Changed("agent") {
		patch.NonAgent = types.Some(false)
	}
	if flags.Changed("position") {
		p, _ := flags.GetInt64("position")
		patch.Position = types.Some(p)
	}
	if flags.Changed("project") {
		p, _ := flags.GetInt64("project")
		if p == 0 {
			patch.ProjectID = types.Null[int64]()
		} else {
			patch.ProjectID = types.Some(p)
		}
	}
	return patch, nil
}

// runTaskForm asks for the common fields interactively.
func runTaskForm(in *types.TaskInput) error {
	var description, due, tagList string
	status := string(types.StatusBacklog)
	priority := string(types.PriorityMedium)

	statusOptions := make([]huh.Option[string], 0, len(types.Statuses))
	for _, s := range types.Statuses {
		statusOptions = append(statusOptions, huh.NewOption(columnTitle(s), string(s)))
	}
	priorityOptions := make([]huh.Option[string], 0, len(types.Priorities))
	for _, p := range types.Priorities {
		priorityOptions = append(priorityOptions, huh.NewOption(titleCaser.String(string(p)), string(p)))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&in.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("title is required")
					}
					return nil
				}),
			huh.NewText().
				Title("Description (optional)").
				Description("Markdown is rendered by tb task show").
				Value(&description),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Status").
				Options(statusOptions...).
				Value(&status),
			huh.NewSelect[string]().
				Title("Priority").
				Options(priorityOptions...).
				Value(&priority),
			huh.NewInput().
				Title("Due (optional)").
				Description(`YYYY-MM-DD or e.g. "next friday"`).
				Validate(func(s string) error {
					_, err := parseDue(s, time.Now())
					return err
				}).
				Value(&due),
			huh.NewInput().
				Title("Tags (optional)").
				Description("Comma-separated").
				Value(&tagList),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("form canceled: %w", err)
	}

	in.Status = types.Status(status)
	p := types.Priority(priority)
	in.Priority = &p
	if strings.TrimSpace(description) != "" {
		in.Description = &description
	}
	if d, _ := parseDue(due, time.Now()); d != "" {
		in.DueDate = &d
	}
	if list := tags.FromString(tagList); len(list) > 0 {
		raw, err := json.Marshal(list)
		if err != nil {
			return err
		}
		in.Tags = raw
	}
	return nil
}

func setArchived(cmd *cobra.Command, arg string, archived bool) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
		var task *types.Task
		if archived {
			task, err = svc.ArchiveTask(ctx, id)
		} else {
			task, err = svc.UnarchiveTask(ctx, id)
		}
		if err != nil {
			return err
		}
		verb := "Archived"
		if !archived {
			verb = "Unarchived"
		}
		fmt.Printf("%s %s task #%d\n", renderPass("✓"), verb, task.ID)
		return nil
	})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, types.NewValidationError("id", "invalid id %q", raw)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func anchorLine(t *types.Task) string {
	if t.ResolvedAnchor == nil {
		if t.NonAgent {
			return renderMuted("(non-agent)")
		}
		return renderWarn("(unresolved)")
	}
	if t.AnchorSource == nil {
		return *t.ResolvedAnchor
	}
	return fmt.Sprintf("%s %s", *t.ResolvedAnchor, renderMuted("["+string(*t.AnchorSource)+"]"))
}

func printTask(t *types.Task) {
	fmt.Printf("%s %s\n", renderAccent(fmt.Sprintf("#%d", t.ID)), styleBold.Render(t.Title))
	fmt.Printf("  Status:    %s\n", columnTitle(t.Status))
	if t.Priority != nil {
		fmt.Printf("  Priority:  %s\n", priorityStyle(t.Priority).Render(string(*t.Priority)))
	}
	if t.DueDate != nil {
		fmt.Printf("  Due:       %s\n", *t.DueDate)
	}
	if len(t.Tags) > 0 {
		fmt.Printf("  Tags:      %s\n", strings.Join(t.Tags, ", "))
	}
	if t.AssignedToType != nil {
		who := string(*t.AssignedToType)
		if t.AssignedToID != nil {
			who += " " + *t.AssignedToID
		}
		fmt.Printf("  Assigned:  %s\n", who)
	}
	if t.ProjectID != nil {
		fmt.Printf("  Project:   %d\n", *t.ProjectID)
	}
	if t.BlockedReason != nil {
		fmt.Printf("  Blocked:   %s\n", renderWarn(*t.BlockedReason))
	}
	fmt.Printf("  Directory: %s\n", anchorLine(t))
	fmt.Printf("  Created:   %s\n", t.CreatedAt.Local().Format(time.DateTime))
	if t.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", t.CompletedAt.Local().Format(time.DateTime))
	}
	if t.ArchivedAt != nil {
		fmt.Printf("  Archived:  %s\n", t.ArchivedAt.Local().Format(time.DateTime))
	}
	if t.Description != nil && strings.TrimSpace(*t.Description) != "" {
		fmt.Println()
		fmt.Print(renderMarkdown(*t.Description))
	}
}
