package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/taskboard/internal/store"
	"github.com/mschirtzinger/taskboard/internal/types"
)

var dbCmd = &cobra.Command{
	Use:     "db",
	GroupID: "data",
	Short:   "Database maintenance",
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database location, schema version and task counts",
	Long: `Display the current state of the task database.

Shows:
  - Database location and size (local files only)
  - Applied and expected schema version
  - Task counts per column`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := db.AppliedVersion(ctx)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		stats, err := db.Tasks().Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to count tasks: %w", err)
		}

		if jsonOutput {
			return printJSON(os.Stdout, map[string]any{
				"path":           db.Path(),
				"schema_version": applied,
				"stats":          stats,
			})
		}

		fmt.Printf("\n%s Task Database\n\n", renderAccent("▣"))
		fmt.Printf("Location: %s\n", db.Path())
		if info, err := os.Stat(db.Path()); err == nil {
			fmt.Printf("Size: %s\n", formatSize(info.Size()))
			fmt.Printf("Modified: %s\n", info.ModTime().Format(time.DateTime))
		}
		schema := fmt.Sprintf("%d", applied)
		if want := store.SchemaVersion(); applied != want {
			schema = renderWarn(fmt.Sprintf("%d (expected %d)", applied, want))
		}
		fmt.Printf("Schema: %s\n", schema)
		fmt.Printf("Tasks: %d (%d archived)\n", stats.Total, stats.Archived)
		for _, status := range types.Statuses {
			fmt.Printf("  %-12s %d\n", columnTitle(status), stats.ByStatus[status])
		}
		fmt.Println()
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbStatusCmd)
	rootCmd.AddCommand(dbCmd)
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	}
	return fmt.Sprintf("%d bytes", size)
}
