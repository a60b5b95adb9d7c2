package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/taskboard/internal/lifecycle"
)

var tagsCmd = &cobra.Command{
	Use:     "tags",
	GroupID: "tasks",
	Short:   "List every tag ever used",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *lifecycle.Service) error {
			list, err := svc.ListTags(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, list)
			}
			for _, tag := range list {
				fmt.Println(tag)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}
