package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pynosaur/pget/internal/registry"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <app>",
	Short: "List available releases for an app",
	Long:  `List all published release tags for an app with their publish dates, most recent first.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := args[0]

		e, err := newEnv()
		if err != nil {
			fail(err)
		}

		releases, err := e.reg.ListReleases(context.Background(), app)
		if err != nil {
			fail(err)
		}

		if len(releases) == 0 {
			fmt.Printf("%s has no published releases.\n", app)
			return
		}

		fmt.Printf("Available versions (%d total):\n\n", len(releases))
		for _, rel := range releases {
			fmt.Println(formatRelease(rel))
		}
	},
}

// formatRelease renders one release line with its publish date, when the
// registry supplied one.
func formatRelease(rel registry.Release) string {
	if rel.PublishedAt.IsZero() {
		return fmt.Sprintf("  %s", rel.Tag)
	}
	return fmt.Sprintf("  %-15s  %s", rel.Tag, rel.PublishedAt.Format("2006-01-02"))
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}
