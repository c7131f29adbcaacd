package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pynosaur/pget/internal/registry"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search registry apps",
	Long: `List apps known to the registry, optionally filtered by a substring
match on name or description.

Examples:
  pget search
  pget search day`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		query := ""
		if len(args) > 0 {
			query = strings.ToLower(args[0])
		}

		e, err := newEnv()
		if err != nil {
			fail(err)
		}

		apps, err := e.reg.ListApps(context.Background())
		if err != nil {
			fail(err)
		}

		// Installed versions annotate the results. A broken store should
		// not break search, so errors just leave the column empty.
		installed := map[string]string{}
		if records, err := e.store.List(); err == nil {
			for _, rec := range records {
				installed[rec.Name] = rec.Version
			}
		}

		var results []registry.App
		for _, app := range apps {
			if query == "" ||
				strings.Contains(strings.ToLower(app.Name), query) ||
				strings.Contains(strings.ToLower(app.Description), query) {
				results = append(results, app)
			}
		}

		if len(results) == 0 {
			fmt.Printf("No apps found for '%s'.\n", query)
			return
		}

		maxName := 4 // "NAME"
		for _, app := range results {
			if len(app.Name) > maxName {
				maxName = len(app.Name)
			}
		}

		fmt.Printf("%-*s  %-10s  %s\n", maxName, "NAME", "INSTALLED", "DESCRIPTION")
		for _, app := range results {
			ver := installed[app.Name]
			if ver == "" {
				ver = "-"
			}
			fmt.Printf("%-*s  %-10s  %s\n", maxName, app.Name, ver, app.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
