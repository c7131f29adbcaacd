package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed apps",
	Long:  `List all apps currently installed by pget, oldest install first.`,
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEnv()
		if err != nil {
			fail(err)
		}

		records, err := e.store.List()
		if err != nil {
			fail(err)
		}

		if listJSON {
			out, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				fail(err)
			}
			fmt.Println(string(out))
			return
		}

		if len(records) == 0 {
			fmt.Println("No apps installed.")
			return
		}

		fmt.Printf("Installed apps (%d total):\n\n", len(records))
		for _, rec := range records {
			fmt.Printf("  %-20s  %s\n", rec.Name, rec.Version)
		}
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print records as JSON")
	rootCmd.AddCommand(listCmd)
}
