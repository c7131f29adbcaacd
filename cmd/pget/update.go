package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pynosaur/pget/internal/errmsg"
)

var updateCmd = &cobra.Command{
	Use:   "update <app>...",
	Short: "Update apps to their latest release",
	Long: `Update installed apps to their latest release. Already being at the
latest release is a success, not an error.

Examples:
  pget update yday
  pget update yday tvsm`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEnv()
		if err != nil {
			fail(err)
		}

		exitCode := ExitSuccess
		for _, app := range args {
			rec, updated, err := e.manager.Update(context.Background(), app)
			if err != nil {
				fmt.Fprintln(os.Stderr, errmsg.Format(err))
				exitCode = worstExitCode(exitCode, exitCodeFor(err))
				continue
			}

			if updated {
				fmt.Printf("Updated %s to %s\n", rec.Name, rec.Version)
			} else {
				fmt.Printf("%s is already at the latest version (%s)\n", rec.Name, rec.Version)
			}
		}

		if exitCode != ExitSuccess {
			exitWithCode(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
