package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pynosaur/pget/internal/errmsg"
)

var removeCmd = &cobra.Command{
	Use:   "remove <app>...",
	Short: "Remove installed apps",
	Long: `Remove apps installed by pget. Removing an app that is not
installed is a success no-op.

Examples:
  pget remove yday
  pget remove yday tvsm`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEnv()
		if err != nil {
			fail(err)
		}

		exitCode := ExitSuccess
		for _, app := range args {
			if err := e.manager.Remove(app); err != nil {
				fmt.Fprintln(os.Stderr, errmsg.Format(err))
				exitCode = worstExitCode(exitCode, exitCodeFor(err))
				continue
			}
			fmt.Printf("Removed %s\n", app)
		}

		if exitCode != ExitSuccess {
			exitWithCode(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
