package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pynosaur/pget/internal/errmsg"
	"github.com/pynosaur/pget/internal/installer"
)

var (
	installForce bool
	installBuild bool
)

var installCmd = &cobra.Command{
	Use:   "install <app>...",
	Short: "Install apps from the registry",
	Long: `Install one or more apps from the release registry.
You can pin a version using the @ syntax.

Examples:
  pget install yday
  pget install yday tvsm
  pget install yday@v0.1.0
  pget install --build yday`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEnv()
		if err != nil {
			fail(err)
		}

		// A failure on one app does not stop the rest; the exit code is
		// the worst failure seen.
		exitCode := ExitSuccess
		for _, arg := range args {
			app, version := splitAppVersion(arg)

			rec, err := e.manager.Install(context.Background(), app, installer.Options{
				Force:      installForce,
				FromSource: installBuild,
				Version:    version,
			})
			if err != nil {
				var already *installer.AlreadyInstalledError
				if errors.As(err, &already) {
					// Already satisfied is not a failure.
					fmt.Printf("%s %s is already installed.\n", already.Name, already.Version)
					fmt.Println(already.Suggestion())
					continue
				}
				fmt.Fprintln(os.Stderr, errmsg.Format(err))
				exitCode = worstExitCode(exitCode, exitCodeFor(err))
				continue
			}

			fmt.Printf("Installed %s %s (%s)\n", rec.Name, rec.Version, rec.InstalledVia)
			fmt.Printf("Binary: %s\n", rec.BinaryPath)
		}

		if exitCode == ExitSuccess && !dirInPath(e.cfg.BinDir) {
			fmt.Println("\nTo use installed apps, add this to your shell profile:")
			fmt.Printf("  export PATH=\"%s:$PATH\"\n", e.cfg.BinDir)
		}
		if exitCode != ExitSuccess {
			exitWithCode(exitCode)
		}
	},
}

// dirInPath reports whether dir is already on the user's PATH.
func dirInPath(dir string) bool {
	for _, p := range filepath.SplitList(os.Getenv("PATH")) {
		if p == dir {
			return true
		}
	}
	return false
}

func init() {
	installCmd.Flags().BoolVar(&installForce, "force", false, "Reinstall even if already installed")
	installCmd.Flags().BoolVar(&installBuild, "build", false, "Build from source even if a prebuilt binary exists")
	rootCmd.AddCommand(installCmd)
}
