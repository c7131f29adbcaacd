package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the current version of pget
var Version = "0.2.0"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "pget",
	Short: "A package manager for standalone executables",
	Long: `pget installs standalone command-line executables from the pynosaur
release registry.

Apps are installed into ~/.pget/bin with their metadata and documentation
kept under ~/.pget/helpers. Set PGET_HOME to use a different root.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Print diagnostic detail to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitWithCode(ExitGeneral)
	}
}
