package main

import (
	"context"
	"os"

	"github.com/evanw/packcore/internal/exitcode"
	"github.com/spf13/cobra"
)

// Set with "-ldflags '-X main.version=...'" when building a release
var version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "packcore",
		Short: "Build JavaScript module graphs into chunk files",
		Long: `packcore builds the module graph described by a manifest into one
bootstrap file per entry point, removes unused exports, and writes only
the files that changed since the last build.

Examples:
  # Build with packcore.yaml from the current directory
  packcore build

  # Build one entry point into ./out
  packcore build --manifest graph.yaml --entry main=./src/index.js --outdir out`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBuildCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		exitcode.Exit(err)
	}
}
