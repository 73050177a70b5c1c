// Command vectorquery searches a project's semantic code index.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// errReported means the failure was already logged.
var errReported = errors.New("failure already reported")

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile  string
	projectRoot string
	dbPath      string
	backend     string
	logLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "vectorquery",
		Short: "Semantic search over an indexed project",
		Long: `vectorquery answers natural-language queries against a project's vector index.

Examples:
  # Top result for a query in the current project
  vectorquery query "where is the config loaded"

  # Five chunks as JSON for another tool
  vectorquery query -n 5 --include chunk,path --pipe "retry with backoff"

  # Serve the query tool over MCP stdio
  vectorquery serve`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default ~/.config/vectorquery/config.yaml)")
	pf.StringVar(&flags.projectRoot, "project-root", ".", "project root whose collection is queried")
	pf.StringVar(&flags.dbPath, "db-path", "", "index location (SQLite file or chromem directory)")
	pf.StringVar(&flags.backend, "backend", "", "index backend: sqlite or chromem")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newQueryCmd(flags),
		newServeCmd(flags),
		newCollectionsCmd(flags),
		newVersionCmd(),
	)
	return root
}
