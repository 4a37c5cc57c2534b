// Package cli implements the viewgrid command-line interface.
//
// The commands cover the full lifecycle of a canvas view: laying out raw
// entity data (layout), serving snapshots and the delta stream over HTTP
// (serve), exporting a saved view as DOT or SVG (export), and tailing a
// live delta feed (watch). All commands support --verbose (-v) for
// debug-level logging; loggers travel through context.Context.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/viewgrid/viewgrid/pkg/buildinfo"
)

// appName is the application name used for directories and display.
const appName = "viewgrid"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Viewgrid lays out and serves interactive entity canvases",
		Long:         `Viewgrid is the layout runtime for hierarchical entity canvases: it computes initial layouts, persists view snapshots, merges live graph deltas, and serves both over HTTP.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.completionCommand())

	return root
}
