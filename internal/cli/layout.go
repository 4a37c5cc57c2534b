package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/viewgrid/viewgrid/pkg/layout"
	"github.com/viewgrid/viewgrid/pkg/runtime"
	"github.com/viewgrid/viewgrid/pkg/snapshot"
)

// layoutInput is the JSON document the layout command consumes: the raw
// entity and relationship data a view is built from.
type layoutInput struct {
	Entities      []layout.Entity       `json:"entities"`
	Relationships []layout.Relationship `json:"relationships"`
}

// layoutCommand creates the layout command: run a layout engine over raw
// entity data and write the resulting snapshot.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		engineTag string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "layout [file]",
		Short: "Compute an initial layout and write a view snapshot",
		Long: `Layout reads a JSON file of entities and relationships, runs the chosen
layout engine over it, and writes the positioned view as a snapshot JSON
file. The snapshot can then be served, exported, or loaded by a client
without ever re-running layout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(cmd, args[0], engineTag, output)
		},
	}

	cmd.Flags().StringVarP(&engineTag, "engine", "e", string(layout.KindContainment), "layout engine: containment, flat, or force")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output snapshot file (default: input with .snapshot.json)")

	return cmd
}

func runLayout(cmd *cobra.Command, input, engineTag, output string) error {
	logger := loggerFromContext(cmd.Context())

	kind, err := layout.ParseKind(engineTag)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var in layoutInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse input %s: %w", input, err)
	}
	logger.Infof("Loaded %d entities, %d relationships", len(in.Entities), len(in.Relationships))

	prog := newProgress(logger)
	rt := runtime.New(runtime.Config{Engine: kind, Logger: logger})
	if err := rt.LoadInitial(in.Entities, in.Relationships); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Laid out %d entities with %s engine", len(in.Entities), kind))

	snap := snapshot.Capture(rt.Graph())

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".snapshot.json"
	}
	if err := os.WriteFile(output, out, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	printSuccess("Wrote snapshot")
	printFile(output)
	return nil
}
