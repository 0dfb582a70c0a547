package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"

	"github.com/cube2222/cursorql/graph"
	"github.com/cube2222/cursorql/physical"
)

var (
	explainGraph bool
	explainOpen  bool
)

var explainCmd = &cobra.Command{
	Use:   "explain <plan file>",
	Short: "Describe the materialized operator tree of a plan.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := physical.ReadPlan(args[0])
		if err != nil {
			return err
		}
		env := physical.Environment{Pipeline: cfg.Execution.Pipeline}

		var visualizer graph.Visualizer
		if plan.Root.IsUpdate() {
			visualizer, err = plan.Root.MaterializeUpdate(cmd.Context(), env)
		} else {
			visualizer, err = plan.Root.Materialize(cmd.Context(), env)
		}
		if err != nil {
			return errors.Wrap(err, "couldn't materialize plan")
		}

		if explainOpen {
			return openGraph(visualizer)
		}
		if !explainGraph {
			fmt.Fprint(cmd.OutOrStdout(), graph.Describe(visualizer.Visualize()))
			return nil
		}
		g, err := graph.Show(visualizer.Visualize())
		if err != nil {
			return errors.Wrap(err, "couldn't build graph")
		}
		fmt.Fprintln(cmd.OutOrStdout(), g.String())
		return nil
	},
}

func init() {
	explainCmd.Flags().BoolVar(&explainGraph, "graph", false, "Print the plan as a graphviz dot graph.")
	explainCmd.Flags().BoolVar(&explainOpen, "open", false, "Render the plan graph with dot and open it.")
	rootCmd.AddCommand(explainCmd)
}

// openGraph renders the plan with graphviz and opens the resulting image.
func openGraph(visualizer graph.Visualizer) error {
	g, err := graph.Show(visualizer.Visualize())
	if err != nil {
		return errors.Wrap(err, "couldn't build graph")
	}
	file, err := os.CreateTemp(os.TempDir(), "cursorql-explain-*.png")
	if err != nil {
		return errors.Wrap(err, "couldn't create temporary file")
	}
	dot := exec.Command("dot", "-Tpng")
	dot.Stdin = strings.NewReader(g.String())
	dot.Stdout = file
	dot.Stderr = os.Stderr
	if err := dot.Run(); err != nil {
		file.Close()
		return errors.Wrap(err, "couldn't render graph")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "couldn't close temporary file")
	}
	if err := open.Start(file.Name()); err != nil {
		return errors.Wrap(err, "couldn't open graph")
	}
	return nil
}
