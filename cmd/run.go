package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gosuri/uilive"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/execution"
	"github.com/cube2222/cursorql/output"
	"github.com/cube2222/cursorql/output/csv"
	"github.com/cube2222/cursorql/output/json"
	"github.com/cube2222/cursorql/output/table"
	"github.com/cube2222/cursorql/physical"
)

var (
	outputFormat string
	rowLines     bool
	progress     bool
)

var runCmd = &cobra.Command{
	Use:   "run <plan file>",
	Short: "Run a plan once for every top level frame.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (outErr error) {
		ctx := cmd.Context()

		plan, err := physical.ReadPlan(args[0])
		if err != nil {
			return err
		}
		params, err := parseParams(paramFlags)
		if err != nil {
			return err
		}
		frames, err := plan.Bindings(params)
		if err != nil {
			return errors.Wrap(err, "couldn't create top level frames")
		}

		catalog, err := cfg.Catalog()
		if err != nil {
			return errors.Wrap(err, "invalid table catalog")
		}
		store, err := openStorage(cfg.Storage, catalog, logrus.NewEntry(logrus.StandardLogger()))
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil && outErr == nil {
				outErr = errors.Wrap(err, "couldn't close storage")
			}
		}()

		qc := execution.NewQueryContext(ctx,
			execution.WithStorageAdapter(store),
			execution.WithConstraintChecker(catalog),
		)
		qc.Log.WithField("plan", args[0]).WithField("frames", len(frames)).Info("starting query")

		env := physical.Environment{Pipeline: cfg.Execution.Pipeline}
		if plan.Root.IsUpdate() {
			update, err := plan.Root.MaterializeUpdate(ctx, env)
			if err != nil {
				return errors.Wrap(err, "couldn't materialize plan")
			}
			var progressWriter io.Writer
			if progress {
				live := uilive.New()
				live.Out = cmd.ErrOrStderr()
				live.Start()
				defer live.Stop()
				progressWriter = live
			}
			results, err := runUpdate(qc, update, frames, progressWriter)
			if err != nil {
				return err
			}
			printUpdateResults(cmd.OutOrStdout(), results)
			return nil
		}

		op, err := plan.Root.Materialize(ctx, env)
		if err != nil {
			return errors.Wrap(err, "couldn't materialize plan")
		}
		out, err := newOutput(outputFormat, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := runQuery(qc, op, frames, out); err != nil {
			return err
		}
		return out.Close()
	},
}

func newOutput(format string, w io.Writer) (output.Output, error) {
	switch format {
	case "table":
		return table.NewOutput(w, rowLines), nil
	case "json":
		return json.NewOutput(w), nil
	case "csv":
		return csv.NewOutput(',', w), nil
	default:
		return nil, errors.Errorf("unknown output format %q, expected one of table, json, csv", format)
	}
}

// runQuery runs the operator for all frames with a single cursor, writing rows tagged with their frame index.
func runQuery(qc *execution.QueryContext, op execution.Operator, frames []*cursorql.Bindings, out output.Output) error {
	index := make(map[*cursorql.Bindings]int, len(frames))
	for i := range frames {
		index[frames[i]] = i
	}
	rows := 0
	err := execution.ExecuteEach(qc, op, execution.NewMultipleBindingsCursor(frames...), func(frame *cursorql.Bindings, row cursorql.Row) error {
		rows++
		return out.WriteRow(index[frame], row)
	})
	if err != nil {
		return errors.Wrap(err, "couldn't execute query")
	}
	qc.Log.WithField("rows", rows).Info("query finished")
	return nil
}

// runUpdate runs the update once per frame. Progress is reported to the given writer, if any.
func runUpdate(qc *execution.QueryContext, update execution.UpdatePlannable, frames []*cursorql.Bindings, progress io.Writer) ([]execution.UpdateResult, error) {
	results := make([]execution.UpdateResult, len(frames))
	modified := 0
	for i, frame := range frames {
		result, err := update.Run(qc, frame)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't execute update for frame %d", i)
		}
		results[i] = result
		modified += result.RowsModified()
		if progress != nil {
			fmt.Fprintf(progress, "frame %d/%d done, %d rows modified\n", i+1, len(frames), modified)
		}
		qc.Log.WithField("frame", i).WithField("result", result.String()).Info("update finished")
	}
	return results, nil
}

func printUpdateResults(w io.Writer, results []execution.UpdateResult) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"frame", "rows seen", "rows modified"})
	t.SetAutoFormatHeaders(false)
	for i, result := range results {
		t.Append([]string{strconv.Itoa(i), strconv.Itoa(result.RowsSeen()), strconv.Itoa(result.RowsModified())})
	}
	t.Render()
}

func init() {
	runCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json or csv.")
	runCmd.Flags().BoolVar(&rowLines, "row-lines", false, "Separate table rows with lines.")
	runCmd.Flags().BoolVar(&progress, "progress", false, "Show live progress of updates on stderr.")
	rootCmd.AddCommand(runCmd)
}
