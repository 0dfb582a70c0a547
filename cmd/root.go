package cmd

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/config"
	"github.com/cube2222/cursorql/logs"
	"github.com/cube2222/cursorql/physical"
)

var (
	configPath  string
	paramFlags  []string
	profileMode string
	pipeline    bool

	cfg      *config.Config
	profiler interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cursorql",
	Short: "Executes physical query plans through the bindings cursor protocol.",
	Example: `cursorql run plan.yml
cursorql run plan.yml --param 0=10 --output json
cursorql explain plan.yml --graph | dot -Tpng > plan.png`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Read(configPath)
		if err != nil {
			return errors.Wrap(err, "couldn't read config")
		}
		if cmd.Flags().Changed("pipeline") {
			cfg.Execution.Pipeline = pipeline
		}
		if err := logs.Initialize(cfg.Logging); err != nil {
			return errors.Wrap(err, "couldn't initialize logging")
		}
		if profileMode != "" {
			mode, err := profileOption(profileMode)
			if err != nil {
				return err
			}
			profiler = profile.Start(mode, profile.ProfilePath("."), profile.Quiet)
		}
		return nil
	},
}

// cleanup runs after the command, also when it failed.
func cleanup() {
	if profiler != nil {
		profiler.Stop()
		profiler = nil
	}
	logs.CloseLogger()
}

func profileOption(mode string) (func(*profile.Profile), error) {
	switch strings.ToLower(mode) {
	case "cpu":
		return profile.CPUProfile, nil
	case "mem":
		return profile.MemProfile, nil
	case "trace":
		return profile.TraceProfile, nil
	case "goroutine":
		return profile.GoroutineProfile, nil
	default:
		return nil, errors.Errorf("unknown profile mode %q, expected one of cpu, mem, trace, goroutine", mode)
	}
}

// parseParams parses the --param flags into positions and values.
func parseParams(flags []string) (map[int]cursorql.Value, error) {
	out := make(map[int]cursorql.Value, len(flags))
	for _, flag := range flags {
		position, value, err := physical.ParseParameter(flag)
		if err != nil {
			return nil, err
		}
		out[position] = value
	}
	return out, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		logrus.Error(err)
		cobra.CheckErr(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration file.")
	rootCmd.PersistentFlags().StringArrayVar(&paramFlags, "param", nil, "Query parameter in the form position=value, set in every top level frame.")
	rootCmd.PersistentFlags().StringVar(&profileMode, "profile", "", "Write a profile of the run to the working directory: cpu, mem, trace or goroutine.")
	rootCmd.PersistentFlags().BoolVar(&pipeline, "pipeline", false, "Execute maps in pipelined mode, overriding the configuration.")
}
