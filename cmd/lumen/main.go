// Command lumen drives the lighting compositor: it runs a configurable demo
// scene through the shadow node, the forward-plus grid and probe blending,
// and validates shadow node definition files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/Carmen-Shannon/oxy-lumen/engine/shadow"
	"github.com/Carmen-Shannon/oxy-lumen/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// GLFW and GL calls must stay on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "lumen",
		Short:        "Shadow node and forward-plus lighting compositor",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(), newValidateCommand())
	return root
}

type runFlags struct {
	config  string
	backend string
	frames  int
	level   string
	node    string
	profile bool
}

func newRunCommand() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Light the demo scene for a number of frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogLevel, cfg.Development)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			frames, err := runDemo(cmd.Context(), cfg, log)
			if err != nil {
				log.Error("run failed", zap.Error(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rendered %d frames with the %s backend\n", frames, cfg.Backend)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.config, "config", "c", "", "config file (.toml, .yaml or .yml)")
	flags.StringVar(&f.backend, "backend", "", "buffer backend: memory, gl or wgpu")
	flags.IntVarP(&f.frames, "frames", "n", 0, "frames to render, 0 or negative runs until interrupted")
	flags.StringVar(&f.level, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&f.node, "node", "", "shadow node definition file")
	flags.BoolVar(&f.profile, "profile", false, "log frame stats")
	return cmd
}

// resolve loads the config file, if any, and applies the flags the user set
// on top of it.
func (f *runFlags) resolve(cmd *cobra.Command) (*Config, error) {
	cfg := DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = LoadConfig(f.config); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = f.backend
	}
	if flags.Changed("frames") {
		cfg.Frames = f.frames
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.level
	}
	if flags.Changed("node") {
		cfg.NodeDefinition = f.node
	}
	if flags.Changed("profile") {
		cfg.Profile = f.profile
	}
	return cfg, nil
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <definition>...",
		Short: "Check shadow node definition files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs error
			out := cmd.OutOrStdout()
			for _, path := range args {
				def, err := shadow.LoadNodeDefinition(path)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", path, err)
					errs = errors.Join(errs, err)
					continue
				}
				fmt.Fprintf(out, "%s: ok, node %q with %d light slots and %d shadow maps\n",
					path, def.Name, def.NumLights(), len(def.ShadowMaps))
			}
			return errs
		},
	}
}
