package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/puzzle-host/config"
	"github.com/wippyai/puzzle-host/engine"
	"github.com/wippyai/puzzle-host/runtime"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Module  string
	Config  string
	Inputs  string
	Threads int
	Timeout time.Duration
	Verbose bool
}

// NewRootCommand creates the root command. Without a subcommand it starts
// the interactive UI on a terminal and reads stdin otherwise.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run WebAssembly puzzle solutions",
		Long: `Run puzzle solutions compiled to a WebAssembly module.

Single-threaded modules own their memory. Modules importing a shared
memory run on a pool of worker threads sharing one arena.

Example:
  run -m aoc.wasm table
  run -m aoc.wasm run 2024/1
  run -m aoc.wasm stdin 2024/1 < input.txt
  run -m aoc.wasm --threads 4 examples 2024`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if term.IsTerminal(int(os.Stdin.Fd())) {
				return runInteractive(cmd.Context(), opts)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Module, "module", "m", "aoc.wasm", "path to the puzzle module")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.Inputs, "inputs", "", "inputs directory (default from config or ./inputs)")
	cmd.PersistentFlags().IntVarP(&opts.Threads, "threads", "t", 0, "worker threads for multi-threaded modules (default from config or CPU count)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "per-puzzle time limit (0 means none)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewStdinCommand(opts))
	cmd.AddCommand(NewTableCommand(opts))
	cmd.AddCommand(NewExamplesCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewInteractiveCommand(opts))

	return cmd
}

// session is an opened module plus the settings commands need to drive it.
type session struct {
	rt      *runtime.Runtime
	sup     *runtime.Supervisor
	log     *zap.Logger
	inputs  string
	timeout time.Duration
}

func openSession(opts *RootOptions) (*session, error) {
	file := &config.File{}
	if opts.Config != "" {
		f, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		file = f
	}

	switch {
	case opts.Verbose:
		file.Log.Level = "debug"
		file.Log.Development = true
	case file.Log.Level == "":
		file.Log.Level = "warn"
	}
	log, err := file.Logger()
	if err != nil {
		return nil, err
	}
	engine.SetLogger(log)
	runtime.SetLogger(log)

	cfg := file.Engine()
	if opts.Threads > 0 {
		cfg.Workers = opts.Threads
	}
	rt, err := runtime.New(cfg)
	if err != nil {
		return nil, err
	}
	sup, err := rt.OpenFile(opts.Module)
	if err != nil {
		_ = rt.Close(context.Background())
		return nil, err
	}
	log.Debug("module opened",
		zap.String("module", sup.Module().Name()),
		zap.String("digest", sup.Module().Digest()),
		zap.Stringer("policy", sup.Module().Policy()),
		zap.Int("puzzles", sup.Catalog().Len()))

	inputs := file.Inputs()
	if opts.Inputs != "" {
		inputs = opts.Inputs
	}
	return &session{rt: rt, sup: sup, log: log, inputs: inputs, timeout: opts.Timeout}, nil
}

func (s *session) submit(ctx context.Context, req runtime.Request) (runtime.Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.sup.Submit(ctx, req)
}

func (s *session) Close() {
	ctx := context.Background()
	s.sup.Stop(ctx)
	if err := s.rt.Close(ctx); err != nil {
		s.log.Warn("runtime close failed", zap.Error(err))
	}
	_ = s.log.Sync()
}
