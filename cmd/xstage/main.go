// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command xstage runs raw video frames from a file through a chain of
// processing stages and writes the results as a frame dump.
//
// The chain comes from a YAML configuration file (--config). Without one a
// single temporal smoothing stage is used. Per-frame device poses read
// from --pose are attached to the input frames; the run stops at the last
// pose when there are fewer poses than frames.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath string
		async      bool
		verbose    bool
		defaults   = config.Default()
		overrides  = *defaults
	)

	flagSet := pflag.NewFlagSet("xstage", pflag.ContinueOnError)
	flagSet.StringVar(&overrides.Input.Path, "input", "", "raw input frame file")
	flagSet.StringVar(&overrides.Output.Path, "output", "", "frame dump to write")
	flagSet.IntVar(&overrides.Input.Width, "input-w", defaults.Input.Width, "input frame width")
	flagSet.IntVar(&overrides.Input.Height, "input-h", defaults.Input.Height, "input frame height")
	flagSet.StringVar(&overrides.Input.Format, "format", defaults.Input.Format, "input pixel format (gray8, rgba8, bgra8, nv12)")
	flagSet.StringVar(&overrides.Input.Pose, "pose", "", "device pose log, one record per frame")
	flagSet.StringVar(&configPath, "config", "", "YAML configuration file")
	flagSet.BoolVar(&overrides.Output.Save, "save", defaults.Output.Save, "write the frame dump")
	flagSet.IntVar(&overrides.Input.Loop, "loop", defaults.Input.Loop, "how many times to run the input file")
	flagSet.BoolVar(&async, "async", false, "process frames asynchronously")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg := defaults
	cfg.Stages = config.DefaultStages()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return err
		}
	}
	applyFlags(flagSet, cfg, &overrides)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	xstage.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, err := newRunner(cfg, !async, logger)
	if err != nil {
		return err
	}
	return r.run(ctx)
}

// applyFlags copies the flags set on the command line from overrides
// into cfg, so that they win over the configuration file.
func applyFlags(flagSet *pflag.FlagSet, cfg, overrides *config.Config) {
	set := func(name string, apply func()) {
		if flagSet.Changed(name) {
			apply()
		}
	}
	set("input", func() { cfg.Input.Path = overrides.Input.Path })
	set("output", func() { cfg.Output.Path = overrides.Output.Path })
	set("input-w", func() { cfg.Input.Width = overrides.Input.Width })
	set("input-h", func() { cfg.Input.Height = overrides.Input.Height })
	set("format", func() { cfg.Input.Format = overrides.Input.Format })
	set("pose", func() { cfg.Input.Pose = overrides.Input.Pose })
	set("save", func() { cfg.Output.Save = overrides.Output.Save })
	set("loop", func() { cfg.Input.Loop = overrides.Input.Loop })
}
