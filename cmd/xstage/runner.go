// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/compute"
	"github.com/gogpu/xstage/internal/config"
	"github.com/gogpu/xstage/internal/framedump"
	"github.com/gogpu/xstage/pipeline"
	"github.com/gogpu/xstage/pose"
	"github.com/gogpu/xstage/stages"
	"github.com/gogpu/xstage/video"
)

// fpsInterval is the number of frames each throughput report covers.
const fpsInterval = 30

// sequence numbers input frames across loops.
type sequence uint64

// MetaName implements xstage.Meta.
func (sequence) MetaName() string { return "sequence" }

// runner feeds the input file through the chain and writes the sink side.
type runner struct {
	cfg         *config.Config
	sync        bool
	logger      *slog.Logger
	info        video.Info
	compression framedump.Compression
	poses       []pose.DevicePose

	// slots bounds the frames between Push and the sink.
	slots chan struct{}

	mu      sync.Mutex
	dump    *framedump.Writer
	dumpErr error
	meter   meter
}

func newRunner(cfg *config.Config, synchronous bool, logger *slog.Logger) (*runner, error) {
	if cfg.Input.Path == "" {
		return nil, errors.New("no input file, use --input")
	}
	format, ok := video.ParseFormat(cfg.Input.Format)
	if !ok {
		return nil, fmt.Errorf("unknown pixel format %q", cfg.Input.Format)
	}
	info, err := video.NewInfo(format, cfg.Input.Width, cfg.Input.Height)
	if err != nil {
		return nil, err
	}
	compression, err := framedump.ParseCompression(cfg.Output.Compression)
	if err != nil {
		return nil, err
	}

	r := &runner{
		cfg:         cfg,
		sync:        synchronous,
		logger:      logger,
		info:        info,
		compression: compression,
		slots:       make(chan struct{}, cfg.Input.PoolSize),
	}
	if cfg.Input.Pose != "" {
		if r.poses, err = pose.ReadFile(cfg.Input.Pose); err != nil {
			return nil, err
		}
		if len(r.poses) == 0 {
			return nil, fmt.Errorf("pose log %s has no complete records", cfg.Input.Pose)
		}
	}
	return r, nil
}

func (r *runner) run(ctx context.Context) (err error) {
	in, err := os.Open(r.cfg.Input.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	if r.cfg.Output.Save {
		var out *os.File
		if out, err = os.Create(r.cfg.Output.Path); err != nil {
			return err
		}
		defer func() {
			if cerr := out.Close(); err == nil {
				err = cerr
			}
		}()
		if r.dump, err = framedump.NewWriter(out, r.compression); err != nil {
			return err
		}
	}

	cc := compute.NewContext(compute.WithWorkers(r.cfg.Compute.Workers))
	defer cc.Close()

	chain, err := pipeline.Build(r.cfg.Stages, pipeline.Deps{Compute: cc}, r.receive, r.sync)
	if err != nil {
		return err
	}
	defer chain.Terminate()

	pool := video.NewPool()
	if err := pool.Reserve(r.info, r.cfg.Input.PoolSize); err != nil {
		return err
	}
	defer pool.Close()

	r.logger.Info("xstage: running",
		"input", r.cfg.Input.Path, "info", r.info.String(), "poses", len(r.poses),
		"stages", len(chain.Stages()), "sync", r.sync, "loops", r.cfg.Input.Loop)

	start := time.Now()
	r.meter.reset(start)
	var index uint64
	for loop := range r.cfg.Input.Loop {
		if _, err := in.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind %s: %w", r.cfg.Input.Path, err)
		}
		n, err := r.feed(ctx, in, pool, chain, &index)
		if err != nil {
			chain.Finish()
			return err
		}
		r.logger.Debug("xstage: loop done", "loop", loop+1, "frames", n)
	}
	chain.Finish()

	frames, failed := chain.Stats()
	elapsed := time.Since(start)
	r.logger.Info("xstage: done",
		"frames", frames, "failed", failed, "elapsed", elapsed,
		"fps", float64(frames)/elapsed.Seconds())

	if r.dump != nil {
		if r.dumpErr != nil {
			return fmt.Errorf("write %s: %w", r.cfg.Output.Path, r.dumpErr)
		}
		if err := r.dump.Flush(); err != nil {
			return fmt.Errorf("write %s: %w", r.cfg.Output.Path, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d frames failed", failed, frames)
	}
	return nil
}

// feed pushes the frames of src until its end, or until the pose log is
// exhausted. A trailing partial frame is dropped.
func (r *runner) feed(ctx context.Context, src io.Reader, pool *video.Pool, chain *pipeline.Chain, index *uint64) (int, error) {
	for i := 0; ; i++ {
		if r.poses != nil && i >= len(r.poses) {
			return i, nil
		}
		select {
		case r.slots <- struct{}{}:
		case <-ctx.Done():
			return i, ctx.Err()
		}
		buf, err := pool.AcquireWait(ctx)
		if err != nil {
			<-r.slots
			return i, err
		}
		if _, err := io.ReadFull(src, buf.Data()[:r.info.Size]); err != nil {
			buf.Release()
			<-r.slots
			switch {
			case errors.Is(err, io.EOF):
				return i, nil
			case errors.Is(err, io.ErrUnexpectedEOF):
				r.logger.Warn("xstage: dropping partial frame at end of input", "frame", i)
				return i, nil
			}
			return i, fmt.Errorf("read frame %d: %w", i, err)
		}

		metas := []xstage.Meta{sequence(*index)}
		if r.poses != nil {
			metas = append(metas, r.poses[i])
		}
		*index++
		// Failures are reported to the sink.
		_ = chain.Push(buf, metas...)
		buf.Release()
	}
}

// receive is the chain's sink.
func (r *runner) receive(p *xstage.Params, err error) {
	defer func() { <-r.slots }()
	seq, _ := xstage.FindMeta[sequence](p)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.logger.Warn("xstage: frame failed", "frame", uint64(seq), "err", err)
		return
	}
	if fps, ok := r.meter.tick(time.Now()); ok {
		r.logger.Info("xstage: throughput", "frames", r.meter.frames, "fps", fps)
	}
	if r.dump == nil || r.dumpErr != nil {
		return
	}

	f := framedump.Frame{Index: uint64(seq), Buffer: p.Out()}
	if sp, ok := xstage.FindMeta[stages.SmoothedPose](p); ok {
		f.Pose = &sp.DevicePose
	} else if dp, ok := xstage.FindMeta[pose.DevicePose](p); ok {
		f.Pose = &dp
	}
	if fp, ok := xstage.FindMeta[stages.Fingerprint](p); ok {
		f.Digest = fp.Sum[:]
	}
	r.dumpErr = r.dump.WriteFrame(f)
}

// meter reports throughput every fpsInterval frames.
type meter struct {
	frames     int
	mark       time.Time
	markFrames int
}

func (m *meter) reset(now time.Time) {
	*m = meter{mark: now}
}

func (m *meter) tick(now time.Time) (float64, bool) {
	m.frames++
	n := m.frames - m.markFrames
	elapsed := now.Sub(m.mark)
	if n < fpsInterval || elapsed <= 0 {
		return 0, false
	}
	m.mark, m.markFrames = now, m.frames
	return float64(n) / elapsed.Seconds(), true
}
