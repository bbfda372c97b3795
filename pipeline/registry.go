// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/compute"
	"github.com/gogpu/xstage/internal/config"
	"github.com/gogpu/xstage/stages"
)

// Deps are the shared collaborators a factory may need.
type Deps struct {
	// Compute runs kernel stages. Factories of kernel stages fail without it.
	Compute *compute.Context
}

// Factory creates a stage from its configuration.
type Factory func(cfg config.StageConfig, deps Deps) (*xstage.Stage, error)

// globalRegistry holds the built-in stage kinds.
var globalRegistry = NewRegistry()

// Registry maps stage kinds to factories.
//
// Example registration:
//
//	func init() {
//	    pipeline.Register("sharpen", sharpenFactory)
//	}
//
// Thread safety: All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
// Most code should use the global registry via Register and Build.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a kind to the global registry.
func Register(kind string, f Factory) {
	globalRegistry.Register(kind, f)
}

// Unregister removes a kind from the global registry.
func Unregister(kind string) {
	globalRegistry.Unregister(kind)
}

// Kinds returns the kinds of the global registry, sorted.
func Kinds() []string {
	return globalRegistry.Kinds()
}

// NewStage creates a stage with the global registry.
func NewStage(cfg config.StageConfig, deps Deps) (*xstage.Stage, error) {
	return globalRegistry.NewStage(cfg, deps)
}

// Build creates a chain from cfgs with the global registry.
func Build(cfgs []config.StageConfig, deps Deps, sink Sink, synchronous bool) (*Chain, error) {
	return globalRegistry.Build(cfgs, deps, sink, synchronous)
}

// Register adds a kind to this registry. Registering a kind that already
// exists replaces the previous factory.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Unregister removes a kind from this registry.
func (r *Registry) Unregister(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, kind)
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// NewStage creates the stage cfg describes.
func (r *Registry) NewStage(cfg config.StageConfig, deps Deps) (*xstage.Stage, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, &KindNotFoundError{Kind: cfg.Kind}
	}
	s, err := f(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", cfg.Label(), err)
	}
	return s, nil
}

// Build creates every stage of cfgs and links them into a Chain. Stages
// already created are terminated when a later one fails.
func (r *Registry) Build(cfgs []config.StageConfig, deps Deps, sink Sink, synchronous bool) (*Chain, error) {
	built := make([]*xstage.Stage, 0, len(cfgs))
	for _, cfg := range cfgs {
		s, err := r.NewStage(cfg, deps)
		if err != nil {
			for _, b := range built {
				_ = b.Terminate()
			}
			return nil, err
		}
		built = append(built, s)
	}
	return NewChain(sink, synchronous, built...)
}

// KindNotFoundError indicates a stage kind is not registered.
type KindNotFoundError struct {
	Kind string
}

func (e *KindNotFoundError) Error() string {
	return "pipeline: stage kind not found: " + e.Kind
}

// ErrNoCompute is returned by kernel factories when Deps has no compute
// context.
var ErrNoCompute = errors.New("pipeline: kernel stage needs a compute context")

// stageOptions returns the options every built-in factory applies.
func stageOptions(cfg config.StageConfig, allocates bool) []xstage.Option {
	opts := []xstage.Option{xstage.WithName(cfg.Label())}
	if allocates && cfg.Capacity > 0 {
		opts = append(opts, xstage.WithAllocator(cfg.Capacity))
	}
	if cfg.ConfigureAttempts > 0 {
		opts = append(opts, xstage.WithConfigureAttempts(cfg.ConfigureAttempts))
	}
	return opts
}

// init registers the built-in stages.
func init() {
	Register(config.KindBlur, func(cfg config.StageConfig, _ Deps) (*xstage.Stage, error) {
		ry := cfg.RadiusY
		if ry == 0 {
			ry = cfg.RadiusX
		}
		return stages.NewBlur(cfg.RadiusX, ry, stageOptions(cfg, true)...).Stage, nil
	})

	Register(config.KindColorMatrix, func(cfg config.StageConfig, _ Deps) (*xstage.Stage, error) {
		var ms [][20]float32
		for _, name := range strings.Split(cfg.Preset, ",") {
			m, err := stages.Preset(strings.TrimSpace(name), cfg.Amount)
			if err != nil {
				return nil, err
			}
			ms = append(ms, m)
		}
		return stages.NewColorMatrix(stages.Compose(ms...), stageOptions(cfg, true)...).Stage, nil
	})

	Register(config.KindScale, func(cfg config.StageConfig, _ Deps) (*xstage.Stage, error) {
		interp := stages.Bilinear
		if cfg.Interpolation != "" {
			var err error
			if interp, err = stages.ParseInterpolation(cfg.Interpolation); err != nil {
				return nil, err
			}
		}
		return stages.NewScale(cfg.Width, cfg.Height, interp, stageOptions(cfg, true)...).Stage, nil
	})

	Register(config.KindGain, func(cfg config.StageConfig, deps Deps) (*xstage.Stage, error) {
		if deps.Compute == nil {
			return nil, ErrNoCompute
		}
		gain := cfg.Gain
		if gain == 0 {
			gain = 1
		}
		return stages.NewKernel(deps.Compute, stages.GainKernel(gain), stageOptions(cfg, true)...).Stage, nil
	})

	Register(config.KindTemporal, func(cfg config.StageConfig, _ Deps) (*xstage.Stage, error) {
		return stages.NewTemporal(cfg.Radius, cfg.Stdev, stageOptions(cfg, true)...).Stage, nil
	})

	Register(config.KindDigest, func(cfg config.StageConfig, _ Deps) (*xstage.Stage, error) {
		if cfg.Key == "" {
			return stages.NewDigest(stageOptions(cfg, false)...).Stage, nil
		}
		key, err := hex.DecodeString(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("digest key: %w", err)
		}
		d, err := stages.NewKeyedDigest(key, stageOptions(cfg, false)...)
		if err != nil {
			return nil, err
		}
		return d.Stage, nil
	})
}
