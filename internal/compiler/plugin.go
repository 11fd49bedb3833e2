package compiler

import (
	"context"
	"fmt"
)

// A plugin is a set of optional callbacks, one per build phase. Callbacks of
// the same hook run in the order the plugins were passed to the compiler and
// the first failing callback stops the build.
//
// Callbacks that receive the compilation may change it. Everything they add
// (diagnostics, assets, modules during "Make") becomes part of the build.
type Plugin struct {
	Name string

	BeforeCompile        func(ctx context.Context) error
	ThisCompilation      func(ctx context.Context, c *Compilation) error
	Compilation          func(ctx context.Context, c *Compilation) error
	Make                 func(ctx context.Context, c *Compilation) error
	FinishMake           func(ctx context.Context, c *Compilation) error
	OptimizeDependencies func(ctx context.Context, c *Compilation) error
	Seal                 func(ctx context.Context, c *Compilation) error
	AfterCompile         func(ctx context.Context, c *Compilation) error

	// Returning false for any plugin skips the emission phases entirely
	ShouldEmit func(ctx context.Context, c *Compilation) (bool, error)

	Emit func(ctx context.Context, c *Compilation) error

	// Called once per written file. This may be called concurrently.
	AssetEmitted func(ctx context.Context, c *Compilation, info AssetEmittedInfo) error

	AfterEmit func(ctx context.Context, c *Compilation) error
	Done      func(ctx context.Context, stats *Stats) error
}

type AssetEmittedInfo struct {
	Filename   string
	OutputPath string
	TargetPath string
	Content    []byte
}

// Wraps every error returned by a plugin callback
type HookError struct {
	Hook   string
	Plugin string
	Err    error
}

func (e *HookError) Error() string {
	if e.Plugin == "" {
		return fmt.Sprintf("%s hook failed: %v", e.Hook, e.Err)
	}
	return fmt.Sprintf("%s hook of plugin %q failed: %v", e.Hook, e.Plugin, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

type pluginDriver struct {
	plugins []Plugin
	metrics *Metrics
}

func (d *pluginDriver) run(hook string, pick func(p *Plugin) func() error) error {
	for i := range d.plugins {
		p := &d.plugins[i]
		call := pick(p)
		if call == nil {
			continue
		}
		if err := call(); err != nil {
			d.metrics.hookFailed(hook)
			return &HookError{Hook: hook, Plugin: p.Name, Err: err}
		}
	}
	return nil
}

func (d *pluginDriver) compilationHook(
	ctx context.Context,
	hook string,
	c *Compilation,
	pick func(p *Plugin) func(context.Context, *Compilation) error,
) error {
	return d.run(hook, func(p *Plugin) func() error {
		if fn := pick(p); fn != nil {
			return func() error { return fn(ctx, c) }
		}
		return nil
	})
}

func (d *pluginDriver) beforeCompile(ctx context.Context) error {
	return d.run("beforeCompile", func(p *Plugin) func() error {
		if fn := p.BeforeCompile; fn != nil {
			return func() error { return fn(ctx) }
		}
		return nil
	})
}

func (d *pluginDriver) thisCompilation(ctx context.Context, c *Compilation) error {
	return d.compilationHook(ctx, "thisCompilation", c, func(p *Plugin) func(context.Context, *Compilation) error { return p.ThisCompilation })
}

func (d *pluginDriver) compilation(ctx context.Context, c *Compilation) error {
	return d.compilationHook(ctx, "compilation", c, func(p *Plugin) func(context.Context, *Compilation) error { return p.Compilation })
}

func (d *pluginDriver) make(ctx context.Context, c *Compilation) error {
	return d.compilationHook(ctx, "make", c, func(p *Plugin) func(context.Context, *Compilation) error { return p.Make })
}

func (d *pluginDriver) finishMake(ctx context.Context, c *Compilation) error {
	return d.compilationHook(ctx, "finishMake", c, func(p *Plugin) func(context.Context, *Compilation) error { return p.FinishMake })
}

func (d *pluginDriver) optimizeDependencies(ctx context.Context, c *Compilation) error {
	return d.compilationHook(ctx, "optimizeDependencies", c, func(p *Plugin) func(context.Context, *Compilation) error { return p.OptimizeDependencies })
}

func (d *pluginDriver) seal(ctx context.Context, c *Compilation) error {
	return d.compilationHook(ctx, "seal", c, func(p *Plugin) func(context.Context, *Compilation) error { return p.Seal })
}

func (d *pluginDriver) afterCompile(ctx context.Context, c *Compilation) error {
	return d.compilationHook(ctx, "afterCompile", c, func(p *Plugin) func(context.Context, *Compilation) error { return p.AfterCompile })
}

func (d *pluginDriver) emit(ctx context.Context, c *Compilation) error {
	return d.compilationHook(ctx, "emit", c, func(p *Plugin) func(context.Context, *Compilation) error { return p.Emit })
}

func (d *pluginDriver) afterEmit(ctx context.Context, c *Compilation) error {
	return d.compilationHook(ctx, "afterEmit", c, func(p *Plugin) func(context.Context, *Compilation) error { return p.AfterEmit })
}

// Stops at the first plugin that says no
func (d *pluginDriver) shouldEmit(ctx context.Context, c *Compilation) (bool, error) {
	result := true
	err := d.run("shouldEmit", func(p *Plugin) func() error {
		if fn := p.ShouldEmit; fn != nil && result {
			return func() error {
				ok, err := fn(ctx, c)
				if err == nil && !ok {
					result = false
				}
				return err
			}
		}
		return nil
	})
	return result && err == nil, err
}

func (d *pluginDriver) assetEmitted(ctx context.Context, c *Compilation, info AssetEmittedInfo) error {
	return d.run("assetEmitted", func(p *Plugin) func() error {
		if fn := p.AssetEmitted; fn != nil {
			return func() error { return fn(ctx, c, info) }
		}
		return nil
	})
}

func (d *pluginDriver) done(ctx context.Context, stats *Stats) error {
	return d.run("done", func(p *Plugin) func() error {
		if fn := p.Done; fn != nil {
			return func() error { return fn(ctx, stats) }
		}
		return nil
	})
}
