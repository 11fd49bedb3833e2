package compiler

import (
	"context"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Writes the assets that changed since the last emission. Unchanged assets
// (same non-empty version as last time) are skipped entirely. All writes are
// attempted even if some fail, and the error reported is the one of the
// first failing asset in filename order.
func (c *Compiler) emitAssets(ctx context.Context, comp *Compilation) error {
	outputPath := c.options.Output.Path

	// Plugins add their assets first so that cleaning sees the final asset
	// set, and a failing hook leaves the previous output alone
	if err := c.plugins.emit(ctx, comp); err != nil {
		return err
	}

	if c.options.Output.Clean {
		if len(c.emittedAssetVersions) == 0 {
			if err := c.outputFS.RemoveDirAll(ctx, outputPath); err != nil {
				return err
			}
			c.log.Debug().Str("path", outputPath).Msg("Output directory cleaned")
		} else {
			c.removeStaleAssets(ctx, comp)
		}
	}

	filenames := comp.Assets()
	errs := make([]error, len(filenames))
	written := make([]bool, len(filenames))
	group := errgroup.Group{}
	group.SetLimit(c.options.Concurrency)

	for i, filename := range filenames {
		i, filename := i, filename
		asset, _ := comp.Asset(filename)
		if old, ok := c.emittedAssetVersions[filename]; ok && old != "" && old == asset.Info.Version {
			comp.markSkipped(filename)
			c.metrics.assetSkipped()
			c.log.Debug().Str("asset", filename).Msg("Asset unchanged")
			written[i] = true
			continue
		}
		group.Go(func() error {
			errs[i] = c.emitAsset(ctx, comp, outputPath, filename, asset)
			written[i] = errs[i] == nil
			return nil
		})
	}
	group.Wait()

	// Only files known to be on disk become the next baseline. A file whose
	// write failed is written again next time even if it didn't change.
	versions := make(map[string]string)
	if c.options.IncrementalRebuildEmitAsset {
		for i, filename := range filenames {
			if written[i] {
				asset, _ := comp.Asset(filename)
				versions[filename] = asset.Info.Version
			}
		}
	}
	c.emittedAssetVersions = versions

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Runs on its own goroutine
func (c *Compiler) emitAsset(ctx context.Context, comp *Compilation, outputPath string, filename string, asset *Asset) error {
	// "main.js?v=1" is written to "main.js"
	if before, _, ok := strings.Cut(filename, "?"); ok {
		filename = before
	}
	targetPath := path.Join(outputPath, filename)

	if err := c.outputFS.CreateDirAll(ctx, path.Dir(targetPath)); err != nil {
		return err
	}
	if err := c.outputFS.Write(ctx, targetPath, asset.Source); err != nil {
		return err
	}

	comp.markEmitted(filename)
	c.metrics.assetEmitted(len(asset.Source))
	c.log.Debug().
		Str("asset", filename).
		Str("version", asset.Info.Version).
		Int("size", len(asset.Source)).
		Msg("Asset emitted")

	return c.plugins.assetEmitted(ctx, comp, AssetEmittedInfo{
		Filename:   filename,
		OutputPath: outputPath,
		TargetPath: targetPath,
		Content:    asset.Source,
	})
}

// Once a previous emission exists the output directory is never wiped as a
// whole. Only files that the previous build wrote and this build no longer
// produces are removed. Failures are ignored since the file may already be
// gone.
func (c *Compiler) removeStaleAssets(ctx context.Context, comp *Compilation) {
	group := errgroup.Group{}
	group.SetLimit(c.options.Concurrency)
	for filename := range c.emittedAssetVersions {
		if _, ok := comp.Asset(filename); ok {
			continue
		}
		if before, _, ok := strings.Cut(filename, "?"); ok {
			filename = before
		}
		target := path.Join(c.options.Output.Path, filename)
		group.Go(func() error {
			if err := c.outputFS.RemoveFile(ctx, target); err != nil {
				c.log.Debug().Err(err).Str("path", target).Msg("Failed to remove stale asset")
			} else {
				c.log.Debug().Str("path", target).Msg("Stale asset removed")
			}
			return nil
		})
	}
	group.Wait()
}
