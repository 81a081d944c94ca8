package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/oshokin/screeps-deploy/internal/logger"
)

// Options contains inputs for the builder entry point.
type Options struct {
	// Entry is the entry point of the automation code (e.g. src/main.js).
	Entry string
	// OutDir is the directory the bundled output is written to.
	OutDir string
	// Minify enables whitespace/identifier/syntax minification.
	Minify bool
	// DisableSourceMaps skips source-map generation entirely.
	DisableSourceMaps bool
}

var (
	// errEntryRequired is returned when no entry point is provided.
	errEntryRequired = errors.New("entry point must be provided")
	// errOutDirRequired is returned when no output directory is provided.
	errOutDirRequired = errors.New("output directory must be provided")
)

// DefaultFileMode is used for written bundle artifacts.
const DefaultFileMode os.FileMode = 0o644

// Run bundles the entry point, post-processes the in-memory output and
// writes the finished assets to the output directory.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "builder")

	if opts.Entry == "" {
		return errEntryRequired
	}

	if opts.OutDir == "" {
		return errOutDirRequired
	}

	logger.InfoKV(ctx, "Bundling", "entry", opts.Entry, "out_dir", opts.OutDir)

	sourcemap := api.SourceMapExternal
	if opts.DisableSourceMaps {
		sourcemap = api.SourceMapNone
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:       []string{opts.Entry},
		Outdir:            opts.OutDir,
		Bundle:            true,
		Write:             false,
		Format:            api.FormatCommonJS,
		Platform:          api.PlatformNode,
		Target:            api.ES2017,
		Sourcemap:         sourcemap,
		MinifyWhitespace:  opts.Minify,
		MinifyIdentifiers: opts.Minify,
		MinifySyntax:      opts.Minify,
		Loader: map[string]api.Loader{
			".ts": api.LoaderTS,
		},
	})

	if len(result.Errors) > 0 {
		return buildError(result.Errors)
	}

	PostProcess(result.OutputFiles)

	if err := writeAssets(result.OutputFiles); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Bundle written", "files", len(result.OutputFiles))

	return nil
}

// writeAssets persists the post-processed output files to disk.
func writeAssets(assets []api.OutputFile) error {
	for _, asset := range assets {
		if err := os.MkdirAll(filepath.Dir(asset.Path), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}

		if err := os.WriteFile(asset.Path, asset.Contents, DefaultFileMode); err != nil {
			return fmt.Errorf("write %s: %w", asset.Path, err)
		}
	}

	return nil
}

// buildError flattens esbuild messages into a single error.
func buildError(messages []api.Message) error {
	texts := make([]string, 0, len(messages))
	for _, message := range messages {
		texts = append(texts, message.Text)
	}

	return fmt.Errorf("bundle failed: %s", strings.Join(texts, "; "))
}
