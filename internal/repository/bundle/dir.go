package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/screeps-deploy/internal/domain/code"
)

const (
	// scriptExtension marks files stored as text under their module name.
	scriptExtension = "js"
	// sourceMapExtension marks files stored as text under their full filename,
	// the companion-file naming the runtime expects next to a script module.
	sourceMapExtension = "js.map"
)

// FromDirectory reads every regular file of the output directory into a
// code mapping. Script files are keyed by module name, source maps by
// their full filename, everything else becomes a base64 binary module.
// Subdirectories are skipped.
func FromDirectory(dir string) (code.Mapping, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output directory: %w", err)
	}

	mapping := make(code.Mapping, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		moduleName, extension := splitModuleName(name)

		contents, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read output file %s: %w", name, err)
		}

		switch extension {
		case scriptExtension:
			mapping[moduleName] = code.NewText(string(contents))
		case sourceMapExtension:
			mapping[name] = code.NewText(string(contents))
		default:
			mapping[moduleName] = code.NewBinary(contents)
		}
	}

	return mapping, nil
}

// splitModuleName splits a filename into the module name (everything up to
// the first dot) and the case-folded remainder of the extension segments.
// A file without a dot has an empty extension.
func splitModuleName(name string) (string, string) {
	segments := strings.Split(name, ".")

	return segments[0], strings.ToLower(strings.Join(segments[1:], "."))
}
