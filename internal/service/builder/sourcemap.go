package builder

import (
	"strings"
	"unicode/utf8"

	"github.com/evanw/esbuild/pkg/api"
)

// sourceMapSuffix is the two-part suffix of generated source-map assets.
const sourceMapSuffix = ".js.map"

// PostProcess rewrites generated source-map assets in place so the game
// runtime can require them as modules instead of choking on raw JSON.
// Assets not ending in the suffix, or whose content is not textual, are
// left untouched. An empty asset set is a no-op.
func PostProcess(assets []api.OutputFile) {
	for i := range assets {
		if !strings.HasSuffix(assets[i].Path, sourceMapSuffix) {
			continue
		}

		if !utf8.Valid(assets[i].Contents) {
			continue
		}

		assets[i].Contents = wrapAsModule(assets[i].Contents)
	}
}

// wrapAsModule turns raw JSON text into an assignment expression that
// exports it as a module value.
func wrapAsModule(contents []byte) []byte {
	wrapped := make([]byte, 0, len(contents)+len("module.exports = ;"))
	wrapped = append(wrapped, "module.exports = "...)
	wrapped = append(wrapped, contents...)
	wrapped = append(wrapped, ';')

	return wrapped
}
