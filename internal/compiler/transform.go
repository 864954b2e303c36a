package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var loaders = map[string]api.Loader{
	".ts":  api.LoaderTS,
	".mts": api.LoaderTS,
	".cts": api.LoaderTS,
	".tsx": api.LoaderTSX,
	".jsx": api.LoaderJSX,
}

// loaderFor reports whether the file at path needs esbuild before parsing.
func loaderFor(path string) (api.Loader, bool) {
	l, ok := loaders[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// transform strips types and JSX. The output stays a plain script: no
// module wrapper and no minification, so the last expression statement
// survives as the completion value.
func transform(path, src string, loader api.Loader) (string, error) {
	result := api.Transform(src, api.TransformOptions{
		Loader:     loader,
		Sourcefile: path,
		Target:     api.ES2020,
		Format:     api.FormatDefault,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("transform: %s", formatMessage(path, result.Errors[0]))
	}
	return string(result.Code), nil
}

func formatMessage(path string, m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", path, m.Location.Line, m.Location.Column+1, m.Text)
}
