package sg

import (
	"path"
	"strings"
)

// HeaderDir returns the bucket directory holding a header key, "" for the root.
// Example: "models/sa/grid.sg" -> "models/sa"
func HeaderDir(headerKey string) string {
	dir := path.Dir(strings.ReplaceAll(headerKey, `\`, "/"))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// PropertyKey resolves a PROP_FILE entry against the header directory.
// Headers written on Windows use backslashes and sometimes absolute paths; the
// latter keep only their final element since a bucket has no drive letters.
// Example: base="models", file="grid_density@@" -> "models/grid_density@@"
func PropertyKey(base, file string) string {
	file = strings.ReplaceAll(file, `\`, "/")
	if isAbsolute(file) {
		file = path.Base(file)
	}
	if base == "" {
		return path.Clean(file)
	}
	return path.Join(base, file)
}

func isAbsolute(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && p[2] == '/'
}
