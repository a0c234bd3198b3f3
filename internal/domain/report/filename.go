package report

import (
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^\w\-.]`)

// SafeFilename strips directories and replaces characters outside [A-Za-z0-9_.-].
// Names starting with a dot get a "file_" prefix. Returns "" for names with nothing left.
func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	if strings.HasPrefix(name, ".") {
		name = "file_" + name
	}
	return name
}

// Ext returns the lowercase extension including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
