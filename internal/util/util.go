package util

import (
	"os"
	"path/filepath"
	"strings"
)

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FileExists reports whether path names a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Ext returns the lower-cased extension of path without the dot.
func Ext(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// ParentDirExists checks that the directory which would hold path is there.
// An empty directory part means the working directory.
func ParentDirExists(path string) bool {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return true
	}
	return DirExists(dir)
}
