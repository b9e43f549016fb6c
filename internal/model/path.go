package model

import (
	"path"
	"strings"
)

// CleanPath returns the absolute, cleaned form of p
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// ResolvePath resolves p relative to cwd
func ResolvePath(cwd, p string) string {
	if strings.HasPrefix(p, "/") {
		return CleanPath(p)
	}
	return CleanPath(path.Join(CleanPath(cwd), p))
}
