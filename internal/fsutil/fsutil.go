// Package fsutil maps request paths onto the served directory tree.
package fsutil

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrPathEscape  = errors.New("path escape")
)

// CleanRelPath takes a user path like "", ".", "/a/b", "a//b", "a/../../b" and
// returns a slash-based relative path with no leading slash ("" means root).
// ".." segments can never climb above the root.
func CleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// JoinWithinRoot returns the absolute filesystem path under rootAbs for a
// decoded URL path. It rejects NUL bytes and anything resolving outside root.
func JoinWithinRoot(rootAbs string, urlPath string) (string, error) {
	if strings.Contains(urlPath, "\x00") {
		return "", ErrInvalidPath
	}
	rel := CleanRelPath(urlPath)
	rootClean := filepath.Clean(rootAbs)
	if rel == "" {
		return rootClean, nil
	}
	abs := filepath.Clean(filepath.Join(rootClean, filepath.FromSlash(rel)))
	if abs != rootClean && !strings.HasPrefix(abs, rootClean+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return abs, nil
}

// Translator is the URL-to-filesystem mapping used by request handlers.
type Translator struct {
	Root string
}

func (t Translator) Translate(urlPath string) (string, error) {
	return JoinWithinRoot(t.Root, urlPath)
}
