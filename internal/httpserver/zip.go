package httpserver

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// handleZip streams a directory, recursively, as a zip archive.
func (s *Server) handleZip(w http.ResponseWriter, r *http.Request, escaped string) {
	rel, err := url.PathUnescape(escaped)
	if err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	abs, err := s.paths.Translate(rel)
	if err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	st, err := os.Stat(abs)
	if err != nil || !st.IsDir() {
		http.Error(w, "directory not found", http.StatusNotFound)
		return
	}

	name := sanitizeZipBaseName(filepath.Base(abs))
	if abs == s.paths.Root {
		name = "invifiles"
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	if r.Method == http.MethodHead {
		return
	}

	zw := zip.NewWriter(w)
	defer zw.Close()

	ctx := r.Context()
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		relp, err := filepath.Rel(abs, p)
		if err != nil {
			return nil
		}
		zipPath := sanitizeZipPath(filepath.ToSlash(filepath.Join(name, relp)))
		if zipPath == "" {
			return nil
		}
		h := &zip.FileHeader{
			Name:     zipPath,
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		if info, err := d.Info(); err == nil {
			h.Modified = info.ModTime()
		}
		f, err := os.Open(p)
		if err != nil {
			return nil
		}
		defer f.Close()
		wr, err := zw.CreateHeader(h)
		if err != nil {
			return err
		}
		_, err = io.Copy(wr, f)
		return err
	})
	if err != nil {
		// Headers are already out; the archive is left truncated.
		log.Printf("zip_error path=%s request_id=%s error=%q", r.URL.Path, requestIDFrom(ctx), err)
	}
}

func sanitizeZipBaseName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.Trim(s, ". ")
	if s == "" {
		return "download"
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

func sanitizeZipPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	p = strings.ReplaceAll(p, "\x00", "")
	if p == "." || p == "" {
		return ""
	}
	return p
}
