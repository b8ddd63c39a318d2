package httpserver

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/webdav"

	"invifiles/internal/config"
	"invifiles/internal/fsutil"
	"invifiles/internal/listing"
	"invifiles/internal/thumb"
	"invifiles/internal/upload"
)

// DAVPrefix is where the optional WebDAV view of the root is mounted.
const DAVPrefix = "/_dav"

type Options struct {
	Config config.Config
}

type Server struct {
	cfg     config.Config
	paths   fsutil.Translator
	thumbs  *thumb.Generator
	uploads *upload.Ingestor
	dav     *webdav.Handler
}

func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg.Root == "" {
		return nil, errors.New("root is required")
	}
	if !filepath.IsAbs(cfg.Root) {
		return nil, fmt.Errorf("root must be absolute: %s", cfg.Root)
	}
	s := &Server{
		cfg:     cfg,
		paths:   fsutil.Translator{Root: cfg.Root},
		thumbs:  thumb.New(cfg.ThumbSize, cfg.ThumbQuality),
		uploads: upload.New(cfg.Root),
	}
	if cfg.WebDAV {
		s.dav = &webdav.Handler{
			Prefix:     DAVPrefix,
			FileSystem: webdav.Dir(cfg.Root),
			LockSystem: webdav.NewMemLS(),
			Logger: func(r *http.Request, err error) {
				if err != nil {
					log.Printf("webdav_error method=%s path=%s error=%q", r.Method, r.URL.Path, err)
				}
			},
		}
	}
	return s, nil
}

// Handler returns the full request pipeline: headers, access log, panic
// recovery, then routing.
func (s *Server) Handler() http.Handler {
	return withHeaders(withRequestLog(withRecover(http.HandlerFunc(s.route))))
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if s.dav != nil && (r.URL.Path == DAVPrefix || strings.HasPrefix(r.URL.Path, DAVPrefix+"/")) {
		s.dav.ServeHTTP(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		http.Error(w, "unsupported method", http.StatusNotImplemented)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.EscapedPath()
	switch {
	case strings.HasPrefix(raw, listing.ThumbPrefix):
		s.handleThumb(w, r, strings.TrimPrefix(raw, listing.ThumbPrefix))
	case strings.HasPrefix(raw, listing.ZipPrefix):
		s.handleZip(w, r, strings.TrimPrefix(raw, listing.ZipPrefix))
	default:
		s.serveStatic(w, r)
	}
}

// --- thumbnails ---

func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request, escaped string) {
	rel, err := url.PathUnescape(escaped)
	if err != nil {
		thumbFailed(w, r, err)
		return
	}
	abs, err := s.paths.Translate(rel)
	if err != nil {
		thumbFailed(w, r, err)
		return
	}
	b, err := s.thumbs.Generate(abs)
	if err != nil {
		thumbFailed(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func thumbFailed(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("thumb_error path=%s request_id=%s error=%q", r.URL.Path, requestIDFrom(r.Context()), err)
	http.Error(w, "thumbnail not available", http.StatusNotFound)
}

// --- static files and listings ---

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	abs, err := s.paths.Translate(r.URL.Path)
	if err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	st, err := os.Stat(abs)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	if st.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			u := r.URL.EscapedPath() + "/"
			if r.URL.RawQuery != "" {
				u += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, u, http.StatusMovedPermanently)
			return
		}
		for _, index := range []string{"index.html", "index.htm"} {
			p := filepath.Join(abs, index)
			if ist, err := os.Stat(p); err == nil && ist.Mode().IsRegular() {
				s.serveFile(w, r, p, ist)
				return
			}
		}
		s.serveListing(w, r, abs)
		return
	}

	if strings.HasSuffix(r.URL.Path, "/") {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	s.serveFile(w, r, abs, st)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, abs string, st os.FileInfo) {
	f, err := os.Open(abs)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	if ct := contentTypeForName(st.Name()); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}

func (s *Server) serveListing(w http.ResponseWriter, r *http.Request, abs string) {
	body, err := listing.Render(abs, r.URL.Path)
	if err != nil {
		log.Printf("list_error path=%s request_id=%s error=%q", r.URL.Path, requestIDFrom(r.Context()), err)
		http.Error(w, listing.ErrUnreadable.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// --- uploads ---

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	boundary, err := upload.Boundary(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	n := r.ContentLength
	if v := r.Header.Get("Content-Length"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "bad request: invalid content length", http.StatusBadRequest)
			return
		}
		n = parsed
	} else if n == 0 && len(r.TransferEncoding) == 0 {
		// net/http reports an absent header as a zero length.
		n = -1
	}
	if n < 0 {
		http.Error(w, "bad request: missing content length", http.StatusBadRequest)
		return
	}
	if s.cfg.MaxUploadBytes > 0 && n > s.cfg.MaxUploadBytes {
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
		return
	}

	// Grow with the bytes that actually arrive, never with the claimed length.
	body, err := io.ReadAll(io.LimitReader(r.Body, n))
	if err == nil && int64(len(body)) != n {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		uploadFailed(w, r, fmt.Errorf("read body: %w", err))
		return
	}

	res, err := s.uploads.Ingest(body, boundary, r.URL.Path)
	if err != nil {
		if errors.Is(err, upload.ErrNoFilename) {
			http.Error(w, upload.ErrNoFilename.Error(), http.StatusBadRequest)
			return
		}
		uploadFailed(w, r, err)
		return
	}
	log.Printf("upload_stored path=%s file=%q size=%d request_id=%s", r.URL.Path, res.Filename, res.Size, requestIDFrom(r.Context()))
	http.Redirect(w, r, r.URL.RequestURI(), http.StatusSeeOther)
}

func uploadFailed(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("upload_error path=%s request_id=%s error=%q", r.URL.Path, requestIDFrom(r.Context()), err)
	http.Error(w, "upload failed: "+err.Error(), http.StatusInternalServerError)
}

// --- helpers ---

func contentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	// Fallbacks for systems with sparse mime tables.
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mov":
		return "video/quicktime"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".log", ".md", ".json", ".yaml", ".yml", ".toml", ".ini", ".conf", ".go", ".py", ".sh", ".csv":
		return "text/plain; charset=utf-8"
	case ".zip":
		return "application/zip"
	case ".gz":
		return "application/gzip"
	default:
		return ""
	}
}
