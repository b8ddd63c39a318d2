package upload

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"invifiles/internal/fsutil"
)

// Uploads arrive as a browser form post:
//
//	POST /<dir>/  Content-Type: multipart/form-data; boundary=<token>
//
// Exactly one file part is extracted by scanning the raw body for the
// filename marker, the end of that part's headers and the closing boundary.
// This is not a general multipart decoder: only the first file part is read
// and any further parts are ignored.

var (
	ErrNotMultipart   = errors.New("content type is not multipart/form-data")
	ErrNoBoundary     = errors.New("missing multipart boundary")
	ErrNoFilename     = errors.New("no filename found")
	ErrMalformedBody  = errors.New("malformed multipart body")
	ErrTargetIsFolder = errors.New("target is a directory")
)

var (
	filenameMarker = []byte(`filename="`)
	headerEnd      = []byte("\r\n\r\n")
)

// Part is the single file part of an upload body.
type Part struct {
	Filename string
	Content  []byte
}

// Boundary validates a request Content-Type and returns its boundary token.
func Boundary(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", ErrNotMultipart
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}
	if mediaType != "multipart/form-data" {
		return "", ErrNotMultipart
	}
	b := params["boundary"]
	if b == "" {
		return "", ErrNoBoundary
	}
	return b, nil
}

// ParsePart extracts the first file part from a raw multipart body.
//
// The file content starts right after the first blank line following the
// filename marker and ends at the CRLF that precedes the next boundary
// delimiter. A boundary token that happens to appear inside the file content,
// preceded by CRLF and "--", still truncates the file there.
func ParsePart(body []byte, boundary string) (Part, error) {
	if boundary == "" {
		return Part{}, ErrNoBoundary
	}
	i := bytes.Index(body, filenameMarker)
	if i < 0 {
		return Part{}, ErrNoFilename
	}
	nameStart := i + len(filenameMarker)
	nameLen := bytes.IndexByte(body[nameStart:], '"')
	if nameLen < 0 {
		return Part{}, fmt.Errorf("%w: unterminated filename", ErrMalformedBody)
	}
	raw := body[nameStart : nameStart+nameLen]
	if !utf8.Valid(raw) {
		return Part{}, fmt.Errorf("%w: filename is not valid UTF-8", ErrMalformedBody)
	}
	name := baseName(string(raw))
	if name == "" {
		return Part{}, ErrNoFilename
	}

	h := bytes.Index(body[nameStart:], headerEnd)
	if h < 0 {
		return Part{}, fmt.Errorf("%w: part headers not terminated", ErrMalformedBody)
	}
	contentStart := nameStart + h + len(headerEnd)

	delim := []byte("\r\n--" + boundary)
	n := bytes.Index(body[contentStart:], delim)
	if n < 0 {
		return Part{}, fmt.Errorf("%w: closing boundary not found", ErrMalformedBody)
	}
	return Part{
		Filename: name,
		Content:  body[contentStart : contentStart+n],
	}, nil
}

// baseName keeps only the final element of a submitted filename. Some
// browsers send a full client-side path.
func baseName(name string) string {
	if strings.ContainsRune(name, 0) {
		return ""
	}
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimRight(name, "/")
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

// Result describes a stored upload.
type Result struct {
	Filename string
	Path     string
	Size     int64
}

// Ingestor writes uploads into the served tree.
type Ingestor struct {
	paths fsutil.Translator
}

func New(rootAbs string) *Ingestor {
	return &Ingestor{paths: fsutil.Translator{Root: rootAbs}}
}

// Target resolves where an upload posted to requestPath is written. When
// requestPath names an existing directory the file goes inside it, otherwise
// next to whatever requestPath names.
func (m *Ingestor) Target(requestPath, filename string) (string, error) {
	resolved, err := m.paths.Translate(requestPath)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(resolved)
	if st, err := os.Stat(resolved); err == nil && st.IsDir() {
		dir = resolved
	}
	return filepath.Join(dir, filename), nil
}

// Ingest parses body and writes the file part under requestPath. An existing
// file at the target is overwritten in place.
func (m *Ingestor) Ingest(body []byte, boundary, requestPath string) (Result, error) {
	part, err := ParsePart(body, boundary)
	if err != nil {
		return Result{}, err
	}
	target, err := m.Target(requestPath, part.Filename)
	if err != nil {
		return Result{}, err
	}
	if st, err := os.Stat(target); err == nil && st.IsDir() {
		return Result{}, fmt.Errorf("%w: %s", ErrTargetIsFolder, part.Filename)
	}
	if err := os.WriteFile(target, part.Content, 0o644); err != nil {
		return Result{}, err
	}
	return Result{
		Filename: part.Filename,
		Path:     target,
		Size:     int64(len(part.Content)),
	}, nil
}
