// Package listing renders the HTML directory page: a card per entry with a
// thumbnail or icon, plus the upload form.
package listing

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"invifiles/internal/fsutil"
)

// URL prefixes of the generated endpoints.
const (
	ThumbPrefix = "/_thumb/"
	ZipPrefix   = "/_zip/"
)

var ErrUnreadable = errors.New("no permission to list directory")

type Kind int

const (
	KindFile Kind = iota
	KindFolder
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "file"
	}
}

// Classify picks the card type for an entry by its extension, ignoring case.
func Classify(name string, isDir bool) Kind {
	if isDir {
		return KindFolder
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return KindImage
	case ".mp4", ".mkv", ".mov":
		return KindVideo
	default:
		return KindFile
	}
}

type Entry struct {
	Name  string
	IsDir bool
	Kind  Kind
	// Href is the percent-encoded link relative to the listed directory.
	// Directories end in "/".
	Href string
	// Thumb is the thumbnail URL, set for images only.
	Thumb string
}

// Page is the template input.
type Page struct {
	Path      string
	HasParent bool
	ZipHref   string
	Entries   []Entry
}

//go:embed listing.html
var templates embed.FS

var pageTmpl = template.Must(template.ParseFS(templates, "listing.html"))

// Read lists the immediate children of dirAbs, sorted by lowercased name.
// urlPath is the request path of the directory and is used to build
// thumbnail links relative to the served root.
func Read(dirAbs, urlPath string) ([]Entry, error) {
	ents, err := os.ReadDir(dirAbs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	base := fsutil.CleanRelPath(urlPath)

	out := make([]Entry, 0, len(ents))
	for _, e := range ents {
		name := e.Name()
		isDir := e.IsDir()
		if e.Type()&os.ModeSymlink != 0 {
			// follow links so a linked folder still browses as a folder
			if st, err := os.Stat(filepath.Join(dirAbs, name)); err == nil {
				isDir = st.IsDir()
			}
		}
		it := Entry{
			Name:  name,
			IsDir: isDir,
			Kind:  Classify(name, isDir),
			Href:  escapePath(name, false),
		}
		if isDir {
			it.Href += "/"
		}
		if it.Kind == KindImage {
			rel := name
			if base != "" {
				rel = base + "/" + name
			}
			it.Thumb = ThumbPrefix + escapePath(rel, true)
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Render returns the listing of dirAbs as a complete HTML document.
func Render(dirAbs, urlPath string) ([]byte, error) {
	entries, err := Read(dirAbs, urlPath)
	if err != nil {
		return nil, err
	}
	rel := fsutil.CleanRelPath(urlPath)
	page := Page{
		Path:      "/" + rel,
		HasParent: rel != "",
		ZipHref:   ZipPrefix + escapePath(rel, true),
		Entries:   entries,
	}
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("render listing: %w", err)
	}
	return buf.Bytes(), nil
}

const upperhex = "0123456789ABCDEF"

// escapePath percent-encodes everything except unreserved characters (and
// "/" when keepSlash is set). ":" is always encoded so a relative link can
// never be read as a URL scheme.
func escapePath(s string, keepSlash bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && keepSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		}
	}
	return b.String()
}
