package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanRelPath(t *testing.T) {
	cases := map[string]string{
		"":              "",
		".":             "",
		"/":             "",
		"/a/b":          "a/b",
		"a//b/":         "a/b",
		"../../etc":     "etc",
		"/a/../../b":    "b",
		`dir\file.txt`:  "dir/file.txt",
		"  /spaced/  ":  "spaced",
		"/gallery/./x/": "gallery/x",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanRelPath(in), "input %q", in)
	}
}

func TestJoinWithinRoot(t *testing.T) {
	root := t.TempDir()

	got, err := JoinWithinRoot(root, "/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(root), got)

	got, err = JoinWithinRoot(root, "/gallery/photo.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "gallery", "photo.png"), got)

	got, err = JoinWithinRoot(root, "/../../outside")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "outside"), got)

	_, err = JoinWithinRoot(root, "/a\x00b")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestTranslator(t *testing.T) {
	root := t.TempDir()
	tr := Translator{Root: root}

	got, err := tr.Translate("/Sub/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Sub"), got)
}
