package stowdav_test

import (
	"testing"
	"unicode/utf8"

	"github.com/sagarc03/stowdav"
)

func TestIsValidPath(t *testing.T) {
	// Create a path with invalid UTF-8 (without embedding raw invalid bytes in source)
	invalidUTF8 := string([]byte{'a', 0xff, 'b'})

	tt := []struct {
		Name string
		Path string
		Want bool
	}{
		// Basics
		{Name: "root path", Path: "/", Want: false},
		{Name: "empty path", Path: "", Want: false},
		{Name: "leading slash", Path: "/some/path", Want: false},
		{Name: "ends with slash", Path: "some/path/", Want: false},

		// Dot segments
		{Name: "double dots segment", Path: "../a", Want: false},
		{Name: "double dots in middle segment", Path: "a/../b", Want: false},
		{Name: "double dots at end", Path: "a/..", Want: false},
		{Name: "single dot segment", Path: "a/./b", Want: false},
		{Name: "single dot at end", Path: "a/.", Want: false},
		{Name: "single dot only", Path: ".", Want: false},

		// Double slashes invalid
		{Name: "double slash", Path: "a//b", Want: false},

		// Forbidden characters
		{Name: "contains backslash", Path: `some\path/file.ext`, Want: false},
		{Name: "contains tab", Path: "some\tpath/file.ext", Want: false},
		{Name: "contains newline", Path: "some\npath/file.ext", Want: false},
		{Name: "contains NUL", Path: "some\x00path/file.ext", Want: false},
		{Name: "contains DEL", Path: "some\x7fpath/file.ext", Want: false},
		{Name: "contains control char", Path: "some\x1fpath/file.ext", Want: false},

		// UTF-8 validity
		{Name: "invalid utf8", Path: invalidUTF8, Want: false},

		// Valid examples
		{Name: "simple valid", Path: "some/path/file.ext", Want: true},
		{Name: "hidden file valid", Path: ".hidden/file", Want: true},
		{Name: "dots inside name", Path: "a/b..c", Want: true},
		{Name: "space", Path: "My Documents/report final.odt", Want: true},
		{Name: "hash", Path: "notes/#1.txt", Want: true},
		{Name: "question mark", Path: "notes/why?.txt", Want: true},
		{Name: "tilde", Path: "~lock.doc", Want: true},
		{Name: "unicode valid", Path: "привет/世界/file.ext", Want: true},
	}

	if utf8.ValidString(invalidUTF8) {
		t.Fatalf("test setup error: invalidUTF8 is unexpectedly valid")
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got := stowdav.IsValidPath(tc.Path)
			if got != tc.Want {
				expected := "valid"
				if !tc.Want {
					expected = "invalid"
				}
				t.Errorf("expected path %q to be %s, got %v", tc.Path, expected, got)
			}
		})
	}
}

func TestCleanPath(t *testing.T) {
	tt := []struct {
		in   string
		want string
	}{
		{"/", ""},
		{"", ""},
		{"/a/b", "a/b"},
		{"/a/b/", "a/b"},
		{"a", "a"},
	}

	for _, tc := range tt {
		if got := stowdav.CleanPath(tc.in); got != tc.want {
			t.Errorf("CleanPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
