package stowdav

import (
	"strings"
	"unicode/utf8"
)

// IsValidPath validates that a path string meets the requirements for an
// object key. It checks that the path:
//   - is not empty, ".", or "/"
//   - is relative (does not start with "/")
//   - does not end with "/"
//   - does not contain ".." segments or "//" (empty segments)
//   - does not contain a backslash
//   - is valid UTF-8
//   - does not contain "." segments
//   - does not contain null bytes, control characters (< 0x20), or DEL (0x7f)
//
// Spaces and characters such as '#', '?' and '~' are allowed because WebDAV
// clients routinely create such names. They are escaped when a URL is built.
func IsValidPath(p string) bool {
	if p == "" || p == "/" || p == "." {
		return false
	}

	if p[0] == '/' {
		return false
	}

	if strings.HasSuffix(p, "/") {
		return false
	}

	if strings.Contains(p, "//") {
		return false
	}

	if strings.Contains(p, `\`) {
		return false
	}

	if !utf8.ValidString(p) {
		return false
	}

	for seg := range strings.SplitSeq(p, "/") {
		if seg == "." || seg == ".." {
			return false
		}
	}

	for _, r := range p {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}

	return true
}

// CleanPath trims the leading and trailing slashes a protocol handler hands
// over. The root becomes "".
func CleanPath(p string) string {
	return strings.Trim(p, "/")
}
